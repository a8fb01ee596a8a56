// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import "time"

// Completion is a re-armable one-shot signal raised by the controller when
// it is done with a frame or a refresh.
//
// Complete never blocks; completing twice before a wait counts once.
type Completion struct {
	c chan struct{}
}

// NewCompletion returns an unsignaled Completion.
func NewCompletion() *Completion {
	return &Completion{c: make(chan struct{}, 1)}
}

// Reinit discards a pending signal.
func (c *Completion) Reinit() {
	select {
	case <-c.c:
	default:
	}
}

// Complete raises the signal.
func (c *Completion) Complete() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is raised or the timeout expires. It returns
// false on timeout.
func (c *Completion) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-c.c:
		return true
	case <-t.C:
		return false
	}
}
