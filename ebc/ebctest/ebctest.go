// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ebctest is meant to be used to test drivers over a fake display
// controller.
package ebctest

import (
	"errors"
	"sync"
	"time"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/waveform"
)

// Frame is a copy of an ebc.Frame as it was started.
type Frame struct {
	ebc.Frame
}

// Controller is a fake ebc.Controller recording everything it receives.
//
// Frames complete immediately unless Hang or Delay is set.
type Controller struct {
	sync.Mutex
	Timings []ebc.Timing
	LUTs    []waveform.LUT
	Frames  []Frame
	// Hang makes frames never complete.
	Hang bool
	// Delay postpones completion.
	Delay time.Duration
	// Err is returned by Start when set.
	Err error
	// OnStart is called synchronously for every started frame.
	OnStart func(f *ebc.Frame)

	halted bool
	notify chan struct{}
}

func (c *Controller) String() string {
	return "ebctest"
}

// Halt implements conn.Resource.
func (c *Controller) Halt() error {
	c.Lock()
	defer c.Unlock()
	c.halted = true
	return nil
}

// Halted reports whether Halt was called.
func (c *Controller) Halted() bool {
	c.Lock()
	defer c.Unlock()
	return c.halted
}

// Configure implements ebc.Controller.
func (c *Controller) Configure(t ebc.Timing) error {
	c.Lock()
	defer c.Unlock()
	if c.halted {
		return errHalted
	}
	c.Timings = append(c.Timings, t)
	return nil
}

// LoadWaveform implements ebc.Controller.
func (c *Controller) LoadWaveform(l waveform.LUT) error {
	c.Lock()
	defer c.Unlock()
	c.LUTs = append(c.LUTs, l)
	return nil
}

// Start implements ebc.Controller.
func (c *Controller) Start(f *ebc.Frame, done *ebc.Completion) error {
	c.Lock()
	if c.Err != nil {
		err := c.Err
		c.Unlock()
		return err
	}
	cp := Frame{Frame: *f}
	cp.Prev = append([]byte(nil), f.Prev...)
	cp.Next = append([]byte(nil), f.Next...)
	if f.Phase != nil {
		cp.Phase = append([]byte(nil), f.Phase...)
	}
	c.Frames = append(c.Frames, cp)
	hang, delay, onStart := c.Hang, c.Delay, c.OnStart
	if c.notify != nil {
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
	c.Unlock()

	if onStart != nil {
		onStart(f)
	}
	switch {
	case hang:
	case delay > 0:
		time.AfterFunc(delay, done.Complete)
	default:
		done.Complete()
	}
	return nil
}

// Snapshot returns a copy of the recorded frames.
func (c *Controller) Snapshot() []Frame {
	c.Lock()
	defer c.Unlock()
	return append([]Frame(nil), c.Frames...)
}

// WaitFrames blocks until at least n frames were started or the timeout
// expires. It returns the recorded frames.
func (c *Controller) WaitFrames(n int, timeout time.Duration) ([]Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		c.Lock()
		if len(c.Frames) >= n {
			f := append([]Frame(nil), c.Frames...)
			c.Unlock()
			return f, nil
		}
		if c.notify == nil {
			c.notify = make(chan struct{}, 1)
		}
		notify := c.notify
		c.Unlock()
		left := time.Until(deadline)
		if left <= 0 {
			return c.Snapshot(), errors.New("ebctest: timed out waiting for frames")
		}
		select {
		case <-notify:
		case <-time.After(left):
		}
	}
}

var errHalted = errors.New("ebctest: halted")

var _ ebc.Controller = &Controller{}
