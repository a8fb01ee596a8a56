// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/GermanBionicSystems/epaper/image4bit"
)

// Context holds the buffers of one display mode.
//
// It is shared by the device, its refresh worker and snapshots; it is freed
// once the last holder releases it.
type Context struct {
	// mu guards queue and final.
	mu    sync.Mutex
	queue areaList
	final *image4bit.Y4

	// bufs guards prev, next and the phase buffers. The worker is their only
	// writer; snapshots read them.
	bufs  sync.RWMutex
	prev  *image4bit.Y4
	next  *image4bit.Y4
	phase [2][]byte

	width, height int
	direct        bool
	// areaCount accumulates the pixels refreshed since the last global
	// refresh. Owned by the worker.
	areaCount uint64

	refs atomic.Int32
}

// newContext allocates the buffers for a width x height panel, all white.
//
// The width must be a multiple of 4 in direct mode and a multiple of 2
// otherwise.
func newContext(width, height int, direct bool) (*Context, error) {
	align := 2
	if direct {
		align = 4
	}
	if width <= 0 || height <= 0 || width%align != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnsupportedMode, width, height)
	}
	r := image.Rect(0, 0, width, height)
	c := &Context{
		final:  image4bit.NewY4(r),
		prev:   image4bit.NewY4(r),
		next:   image4bit.NewY4(r),
		width:  width,
		height: height,
		direct: direct,
	}
	c.phase[0] = make([]byte, width*height)
	c.phase[1] = make([]byte, width*height)
	c.refs.Store(1)
	c.reset()
	return c, nil
}

// Bounds returns the panel rectangle.
func (c *Context) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// Acquire adds a reference to c and returns it.
func (c *Context) Acquire() *Context {
	c.refs.Add(1)
	return c
}

// Release drops a reference. The buffers are dropped with the last one.
func (c *Context) Release() {
	if n := c.refs.Add(-1); n == 0 {
		c.mu.Lock()
		c.bufs.Lock()
		c.queue = nil
		c.final, c.prev, c.next = nil, nil, nil
		c.phase[0], c.phase[1] = nil, nil
		c.bufs.Unlock()
		c.mu.Unlock()
	} else if n < 0 {
		panic("ebc: Context released too many times")
	}
}

// phasePitch returns the number of bytes per line of the phase buffers.
func (c *Context) phasePitch() int {
	if c.direct {
		return c.width / 4
	}
	return c.width
}

// phaseBuffer returns the part of phase buffer i the controller reads.
func (c *Context) phaseBuffer(i int) []byte {
	return c.phase[i][:c.phasePitch()*c.height]
}

// reset empties the queue, paints every plane white and fills the phase
// buffers with the idle value of the mode.
func (c *Context) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bufs.Lock()
	defer c.bufs.Unlock()
	clear(c.queue)
	c.queue = c.queue[:0]
	c.final.Fill(image4bit.White)
	c.prev.Fill(image4bit.White)
	c.next.Fill(image4bit.White)
	c.fillPhase()
	c.areaCount = 0
}

// fillPhase sets both phase buffers to their idle value: no drive in direct
// mode, the neutral last phase otherwise.
func (c *Context) fillPhase() {
	v := byte(0xff)
	if c.direct {
		v = 0
	}
	for _, p := range c.phase {
		for i := range p {
			p[i] = v
		}
	}
}

// enqueue appends a to the queue. c.mu must be held.
func (c *Context) enqueue(a *Area) {
	c.queue = append(c.queue, a)
}

// Pending returns the number of queued areas not taken by the worker yet.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
