// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spictl

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/waveform"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3/rpi"
)

// Opts defines the options for the bridge.
type Opts struct {
	// Speed is the SPI clock.
	Speed physic.Frequency
	// MaxTxSize bounds the size of a single SPI transfer. Zero uses the
	// limit of the port, or 4096 bytes when it has none.
	MaxTxSize int
	// BusyTimeout bounds the wait for the bridge to become idle, and for a
	// frame to complete.
	BusyTimeout time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Speed:       20 * physic.MegaHertz,
	BusyTimeout: 5 * time.Second,
}

// Dev is a handle to the bridge. It implements ebc.Controller.
type Dev struct {
	c conn.Conn

	dc   gpio.PinOut
	cs   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn

	opts      Opts
	maxTxSize int

	mu     sync.Mutex
	timing ebc.Timing
	planes planes
	halted bool
	// gen identifies the last started frame; stale waiters don't complete
	// newer frames.
	gen atomic.Uint64
}

// New opens a handle to the bridge.
func New(p spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	c, err := p.Connect(opts.Speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spictl: failed to connect over spi: %w", err)
	}

	if err := busy.In(gpio.PullDown, gpio.FallingEdge); err != nil {
		return nil, err
	}

	maxTxSize := opts.MaxTxSize
	if maxTxSize == 0 {
		if limits, ok := c.(conn.Limits); ok {
			maxTxSize = limits.MaxTxSize()
		}
	}
	if maxTxSize == 0 {
		maxTxSize = 4096
	}

	d := &Dev{
		c:         c,
		dc:        dc,
		cs:        cs,
		rst:       rst,
		busy:      busy,
		opts:      *opts,
		maxTxSize: maxTxSize,
	}
	if d.opts.BusyTimeout <= 0 {
		d.opts.BusyTimeout = DefaultOpts.BusyTimeout
	}
	return d, nil
}

// NewHat opens a handle to the bridge using the default HAT pins.
func NewHat(p spi.Port, opts *Opts) (*Dev, error) {
	dc := rpi.P1_22
	cs := rpi.P1_24
	rst := rpi.P1_11
	busy := rpi.P1_18
	return New(p, dc, cs, rst, busy, opts)
}

// Reset the hardware. The bridge forgets its configuration and planes.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	eh := errorHandler{d: d}

	eh.rstOut(gpio.High)
	time.Sleep(20 * time.Millisecond)
	eh.rstOut(gpio.Low)
	time.Sleep(2 * time.Millisecond)
	eh.rstOut(gpio.High)
	time.Sleep(20 * time.Millisecond)

	d.planes.invalidate()
	return eh.err
}

// String returns a string containing configuration information.
func (d *Dev) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("spictl.Dev{%s, %s, Width: %d, Height: %d}", d.c, d.dc, d.timing.Width, d.timing.Height)
}

// Halt puts the bridge in deep sleep. Reset wakes it up.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return nil
	}
	d.halted = true
	d.gen.Add(1)
	eh := errorHandler{d: d}
	sleep(&eh)
	return eh.err
}

// Configure implements ebc.Controller.
func (d *Dev) Configure(t ebc.Timing) error {
	if t.Width <= 0 || t.Height <= 0 || t.Width > 0xffff || t.Height > 0xffff {
		return fmt.Errorf("spictl: invalid resolution %dx%d", t.Width, t.Height)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return errHalted
	}
	eh := errorHandler{d: d}
	configureBridge(&eh, t)
	d.planes.invalidate()
	if eh.err != nil {
		return eh.err
	}
	d.timing = t
	return nil
}

// LoadWaveform implements ebc.Controller.
func (d *Dev) LoadWaveform(l waveform.LUT) error {
	p, err := waveform.Pack(l)
	if err != nil {
		return fmt.Errorf("spictl: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return errHalted
	}
	eh := errorHandler{d: d}
	uploadLUT(&eh, p)
	return eh.err
}

// Start implements ebc.Controller.
//
// The planes are uploaded before Start returns; done is completed on the
// falling edge of BUSY.
func (d *Dev) Start(f *ebc.Frame, done *ebc.Completion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return errHalted
	}
	eh := errorHandler{d: d}
	sendFrame(&eh, &d.planes, f)
	if eh.err != nil {
		d.planes.invalidate()
		return eh.err
	}
	go d.waitFrame(d.gen.Add(1), done)
	return nil
}

// waitFrame completes done once frame gen is displayed. A missed edge is
// caught by looking at the line after the timeout.
func (d *Dev) waitFrame(gen uint64, done *ebc.Completion) {
	if !d.busy.WaitForEdge(d.opts.BusyTimeout) && d.busy.Read() != gpio.Low {
		return
	}
	if d.gen.Load() == gen {
		done.Complete()
	}
}

var (
	errHalted = errors.New("spictl: halted")
	errBusy   = errors.New("spictl: timed out waiting for the bridge")
)

var _ ebc.Controller = &Dev{}
