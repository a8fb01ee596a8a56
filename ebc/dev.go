// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/GermanBionicSystems/epaper/waveform"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
)

// TemperatureSensor reads the panel temperature. Every physic.SenseEnv
// implements it.
type TemperatureSensor interface {
	Sense(env *physic.Env) error
}

// roomTemperature is used until a sensor reading succeeds.
const roomTemperature = physic.ZeroCelsius + 25*physic.Celsius

// Dev is an electrophoretic panel driven through an EBC.
//
// Drawing is asynchronous: Draw updates the content and queues the damaged
// area, a worker goroutine refreshes the panel.
type Dev struct {
	ctrl   Controller
	luts   waveform.Source
	sensor TemperatureSensor
	opts   Opts
	log    *log.Logger
	done   *Completion
	// wake is signaled when the worker may have work to do.
	wake   chan struct{}
	exited chan struct{}

	mu        sync.Mutex
	ctx       *Context
	enabled   bool
	active    bool
	stopping  bool
	halted    bool
	parked    chan struct{}
	offScreen *image4bit.Y4
	blitsLeft int

	refreshMu   sync.Mutex
	fullRefresh bool

	statsMu sync.Mutex
	stats   Stats

	// Owned by the worker.
	lut        waveform.LUT
	lutKey     lutKey
	lutChanged bool
	temp       physic.Temperature
	resetDone  bool
}

// lutKey identifies the LUT loaded in the controller.
type lutKey struct {
	w       waveform.Waveform
	celsius int
}

// New returns a Dev driving ctrl and starts its refresh worker.
//
// luts provides the waveforms. sensor may be nil, in which case the panel is
// assumed at room temperature unless opts.TempOverride is set.
func New(ctrl Controller, luts waveform.Source, sensor TemperatureSensor, opts *Opts) (*Dev, error) {
	o := *opts
	if o.Logger == nil {
		o.Logger = log.New(log.Writer(), "ebc: ", log.Flags())
	}
	if o.SplitAreaLimit < 0 {
		return nil, fmt.Errorf("ebc: invalid split area limit %d", o.SplitAreaLimit)
	}
	ctx, err := newContext(o.Width, o.Height, o.DirectMode)
	if err != nil {
		return nil, err
	}
	for _, w := range []waveform.Waveform{o.DefaultWaveform, o.RefreshWaveform} {
		if _, err := luts.Select(w, roomTemperature); err != nil {
			return nil, fmt.Errorf("ebc: %w", err)
		}
	}
	if err := ctrl.Configure(Timing{Width: o.Width, Height: o.Height, PixelClock: o.PixelClock}); err != nil {
		return nil, fmt.Errorf("ebc: failed to configure controller: %w", err)
	}
	d := &Dev{
		ctrl:      ctrl,
		luts:      luts,
		sensor:    sensor,
		opts:      o,
		log:       o.Logger,
		done:      NewCompletion(),
		wake:      make(chan struct{}, 1),
		exited:    make(chan struct{}),
		ctx:       ctx,
		enabled:   true,
		offScreen: whitePlane(ctx.Bounds()),
		blitsLeft: o.LimitBlits,
		temp:      roomTemperature,
	}
	go d.run()
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ebc.Dev{%s}", d.ctrl)
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image4bit.Gray4Model
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return image.Rectangle{}
	}
	return d.ctx.Bounds()
}

// Suspend parks the refresh worker once its current refresh is done, after
// showing the off-screen image.
//
// Draws are still accepted while suspended; they show up on Resume.
func (d *Dev) Suspend() error {
	d.mu.Lock()
	if d.halted {
		d.mu.Unlock()
		return ErrHalted
	}
	d.enabled = false
	if !d.active {
		d.mu.Unlock()
		return nil
	}
	if d.parked == nil {
		d.parked = make(chan struct{})
	}
	parked := d.parked
	d.mu.Unlock()
	d.signal()
	<-parked
	return nil
}

// Resume restarts the refresh worker. The content is restored with a
// global refresh.
func (d *Dev) Resume() error {
	d.mu.Lock()
	if d.halted {
		d.mu.Unlock()
		return ErrHalted
	}
	d.enabled = true
	d.mu.Unlock()
	d.signal()
	return nil
}

// SetMode switches to a new resolution. The device must be suspended.
//
// The content is lost. Snapshots taken before keep the buffers of the
// previous mode.
func (d *Dev) SetMode(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	if d.enabled || d.active {
		return ErrBusy
	}
	ctx, err := newContext(width, height, d.opts.DirectMode)
	if err != nil {
		return err
	}
	if err := d.ctrl.Configure(Timing{Width: width, Height: height, PixelClock: d.opts.PixelClock}); err != nil {
		return fmt.Errorf("ebc: failed to configure controller: %w", err)
	}
	old := d.ctx
	d.ctx = ctx
	d.offScreen = whitePlane(ctx.Bounds())
	old.Release()
	return nil
}

// Halt stops the refresh worker after showing the off-screen image, then
// halts the controller.
func (d *Dev) Halt() error {
	d.mu.Lock()
	if d.halted {
		d.mu.Unlock()
		return nil
	}
	d.halted = true
	d.stopping = true
	d.mu.Unlock()
	d.signal()
	<-d.exited

	d.mu.Lock()
	ctx := d.ctx
	d.ctx = nil
	d.mu.Unlock()
	ctx.Release()
	return d.ctrl.Halt()
}

// context returns the current Context with a reference held.
func (d *Dev) context() (*Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return nil, ErrHalted
	}
	return d.ctx.Acquire(), nil
}

// signal wakes the worker up.
func (d *Dev) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dev) setFullRefresh() {
	d.refreshMu.Lock()
	d.fullRefresh = true
	d.refreshMu.Unlock()
}

// takeFullRefresh returns and clears the full refresh request.
func (d *Dev) takeFullRefresh() bool {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()
	f := d.fullRefresh
	d.fullRefresh = false
	return f
}

func (d *Dev) fullRefreshPending() bool {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()
	return d.fullRefresh
}

func (d *Dev) debugf(format string, v ...interface{}) {
	if d.opts.Debug {
		d.log.Printf(format, v...)
	}
}

func whitePlane(r image.Rectangle) *image4bit.Y4 {
	p := image4bit.NewY4(r)
	p.Fill(image4bit.White)
	return p
}

var _ display.Drawer = &Dev{}
