// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"github.com/GermanBionicSystems/epaper/waveform"
)

// run is the refresh worker. It is the only consumer of the queue and the
// only writer of prev, next and the phase buffers.
func (d *Dev) run() {
	defer close(d.exited)
	for d.waitEnabled() {
		ctx := d.activate()
		for !d.parkRequested() {
			if d.takeFullRefresh() {
				d.refresh(ctx, true, d.opts.RefreshWaveform, nil)
			} else {
				d.refresh(ctx, false, d.opts.DefaultWaveform, nil)
			}
			d.idle(ctx)
		}
		d.deactivate(ctx)
	}
}

// waitEnabled blocks until the device is enabled. It returns false when the
// worker must exit.
func (d *Dev) waitEnabled() bool {
	for {
		d.mu.Lock()
		if d.stopping {
			d.mu.Unlock()
			return false
		}
		if d.enabled {
			d.active = true
			d.mu.Unlock()
			return true
		}
		d.mu.Unlock()
		<-d.wake
	}
}

// activate prepares the buffers for showing the current Context.
//
// The panel may still show the off-screen image, so the content is always
// brought back by a global refresh. Draws made before are part of it.
func (d *Dev) activate() *Context {
	d.mu.Lock()
	ctx := d.ctx.Acquire()
	d.mu.Unlock()

	d.setFullRefresh()
	d.lutChanged = true
	if !d.resetDone {
		d.resetDone = true
		if !d.opts.SkipReset {
			d.refresh(ctx, true, waveform.Reset, nil)
		}
	}
	return ctx
}

// deactivate shows the off-screen image and releases ctx. final is left
// untouched so the content can be restored.
func (d *Dev) deactivate(ctx *Context) {
	d.mu.Lock()
	off := d.offScreen
	d.mu.Unlock()
	d.refresh(ctx, true, waveform.GC16, off)
	ctx.Release()

	d.mu.Lock()
	d.active = false
	if d.parked != nil {
		close(d.parked)
		d.parked = nil
	}
	d.mu.Unlock()
}

// idle blocks until there is something to do.
func (d *Dev) idle(ctx *Context) {
	if ctx.Pending() != 0 || d.fullRefreshPending() || d.parkRequested() {
		return
	}
	<-d.wake
}

func (d *Dev) parkRequested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopping || !d.enabled
}

func (d *Dev) stopRequested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopping
}
