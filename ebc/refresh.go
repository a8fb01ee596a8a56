// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/GermanBionicSystems/epaper/waveform"
	"periph.io/x/conn/v3/physic"
)

// refresh runs one global or partial refresh with waveform w.
//
// A global refresh shows src, or final when src is nil.
func (d *Dev) refresh(ctx *Context, global bool, w waveform.Waveform, src *image4bit.Y4) {
	if err := d.selectWaveform(w); err != nil {
		d.log.Printf("Failed to select waveform %s: %v", w, err)
		d.recordErr(err)
		return
	}
	if d.lutChanged {
		if d.opts.PreparePrevBeforeA2 && w == waveform.A2 {
			ctx.bufs.Lock()
			ctx.prev.Threshold(7)
			ctx.bufs.Unlock()
		}
		if err := d.ctrl.LoadWaveform(d.lut); err != nil {
			d.log.Printf("Failed to load waveform %s: %v", w, err)
			d.recordErr(err)
			return
		}
		d.lutChanged = false
	}

	frames := 0
	if global {
		if !d.globalRefresh(ctx, src) {
			return
		}
		frames = d.lut.NumPhases()
	} else {
		frames = d.partialRefresh(ctx)
	}

	screen := uint64(ctx.width) * uint64(ctx.height)
	if d.opts.AutoRefresh {
		if ctx.areaCount >= uint64(d.opts.RefreshThreshold)*screen {
			d.setFullRefresh()
			ctx.areaCount = 0
		}
	} else {
		ctx.areaCount = 0
	}
	d.statsMu.Lock()
	d.stats.PixelsPending = ctx.areaCount
	d.statsMu.Unlock()

	if frames != 0 && d.opts.OnRefresh != nil {
		d.opts.OnRefresh(global)
	}
}

// selectWaveform makes the LUT for w at the current temperature the active
// one, flagging it for loading when it changed.
func (d *Dev) selectWaveform(w waveform.Waveform) error {
	t := d.temperature()
	k := lutKey{w: w, celsius: int((t - physic.ZeroCelsius) / physic.Celsius)}
	if d.lut != nil && k == d.lutKey && !d.lutChanged {
		return nil
	}
	l, err := d.luts.Select(w, t)
	if err != nil {
		return err
	}
	if n := l.NumPhases(); n < 2 || n > waveform.MaxPhases {
		return fmt.Errorf("ebc: waveform %s has %d phases", w, n)
	}
	if k != d.lutKey || d.lut == nil {
		d.lutChanged = true
	}
	d.lut = l
	d.lutKey = k
	return nil
}

// temperature returns the panel temperature used to select the waveform.
func (d *Dev) temperature() physic.Temperature {
	if d.sensor != nil {
		var e physic.Env
		if err := d.sensor.Sense(&e); err != nil {
			d.log.Printf("Failed to get temperature: %v", err)
		} else {
			d.temp = e.Temperature
		}
	}
	if d.opts.TempOverride > 0 {
		d.debugf("override temperature from %s to %s", d.temp, d.opts.TempOverride)
		return d.opts.TempOverride
	}
	t := d.temp
	if d.opts.TempOffset > 0 {
		if t-physic.ZeroCelsius > d.opts.TempOffset {
			t -= d.opts.TempOffset
		} else {
			t = physic.ZeroCelsius
		}
	}
	return t
}

// globalRefresh drives every pixel of the panel to src with a single
// controller burst. The queue is flushed, the content it covered is part of
// the refresh.
//
// It returns false when the controller couldn't be started.
func (d *Dev) globalRefresh(ctx *Context, src *image4bit.Y4) bool {
	ctx.mu.Lock()
	ctx.bufs.Lock()
	flushed := len(ctx.queue)
	clear(ctx.queue)
	ctx.queue = ctx.queue[:0]
	if src == nil {
		src = ctx.final
	}
	copy(ctx.next.Pix, src.Pix)
	ctx.bufs.Unlock()
	ctx.mu.Unlock()
	if flushed != 0 {
		d.debugf("global refresh flushed %d areas", flushed)
	}

	f := &Frame{
		Mode:   Global,
		Frames: d.lut.NumPhases(),
		Prev:   ctx.prev.Pix,
		Next:   ctx.next.Pix,
	}
	err := d.runFrame(f, d.opts.RefreshTimeout)
	if err != nil && !errors.Is(err, ErrTimeout) {
		d.log.Printf("Failed to start refresh: %v", err)
		return false
	}
	d.statsMu.Lock()
	d.stats.GlobalRefreshes++
	if err != nil {
		d.stats.RefreshTimeouts++
	}
	d.statsMu.Unlock()
	if err != nil {
		d.log.Printf("Refresh timed out!")
	}

	ctx.bufs.Lock()
	copy(ctx.prev.Pix, ctx.next.Pix)
	ctx.bufs.Unlock()
	ctx.areaCount = 0
	return true
}

// partialRefresh refreshes the queued areas frame by frame until none is
// left. It returns the number of frames run.
func (d *Dev) partialRefresh(ctx *Context) int {
	n := d.lut.NumPhases()
	last := n - 1
	s := scheduler{
		numPhases:  n,
		splitLimit: d.opts.SplitAreaLimit,
		redundant: func(r image.Rectangle) bool {
			return image4bit.Equal(ctx.final, ctx.next, r)
		},
	}
	if d.opts.Debug {
		s.debugf = d.log.Printf
	}
	mode := Phases
	if ctx.direct {
		mode = Direct
	}
	pitch := ctx.phasePitch()
	var tables [waveform.MaxPhases]*driveTable
	var areas areaList
	var pixels, started uint64
	ran := 0
	for frame := 0; ; frame++ {
		// Alternate the phase buffers so the controller can still read the
		// previous frame.
		buf := ctx.phase[frame%2]
		s.splits = 0

		ctx.mu.Lock()
		ctx.bufs.Lock()
		areas.takeAll(&ctx.queue)
		for i := 0; i < len(areas); {
			a := areas[i]
			if a.FrameBegin == Pending && !s.schedule(&areas, i, frame) {
				areas.removeAt(i)
				continue
			}
			if a.FrameBegin == frame {
				// Commit the content; later draws wait for the next refresh
				// of this area.
				image4bit.Copy(ctx.next, ctx.final, a.Clip)
				pixels += a.pixels()
				started++
				d.debugf("%v started", a)
			}
			i++
		}
		ctx.mu.Unlock()

		for i := 0; i < len(areas); {
			a := areas[i]
			delta := frame - a.FrameBegin
			if delta < 0 {
				i++
				continue
			}
			p := phaseFor(delta, n)
			if ctx.direct {
				if tables[p] == nil {
					tables[p] = newDriveTable(d.lut, p)
				}
				blitDirect(buf, pitch, tables[p], ctx.prev, ctx.next, a.Clip, d.opts.DiffMode)
			} else {
				blitPhase(buf, pitch, p, a.Clip)
			}
			// The area stays one frame past its last phase so both phase
			// buffers end up neutral.
			if delta > last {
				image4bit.Copy(ctx.prev, ctx.next, a.Clip)
				d.debugf("%v finished on %d", a, frame)
				areas.removeAt(i)
				continue
			}
			i++
		}
		ctx.bufs.Unlock()

		if len(areas) == 0 {
			break
		}
		f := &Frame{
			Mode:   mode,
			Number: frame,
			Frames: 1,
			Prev:   ctx.prev.Pix,
			Next:   ctx.next.Pix,
			Phase:  ctx.phaseBuffer(frame % 2),
			Diff:   d.opts.DiffMode && !ctx.direct,
		}
		err := d.runFrame(f, d.opts.FrameTimeout)
		ran++
		d.statsMu.Lock()
		d.stats.Frames++
		if errors.Is(err, ErrTimeout) {
			d.stats.FrameTimeouts++
		}
		d.statsMu.Unlock()
		if errors.Is(err, ErrTimeout) {
			d.log.Printf("Frame %d timed out!", frame)
		} else if err != nil {
			d.log.Printf("Failed to start frame %d: %v", frame, err)
		}
		if d.stopRequested() {
			break
		}
	}
	ctx.areaCount += pixels
	if ran != 0 {
		d.statsMu.Lock()
		d.stats.PartialRefreshes++
		d.stats.AreasStarted += started
		d.stats.PixelsRefreshed += pixels
		d.statsMu.Unlock()
	}
	return ran
}

// runFrame starts f and waits for its completion.
func (d *Dev) runFrame(f *Frame, timeout time.Duration) error {
	d.done.Reinit()
	if err := d.ctrl.Start(f, d.done); err != nil {
		d.recordErr(err)
		return err
	}
	if !d.done.Wait(timeout) {
		err := fmt.Errorf("%w: frame %d", ErrTimeout, f.Number)
		d.recordErr(err)
		return err
	}
	return nil
}
