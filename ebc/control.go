// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"
	"image"

	"github.com/GermanBionicSystems/epaper/image4bit"
	xdraw "golang.org/x/image/draw"
)

// Stats are counters of the refresh worker.
type Stats struct {
	GlobalRefreshes  uint64
	RefreshTimeouts  uint64
	PartialRefreshes uint64
	Frames           uint64
	FrameTimeouts    uint64
	AreasStarted     uint64
	PixelsRefreshed  uint64
	// PixelsPending is the auto refresh accumulator.
	PixelsPending uint64
	// LastErr is the last controller error, if any.
	LastErr error
}

// Stats returns a copy of the counters.
func (d *Dev) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

func (d *Dev) recordErr(err error) {
	d.statsMu.Lock()
	d.stats.LastErr = err
	d.statsMu.Unlock()
}

// RequestGlobalRefresh asks for a global refresh of the content. Pending
// partial refreshes complete first.
func (d *Dev) RequestGlobalRefresh() {
	d.setFullRefresh()
	d.signal()
}

// SetOffScreen sets the image shown while suspended or halted, as a raw
// nibble-packed plane in panel coordinates.
func (d *Dev) SetOffScreen(pix []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	b := d.ctx.Bounds()
	if want := b.Dx() * b.Dy() / 2; len(pix) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(pix), want)
	}
	off := image4bit.NewY4(b)
	copy(off.Pix, pix)
	d.offScreen = off
	return nil
}

// SetOffScreenImage is like SetOffScreen for any image, scaled to the
// panel and converted like Draw does.
func (d *Dev) SetOffScreenImage(img image.Image) error {
	ctx, err := d.context()
	if err != nil {
		return err
	}
	b := ctx.Bounds()
	ctx.Release()

	src := img
	if img.Bounds().Size() != b.Size() {
		dst := image.NewRGBA(b)
		xdraw.CatmullRom.Scale(dst, b, img, img.Bounds(), xdraw.Src, nil)
		src = dst
	}
	levels := d.opts.render(b, newSampler(src), src.Bounds().Min, true)
	off := image4bit.NewY4(b)
	d.opts.store(off, b, levels)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	if d.ctx.Bounds() != b {
		return fmt.Errorf("%w: mode changed", ErrBufferSize)
	}
	d.offScreen = off
	return nil
}

// Snapshot is a copy of the buffers of a Context.
type Snapshot struct {
	Prev, Next, Final *image4bit.Y4
	// Phase holds the phase numbers, one byte per pixel, or the drive
	// signals, four pixels per byte, when Direct is set.
	Phase  [2][]byte
	Direct bool
	// Pending is the number of areas queued and not taken by the worker.
	Pending int
}

// Snapshot returns a copy of the current buffers.
func (d *Dev) Snapshot() (*Snapshot, error) {
	ctx, err := d.context()
	if err != nil {
		return nil, err
	}
	defer ctx.Release()
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.bufs.RLock()
	defer ctx.bufs.RUnlock()
	s := &Snapshot{
		Prev:    ctx.prev.Clone(),
		Next:    ctx.next.Clone(),
		Final:   ctx.final.Clone(),
		Direct:  ctx.direct,
		Pending: len(ctx.queue),
	}
	for i := range s.Phase {
		s.Phase[i] = append([]byte(nil), ctx.phaseBuffer(i)...)
	}
	return s, nil
}

// OffScreen returns a copy of the off-screen image.
func (d *Dev) OffScreen() *image4bit.Y4 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offScreen.Clone()
}
