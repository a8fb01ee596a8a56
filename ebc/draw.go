// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"
	"image"
	"time"

	"github.com/GermanBionicSystems/epaper/image4bit"
)

// Draw implements display.Drawer.
//
// The pixels of r are converted to 4-bit gray per Opts.BWMode and queued for
// a partial refresh. It returns before the panel is refreshed. r must be
// within Bounds().
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	return d.draw(r, newSampler(src), sp, true)
}

// DrawY4 is like Draw for a 4-bit source; levels are copied as is.
func (d *Dev) DrawY4(r image.Rectangle, src *image4bit.Y4, sp image.Point) error {
	return d.draw(r, newSampler(src), sp, false)
}

func (d *Dev) draw(r image.Rectangle, s sampler, sp image.Point, quantize bool) error {
	ctx, err := d.context()
	if err != nil {
		return err
	}
	defer ctx.Release()
	b := ctx.Bounds()
	if r.Empty() || !r.In(b) {
		return fmt.Errorf("%w: %v not in %v", ErrInvalidRect, r, b)
	}
	if !d.takeBlit() {
		d.debugf("blit of %v blocked", r)
		return nil
	}
	levels := d.opts.render(r, s, sp, quantize)
	align := 2
	if ctx.direct {
		align = 4
	}
	clip := alignRect(d.opts.mirrorRect(r, b.Dx(), b.Dy()), align)

	ctx.mu.Lock()
	changed := d.opts.store(ctx.final, r, levels)
	if changed {
		ctx.enqueue(&Area{Clip: clip, FrameBegin: Pending})
	}
	ctx.mu.Unlock()
	if !changed {
		d.debugf("dropped unchanged %v", clip)
		return nil
	}
	d.signal()

	delay := d.opts.DelayA
	if clip.Dx()*clip.Dy() > d.opts.DelayAreaThreshold {
		delay = d.opts.DelayB
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

// takeBlit accounts for one draw against Opts.LimitBlits.
func (d *Dev) takeBlit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.blitsLeft < 0:
		return true
	case d.blitsLeft == 0:
		return false
	default:
		d.blitsLeft--
		return true
	}
}
