// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"image"

	"github.com/GermanBionicSystems/epaper/image4bit"
)

// ditherPattern is a 4x4 ordered dither matrix indexed [x&3][y&3].
var ditherPattern = [4][4]uint8{
	{7, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// sampler returns the 4-bit level of src at (x, y).
type sampler func(x, y int) uint8

// newSampler returns a sampler for src, with fast paths for the common
// image types. The alpha channel is ignored.
func newSampler(src image.Image) sampler {
	switch s := src.(type) {
	case *image4bit.Y4:
		return func(x, y int) uint8 {
			return s.Gray4At(x, y).Y
		}
	case *image.Gray:
		return func(x, y int) uint8 {
			v := uint32(s.GrayAt(x, y).Y)
			return image4bit.FromRGB(v, v, v)
		}
	case *image.RGBA:
		return func(x, y int) uint8 {
			if !(image.Point{X: x, Y: y}.In(s.Rect)) {
				return 0
			}
			i := s.PixOffset(x, y)
			p := s.Pix[i : i+3 : i+3]
			return image4bit.FromRGB(uint32(p[0]), uint32(p[1]), uint32(p[2]))
		}
	default:
		return func(x, y int) uint8 {
			r, g, b, _ := src.At(x, y).RGBA()
			return image4bit.FromRGB(r>>8, g>>8, b>>8)
		}
	}
}

// quantize applies the black and white mode to level v of the pixel at
// (x, y).
func (o *Opts) quantize(v uint8, x, y int) uint8 {
	lo, hi := uint8(0), uint8(15)
	if o.BWDitherInvert {
		lo, hi = hi, lo
	}
	switch o.BWMode {
	case Dither:
		if v >= ditherPattern[x&3][y&3] {
			return hi
		}
		return lo
	case Threshold:
		if v >= o.BWThreshold {
			return hi
		}
		return lo
	case Gray4:
		switch {
		case v < 4:
			return 0
		case v < 8:
			return 5
		case v < 12:
			return 10
		default:
			return 15
		}
	default:
		return v
	}
}

// mirror maps point p between drawing and panel coordinates in a w x h
// panel. The mapping is its own inverse.
func (o *Opts) mirror(p image.Point, w, h int) image.Point {
	if o.MirrorHorizontal {
		p.X = w - 1 - p.X
	}
	if o.MirrorVertical {
		p.Y = h - 1 - p.Y
	}
	return p
}

// mirrorRect maps r like mirror does for each of its pixels.
func (o *Opts) mirrorRect(r image.Rectangle, w, h int) image.Rectangle {
	if o.MirrorHorizontal {
		r.Min.X, r.Max.X = w-r.Max.X, w-r.Min.X
	}
	if o.MirrorVertical {
		r.Min.Y, r.Max.Y = h-r.Max.Y, h-r.Min.Y
	}
	return r
}

// alignRect widens r horizontally to a multiple of n pixels.
func alignRect(r image.Rectangle, n int) image.Rectangle {
	r.Min.X -= r.Min.X % n
	if m := r.Max.X % n; m != 0 {
		r.Max.X += n - m
	}
	return r
}

// render converts the pixels of r, in drawing coordinates, sampled at sp in
// the source. The levels are returned row by row.
func (o *Opts) render(r image.Rectangle, s sampler, sp image.Point, quantize bool) []uint8 {
	levels := make([]uint8, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		sy := sp.Y + y - r.Min.Y
		for x := r.Min.X; x < r.Max.X; x++ {
			v := s(sp.X+x-r.Min.X, sy)
			if quantize {
				v = o.quantize(v, x, y)
			}
			levels = append(levels, v)
		}
	}
	return levels
}

// store writes levels rendered for r into the panel plane dst. It returns
// true if any pixel changed.
func (o *Opts) store(dst *image4bit.Y4, r image.Rectangle, levels []uint8) bool {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	changed := false
	k := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p := o.mirror(image.Point{X: x, Y: y}, w, h)
			i, shift := dst.PixOffset(p.X, p.Y)
			v := levels[k] & 0x0F
			k++
			if (dst.Pix[i]>>shift)&0x0F != v {
				dst.Pix[i] = dst.Pix[i]&^(0x0F<<shift) | v<<shift
				changed = true
			}
		}
	}
	return changed
}
