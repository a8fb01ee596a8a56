// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package image4bit implements the 4-bit grayscale ("Y4") pixel plane used
// by electrophoretic display controllers.
//
// Two pixels are packed per byte. Unlike most OLED controllers the even
// (left) pixel lives in the low nibble and the odd (right) pixel in the high
// nibble, which is the layout the EBC DMA engine fetches.
package image4bit

import (
	"image"
	"image/color"
)

// Gray4 is a 4-bit gray level. 0 is black, 15 is white.
type Gray4 struct {
	Y uint8
}

// RGBA implements color.Color.
func (c Gray4) RGBA() (r, g, b, a uint32) {
	y := uint32(c.Y&0x0F) * 0x1111
	return y, y, y, 0xFFFF
}

// Levels is the number of gray levels representable by Gray4.
const Levels = 16

// White is the reset state of every plane.
var White = Gray4{Y: 15}

// Black is the darkest level.
var Black = Gray4{Y: 0}

func convert(c color.Color) color.Color {
	if g, ok := c.(Gray4); ok {
		return g
	}
	r, g, b, _ := c.RGBA()
	return Gray4{Y: FromRGB(r>>8, g>>8, b>>8)}
}

// Gray4Model converts colors to Gray4 using FromRGB.
var Gray4Model = color.ModelFunc(convert)

// FromRGB maps 8-bit RGB channels to a 4-bit gray level.
//
// The channels are truncated to 5 bits and weighted 2:5:1, then rounded into
// 16 levels.
func FromRGB(r, g, b uint32) uint8 {
	r &= 0xf8
	g &= 0xf8
	b &= 0xf8
	y := (2*r + 5*g + b) / 8
	return uint8((y + 7) >> 4)
}

// Y4 is a nibble-packed 4-bit grayscale image.
type Y4 struct {
	// Pix holds the packed pixels, Stride bytes per row.
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewY4 returns a Y4 image covering r, initialized to black.
//
// The width of r must be even.
func NewY4(r image.Rectangle) *Y4 {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &Y4{Rect: r}
	}
	if w%2 != 0 {
		panic("image4bit: width must be even")
	}
	return &Y4{
		Pix:    make([]byte, w/2*h),
		Stride: w / 2,
		Rect:   r,
	}
}

// ColorModel implements image.Image.
func (p *Y4) ColorModel() color.Model {
	return Gray4Model
}

// Bounds implements image.Image.
func (p *Y4) Bounds() image.Rectangle {
	return p.Rect
}

// At implements image.Image.
func (p *Y4) At(x, y int) color.Color {
	return p.Gray4At(x, y)
}

// Gray4At returns the level of the pixel at (x, y).
func (p *Y4) Gray4At(x, y int) Gray4 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Gray4{}
	}
	i, shift := p.PixOffset(x, y)
	return Gray4{Y: (p.Pix[i] >> shift) & 0x0F}
}

// Set implements draw.Image.
func (p *Y4) Set(x, y int, c color.Color) {
	p.SetGray4(x, y, Gray4Model.Convert(c).(Gray4))
}

// SetGray4 sets the pixel at (x, y) without touching its sibling nibble.
func (p *Y4) SetGray4(x, y int, c Gray4) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i, shift := p.PixOffset(x, y)
	p.Pix[i] = (p.Pix[i] &^ (0x0F << shift)) | ((c.Y & 0x0F) << shift)
}

// PixOffset returns the byte index of the pixel at (x, y) and the shift of
// its nibble within that byte.
func (p *Y4) PixOffset(x, y int) (int, uint) {
	dx := x - p.Rect.Min.X
	return (y-p.Rect.Min.Y)*p.Stride + dx/2, uint(4 * (dx & 1))
}

// Fill sets every pixel to c.
func (p *Y4) Fill(c Gray4) {
	v := c.Y&0x0F | c.Y<<4
	for i := range p.Pix {
		p.Pix[i] = v
	}
}

// Clone returns a deep copy of p.
func (p *Y4) Clone() *Y4 {
	q := &Y4{Stride: p.Stride, Rect: p.Rect}
	q.Pix = append([]byte(nil), p.Pix...)
	return q
}

// Threshold converts every pixel to black or white: levels above t become
// white, the rest black.
func (p *Y4) Threshold(t uint8) {
	for i, v := range p.Pix {
		lo, hi := v&0x0F, v>>4
		var out byte
		if lo > t {
			out |= 0x0F
		}
		if hi > t {
			out |= 0xF0
		}
		p.Pix[i] = out
	}
}

// Copy copies the pixels of src inside r to dst. Both images must share the
// same bounds.
//
// Rows are copied byte-wise; when r starts or ends on an odd column the
// boundary byte is merged so the neighbouring pixel outside r keeps its
// value in dst.
func Copy(dst, src *Y4, r image.Rectangle) {
	if dst.Rect != src.Rect || dst.Stride != src.Stride {
		panic("image4bit: Copy between images of different geometry")
	}
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	x1 := r.Min.X - dst.Rect.Min.X
	x2 := r.Max.X - dst.Rect.Min.X
	b1, b2 := x1/2, (x2+1)/2
	oddStart, oddEnd := x1&1 == 1, x2&1 == 1

	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := (y - dst.Rect.Min.Y) * dst.Stride
		d := dst.Pix[row+b1 : row+b2]
		first, last := d[0]&0x0F, d[len(d)-1]&0xF0
		copy(d, src.Pix[row+b1:row+b2])
		if oddStart {
			d[0] = d[0]&0xF0 | first
		}
		if oddEnd {
			d[len(d)-1] = d[len(d)-1]&0x0F | last
		}
	}
}

// Equal reports whether a and b hold the same pixels inside r. Both images
// must share the same bounds.
func Equal(a, b *Y4, r image.Rectangle) bool {
	if a.Rect != b.Rect || a.Stride != b.Stride {
		panic("image4bit: Equal between images of different geometry")
	}
	r = r.Intersect(a.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i, shift := a.PixOffset(x, y)
			if (a.Pix[i]^b.Pix[i])>>shift&0x0F != 0 {
				return false
			}
		}
	}
	return true
}
