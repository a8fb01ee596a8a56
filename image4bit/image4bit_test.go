// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package image4bit

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGray4Model(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   color.Color
		want uint8
	}{
		{"passthrough", Gray4{Y: 7}, 7},
		{"black", color.Black, 0},
		{"white", color.White, 15},
		{"mid gray", color.RGBA{0x88, 0x88, 0x88, 0xFF}, 8},
		{"pure green", color.RGBA{0, 0xFF, 0, 0xFF}, 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Gray4Model.Convert(tc.in).(Gray4).Y; got != tc.want {
				t.Errorf("Convert(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestNibbleOrder(t *testing.T) {
	img := NewY4(image.Rect(0, 0, 4, 1))
	img.SetGray4(0, 0, Gray4{Y: 0x1})
	img.SetGray4(1, 0, Gray4{Y: 0x2})
	img.SetGray4(3, 0, Gray4{Y: 0xF})

	if diff := cmp.Diff(img.Pix, []byte{0x21, 0xF0}); diff != "" {
		t.Errorf("Pix difference (-got +want):\n%s", diff)
	}
	if got := img.Gray4At(1, 0).Y; got != 2 {
		t.Errorf("Gray4At(1, 0) = %d, want 2", got)
	}
}

func TestNewY4OddWidthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewY4 with odd width did not panic")
		}
	}()
	NewY4(image.Rect(0, 0, 5, 2))
}

func TestDrawInto(t *testing.T) {
	img := NewY4(image.Rect(0, 0, 8, 2))
	draw.Draw(img, image.Rect(2, 0, 6, 2), &image.Uniform{color.White}, image.Point{}, draw.Src)

	for x := 0; x < 8; x++ {
		want := uint8(0)
		if x >= 2 && x < 6 {
			want = 15
		}
		if got := img.Gray4At(x, 1).Y; got != want {
			t.Errorf("pixel %d = %d, want %d", x, got, want)
		}
	}
}

func TestCopy(t *testing.T) {
	for _, tc := range []struct {
		name string
		r    image.Rectangle
	}{
		{"aligned", image.Rect(2, 1, 6, 3)},
		{"odd start", image.Rect(1, 0, 6, 4)},
		{"odd end", image.Rect(2, 0, 7, 4)},
		{"odd both", image.Rect(3, 1, 5, 2)},
		{"single pixel odd", image.Rect(5, 2, 6, 3)},
		{"single pixel even", image.Rect(4, 2, 5, 3)},
		{"clipped", image.Rect(-4, -4, 3, 2)},
		{"outside", image.Rect(20, 20, 24, 24)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := image.Rect(0, 0, 8, 4)
			dst, src := NewY4(b), NewY4(b)
			dst.Fill(Gray4{Y: 0x3})
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					src.SetGray4(x, y, Gray4{Y: uint8(x + 8*(y&1))})
				}
			}

			Copy(dst, src, tc.r)

			in := tc.r.Intersect(b)
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					want := uint8(0x3)
					if (image.Point{x, y}).In(in) {
						want = src.Gray4At(x, y).Y
					}
					if got := dst.Gray4At(x, y).Y; got != want {
						t.Errorf("(%d,%d) = %#x, want %#x", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestThreshold(t *testing.T) {
	img := NewY4(image.Rect(0, 0, 4, 1))
	img.Pix = []byte{0x70, 0xF8}
	img.Threshold(7)

	if diff := cmp.Diff(img.Pix, []byte{0x00, 0xFF}); diff != "" {
		t.Errorf("Threshold() difference (-got +want):\n%s", diff)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	img := NewY4(image.Rect(0, 0, 2, 2))
	img.Fill(White)
	c := img.Clone()
	img.Fill(Black)

	if got := c.Gray4At(1, 1); got != White {
		t.Errorf("clone pixel = %v, want %v", got, White)
	}
}

func TestEqual(t *testing.T) {
	a := NewY4(image.Rect(0, 0, 4, 2))
	b := NewY4(image.Rect(0, 0, 4, 2))
	b.SetGray4(1, 1, Gray4{Y: 9})

	data := []struct {
		name string
		r    image.Rectangle
		want bool
	}{
		{"outside", image.Rect(2, 0, 4, 2), true},
		{"sibling", image.Rect(0, 1, 1, 2), true},
		{"covering", image.Rect(1, 1, 2, 2), false},
		{"all", a.Rect, false},
	}
	for _, tc := range data {
		if got := Equal(a, b, tc.r); got != tc.want {
			t.Errorf("%s: Equal() = %t, want %t", tc.name, got, tc.want)
		}
	}
}
