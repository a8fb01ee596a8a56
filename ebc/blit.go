// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"image"

	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/GermanBionicSystems/epaper/waveform"
)

// phaseFor returns the phase number written for an area delta frames after
// it started. The last phase of every waveform is neutral, so every phase
// past it is clamped to waveform.LastPhase.
func phaseFor(delta, numPhases int) uint8 {
	if delta >= numPhases-1 {
		return waveform.LastPhase
	}
	return uint8(delta)
}

// blitPhase fills clip of the phase number buffer dst with phase.
//
// pitch is the number of bytes per line of dst, one byte per pixel.
func blitPhase(dst []byte, pitch int, phase uint8, clip image.Rectangle) {
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		line := dst[y*pitch+clip.Min.X : y*pitch+clip.Max.X]
		for i := range line {
			line[i] = phase
		}
	}
}

// driveTable is the drive signal for each (prev, next) pair at one phase.
type driveTable [16][16]uint8

func newDriveTable(lut waveform.LUT, phase uint8) *driveTable {
	t := &driveTable{}
	if p, ok := lut.(*waveform.Packed); ok {
		row := p.Row(phase)
		for next := range row {
			for prev := 0; prev < 16; prev++ {
				t[prev][next] = uint8(row[next]>>(uint(prev)<<1)) & 3
			}
		}
		return t
	}
	for prev := uint8(0); prev < 16; prev++ {
		for next := uint8(0); next < 16; next++ {
			t[prev][next] = lut.Lookup(phase, prev, next) & 3
		}
	}
	return t
}

// blitDirect renders the drive signals of clip into dst, four pixels per
// byte with the leftmost pixel in the two least significant bits.
//
// clip must be aligned on 4 pixels horizontally. pitch is the number of
// bytes per line of dst. When diff is set, pixels that don't change level
// are driven neutral.
func blitDirect(dst []byte, pitch int, t *driveTable, prev, next *image4bit.Y4, clip image.Rectangle, diff bool) {
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		d := y*pitch + clip.Min.X/4
		s := y*prev.Stride + clip.Min.X/2
		for x := clip.Min.X; x < clip.Max.X; x += 4 {
			p0, n0 := prev.Pix[s], next.Pix[s]
			p1, n1 := prev.Pix[s+1], next.Pix[s+1]
			s += 2
			data := t[p0&0xf][n0&0xf] |
				t[p0>>4][n0>>4]<<2 |
				t[p1&0xf][n1&0xf]<<4 |
				t[p1>>4][n1>>4]<<6
			if diff {
				var mask uint8
				if (n0^p0)&0x0f != 0 {
					mask |= 0x03
				}
				if (n0^p0)&0xf0 != 0 {
					mask |= 0x0c
				}
				if (n1^p1)&0x0f != 0 {
					mask |= 0x30
				}
				if (n1^p1)&0xf0 != 0 {
					mask |= 0xc0
				}
				data &= mask
			}
			dst[d] = data
			d++
		}
	}
}
