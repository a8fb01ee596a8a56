// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebcdiag

import (
	"fmt"
	"image"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/GermanBionicSystems/epaper/waveform"
)

// render returns buffer b of s as an 8-bit gray image.
//
// Gray planes are expanded to 8 bits. Phase numbers are shown as is, the
// idle phase being white. Drive signals are black, white or mid gray when
// neutral.
func render(s *ebc.Snapshot, b Buffer) (*image.Gray, error) {
	r := s.Final.Bounds()
	switch b {
	case Prev:
		return grayPlane(s.Prev), nil
	case Next:
		return grayPlane(s.Next), nil
	case Final:
		return grayPlane(s.Final), nil
	case Phase0, Phase1:
		buf := s.Phase[b-Phase0]
		if s.Direct {
			return drivePlane(buf, r), nil
		}
		img := image.NewGray(r)
		copy(img.Pix, buf)
		return img, nil
	}
	return nil, fmt.Errorf("unhandled buffer %s", b)
}

func grayPlane(p *image4bit.Y4) *image.Gray {
	img := image.NewGray(p.Rect)
	i := 0
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		for x := p.Rect.Min.X; x < p.Rect.Max.X; x++ {
			img.Pix[i] = p.Gray4At(x, y).Y * 17
			i++
		}
	}
	return img
}

func drivePlane(buf []byte, r image.Rectangle) *image.Gray {
	img := image.NewGray(r)
	pitch := r.Dx() / 4
	for i := range img.Pix {
		y, x := i/r.Dx(), i%r.Dx()
		switch (buf[y*pitch+x/4] >> (2 * uint(x&3))) & 0x03 {
		case waveform.ToBlack:
			img.Pix[i] = 0
		case waveform.ToWhite:
			img.Pix[i] = 0xff
		default:
			img.Pix[i] = 0x80
		}
	}
	return img
}
