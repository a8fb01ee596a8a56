// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package termview

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/google/go-cmp/cmp"
	"github.com/maruel/ansi256"
	xdraw "golang.org/x/image/draw"
)

func TestFit(t *testing.T) {
	for _, tc := range []struct {
		name       string
		cols, rows int
		r          image.Rectangle
		want       image.Point
	}{
		{"wide", 80, 24, image.Rect(0, 0, 1872, 1404), image.Pt(64, 24)},
		{"narrow view", 40, 24, image.Rect(0, 0, 1872, 1404), image.Pt(40, 15)},
		{"tiny", 4, 4, image.Rect(0, 0, 100, 1), image.Pt(4, 1)},
		{"empty", 80, 24, image.Rectangle{}, image.Point{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := New(&Opts{Cols: tc.cols, Rows: tc.rows, W: &bytes.Buffer{}})
			if diff := cmp.Diff(d.fit(tc.r), tc.want); diff != "" {
				t.Errorf("fit() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestShow(t *testing.T) {
	var buf bytes.Buffer
	d := New(&Opts{Cols: 4, Rows: 4, Scaler: xdraw.NearestNeighbor, W: &buf})

	img := image4bit.NewY4(image.Rect(0, 0, 8, 8))
	img.Fill(image4bit.Black)
	for y := 0; y < 8; y++ {
		for x := 4; x < 8; x++ {
			img.SetGray4(x, y, image4bit.White)
		}
	}
	if err := d.Show(img); err != nil {
		t.Fatal(err)
	}

	black := ansi256.Default.Block(color.NRGBA{A: 255})
	white := ansi256.Default.Block(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	line := black + black + white + white + "\033[0m\n"
	want := "\033[0m" + line + line
	if diff := cmp.Diff(buf.String(), want); diff != "" {
		t.Errorf("Show() difference (-got +want):\n%s", diff)
	}

	buf.Reset()
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "\033[0m\n" {
		t.Errorf("Halt() wrote %q", got)
	}
}
