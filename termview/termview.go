// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termview renders the content of a panel to a terminal using ANSI
// color codes.
//
// Useful to watch a simulated panel, or to follow what a real one shows
// over ssh.
package termview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/term"
)

// Opts represents the options available for the view.
type Opts struct {
	// Cols and Rows bound the size of the view in character cells. Zero uses
	// the size of the terminal, or 80x24 when it can't be determined.
	Cols, Rows int
	Palette    *ansi256.Palette
	// Scaler resamples the image to the view. Defaults to
	// xdraw.ApproxBiLinear.
	Scaler xdraw.Scaler
	// W defaults to stdout.
	W io.Writer

	_ struct{}
}

// cellAspect is the height of a character cell relative to its width.
const cellAspect = 2

// Dev shows images at the console.
type Dev struct {
	w          io.Writer
	tty        bool
	cols, rows int
	palette    ansi256.Palette
	scaler     xdraw.Scaler

	img *image.RGBA
	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		w:       opts.W,
		cols:    opts.Cols,
		rows:    opts.Rows,
		palette: *p,
		scaler:  opts.Scaler,
	}
	if d.scaler == nil {
		d.scaler = xdraw.ApproxBiLinear
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
		fd := os.Stdout.Fd()
		d.tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		if d.tty && (d.cols == 0 || d.rows == 0) {
			if w, h, err := term.GetSize(int(fd)); err == nil {
				if d.cols == 0 {
					d.cols = w
				}
				if d.rows == 0 {
					// Keep a line for the cursor.
					d.rows = h - 1
				}
			}
		}
	}
	if d.cols <= 0 {
		d.cols = 80
	}
	if d.rows <= 0 {
		d.rows = 24
	}
	return d
}

func (d *Dev) String() string {
	return fmt.Sprintf("TermView{%dx%d}", d.cols, d.rows)
}

// Halt implements conn.Resource.
//
// It resets the colors so the terminal is not left corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// fit returns the size in cells img is shown at, keeping its aspect ratio.
func (d *Dev) fit(r image.Rectangle) image.Point {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return image.Point{}
	}
	p := image.Point{X: d.cols, Y: (h*d.cols + w*cellAspect/2) / (w * cellAspect)}
	if p.Y > d.rows {
		p.Y = d.rows
		p.X = (w*cellAspect*d.rows + h/2) / h
	}
	return p.Add(image.Point{X: boolInt(p.X == 0), Y: boolInt(p.Y == 0)})
}

// Show renders img, scaled to the view.
//
// On a terminal the view is redrawn in place.
func (d *Dev) Show(img image.Image) error {
	size := d.fit(img.Bounds())
	if size == (image.Point{}) {
		return nil
	}
	if d.img == nil || d.img.Rect.Size() != size {
		d.img = image.NewRGBA(image.Rectangle{Max: size})
	}
	d.scaler.Scale(d.img, d.img.Rect, img, img.Bounds(), xdraw.Src, nil)

	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	if d.tty {
		_, _ = d.buf.WriteString("\033[H")
	}
	_, _ = d.buf.WriteString("\033[0m")
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			_, _ = io.WriteString(&d.buf, d.palette.Block(color.NRGBA(d.img.RGBAAt(x, y))))
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ fmt.Stringer = &Dev{}
