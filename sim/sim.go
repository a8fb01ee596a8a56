// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sim implements an ebc.Controller driving a simulated
// electrophoretic panel in memory.
//
// Every pixel of the panel moves one gray level per frame in the direction
// of the drive signal it receives, like the pigments of a real panel do.
// With a well formed waveform the panel ends up showing the content of the
// frames' next plane.
package sim

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/GermanBionicSystems/epaper/waveform"
)

// Opts defines the options for the simulated panel.
type Opts struct {
	// FrameTime is how long one frame takes to display. Zero completes the
	// frames as soon as they are started.
	FrameTime time.Duration
}

// DefaultOpts is the timing of a typical 85Hz panel.
var DefaultOpts = Opts{
	FrameTime: 12 * time.Millisecond,
}

// Panel is a simulated panel. It implements image.Image to give access to
// what the panel currently shows.
type Panel struct {
	opts Opts

	mu     sync.Mutex
	timing ebc.Timing
	pix    *image4bit.Y4
	lut    waveform.LUT
	frames int
	halted bool
}

// New returns a Panel. It must be configured before frames can be started.
func New(opts *Opts) *Panel {
	return &Panel{opts: *opts}
}

func (p *Panel) String() string {
	return "sim"
}

// Halt implements conn.Resource. Frames are refused afterward.
func (p *Panel) Halt() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted = true
	return nil
}

// Configure implements ebc.Controller.
//
// The panel starts white.
func (p *Panel) Configure(t ebc.Timing) error {
	if t.Width <= 0 || t.Height <= 0 || t.Width%2 != 0 {
		return fmt.Errorf("sim: invalid resolution %dx%d", t.Width, t.Height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.halted {
		return errHalted
	}
	p.timing = t
	p.pix = image4bit.NewY4(image.Rect(0, 0, t.Width, t.Height))
	p.pix.Fill(image4bit.White)
	return nil
}

// LoadWaveform implements ebc.Controller.
func (p *Panel) LoadWaveform(l waveform.LUT) error {
	if l == nil {
		return errors.New("sim: nil waveform")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.halted {
		return errHalted
	}
	p.lut = l
	return nil
}

// Start implements ebc.Controller.
//
// The frame is applied before Start returns; done is completed once the
// frame time elapsed.
func (p *Panel) Start(f *ebc.Frame, done *ebc.Completion) error {
	p.mu.Lock()
	if err := p.check(f); err != nil {
		p.mu.Unlock()
		return err
	}
	n := 1
	switch f.Mode {
	case ebc.Global:
		n = f.Frames
		for phase := 0; phase < n; phase++ {
			p.apply(f, func(i, x, y int) uint8 {
				return uint8(phase)
			})
		}
	case ebc.Phases:
		w := p.timing.Width
		p.apply(f, func(i, x, y int) uint8 {
			return f.Phase[y*w+x]
		})
	case ebc.Direct:
		p.applyDirect(f)
	}
	p.frames += n
	p.mu.Unlock()

	if d := p.opts.FrameTime * time.Duration(n); d > 0 {
		time.AfterFunc(d, done.Complete)
	} else {
		done.Complete()
	}
	return nil
}

// ColorModel implements image.Image.
func (p *Panel) ColorModel() color.Model {
	return image4bit.Gray4Model
}

// Bounds implements image.Image.
func (p *Panel) Bounds() image.Rectangle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pix == nil {
		return image.Rectangle{}
	}
	return p.pix.Rect
}

// At implements image.Image.
func (p *Panel) At(x, y int) color.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pix == nil {
		return image4bit.Gray4{}
	}
	return p.pix.Gray4At(x, y)
}

// Image returns a copy of what the panel shows.
func (p *Panel) Image() *image4bit.Y4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pix == nil {
		return image4bit.NewY4(image.Rectangle{})
	}
	return p.pix.Clone()
}

// Frames returns the number of frames displayed so far.
func (p *Panel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *Panel) check(f *ebc.Frame) error {
	if p.halted {
		return errHalted
	}
	if p.pix == nil {
		return errors.New("sim: not configured")
	}
	w, h := p.timing.Width, p.timing.Height
	if len(f.Prev) != w*h/2 || len(f.Next) != w*h/2 {
		return fmt.Errorf("sim: planes of %d and %d bytes, want %d", len(f.Prev), len(f.Next), w*h/2)
	}
	switch f.Mode {
	case ebc.Global:
		if f.Frames < 1 || f.Frames > waveform.MaxPhases {
			return fmt.Errorf("sim: %d frames", f.Frames)
		}
	case ebc.Phases:
		if len(f.Phase) != w*h {
			return fmt.Errorf("sim: phase buffer of %d bytes, want %d", len(f.Phase), w*h)
		}
	case ebc.Direct:
		if len(f.Phase) != w*h/4 {
			return fmt.Errorf("sim: drive buffer of %d bytes, want %d", len(f.Phase), w*h/4)
		}
		return nil
	default:
		return fmt.Errorf("sim: unsupported frame mode %s", f.Mode)
	}
	if p.lut == nil {
		return errors.New("sim: no waveform loaded")
	}
	return nil
}

// apply drives every pixel with the LUT at the phase returned by phaseAt.
func (p *Panel) apply(f *ebc.Frame, phaseAt func(i, x, y int) uint8) {
	w, h := p.timing.Width, p.timing.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w/2 + x/2
			shift := uint(4 * (x & 1))
			prev := (f.Prev[i] >> shift) & 0x0F
			next := (f.Next[i] >> shift) & 0x0F
			if f.Diff && prev == next {
				continue
			}
			p.drive(x, y, p.lut.Lookup(phaseAt(i, x, y), prev, next))
		}
	}
}

// applyDirect drives every pixel with its 2-bit code, four pixels per byte.
func (p *Panel) applyDirect(f *ebc.Frame) {
	w, h := p.timing.Width, p.timing.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b := f.Phase[y*w/4+x/4]
			p.drive(x, y, (b>>(2*uint(x&3)))&0x03)
		}
	}
}

func (p *Panel) drive(x, y int, s uint8) {
	v := p.pix.Gray4At(x, y).Y
	switch s {
	case waveform.ToBlack:
		if v > 0 {
			v--
		}
	case waveform.ToWhite:
		if v < 15 {
			v++
		}
	default:
		return
	}
	p.pix.SetGray4(x, y, image4bit.Gray4{Y: v})
}

var errHalted = errors.New("sim: halted")

var _ ebc.Controller = &Panel{}
var _ image.Image = &Panel{}
