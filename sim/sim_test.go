// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"image"
	"io"
	"log"
	"testing"
	"time"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/image4bit"
	"github.com/GermanBionicSystems/epaper/waveform"
	"github.com/google/go-cmp/cmp"
)

func levels(img *image4bit.Y4) [][]uint8 {
	r := img.Bounds()
	out := make([][]uint8, r.Dy())
	for y := range out {
		for x := r.Min.X; x < r.Max.X; x++ {
			out[y] = append(out[y], img.Gray4At(x, r.Min.Y+y).Y)
		}
	}
	return out
}

func TestDrawReachesPanel(t *testing.T) {
	for _, direct := range []bool{false, true} {
		name := "phases"
		if direct {
			name = "direct"
		}
		t.Run(name, func(t *testing.T) {
			l, err := waveform.Linear(17)
			if err != nil {
				t.Fatal(err)
			}
			p := New(&Opts{})
			refreshes := make(chan bool, 16)
			o := ebc.DefaultOpts
			o.Width, o.Height = 16, 8
			o.DirectMode = direct
			o.MirrorHorizontal = false
			o.FrameTimeout = time.Second
			o.RefreshTimeout = time.Second
			o.Logger = log.New(io.Discard, "", 0)
			o.OnRefresh = func(global bool) { refreshes <- global }
			d, err := ebc.New(p, waveform.Fixed{waveform.GC16: l, waveform.Reset: l}, nil, &o)
			if err != nil {
				t.Fatal(err)
			}
			defer d.Halt()
			wait := func(global bool) {
				t.Helper()
				select {
				case g := <-refreshes:
					if g != global {
						t.Fatalf("got refresh global=%t, want %t", g, global)
					}
				case <-time.After(5 * time.Second):
					t.Fatal("timed out")
				}
			}
			// Reset refresh, then the refresh showing the content.
			wait(true)
			wait(true)

			src := image4bit.NewY4(image.Rect(0, 0, 8, 4))
			for y := 0; y < 4; y++ {
				for x := 0; x < 8; x++ {
					src.SetGray4(x, y, image4bit.Gray4{Y: uint8(x + 2*y)})
				}
			}
			r := image.Rect(4, 2, 12, 6)
			if err := d.DrawY4(r, src, image.Point{}); err != nil {
				t.Fatal(err)
			}
			wait(false)

			s, err := d.Snapshot()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(levels(p.Image()), levels(s.Final)); diff != "" {
				t.Fatalf("panel difference (-got +want):\n%s", diff)
			}
			if got := p.Image().Gray4At(5, 3).Y; got != 3 {
				t.Fatalf("pixel (5, 3) = %d, want 3", got)
			}
		})
	}
}

// Damage overlapping a partial refresh in flight: B crosses A and gets
// split, C lies inside A with newer content and waits for A.
func TestOverlappingDraws(t *testing.T) {
	for _, direct := range []bool{false, true} {
		name := "phases"
		if direct {
			name = "direct"
		}
		t.Run(name, func(t *testing.T) {
			l, err := waveform.Linear(17)
			if err != nil {
				t.Fatal(err)
			}
			p := New(&Opts{FrameTime: 5 * time.Millisecond})
			refreshes := make(chan bool, 64)
			o := ebc.DefaultOpts
			o.Width, o.Height = 16, 8
			o.DirectMode = direct
			o.MirrorHorizontal = false
			o.SkipReset = true
			o.FrameTimeout = time.Second
			o.RefreshTimeout = time.Second
			o.Logger = log.New(io.Discard, "", 0)
			o.OnRefresh = func(global bool) { refreshes <- global }
			d, err := ebc.New(p, waveform.Fixed{waveform.GC16: l}, nil, &o)
			if err != nil {
				t.Fatal(err)
			}
			defer d.Halt()
			select {
			case <-refreshes:
			case <-time.After(5 * time.Second):
				t.Fatal("timed out")
			}

			fill := func(r image.Rectangle, v uint8) {
				src := image4bit.NewY4(r)
				src.Fill(image4bit.Gray4{Y: v})
				if err := d.DrawY4(r, src, r.Min); err != nil {
					t.Fatal(err)
				}
			}
			fill(image.Rect(0, 0, 8, 8), 5)
			time.Sleep(20 * time.Millisecond)
			fill(image.Rect(4, 4, 12, 8), 0)
			fill(image.Rect(0, 0, 4, 4), 10)

			deadline := time.After(5 * time.Second)
			var s *ebc.Snapshot
			for {
				if s, err = d.Snapshot(); err != nil {
					t.Fatal(err)
				}
				if s.Pending == 0 && cmp.Equal(s.Prev.Pix, s.Final.Pix) {
					break
				}
				select {
				case <-refreshes:
				case <-deadline:
					t.Fatal("timed out waiting for the queue to drain")
				}
			}
			want := levels(s.Final)
			if diff := cmp.Diff(levels(p.Image()), want); diff != "" {
				t.Fatalf("panel difference (-got +want):\n%s", diff)
			}
			for _, tc := range []struct {
				x, y int
				v    uint8
			}{{1, 1, 10}, {6, 2, 5}, {6, 6, 0}, {10, 6, 0}, {14, 1, 15}} {
				if got := want[tc.y][tc.x]; got != tc.v {
					t.Fatalf("final(%d, %d) = %d, want %d", tc.x, tc.y, got, tc.v)
				}
			}
			if st := d.Stats(); st.AreasStarted < 3 {
				t.Fatalf("AreasStarted = %d, want at least 3", st.AreasStarted)
			}
		})
	}
}

func TestGlobalFrame(t *testing.T) {
	p := New(&Opts{})
	if err := p.Configure(ebc.Timing{Width: 4, Height: 1}); err != nil {
		t.Fatal(err)
	}
	l, _ := waveform.Linear(17)
	if err := p.LoadWaveform(l); err != nil {
		t.Fatal(err)
	}
	f := &ebc.Frame{
		Mode:   ebc.Global,
		Frames: 17,
		Prev:   []byte{0xff, 0xff},
		Next:   []byte{0x50, 0xaf},
	}
	done := ebc.NewCompletion()
	if err := p.Start(f, done); err != nil {
		t.Fatal(err)
	}
	if !done.Wait(time.Second) {
		t.Fatal("frame not completed")
	}
	if diff := cmp.Diff(levels(p.Image()), [][]uint8{{0, 5, 15, 10}}); diff != "" {
		t.Fatalf("panel difference (-got +want):\n%s", diff)
	}
	if p.Frames() != 17 {
		t.Fatalf("Frames() = %d", p.Frames())
	}
	if got := p.At(1, 0).(image4bit.Gray4).Y; got != 5 {
		t.Fatalf("At(1, 0) = %d", got)
	}
}

func TestDiffKeepsPixels(t *testing.T) {
	p := New(&Opts{})
	if err := p.Configure(ebc.Timing{Width: 2, Height: 1}); err != nil {
		t.Fatal(err)
	}
	// A table that drives every pixel to black on phase 0.
	black := make([]byte, 4*64)
	for i := 0; i < 16; i++ {
		for j := 0; j < 4; j++ {
			black[4*i+j] = 0x55
		}
	}
	l, err := waveform.NewPacked(black, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.LoadWaveform(l); err != nil {
		t.Fatal(err)
	}
	f := &ebc.Frame{
		Mode:  ebc.Phases,
		Prev:  []byte{0x3f},
		Next:  []byte{0x4f},
		Phase: []byte{0, 0},
		Diff:  true,
	}
	if err := p.Start(f, ebc.NewCompletion()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(levels(p.Image()), [][]uint8{{15, 14}}); diff != "" {
		t.Fatalf("panel difference (-got +want):\n%s", diff)
	}
}

func TestDirectFrame(t *testing.T) {
	p := New(&Opts{FrameTime: time.Millisecond})
	if err := p.Configure(ebc.Timing{Width: 4, Height: 1}); err != nil {
		t.Fatal(err)
	}
	f := &ebc.Frame{
		Mode: ebc.Direct,
		Prev: make([]byte, 2),
		Next: make([]byte, 2),
		// Pixel 0 to black, pixel 1 to white, pixel 2 neutral, pixel 3 to
		// black.
		Phase: []byte{0x49},
	}
	done := ebc.NewCompletion()
	if err := p.Start(f, done); err != nil {
		t.Fatal(err)
	}
	if !done.Wait(time.Second) {
		t.Fatal("frame not completed")
	}
	if diff := cmp.Diff(levels(p.Image()), [][]uint8{{14, 15, 15, 14}}); diff != "" {
		t.Fatalf("panel difference (-got +want):\n%s", diff)
	}
}

func TestStartErrors(t *testing.T) {
	l, _ := waveform.Linear(4)
	data := []struct {
		name  string
		setup func(p *Panel)
		f     ebc.Frame
	}{
		{"not configured", func(p *Panel) {}, ebc.Frame{Mode: ebc.Global, Frames: 4}},
		{
			"no waveform",
			func(p *Panel) { p.Configure(ebc.Timing{Width: 4, Height: 2}) },
			ebc.Frame{Mode: ebc.Global, Frames: 4, Prev: make([]byte, 4), Next: make([]byte, 4)},
		},
		{
			"short plane",
			func(p *Panel) {
				p.Configure(ebc.Timing{Width: 4, Height: 2})
				p.LoadWaveform(l)
			},
			ebc.Frame{Mode: ebc.Global, Frames: 4, Prev: make([]byte, 3), Next: make([]byte, 4)},
		},
		{
			"short phase buffer",
			func(p *Panel) {
				p.Configure(ebc.Timing{Width: 4, Height: 2})
				p.LoadWaveform(l)
			},
			ebc.Frame{Mode: ebc.Phases, Prev: make([]byte, 4), Next: make([]byte, 4), Phase: make([]byte, 4)},
		},
		{
			"halted",
			func(p *Panel) {
				p.Configure(ebc.Timing{Width: 4, Height: 2})
				p.LoadWaveform(l)
				p.Halt()
			},
			ebc.Frame{Mode: ebc.Global, Frames: 4, Prev: make([]byte, 4), Next: make([]byte, 4)},
		},
	}
	for _, tc := range data {
		t.Run(tc.name, func(t *testing.T) {
			p := New(&DefaultOpts)
			tc.setup(p)
			if err := p.Start(&tc.f, ebc.NewCompletion()); err == nil {
				t.Fatal("Start() succeeded")
			}
		})
	}
	if err := New(&Opts{}).Configure(ebc.Timing{Width: 3, Height: 2}); err == nil {
		t.Fatal("Configure() accepted an odd width")
	}
}
