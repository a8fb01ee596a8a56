// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ebcdemo draws a clock on an electrophoretic panel, either simulated or
// behind an SPI bridge, to exercise partial refreshes.
//
// With -http the buffers can be watched from a browser, e.g.
// http://localhost:8080/stream/final.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/ebcdiag"
	"github.com/GermanBionicSystems/epaper/sim"
	"github.com/GermanBionicSystems/epaper/spictl"
	"github.com/GermanBionicSystems/epaper/termview"
	"github.com/GermanBionicSystems/epaper/tps65185"
	"github.com/GermanBionicSystems/epaper/waveform"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "ebcdemo: %s.\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	opts := ebc.DefaultOpts
	spiName := flag.String("spi", "", "SPI port of the bridge; the panel is simulated when empty")
	width := flag.Int("width", 800, "panel width")
	height := flag.Int("height", 600, "panel height")
	lutPath := flag.String("lut", "", "packed waveform table file; a linear table is used when empty")
	phases := flag.Int("phases", 17, "number of phases of the waveform table")
	httpAddr := flag.String("http", "", "address to serve the diagnostics on, e.g. :8080")
	preview := flag.Bool("term", false, "preview the simulated panel in the terminal")
	interval := flag.Duration("interval", time.Second, "time between updates")
	count := flag.Int("n", 0, "number of updates; 0 runs until interrupted")
	temp := flag.Float64("temp", 0, "panel temperature in °C; 0 uses the PMIC reading or room temperature")
	pmicBus := flag.String("pmic", "", "I²C bus of the TPS65185 PMIC; none is used when empty")
	flag.Var(&opts.DefaultWaveform, "waveform", "waveform of partial refreshes")
	flag.Var(&opts.RefreshWaveform, "refresh-waveform", "waveform of global refreshes")
	flag.Var(&opts.BWMode, "bw", "black and white mode: gray16, dither, threshold or gray4")
	flag.BoolVar(&opts.DirectMode, "direct", false, "compute the drive signals in software")
	flag.BoolVar(&opts.AutoRefresh, "auto-refresh", true, "run a global refresh after enough partial refreshes")
	flag.BoolVar(&opts.Debug, "debug", false, "log the refresh of every area")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	luts, err := loadLUTs(*lutPath, *phases)
	if err != nil {
		return err
	}

	var ctrl ebc.Controller
	var panel *sim.Panel
	if *spiName != "" {
		p, err := spireg.Open(*spiName)
		if err != nil {
			return err
		}
		defer p.Close()
		d, err := spictl.NewHat(p, &spictl.DefaultOpts)
		if err != nil {
			return err
		}
		if err := d.Reset(); err != nil {
			return err
		}
		ctrl = d
	} else {
		panel = sim.New(&sim.DefaultOpts)
		ctrl = panel
	}

	var sensor ebc.TemperatureSensor
	if *pmicBus != "" {
		b, err := i2creg.Open(*pmicBus)
		if err != nil {
			return err
		}
		defer b.Close()
		pmic, err := tps65185.New(b, nil)
		if err != nil {
			return err
		}
		defer pmic.Halt()
		log.Printf("%s", pmic)
		sensor = pmic
	}

	refreshed := make(chan bool, 1)
	opts.Width, opts.Height = *width, *height
	opts.MirrorHorizontal = *spiName != ""
	if *temp != 0 {
		opts.TempOverride = physic.ZeroCelsius + physic.Temperature(*temp*float64(physic.Celsius))
	}
	opts.OnRefresh = func(global bool) {
		select {
		case refreshed <- global:
		default:
		}
	}
	dev, err := ebc.New(ctrl, luts, sensor, &opts)
	if err != nil {
		return err
	}
	defer dev.Halt()
	log.Printf("%s: %dx%d", dev, *width, *height)

	var diag *ebcdiag.Server
	if *httpAddr != "" {
		diag = ebcdiag.New(dev, &ebcdiag.Options{})
		defer diag.Halt()
		go func() {
			log.Printf("Serving diagnostics on %s", *httpAddr)
			if err := http.ListenAndServe(*httpAddr, diag); err != nil {
				log.Printf("HTTP server failed: %v", err)
			}
		}()
	}
	var view *termview.Dev
	if *preview && panel != nil {
		view = termview.New(&termview.Opts{})
		defer view.Halt()
	}
	go func() {
		for global := range refreshed {
			if diag != nil {
				diag.Refreshed(global)
			}
			if view != nil {
				if err := view.Show(panel.Image()); err != nil {
					log.Printf("Preview failed: %v", err)
				}
			}
		}
	}()

	s, err := newScene(dev.Bounds())
	if err != nil {
		return err
	}
	if err := dev.Draw(dev.Bounds(), s.background(), image.Point{}); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	t := time.NewTicker(*interval)
	defer t.Stop()
	for i := 0; *count == 0 || i < *count; i++ {
		r, img := s.clock(time.Now())
		if err := dev.Draw(r, img, r.Min); err != nil {
			return err
		}
		r, img = s.status(dev.Stats())
		if err := dev.Draw(r, img, r.Min); err != nil {
			return err
		}
		select {
		case <-t.C:
		case <-stop:
			return nil
		}
	}
	return nil
}

// loadLUTs returns the waveform tables. Without a table file every waveform
// uses a linear table.
func loadLUTs(path string, phases int) (waveform.Source, error) {
	var l *waveform.Packed
	var err error
	if path == "" {
		l, err = waveform.Linear(phases)
	} else {
		var buf []byte
		if buf, err = os.ReadFile(path); err != nil {
			return nil, err
		}
		l, err = waveform.NewPacked(buf, phases)
	}
	if err != nil {
		return nil, err
	}
	f := waveform.Fixed{}
	for w := waveform.Reset; w <= waveform.GLD16; w++ {
		f[w] = l
	}
	return f, nil
}

// scene renders the parts of the demo screen.
type scene struct {
	bounds image.Rectangle
	face   font.Face
}

func newScene(bounds image.Rectangle) (*scene, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(f, &truetype.Options{Size: float64(bounds.Dy()) / 6})
	return &scene{bounds: bounds, face: face}, nil
}

func (s *scene) background() image.Image {
	w, h := s.bounds.Dx(), s.bounds.Dy()
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	// A gradient shows all the gray levels.
	for x := 0; x < w; x++ {
		v := float64(x) / float64(w-1)
		dc.SetRGB(v, v, v)
		dc.DrawRectangle(float64(x), float64(h)*7/8, 1, float64(h)/8)
		dc.Fill()
	}
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(4)
	dc.DrawRoundedRectangle(8, 8, float64(w)-16, float64(h)*3/4-16, 16)
	dc.Stroke()
	return dc.Image()
}

// clock returns the area of the clock and its content.
func (s *scene) clock(now time.Time) (image.Rectangle, image.Image) {
	w, h := s.bounds.Dx(), s.bounds.Dy()
	r := image.Rect(w/8, h/4, w*7/8, h/2)
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(s.face)
	dc.DrawStringAnchored(now.Format("15:04:05"), float64(w)/2, float64(h)*3/8, 0.5, 0.5)
	return r, dc.Image()
}

// status returns the area of the status line and its content.
func (s *scene) status(st ebc.Stats) (image.Rectangle, image.Image) {
	w, h := s.bounds.Dx(), s.bounds.Dy()
	r := image.Rect(16, h*3/4, w-16, h*3/4+basicfont.Face7x13.Height+4)
	img := image.NewGray(s.bounds)
	draw.Draw(img, r, image.White, image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X, r.Min.Y+basicfont.Face7x13.Ascent+2),
	}
	d.DrawString(fmt.Sprintf("frames %d  partial %d  global %d  timeouts %d",
		st.Frames, st.PartialRefreshes, st.GlobalRefreshes, st.FrameTimeouts+st.RefreshTimeouts))
	return r, img
}
