// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"
	"log"
	"time"

	"github.com/GermanBionicSystems/epaper/waveform"
	"periph.io/x/conn/v3/physic"
)

// BWMode selects how drawn colors are quantized before reaching the panel.
type BWMode int

// Valid BWMode.
const (
	// Gray16 keeps the 16 gray levels.
	Gray16 BWMode = iota
	// Dither renders black and white with a 4x4 ordered dither.
	Dither
	// Threshold renders black and white cut at Opts.BWThreshold.
	Threshold
	// Gray4 keeps four levels: 0, 5, 10 and 15.
	Gray4
)

func (m BWMode) String() string {
	switch m {
	case Gray16:
		return "gray16"
	case Dither:
		return "dither"
	case Threshold:
		return "threshold"
	case Gray4:
		return "gray4"
	default:
		return fmt.Sprintf("BWMode(%d)", int(m))
	}
}

// Set sets the BWMode to a value represented by the string s. Set implements the flag.Value interface.
func (m *BWMode) Set(s string) error {
	switch s {
	case "gray16":
		*m = Gray16
	case "dither":
		*m = Dither
	case "threshold":
		*m = Threshold
	case "gray4":
		*m = Gray4
	default:
		return fmt.Errorf("unknown bw mode %q: expected gray16, dither, threshold or gray4", s)
	}
	return nil
}

// Opts defines the options for the device.
type Opts struct {
	// Width and Height are the panel resolution in pixels.
	Width  int
	Height int
	// PixelClock is passed to the controller in Timing.
	PixelClock physic.Frequency

	// DefaultWaveform is used for partial refreshes.
	DefaultWaveform waveform.Waveform
	// RefreshWaveform is used for global refreshes.
	RefreshWaveform waveform.Waveform
	// DiffMode keeps pixels that don't change level neutral.
	DiffMode bool
	// DirectMode applies the LUT in software and sends drive signals.
	DirectMode bool
	// MirrorHorizontal and MirrorVertical map drawing coordinates to the
	// panel.
	MirrorHorizontal bool
	MirrorVertical   bool
	// SkipReset skips the reset refresh run the first time the panel is
	// enabled.
	SkipReset bool

	// SplitAreaLimit bounds the number of area splits per frame.
	SplitAreaLimit int
	// AutoRefresh triggers a global refresh once RefreshThreshold screens
	// worth of pixels went through partial refreshes.
	AutoRefresh      bool
	RefreshThreshold int
	// PreparePrevBeforeA2 snaps the settled plane to black and white when
	// switching to the A2 waveform.
	PreparePrevBeforeA2 bool

	// BWMode, BWThreshold and BWDitherInvert control the quantization of
	// drawn images. DrawY4 bypasses it.
	BWMode         BWMode
	BWThreshold    uint8
	BWDitherInvert bool
	// LimitBlits is the number of draws accepted; -1 is unlimited.
	LimitBlits int
	// DelayA is slept after a draw of at most DelayAreaThreshold pixels,
	// DelayB after a larger one. Zero disables the delay.
	DelayA             time.Duration
	DelayB             time.Duration
	DelayAreaThreshold int

	// TempOverride, when above zero Kelvin, replaces the sensor reading.
	TempOverride physic.Temperature
	// TempOffset, when positive, is subtracted from the sensor reading.
	TempOffset physic.Temperature

	// FrameTimeout bounds the wait for a partial refresh frame.
	FrameTimeout time.Duration
	// RefreshTimeout bounds the wait for a global refresh.
	RefreshTimeout time.Duration

	// Logger receives errors. Defaults to the standard logger.
	Logger *log.Logger
	// Debug logs the area life cycle.
	Debug bool
	// OnRefresh is called by the refresh worker after every refresh.
	OnRefresh func(global bool)
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Width:              1872,
	Height:             1404,
	PixelClock:         200 * physic.MegaHertz,
	DefaultWaveform:    waveform.GC16,
	RefreshWaveform:    waveform.GC16,
	DiffMode:           true,
	MirrorHorizontal:   true,
	SplitAreaLimit:     12,
	RefreshThreshold:   20,
	BWThreshold:        7,
	LimitBlits:         -1,
	DelayAreaThreshold: 100000,
	FrameTimeout:       25 * time.Millisecond,
	RefreshTimeout:     3 * time.Second,
}
