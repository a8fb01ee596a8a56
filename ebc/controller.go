// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"

	"github.com/GermanBionicSystems/epaper/waveform"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// FrameMode selects how the controller interprets a Frame.
type FrameMode int

const (
	// Global runs a whole waveform over the panel, applying the LUT to
	// Prev and Next for Frames frames.
	Global FrameMode = iota
	// Phases runs one frame applying the LUT to Prev and Next at the phase
	// number of every pixel in Phase.
	Phases
	// Direct runs one frame emitting the 2-bit drive signals in Phase, four
	// pixels per byte.
	Direct
)

func (m FrameMode) String() string {
	switch m {
	case Global:
		return "global"
	case Phases:
		return "phases"
	case Direct:
		return "direct"
	default:
		return fmt.Sprintf("FrameMode(%d)", int(m))
	}
}

// Frame is the work handed to the controller.
//
// The buffers stay owned by the Context; the controller must not keep them
// after signaling completion.
type Frame struct {
	Mode FrameMode
	// Number is the frame number within the refresh.
	Number int
	// Frames is the number of frames to run, NumPhases() of the LUT for a
	// global refresh and 1 otherwise.
	Frames int
	// Prev and Next are nibble-packed 4-bit planes, width/2 bytes per line.
	Prev, Next []byte
	// Phase is the phase buffer; width bytes per line in Phases mode,
	// width/4 in Direct mode. nil in Global mode.
	Phase []byte
	// Diff asks the controller to keep pixels that don't change level
	// neutral.
	Diff bool
}

// Timing describes the panel to the controller.
type Timing struct {
	Width, Height int
	// PixelClock is the source clock of the panel interface.
	PixelClock physic.Frequency
}

// Controller is the display controller the refresh worker drives.
type Controller interface {
	conn.Resource
	// Configure sets up the panel geometry.
	Configure(t Timing) error
	// LoadWaveform makes l the LUT used for the next frames.
	LoadWaveform(l waveform.LUT) error
	// Start starts f and returns immediately. done.Complete() must be
	// called once f is displayed.
	Start(f *Frame, done *Completion) error
}
