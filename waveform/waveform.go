// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package waveform describes the electrophoretic waveform lookup tables
// (LUTs) consumed by the EBC refresh engine.
//
// A LUT maps a phase number, the previous 4-bit gray level and the next
// 4-bit gray level of a pixel to a 2-bit drive signal. How the tables are
// stored on disk is not the concern of this package; a Source hands out
// tables that are already decoded.
package waveform

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Waveform selects a family of transitions in a waveform file.
type Waveform int

// Waveforms known to EBC waveform files.
const (
	// Reset initializes the panel to white regardless of its contents.
	Reset Waveform = iota
	// A2 does fast transitions between black and white only.
	A2
	// DU transitions 16-level grayscale to monochrome.
	DU
	// DU4 transitions 16-level grayscale to 4-level grayscale.
	DU4
	// GC16 is high quality but flashy 16-level grayscale.
	GC16
	// GCC16 is less flashy 16-level grayscale.
	GCC16
	// GL16 is less flashy 16-level grayscale.
	GL16
	// GLR16 is GL16 plus anti-ghosting.
	GLR16
	// GLD16 is GL16 plus anti-ghosting.
	GLD16
)

var names = [...]string{"reset", "a2", "du", "du4", "gc16", "gcc16", "gl16", "glr16", "gld16"}

func (w Waveform) String() string {
	if w >= 0 && int(w) < len(names) {
		return names[w]
	}
	return fmt.Sprintf("Waveform(%d)", int(w))
}

// Set sets the Waveform to a value represented by the string s. Set
// implements the flag.Value interface.
func (w *Waveform) Set(s string) error {
	for i, n := range names {
		if n == s {
			*w = Waveform(i)
			return nil
		}
	}
	return fmt.Errorf("unknown waveform %q: expected one of %v", s, names)
}

// Drive signals produced by a LUT.
const (
	Neutral uint8 = 0
	ToBlack uint8 = 1
	ToWhite uint8 = 2
)

const (
	// MaxPhases is the number of phases addressable by a phase byte.
	MaxPhases = 256
	// LastPhase is the phase number written once an area ran through its
	// waveform. Its row is all zeroes in every table.
	LastPhase = MaxPhases - 1
	// PackedSize is the size in bytes of a packed LUT: 256 phases times 16
	// next levels, one 32-bit word of 16 two-bit signals each.
	PackedSize = MaxPhases * 16 * 4
)

// LUT is a decoded waveform table.
type LUT interface {
	// NumPhases is the number of phases the waveform runs through. The last
	// one is always neutral.
	NumPhases() int
	// Lookup returns the drive signal for a pixel going from prev to next
	// during phase.
	Lookup(phase, prev, next uint8) uint8
}

var (
	// ErrNotNeutral is returned when the last phase of a table drives pixels.
	ErrNotNeutral = errors.New("waveform: last phase is not neutral")
	// ErrNotFound is returned by a Source that has no table for a request.
	ErrNotFound = errors.New("waveform: no table for waveform")
)

// Source selects the table for a waveform at a given panel temperature.
type Source interface {
	Select(w Waveform, t physic.Temperature) (LUT, error)
}

// Fixed is a Source that ignores the temperature.
type Fixed map[Waveform]LUT

// Select implements Source.
func (f Fixed) Select(w Waveform, _ physic.Temperature) (LUT, error) {
	if l, ok := f[w]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w %s", ErrNotFound, w)
}

// Range holds the tables valid for temperatures in [Min, Max).
type Range struct {
	Min, Max physic.Temperature
	LUTs     Fixed
}

// Table is a Source of temperature ranges, searched in order.
type Table []Range

// Select implements Source.
//
// Temperatures below the first range or above the last are clamped to it,
// so a sensor glitch never leaves the panel without a waveform.
func (t Table) Select(w Waveform, temp physic.Temperature) (LUT, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("%w %s: empty table", ErrNotFound, w)
	}
	r := &t[len(t)-1]
	if temp < t[0].Min {
		r = &t[0]
	} else {
		for i := range t {
			if temp >= t[i].Min && temp < t[i].Max {
				r = &t[i]
				break
			}
		}
	}
	return r.LUTs.Select(w, temp)
}
