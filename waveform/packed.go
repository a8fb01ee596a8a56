// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package waveform

import (
	"encoding/binary"
	"fmt"
)

// Packed is the 4-bit packed table layout the EBC hardware LUT registers
// use. Row p, column next holds the 16 two-bit signals for every prev level.
type Packed struct {
	rows   [MaxPhases][16]uint32
	phases int
}

// NewPacked decodes a packed table of numPhases phases. buf holds
// little-endian 32-bit words, 16 per phase; phases beyond len(buf) are
// zero.
func NewPacked(buf []byte, numPhases int) (*Packed, error) {
	if numPhases < 1 || numPhases > MaxPhases {
		return nil, fmt.Errorf("waveform: %d phases out of range [1, %d]", numPhases, MaxPhases)
	}
	if len(buf)%64 != 0 || len(buf) > PackedSize {
		return nil, fmt.Errorf("waveform: packed table of %d bytes", len(buf))
	}
	p := &Packed{phases: numPhases}
	for i := 0; i < len(buf)/4; i++ {
		p.rows[i/16][i%16] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Packed) check() error {
	for _, phase := range []int{p.phases - 1, LastPhase} {
		for _, w := range p.rows[phase] {
			if w != 0 {
				return fmt.Errorf("%w (phase %d)", ErrNotNeutral, phase)
			}
		}
	}
	return nil
}

// NumPhases implements LUT.
func (p *Packed) NumPhases() int {
	return p.phases
}

// Lookup implements LUT.
func (p *Packed) Lookup(phase, prev, next uint8) uint8 {
	return uint8(p.rows[phase][next&0x0F]>>((prev&0x0F)<<1)) & 0x03
}

// Row returns the 16 words of phase, indexed by next level.
func (p *Packed) Row(phase uint8) *[16]uint32 {
	return &p.rows[phase]
}

// Bytes returns the table in register order, PackedSize bytes long.
func (p *Packed) Bytes() []byte {
	out := make([]byte, PackedSize)
	for i := 0; i < MaxPhases*16; i++ {
		binary.LittleEndian.PutUint32(out[4*i:], p.rows[i/16][i%16])
	}
	return out
}

// Linear builds a table that moves a pixel one level per phase toward its
// next level, then stays neutral. With 16 phases or more every transition
// completes.
func Linear(numPhases int) (*Packed, error) {
	if numPhases < 2 || numPhases > LastPhase {
		return nil, fmt.Errorf("waveform: %d phases out of range [2, %d]", numPhases, LastPhase)
	}
	p := &Packed{phases: numPhases}
	for phase := 0; phase < numPhases-1; phase++ {
		for next := 0; next < 16; next++ {
			var w uint32
			for prev := 0; prev < 16; prev++ {
				var s uint8
				switch d := next - prev; {
				case d > phase:
					s = ToWhite
				case -d > phase:
					s = ToBlack
				}
				w |= uint32(s) << (2 * prev)
			}
			p.rows[phase][next] = w
		}
	}
	return p, nil
}

// Pack converts any LUT to the packed layout, as needed to upload it to a
// controller.
func Pack(l LUT) (*Packed, error) {
	if p, ok := l.(*Packed); ok {
		return p, nil
	}
	n := l.NumPhases()
	if n < 1 || n > MaxPhases {
		return nil, fmt.Errorf("waveform: %d phases out of range [1, %d]", n, MaxPhases)
	}
	p := &Packed{phases: n}
	for phase := 0; phase < n; phase++ {
		for next := 0; next < 16; next++ {
			var w uint32
			for prev := 0; prev < 16; prev++ {
				w |= uint32(l.Lookup(uint8(phase), uint8(prev), uint8(next))&0x03) << (2 * prev)
			}
			p.rows[phase][next] = w
		}
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}
