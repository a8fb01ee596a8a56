// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spictl

import (
	"bytes"
	"encoding/binary"

	"github.com/GermanBionicSystems/epaper/ebc"
	"github.com/GermanBionicSystems/epaper/waveform"
	"periph.io/x/conn/v3/physic"
)

// Commands
const (
	configure  byte = 0x01
	loadLUT    byte = 0x02
	writePrev  byte = 0x10
	writeNext  byte = 0x11
	writePhase byte = 0x12
	startFrame byte = 0x20
	deepSleep  byte = 0x30
)

// Flags for the startFrame command
const (
	frameDiff byte = 1 << iota
)

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	readBusy()
}

func configureBridge(ctrl controller, t ebc.Timing) {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:], uint16(t.Width))
	binary.BigEndian.PutUint16(buf[2:], uint16(t.Height))
	binary.BigEndian.PutUint32(buf[4:], uint32(t.PixelClock/physic.KiloHertz))

	ctrl.readBusy()
	ctrl.sendCommand(configure)
	ctrl.sendData(buf[:])
}

// uploadLUT sends the phases of p the waveform runs through; the bridge
// treats the others as neutral.
func uploadLUT(ctrl controller, p *waveform.Packed) {
	n := p.NumPhases()
	data := make([]byte, 2, 2+n*64)
	binary.BigEndian.PutUint16(data, uint16(n))
	data = append(data, p.Bytes()[:n*64]...)

	ctrl.readBusy()
	ctrl.sendCommand(loadLUT)
	ctrl.sendData(data)
}

// planes caches what the bridge holds, to skip unchanged uploads.
type planes struct {
	prev, next []byte
}

func (p *planes) invalidate() {
	p.prev = p.prev[:0]
	p.next = p.next[:0]
}

func writePlane(ctrl controller, cmd byte, cache *[]byte, data []byte) {
	if len(*cache) != 0 && bytes.Equal(*cache, data) {
		return
	}
	ctrl.sendCommand(cmd)
	ctrl.sendData(data)
	*cache = append((*cache)[:0], data...)
}

// sendFrame uploads the planes f needs and starts it.
//
// The caller must invalidate p when an error occurred.
func sendFrame(ctrl controller, p *planes, f *ebc.Frame) {
	ctrl.readBusy()
	if f.Mode != ebc.Direct {
		writePlane(ctrl, writePrev, &p.prev, f.Prev)
		writePlane(ctrl, writeNext, &p.next, f.Next)
	}
	if f.Mode != ebc.Global {
		ctrl.sendCommand(writePhase)
		ctrl.sendData(f.Phase)
	}

	var flags byte
	if f.Diff {
		flags |= frameDiff
	}
	frames := f.Frames
	if frames < 1 {
		frames = 1
	}
	ctrl.sendCommand(startFrame)
	ctrl.sendData([]byte{byte(f.Mode), flags, byte(frames >> 8), byte(frames)})
}

func sleep(ctrl controller) {
	ctrl.readBusy()
	ctrl.sendCommand(deepSleep)
}
