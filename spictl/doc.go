// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package spictl drives an EBC timing bridge over SPI.
//
// The bridge is a small FPGA or microcontroller generating the panel source
// and gate signals from the planes it holds in RAM. The host uploads the
// previous, next and phase planes plus the waveform, then starts a frame.
// The bridge raises its BUSY line while a frame runs and lowers it once the
// frame is displayed.
//
// Each transfer starts with a command byte sent with D/C low, followed by
// its parameters with D/C high. Multi-byte parameters are big endian.
//
// A Raspberry Pi HAT layout is supported with NewHat.
package spictl
