// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ebc drives partial and full refreshes of an electrophoretic panel
// attached to an E-Book Controller (EBC).
//
// A refresh is not atomic. Every damaged rectangle ("area") is turned into a
// sequence of per-pixel phases which are streamed to the controller frame by
// frame; each phase selects a segment of the voltage waveform moving a pixel
// from its previous gray level to its next one. Areas that overlap are
// serialized, areas that don't run concurrently so unrelated parts of the
// screen never wait for each other.
//
// The package owns the scheduling and the buffers. The controller itself is
// reached through the Controller interface; see the spictl package for a
// controller bridged over SPI and the sim package for a software panel.
//
// # Buffers
//
// A Context holds four 4-bit planes and two phase buffers for one display
// mode:
//
//   - prev: what the panel settled to,
//   - next: the target of the refresh in flight,
//   - final: the latest content drawn by the producer,
//   - phase[0], phase[1]: one byte per pixel, alternating every frame.
//
// # Modes
//
// In phase mode the controller applies the LUT itself and the phase buffers
// hold phase numbers. In direct mode the LUT is applied in software and the
// phase buffers hold 2-bit drive signals, four pixels per byte.
package ebc
