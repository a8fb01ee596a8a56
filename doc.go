// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package epaper is a container for the electrophoretic display packages.
//
// ebc refreshes a panel asynchronously through a display controller; sim and
// spictl are such controllers. waveform and image4bit hold the data types
// they exchange, tps65185 reads the panel temperature. ebcdiag and termview
// help watching a panel at work.
package epaper
