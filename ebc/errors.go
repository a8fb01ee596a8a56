// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import "errors"

var (
	// ErrInvalidRect is returned for empty or out of bounds damage.
	ErrInvalidRect = errors.New("ebc: invalid damage rectangle")
	// ErrUnsupportedMode is returned for resolutions the buffers can't hold.
	ErrUnsupportedMode = errors.New("ebc: unsupported display mode")
	// ErrBufferSize is returned when a raw buffer doesn't match the mode.
	ErrBufferSize = errors.New("ebc: buffer size does not match display mode")
	// ErrHalted is returned by operations on a halted device.
	ErrHalted = errors.New("ebc: device halted")
	// ErrBusy is returned by operations that need the refresh worker parked.
	ErrBusy = errors.New("ebc: refresh worker is running")
)

// ErrTimeout is recorded in Stats when the controller didn't complete a
// frame or a refresh in time.
var ErrTimeout = errors.New("ebc: controller timed out")
