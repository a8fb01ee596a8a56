// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebcdiag

import "fmt"

// ImageFormat is the encoding of the images sent to clients.
type ImageFormat int

const (
	PNG ImageFormat = iota
	JPEG

	// DefaultFormat is the format used when not set explicitly in options or
	// as a URL parameter.
	DefaultFormat = PNG
)

func (f ImageFormat) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	default:
		return fmt.Sprint(int(f))
	}
}

// Set implements flag.Value.
func (f *ImageFormat) Set(value string) error {
	v, err := ImageFormatFromString(value)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f ImageFormat) mimeType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	}

	return "application/octet-stream"
}

// ImageFormatFromString returns the ImageFormat value for the given format
// abbreviation.
func ImageFormatFromString(value string) (ImageFormat, error) {
	switch value {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	}

	return DefaultFormat, fmt.Errorf("unrecognized image format %q", value)
}

// Buffer names one of the planes of a refresh context.
type Buffer int

const (
	// Prev is the settled content of the panel.
	Prev Buffer = iota
	// Next is the target of the refreshes in flight.
	Next
	// Final is the latest drawn content.
	Final
	// Phase0 and Phase1 are the double-buffered phase planes.
	Phase0
	Phase1
)

var bufferNames = [...]string{"prev", "next", "final", "phase0", "phase1"}

func (b Buffer) String() string {
	if b >= 0 && int(b) < len(bufferNames) {
		return bufferNames[b]
	}
	return fmt.Sprint(int(b))
}

// BufferFromString returns the Buffer for its name.
func BufferFromString(value string) (Buffer, error) {
	for i, n := range bufferNames {
		if n == value {
			return Buffer(i), nil
		}
	}
	return Final, fmt.Errorf("unrecognized buffer %q", value)
}
