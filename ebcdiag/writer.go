// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebcdiag

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
)

// randomBoundary generates a MIME multipart boundary compatible with RFC 2046
// (section 5.1.1).
func randomBoundary() string {
	var buf [34]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", buf[:])
}

// partWriter writes a never ending multipart/x-mixed-replace stream, one
// image per part. mime/multipart.Writer can't flush a part with its closing
// boundary, so clients would always lag one image behind.
type partWriter struct {
	u        io.Writer
	boundary string
	started  bool
	buf      bytes.Buffer
}

func newPartWriter(u io.Writer) *partWriter {
	return &partWriter{
		u:        u,
		boundary: randomBoundary(),
	}
}

// writeFrame sends body as a single part, ending with the boundary.
//
// The caller-owned headers are modified to set a Content-Length header.
func (w *partWriter) writeFrame(header textproto.MIMEHeader, body []byte) error {
	header.Set("Content-Length", strconv.Itoa(len(body)))

	w.buf.Reset()
	if !w.started {
		fmt.Fprintf(&w.buf, "--%s\r\n", w.boundary)
		w.started = true
	}
	for name, values := range header {
		for _, value := range values {
			fmt.Fprintf(&w.buf, "%s: %s\r\n", name, value)
		}
	}
	w.buf.WriteString("\r\n")
	w.buf.Write(body)
	fmt.Fprintf(&w.buf, "\r\n--%s\r\n", w.boundary)

	_, err := w.buf.WriteTo(w.u)
	return err
}
