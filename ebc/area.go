// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"fmt"
	"image"
)

// Pending is the FrameBegin of an area that was not scheduled yet.
const Pending = -1

// Area is a damaged rectangle of the panel waiting for, or going through, a
// refresh.
type Area struct {
	// Clip is in panel coordinates.
	Clip image.Rectangle
	// FrameBegin is the frame number the refresh of this area starts at.
	FrameBegin int
}

func (a *Area) String() string {
	if a.FrameBegin == Pending {
		return fmt.Sprintf("area %v (pending)", a.Clip)
	}
	return fmt.Sprintf("area %v (frame %d)", a.Clip, a.FrameBegin)
}

// pixels returns the number of pixels covered by a.
func (a *Area) pixels() uint64 {
	return uint64(a.Clip.Dx()) * uint64(a.Clip.Dy())
}

// areaList owns its areas; an area lives in exactly one list.
type areaList []*Area

// insertAfter inserts items right after index i, keeping their order.
func (l *areaList) insertAfter(i int, items ...*Area) {
	s := *l
	n := len(items)
	s = append(s, items...)
	copy(s[i+1+n:], s[i+1:len(s)-n])
	copy(s[i+1:], items)
	*l = s
}

// removeAt removes the area at index i.
func (l *areaList) removeAt(i int) {
	s := *l
	copy(s[i:], s[i+1:])
	s[len(s)-1] = nil
	*l = s[:len(s)-1]
}

// takeAll moves every area of src to the end of l and empties src.
func (l *areaList) takeAll(src *areaList) {
	*l = append(*l, *src...)
	for i := range *src {
		(*src)[i] = nil
	}
	*src = (*src)[:0]
}
