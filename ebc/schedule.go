// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import "image"

// scheduler assigns start frames to pending areas of a working set.
//
// An area may only start once no earlier area of the working set still
// drives one of its pixels. Conflicting areas are split so that the part
// that doesn't overlap can start right away.
type scheduler struct {
	numPhases  int
	splitLimit int
	// splits counts the splits done in the current frame.
	splits int
	// redundant reports whether the refresh in flight already targets the
	// content of r. nil means never. Only then may an area covered by a
	// started one be dropped; otherwise its newer content would be lost, so
	// it waits for the started area to end.
	redundant func(r image.Rectangle) bool
	debugf    func(format string, v ...interface{})
}

// schedule sets FrameBegin of the pending area at index i for frame number
// frame. Only the areas preceding i are considered.
//
// It returns false when the area must be removed from the list, either
// because it is covered by another area or because it was replaced by the
// pieces inserted right after it.
func (s *scheduler) schedule(areas *areaList, i, frame int) bool {
	a := (*areas)[i]
	begin := frame
	for j := 0; j < i; j++ {
		o := (*areas)[j]
		end := o.FrameBegin + s.numPhases
		if end <= begin {
			continue
		}
		in := a.Clip.Intersect(o.Clip)
		if in.Empty() {
			continue
		}
		if o.FrameBegin < frame {
			// o is already driving its pixels.
			if in == a.Clip {
				if s.redundant != nil && s.redundant(a.Clip) {
					s.logf("%v covered by started %v", a, o)
					return false
				}
				begin = max(begin, end)
				continue
			}
			if s.split(areas, i, in) {
				return false
			}
			begin = max(begin, end)
			continue
		}
		if in == a.Clip {
			// o commits final when it starts, a has nothing left to do.
			s.logf("%v covered by pending %v", a, o)
			return false
		}
		// Start together with o when possible, otherwise after it.
		if begin > o.FrameBegin {
			begin = end
		} else {
			begin = o.FrameBegin
		}
		if s.split(areas, i, in) {
			return false
		}
	}
	a.FrameBegin = begin
	return true
}

// split cuts the area at index i along the edges of in, its intersection
// with a conflicting area. The pieces are inserted after i, pending.
//
// It returns false when the area can't be split.
func (s *scheduler) split(areas *areaList, i int, in image.Rectangle) bool {
	if s.splits >= s.splitLimit {
		return false
	}
	c := (*areas)[i].Clip
	if c.Dx() < 2 || c.Dy() < 2 {
		return false
	}
	xc := in.Max.X
	if in.Min.X > c.Min.X {
		xc = in.Min.X
	}
	yc := in.Max.Y
	if in.Min.Y > c.Min.Y {
		yc = in.Min.Y
	}
	splitX := xc != c.Min.X && xc != c.Max.X
	splitY := yc != c.Min.Y && yc != c.Max.Y
	if !splitX && !splitY {
		return false
	}
	if !splitX {
		xc = c.Max.X
	}
	if !splitY {
		yc = c.Max.Y
	}
	pieces := make([]*Area, 1, 4)
	pieces[0] = &Area{Clip: image.Rect(c.Min.X, c.Min.Y, xc, yc), FrameBegin: Pending}
	if splitY {
		pieces = append(pieces, &Area{Clip: image.Rect(c.Min.X, yc, xc, c.Max.Y), FrameBegin: Pending})
	}
	if splitX {
		pieces = append(pieces, &Area{Clip: image.Rect(xc, c.Min.Y, c.Max.X, yc), FrameBegin: Pending})
	}
	if splitX && splitY {
		pieces = append(pieces, &Area{Clip: image.Rect(xc, yc, c.Max.X, c.Max.Y), FrameBegin: Pending})
	}
	areas.insertAfter(i, pieces...)
	s.splits++
	s.logf("split %v in %d", c, len(pieces))
	return true
}

func (s *scheduler) logf(format string, v ...interface{}) {
	if s.debugf != nil {
		s.debugf(format, v...)
	}
}
