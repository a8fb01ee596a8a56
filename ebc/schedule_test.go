// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ebc

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// scheduleAll schedules the pending areas of l at frame like the refresh
// worker does.
func scheduleAll(s *scheduler, l areaList, frame int) areaList {
	s.splits = 0
	for i := 0; i < len(l); {
		if l[i].FrameBegin == Pending && !s.schedule(&l, i, frame) {
			l.removeAt(i)
			continue
		}
		i++
	}
	return l
}

func area(x0, y0, x1, y1, begin int) *Area {
	return &Area{Clip: image.Rect(x0, y0, x1, y1), FrameBegin: begin}
}

func flatten(l areaList) []Area {
	out := make([]Area, len(l))
	for i, a := range l {
		out[i] = *a
	}
	return out
}

func TestScheduleDisjoint(t *testing.T) {
	s := &scheduler{numPhases: 16, splitLimit: 12}
	got := scheduleAll(s, areaList{
		area(0, 0, 10, 10, 3),
		area(20, 0, 30, 10, Pending),
		area(0, 20, 10, 30, Pending),
	}, 7)
	want := []Area{
		{Clip: image.Rect(0, 0, 10, 10), FrameBegin: 3},
		{Clip: image.Rect(20, 0, 30, 10), FrameBegin: 7},
		{Clip: image.Rect(0, 20, 10, 30), FrameBegin: 7},
	}
	if diff := cmp.Diff(flatten(got), want); diff != "" {
		t.Fatalf("schedule() difference (-got +want):\n%s", diff)
	}
}

func TestScheduleFinishedIgnored(t *testing.T) {
	s := &scheduler{numPhases: 4, splitLimit: 12}
	got := scheduleAll(s, areaList{
		area(0, 0, 10, 10, 0),
		area(0, 0, 10, 10, Pending),
	}, 4)
	if len(got) != 2 || got[1].FrameBegin != 4 {
		t.Fatalf("got %v, want the second area at frame 4", got)
	}
}

func TestScheduleContainedInPending(t *testing.T) {
	s := &scheduler{numPhases: 16, splitLimit: 12}
	got := scheduleAll(s, areaList{
		area(0, 0, 100, 100, Pending),
		area(10, 10, 20, 20, Pending),
	}, 5)
	want := []Area{{Clip: image.Rect(0, 0, 100, 100), FrameBegin: 5}}
	if diff := cmp.Diff(flatten(got), want); diff != "" {
		t.Fatalf("schedule() difference (-got +want):\n%s", diff)
	}
}

func TestScheduleContainedInStarted(t *testing.T) {
	data := []struct {
		name      string
		redundant bool
		want      []Area
	}{
		{
			"redundant",
			true,
			[]Area{{Clip: image.Rect(0, 0, 100, 100), FrameBegin: 2}},
		},
		{
			"newer content",
			false,
			[]Area{
				{Clip: image.Rect(0, 0, 100, 100), FrameBegin: 2},
				{Clip: image.Rect(10, 10, 20, 20), FrameBegin: 18},
			},
		},
	}
	for _, tc := range data {
		t.Run(tc.name, func(t *testing.T) {
			var asked []image.Rectangle
			s := &scheduler{
				numPhases:  16,
				splitLimit: 12,
				redundant: func(r image.Rectangle) bool {
					asked = append(asked, r)
					return tc.redundant
				},
			}
			got := scheduleAll(s, areaList{
				area(0, 0, 100, 100, 2),
				area(10, 10, 20, 20, Pending),
			}, 5)
			if diff := cmp.Diff(flatten(got), tc.want); diff != "" {
				t.Fatalf("schedule() difference (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(asked, []image.Rectangle{image.Rect(10, 10, 20, 20)}); diff != "" {
				t.Fatalf("redundant() calls difference (-got +want):\n%s", diff)
			}
		})
	}
}

// A refresh of A started at frame 10 and B overlaps its corner at frame 12:
// the three pieces of B outside A start right away, the overlapping piece
// waits for A to finish.
func TestScheduleSplitAroundStarted(t *testing.T) {
	s := &scheduler{numPhases: 16, splitLimit: 12}
	got := scheduleAll(s, areaList{
		area(0, 0, 100, 100, 10),
		area(50, 50, 150, 150, Pending),
	}, 12)
	want := []Area{
		{Clip: image.Rect(0, 0, 100, 100), FrameBegin: 10},
		{Clip: image.Rect(50, 50, 100, 100), FrameBegin: 26},
		{Clip: image.Rect(50, 100, 100, 150), FrameBegin: 12},
		{Clip: image.Rect(100, 50, 150, 100), FrameBegin: 12},
		{Clip: image.Rect(100, 100, 150, 150), FrameBegin: 12},
	}
	if diff := cmp.Diff(flatten(got), want); diff != "" {
		t.Fatalf("schedule() difference (-got +want):\n%s", diff)
	}
	if s.splits != 1 {
		t.Fatalf("splits = %d, want 1", s.splits)
	}
}

func TestScheduleTieBreak(t *testing.T) {
	data := []struct {
		name  string
		areas areaList
		want  int
	}{
		{
			// Nothing forces B later than O: start together.
			"together",
			areaList{
				area(0, 0, 10, 10, 5),
				area(5, 0, 15, 10, Pending),
			},
			5,
		},
		{
			// C already pushed B past the start of O: wait for O.
			"after",
			areaList{
				area(20, 0, 30, 10, 0),
				area(0, 0, 10, 10, 5),
				area(5, 0, 25, 10, Pending),
			},
			13,
		},
	}
	for _, tc := range data {
		t.Run(tc.name, func(t *testing.T) {
			s := &scheduler{numPhases: 8, splitLimit: 0}
			got := scheduleAll(s, tc.areas, 3)
			last := got[len(got)-1]
			if last.FrameBegin != tc.want {
				t.Fatalf("FrameBegin = %d, want %d", last.FrameBegin, tc.want)
			}
		})
	}
}

func TestSplitLimit(t *testing.T) {
	s := &scheduler{numPhases: 8, splitLimit: 1}
	got := scheduleAll(s, areaList{
		area(0, 0, 10, 10, 0),
		area(20, 0, 30, 10, 0),
		area(5, 5, 15, 15, Pending),
		area(25, 5, 35, 15, Pending),
	}, 2)
	if s.splits != 1 {
		t.Fatalf("splits = %d, want 1", s.splits)
	}
	// The first conflicting area got split, the second one waits.
	last := got[len(got)-1]
	if want := area(25, 5, 35, 15, 8); *last != *want {
		t.Fatalf("last area = %v, want %v", last, want)
	}
	if n := len(got); n != 2+4+1 {
		t.Fatalf("got %d areas, want 7: %v", n, got)
	}
}

func TestSplit(t *testing.T) {
	c := image.Rect(0, 0, 10, 10)
	data := []struct {
		name string
		clip image.Rectangle
		in   image.Rectangle
		want []image.Rectangle
	}{
		{
			"corner",
			c,
			image.Rect(5, 5, 10, 10),
			[]image.Rectangle{
				image.Rect(0, 0, 5, 5),
				image.Rect(0, 5, 5, 10),
				image.Rect(5, 0, 10, 5),
				image.Rect(5, 5, 10, 10),
			},
		},
		{
			"top left",
			c,
			image.Rect(0, 0, 4, 6),
			[]image.Rectangle{
				image.Rect(0, 0, 4, 6),
				image.Rect(0, 6, 4, 10),
				image.Rect(4, 0, 10, 6),
				image.Rect(4, 6, 10, 10),
			},
		},
		{
			"vertical band",
			c,
			image.Rect(5, 0, 10, 10),
			[]image.Rectangle{
				image.Rect(0, 0, 5, 10),
				image.Rect(5, 0, 10, 10),
			},
		},
		{
			"horizontal band",
			c,
			image.Rect(0, 0, 10, 3),
			[]image.Rectangle{
				image.Rect(0, 0, 10, 3),
				image.Rect(0, 3, 10, 10),
			},
		},
		{
			"interior",
			c,
			image.Rect(3, 3, 6, 6),
			[]image.Rectangle{
				image.Rect(0, 0, 3, 3),
				image.Rect(0, 3, 3, 10),
				image.Rect(3, 0, 10, 3),
				image.Rect(3, 3, 10, 10),
			},
		},
		{"covered", c, c, nil},
		{"too narrow", image.Rect(0, 0, 1, 10), image.Rect(0, 5, 1, 10), nil},
		{"too short", image.Rect(0, 0, 10, 1), image.Rect(5, 0, 10, 1), nil},
	}
	for _, tc := range data {
		t.Run(tc.name, func(t *testing.T) {
			s := &scheduler{numPhases: 16, splitLimit: 12}
			l := areaList{area(100, 100, 110, 110, 0), {Clip: tc.clip, FrameBegin: Pending}}
			ok := s.split(&l, 1, tc.in)
			if ok != (tc.want != nil) {
				t.Fatalf("split() = %t", ok)
			}
			if !ok {
				if len(l) != 2 || s.splits != 0 {
					t.Fatalf("refused split changed the list: %v", l)
				}
				return
			}
			var got []image.Rectangle
			total := 0
			for _, a := range l[2:] {
				if a.FrameBegin != Pending {
					t.Errorf("%v is not pending", a)
				}
				got = append(got, a.Clip)
				total += a.Clip.Dx() * a.Clip.Dy()
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Fatalf("split() difference (-got +want):\n%s", diff)
			}
			// The pieces tile the original exactly.
			if want := tc.clip.Dx() * tc.clip.Dy(); total != want {
				t.Fatalf("pieces cover %d pixels, want %d", total, want)
			}
			for i, a := range got {
				for _, b := range got[i+1:] {
					if a.Overlaps(b) {
						t.Fatalf("%v overlaps %v", a, b)
					}
				}
			}
		})
	}
}

func TestAreaListInsertAfter(t *testing.T) {
	a, b, c, d := area(0, 0, 2, 2, 0), area(2, 0, 4, 2, 0), area(4, 0, 6, 2, 0), area(6, 0, 8, 2, 0)
	l := areaList{a, d}
	l.insertAfter(0, b, c)
	if diff := cmp.Diff(flatten(l), []Area{*a, *b, *c, *d}); diff != "" {
		t.Fatalf("insertAfter() difference (-got +want):\n%s", diff)
	}
	l.removeAt(1)
	if diff := cmp.Diff(flatten(l), []Area{*a, *c, *d}); diff != "" {
		t.Fatalf("removeAt() difference (-got +want):\n%s", diff)
	}
}
