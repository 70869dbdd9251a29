/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package corner

import (
	"errors"
	"math"
	"testing"

	"imgannotate/internal/geom"
)

func TestParseRoundTrip(t *testing.T) {
	for _, c := range All {
		p, err := Parse(c.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.String(), err)
		}
		if p != c {
			t.Fatalf("Parse(%q) = %v, want %v", c.String(), p, c)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "t", "tlx", "lt", "xx", "TL", "rb"} {
		if _, err := Parse(s); !errors.Is(err, ErrFormat) {
			t.Fatalf("Parse(%q) error = %v, want ErrFormat", s, err)
		}
	}
	var c Code = BR
	if err := c.UnmarshalText([]byte("zz")); err == nil {
		t.Fatalf("expected error")
	}
	if c != BR {
		t.Fatalf("failed unmarshal mutated code: %v", c)
	}
}

func TestOppositeInvolution(t *testing.T) {
	for _, c := range All {
		for _, ax := range []Axis{AxisHorizontal, AxisVertical, AxisBoth} {
			if got := c.Opposite(ax).Opposite(ax); got != c {
				t.Fatalf("opposite(opposite(%v, %v)) = %v", c, ax, got)
			}
		}
	}
}

func TestOppositeKeepsMiddle(t *testing.T) {
	for _, c := range All {
		if c.H == HMiddle && c.Opposite(AxisHorizontal) != c {
			t.Fatalf("%v flipped horizontally", c)
		}
		if c.V == VMiddle && c.Opposite(AxisVertical) != c {
			t.Fatalf("%v flipped vertically", c)
		}
	}
	if TL.Opposite(AxisBoth) != BR || MR.Opposite(AxisHorizontal) != ML || TM.Opposite(AxisVertical) != BM {
		t.Fatalf("unexpected opposites")
	}
}

func TestTransformOffsetZeroAngle(t *testing.T) {
	if got := BR.TransformOffset(0, 7, 9); got != geom.B(0, 0, 7, 9) {
		t.Fatalf("br offset = %+v", got)
	}
	got := TL.TransformOffset(0, 7, 9)
	if got != geom.B(7, 9, -7, -9) {
		t.Fatalf("tl offset = %+v", got)
	}
	if got := MM.TransformOffset(0, 7, 9); got != (geom.Box{}) {
		t.Fatalf("mm offset = %+v", got)
	}
	if got := MR.TransformOffset(0, 7, 9); got != geom.B(0, 0, 7, 0) {
		t.Fatalf("mr offset = %+v", got)
	}
}

func TestTransformOffsetRotated(t *testing.T) {
	// a left-edge drag on a box rotated 90° moves the origin straight down
	got := ML.TransformOffset(math.Pi/2, 5, 0)
	if !got.Eq(geom.B(0, 5, -5, 0), 1e-12) {
		t.Fatalf("ml at 90° = %+v", got)
	}
	// a top-edge drag at 90° moves the origin left
	got = TM.TransformOffset(math.Pi/2, 0, 5)
	if !got.Eq(geom.B(-5, 0, 0, -5), 1e-12) {
		t.Fatalf("tm at 90° = %+v", got)
	}
}

func TestFromVectorQuadrants(t *testing.T) {
	cases := []struct {
		v          geom.Vector
		start, end Code
	}{
		{geom.Vector{X: 1, Y: 1}, TL, BR},
		{geom.Vector{X: 0, Y: 0}, TL, BR},
		{geom.Vector{X: 1, Y: -1}, BL, TR},
		{geom.Vector{X: -1, Y: 1}, TR, BL},
		{geom.Vector{X: -1, Y: -1}, BR, TL},
	}
	for _, tc := range cases {
		if got := FromVector(tc.v, RoleStart); got != tc.start {
			t.Fatalf("start for %+v = %v, want %v", tc.v, got, tc.start)
		}
		if got := FromVector(tc.v, RoleEnd); got != tc.end {
			t.Fatalf("end for %+v = %v, want %v", tc.v, got, tc.end)
		}
	}
}

func TestPointAndNearest(t *testing.T) {
	b := geom.B(10, 10, 40, 20)
	if p := MR.Point(b, 0); !p.Eq(geom.P(50, 20), 1e-12) {
		t.Fatalf("mr point = %+v", p)
	}
	c, d := Nearest(b, 0, geom.P(49, 29))
	if c != BR || d > 2 {
		t.Fatalf("nearest = %v (%v)", c, d)
	}
	if r, err := ParseRole("end"); err != nil || r != RoleEnd {
		t.Fatalf("ParseRole(end) = %v, %v", r, err)
	}
	if _, err := ParseRole("middle"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}
