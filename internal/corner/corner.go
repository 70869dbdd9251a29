/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package corner classifies the resize handles of a layout box.
//
// A handle is a pair (vertical, horizontal) taken from {top, middle, bottom} ×
// {left, middle, right}. The string form is two characters, vertical first:
// "tl", "tm", "tr", "ml", "mm", "mr", "bl", "bm", "br".
package corner

import (
	"errors"
	"fmt"
	"math"

	"imgannotate/internal/geom"
)

// ErrFormat is returned for anything that is not a two-character handle code.
var ErrFormat = errors.New("malformed corner code")

type Vertical uint8

const (
	Top Vertical = iota
	VMiddle
	Bottom
)

type Horizontal uint8

const (
	Left Horizontal = iota
	HMiddle
	Right
)

// Axis selects which side Opposite flips.
type Axis uint8

const (
	AxisHorizontal Axis = 1 << iota
	AxisVertical
	AxisBoth = AxisHorizontal | AxisVertical
)

// Code identifies one of the nine handles of a box.
type Code struct {
	V Vertical
	H Horizontal
}

var (
	TL = Code{Top, Left}
	TM = Code{Top, HMiddle}
	TR = Code{Top, Right}
	ML = Code{VMiddle, Left}
	MM = Code{VMiddle, HMiddle}
	MR = Code{VMiddle, Right}
	BL = Code{Bottom, Left}
	BM = Code{Bottom, HMiddle}
	BR = Code{Bottom, Right}
)

// All lists the nine codes in reading order.
var All = []Code{TL, TM, TR, ML, MM, MR, BL, BM, BR}

// Parse reads a two-character code such as "tl" or "mr".
func Parse(s string) (Code, error) {
	if len(s) != 2 {
		return Code{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	var c Code
	switch s[0] {
	case 't':
		c.V = Top
	case 'm':
		c.V = VMiddle
	case 'b':
		c.V = Bottom
	default:
		return Code{}, fmt.Errorf("%w: %q: vertical must be t, m or b", ErrFormat, s)
	}
	switch s[1] {
	case 'l':
		c.H = Left
	case 'm':
		c.H = HMiddle
	case 'r':
		c.H = Right
	default:
		return Code{}, fmt.Errorf("%w: %q: horizontal must be l, m or r", ErrFormat, s)
	}
	return c, nil
}

// MustParse is Parse for compile-time constants.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Code) String() string {
	return string([]byte{"tmb"[c.V], "lmr"[c.H]})
}

func (c Code) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Code) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = p
	return nil
}

// Opposite flips c on the given axis. Middle stays middle.
func (c Code) Opposite(axis Axis) Code {
	if axis&AxisHorizontal != 0 {
		switch c.H {
		case Left:
			c.H = Right
		case Right:
			c.H = Left
		}
	}
	if axis&AxisVertical != 0 {
		switch c.V {
		case Top:
			c.V = Bottom
		case Bottom:
			c.V = Top
		}
	}
	return c
}

// TransformOffset converts a pointer delta (dx, dy), already expressed in the
// object's unrotated local frame, into a {leftΔ, topΔ, widthΔ, heightΔ}
// offset for a box rotated by angle radians. Left/Top of the box is its rotated
// origin, so dragging a left or top edge moves the origin along the rotated
// axis while the size shrinks by the same amount.
func (c Code) TransformOffset(angle, dx, dy float64) geom.Box {
	var d geom.Box
	s, co := math.Sincos(angle)
	switch c.H {
	case Left:
		d.Width = -dx
		d.Left += dx * co
		d.Top += dx * s
	case Right:
		d.Width = dx
	}
	switch c.V {
	case Top:
		// the local y axis is (-sin, cos)
		d.Height = -dy
		d.Left -= dy * s
		d.Top += dy * co
	case Bottom:
		d.Height = dy
	}
	return d
}

// Point is the real-space position of the handle on b rotated by angle radians.
func (c Code) Point(b geom.Box, angle float64) geom.Pt {
	local := geom.Pt{X: b.Width * float64(c.H) / 2, Y: b.Height * float64(c.V) / 2}
	return b.Min().Add(local.Rotate(angle))
}

// Nearest returns the handle of b closest to p, and its distance.
func Nearest(b geom.Box, angle float64, p geom.Pt) (Code, float64) {
	best, bestD := MM, math.Inf(1)
	for _, c := range All {
		if d := c.Point(b, angle).Sub(p).Len(); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

// Role names the two ends of a directional object.
type Role uint8

const (
	RoleStart Role = iota
	RoleEnd
)

func (r Role) String() string {
	if r == RoleEnd {
		return "end"
	}
	return "start"
}

// ParseRole accepts "start" or "end".
func ParseRole(s string) (Role, error) {
	switch s {
	case "start":
		return RoleStart, nil
	case "end":
		return RoleEnd, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrFormat, s)
}

// FromVector maps a role to the diagonal corner it occupies for the given
// orientation vector. Zero components count as positive.
//
//	x≥0 y≥0: start tl, end br
//	x≥0 y<0: start bl, end tr
//	x<0 y≥0: start tr, end bl
//	x<0 y<0: start br, end tl
func FromVector(v geom.Vector, role Role) Code {
	var start Code
	switch {
	case v.X >= 0 && v.Y >= 0:
		start = TL
	case v.X >= 0:
		start = BL
	case v.Y >= 0:
		start = TR
	default:
		start = BR
	}
	if role == RoleEnd {
		return start.Opposite(AxisBoth)
	}
	return start
}
