/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom holds the value types shared by every coordinate frame of the
// annotation canvas: points, layout boxes, orientation vectors and affine matrices.
// Everything here is pure; nothing keeps state.
package geom

import "math"

// Pt is a 2D point.
type Pt struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func P(x, y float64) Pt { return Pt{X: x, Y: y} }

func (p Pt) Add(o Pt) Pt        { return Pt{p.X + o.X, p.Y + o.Y} }
func (p Pt) Sub(o Pt) Pt        { return Pt{p.X - o.X, p.Y - o.Y} }
func (p Pt) Scale(s float64) Pt { return Pt{p.X * s, p.Y * s} }
func (p Pt) Mul(o Pt) Pt        { return Pt{p.X * o.X, p.Y * o.Y} }
func (p Pt) Len() float64       { return math.Hypot(p.X, p.Y) }
func (p Pt) Eq(o Pt, eps float64) bool {
	return math.Abs(p.X-o.X) <= eps && math.Abs(p.Y-o.Y) <= eps
}

// Rotate rotates p around the origin by rad (clockwise on a y-down surface).
func (p Pt) Rotate(rad float64) Pt {
	s, c := math.Sincos(rad)
	return Pt{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c}
}

// Vector only carries orientation: the sign of each component tells a
// directional object which diagonal of its Box runs from start to end.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VectorOf returns end - start.
func VectorOf(start, end Pt) Vector { return Vector{X: end.X - start.X, Y: end.Y - start.Y} }

// Sign collapses v to unit components; zero counts as positive.
func (v Vector) Sign() Vector {
	s := Vector{X: 1, Y: 1}
	if v.X < 0 {
		s.X = -1
	}
	if v.Y < 0 {
		s.Y = -1
	}
	return s
}

// Box is an object's layout rectangle in real space. Width and Height can go
// negative while a drag is in progress; Normalize brings them back.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func B(left, top, w, h float64) Box { return Box{Left: left, Top: top, Width: w, Height: h} }

func (b Box) Min() Pt    { return Pt{b.Left, b.Top} }
func (b Box) Max() Pt    { return Pt{b.Left + b.Width, b.Top + b.Height} }
func (b Box) Center() Pt { return Pt{b.Left + b.Width/2, b.Top + b.Height/2} }

// Add applies a {leftΔ, topΔ, widthΔ, heightΔ} offset.
func (b Box) Add(d Box) Box {
	return Box{Left: b.Left + d.Left, Top: b.Top + d.Top, Width: b.Width + d.Width, Height: b.Height + d.Height}
}

func (b Box) Translate(d Pt) Box { return Box{Left: b.Left + d.X, Top: b.Top + d.Y, Width: b.Width, Height: b.Height} }

func (b Box) Contains(p Pt) bool {
	n := b.Normalize()
	return p.X >= n.Left && p.Y >= n.Top && p.X <= n.Left+n.Width && p.Y <= n.Top+n.Height
}

// Inset returns a box inset by dx,dy on all sides (negative grows).
func (b Box) Inset(dx, dy float64) Box {
	return Box{Left: b.Left + dx, Top: b.Top + dy, Width: b.Width - 2*dx, Height: b.Height - 2*dy}
}

// Union returns the minimal box containing both.
func (b Box) Union(o Box) Box {
	b, o = b.Normalize(), o.Normalize()
	minX := math.Min(b.Left, o.Left)
	minY := math.Min(b.Top, o.Top)
	maxX := math.Max(b.Left+b.Width, o.Left+o.Width)
	maxY := math.Max(b.Top+b.Height, o.Top+o.Height)
	return Box{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
}

// Normalize flips negative dimensions and moves Left/Top to the real minimum.
func (b Box) Normalize() Box { return b.NormalizeRotated(0) }

// NormalizeRotated is Normalize for a box whose local axes are rotated by
// angle radians: Left/Top is the rotated origin, so a flipped edge moves it
// along the rotated x axis (cos, sin) for width or the rotated y axis
// (-sin, cos) for height.
func (b Box) NormalizeRotated(angle float64) Box {
	s, c := math.Sincos(angle)
	if b.Width < 0 {
		b.Left += b.Width * c
		b.Top += b.Width * s
		b.Width = -b.Width
	}
	if b.Height < 0 {
		b.Left -= b.Height * s
		b.Top += b.Height * c
		b.Height = -b.Height
	}
	return b
}

func (b Box) Valid() bool { return b.Width >= 0 && b.Height >= 0 }

// BoxFromPoints returns the normalized box spanned by two points.
func BoxFromPoints(a, c Pt) Box {
	return Box{Left: a.X, Top: a.Y, Width: c.X - a.X, Height: c.Y - a.Y}.Normalize()
}

// Corners returns the four corners of b in real space when b is rotated by
// angle radians around its Left/Top origin: tl, tr, br, bl.
func (b Box) Corners(angle float64) [4]Pt {
	o := b.Min()
	return [4]Pt{
		o,
		o.Add(Pt{b.Width, 0}.Rotate(angle)),
		o.Add(Pt{b.Width, b.Height}.Rotate(angle)),
		o.Add(Pt{0, b.Height}.Rotate(angle)),
	}
}

// Bounds is the axis-aligned box around b rotated by angle radians.
func (b Box) Bounds(angle float64) Box {
	cs := b.Corners(angle)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range cs {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	return Box{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}
}

func (b Box) Eq(o Box, eps float64) bool {
	return math.Abs(b.Left-o.Left) <= eps && math.Abs(b.Top-o.Top) <= eps &&
		math.Abs(b.Width-o.Width) <= eps && math.Abs(b.Height-o.Height) <= eps
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse of m, or Identity if m is singular.
func (m Affine2D) Invert() Affine2D {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	inv := 1 / det
	return Affine2D{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }
func Rotate(rad float64) Affine2D {
	s, c := math.Sincos(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

func Radians(deg float64) float64 { return deg * math.Pi / 180 }
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Round rounds v to n decimal places deterministically.
func Round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
