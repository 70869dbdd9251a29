/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestPointOps(t *testing.T) {
	p := P(3, 4)
	assert.Equal(t, P(4, 6), p.Add(P(1, 2)))
	assert.Equal(t, P(2, 2), p.Sub(P(1, 2)))
	assert.Equal(t, P(6, 8), p.Scale(2))
	assert.Equal(t, P(6, -4), p.Mul(P(2, -1)))
	assert.InDelta(t, 5, p.Len(), eps)

	r := P(1, 0).Rotate(math.Pi / 2)
	assert.True(t, r.Eq(P(0, 1), eps), "rotate 90: %+v", r)
	back := p.Rotate(1.234).Rotate(-1.234)
	assert.True(t, back.Eq(p, eps))
}

func TestNormalizeIdempotent(t *testing.T) {
	cases := []Box{
		B(80, 80, -20, -20),
		B(0, 0, -5, 10),
		B(10, 10, 5, -7),
		B(1, 2, 3, 4),
		B(0, 0, 0, 0),
	}
	for _, b := range cases {
		once := b.Normalize()
		twice := once.Normalize()
		assert.Equal(t, once, twice, "normalize(%+v)", b)
		assert.True(t, once.Valid())
	}
	assert.Equal(t, B(60, 60, 20, 20), B(80, 80, -20, -20).Normalize())
}

func TestNormalizeAxisAlignedIsExact(t *testing.T) {
	// a flipped height must not leak rounding noise into Left
	assert.Equal(t, B(0, 5, 10, 5), B(0, 10, 10, -5).Normalize())
	assert.Equal(t, B(-10, -5, 10, 5), B(0, 0, -10, -5).Normalize())
	assert.Equal(t, B(0, 0, 10, 10), BoxFromPoints(P(0, 10), P(10, 0)))
}

func TestNormalizeRotatedKeepsCorners(t *testing.T) {
	angle := Radians(30)
	b := B(10, 20, -40, -15)
	n := b.NormalizeRotated(angle)
	assert.True(t, n.Valid())
	// the same four physical corners, just relabelled
	want := b.Corners(angle)
	got := n.Corners(angle)
	for _, w := range want {
		found := false
		for _, g := range got {
			if g.Eq(w, 1e-6) {
				found = true
			}
		}
		assert.True(t, found, "corner %+v lost after normalize: %+v", w, got)
	}
	assert.Equal(t, n, n.NormalizeRotated(angle))
}

func TestVectorSign(t *testing.T) {
	assert.Equal(t, Vector{1, 1}, Vector{0, 0}.Sign())
	assert.Equal(t, Vector{-1, 1}, Vector{-3, 2}.Sign())
	assert.Equal(t, Vector{1, -1}, VectorOf(P(0, 10), P(5, 0)).Sign())
}

func TestBoxUnionAndContains(t *testing.T) {
	u := B(0, 0, 10, 10).Union(B(20, -5, -5, 10))
	assert.Equal(t, B(0, -5, 20, 15), u)
	assert.True(t, B(10, 10, -10, -10).Contains(P(5, 5)))
	assert.False(t, B(0, 0, 10, 10).Contains(P(11, 5)))
	assert.Equal(t, B(15, 25, 90, 40), B(10, 20, 100, 50).Inset(5, 5))
}

func TestBoundsOfRotatedBox(t *testing.T) {
	b := B(0, 0, 10, 20).Bounds(Radians(90))
	assert.True(t, b.Eq(B(-20, 0, 20, 10), 1e-9), "bounds %+v", b)
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	assert.Equal(t, P(12, 8), m.Apply(P(1, 1)))
	inv := m.Invert()
	assert.True(t, inv.Apply(P(12, 8)).Eq(P(1, 1), eps))
	r := Rotate(Radians(90)).Apply(P(1, 0))
	assert.True(t, r.Eq(P(0, 1), eps))
	assert.Equal(t, Identity, Affine2D{}.Invert())
}

func TestSnapBox(t *testing.T) {
	anchors := []Box{B(100, 100, 50, 50)}
	got, guides := SnapBox(B(153, 10, 20, 20), anchors, SnapOptions{Threshold: 5, SnapToEdges: true})
	assert.InDelta(t, 150, got.Left, eps)
	assert.InDelta(t, 10, got.Top, eps)
	assert.Len(t, guides, 1)
	assert.True(t, guides[0].Vertical)

	got, guides = SnapBox(B(113, 113, 20, 20), anchors, SnapOptions{Threshold: 4, SnapToCenters: true})
	assert.InDelta(t, 115, got.Left, eps)
	assert.InDelta(t, 115, got.Top, eps)
	assert.Len(t, guides, 2)

	same, none := SnapBox(B(0, 0, 5, 5), anchors, SnapOptions{})
	assert.Equal(t, B(0, 0, 5, 5), same)
	assert.Nil(t, none)
}
