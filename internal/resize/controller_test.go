/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package resize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgannotate/internal/corner"
	"imgannotate/internal/geom"
	"imgannotate/internal/shape"
	"imgannotate/internal/viewport"
)

const eps = 1e-9

type recorder struct{ ids []string }

func (r *recorder) SaveCheckpoint(t Target) { r.ids = append(r.ids, t.ID()) }

func setup(t *testing.T) (*viewport.Manager, *shape.Registry, *recorder, *Controller) {
	t.Helper()
	m, err := viewport.New(400, 300)
	require.NoError(t, err)
	rec := &recorder{}
	return m, shape.NewRegistry(shape.DefaultConfig), rec, NewController(m, rec, Options{})
}

func object(t *testing.T, r *shape.Registry, kind string, b geom.Box, v geom.Vector) *shape.Object {
	t.Helper()
	o, err := r.New(kind, b.Min(), nil)
	require.NoError(t, err)
	o.SetLayout(b, v)
	return o
}

func TestTopLeftDragAcrossFlipsToBottomRight(t *testing.T) {
	_, reg, rec, c := setup(t)
	o := object(t, reg, shape.KindRect, geom.B(10, 10, 50, 50), geom.Vector{})

	g := c.Begin(o, ModeResize, corner.TL, corner.RoleStart, geom.P(10, 10))
	assert.Empty(t, rec.ids, "checkpoint must wait for the first move")
	c.Move(g, geom.P(80, 80))

	if !g.Candidate.Eq(geom.B(80, 80, -20, -20), eps) {
		t.Fatalf("candidate = %+v", g.Candidate)
	}
	if !o.Layout().Eq(geom.B(60, 60, 20, 20), eps) {
		t.Fatalf("layout = %+v", o.Layout())
	}
	if g.Corner != corner.BR {
		t.Fatalf("corner = %v, want br", g.Corner)
	}
	assert.Equal(t, []string{o.ID()}, rec.ids)

	// keeps following the pointer from the flipped state
	c.Move(g, geom.P(85, 85))
	assert.True(t, o.Layout().Eq(geom.B(60, 60, 25, 25), eps), "%+v", o.Layout())
	// and back across the original edge
	c.Move(g, geom.P(40, 40))
	assert.True(t, o.Layout().Eq(geom.B(40, 40, 20, 20), eps), "%+v", o.Layout())
	assert.Equal(t, corner.TL, g.Corner)

	assert.True(t, c.End(g))
	assert.Len(t, rec.ids, 1)
}

func TestDirectionalEndDragFlipsVector(t *testing.T) {
	_, reg, _, c := setup(t)
	o := object(t, reg, shape.KindLine, geom.B(0, 0, 10, 10), geom.Vector{X: 1, Y: 1})
	require.True(t, o.Start().Eq(geom.P(0, 0), eps))
	require.True(t, o.End().Eq(geom.P(10, 10), eps))

	g := c.Begin(o, ModeVector, corner.MM, corner.RoleEnd, geom.P(10, 10))
	assert.Equal(t, corner.BR, g.Corner)
	c.Move(g, geom.P(-5, -5))

	assert.Equal(t, geom.Vector{X: -1, Y: -1}, o.Vector().Sign())
	assert.True(t, o.Layout().Eq(geom.B(-5, -5, 5, 5), eps), "%+v", o.Layout())
	assert.Equal(t, corner.TL, g.Corner)
	// the end follows the pointer; the start stays where it was anchored,
	// which is now the bottom-right corner of the box
	assert.True(t, o.End().Eq(geom.P(-5, -5), eps), "end %+v", o.End())
	assert.True(t, o.Start().Eq(geom.P(0, 0), eps), "start %+v", o.Start())
	b := o.Layout()
	assert.True(t, o.Start().Eq(geom.P(b.Left+b.Width, b.Top+b.Height), eps))
}

func TestDirectionalStartDrag(t *testing.T) {
	_, reg, _, c := setup(t)
	o := object(t, reg, shape.KindArrow, geom.B(0, 0, 10, 10), geom.Vector{X: 1, Y: 1})
	g := c.Begin(o, ModeVector, corner.MM, corner.RoleStart, geom.P(0, 0))
	c.Move(g, geom.P(20, -4))
	assert.True(t, o.Start().Eq(geom.P(20, -4), eps), "start %+v", o.Start())
	assert.True(t, o.End().Eq(geom.P(10, 10), eps), "end %+v", o.End())
	assert.Equal(t, geom.Vector{X: -1, Y: 1}, o.Vector().Sign())
}

func TestRotatedObjectDrag(t *testing.T) {
	_, reg, _, c := setup(t)
	o := object(t, reg, shape.KindRect, geom.B(0, 0, 100, 50), geom.Vector{})
	o.SetTransform(shape.Transform{ScaleX: 1, ScaleY: 1, Rotation: 90})

	h := corner.MR.Point(o.Layout(), o.Transform().Radians())
	require.True(t, h.Eq(geom.P(-25, 100), eps), "%+v", h)
	g := c.Begin(o, ModeResize, corner.MR, corner.RoleStart, h)
	c.Move(g, h.Add(geom.P(0, 20)))
	assert.True(t, o.Layout().Eq(geom.B(0, 0, 120, 50), eps), "%+v", o.Layout())
	c.End(g)

	o.SetLayout(geom.B(0, 0, 100, 50), geom.Vector{})
	right := corner.MR.Point(o.Layout(), o.Transform().Radians())
	h = corner.ML.Point(o.Layout(), o.Transform().Radians())
	g = c.Begin(o, ModeResize, corner.ML, corner.RoleStart, h)
	c.Move(g, h.Add(geom.P(0, 10)))
	assert.True(t, o.Layout().Eq(geom.B(0, 10, 90, 50), eps), "%+v", o.Layout())
	// the opposite edge does not move
	assert.True(t, corner.MR.Point(o.Layout(), o.Transform().Radians()).Eq(right, eps))
}

func TestPerObjectScale(t *testing.T) {
	_, reg, _, c := setup(t)
	o := object(t, reg, shape.KindEllipse, geom.B(0, 0, 10, 10), geom.Vector{})
	o.SetTransform(shape.Transform{ScaleX: 2, ScaleY: 0.5})
	o.Render(viewport.View{Transform: viewport.Transform{Scale: 1}})
	// the rendered bottom-right corner is where the drag starts
	require.True(t, o.Visual().Corners[2].Eq(geom.P(20, 5), eps), "%+v", o.Visual().Corners)
	g := c.Begin(o, ModeResize, corner.BR, corner.RoleStart, geom.P(20, 5))
	c.Move(g, geom.P(40, 10))
	assert.True(t, o.Layout().Eq(geom.B(0, 0, 20, 20), eps), "%+v", o.Layout())
	assert.True(t, o.Visual().Corners[2].Eq(geom.P(40, 10), eps), "%+v", o.Visual().Corners)
}

func TestScaledHandleStaysUnderPointer(t *testing.T) {
	m, reg, _, c := setup(t)
	o := object(t, reg, shape.KindRect, geom.B(0, 0, 10, 10), geom.Vector{})
	o.SetTransform(shape.Transform{ScaleX: 2, ScaleY: 2})
	o.Render(m.View())
	br := o.Visual().Corners[2]
	require.True(t, br.Eq(geom.P(20, 20), eps), "%+v", br)

	g := c.Begin(o, ModeResize, corner.BR, corner.RoleStart, br)
	c.Move(g, geom.P(30, 30))
	assert.True(t, o.Layout().Eq(geom.B(0, 0, 15, 15), eps), "%+v", o.Layout())
	assert.True(t, o.Visual().Corners[2].Eq(geom.P(30, 30), eps), "%+v", o.Visual().Corners)

	// across the origin: the box flips and the grabbed corner is now top-left
	c.Move(g, geom.P(-10, -10))
	assert.Equal(t, corner.TL, g.Corner)
	assert.True(t, o.Layout().Eq(geom.B(-10, -10, 5, 5), eps), "%+v", o.Layout())
	assert.True(t, o.Visual().Corners[0].Eq(geom.P(-10, -10), eps), "%+v", o.Visual().Corners)
	c.End(g)
}

func TestScaledDirectionalEnds(t *testing.T) {
	_, reg, _, c := setup(t)
	o := object(t, reg, shape.KindLine, geom.B(0, 0, 10, 10), geom.Vector{X: 1, Y: 1})
	o.SetTransform(shape.Transform{ScaleX: 3, ScaleY: 1})
	require.True(t, o.End().Eq(geom.P(30, 10), eps), "end %+v", o.End())

	g := c.Begin(o, ModeVector, corner.MM, corner.RoleEnd, o.End())
	c.Move(g, geom.P(45, 20))
	assert.True(t, o.End().Eq(geom.P(45, 20), eps), "end %+v", o.End())
	assert.True(t, o.Start().Eq(geom.P(0, 0), eps), "start %+v", o.Start())
	assert.True(t, o.Layout().Eq(geom.B(0, 0, 15, 20), eps), "%+v", o.Layout())
}

func TestPointerInRotatedViewport(t *testing.T) {
	m, reg, _, c := setup(t)
	require.NoError(t, m.Rotate(90))
	o := object(t, reg, shape.KindRect, geom.B(10, 10, 50, 50), geom.Vector{})
	g := c.Begin(o, ModeResize, corner.BR, corner.RoleStart, m.ToCanvasSpace(geom.P(60, 60)))
	c.Move(g, m.ToCanvasSpace(geom.P(70, 80)))
	assert.True(t, o.Layout().Eq(geom.B(10, 10, 60, 70), 1e-6), "%+v", o.Layout())
	// the visual was refreshed with the rotated view
	assert.InDelta(t, 90, o.Visual().Angle, eps)
}

func TestMoveSnapsToAnchors(t *testing.T) {
	m, reg, rec, _ := setup(t)
	c := NewController(m, rec, Options{
		SnapThreshold: 5,
		Anchors:       func(string) []geom.Box { return []geom.Box{geom.B(100, 100, 50, 50)} },
	})
	o := object(t, reg, shape.KindRect, geom.B(0, 0, 20, 20), geom.Vector{})
	g := c.Begin(o, ModeMove, corner.MM, corner.RoleStart, geom.P(10, 10))
	c.Move(g, geom.P(163, 40))
	assert.InDelta(t, 150, o.Layout().Left, eps)
	assert.InDelta(t, 30, o.Layout().Top, eps)
	assert.NotEmpty(t, g.Guides)
}

func TestRotateAroundCentre(t *testing.T) {
	m, reg, rec, _ := setup(t)
	c := NewController(m, rec, Options{RotateSnap: 15})
	o := object(t, reg, shape.KindRect, geom.B(0, 0, 100, 100), geom.Vector{})
	g := c.Begin(o, ModeRotate, corner.TM, corner.RoleStart, geom.P(100, 50))
	c.Move(g, geom.P(52, 100))
	assert.InDelta(t, 90, o.Transform().Rotation, eps)
	assert.True(t, o.Layout().Eq(geom.B(100, 0, 100, 100), 1e-9), "%+v", o.Layout())
	centre := o.Layout().Min().Add(geom.P(50, 50).Rotate(o.Transform().Radians()))
	assert.True(t, centre.Eq(geom.P(50, 50), 1e-9))
}

func TestEndWithoutMoveIsNoop(t *testing.T) {
	_, reg, rec, c := setup(t)
	o := object(t, reg, shape.KindRect, geom.B(0, 0, 10, 10), geom.Vector{})
	g := c.Begin(o, ModeResize, corner.BR, corner.RoleStart, geom.P(10, 10))
	assert.False(t, c.End(g))
	assert.Empty(t, rec.ids)
	assert.Equal(t, geom.B(0, 0, 10, 10), o.Layout())
}

type unplaced struct{ *shape.Object }

func (unplaced) LaidOut() bool { return false }

func TestBeginOnUnplacedObjectPanics(t *testing.T) {
	_, reg, _, c := setup(t)
	o := object(t, reg, shape.KindRect, geom.B(0, 0, 10, 10), geom.Vector{})
	assert.Panics(t, func() {
		c.Begin(unplaced{o}, ModeResize, corner.BR, corner.RoleStart, geom.P(0, 0))
	})
	assert.Panics(t, func() {
		c.Begin(nil, ModeResize, corner.BR, corner.RoleStart, geom.P(0, 0))
	})
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeResize, ModeVector, ModeMove, ModeRotate} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("spin")
	assert.Error(t, err)
}
