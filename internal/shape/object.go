/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package shape holds the annotation objects drawn over the image. Every
// object keeps its layout box in real space; its kind decides how that box is
// constrained, how it turns into something visible and what extra payload it
// carries.
package shape

import (
	"encoding/json"
	"maps"

	"imgannotate/internal/corner"
	"imgannotate/internal/geom"
	"imgannotate/internal/viewport"
)

// Transform is the local transform applied on top of the layout.
// Rotation is in degrees around the layout origin and may be any value.
type Transform struct {
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
	Rotation float64 `json:"rotation"`
}

var IdentityTransform = Transform{ScaleX: 1, ScaleY: 1}

// Radians returns the rotation in radians.
func (t Transform) Radians() float64 { return geom.Radians(t.Rotation) }

func (t Transform) factors() (sx, sy float64) {
	sx, sy = t.ScaleX, t.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

// Scaled applies the scale to the size of b. The origin is not scaled.
func (t Transform) Scaled(b geom.Box) geom.Box {
	sx, sy := t.factors()
	b.Width *= sx
	b.Height *= sy
	return b
}

// Unscaled is the inverse of Scaled.
func (t Transform) Unscaled(b geom.Box) geom.Box {
	sx, sy := t.factors()
	b.Width /= sx
	b.Height /= sy
	return b
}

// Visual is what a front end needs to paint an object, in canvas space.
type Visual struct {
	Corners     [4]geom.Pt // tl, tr, br, bl
	Angle       float64    // degrees on screen
	StrokeWidth float64
	Start, End  geom.Pt   // directional kinds
	Head        []geom.Pt // arrow: left wing, tip, right wing
	Points      []geom.Pt // freehand
	Text        string
	FontSize    float64
	TextWidth   float64
}

// Object is one annotation on the canvas.
type Object struct {
	id        string
	kind      Kind
	layout    geom.Box
	vector    geom.Vector
	transform Transform
	options   Options
	fields    map[string]any
	// points of a freehand stroke, in unit coordinates of the layout box
	points  []geom.Pt
	laidOut bool
	visual  Visual
}

func (o *Object) ID() string             { return o.id }
func (o *Object) Kind() Kind             { return o.kind }
func (o *Object) Type() string           { return o.kind.Name() }
func (o *Object) Layout() geom.Box       { return o.layout }
func (o *Object) Vector() geom.Vector    { return o.vector }
func (o *Object) Transform() Transform   { return o.transform }
func (o *Object) Options() Options       { return o.options }
func (o *Object) LaidOut() bool          { return o.laidOut }
func (o *Object) Directional() bool      { return o.kind.Directional() }
func (o *Object) Visual() Visual         { return o.visual }
func (o *Object) SetOptions(opt Options) { o.options = opt }

func (o *Object) SetTransform(t Transform) {
	if t.ScaleX == 0 {
		t.ScaleX = 1
	}
	if t.ScaleY == 0 {
		t.ScaleY = 1
	}
	o.transform = t
}

// Field returns a kind-specific field such as "text".
func (o *Object) Field(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

func (o *Object) SetField(name string, v any) {
	if o.fields == nil {
		o.fields = map[string]any{}
	}
	o.fields[name] = v
}

// SetFields replaces every kind-specific field with a copy of fields.
func (o *Object) SetFields(fields map[string]any) { o.fields = maps.Clone(fields) }

// Fields returns a copy of the kind-specific fields.
func (o *Object) Fields() map[string]any { return maps.Clone(o.fields) }

// SetLayout writes a new layout and vector through the kind's constraints.
// It marks the object as laid out.
func (o *Object) SetLayout(b geom.Box, v geom.Vector) {
	b, v = o.kind.UpdateLayout(o, b, v)
	o.layout = b
	o.vector = v
	o.laidOut = true
}

// Render re-derives the visual from the layout under the given view.
func (o *Object) Render(v viewport.View) {
	o.visual = o.kind.Render(o, v)
}

// Reproject makes Object a viewport.Projectable.
func (o *Object) Reproject(v viewport.View) { o.Render(v) }

// Extras is the opaque kind payload (freehand path data).
func (o *Object) Extras() (json.RawMessage, error) { return o.kind.SerializeExtras(o) }

func (o *Object) RestoreExtras(raw json.RawMessage) error { return o.kind.RestoreExtras(o, raw) }

// Extent is the layout with the object's scale applied: the box that is
// drawn and hit-tested, in real space and rotated around its origin.
func (o *Object) Extent() geom.Box { return o.transform.Scaled(o.layout) }

// Start is the logical start point in real space. Box kinds report the
// rotated top-left corner.
func (o *Object) Start() geom.Pt {
	return corner.FromVector(o.vector, corner.RoleStart).Point(o.Extent(), o.transform.Radians())
}

// End is the logical end point in real space.
func (o *Object) End() geom.Pt {
	return corner.FromVector(o.vector, corner.RoleEnd).Point(o.Extent(), o.transform.Radians())
}

// UpdateLayoutFromPoints sets the layout spanned by start and end and
// recomputes the vector as end - start. Points are real space; the box is
// derived in the object's rotated frame.
func (o *Object) UpdateLayoutFromPoints(start, end geom.Pt) {
	b, v := LayoutFromPoints(start, end, o.transform.Radians())
	o.SetLayout(o.transform.Unscaled(b), v)
}

// Clone copies o including its id.
func (o *Object) Clone() *Object {
	c := *o
	c.fields = maps.Clone(o.fields)
	c.points = append([]geom.Pt(nil), o.points...)
	c.visual.Head = append([]geom.Pt(nil), o.visual.Head...)
	c.visual.Points = append([]geom.Pt(nil), o.visual.Points...)
	return &c
}

// baseVisual fills the parts of a Visual every kind shares.
func baseVisual(o *Object, v viewport.View) Visual {
	var vis Visual
	for i, c := range o.Extent().Corners(o.transform.Radians()) {
		vis.Corners[i] = v.ToCanvasSpace(c)
	}
	vis.Angle = o.transform.Rotation + v.Rotation
	scale := v.Scale
	if scale <= 0 {
		scale = 1
	}
	vis.StrokeWidth = o.options.StrokeWidth * scale
	return vis
}
