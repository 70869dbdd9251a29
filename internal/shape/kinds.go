/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	"encoding/json"
	"fmt"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"imgannotate/internal/geom"
	"imgannotate/internal/viewport"
)

// noExtras is embedded by kinds without a payload.
type noExtras struct{}

func (noExtras) SerializeExtras(*Object) (json.RawMessage, error) { return nil, nil }
func (noExtras) RestoreExtras(*Object, json.RawMessage) error     { return nil }

func passLayout(_ *Object, b geom.Box, v geom.Vector) (geom.Box, geom.Vector) { return b, v }

// boxKind covers rect and ellipse: both are fully described by the box.
type boxKind struct {
	noExtras
	name string
}

func (k boxKind) Name() string    { return k.name }
func (boxKind) Directional() bool { return false }
func (boxKind) Instantiate(o *Object, p geom.Pt) {
	o.SetLayout(geom.Box{Left: p.X, Top: p.Y}, geom.Vector{})
}
func (boxKind) UpdateLayout(o *Object, b geom.Box, v geom.Vector) (geom.Box, geom.Vector) {
	return passLayout(o, b, v)
}
func (boxKind) Render(o *Object, v viewport.View) Visual { return baseVisual(o, v) }
func (boxKind) IsValidForCreation(o *Object, minSize float64) bool {
	b := o.Extent().Normalize()
	return b.Width > minSize && b.Height > minSize
}

// lineKind covers line and arrow.
type lineKind struct {
	noExtras
	name       string
	head       bool
	headLength float64
	headAngle  float64
}

func (k lineKind) Name() string    { return k.name }
func (lineKind) Directional() bool { return true }
func (lineKind) Instantiate(o *Object, p geom.Pt) {
	o.SetLayout(geom.Box{Left: p.X, Top: p.Y}, geom.Vector{})
}
func (lineKind) UpdateLayout(o *Object, b geom.Box, v geom.Vector) (geom.Box, geom.Vector) {
	return passLayout(o, b, v)
}

func (k lineKind) Render(o *Object, v viewport.View) Visual {
	vis := baseVisual(o, v)
	vis.Start = v.ToCanvasSpace(o.Start())
	vis.End = v.ToCanvasSpace(o.End())
	if k.head {
		vis.Head = arrowHead(vis.Start, vis.End, k.headLength, k.headAngle, vis.StrokeWidth)
	}
	return vis
}

func (lineKind) IsValidForCreation(o *Object, minSize float64) bool {
	return math.Hypot(o.Extent().Width, o.Extent().Height) > minSize
}

// arrowHead returns left wing, tip and right wing of an arrow ending at tip.
// A non-positive length scales with the stroke: 6 + 2*stroke.
func arrowHead(from, tip geom.Pt, length, angleDeg, stroke float64) []geom.Pt {
	if length <= 0 {
		length = 6 + 2*stroke
	}
	d := tip.Sub(from)
	theta := math.Atan2(d.Y, d.X)
	if d.X == 0 && d.Y == 0 {
		theta = 0
	}
	spread := geom.Radians(angleDeg)
	wing := func(a float64) geom.Pt {
		s, c := math.Sincos(a)
		return geom.Pt{X: tip.X - length*c, Y: tip.Y - length*s}
	}
	return []geom.Pt{wing(theta + spread), tip, wing(theta - spread)}
}

// textKind is a label; fields "text" and "fontSize".
type textKind struct {
	noExtras
	fontSize float64
}

func (textKind) Name() string      { return KindText }
func (textKind) Directional() bool { return false }

func (k textKind) Instantiate(o *Object, p geom.Pt) {
	if _, ok := o.fields["fontSize"]; !ok {
		o.SetField("fontSize", k.fontSize)
	}
	if _, ok := o.fields["text"]; !ok {
		o.SetField("text", "")
	}
	w, h := TextSize(textOf(o), fontSizeOf(o, k.fontSize))
	if textOf(o) == "" {
		w, h = 0, 0
	}
	o.SetLayout(geom.Box{Left: p.X, Top: p.Y, Width: w, Height: h}, geom.Vector{})
}

func (textKind) UpdateLayout(o *Object, b geom.Box, v geom.Vector) (geom.Box, geom.Vector) {
	return passLayout(o, b, v)
}

func (k textKind) Render(o *Object, v viewport.View) Visual {
	vis := baseVisual(o, v)
	scale := v.Scale
	if scale <= 0 {
		scale = 1
	}
	vis.Text = textOf(o)
	vis.FontSize = fontSizeOf(o, k.fontSize) * scale * o.transform.ScaleY
	vis.TextWidth, _ = TextSize(vis.Text, vis.FontSize)
	return vis
}

func (textKind) IsValidForCreation(o *Object, _ float64) bool { return textOf(o) != "" }

func textOf(o *Object) string {
	s, _ := o.fields["text"].(string)
	return s
}

func fontSizeOf(o *Object, def float64) float64 {
	switch v := o.fields["fontSize"].(type) {
	case float64:
		if v > 0 {
			return v
		}
	case int:
		if v > 0 {
			return float64(v)
		}
	}
	return def
}

// TextSize measures text with the fixed 7x13 face scaled to fontSize.
func TextSize(text string, fontSize float64) (w, h float64) {
	face := basicfont.Face7x13
	lineH := float64(face.Metrics().Height.Round())
	adv := float64(font.MeasureString(face, text).Round())
	k := fontSize / lineH
	return adv * k, fontSize
}

// freehandKind stores its stroke in unit coordinates of the layout box so
// that resizing the box reshapes the stroke with it.
type freehandKind struct{}

type freehandExtras struct {
	Points []geom.Pt `json:"points"`
}

func (freehandKind) Name() string      { return KindFreehand }
func (freehandKind) Directional() bool { return false }

func (freehandKind) Instantiate(o *Object, p geom.Pt) {
	o.points = []geom.Pt{{}}
	o.SetLayout(geom.Box{Left: p.X, Top: p.Y}, geom.Vector{})
}

func (freehandKind) UpdateLayout(o *Object, b geom.Box, v geom.Vector) (geom.Box, geom.Vector) {
	return passLayout(o, b, v)
}

// Extend appends a pointer sample (real space) and grows the box around it.
func (freehandKind) Extend(o *Object, p geom.Pt) {
	setRealPoints(o, append(realPoints(o), p))
}

func (freehandKind) Render(o *Object, v viewport.View) Visual {
	vis := baseVisual(o, v)
	pts := realPoints(o)
	vis.Points = make([]geom.Pt, len(pts))
	for i, p := range pts {
		vis.Points[i] = v.ToCanvasSpace(p)
	}
	return vis
}

func (freehandKind) IsValidForCreation(o *Object, minSize float64) bool {
	return len(o.points) >= 2 && math.Max(o.Extent().Width, o.Extent().Height) > minSize
}

func (freehandKind) SerializeExtras(o *Object) (json.RawMessage, error) {
	if len(o.points) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(freehandExtras{Points: o.points})
	if err != nil {
		return nil, fmt.Errorf("freehand extras: %w", err)
	}
	return b, nil
}

func (freehandKind) RestoreExtras(o *Object, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		o.points = nil
		return nil
	}
	var ex freehandExtras
	if err := json.Unmarshal(raw, &ex); err != nil {
		return fmt.Errorf("freehand extras: %w", err)
	}
	o.points = ex.Points
	return nil
}

// Points returns a freehand stroke in real space.
func (o *Object) Points() []geom.Pt { return realPoints(o) }

func realPoints(o *Object) []geom.Pt {
	a := o.transform.Radians()
	e := o.Extent()
	out := make([]geom.Pt, len(o.points))
	for i, u := range o.points {
		out[i] = e.Min().Add(geom.Pt{X: u.X * e.Width, Y: u.Y * e.Height}.Rotate(a))
	}
	return out
}

func setRealPoints(o *Object, pts []geom.Pt) {
	if len(pts) == 0 {
		o.points = nil
		return
	}
	a := o.transform.Radians()
	local := make([]geom.Pt, len(pts))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, p := range pts {
		l := p.Rotate(-a)
		local[i] = l
		minX, minY = math.Min(minX, l.X), math.Min(minY, l.Y)
		maxX, maxY = math.Max(maxX, l.X), math.Max(maxY, l.Y)
	}
	w, h := maxX-minX, maxY-minY
	o.points = make([]geom.Pt, len(local))
	for i, l := range local {
		var u geom.Pt
		if w > 0 {
			u.X = (l.X - minX) / w
		}
		if h > 0 {
			u.Y = (l.Y - minY) / h
		}
		o.points[i] = u
	}
	origin := geom.Pt{X: minX, Y: minY}.Rotate(a)
	o.SetLayout(o.transform.Unscaled(geom.Box{Left: origin.X, Top: origin.Y, Width: w, Height: h}), geom.Vector{})
}
