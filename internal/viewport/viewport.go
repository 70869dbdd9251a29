/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport owns the document-level transform of the canvas: the
// accumulated scale, the image rotation in quarter turns and the optional
// crop. Objects keep their layout in real (image) space; the manager maps
// that space onto the visible canvas and re-projects every tracked object
// whenever the mapping changes.
package viewport

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"imgannotate/internal/geom"
	applog "imgannotate/internal/log"
)

var (
	// ErrInvalidRotation is returned for rotations that are not multiples of 90°.
	ErrInvalidRotation = errors.New("rotation must be a multiple of 90 degrees")
	// ErrInvalidSize is returned for empty container, image or crop sizes.
	ErrInvalidSize = errors.New("size must be positive")
)

// Transform is the global document transform.
type Transform struct {
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"` // degrees, multiple of 90 in [0, 360)
	// Crop is kept in real space so that it stays attached to the image
	// content through later rotations.
	Crop *geom.Box `json:"crop,omitempty"`
}

// Clone deep-copies the crop pointer.
func (t Transform) Clone() Transform {
	if t.Crop != nil {
		c := *t.Crop
		t.Crop = &c
	}
	return t
}

// View is an immutable snapshot of the mapping between real and canvas space.
// It is handed to objects explicitly on every re-projection.
type View struct {
	Transform
	CanvasWidth  float64
	CanvasHeight float64
}

// quadrant returns 0..3 for 0, 90, 180, 270 degrees.
func quadrant(deg float64) int {
	q := int(math.Round(normalizeDegrees(deg)/90)) % 4
	return q
}

func normalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// referenceOffset is the canvas corner where the image origin lands after
// rotation: 0→origin, 90→top-right, 180→bottom-right, 270→bottom-left.
func (v View) referenceOffset() geom.Pt {
	switch quadrant(v.Rotation) {
	case 1:
		return geom.Pt{X: v.CanvasWidth}
	case 2:
		return geom.Pt{X: v.CanvasWidth, Y: v.CanvasHeight}
	case 3:
		return geom.Pt{Y: v.CanvasHeight}
	}
	return geom.Pt{}
}

func (v View) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

// ToCanvasSpace maps a real-space point onto the canvas.
func (v View) ToCanvasSpace(real geom.Pt) geom.Pt {
	p := real
	if v.Crop != nil {
		p = p.Sub(v.Crop.Min())
	}
	return p.Scale(v.scale()).Rotate(geom.Radians(v.Rotation)).Add(v.referenceOffset())
}

// ToRealSpace is the inverse of ToCanvasSpace.
func (v View) ToRealSpace(canvas geom.Pt) geom.Pt {
	p := canvas.Sub(v.referenceOffset()).Rotate(-geom.Radians(v.Rotation)).Scale(1 / v.scale())
	if v.Crop != nil {
		p = p.Add(v.Crop.Min())
	}
	return p
}

// Matrix returns the real→canvas mapping as an affine matrix.
func (v View) Matrix() geom.Affine2D {
	off := v.referenceOffset()
	m := geom.Translate(off.X, off.Y).Mul(geom.Rotate(geom.Radians(v.Rotation))).Mul(geom.Scale(v.scale(), v.scale()))
	if v.Crop != nil {
		m = m.Mul(geom.Translate(-v.Crop.Left, -v.Crop.Top))
	}
	return m
}

// Projectable is anything laid out in real space that must follow the view.
type Projectable interface {
	ID() string
	Reproject(v View)
}

// Manager is the single writer of the global transform.
type Manager struct {
	imageW, imageH         float64
	containerW, containerH float64
	view                   View
	tracked                []Projectable
	log                    *slog.Logger
}

// New creates a manager for an image of the given natural size. The canvas
// starts at image size with scale 1 and no rotation.
func New(imageW, imageH float64) (*Manager, error) {
	if imageW <= 0 || imageH <= 0 {
		return nil, fmt.Errorf("image %vx%v: %w", imageW, imageH, ErrInvalidSize)
	}
	return &Manager{
		imageW: imageW,
		imageH: imageH,
		view:   View{Transform: Transform{Scale: 1}, CanvasWidth: imageW, CanvasHeight: imageH},
		log:    applog.WithComponent("viewport"),
	}, nil
}

func (m *Manager) View() View           { v := m.view; v.Transform = v.Transform.Clone(); return v }
func (m *Manager) Transform() Transform { return m.view.Transform.Clone() }
func (m *Manager) ImageSize() (w, h float64) {
	return m.imageW, m.imageH
}
func (m *Manager) CanvasSize() (w, h float64) { return m.view.CanvasWidth, m.view.CanvasHeight }

func (m *Manager) ToCanvasSpace(real geom.Pt) geom.Pt   { return m.view.ToCanvasSpace(real) }
func (m *Manager) ToRealSpace(canvas geom.Pt) geom.Pt   { return m.view.ToRealSpace(canvas) }
func (m *Manager) ToRealBox(canvasBox geom.Box) geom.Box { return m.realBox(canvasBox) }

// Track registers p for re-projection and projects it once with the current view.
func (m *Manager) Track(p Projectable) {
	for i, t := range m.tracked {
		if t.ID() == p.ID() {
			m.tracked[i] = p
			p.Reproject(m.View())
			return
		}
	}
	m.tracked = append(m.tracked, p)
	p.Reproject(m.View())
}

// Untrack removes the object with the given id; unknown ids are ignored.
func (m *Manager) Untrack(id string) {
	for i, t := range m.tracked {
		if t.ID() == id {
			m.tracked = append(m.tracked[:i], m.tracked[i+1:]...)
			return
		}
	}
}

// Reproject pushes the current view into every tracked object.
func (m *Manager) Reproject() {
	v := m.View()
	for _, p := range m.tracked {
		p.Reproject(v)
	}
}

// contentSize is the real-space size of the visible content (crop or full
// image) as it appears after rotation.
func (m *Manager) contentSize(rotation float64) (w, h float64) {
	w, h = m.imageW, m.imageH
	if c := m.view.Crop; c != nil {
		w, h = c.Width, c.Height
	}
	if quadrant(rotation)%2 == 1 {
		w, h = h, w
	}
	return w, h
}

// fitSize returns the canvas size for the content under rotation: fitted to
// the container when one is known, otherwise at the current scale.
func (m *Manager) fitSize(rotation float64) (w, h float64) {
	cw, ch := m.contentSize(rotation)
	if m.containerW <= 0 || m.containerH <= 0 {
		return cw * m.view.scale(), ch * m.view.scale()
	}
	s := math.Min(m.containerW/cw, m.containerH/ch)
	return cw * s, ch * s
}

// Rotate turns the image by a multiple of 90 degrees. The scale change caused
// by refitting the rotated image is folded into the accumulated scale.
func (m *Manager) Rotate(by float64) error {
	l := applog.WithOperation(m.log, "rotate")
	if math.Mod(by, 90) != 0 || math.IsNaN(by) || math.IsInf(by, 0) {
		l.Warn("rejected rotation", slog.Float64("by", by))
		return fmt.Errorf("rotate by %v: %w", by, ErrInvalidRotation)
	}
	target := normalizeDegrees(m.view.Rotation + by)
	oldW := m.view.CanvasWidth
	if quadrant(by)%2 == 1 {
		oldW = m.view.CanvasHeight
	}
	w, h := m.fitSize(target)
	ratio := 1.0
	if oldW > 0 {
		ratio = w / oldW
	}
	m.view.Rotation = target
	m.view.Scale = m.view.scale() * ratio
	m.view.CanvasWidth, m.view.CanvasHeight = w, h
	l.Debug("rotated", slog.Float64("rotation", target), slog.Float64("scale", m.view.Scale), slog.Float64("ratio", ratio))
	m.Reproject()
	return nil
}

// FitViewport refits the canvas into a container of the given size,
// preserving the aspect ratio under the current rotation.
func (m *Manager) FitViewport(containerW, containerH float64) error {
	if containerW <= 0 || containerH <= 0 {
		return fmt.Errorf("container %vx%v: %w", containerW, containerH, ErrInvalidSize)
	}
	m.containerW, m.containerH = containerW, containerH
	w, h := m.fitSize(m.view.Rotation)
	ratio := 1.0
	if m.view.CanvasWidth > 0 {
		ratio = w / m.view.CanvasWidth
	}
	m.view.Scale = m.view.scale() * ratio
	m.view.CanvasWidth, m.view.CanvasHeight = w, h
	applog.WithOperation(m.log, "fit").Debug("fitted",
		slog.Float64("w", w), slog.Float64("h", h), slog.Float64("scale", m.view.Scale))
	m.Reproject()
	return nil
}

// Crop commits a crop rectangle given in canvas space. The crop is clamped to
// the current content and stored in real space.
func (m *Manager) Crop(canvasBox geom.Box) error {
	real := m.realBox(canvasBox)
	bounds := geom.B(0, 0, m.imageW, m.imageH)
	if c := m.view.Crop; c != nil {
		bounds = *c
	}
	real = intersect(real, bounds)
	if real.Width <= 0 || real.Height <= 0 {
		return fmt.Errorf("crop %+v: %w", canvasBox, ErrInvalidSize)
	}
	m.view.Crop = &real
	m.refitContent()
	applog.WithOperation(m.log, "crop").Debug("cropped", slog.Any("crop", real))
	m.Reproject()
	return nil
}

// ClearCrop drops the crop and shows the whole image again.
func (m *Manager) ClearCrop() {
	if m.view.Crop == nil {
		return
	}
	m.view.Crop = nil
	m.refitContent()
	m.Reproject()
}

// Restore replaces the transform wholesale (undo, document load). The canvas
// size is derived from the transform, not refitted.
func (m *Manager) Restore(t Transform) error {
	if math.Mod(t.Rotation, 90) != 0 {
		return fmt.Errorf("restore rotation %v: %w", t.Rotation, ErrInvalidRotation)
	}
	t = t.Clone()
	t.Rotation = normalizeDegrees(t.Rotation)
	if t.Scale <= 0 {
		t.Scale = 1
	}
	m.view.Transform = t
	w, h := m.contentSize(t.Rotation)
	m.view.CanvasWidth, m.view.CanvasHeight = w*t.Scale, h*t.Scale
	m.Reproject()
	return nil
}

// refitContent sets scale directly from the fitted canvas after the content
// itself changed size.
func (m *Manager) refitContent() {
	cw, _ := m.contentSize(m.view.Rotation)
	w, h := m.fitSize(m.view.Rotation)
	m.view.Scale = w / cw
	m.view.CanvasWidth, m.view.CanvasHeight = w, h
}

func (m *Manager) realBox(canvasBox geom.Box) geom.Box {
	a := m.view.ToRealSpace(canvasBox.Min())
	c := m.view.ToRealSpace(canvasBox.Max())
	return geom.BoxFromPoints(a, c)
}

func intersect(a, b geom.Box) geom.Box {
	left := math.Max(a.Left, b.Left)
	top := math.Max(a.Top, b.Top)
	right := math.Min(a.Left+a.Width, b.Left+b.Width)
	bottom := math.Min(a.Top+a.Height, b.Top+b.Height)
	return geom.Box{Left: left, Top: top, Width: right - left, Height: bottom - top}
}
