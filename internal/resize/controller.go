/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package resize turns pointer drags on an object's handles into new
// layouts. Deltas are worked out in the object's unrotated local frame so the
// per-handle algebra is the same at every rotation; a drag that crosses the
// opposite edge flips the box and hands the gesture over to the opposite
// handle.
package resize

import (
	"fmt"
	"log/slog"
	"math"

	"imgannotate/internal/corner"
	"imgannotate/internal/geom"
	applog "imgannotate/internal/log"
	"imgannotate/internal/shape"
	"imgannotate/internal/viewport"
)

// Mode selects what a gesture does with the pointer.
type Mode uint8

const (
	// ModeResize drags one of the nine box handles.
	ModeResize Mode = iota
	// ModeVector drags the start or end of a directional object.
	ModeVector
	// ModeMove translates the whole box.
	ModeMove
	// ModeRotate turns the object around its centre.
	ModeRotate
)

func (m Mode) String() string {
	switch m {
	case ModeVector:
		return "vector"
	case ModeMove:
		return "move"
	case ModeRotate:
		return "rotate"
	}
	return "resize"
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeResize, ModeVector, ModeMove, ModeRotate} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown gesture mode %q", s)
}

// Target is the scene-graph object a gesture acts on.
type Target interface {
	ID() string
	Layout() geom.Box
	Vector() geom.Vector
	Transform() shape.Transform
	SetLayout(b geom.Box, v geom.Vector)
	SetTransform(t shape.Transform)
	// Render re-derives the visual after a layout change.
	Render(v viewport.View)
	LaidOut() bool
	Directional() bool
}

// Projector converts canvas points to real space and hands out the view.
// *viewport.Manager satisfies it.
type Projector interface {
	ToRealSpace(canvas geom.Pt) geom.Pt
	View() viewport.View
}

// Checkpointer records the state of t before the first mutation of a gesture.
type Checkpointer interface {
	SaveCheckpoint(t Target)
}

// Options tunes the supplementary gestures.
type Options struct {
	// SnapThreshold > 0 enables smart-guide snapping while moving.
	SnapThreshold float64
	// RotateSnap > 0 snaps rotation to multiples of this many degrees.
	RotateSnap float64
	// Anchors returns the layouts to snap against, excluding the moving object.
	Anchors func(exclude string) []geom.Box
}

// Gesture is the state of one drag, captured on the first move.
type Gesture struct {
	Target Target
	Mode   Mode
	// Corner is the active handle; it swaps sides when the drag flips the box.
	Corner corner.Code
	Role   corner.Role

	OriginalLayout    geom.Box
	OriginalVector    geom.Vector
	OriginalTransform shape.Transform
	// OriginalPoint is the real-space pointer the deltas are measured from.
	OriginalPoint geom.Pt

	// Candidate is the last layout before normalization.
	Candidate geom.Box
	// Guides are the smart guides that snapped the last move.
	Guides []geom.Guide

	grab    geom.Pt
	started bool
	moves   int
}

// Dragging reports whether the gesture has seen its first move.
func (g *Gesture) Dragging() bool { return g.started }

// Controller drives gestures. It holds no per-gesture state.
type Controller struct {
	proj Projector
	cp   Checkpointer
	opts Options
	log  *slog.Logger
}

func NewController(p Projector, cp Checkpointer, opts Options) *Controller {
	return &Controller{proj: p, cp: cp, opts: opts, log: applog.WithComponent("resize")}
}

// Begin grabs handle h of t at canvas point at. Directional targets in
// ModeVector resolve their handle from role and vector instead. The target
// must have been laid out; anything else is a programming error.
func (c *Controller) Begin(t Target, mode Mode, h corner.Code, role corner.Role, at geom.Pt) *Gesture {
	if t == nil || !t.LaidOut() {
		id := "<nil>"
		if t != nil {
			id = t.ID()
		}
		panic(fmt.Sprintf("resize: gesture on object %s that was never laid out", id))
	}
	g := &Gesture{Target: t, Mode: mode, Corner: h, Role: role, grab: at}
	if mode == ModeVector {
		g.Corner = corner.FromVector(t.Vector(), role)
	}
	return g
}

// Move applies one pointer sample (canvas space) to the gesture.
func (c *Controller) Move(g *Gesture, at geom.Pt) {
	if !g.started {
		c.start(g)
	}
	g.moves++
	cur := c.proj.ToRealSpace(at)
	switch g.Mode {
	case ModeMove:
		c.move(g, cur)
	case ModeRotate:
		c.rotate(g, cur)
	default:
		c.resize(g, cur)
	}
	g.Target.Render(c.proj.View())
}

// End finishes the gesture. The checkpoint taken on the first move stays the
// only snapshot of it. It reports whether the target was changed at all.
func (c *Controller) End(g *Gesture) bool {
	changed := g.started && g.moves > 0
	if changed {
		applog.WithOperation(c.log, g.Mode.String()).Debug("gesture done",
			slog.String("object", g.Target.ID()),
			slog.Int("moves", g.moves),
			slog.Any("layout", g.Target.Layout()))
	}
	g.started = false
	return changed
}

func (c *Controller) start(g *Gesture) {
	t := g.Target
	g.OriginalLayout = t.Layout()
	g.OriginalVector = t.Vector()
	g.OriginalTransform = t.Transform()
	g.OriginalPoint = c.proj.ToRealSpace(g.grab)
	g.started = true
	if c.cp != nil {
		c.cp.SaveCheckpoint(t)
	}
}

func (c *Controller) resize(g *Gesture, cur geom.Pt) {
	tr := g.OriginalTransform
	angle := tr.Radians()
	delta := cur.Sub(g.OriginalPoint).Rotate(-angle)

	// the handle sits on the scaled extent, so the offset applies there
	cand := tr.Scaled(g.OriginalLayout).Add(g.Corner.TransformOffset(angle, delta.X, delta.Y))
	g.Candidate = tr.Unscaled(cand)

	flipped := false
	if cand.Width < 0 {
		g.Corner = g.Corner.Opposite(corner.AxisHorizontal)
		flipped = true
	}
	if cand.Height < 0 {
		g.Corner = g.Corner.Opposite(corner.AxisVertical)
		flipped = true
	}
	box := tr.Unscaled(cand.NormalizeRotated(angle))

	v := g.Target.Vector()
	if g.Mode == ModeVector {
		v = shape.VectorAt(box, g.Role, g.Corner)
	}
	g.Target.SetLayout(box, v)

	if flipped {
		// continue from what is on screen with the handle now under the cursor
		g.OriginalLayout = box
		g.OriginalVector = v
		g.OriginalPoint = cur
		applog.WithOperation(c.log, g.Mode.String()).Debug("handle flipped",
			slog.String("object", g.Target.ID()), slog.String("corner", g.Corner.String()))
	}
}

func (c *Controller) move(g *Gesture, cur geom.Pt) {
	tr := g.OriginalTransform
	box := g.OriginalLayout.Translate(cur.Sub(g.OriginalPoint))
	g.Candidate = box
	g.Guides = nil
	if c.opts.SnapThreshold > 0 && c.opts.Anchors != nil && tr.Rotation == 0 {
		var snapped geom.Box
		snapped, g.Guides = geom.SnapBox(tr.Scaled(box), c.opts.Anchors(g.Target.ID()), geom.SnapOptions{
			Threshold:     c.opts.SnapThreshold,
			SnapToEdges:   true,
			SnapToCenters: true,
		})
		box.Left, box.Top = snapped.Left, snapped.Top
	}
	g.Target.SetLayout(box, g.Target.Vector())
}

func (c *Controller) rotate(g *Gesture, cur geom.Pt) {
	b := g.OriginalLayout
	e := g.OriginalTransform.Scaled(b)
	half := geom.Pt{X: e.Width / 2, Y: e.Height / 2}
	center := b.Min().Add(half.Rotate(g.OriginalTransform.Radians()))
	from := g.OriginalPoint.Sub(center)
	to := cur.Sub(center)
	turn := geom.Degrees(math.Atan2(to.Y, to.X) - math.Atan2(from.Y, from.X))

	tr := g.OriginalTransform
	rot := tr.Rotation + turn
	if c.opts.RotateSnap > 0 {
		rot = math.Round(rot/c.opts.RotateSnap) * c.opts.RotateSnap
	}
	rot = math.Mod(rot, 360)
	if rot < 0 {
		rot += 360
	}
	tr.Rotation = rot
	origin := center.Sub(half.Rotate(geom.Radians(rot)))
	g.Target.SetTransform(tr)
	g.Target.SetLayout(geom.Box{Left: origin.X, Top: origin.Y, Width: b.Width, Height: b.Height}, g.Target.Vector())
}
