/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas ties the object kinds, the global transform, the gesture
// controller and the undo stacks together behind pointer events.
//
// A Canvas is driven synchronously by one event source and is not safe for
// concurrent use.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"imgannotate/internal/corner"
	"imgannotate/internal/geom"
	applog "imgannotate/internal/log"
	"imgannotate/internal/resize"
	"imgannotate/internal/shape"
	"imgannotate/internal/storage"
	"imgannotate/internal/undo"
	"imgannotate/internal/viewport"
)

var (
	ErrNoObject          = errors.New("no such object")
	ErrGestureInProgress = errors.New("a gesture is already in progress")
)

// Tool selects what a pointer-down does.
type Tool string

const ToolSelect Tool = "select"

// CreateTool returns the tool creating objects of kind.
func CreateTool(kind string) Tool { return Tool("create:" + kind) }

// Kind returns the kind a creation tool makes, or "" for the select tool.
func (t Tool) Kind() string {
	k, _ := strings.CutPrefix(string(t), "create:")
	if k == string(t) {
		return ""
	}
	return k
}

// Hit describes what is under the pointer on pointer-down.
type Hit struct {
	ObjectID string
	Mode     resize.Mode
	Handle   corner.Code
	Role     corner.Role
}

// Journal receives every checkpoint pushed onto the undo stack.
// *storage.Journal satisfies it.
type Journal interface {
	Append(ctx context.Context, session string, cp undo.Checkpoint) error
}

type Options struct {
	Shape  shape.Config
	Undo   undo.Config
	Resize resize.Options
	// HandleTolerance is the hit radius of handles in canvas pixels.
	HandleTolerance float64
}

// DefaultOptions mirrors the configuration defaults.
var DefaultOptions = Options{
	Shape:           shape.DefaultConfig,
	Undo:            undo.Config{MinInterval: 250 * time.Millisecond},
	HandleTolerance: 6,
}

// Canvas is one annotated image.
type Canvas struct {
	opts    Options
	reg     *shape.Registry
	objects []*shape.Object // z-order, bottom first
	view    *viewport.Manager
	history *undo.Manager
	ctl     *resize.Controller

	tool       Tool
	toolFields map[string]any
	selected   string

	gesture  *resize.Gesture
	creating *shape.Object
	// records before a creation gesture, pushed only if the object survives
	before    []shape.Record
	sketching bool
	last      geom.Pt

	journal Journal
	session string
	log     *slog.Logger
}

// New creates an empty canvas for an image of the given size.
func New(imageW, imageH float64, opts Options) (*Canvas, error) {
	vm, err := viewport.New(imageW, imageH)
	if err != nil {
		return nil, err
	}
	if opts.HandleTolerance <= 0 {
		opts.HandleTolerance = DefaultOptions.HandleTolerance
	}
	c := &Canvas{
		opts:    opts,
		reg:     shape.NewRegistry(opts.Shape),
		view:    vm,
		history: undo.NewManager(opts.Undo),
		tool:    ToolSelect,
		log:     applog.WithComponent("canvas"),
	}
	ropts := opts.Resize
	if ropts.Anchors == nil {
		ropts.Anchors = c.anchors
	}
	c.ctl = resize.NewController(vm, checkpointer{c}, ropts)
	return c, nil
}

func (c *Canvas) Registry() *shape.Registry  { return c.reg }
func (c *Canvas) Viewport() *viewport.Manager { return c.view }
func (c *Canvas) History() *undo.Manager      { return c.history }
func (c *Canvas) Selected() string            { return c.selected }
func (c *Canvas) Tool() Tool                  { return c.tool }

// AttachJournal mirrors every pushed checkpoint into j under session.
func (c *Canvas) AttachJournal(j Journal, session string) {
	c.journal = j
	c.session = session
}

// SetTool switches tools. fields are handed to newly created objects (text, font size).
func (c *Canvas) SetTool(t Tool, fields map[string]any) error {
	if k := t.Kind(); k != "" {
		if _, err := c.reg.Lookup(k); err != nil {
			return err
		}
	}
	c.tool = t
	c.toolFields = fields
	return nil
}

// Objects returns the objects in z-order, bottom first.
func (c *Canvas) Objects() []*shape.Object { return slices.Clone(c.objects) }

// Object looks an object up by id.
func (c *Canvas) Object(id string) (*shape.Object, bool) {
	for _, o := range c.objects {
		if o.ID() == id {
			return o, true
		}
	}
	return nil, false
}

// Records serializes every object in z-order.
func (c *Canvas) Records() ([]shape.Record, error) {
	out := make([]shape.Record, 0, len(c.objects))
	for _, o := range c.objects {
		rec, err := o.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// HitTest resolves a canvas point to a handle of the selected object or to
// the topmost object body.
func (c *Canvas) HitTest(pt geom.Pt) (Hit, bool) {
	at := c.view.ToRealSpace(pt)
	tol := c.opts.HandleTolerance / c.scale()
	if o, ok := c.Object(c.selected); ok {
		if o.Directional() {
			for _, role := range []corner.Role{corner.RoleEnd, corner.RoleStart} {
				p := o.End()
				if role == corner.RoleStart {
					p = o.Start()
				}
				if p.Sub(at).Len() <= tol {
					return Hit{ObjectID: o.ID(), Mode: resize.ModeVector, Role: role}, true
				}
			}
		} else if h, d := corner.Nearest(o.Extent(), o.Transform().Radians(), at); d <= tol && h != corner.MM {
			return Hit{ObjectID: o.ID(), Mode: resize.ModeResize, Handle: h}, true
		}
	}
	for i := len(c.objects) - 1; i >= 0; i-- {
		o := c.objects[i]
		b := o.Extent().Normalize()
		local := at.Sub(b.Min()).Rotate(-o.Transform().Radians())
		if local.X >= -tol && local.Y >= -tol && local.X <= b.Width+tol && local.Y <= b.Height+tol {
			return Hit{ObjectID: o.ID(), Mode: resize.ModeMove, Handle: corner.MM}, true
		}
	}
	return Hit{}, false
}

// PointerDown starts a gesture at canvas point pt. With the select tool, hit
// names the object and handle under the pointer; an empty hit clears the
// selection.
func (c *Canvas) PointerDown(pt geom.Pt, hit Hit) error {
	if c.gesture != nil || c.sketching {
		return ErrGestureInProgress
	}
	c.last = pt
	if kind := c.tool.Kind(); kind != "" {
		return c.beginCreate(kind, pt)
	}
	if hit.ObjectID == "" {
		c.selected = ""
		return nil
	}
	o, ok := c.Object(hit.ObjectID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoObject, hit.ObjectID)
	}
	c.selected = o.ID()
	mode := hit.Mode
	if mode == resize.ModeResize && o.Directional() && hit.Handle == corner.MM {
		mode = resize.ModeVector
	}
	c.gesture = c.ctl.Begin(o, mode, hit.Handle, hit.Role, pt)
	return nil
}

func (c *Canvas) beginCreate(kind string, pt geom.Pt) error {
	before, err := c.Records()
	if err != nil {
		return err
	}
	o, err := c.reg.New(kind, c.view.ToRealSpace(pt), c.toolFields)
	if err != nil {
		return err
	}
	c.before = before
	c.creating = o
	c.add(o)
	if _, ok := o.Kind().(shape.Sketcher); ok {
		c.sketching = true
		return nil
	}
	if o.Directional() {
		c.gesture = c.ctl.Begin(o, resize.ModeVector, corner.BR, corner.RoleEnd, pt)
	} else {
		c.gesture = c.ctl.Begin(o, resize.ModeResize, corner.BR, corner.RoleStart, pt)
	}
	return nil
}

// PointerMove feeds one pointer sample to the active gesture.
func (c *Canvas) PointerMove(pt geom.Pt) {
	c.last = pt
	switch {
	case c.sketching:
		o := c.creating
		o.Kind().(shape.Sketcher).Extend(o, c.view.ToRealSpace(pt))
		o.Render(c.view.View())
	case c.gesture != nil:
		c.ctl.Move(c.gesture, pt)
	}
}

// PointerUp ends the active gesture. A created object that ends up below
// the minimum size is removed again without leaving a checkpoint.
func (c *Canvas) PointerUp(pt geom.Pt) {
	if c.gesture == nil && !c.sketching {
		return
	}
	if !pt.Eq(c.last, 0) {
		c.PointerMove(pt)
	}
	if c.gesture != nil {
		c.ctl.End(c.gesture)
		c.gesture = nil
	}
	c.sketching = false
	if o := c.creating; o != nil {
		c.creating = nil
		before := c.before
		c.before = nil
		if !c.reg.ValidForCreation(o) {
			c.remove(o.ID())
			c.log.Debug("discarded undersized object", slog.String("kind", o.Type()), slog.Any("layout", o.Layout()))
			return
		}
		c.push(undo.CanvasCheckpoint(c.view.Transform(), before, true))
		c.selected = o.ID()
		applog.WithOperation(c.log, "create").Debug("object created",
			slog.String("object", o.ID()), slog.String("kind", o.Type()))
	}
}

// Delete removes an object.
func (c *Canvas) Delete(id string) error {
	if _, ok := c.Object(id); !ok {
		return fmt.Errorf("%w: %s", ErrNoObject, id)
	}
	if err := c.pushFull(); err != nil {
		return err
	}
	c.remove(id)
	return nil
}

// SetOptions restyles an object.
func (c *Canvas) SetOptions(id string, opts shape.Options) error {
	o, ok := c.Object(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoObject, id)
	}
	cp, err := undo.ObjectCheckpoint(o)
	if err != nil {
		return err
	}
	// restyling in quick succession (a width slider) is one undo step
	c.record(cp, false)
	o.SetOptions(opts)
	o.Render(c.view.View())
	return nil
}

// Rotate turns the whole document by a multiple of 90 degrees.
func (c *Canvas) Rotate(by float64) error {
	cp := undo.CanvasCheckpoint(c.view.Transform(), nil, false)
	if err := c.view.Rotate(by); err != nil {
		return err
	}
	c.push(cp)
	return nil
}

// Fit fits the document into a container of the given canvas size.
func (c *Canvas) Fit(w, h float64) error {
	cp := undo.CanvasCheckpoint(c.view.Transform(), nil, false)
	if err := c.view.FitViewport(w, h); err != nil {
		return err
	}
	c.push(cp)
	return nil
}

// Crop crops to a canvas-space rectangle.
func (c *Canvas) Crop(canvasBox geom.Box) error {
	cp := undo.CanvasCheckpoint(c.view.Transform(), nil, false)
	if err := c.view.Crop(canvasBox); err != nil {
		return err
	}
	c.push(cp)
	return nil
}

func (c *Canvas) ClearCrop() {
	if c.view.Transform().Crop == nil {
		return
	}
	c.push(undo.CanvasCheckpoint(c.view.Transform(), nil, false))
	c.view.ClearCrop()
}

// Clear removes every object.
func (c *Canvas) Clear() error {
	if len(c.objects) == 0 {
		return nil
	}
	if err := c.pushFull(); err != nil {
		return err
	}
	for _, o := range c.objects {
		c.view.Untrack(o.ID())
	}
	c.objects = nil
	c.selected = ""
	return nil
}

// Undo restores the newest checkpoint. It reports false when there is
// nothing to undo.
func (c *Canvas) Undo() (bool, error) {
	if c.gesture != nil || c.sketching {
		return false, ErrGestureInProgress
	}
	cp, ok, err := c.history.Undo(c.inverse)
	if err != nil || !ok {
		return ok, err
	}
	return true, c.apply(cp)
}

func (c *Canvas) Redo() (bool, error) {
	if c.gesture != nil || c.sketching {
		return false, ErrGestureInProgress
	}
	cp, ok, err := c.history.Redo(c.inverse)
	if err != nil || !ok {
		return ok, err
	}
	return true, c.apply(cp)
}

// Snapshot captures the canvas as a persistable document.
func (c *Canvas) Snapshot() (storage.Document, error) {
	recs, err := c.Records()
	if err != nil {
		return storage.Document{}, err
	}
	w, h := c.view.ImageSize()
	return storage.Document{
		Version:     storage.DocumentVersion,
		ImageWidth:  w,
		ImageHeight: h,
		Transform:   c.view.Transform(),
		Objects:     recs,
	}, nil
}

// Load replaces the canvas content with doc and drops the undo history.
// The image size of doc must match the canvas.
func (c *Canvas) Load(doc storage.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if w, h := c.view.ImageSize(); w != doc.ImageWidth || h != doc.ImageHeight {
		return fmt.Errorf("document is for a %vx%v image, canvas is %vx%v: %w",
			doc.ImageWidth, doc.ImageHeight, w, h, viewport.ErrInvalidSize)
	}
	objs, err := c.restoreRecords(doc.Objects)
	if err != nil {
		return err
	}
	if err := c.view.Restore(doc.Transform); err != nil {
		return err
	}
	c.replaceObjects(objs)
	c.history.Clear()
	return nil
}

func (c *Canvas) scale() float64 {
	if s := c.view.Transform().Scale; s > 0 {
		return s
	}
	return 1
}

func (c *Canvas) add(o *shape.Object) {
	c.objects = append(c.objects, o)
	c.view.Track(o)
	o.Render(c.view.View())
}

func (c *Canvas) remove(id string) {
	c.objects = slices.DeleteFunc(c.objects, func(o *shape.Object) bool { return o.ID() == id })
	c.view.Untrack(id)
	if c.selected == id {
		c.selected = ""
	}
}

func (c *Canvas) replaceObjects(objs []*shape.Object) {
	for _, o := range c.objects {
		c.view.Untrack(o.ID())
	}
	c.objects = nil
	for _, o := range objs {
		c.add(o)
	}
	if _, ok := c.Object(c.selected); !ok {
		c.selected = ""
	}
}

func (c *Canvas) restoreRecords(recs []shape.Record) ([]*shape.Object, error) {
	objs := make([]*shape.Object, 0, len(recs))
	for _, rec := range recs {
		o, err := c.reg.Restore(rec)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}

func (c *Canvas) anchors(exclude string) []geom.Box {
	var out []geom.Box
	for _, o := range c.objects {
		if o.ID() != exclude && o.Transform().Rotation == 0 {
			out = append(out, o.Extent().Normalize())
		}
	}
	return out
}

func (c *Canvas) pushFull() error {
	recs, err := c.Records()
	if err != nil {
		return err
	}
	c.push(undo.CanvasCheckpoint(c.view.Transform(), recs, true))
	return nil
}

// push records the checkpoint of one discrete operation. It never merges
// with its neighbours.
func (c *Canvas) push(cp undo.Checkpoint) { c.record(cp, true) }

func (c *Canvas) record(cp undo.Checkpoint, discrete bool) {
	if discrete {
		c.history.Seal()
	}
	kept := c.history.Push(cp)
	if discrete {
		c.history.Seal()
	}
	if !kept || c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.journal.Append(ctx, c.session, cp); err != nil {
		c.log.Warn("journal append failed", slog.String("checkpoint", cp.ID), slog.Any("err", err))
	}
}

// inverse captures the current state of whatever cp is about to overwrite.
func (c *Canvas) inverse(cp undo.Checkpoint) (undo.Checkpoint, error) {
	switch cp.Type {
	case undo.TypeObject:
		o, ok := c.Object(cp.Object.ObjectID)
		if !ok {
			return undo.Checkpoint{}, fmt.Errorf("%w: %s", ErrNoObject, cp.Object.ObjectID)
		}
		return undo.ObjectCheckpoint(o)
	case undo.TypeCanvas:
		var recs []shape.Record
		if cp.Canvas.FullCanvas {
			var err error
			if recs, err = c.Records(); err != nil {
				return undo.Checkpoint{}, err
			}
		}
		return undo.CanvasCheckpoint(c.view.Transform(), recs, cp.Canvas.FullCanvas), nil
	}
	return undo.Checkpoint{}, cp.Validate()
}

func (c *Canvas) apply(cp undo.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	l := applog.WithOperation(c.log, "apply")
	switch cp.Type {
	case undo.TypeObject:
		s := cp.Object
		o, ok := c.Object(s.ObjectID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoObject, s.ObjectID)
		}
		opts, err := s.Options.Options()
		if err != nil {
			return err
		}
		o.SetOptions(opts)
		o.SetTransform(s.Transform)
		o.SetFields(s.Fields)
		o.SetLayout(s.Layout, s.Vector)
		if err := o.RestoreExtras(s.Extras); err != nil {
			return err
		}
		o.Render(c.view.View())
		l.Debug("object restored", slog.String("object", o.ID()))
	case undo.TypeCanvas:
		s := cp.Canvas
		var objs []*shape.Object
		if s.FullCanvas {
			var err error
			if objs, err = c.restoreRecords(s.Objects); err != nil {
				return err
			}
		}
		if err := c.view.Restore(s.Transform); err != nil {
			return err
		}
		if s.FullCanvas {
			c.replaceObjects(objs)
		}
		l.Debug("canvas restored", slog.Bool("full", s.FullCanvas), slog.Int("objects", len(c.objects)))
	}
	return nil
}

// checkpointer saves an object checkpoint on the first move of a gesture.
// Objects being created are covered by the canvas checkpoint taken for the
// creation instead.
type checkpointer struct{ c *Canvas }

func (k checkpointer) SaveCheckpoint(t resize.Target) {
	c := k.c
	if c.creating != nil && c.creating.ID() == t.ID() {
		return
	}
	o, ok := c.Object(t.ID())
	if !ok {
		return
	}
	cp, err := undo.ObjectCheckpoint(o)
	if err != nil {
		c.log.Error("checkpoint failed", slog.String("object", o.ID()), slog.Any("err", err))
		return
	}
	c.push(cp)
}
