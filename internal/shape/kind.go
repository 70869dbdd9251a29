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
	"errors"
	"fmt"
	"maps"
	"sort"

	"imgannotate/internal/geom"
	"imgannotate/internal/viewport"
)

// ErrUnknownKind is returned for type tags no kind is registered under.
var ErrUnknownKind = errors.New("unknown object kind")

// Kind is the capability set every object kind implements. Kinds are
// stateless apart from their configuration; per-object data lives on Object.
type Kind interface {
	Name() string
	// Directional kinds are resized by start/end role instead of box corner.
	Directional() bool
	// Instantiate prepares a fresh object created at p (real space).
	Instantiate(o *Object, p geom.Pt)
	// UpdateLayout constrains a proposed layout before it is stored.
	UpdateLayout(o *Object, b geom.Box, v geom.Vector) (geom.Box, geom.Vector)
	Render(o *Object, v viewport.View) Visual
	// IsValidForCreation reports whether a just-drawn object is big enough to keep.
	IsValidForCreation(o *Object, minSize float64) bool
	SerializeExtras(o *Object) (json.RawMessage, error)
	RestoreExtras(o *Object, raw json.RawMessage) error
}

// Sketcher is implemented by kinds that are created by collecting pointer
// samples instead of dragging a handle.
type Sketcher interface {
	Extend(o *Object, p geom.Pt)
}

// Config holds the tunables shared by the kinds.
type Config struct {
	MinSize float64
	// ArrowHeadLength <= 0 derives the length from the stroke width.
	ArrowHeadLength float64
	ArrowHeadAngle  float64 // degrees
	FontSize        float64
	Options         Options
}

var DefaultConfig = Config{MinSize: 2, ArrowHeadAngle: 30, FontSize: 16, Options: DefaultOptions}

// Registry maps type tags to kinds.
type Registry struct {
	cfg   Config
	kinds map[string]Kind
}

// NewRegistry returns a registry with all built-in kinds.
func NewRegistry(cfg Config) *Registry {
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if cfg.ArrowHeadAngle <= 0 {
		cfg.ArrowHeadAngle = DefaultConfig.ArrowHeadAngle
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = DefaultConfig.FontSize
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions
	}
	r := &Registry{cfg: cfg, kinds: map[string]Kind{}}
	r.Register(boxKind{name: KindRect})
	r.Register(boxKind{name: KindEllipse})
	r.Register(lineKind{name: KindLine})
	r.Register(lineKind{name: KindArrow, head: true, headLength: cfg.ArrowHeadLength, headAngle: cfg.ArrowHeadAngle})
	r.Register(textKind{fontSize: cfg.FontSize})
	r.Register(freehandKind{})
	return r
}

const (
	KindRect     = "rect"
	KindEllipse  = "ellipse"
	KindLine     = "line"
	KindArrow    = "arrow"
	KindText     = "text"
	KindFreehand = "freehand"
)

func (r *Registry) Config() Config { return r.cfg }

// Register adds or replaces a kind.
func (r *Registry) Register(k Kind) { r.kinds[k.Name()] = k }

func (r *Registry) Lookup(name string) (Kind, error) {
	k, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Names lists registered tags in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.kinds))
	for n := range r.kinds {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New creates an object of the named kind at p (real space) with the given
// kind fields. Most kinds start as a zero-size box at p.
func (r *Registry) New(name string, p geom.Pt, fields map[string]any) (*Object, error) {
	k, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	o := &Object{
		id:        NewObjectID(),
		kind:      k,
		transform: IdentityTransform,
		options:   r.cfg.Options,
		fields:    maps.Clone(fields),
	}
	if o.fields == nil {
		o.fields = map[string]any{}
	}
	k.Instantiate(o, p)
	return o, nil
}

// ValidForCreation applies the configured minimum size to o.
func (r *Registry) ValidForCreation(o *Object) bool {
	return o.kind.IsValidForCreation(o, r.cfg.MinSize)
}
