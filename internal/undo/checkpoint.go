/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"imgannotate/internal/geom"
	"imgannotate/internal/shape"
	"imgannotate/internal/viewport"
)

// Checkpoint types.
const (
	TypeObject = "object"
	TypeCanvas = "canvas"
)

// Checkpoint is a tagged union: exactly one of Object and Canvas is set,
// matching Type.
type Checkpoint struct {
	ID     string       `json:"id"`
	Type   string       `json:"type"`
	TS     time.Time    `json:"ts"`
	Object *ObjectState `json:"object,omitempty"`
	Canvas *CanvasState `json:"canvas,omitempty"`
}

// ObjectState is everything needed to put one object back.
type ObjectState struct {
	ObjectID  string          `json:"objectId"`
	Layout    geom.Box        `json:"layout"`
	Vector    geom.Vector     `json:"vector"`
	Options   OptionsState    `json:"options"`
	Transform shape.Transform `json:"transform"`
	Extras    json.RawMessage `json:"extras,omitempty"`
	// Fields are the kind fields (text, font size).
	Fields map[string]any `json:"fields,omitempty"`
}

// OptionsState is the serializable form of shape.Options.
type OptionsState struct {
	Stroke      string  `json:"stroke"`
	Fill        string  `json:"fill"`
	StrokeWidth float64 `json:"strokeWidth"`
}

func optionsState(o shape.Options) OptionsState {
	return OptionsState{Stroke: o.Stroke.Hex(), Fill: o.Fill.Hex(), StrokeWidth: o.StrokeWidth}
}

// Options converts back to shape.Options.
func (s OptionsState) Options() (shape.Options, error) {
	stroke, err := shape.ParseHex(s.Stroke)
	if err != nil {
		return shape.Options{}, err
	}
	fill, err := shape.ParseHex(s.Fill)
	if err != nil {
		return shape.Options{}, err
	}
	return shape.Options{Stroke: stroke, Fill: fill, StrokeWidth: s.StrokeWidth}, nil
}

// CanvasState captures the global transform and, for full-canvas
// operations such as clear, every object.
type CanvasState struct {
	Transform  viewport.Transform `json:"transform"`
	Objects    []shape.Record     `json:"objects,omitempty"`
	FullCanvas bool               `json:"fullCanvas"`
}

// ObjectCheckpoint captures o.
func ObjectCheckpoint(o *shape.Object) (Checkpoint, error) {
	extras, err := o.Extras()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint %s: %w", o.ID(), err)
	}
	return Checkpoint{
		ID:   uuid.NewString(),
		Type: TypeObject,
		TS:   time.Now(),
		Object: &ObjectState{
			ObjectID:  o.ID(),
			Layout:    o.Layout(),
			Vector:    o.Vector(),
			Options:   optionsState(o.Options()),
			Transform: o.Transform(),
			Extras:    extras,
			Fields:    o.Fields(),
		},
	}, nil
}

// CanvasCheckpoint captures the global transform. Objects is only kept when
// full is set.
func CanvasCheckpoint(t viewport.Transform, objects []shape.Record, full bool) Checkpoint {
	cs := &CanvasState{Transform: t.Clone(), FullCanvas: full}
	if full {
		cs.Objects = append([]shape.Record{}, objects...)
	}
	return Checkpoint{ID: uuid.NewString(), Type: TypeCanvas, TS: time.Now(), Canvas: cs}
}

// Target identifies what a checkpoint restores, for coalescing. Full-canvas
// checkpoints carry the object list and are never coalesced.
func (c Checkpoint) Target() string {
	switch {
	case c.Type == TypeObject && c.Object != nil:
		return "object:" + c.Object.ObjectID
	case c.Type == TypeCanvas && c.Canvas != nil && c.Canvas.FullCanvas:
		return "canvas:" + c.ID
	}
	return c.Type
}

// Size estimates the memory held by c as its JSON length.
func (c Checkpoint) Size() int {
	b, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return len(b)
}

// Validate checks the union invariant.
func (c Checkpoint) Validate() error {
	switch c.Type {
	case TypeObject:
		if c.Object == nil || c.Canvas != nil {
			return fmt.Errorf("checkpoint %s: object checkpoint needs exactly the object state", c.ID)
		}
	case TypeCanvas:
		if c.Canvas == nil || c.Object != nil {
			return fmt.Errorf("checkpoint %s: canvas checkpoint needs exactly the canvas state", c.ID)
		}
	default:
		return fmt.Errorf("checkpoint %s: unknown type %q", c.ID, c.Type)
	}
	return nil
}
