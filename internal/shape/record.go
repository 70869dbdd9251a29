/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"imgannotate/internal/geom"
)

// ErrInvalidRecord is returned when a record fails schema validation or
// carries values the object model cannot hold.
var ErrInvalidRecord = errors.New("invalid object record")

// Record is the persisted form of an object. Restoring a record and
// serializing the result yields an equal record.
type Record struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Layout geom.Box        `json:"layout"`
	Vector geom.Vector     `json:"vector"`
	Angle  float64         `json:"angle"`
	ScaleX float64         `json:"scaleX"`
	ScaleY float64         `json:"scaleY"`
	Fields map[string]any  `json:"fields"`
	Extras json.RawMessage `json:"extras,omitempty"`
}

const (
	fieldStroke      = "stroke"
	fieldFill        = "fill"
	fieldStrokeWidth = "strokeWidth"
)

// Record serializes o. Paint options are folded into Fields.
func (o *Object) Record() (Record, error) {
	extras, err := o.Extras()
	if err != nil {
		return Record{}, err
	}
	fields := maps.Clone(o.fields)
	if fields == nil {
		fields = map[string]any{}
	}
	fields[fieldStroke] = o.options.Stroke.Hex()
	fields[fieldFill] = o.options.Fill.Hex()
	fields[fieldStrokeWidth] = o.options.StrokeWidth
	return Record{
		Type:   o.kind.Name(),
		ID:     o.id,
		Layout: o.layout,
		Vector: o.vector,
		Angle:  o.transform.Rotation,
		ScaleX: o.transform.ScaleX,
		ScaleY: o.transform.ScaleY,
		Fields: fields,
		Extras: extras,
	}, nil
}

// Restore rebuilds an object from a validated record.
func (r *Registry) Restore(rec Record) (*Object, error) {
	if err := ValidateRecord(rec); err != nil {
		return nil, err
	}
	k, err := r.Lookup(rec.Type)
	if err != nil {
		return nil, err
	}
	if err := ValidateObjectID(rec.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	opts, fields, err := splitFields(rec.Fields, r.cfg.Options)
	if err != nil {
		return nil, err
	}
	o := &Object{
		id:        rec.ID,
		kind:      k,
		layout:    rec.Layout,
		vector:    rec.Vector,
		transform: Transform{ScaleX: rec.ScaleX, ScaleY: rec.ScaleY, Rotation: rec.Angle},
		options:   opts,
		fields:    fields,
		laidOut:   true,
	}
	if err := k.RestoreExtras(o, rec.Extras); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return o, nil
}

func splitFields(in map[string]any, def Options) (Options, map[string]any, error) {
	opts := def
	fields := map[string]any{}
	for k, v := range in {
		switch k {
		case fieldStroke, fieldFill:
			s, ok := v.(string)
			if !ok {
				return opts, nil, fmt.Errorf("%w: %s must be a color string", ErrInvalidRecord, k)
			}
			c, err := ParseHex(s)
			if err != nil {
				return opts, nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			if k == fieldStroke {
				opts.Stroke = c
			} else {
				opts.Fill = c
			}
		case fieldStrokeWidth:
			w, ok := v.(float64)
			if !ok {
				return opts, nil, fmt.Errorf("%w: strokeWidth must be a number", ErrInvalidRecord)
			}
			opts.StrokeWidth = w
		default:
			fields[k] = v
		}
	}
	return opts, fields, nil
}

//go:embed schema/record.schema.json
var recordSchemaJSON []byte

var (
	recordSchemaOnce sync.Once
	recordSchema     *gojsonschema.Schema
	recordSchemaErr  error
)

func compiledRecordSchema() (*gojsonschema.Schema, error) {
	recordSchemaOnce.Do(func() {
		recordSchema, recordSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchemaJSON))
	})
	return recordSchema, recordSchemaErr
}

// ValidateRecord checks rec against the embedded record schema.
func ValidateRecord(rec Record) error {
	return validate(gojsonschema.NewGoLoader(rec))
}

// ValidateRecordJSON checks a raw JSON record.
func ValidateRecordJSON(data []byte) error {
	return validate(gojsonschema.NewBytesLoader(data))
}

func validate(doc gojsonschema.JSONLoader) error {
	schema, err := compiledRecordSchema()
	if err != nil {
		return fmt.Errorf("load record schema: %w", err)
	}
	result, err := schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
}
