/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgannotate/internal/canvas"
	"imgannotate/internal/corner"
	"imgannotate/internal/geom"
	applog "imgannotate/internal/log"
	"imgannotate/internal/resize"
	"imgannotate/internal/shape"
)

// Point is a canvas-space position written as [x, y].
type Point [2]float64

func (p Point) pt() geom.Pt { return geom.P(p[0], p[1]) }

// Style changes the paint of the selected object. Empty values keep the
// current setting.
type Style struct {
	Stroke      string  `yaml:"stroke,omitempty"`
	Fill        string  `yaml:"fill,omitempty"`
	StrokeWidth float64 `yaml:"stroke_width,omitempty"`
}

// Step is one scripted action. Within a step the parts run in field order:
// tool, gesture, style, delete, global transforms, clear, undo, redo.
type Step struct {
	// Tool is "select" or an object kind such as "rect" or "arrow".
	Tool   string         `yaml:"tool,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`

	// Mode and Handle override what is hit at Down: a corner code such as
	// "br", or "start"/"end" for directional objects.
	Mode   string  `yaml:"mode,omitempty"`
	Handle string  `yaml:"handle,omitempty"`
	Down   *Point  `yaml:"down,omitempty"`
	Moves  []Point `yaml:"moves,omitempty"`
	Up     *Point  `yaml:"up,omitempty"`

	Style     *Style    `yaml:"style,omitempty"`
	Delete    bool      `yaml:"delete,omitempty"`
	Rotate    *float64  `yaml:"rotate,omitempty"`
	Fit       *Point    `yaml:"fit,omitempty"`
	Crop      []float64 `yaml:"crop,omitempty"`
	ClearCrop bool      `yaml:"clear_crop,omitempty"`
	Clear     bool      `yaml:"clear,omitempty"`
	Undo      int       `yaml:"undo,omitempty"`
	Redo      int       `yaml:"redo,omitempty"`
}

// Script is a gesture file.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// LoadScript reads a YAML gesture file.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

// Runner plays scripts against a canvas.
type Runner struct {
	c   *canvas.Canvas
	out io.Writer
	log *slog.Logger
}

func NewRunner(c *canvas.Canvas, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{c: c, out: out, log: applog.WithOperation(applog.WithComponent("cli"), "replay")}
}

// Run executes every step in order and stops at the first failing one.
func (r *Runner) Run(s Script) error {
	for i, st := range s.Steps {
		if err := r.step(st); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *Runner) step(s Step) error {
	if s.Tool != "" {
		t := canvas.ToolSelect
		if s.Tool != string(canvas.ToolSelect) {
			t = canvas.CreateTool(s.Tool)
		}
		if err := r.c.SetTool(t, s.Fields); err != nil {
			return err
		}
	}
	if s.Down != nil {
		if err := r.gesture(s); err != nil {
			return err
		}
	} else if len(s.Moves) > 0 || s.Up != nil {
		return errors.New("moves and up need a down")
	}
	if s.Style != nil {
		if err := r.style(*s.Style); err != nil {
			return err
		}
	}
	if s.Delete {
		if r.c.Selected() == "" {
			return errors.New("delete: nothing selected")
		}
		id := r.c.Selected()
		if err := r.c.Delete(id); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.out, "deleted %s\n", id)
	}
	if s.Rotate != nil {
		if err := r.c.Rotate(*s.Rotate); err != nil {
			return err
		}
	}
	if s.Fit != nil {
		if err := r.c.Fit(s.Fit[0], s.Fit[1]); err != nil {
			return err
		}
	}
	if s.Crop != nil {
		if len(s.Crop) != 4 {
			return fmt.Errorf("crop needs [left, top, width, height], got %v", s.Crop)
		}
		if err := r.c.Crop(geom.B(s.Crop[0], s.Crop[1], s.Crop[2], s.Crop[3])); err != nil {
			return err
		}
	}
	if s.ClearCrop {
		r.c.ClearCrop()
	}
	if s.Clear {
		if err := r.c.Clear(); err != nil {
			return err
		}
	}
	for i := 0; i < s.Undo; i++ {
		ok, err := r.c.Undo()
		if err != nil {
			return err
		}
		if !ok {
			r.log.Debug("undo stack empty", slog.Int("requested", s.Undo), slog.Int("done", i))
			break
		}
	}
	for i := 0; i < s.Redo; i++ {
		ok, err := r.c.Redo()
		if err != nil {
			return err
		}
		if !ok {
			r.log.Debug("redo stack empty", slog.Int("requested", s.Redo), slog.Int("done", i))
			break
		}
	}
	return nil
}

func (r *Runner) gesture(s Step) error {
	down := s.Down.pt()
	var hit canvas.Hit
	if r.c.Tool().Kind() == "" {
		var err error
		if hit, err = r.resolveHit(s, down); err != nil {
			return err
		}
	}
	before := len(r.c.Objects())
	if err := r.c.PointerDown(down, hit); err != nil {
		return err
	}
	last := down
	for _, p := range s.Moves {
		last = p.pt()
		r.c.PointerMove(last)
	}
	if s.Up != nil {
		last = s.Up.pt()
	}
	r.c.PointerUp(last)
	if kind := r.c.Tool().Kind(); kind != "" {
		if len(r.c.Objects()) > before {
			_, _ = fmt.Fprintf(r.out, "created %s %s\n", kind, r.c.Selected())
		} else {
			_, _ = fmt.Fprintf(r.out, "discarded %s below minimum size\n", kind)
		}
	}
	return nil
}

// resolveHit hit-tests at, then applies the Mode and Handle overrides of s.
// An override without an object under the pointer acts on the selection.
func (r *Runner) resolveHit(s Step, at geom.Pt) (canvas.Hit, error) {
	hit, ok := r.c.HitTest(at)
	if s.Mode == "" && s.Handle == "" {
		return hit, nil
	}
	if !ok {
		hit = canvas.Hit{ObjectID: r.c.Selected()}
		if hit.ObjectID == "" {
			return canvas.Hit{}, errors.New("no object under the pointer and nothing selected")
		}
	}
	if s.Handle != "" {
		if role, err := corner.ParseRole(s.Handle); err == nil {
			hit.Mode, hit.Role, hit.Handle = resize.ModeVector, role, corner.MM
		} else {
			h, err := corner.Parse(s.Handle)
			if err != nil {
				return canvas.Hit{}, err
			}
			hit.Mode, hit.Handle = resize.ModeResize, h
			if h == corner.MM {
				hit.Mode = resize.ModeMove
			}
		}
	}
	if s.Mode != "" {
		m, err := resize.ParseMode(s.Mode)
		if err != nil {
			return canvas.Hit{}, err
		}
		hit.Mode = m
	}
	return hit, nil
}

func (r *Runner) style(st Style) error {
	id := r.c.Selected()
	o, ok := r.c.Object(id)
	if !ok {
		return errors.New("style: nothing selected")
	}
	opts := o.Options()
	if st.Stroke != "" {
		c, err := shape.ParseHex(st.Stroke)
		if err != nil {
			return err
		}
		opts.Stroke = c
	}
	if st.Fill != "" {
		c, err := shape.ParseHex(st.Fill)
		if err != nil {
			return err
		}
		opts.Fill = c
	}
	if st.StrokeWidth > 0 {
		opts.StrokeWidth = st.StrokeWidth
	}
	return r.c.SetOptions(id, opts)
}

type replayFlags struct {
	dryRun bool
}

func newReplayCommand(g *globals) *cobra.Command {
	flags := &replayFlags{}
	cmd := &cobra.Command{
		Use:   "replay <document> <script.yaml>",
		Short: "Replay a scripted gesture file against a document",
		Long: `Replay a YAML gesture file. Points are canvas pixels of the current view.

  steps:
    - tool: rect
      down: [10, 10]
      moves: [[40, 30]]
      up: [60, 50]
    - tool: select
      down: [60, 50]        # bottom-right handle of the new rectangle
      up: [80, 90]
    - rotate: 90
    - undo: 1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			script, err := LoadScript(args[1])
			if err != nil {
				return err
			}
			w, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer func() {
				if cerr := w.close(); err == nil {
					err = cerr
				}
			}()
			if err := NewRunner(w.canvas, cmd.OutOrStdout()).Run(script); err != nil {
				return err
			}
			if !flags.dryRun {
				if err := w.save(); err != nil {
					return err
				}
			}
			return printTransform(cmd.OutOrStdout(), w)
		},
	}
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Run the script without saving the document")
	return cmd
}
