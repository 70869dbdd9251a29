/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"imgannotate/internal/shape"
	"imgannotate/internal/storage"
)

type inspectFlags struct {
	where string
	query string
	json  bool
}

func newInspectCommand(g *globals) *cobra.Command {
	flags := &inspectFlags{}
	cmd := &cobra.Command{
		Use:   "inspect <document>",
		Short: "Show the transform and objects of a document",
		Long: `Show the transform and objects of a document.

--where filters objects with an expression over id, kind, left, top, width,
height, angle, scaleX, scaleY, stroke, fill, strokeWidth and the kind fields,
e.g. 'kind == "arrow" && width > 50'.
--query prints the result of a JSON path over the document file instead,
e.g. 'objects.#.id' or 'transform.rotation'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := storage.OpenDocument(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.query != "" {
				return runQuery(out, doc, flags.query)
			}
			objs, err := filterRecords(doc.Objects, flags.where)
			if err != nil {
				return err
			}
			if flags.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(objs)
			}
			return printDocument(out, doc, objs)
		},
	}
	cmd.Flags().StringVar(&flags.where, "where", "", "Filter expression for objects")
	cmd.Flags().StringVar(&flags.query, "query", "", "JSON path evaluated against the document")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the matching object records as JSON")
	return cmd
}

func runQuery(w io.Writer, doc storage.Document, path string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return fmt.Errorf("query %q matched nothing", path)
	}
	_, err = fmt.Fprintln(w, res.String())
	return err
}

// recordEnv is the variable set a --where expression sees for one record.
// Kind fields are added first so that the fixed names always win.
func recordEnv(rec shape.Record) map[string]any {
	env := make(map[string]any, len(rec.Fields)+9)
	for k, v := range rec.Fields {
		env[k] = v
	}
	b := rec.Layout.Normalize()
	env["id"] = rec.ID
	env["kind"] = rec.Type
	env["left"] = b.Left
	env["top"] = b.Top
	env["width"] = b.Width
	env["height"] = b.Height
	env["angle"] = rec.Angle
	env["scaleX"] = rec.ScaleX
	env["scaleY"] = rec.ScaleY
	return env
}

func filterRecords(recs []shape.Record, where string) ([]shape.Record, error) {
	if where == "" {
		return recs, nil
	}
	program, err := expr.Compile(where, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid --where expression: %w", err)
	}
	out := []shape.Record{}
	for _, rec := range recs {
		ok, err := matches(program, rec)
		if err != nil {
			return nil, fmt.Errorf("evaluate --where on %s: %w", rec.ID, err)
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matches(program *vm.Program, rec shape.Record) (bool, error) {
	v, err := vm.Run(program, recordEnv(rec))
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, not bool", v)
	}
	return b, nil
}

func printDocument(w io.Writer, doc storage.Document, objs []shape.Record) error {
	t := doc.Transform
	crop := "none"
	if t.Crop != nil {
		crop = fmt.Sprintf("%g,%g %gx%g", t.Crop.Left, t.Crop.Top, t.Crop.Width, t.Crop.Height)
	}
	image := doc.Image
	if image == "" {
		image = "(unnamed)"
	}
	if _, err := fmt.Fprintf(w, "Image:     %s (%gx%g)\nTransform: rotation %g°, scale %g, crop %s\nObjects:   %d of %d\n",
		image, doc.ImageWidth, doc.ImageHeight, t.Rotation, t.Scale, crop, len(objs), len(doc.Objects)); err != nil {
		return err
	}
	if len(objs) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTYPE\tLEFT\tTOP\tWIDTH\tHEIGHT\tANGLE")
	for _, rec := range objs {
		b := rec.Layout.Normalize()
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%g\n", rec.ID, rec.Type, b.Left, b.Top, b.Width, b.Height, rec.Angle)
	}
	return tw.Flush()
}
