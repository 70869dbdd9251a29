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
	"strconv"

	"github.com/spf13/cobra"

	"imgannotate/internal/geom"
	"imgannotate/internal/storage"
	"imgannotate/internal/viewport"
)

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func printTransform(w io.Writer, ws *workspace) error {
	t := ws.canvas.Viewport().Transform()
	cw, ch := ws.canvas.Viewport().CanvasSize()
	crop := "none"
	if t.Crop != nil {
		crop = fmt.Sprintf("%g,%g %gx%g", t.Crop.Left, t.Crop.Top, t.Crop.Width, t.Crop.Height)
	}
	_, err := fmt.Fprintf(w, "rotation %g°, scale %g, canvas %gx%g, crop %s\n", t.Rotation, t.Scale, cw, ch, crop)
	return err
}

type newFlags struct {
	image  string
	width  float64
	height float64
	force  bool
}

func newNewCommand(g *globals) *cobra.Command {
	flags := &newFlags{}
	cmd := &cobra.Command{
		Use:   "new <document>",
		Short: "Create an empty annotation document",
		Long: `Create an empty annotation document for an image. The image size is read
from --image (png, jpeg, gif, bmp, tiff, webp) or given with --width/--height.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd, g, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.image, "image", "", "Image the document annotates")
	cmd.Flags().Float64Var(&flags.width, "width", 0, "Image width in pixels")
	cmd.Flags().Float64Var(&flags.height, "height", 0, "Image height in pixels")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing document")
	return cmd
}

func runNew(cmd *cobra.Command, g *globals, path string, flags *newFlags) error {
	if _, err := os.Stat(path); err == nil && !flags.force {
		return fmt.Errorf("document %s already exists (use --force to overwrite)", path)
	}
	w, h := flags.width, flags.height
	if flags.image != "" {
		iw, ih, format, err := imageSize(flags.image)
		if err != nil {
			return err
		}
		w, h = iw, ih
		g.logger().Debug("image header read", slog.String("image", flags.image), slog.String("format", format))
	}
	vm, err := viewport.New(w, h)
	if err != nil {
		return fmt.Errorf("image size: %w", err)
	}
	doc := storage.Document{
		Version:     storage.DocumentVersion,
		Image:       flags.image,
		ImageWidth:  w,
		ImageHeight: h,
		Transform:   vm.Transform(),
	}
	if err := storage.SaveDocument(path, doc); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s for a %gx%g image\n", path, w, h)
	return err
}

// positionalNumbers stops flag parsing at the first positional argument so
// that negative numbers such as -90 are not read as shorthand flags.
func positionalNumbers(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newRotateCommand(g *globals) *cobra.Command {
	return positionalNumbers(&cobra.Command{
		Use:   "rotate <document> <degrees>",
		Short: "Rotate the view by a multiple of 90 degrees",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			return g.edit(args[0], func(ws *workspace) error {
				if err := ws.canvas.Rotate(v[0]); err != nil {
					return err
				}
				return printTransform(cmd.OutOrStdout(), ws)
			})
		},
	})
}

func newFitCommand(g *globals) *cobra.Command {
	return positionalNumbers(&cobra.Command{
		Use:   "fit <document> <width> <height>",
		Short: "Scale the view to fit a container",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			return g.edit(args[0], func(ws *workspace) error {
				if err := ws.canvas.Fit(v[0], v[1]); err != nil {
					return err
				}
				return printTransform(cmd.OutOrStdout(), ws)
			})
		},
	})
}

func newCropCommand(g *globals) *cobra.Command {
	var clearCrop bool
	cmd := &cobra.Command{
		Use:   "crop <document> [<left> <top> <width> <height>]",
		Short: "Crop the view to a rectangle given in canvas pixels",
		Long: `Crop the view to a rectangle given in canvas pixels. The part outside the
image is cut off. Put -- before the numbers when one is negative:

  annotate crop doc.annot.json -- -10 0 200 100`,
		Args: func(cmd *cobra.Command, args []string) error {
			if clearCrop {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(5)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var v []float64
			if !clearCrop {
				var err error
				if v, err = parseFloats(args[1:]); err != nil {
					return err
				}
			}
			return g.edit(args[0], func(ws *workspace) error {
				if clearCrop {
					ws.canvas.ClearCrop()
				} else if err := ws.canvas.Crop(geom.B(v[0], v[1], v[2], v[3])); err != nil {
					return err
				}
				return printTransform(cmd.OutOrStdout(), ws)
			})
		},
	}
	cmd.Flags().BoolVar(&clearCrop, "clear", false, "Remove the crop")
	return cmd
}

func newDeleteCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document> <object-id>...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.edit(args[0], func(ws *workspace) error {
				var errs []error
				for _, id := range args[1:] {
					if err := ws.canvas.Delete(id); err != nil {
						errs = append(errs, err)
						continue
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}
