/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "math"

// Snap options used while moving an object over its neighbours.
type SnapOptions struct {
	// Threshold is the maximum distance in real-space units at which a
	// moving box is pulled onto a guide. Zero disables snapping.
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// Guide is a vertical (X set) or horizontal (Y set) alignment line that
// matched during a snap.
type Guide struct {
	Vertical bool
	Kind     string // "edge" or "center"
	Position float64
}

type snapCandidate struct {
	delta float64
	dist  float64
	guide Guide
}

// SnapBox moves b so that its edges or centre line up with the nearest
// edges/centres of anchors within the threshold. X and Y snap independently.
func SnapBox(b Box, anchors []Box, opts SnapOptions) (Box, []Guide) {
	if opts.Threshold <= 0 || len(anchors) == 0 {
		return b, nil
	}
	b = b.Normalize()
	bestX := snapCandidate{dist: math.Inf(1)}
	bestY := snapCandidate{dist: math.Inf(1)}

	for _, a := range anchors {
		a = a.Normalize()
		if opts.SnapToEdges {
			for _, m := range []float64{b.Left, b.Left + b.Width} {
				for _, t := range []float64{a.Left, a.Left + a.Width} {
					bestX.consider(m-t, opts.Threshold, Guide{Vertical: true, Kind: "edge", Position: t})
				}
			}
			for _, m := range []float64{b.Top, b.Top + b.Height} {
				for _, t := range []float64{a.Top, a.Top + a.Height} {
					bestY.consider(m-t, opts.Threshold, Guide{Kind: "edge", Position: t})
				}
			}
		}
		if opts.SnapToCenters {
			bc, ac := b.Center(), a.Center()
			bestX.consider(bc.X-ac.X, opts.Threshold, Guide{Vertical: true, Kind: "center", Position: ac.X})
			bestY.consider(bc.Y-ac.Y, opts.Threshold, Guide{Kind: "center", Position: ac.Y})
		}
	}

	var guides []Guide
	if !math.IsInf(bestX.dist, 1) {
		b.Left = Round(b.Left-bestX.delta, 3)
		guides = append(guides, bestX.guide)
	}
	if !math.IsInf(bestY.dist, 1) {
		b.Top = Round(b.Top-bestY.delta, 3)
		guides = append(guides, bestY.guide)
	}
	return b, guides
}

func (c *snapCandidate) consider(delta, threshold float64, g Guide) {
	d := math.Abs(delta)
	if d > threshold || d >= c.dist {
		return
	}
	c.delta, c.dist, c.guide = delta, d, g
}
