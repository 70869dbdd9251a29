/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	"imgannotate/internal/corner"
	"imgannotate/internal/geom"
)

// Directional objects (lines, arrows) do not treat top-left as their start.
// The vector's signs pick the diagonal:
//
//	x≥0 y≥0: start (left, top)        end (left+w, top+h)
//	x≥0 y<0: start (left, top+h)      end (left+w, top)
//	x<0 y≥0: start (left+w, top)      end (left, top+h)
//	x<0 y<0: start (left+w, top+h)    end (left, top)
//
// The only way to change orientation is a fresh start/end pair.

// LayoutFromPoints returns the box spanned by start and end in a frame
// rotated by angle radians, and the vector end - start in that frame.
func LayoutFromPoints(start, end geom.Pt, angle float64) (geom.Box, geom.Vector) {
	ls := start.Rotate(-angle)
	le := end.Rotate(-angle)
	local := geom.BoxFromPoints(ls, le)
	origin := local.Min().Rotate(angle)
	return geom.Box{Left: origin.X, Top: origin.Y, Width: local.Width, Height: local.Height},
		geom.VectorOf(ls, le)
}

// VectorAt returns the vector of a directional object whose role handle now
// sits on corner at of box b. The other role takes the opposite corner.
func VectorAt(b geom.Box, role corner.Role, at corner.Code) geom.Vector {
	start, end := at.Opposite(corner.AxisBoth), at
	if role == corner.RoleStart {
		start, end = at, at.Opposite(corner.AxisBoth)
	}
	// local frame: the rotation drops out of the difference
	ls := start.Point(b, 0)
	le := end.Point(b, 0)
	return geom.VectorOf(ls, le)
}
