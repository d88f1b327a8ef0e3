/*
Copyright © 2026 the UnitOverlap authors.
This file is part of UnitOverlap.

UnitOverlap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

UnitOverlap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with UnitOverlap.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlap

import (
	"math"

	"github.com/ctessum/geom"
)

// Contains reports whether p is within g or on its boundary. Points that
// are no more than g.Epsilon outside of g are considered to be on the
// boundary.
func (g *BoundingGeometry) Contains(p geom.Point) bool {
	eps := tolerance(g.Epsilon)
	switch g.Kind {
	case HullPoint:
		return coincident(p, g.Ring[0], eps)
	case HullSegment:
		return segmentDistance(p, g.Ring[0], g.Ring[1]) <= eps
	case HullPolygon:
		if p.Within(g.Polygon()) != geom.Outside {
			return true
		}
		for i := 1; i < len(g.Ring); i++ {
			if d, ok := signedDistance(g.Ring[i-1], g.Ring[i], p, eps); ok && d < -eps {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CountWithin returns the number of points in c that are within g,
// boundary included. Neither argument is modified.
func CountWithin(c *PointCollection, g *BoundingGeometry) int {
	if c.Len() == 0 || g == nil || len(g.Ring) == 0 {
		return 0
	}
	var n int
	for _, i := range c.candidates(searchBounds(g)) {
		if g.Contains(c.Records[i].Point) {
			n++
		}
	}
	return n
}

// searchBounds returns the bounds of g grown enough that index queries
// can't miss points on, or within tolerance of, its boundary.
func searchBounds(g *BoundingGeometry) *geom.Bounds {
	b := g.Bounds()
	scale := math.Max(math.Max(math.Abs(b.Min.X), math.Abs(b.Max.X)),
		math.Max(math.Abs(b.Min.Y), math.Abs(b.Max.Y)))
	pad := tolerance(g.Epsilon) + 1e-12*math.Max(1, scale)
	b.Min.X -= pad
	b.Min.Y -= pad
	b.Max.X += pad
	b.Max.Y += pad
	return b
}

// MinOverlap returns the smaller of the number of points of b within the
// hull of a and the number of points of a within the hull of b.
func MinOverlap(pointsA *PointCollection, hullA *BoundingGeometry, pointsB *PointCollection, hullB *BoundingGeometry) int {
	c1 := CountWithin(pointsB, hullA)
	c2 := CountWithin(pointsA, hullB)
	if c1 < c2 {
		return c1
	}
	return c2
}
