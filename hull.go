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
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultEpsilon is the absolute tolerance, in coordinate units, used for
// coincidence and collinearity decisions when none is given. Two points
// are coincident when both of their coordinates differ by no more than the
// tolerance, and a point is on a line when its distance from it is no more
// than the tolerance. It is the XY tolerance of the GCS_WGS_1984 spatial
// reference (about a millimeter at the equator).
const DefaultEpsilon = 8.98315284119522e-9

// tolerance returns eps, or DefaultEpsilon if eps is not positive.
func tolerance(eps float64) float64 {
	if eps > 0 {
		return eps
	}
	return DefaultEpsilon
}

// HullKind describes the shape of a BoundingGeometry.
type HullKind int

// Bounding geometry kinds. HullPoint and HullSegment are the degenerate
// results for coincident and collinear inputs.
const (
	HullPoint HullKind = iota + 1
	HullSegment
	HullPolygon
)

func (k HullKind) String() string {
	switch k {
	case HullPoint:
		return "point"
	case HullSegment:
		return "segment"
	case HullPolygon:
		return "polygon"
	default:
		return fmt.Sprintf("HullKind(%d)", int(k))
	}
}

// ParseHullKind is the inverse of HullKind.String.
func ParseHullKind(s string) (HullKind, error) {
	for _, k := range []HullKind{HullPoint, HullSegment, HullPolygon} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("overlap: invalid hull kind %q", s)
}

// BoundingGeometry is the convex hull of a partition.
type BoundingGeometry struct {
	Kind HullKind

	// Epsilon is the tolerance used by Contains. If it is not positive,
	// DefaultEpsilon is used.
	Epsilon float64

	// Ring holds the hull vertices in counter-clockwise order with the
	// first vertex repeated at the end. A HullPoint ring is [p, p] and a
	// HullSegment ring is [a, b, a].
	Ring []geom.Point
}

// Vertices returns the number of distinct vertices of g.
func (g *BoundingGeometry) Vertices() int {
	if len(g.Ring) == 0 {
		return 0
	}
	return len(g.Ring) - 1
}

// Bounds gives the rectangular extents of g.
func (g *BoundingGeometry) Bounds() *geom.Bounds {
	return geom.MultiPoint(g.Ring).Bounds()
}

// Polygon returns g as a single-ring polygon.
func (g *BoundingGeometry) Polygon() geom.Polygon {
	return geom.Polygon{g.Ring}
}

// BuildHull returns the bounding geometry of the points in c using
// tolerance eps (DefaultEpsilon if eps is not positive).
// It returns an error wrapping ErrEmptyPartition if c holds no points.
func BuildHull(c *PointCollection, eps float64) (*BoundingGeometry, error) {
	if c.Len() == 0 {
		name := ""
		if c != nil {
			name = c.Name
		}
		return nil, fmt.Errorf("%w: %s", ErrEmptyPartition, name)
	}
	return HullOf(c.Points(), eps)
}

// HullOf returns the convex hull of pts, computed with Andrew's monotone
// chain. Only strict left turns (more than eps from the previous edge)
// become vertices. If all points are coincident the result is a HullPoint;
// if they are collinear it is the HullSegment between the two extreme points.
// A non-positive eps means DefaultEpsilon.
func HullOf(pts []geom.Point, eps float64) (*BoundingGeometry, error) {
	if len(pts) == 0 {
		return nil, ErrEmptyPartition
	}
	eps = tolerance(eps)
	s := make([]geom.Point, len(pts))
	copy(s, pts)
	sort.Slice(s, func(i, j int) bool {
		if s[i].X != s[j].X {
			return s[i].X < s[j].X
		}
		return s[i].Y < s[j].Y
	})
	s = dedupe(s, eps)

	if len(s) == 1 {
		return &BoundingGeometry{Kind: HullPoint, Epsilon: eps, Ring: []geom.Point{s[0], s[0]}}, nil
	}

	hull := make([]geom.Point, 0, 2*len(s))
	for _, p := range s { // lower chain
		for len(hull) >= 2 && !leftTurn(hull[len(hull)-2], hull[len(hull)-1], p, eps) {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(s) - 2; i >= 0; i-- { // upper chain
		p := s[i]
		for len(hull) >= lower && !leftTurn(hull[len(hull)-2], hull[len(hull)-1], p, eps) {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// The last point is the first one again, which closes the ring.
	if len(hull) < 4 {
		a, b := segmentEnds(s)
		return &BoundingGeometry{Kind: HullSegment, Epsilon: eps, Ring: []geom.Point{a, b, a}}, nil
	}
	return &BoundingGeometry{Kind: HullPolygon, Epsilon: eps, Ring: hull}, nil
}

// segmentEnds returns the two extreme points of collinear s along the line
// they lie on, in X-then-Y order. The extremes of the sort order are not
// enough when the line is within eps of vertical.
func segmentEnds(s []geom.Point) (a, b geom.Point) {
	o := s[0]
	far, fd := s[0], 0.0
	for _, p := range s[1:] {
		if d := math.Hypot(p.X-o.X, p.Y-o.Y); d > fd {
			far, fd = p, d
		}
	}
	dx, dy := far.X-o.X, far.Y-o.Y
	lo, hi := o, o
	var tlo, thi float64
	for _, p := range s {
		t := (p.X-o.X)*dx + (p.Y-o.Y)*dy
		if t < tlo {
			lo, tlo = p, t
		}
		if t > thi {
			hi, thi = p, t
		}
	}
	if hi.X < lo.X || (hi.X == lo.X && hi.Y < lo.Y) {
		lo, hi = hi, lo
	}
	return lo, hi
}

// dedupe removes points that are coincident with the previously kept point
// from sorted s.
func dedupe(s []geom.Point, eps float64) []geom.Point {
	o := s[:1]
	for _, p := range s[1:] {
		if !coincident(p, o[len(o)-1], eps) {
			o = append(o, p)
		}
	}
	return o
}

func coincident(a, b geom.Point, eps float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, eps) && scalar.EqualWithinAbs(a.Y, b.Y, eps)
}

// signedDistance returns the distance of p from the directed line a→b,
// positive to the left. ok is false if a and b are no more than eps apart.
func signedDistance(a, b, p geom.Point, eps float64) (d float64, ok bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l <= eps {
		return 0, false
	}
	return (dx*(p.Y-a.Y) - dy*(p.X-a.X)) / l, true
}

// leftTurn reports whether a→b→p turns left by more than eps.
func leftTurn(a, b, p geom.Point, eps float64) bool {
	d, ok := signedDistance(a, b, p, eps)
	return ok && d > eps
}

// segmentDistance returns the distance from p to the segment a–b.
func segmentDistance(p, a, b geom.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
