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

// Package overlap measures how much the point footprints of categorical
// "unit classes" overlap within a dataframe. Points are partitioned by a
// classification attribute, each partition is bounded by its convex hull,
// and every pair of classes is scored by the smaller of the two
// cross-containment counts.
package overlap

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// Version gives the version number.
const Version = "1.0.0"

// DataframeID identifies a dataframe, e.g. "1" for the
// collection named dataframe_1.
type DataframeID string

// ClassID is the canonical text form of a classification attribute value.
type ClassID string

// FieldType is the native type of an attribute field.
type FieldType int

// Attribute field types. They mirror the character (C), integer
// number (N), and floating point (F) field types of dBase tables.
const (
	String FieldType = iota
	Int
	Float
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field describes an attribute column.
type Field struct {
	Name string
	Type FieldType
}

// Record is a single point and its attribute values. Attribute values
// are int64, float64, or string according to the collection schema.
type Record struct {
	geom.Point
	Attributes map[string]interface{}
}

// PointCollection is an ordered, named set of point records.
// It must not be modified after it has been handed to other
// functions in this package.
type PointCollection struct {
	Name    string
	Fields  []Field
	Records []Record

	// SR is the spatial reference of the points. It may be nil.
	SR *proj.SR

	// SRText is the WKT or Proj4 definition that SR was parsed from.
	SRText string

	indexOnce sync.Once
	index     *rtree.Rtree
}

// NewPointCollection returns an attribute-less collection holding pts.
func NewPointCollection(name string, pts ...geom.Point) *PointCollection {
	c := &PointCollection{Name: name, Records: make([]Record, len(pts))}
	for i, p := range pts {
		c.Records[i].Point = p
	}
	return c
}

// Len returns the number of records in c.
func (c *PointCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// Points returns the point geometry of every record, in record order.
func (c *PointCollection) Points() []geom.Point {
	o := make([]geom.Point, len(c.Records))
	for i, r := range c.Records {
		o[i] = r.Point
	}
	return o
}

// Field returns the schema entry for the named field.
func (c *PointCollection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames lists the attribute names of c in schema order.
func (c *PointCollection) FieldNames() []string {
	o := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		o[i] = f.Name
	}
	return o
}

// subset returns a new collection holding the records at the given
// indices, sharing the schema and spatial reference of c.
func (c *PointCollection) subset(name string, indices []int) *PointCollection {
	o := &PointCollection{
		Name:    name,
		Fields:  c.Fields,
		Records: make([]Record, len(indices)),
		SR:      c.SR,
		SRText:  c.SRText,
	}
	for i, j := range indices {
		o.Records[i] = c.Records[j]
	}
	return o
}

// indexedPoint is the value stored in the spatial index.
type indexedPoint struct {
	geom.Point
	i int
}

// candidates returns the indices of the records whose points fall within
// b, using a lazily built R-tree.
func (c *PointCollection) candidates(b *geom.Bounds) []int {
	c.indexOnce.Do(func() {
		c.index = rtree.NewTree(25, 50)
		for i, r := range c.Records {
			c.index.Insert(&indexedPoint{Point: r.Point, i: i})
		}
	})
	found := c.index.SearchIntersect(b)
	o := make([]int, len(found))
	for i, f := range found {
		o[i] = f.(*indexedPoint).i
	}
	return o
}

// classIDOf renders a native attribute value as a ClassID.
func classIDOf(v interface{}) ClassID {
	switch t := v.(type) {
	case string:
		return ClassID(t)
	case int64:
		return ClassID(strconv.FormatInt(t, 10))
	case int:
		return ClassID(strconv.Itoa(t))
	case float64:
		return ClassID(strconv.FormatFloat(t, 'g', -1, 64))
	default:
		return ClassID(fmt.Sprint(t))
	}
}

// NaturalLess orders identifiers numerically when both parse as numbers
// and lexically otherwise. Numbers sort before other text.
func NaturalLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	numA := errA == nil && !math.IsNaN(fa)
	numB := errB == nil && !math.IsNaN(fb)
	switch {
	case numA && numB:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case numA:
		return true
	case numB:
		return false
	default:
		return a < b
	}
}
