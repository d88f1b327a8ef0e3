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

// Package ingest converts tables of point coordinates into point
// collections.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/overlap"
)

// Default coordinate column names.
const (
	DefaultXField = "long"
	DefaultYField = "lat"
)

// Options specify how table rows become points.
type Options struct {
	// XField and YField name the columns holding the X (longitude) and
	// Y (latitude) coordinates.
	XField, YField string

	// CRS is the WKT or Proj4 definition of the input coordinates.
	// It may be empty.
	CRS string

	// OutputCRS, if set, is the spatial reference the points are
	// reprojected to. CRS must be set as well.
	OutputCRS string
}

func (o Options) withDefaults() Options {
	if o.XField == "" {
		o.XField = DefaultXField
	}
	if o.YField == "" {
		o.YField = DefaultYField
	}
	return o
}

// Error is an ingest failure of a single source. It wraps
// overlap.ErrIngestFailure.
type Error struct {
	Source string

	// Row is the line of the offending record, counting the header as
	// line 1, or zero if the failure concerns the whole source.
	Row int

	Err error
}

func (e *Error) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("ingest: %s: row %d: %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("ingest: %s: %v", e.Source, e.Err)
}

// Unwrap allows errors.Is to match both overlap.ErrIngestFailure and the
// underlying cause.
func (e *Error) Unwrap() []error {
	return []error{overlap.ErrIngestFailure, e.Err}
}

// ReadFile reads the CSV file at path. The collection is named after the
// file with FeatureName.
func ReadFile(path string, opts Options) (*overlap.PointCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Source: path, Err: err}
	}
	defer f.Close()
	return ReadCSV(f, path, opts)
}

// ReadCSV reads a CSV table with a header row from r. Every row becomes a
// point record; columns other than the coordinate columns become
// attributes. source names the table in errors, and FeatureName(source)
// is the name of the returned collection.
//
// Any malformed row fails the whole table.
func ReadCSV(r io.Reader, source string, opts Options) (*overlap.PointCollection, error) {
	opts = opts.withDefaults()
	fail := func(row int, err error) (*overlap.PointCollection, error) {
		return nil, &Error{Source: source, Row: row, Err: err}
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return fail(0, err)
	}
	if len(rows) == 0 {
		return fail(0, errors.New("missing header row"))
	}
	header := rows[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	xi, yi := index(header, opts.XField), index(header, opts.YField)
	if xi < 0 {
		return fail(0, fmt.Errorf("coordinate field %q not found", opts.XField))
	}
	if yi < 0 {
		return fail(0, fmt.Errorf("coordinate field %q not found", opts.YField))
	}

	c := &overlap.PointCollection{Name: FeatureName(source)}
	var attrCols []int
	for i, h := range header {
		if i == xi || i == yi {
			continue
		}
		if h == "" {
			return fail(1, fmt.Errorf("column %d has no name", i+1))
		}
		if _, dup := c.Field(h); dup {
			return fail(1, fmt.Errorf("duplicate column %q", h))
		}
		attrCols = append(attrCols, i)
		c.Fields = append(c.Fields, overlap.Field{Name: h, Type: inferType(rows[1:], i)})
	}

	var transform proj.Transformer
	if opts.CRS != "" {
		c.SR, err = proj.Parse(opts.CRS)
		if err != nil {
			return fail(0, fmt.Errorf("parsing CRS: %v", err))
		}
		c.SRText = opts.CRS
	}
	if opts.OutputCRS != "" {
		if c.SR == nil {
			return fail(0, errors.New("an input CRS is required for reprojection"))
		}
		out, err := proj.Parse(opts.OutputCRS)
		if err != nil {
			return fail(0, fmt.Errorf("parsing output CRS: %v", err))
		}
		if transform, err = c.SR.NewTransform(out); err != nil {
			return fail(0, fmt.Errorf("creating transform: %v", err))
		}
		c.SR, c.SRText = out, opts.OutputCRS
	}

	c.Records = make([]overlap.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		x, err := coordinate(row[xi], opts.XField)
		if err != nil {
			return fail(line, err)
		}
		y, err := coordinate(row[yi], opts.YField)
		if err != nil {
			return fail(line, err)
		}
		if transform != nil {
			if x, y, err = transform(x, y); err != nil {
				return fail(line, fmt.Errorf("reprojecting: %v", err))
			}
		}
		rec := overlap.Record{
			Point:      geom.Point{X: x, Y: y},
			Attributes: make(map[string]interface{}, len(attrCols)),
		}
		for j, col := range attrCols {
			f := c.Fields[j]
			v, err := convert(row[col], f.Type)
			if err != nil {
				return fail(line, fmt.Errorf("field %q: %v", f.Name, err))
			}
			rec.Attributes[f.Name] = v
		}
		c.Records = append(c.Records, rec)
	}
	return c, nil
}

func index(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func coordinate(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: invalid coordinate %q", field, s)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("field %q: coordinate %q is not finite", field, s)
	}
	return v, nil
}

// inferType returns Int if every non-empty value of column col parses as
// an integer, Float if every one parses as a number, and String otherwise
// or if the column is empty.
func inferType(rows [][]string, col int) overlap.FieldType {
	t := overlap.Int
	var n int
	for _, row := range rows {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		n++
		if t == overlap.Int {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			t = overlap.Float
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return overlap.String
		}
	}
	if n == 0 {
		return overlap.String
	}
	return t
}

// convert parses s as type t. Empty numeric values become zero.
func convert(s string, t overlap.FieldType) (interface{}, error) {
	v := strings.TrimSpace(s)
	switch t {
	case overlap.Int:
		if v == "" {
			return int64(0), nil
		}
		return strconv.ParseInt(v, 10, 64)
	case overlap.Float:
		if v == "" {
			return float64(0), nil
		}
		return strconv.ParseFloat(v, 64)
	default:
		return s, nil
	}
}

// FeatureName returns the collection name for a source path or URL: its
// base name without extension, with dashes replaced by underscores.
func FeatureName(path string) string {
	base := filepath.Base(filepath.FromSlash(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Replace(base, "-", "_", -1)
}

// DataframeID returns the dataframe identifier of a collection name.
func DataframeID(name string) overlap.DataframeID {
	return overlap.DataframeOf(name)
}
