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

package store

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	"github.com/spatialmodel/overlap"
)

// Attribute field names written to every shapefile.
const (
	dataframeField = "Dataframe"
	classField     = "Class"
	kindField      = "Kind"
	fieldLength    = 50
)

// Shapefile is an overlap.Store that keeps one ESRI shapefile per key in
// a directory, named after the canonical key name (for example
// dataframe_1_unit_class2.shp and dataframe_1_unit_class2_MBG.shp).
// Partitions are saved as point shapes and bounding geometries as
// single-ring polygons; only geometry, the dataframe and class identifiers,
// and the spatial reference (.prj) are kept.
//
// Reads may run concurrently with each other, but not with writes.
type Shapefile struct {
	// Dir is the directory holding the shapefiles.
	Dir string

	// Overwrite specifies whether existing features may be replaced.
	Overwrite bool

	mu sync.Mutex
}

// NewShapefile returns a shapefile store in dir, creating the directory if
// it does not exist.
func NewShapefile(dir string, overwrite bool) (*Shapefile, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("store: creating shapefile directory: %v", err)
	}
	return &Shapefile{Dir: dir, Overwrite: overwrite}, nil
}

// path returns the location of the .shp file for k.
func (s *Shapefile) path(k overlap.Key) (string, error) {
	name := k.String()
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("store: invalid feature name %q", name)
	}
	return filepath.Join(s.Dir, name+".shp"), nil
}

// expandShp returns the given .shp file and its .dbf, .shx, and .prj
// companions.
func expandShp(filename string) []string {
	base := strings.TrimSuffix(filename, ".shp")
	return []string{base + ".shp", base + ".dbf", base + ".shx", base + ".prj"}
}

// prepare checks whether a feature may be written to path and removes any
// previous version of it, with its companion files.
func (s *Shapefile) prepare(path string) error {
	if _, err := os.Stat(path); err == nil {
		if !s.Overwrite {
			return fmt.Errorf("store: %s already exists and overwriting is disabled", path)
		}
		for _, f := range expandShp(path) {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("store: removing %s: %v", f, err)
			}
		}
	}
	return nil
}

// writePrj saves the spatial reference definition next to path.
func writePrj(path, srText string) error {
	if srText == "" {
		return nil
	}
	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if err := ioutil.WriteFile(prj, []byte(srText), 0644); err != nil {
		return fmt.Errorf("store: writing %s: %v", prj, err)
	}
	return nil
}

// readPrj returns the spatial reference saved next to path, if any.
func readPrj(path string) (*proj.SR, string, error) {
	b, err := ioutil.ReadFile(strings.TrimSuffix(path, ".shp") + ".prj")
	if os.IsNotExist(err) {
		return nil, "", nil
	} else if err != nil {
		return nil, "", fmt.Errorf("store: reading projection of %s: %v", path, err)
	}
	sr, err := proj.Parse(string(b))
	if err != nil {
		return nil, "", fmt.Errorf("store: parsing projection of %s: %v", path, err)
	}
	return sr, string(b), nil
}

// PutPoints implements overlap.Store.
func (s *Shapefile) PutPoints(k overlap.Key, c *overlap.PointCollection) error {
	if err := checkLayer(k, overlap.PointsLayer); err != nil {
		return err
	}
	path, err := s.path(k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prepare(path); err != nil {
		return err
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POINT,
		goshp.StringField(dataframeField, fieldLength),
		goshp.StringField(classField, fieldLength),
	)
	if err != nil {
		return fmt.Errorf("store: creating %s: %v", path, err)
	}
	for _, r := range c.Records {
		if err := e.EncodeFields(r.Point, string(k.Dataframe), string(k.Class)); err != nil {
			e.Close()
			return fmt.Errorf("store: writing %s: %v", path, err)
		}
	}
	e.Close()
	return writePrj(path, c.SRText)
}

// PutHull implements overlap.Store.
func (s *Shapefile) PutHull(k overlap.Key, g *overlap.BoundingGeometry) error {
	if err := checkLayer(k, overlap.HullLayer); err != nil {
		return err
	}
	if len(g.Ring) == 0 {
		return fmt.Errorf("store: %s: bounding geometry has no vertices", k)
	}
	path, err := s.path(k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prepare(path); err != nil {
		return err
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON,
		goshp.StringField(dataframeField, fieldLength),
		goshp.StringField(classField, fieldLength),
		goshp.StringField(kindField, fieldLength),
	)
	if err != nil {
		return fmt.Errorf("store: creating %s: %v", path, err)
	}
	err = e.EncodeFields(g.Polygon(), string(k.Dataframe), string(k.Class), g.Kind.String())
	e.Close()
	if err != nil {
		return fmt.Errorf("store: writing %s: %v", path, err)
	}
	return nil
}

// open returns a decoder for the shapefile of k, or an error wrapping
// overlap.ErrNotFound if there is none.
func (s *Shapefile) open(k overlap.Key) (*shp.Decoder, string, error) {
	path, err := s.path(k)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("store: %s: %w", k, overlap.ErrNotFound)
	}
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, "", fmt.Errorf("store: opening %s: %v", path, err)
	}
	return d, path, nil
}

// Points implements overlap.Store.
func (s *Shapefile) Points(k overlap.Key) (*overlap.PointCollection, error) {
	if err := checkLayer(k, overlap.PointsLayer); err != nil {
		return nil, err
	}
	d, path, err := s.open(k)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	c := &overlap.PointCollection{
		Name: k.String(),
		Fields: []overlap.Field{
			{Name: dataframeField, Type: overlap.String},
			{Name: classField, Type: overlap.String},
		},
	}
	for {
		g, fields, more := d.DecodeRowFields(dataframeField, classField)
		if !more {
			break
		}
		p, ok := g.(geom.Point)
		if !ok {
			return nil, fmt.Errorf("store: %s: expected point geometry, got %T", path, g)
		}
		c.Records = append(c.Records, overlap.Record{
			Point: p,
			Attributes: map[string]interface{}{
				dataframeField: strings.TrimSpace(fields[dataframeField]),
				classField:     strings.TrimSpace(fields[classField]),
			},
		})
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("store: reading %s: %v", path, err)
	}
	if c.SR, c.SRText, err = readPrj(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Hull implements overlap.Store. Rings are normalized to counter-clockwise
// order, since shapefiles store outer rings clockwise. The returned
// geometry uses the default tolerance.
func (s *Shapefile) Hull(k overlap.Key) (*overlap.BoundingGeometry, error) {
	if err := checkLayer(k, overlap.HullLayer); err != nil {
		return nil, err
	}
	d, path, err := s.open(k)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	g, fields, more := d.DecodeRowFields(kindField)
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("store: reading %s: %v", path, err)
	}
	if !more {
		return nil, fmt.Errorf("store: %s holds no bounding geometry", path)
	}
	kind, err := overlap.ParseHullKind(strings.TrimSpace(fields[kindField]))
	if err != nil {
		return nil, fmt.Errorf("store: %s: %v", path, err)
	}
	poly, ok := g.(geom.Polygon)
	if !ok || len(poly) != 1 {
		return nil, fmt.Errorf("store: %s: expected single-ring polygon, got %T", path, g)
	}
	ring := normalizeRing([]geom.Point(poly[0]))
	var valid bool
	switch kind {
	case overlap.HullPoint:
		valid = len(ring) == 2
	case overlap.HullSegment:
		valid = len(ring) == 3
	default:
		valid = len(ring) >= 4
	}
	if !valid {
		return nil, fmt.Errorf("store: %s: %s hull has %d ring points", path, kind, len(ring))
	}
	return &overlap.BoundingGeometry{Kind: kind, Ring: ring}, nil
}

// Delete implements overlap.Store. It fails if a feature exists under k and
// overwriting is disabled.
func (s *Shapefile) Delete(k overlap.Key) error {
	path, err := s.path(k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepare(path)
}

// normalizeRing returns a closed ring in counter-clockwise order that
// starts at its lowest (by X, then Y) vertex, which is how bounding
// geometries are built.
func normalizeRing(ring []geom.Point) []geom.Point {
	n := len(ring)
	if n < 2 {
		return ring
	}
	pts := ring[:n-1] // without the closing point
	var area float64
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		area += a.X*b.Y - b.X*a.Y
	}
	o := make([]geom.Point, len(pts))
	if area < 0 {
		for i, p := range pts {
			o[len(pts)-1-i] = p
		}
	} else {
		copy(o, pts)
	}
	start := 0
	for i, p := range o {
		if p.X < o[start].X || (p.X == o[start].X && p.Y < o[start].Y) {
			start = i
		}
	}
	o = append(o[start:], o[:start]...)
	return append(o, o[0])
}

// List implements overlap.Store. Shapefiles whose names are not
// canonical feature names are ignored.
func (s *Shapefile) List() ([]overlap.Key, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "*.shp"))
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %v", s.Dir, err)
	}
	var o []overlap.Key
	for _, f := range files {
		k, err := overlap.ParseKey(strings.TrimSuffix(filepath.Base(f), ".shp"))
		if err != nil {
			continue
		}
		o = append(o, k)
	}
	sortKeys(o)
	return o, nil
}
