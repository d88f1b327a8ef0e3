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

// Package store holds class partitions and their bounding geometries,
// either in memory or as a directory of shapefiles.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spatialmodel/overlap"
)

// Mem is an in-memory overlap.Store. It is safe for concurrent use.
type Mem struct {
	mu     sync.RWMutex
	points map[overlap.Key]*overlap.PointCollection
	hulls  map[overlap.Key]*overlap.BoundingGeometry
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		points: make(map[overlap.Key]*overlap.PointCollection),
		hulls:  make(map[overlap.Key]*overlap.BoundingGeometry),
	}
}

// PutPoints implements overlap.Store.
func (m *Mem) PutPoints(k overlap.Key, c *overlap.PointCollection) error {
	if err := checkLayer(k, overlap.PointsLayer); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[k] = c
	return nil
}

// PutHull implements overlap.Store.
func (m *Mem) PutHull(k overlap.Key, g *overlap.BoundingGeometry) error {
	if err := checkLayer(k, overlap.HullLayer); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hulls[k] = g
	return nil
}

// Points implements overlap.Store.
func (m *Mem) Points(k overlap.Key) (*overlap.PointCollection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.points[k]
	if !ok {
		return nil, fmt.Errorf("store: %s: %w", k, overlap.ErrNotFound)
	}
	return c, nil
}

// Hull implements overlap.Store.
func (m *Mem) Hull(k overlap.Key) (*overlap.BoundingGeometry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.hulls[k]
	if !ok {
		return nil, fmt.Errorf("store: %s: %w", k, overlap.ErrNotFound)
	}
	return g, nil
}

// List implements overlap.Store.
func (m *Mem) List() ([]overlap.Key, error) {
	m.mu.RLock()
	o := make([]overlap.Key, 0, len(m.points)+len(m.hulls))
	for k := range m.points {
		o = append(o, k)
	}
	for k := range m.hulls {
		o = append(o, k)
	}
	m.mu.RUnlock()
	sortKeys(o)
	return o, nil
}

// Delete implements overlap.Store.
func (m *Mem) Delete(k overlap.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, k)
	delete(m.hulls, k)
	return nil
}

func checkLayer(k overlap.Key, want overlap.Layer) error {
	if k.Layer != want {
		return fmt.Errorf("store: key %s is a %s key, not a %s key", k, k.Layer, want)
	}
	if k.Dataframe == "" || k.Class == "" {
		return fmt.Errorf("store: incomplete key %+v", k)
	}
	return nil
}

func sortKeys(keys []overlap.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
