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
	"strings"
)

// Layer distinguishes the two kinds of stored features.
type Layer int

// Stored feature layers.
const (
	// PointsLayer holds the points of one class partition.
	PointsLayer Layer = iota
	// HullLayer holds the minimum bounding geometry of one partition.
	HullLayer
)

func (l Layer) String() string {
	if l == HullLayer {
		return "hull"
	}
	return "points"
}

const (
	keyPrefix    = "dataframe_"
	keyClassPart = "_unit_class"
	keyHullPart  = "_MBG"
)

// Key identifies a stored partition or bounding geometry.
type Key struct {
	Dataframe DataframeID
	Class     ClassID
	Layer     Layer
}

// PointsKey returns the key of a class partition.
func PointsKey(df DataframeID, class ClassID) Key {
	return Key{Dataframe: df, Class: class, Layer: PointsLayer}
}

// HullKey returns the key of a class partition's bounding geometry.
func HullKey(df DataframeID, class ClassID) Key {
	return Key{Dataframe: df, Class: class, Layer: HullLayer}
}

// String renders the canonical feature name of k:
// dataframe_{id}_unit_class{class} for partitions, with an _MBG
// suffix for bounding geometries.
func (k Key) String() string {
	s := keyPrefix + string(k.Dataframe) + keyClassPart + string(k.Class)
	if k.Layer == HullLayer {
		s += keyHullPart
	}
	return s
}

// ParseKey is the inverse of Key.String.
func ParseKey(name string) (Key, error) {
	var k Key
	if !strings.HasPrefix(name, keyPrefix) {
		return k, fmt.Errorf("overlap: invalid feature name %q: missing %q prefix", name, keyPrefix)
	}
	rest := strings.TrimPrefix(name, keyPrefix)
	if strings.HasSuffix(rest, keyHullPart) {
		k.Layer = HullLayer
		rest = strings.TrimSuffix(rest, keyHullPart)
	}
	i := strings.LastIndex(rest, keyClassPart)
	if i <= 0 {
		return Key{}, fmt.Errorf("overlap: invalid feature name %q: missing dataframe or %q", name, keyClassPart)
	}
	k.Dataframe = DataframeID(rest[:i])
	k.Class = ClassID(rest[i+len(keyClassPart):])
	if k.Class == "" {
		return Key{}, fmt.Errorf("overlap: invalid feature name %q: missing class", name)
	}
	return k, nil
}

// Store holds class partitions and their bounding geometries under
// structured keys. Implementations must support concurrent reads.
type Store interface {
	// PutPoints stores the partition c under k, which must be a
	// PointsLayer key.
	PutPoints(k Key, c *PointCollection) error

	// PutHull stores the bounding geometry g under k, which must be a
	// HullLayer key.
	PutHull(k Key, g *BoundingGeometry) error

	// Points returns the partition stored under k. The error wraps
	// ErrNotFound if there is none.
	Points(k Key) (*PointCollection, error)

	// Hull returns the bounding geometry stored under k. The error wraps
	// ErrNotFound if there is none.
	Hull(k Key) (*BoundingGeometry, error)

	// List returns every stored key ordered by canonical name.
	List() ([]Key, error)

	// Delete removes whatever is stored under k. Deleting a key that is
	// not stored is not an error.
	Delete(k Key) error
}

// ClearDataframe deletes every partition and bounding geometry that st
// holds for dataframe df.
func ClearDataframe(st Store, df DataframeID) error {
	keys, err := st.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.Dataframe != df {
			continue
		}
		if err := st.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Dataframes returns the distinct dataframes among keys in natural order.
func Dataframes(keys []Key) []DataframeID {
	seen := make(map[DataframeID]bool)
	var o []DataframeID
	for _, k := range keys {
		if !seen[k.Dataframe] {
			seen[k.Dataframe] = true
			o = append(o, k.Dataframe)
		}
	}
	SortDataframes(o)
	return o
}
