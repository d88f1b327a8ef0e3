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
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

func collection(name, attr string, typ FieldType, values ...interface{}) *PointCollection {
	c := &PointCollection{Name: name, Fields: []Field{{Name: attr, Type: typ}}}
	for i, v := range values {
		c.Records = append(c.Records, Record{
			Point:      geom.Point{X: float64(i), Y: float64(i)},
			Attributes: map[string]interface{}{attr: v},
		})
	}
	return c
}

func TestPartition(t *testing.T) {
	c := collection("dataframe_3", "unit_classification", Int,
		int64(2), int64(1), int64(2), int64(10), int64(1))
	parts, err := Partition(c, "unit_classification")
	if err != nil {
		t.Fatal(err)
	}
	want := map[ClassID][]geom.Point{
		"1":  {{X: 1, Y: 1}, {X: 4, Y: 4}},
		"2":  {{X: 0, Y: 0}, {X: 2, Y: 2}},
		"10": {{X: 3, Y: 3}},
	}
	if len(parts) != len(want) {
		t.Fatalf("have %d partitions, want %d", len(parts), len(want))
	}
	var total int
	for id, pts := range want {
		p, ok := parts[id]
		if !ok {
			t.Errorf("missing class %s", id)
			continue
		}
		total += p.Len()
		if !reflect.DeepEqual(p.Points(), pts) {
			t.Errorf("class %s: have %v, want %v", id, p.Points(), pts)
		}
		if wantName := PointsKey("3", id).String(); p.Name != wantName {
			t.Errorf("class %s: name %q, want %q", id, p.Name, wantName)
		}
	}
	if total != c.Len() {
		t.Errorf("partitions hold %d points, want %d", total, c.Len())
	}

	classes, err := ClassValues(c, "unit_classification")
	if err != nil {
		t.Fatal(err)
	}
	if wantClasses := []ClassID{"1", "2", "10"}; !reflect.DeepEqual(classes, wantClasses) {
		t.Errorf("have %v, want %v", classes, wantClasses)
	}
}

func TestPartitionMissingAttribute(t *testing.T) {
	c := collection("dataframe_1", "kind", String, "a")
	_, err := Partition(c, "unit_classification")
	if !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("have %v, want ErrMissingAttribute", err)
	}
}

func TestPartitionValues(t *testing.T) {
	c := collection("dataframe_1", "v", Float, 2.0, math.NaN(), 0.5, math.NaN())
	parts, err := Partition(c, "v")
	if err != nil {
		t.Fatal(err)
	}
	for id, n := range map[ClassID]int{"2": 1, "NaN": 2, "0.5": 1} {
		if have := parts[id].Len(); have != n {
			t.Errorf("class %s: have %d points, want %d", id, have, n)
		}
	}

	// No normalization: " a" and "a" are different classes.
	c = collection("dataframe_1", "v", String, "a", " a", "a")
	parts, err = Partition(c, "v")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 || parts["a"].Len() != 2 || parts[" a"].Len() != 1 {
		t.Errorf("have %v", parts)
	}

	// Distinct native values that render alike can't share a class.
	c = collection("dataframe_1", "v", String, int64(1), "1")
	if _, err := Partition(c, "v"); !errors.Is(err, ErrClassCollision) {
		t.Errorf("int64(1) and \"1\": have %v, want ErrClassCollision", err)
	}
}

func TestDataframeOf(t *testing.T) {
	for name, want := range map[string]DataframeID{
		"dataframe_1":  "1",
		"dataframe_ab": "ab",
		"dataframe_":   "dataframe_",
		"points":       "points",
	} {
		if have := DataframeOf(name); have != want {
			t.Errorf("DataframeOf(%q): have %q, want %q", name, have, want)
		}
	}
}
