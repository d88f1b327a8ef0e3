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
)

// Partition groups the records of c by the distinct values of attribute.
// Values are compared by exact equality on their native type without any
// normalization, and each group keeps the relative record order of c.
// Groups are named with the canonical partition key of their dataframe
// and class, where the dataframe is taken from the name of c.
//
// If attribute is not part of the schema of c, the returned error wraps
// ErrMissingAttribute. If two distinct values render as the same ClassID,
// it wraps ErrClassCollision.
func Partition(c *PointCollection, attribute string) (map[ClassID]*PointCollection, error) {
	groups, order, err := group(c, attribute)
	if err != nil {
		return nil, err
	}
	df := DataframeOf(c.Name)
	o := make(map[ClassID]*PointCollection, len(groups))
	for _, v := range order {
		id := classIDOf(v)
		if _, ok := o[id]; ok {
			return nil, fmt.Errorf("%w: partitioning %s by %s: distinct values render as the same class %q",
				ErrClassCollision, c.Name, attribute, id)
		}
		o[id] = c.subset(PointsKey(df, id).String(), groups[v])
	}
	return o, nil
}

// ClassValues returns the distinct classes of attribute in c in natural order.
func ClassValues(c *PointCollection, attribute string) ([]ClassID, error) {
	_, order, err := group(c, attribute)
	if err != nil {
		return nil, err
	}
	o := make([]ClassID, len(order))
	for i, v := range order {
		o[i] = classIDOf(v)
	}
	SortClasses(o)
	return o, nil
}

// group returns the record indices for each native attribute value and the
// values in first-seen order.
func group(c *PointCollection, attribute string) (map[interface{}][]int, []interface{}, error) {
	if _, ok := c.Field(attribute); !ok {
		return nil, nil, fmt.Errorf("%w: field %q not found in %s", ErrMissingAttribute, attribute, c.Name)
	}
	groups := make(map[interface{}][]int)
	var order []interface{}
	for i, r := range c.Records {
		v := r.Attributes[attribute]
		if f, ok := v.(float64); ok && math.IsNaN(f) {
			v = "NaN" // NaN never equals itself, so it can't be a map key.
		}
		if _, ok := groups[v]; !ok {
			order = append(order, v)
		}
		groups[v] = append(groups[v], i)
	}
	return groups, order, nil
}

// DataframeOf derives the dataframe identifier from a collection name by
// removing the "dataframe_" prefix, if present.
func DataframeOf(name string) DataframeID {
	if len(name) > len(keyPrefix) && name[:len(keyPrefix)] == keyPrefix {
		return DataframeID(name[len(keyPrefix):])
	}
	return DataframeID(name)
}

// SortDataframes sorts ids in natural order.
func SortDataframes(ids []DataframeID) {
	sort.SliceStable(ids, func(i, j int) bool { return NaturalLess(string(ids[i]), string(ids[j])) })
}

// SortClasses sorts ids in natural order.
func SortClasses(ids []ClassID) {
	sort.SliceStable(ids, func(i, j int) bool { return NaturalLess(string(ids[i]), string(ids[j])) })
}
