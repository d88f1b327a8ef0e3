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

	"github.com/sirupsen/logrus"
)

// ClassSummary describes one class partition after it has been bounded.
// SelfCount is the number of partition points within the partition's own
// bounding geometry, which always equals Points.
type ClassSummary struct {
	Dataframe DataframeID
	Class     ClassID
	Points    int
	HullKind  HullKind
	Vertices  int
	SelfCount int
}

// Classifier splits dataframe collections into class partitions, bounds
// each partition, and saves both in Store.
type Classifier struct {
	Store Store

	// Attribute is the classification field, e.g. "unit_classification".
	Attribute string

	// Epsilon is the geometric tolerance of the bounding geometries.
	// If it is not positive, DefaultEpsilon is used.
	Epsilon float64

	// Log receives progress and skip messages. If nil, the logrus
	// standard logger is used.
	Log logrus.FieldLogger
}

// Classify partitions c by the classification attribute and stores each
// partition with its bounding geometry under the keys of dataframe df.
// Anything the store held for df before is removed first, so the classes of
// df are always those of c alone.
//
// A collection that can't be partitioned, because the classification
// attribute is missing or two values share a ClassID, is reported as a Skip,
// as is a partition without a bounding geometry. An error is returned only
// when the store can't clear or save a feature, in which case the dataframe
// is incomplete.
func (cl *Classifier) Classify(df DataframeID, c *PointCollection) ([]ClassSummary, []Skip, error) {
	log := cl.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"dataframe": df, "collection": c.Name})

	if err := ClearDataframe(cl.Store, df); err != nil {
		return nil, nil, fmt.Errorf("overlap: clearing dataframe %s: %w", df, err)
	}
	parts, err := Partition(c, cl.Attribute)
	if err != nil {
		s := Skip{Kind: skipKindOf(err), Dataframe: df, Source: c.Name, Err: err}
		log.WithFields(s.Fields()).Warnf("can't split by %s; skipping: %v", cl.Attribute, err)
		return nil, []Skip{s}, nil
	}
	classes := make([]ClassID, 0, len(parts))
	for class := range parts {
		classes = append(classes, class)
	}
	SortClasses(classes)

	var summaries []ClassSummary
	var skips []Skip
	for _, class := range classes {
		pts := parts[class]
		pk := PointsKey(df, class)
		if err := cl.Store.PutPoints(pk, pts); err != nil {
			return summaries, skips, fmt.Errorf("overlap: saving %s: %w", pk, err)
		}
		log.WithField("class", class).Infof("split by %s %s: saved as %s", cl.Attribute, class, pk)

		hull, err := BuildHull(pts, cl.Epsilon)
		if err != nil {
			s := Skip{Kind: skipKindOf(err), Dataframe: df, ClassA: class, Source: c.Name, Err: err}
			log.WithFields(s.Fields()).Warn("no bounding geometry")
			skips = append(skips, s)
			continue
		}
		hk := HullKey(df, class)
		if err := cl.Store.PutHull(hk, hull); err != nil {
			return summaries, skips, fmt.Errorf("overlap: saving %s: %w", hk, err)
		}
		self := CountWithin(pts, hull)
		log.WithFields(logrus.Fields{
			"class":    class,
			"hull":     hull.Kind,
			"vertices": hull.Vertices(),
		}).Infof("created MBG for %s: saved as %s; %d of %d points within", pk, hk, self, pts.Len())

		summaries = append(summaries, ClassSummary{
			Dataframe: df,
			Class:     class,
			Points:    pts.Len(),
			HullKind:  hull.Kind,
			Vertices:  hull.Vertices(),
			SelfCount: self,
		})
	}
	return summaries, skips, nil
}
