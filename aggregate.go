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
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/combin"
)

// OverlapRecord is the minimum overlap between two classes of a dataframe.
// ClassA comes before ClassB in the class order given to the Aggregator.
type OverlapRecord struct {
	Dataframe  DataframeID
	ClassA     ClassID
	ClassB     ClassID
	MinOverlap int
}

// DataframeSummary is the sum of the minimum overlaps of a dataframe.
type DataframeSummary struct {
	Dataframe       DataframeID
	TotalMinOverlap int
}

// Result holds the output of an aggregation in canonical order: by
// dataframe in the order requested, then by class pair.
type Result struct {
	Records   []OverlapRecord
	Summaries []DataframeSummary
	Skips     []Skip
}

// RecordsFor returns the records of dataframe df.
func (r *Result) RecordsFor(df DataframeID) []OverlapRecord {
	var o []OverlapRecord
	for _, rec := range r.Records {
		if rec.Dataframe == df {
			o = append(o, rec)
		}
	}
	return o
}

// Aggregator computes the minimum overlap of every pair of classes in
// each dataframe from the partitions and bounding geometries in Store.
type Aggregator struct {
	Store Store

	// ClassIDs is the fixed class order. Pairs are enumerated as
	// combinations of two in ascending position order.
	ClassIDs []ClassID

	// Epsilon, if positive, replaces the tolerance of the stored bounding
	// geometries when counting containment.
	Epsilon float64

	// Workers is the number of dataframes processed at the same time.
	// Values below 2 process them one after the other.
	Workers int

	// Log receives skip and progress messages. If nil, the logrus
	// standard logger is used.
	Log logrus.FieldLogger
}

// classPair holds the positions of two classes in Aggregator.ClassIDs.
type classPair struct{ a, b int }

// pairs returns all combinations of two of n classes, ordered by first
// and then second position.
func pairs(n int) []classPair {
	if n < 2 {
		return nil
	}
	combs := combin.Combinations(n, 2)
	o := make([]classPair, len(combs))
	for i, c := range combs {
		o[i] = classPair{a: c[0], b: c[1]}
	}
	sort.Slice(o, func(i, j int) bool {
		if o[i].a != o[j].a {
			return o[i].a < o[j].a
		}
		return o[i].b < o[j].b
	})
	return o
}

// dataframeResult is the output for a single dataframe.
type dataframeResult struct {
	records []OverlapRecord
	summary DataframeSummary
	skips   []Skip
}

// Aggregate computes the overlap records and totals of the given
// dataframes. A dataframe listed more than once is only computed the first
// time it appears. Missing or empty partitions only remove the pairs that
// involve them; they are reported in Result.Skips. The result is the same
// regardless of Workers. An error is returned only for an invalid class
// list or a cancelled context.
func (a *Aggregator) Aggregate(ctx context.Context, dataframes []DataframeID) (*Result, error) {
	if err := checkClassIDs(a.ClassIDs); err != nil {
		return nil, err
	}
	log := a.logger()
	dataframes = uniqueDataframes(dataframes, log)
	prs := pairs(len(a.ClassIDs))
	slots := make([]dataframeResult, len(dataframes))

	if a.Workers < 2 {
		for i, df := range dataframes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slots[i] = a.dataframe(df, prs, log)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.Workers)
		for i, df := range dataframes {
			i, df := i, df
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				slots[i] = a.dataframe(df, prs, log)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	r := new(Result)
	for _, s := range slots {
		r.Records = append(r.Records, s.records...)
		r.Summaries = append(r.Summaries, s.summary)
		r.Skips = append(r.Skips, s.skips...)
	}
	return r, nil
}

func (a *Aggregator) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

func checkClassIDs(ids []ClassID) error {
	seen := make(map[ClassID]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("overlap: empty class id")
		}
		if seen[id] {
			return fmt.Errorf("overlap: duplicate class id %q", id)
		}
		seen[id] = true
	}
	return nil
}

// classData is a partition and its bounding geometry, or the error that
// prevented retrieving them.
type classData struct {
	points *PointCollection
	hull   *BoundingGeometry
	err    error
}

// load retrieves the partition and hull of a class from the store.
func (a *Aggregator) load(df DataframeID, class ClassID) classData {
	pts, err := a.Store.Points(PointsKey(df, class))
	if err != nil {
		return classData{err: fmt.Errorf("%w: %w", ErrStoreLookup, err)}
	}
	if pts.Len() == 0 {
		return classData{err: fmt.Errorf("%w: %s", ErrEmptyPartition, PointsKey(df, class))}
	}
	hull, err := a.Store.Hull(HullKey(df, class))
	if err != nil {
		return classData{err: fmt.Errorf("%w: %w", ErrStoreLookup, err)}
	}
	if a.Epsilon > 0 && hull.Epsilon != a.Epsilon {
		h := *hull
		h.Epsilon = a.Epsilon
		hull = &h
	}
	return classData{points: pts, hull: hull}
}

// dataframe folds over all class pairs of df.
func (a *Aggregator) dataframe(df DataframeID, prs []classPair, log logrus.FieldLogger) dataframeResult {
	r := dataframeResult{summary: DataframeSummary{Dataframe: df}}
	data := make([]classData, len(a.ClassIDs))
	for i, class := range a.ClassIDs {
		data[i] = a.load(df, class)
		if err := data[i].err; err != nil && !errors.Is(err, ErrNotFound) {
			log.WithFields(logrus.Fields{
				"dataframe": df,
				"class":     class,
				"error":     err,
			}).Warn("class partition unavailable")
		}
	}
	for _, p := range prs {
		ca, cb := a.ClassIDs[p.a], a.ClassIDs[p.b]
		da, db := data[p.a], data[p.b]
		if err := firstErr(da.err, db.err); err != nil {
			s := Skip{Kind: skipKindOf(err), Dataframe: df, ClassA: ca, ClassB: cb, Err: err}
			r.skips = append(r.skips, s)
			log.WithFields(s.Fields()).Debug("skipping class pair")
			continue
		}
		n := MinOverlap(da.points, da.hull, db.points, db.hull)
		r.records = append(r.records, OverlapRecord{Dataframe: df, ClassA: ca, ClassB: cb, MinOverlap: n})
		r.summary.TotalMinOverlap += n
	}
	log.WithFields(logrus.Fields{
		"dataframe": df,
		"pairs":     len(r.records),
		"skipped":   len(r.skips),
		"total":     r.summary.TotalMinOverlap,
	}).Info("aggregated dataframe")
	return r
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// uniqueDataframes returns dfs without repeats, keeping the first
// occurrence of each.
func uniqueDataframes(dfs []DataframeID, log logrus.FieldLogger) []DataframeID {
	seen := make(map[DataframeID]bool, len(dfs))
	o := make([]DataframeID, 0, len(dfs))
	for _, df := range dfs {
		if seen[df] {
			log.WithField("dataframe", df).Warn("dataframe is listed more than once; ignoring the repeat")
			continue
		}
		seen[df] = true
		o = append(o, df)
	}
	return o
}
