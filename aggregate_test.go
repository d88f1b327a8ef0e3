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

package overlap_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlap"
	"github.com/spatialmodel/overlap/store"
)

const classField = "unit_classification"

// dataframe returns a collection named after df whose points are labeled
// with their class.
func dataframe(df string, classes map[string][]geom.Point) *overlap.PointCollection {
	c := &overlap.PointCollection{
		Name:   "dataframe_" + df,
		Fields: []overlap.Field{{Name: classField, Type: overlap.String}},
	}
	ids := make([]overlap.ClassID, 0, len(classes))
	for id := range classes {
		ids = append(ids, overlap.ClassID(id))
	}
	overlap.SortClasses(ids)
	for _, id := range ids {
		for _, p := range classes[string(id)] {
			c.Records = append(c.Records, overlap.Record{
				Point:      p,
				Attributes: map[string]interface{}{classField: string(id)},
			})
		}
	}
	return c
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// classified returns a store holding the classified dataframes.
func classified(t *testing.T, dfs map[string]map[string][]geom.Point) *store.Mem {
	st := store.NewMem()
	cl := &overlap.Classifier{Store: st, Attribute: classField, Log: quietLogger()}
	for df, classes := range dfs {
		if _, _, err := cl.Classify(overlap.DataframeID(df), dataframe(df, classes)); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

var squareClass = []geom.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}}

func TestAggregate(t *testing.T) {
	st := classified(t, map[string]map[string][]geom.Point{
		// (10,10) is on the segment bounding class 2.
		"1": {"1": squareClass, "2": {{X: 5, Y: 5}, {X: 50, Y: 50}}},
		"2": {"1": squareClass, "2": {{X: 5, Y: 5}, {X: 50, Y: 60}}},
	})
	a := &overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"1", "2"}, Log: quietLogger()}
	r, err := a.Aggregate(context.Background(), []overlap.DataframeID{"1", "2"})
	if err != nil {
		t.Fatal(err)
	}
	wantRecords := []overlap.OverlapRecord{
		{Dataframe: "1", ClassA: "1", ClassB: "2", MinOverlap: 1},
		{Dataframe: "2", ClassA: "1", ClassB: "2", MinOverlap: 0},
	}
	wantSummaries := []overlap.DataframeSummary{
		{Dataframe: "1", TotalMinOverlap: 1},
		{Dataframe: "2", TotalMinOverlap: 0},
	}
	if diff := cmp.Diff(wantRecords, r.Records); diff != "" {
		t.Errorf("records (-want +have):\n%s", diff)
	}
	if diff := cmp.Diff(wantSummaries, r.Summaries); diff != "" {
		t.Errorf("summaries (-want +have):\n%s", diff)
	}
	if len(r.Skips) != 0 {
		t.Errorf("unexpected skips: %v", r.Skips)
	}
	if have := r.RecordsFor("2"); !reflect.DeepEqual(have, wantRecords[1:]) {
		t.Errorf("RecordsFor: have %v", have)
	}
}

func TestAggregateMissingClasses(t *testing.T) {
	st := classified(t, map[string]map[string][]geom.Point{
		"1": {
			"1": squareClass,
			"3": {{X: 5, Y: 5}, {X: 20, Y: 20}, {X: 5, Y: 1}},
		},
	})
	if err := st.PutPoints(overlap.PointsKey("1", "4"), overlap.NewPointCollection("empty")); err != nil {
		t.Fatal(err)
	}
	a := &overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"1", "2", "3", "4"}, Log: quietLogger()}
	r, err := a.Aggregate(context.Background(), []overlap.DataframeID{"1", "9"})
	if err != nil {
		t.Fatal(err)
	}
	wantRecords := []overlap.OverlapRecord{{Dataframe: "1", ClassA: "1", ClassB: "3", MinOverlap: 1}}
	if diff := cmp.Diff(wantRecords, r.Records); diff != "" {
		t.Errorf("records (-want +have):\n%s", diff)
	}
	wantSummaries := []overlap.DataframeSummary{
		{Dataframe: "1", TotalMinOverlap: 1},
		{Dataframe: "9", TotalMinOverlap: 0},
	}
	if diff := cmp.Diff(wantSummaries, r.Summaries); diff != "" {
		t.Errorf("summaries (-want +have):\n%s", diff)
	}

	kinds := make(map[string]int)
	for _, s := range r.Skips {
		kinds[fmt.Sprintf("%s/%s", s.Dataframe, s.Kind)]++
		if s.ClassA == "" || s.ClassB == "" {
			t.Errorf("skip without class pair: %v", s)
		}
	}
	want := map[string]int{
		"1/StoreLookupFailure": 3, // pairs with class 2
		"1/EmptyPartition":     2, // (1,4) and (3,4)
		"9/StoreLookupFailure": 6,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("skips (-want +have):\n%s", diff)
	}
	for _, s := range r.Skips {
		if s.Kind == overlap.StoreLookupFailure && !errors.Is(s.Err, overlap.ErrNotFound) {
			t.Errorf("lookup failure should wrap ErrNotFound: %v", s.Err)
		}
	}
}

func TestAggregateSymmetric(t *testing.T) {
	st := classified(t, map[string]map[string][]geom.Point{
		"1": {
			"a": {{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 2, Y: 2}},
			"b": {{X: 2, Y: 2}, {X: 6, Y: 2}, {X: 6, Y: 6}, {X: 2, Y: 6}, {X: 3, Y: 3}},
		},
	})
	ctx := context.Background()
	dfs := []overlap.DataframeID{"1"}
	ab, err := (&overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"a", "b"}, Log: quietLogger()}).Aggregate(ctx, dfs)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := (&overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"b", "a"}, Log: quietLogger()}).Aggregate(ctx, dfs)
	if err != nil {
		t.Fatal(err)
	}
	if ab.Records[0].ClassA != "a" || ba.Records[0].ClassA != "b" {
		t.Errorf("pairs should follow the class order: %v %v", ab.Records, ba.Records)
	}
	// b holds (2,2) and (3,3) within a; a holds (4,4) and (2,2) within b.
	if ab.Records[0].MinOverlap != 2 || ba.Records[0].MinOverlap != 2 {
		t.Errorf("have %d and %d, want 2", ab.Records[0].MinOverlap, ba.Records[0].MinOverlap)
	}
}

func TestAggregateParallel(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	dfs := make(map[string]map[string][]geom.Point)
	var ids []overlap.DataframeID
	for i := 0; i < 25; i++ {
		df := fmt.Sprint(i)
		ids = append(ids, overlap.DataframeID(df))
		classes := make(map[string][]geom.Point)
		for c := 1; c <= 4; c++ {
			if r.Intn(5) == 0 {
				continue // missing class
			}
			n := 1 + r.Intn(40)
			cx, cy := r.Float64()*10, r.Float64()*10
			for j := 0; j < n; j++ {
				classes[fmt.Sprint(c)] = append(classes[fmt.Sprint(c)],
					geom.Point{X: cx + r.NormFloat64()*3, Y: cy + r.NormFloat64()*3})
			}
		}
		dfs[df] = classes
	}
	st := classified(t, dfs)
	classes := []overlap.ClassID{"1", "2", "3", "4"}
	ctx := context.Background()

	serial, err := (&overlap.Aggregator{Store: st, ClassIDs: classes, Log: quietLogger()}).Aggregate(ctx, ids)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := (&overlap.Aggregator{Store: st, ClassIDs: classes, Workers: 8, Log: quietLogger()}).Aggregate(ctx, ids)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(serial.Records, parallel.Records) {
		t.Error("records differ between serial and parallel aggregation")
	}
	if !reflect.DeepEqual(serial.Summaries, parallel.Summaries) {
		t.Error("summaries differ between serial and parallel aggregation")
	}
	if len(serial.Skips) != len(parallel.Skips) {
		t.Errorf("have %d serial and %d parallel skips", len(serial.Skips), len(parallel.Skips))
	}

	again, err := (&overlap.Aggregator{Store: st, ClassIDs: classes, Log: quietLogger()}).Aggregate(ctx, ids)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(serial.Records, again.Records) {
		t.Error("aggregation is not repeatable")
	}
	for i, s := range serial.Summaries {
		var sum int
		for _, rec := range serial.RecordsFor(s.Dataframe) {
			if rec.MinOverlap < 0 {
				t.Errorf("negative overlap %v", rec)
			}
			sum += rec.MinOverlap
		}
		if sum != s.TotalMinOverlap {
			t.Errorf("dataframe %s: total %d, sum of records %d", s.Dataframe, s.TotalMinOverlap, sum)
		}
		if s.Dataframe != ids[i] {
			t.Errorf("summary %d is for %s, want %s", i, s.Dataframe, ids[i])
		}
	}
}

func TestAggregateEpsilon(t *testing.T) {
	st := classified(t, map[string]map[string][]geom.Point{
		"1": {
			"1": squareClass,
			// The hull of class 2 encloses the square, and (10.001,5) is
			// just outside of the square.
			"2": {{X: 10.001, Y: 5}, {X: -1, Y: -1}, {X: 30, Y: -1}, {X: 30, Y: 30}, {X: -1, Y: 30}},
		},
	})
	for eps, want := range map[float64]int{0: 0, 0.01: 1} {
		a := &overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"1", "2"}, Epsilon: eps, Log: quietLogger()}
		r, err := a.Aggregate(context.Background(), []overlap.DataframeID{"1"})
		if err != nil {
			t.Fatal(err)
		}
		if have := r.Records[0].MinOverlap; have != want {
			t.Errorf("epsilon %g: have %d, want %d", eps, have, want)
		}
	}
	h, err := st.Hull(overlap.HullKey("1", "1"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Epsilon != overlap.DefaultEpsilon {
		t.Errorf("stored hull was modified: epsilon %g", h.Epsilon)
	}
}

func TestAggregateRepeatedDataframe(t *testing.T) {
	st := classified(t, map[string]map[string][]geom.Point{
		"1": {"1": squareClass, "2": {{X: 5, Y: 5}, {X: 50, Y: 50}}},
		"2": {"1": squareClass, "2": squareClass},
	})
	for _, workers := range []int{1, 4} {
		a := &overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"1", "2"}, Workers: workers, Log: quietLogger()}
		r, err := a.Aggregate(context.Background(), []overlap.DataframeID{"1", "2", "1"})
		if err != nil {
			t.Fatal(err)
		}
		want := []overlap.DataframeSummary{{Dataframe: "1", TotalMinOverlap: 1}, {Dataframe: "2", TotalMinOverlap: 4}}
		if diff := cmp.Diff(want, r.Summaries); diff != "" {
			t.Errorf("workers=%d: summaries (-want +have):\n%s", workers, diff)
		}
		if len(r.Records) != 2 {
			t.Errorf("workers=%d: have %d records, want 2", workers, len(r.Records))
		}
	}
}

func TestAggregateErrors(t *testing.T) {
	st := store.NewMem()
	for _, ids := range [][]overlap.ClassID{{"1", "2", "1"}, {"1", ""}} {
		a := &overlap.Aggregator{Store: st, ClassIDs: ids, Log: quietLogger()}
		if _, err := a.Aggregate(context.Background(), []overlap.DataframeID{"1"}); err == nil {
			t.Errorf("class list %q should be rejected", ids)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		a := &overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"1", "2"}, Workers: workers, Log: quietLogger()}
		if _, err := a.Aggregate(ctx, []overlap.DataframeID{"1", "2"}); !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: have %v, want context.Canceled", workers, err)
		}
	}

	// Fewer than two classes have no pairs.
	a := &overlap.Aggregator{Store: st, ClassIDs: []overlap.ClassID{"1"}, Log: quietLogger()}
	r, err := a.Aggregate(context.Background(), []overlap.DataframeID{"1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Records) != 0 || len(r.Summaries) != 1 || len(r.Skips) != 0 {
		t.Errorf("have %+v", r)
	}
}
