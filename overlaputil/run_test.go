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

package overlaputil

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spatialmodel/overlap"
)

// testInputs writes four input tables to dir: two valid dataframes, one
// without the classification field, and one with a bad coordinate.
func testInputs(t *testing.T, dir string) {
	files := map[string]string{
		"dataframe-1.csv": "long,lat,unit_classification\n" +
			"0,0,1\n0,10,1\n10,10,1\n10,0,1\n" +
			"5,5,2\n50,60,2\n",
		"dataframe-2.csv": "long,lat,unit_classification\n" +
			"0,0,1\n0,10,1\n10,10,1\n10,0,1\n" +
			"5,5,3\n20,20,3\n5,1,3\n",
		"dataframe-3.csv": "long,lat,kind\n1,1,1\n",
		"dataframe-4.csv": "long,lat,unit_classification\n1,north,1\n",
	}
	for name, data := range files {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// Class 2 of dataframe 1 is bounded by the segment (5,5)-(50,60), which no
// vertex of the class 1 square touches, so the pair overlaps by 0. With
// (50,50) as the far end, (10,10) would lie on the segment and count as
// within it, giving 1.
const wantOverlap = "Dataframe,Unit_Class1,Unit_Class2,Min_Overlap_Points,Sum_Min_Overlap\r\n" +
	"1,1,2,0,\r\n" +
	"Total Sum for 1,,,,0\r\n" +
	"2,1,3,1,\r\n" +
	"Total Sum for 2,,,,1\r\n" +
	"Total Sum for 3,,,,0\r\n"

func testConfig(dir string) *Config {
	c := DefaultConfig()
	c.InputFiles = []string{filepath.Join(dir, "dataframe-*.csv")}
	c.ClassIDs = []overlap.ClassID{"1", "2", "3"}
	c.OutputFile = filepath.Join(dir, "overlap.csv")
	return c
}

func readFile(t *testing.T, path string) string {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	testInputs(t, dir)
	cfg := testConfig(dir)
	cfg.ClassReportFile = filepath.Join(dir, "classes.csv")

	var log bytes.Buffer
	r, err := Run(context.Background(), cfg, &log)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantOverlap, readFile(t, cfg.OutputFile)); diff != "" {
		t.Errorf("overlap table (-want +have):\n%s", diff)
	}

	kinds := make(map[overlap.SkipKind]int)
	for _, s := range r.Skips {
		kinds[s.Kind]++
	}
	wantKinds := map[overlap.SkipKind]int{
		overlap.IngestFailure:      1,
		overlap.MissingAttribute:   1,
		overlap.StoreLookupFailure: 7,
	}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Errorf("skips (-want +have):\n%s", diff)
	}

	wantClasses := "Dataframe,Unit_Class,Points,Hull_Kind,Hull_Vertices,Self_Count\r\n" +
		"1,1,4,polygon,4,4\r\n" +
		"1,2,2,segment,2,2\r\n" +
		"2,1,4,polygon,4,4\r\n" +
		"2,3,3,polygon,3,3\r\n"
	if diff := cmp.Diff(wantClasses, readFile(t, cfg.ClassReportFile)); diff != "" {
		t.Errorf("class table (-want +have):\n%s", diff)
	}

	logText := readFile(t, filepath.Join(dir, "overlap.log"))
	for _, s := range []string{"dataframe-4.csv", "MissingAttribute", "digest=", "Elapsed time"} {
		if !strings.Contains(logText, s) {
			t.Errorf("log file should mention %q", s)
		}
	}
	if log.String() != logText {
		t.Error("log output and log file differ")
	}
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	testInputs(t, dir)
	cfg := testConfig(dir)
	ctx := context.Background()

	if _, err := Run(ctx, cfg, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	first := readFile(t, cfg.OutputFile)

	cfg.Workers = 4
	cfg.StoreDir = filepath.Join(dir, "store")
	if _, err := Run(ctx, cfg, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	if second := readFile(t, cfg.OutputFile); second != first {
		t.Errorf("re-run output differs:\n%s\n%s", first, second)
	}
}

func TestClassifyAggregate(t *testing.T) {
	dir := t.TempDir()
	testInputs(t, dir)
	ctx := context.Background()

	cfg := testConfig(dir)
	cfg.StoreDir = filepath.Join(dir, "store")
	summaries, skips, err := Classify(ctx, cfg, ioutil.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 4 || len(skips) != 2 {
		t.Errorf("have %d summaries and %d skips, want 4 and 2", len(summaries), len(skips))
	}
	if _, err := os.Stat(filepath.Join(cfg.StoreDir, "dataframe_2_unit_class3_MBG.shp")); err != nil {
		t.Error(err)
	}

	// All stored dataframes.
	if _, err := Aggregate(ctx, cfg, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	want := strings.TrimSuffix(wantOverlap, "Total Sum for 3,,,,0\r\n")
	if diff := cmp.Diff(want, readFile(t, cfg.OutputFile)); diff != "" {
		t.Errorf("stored dataframes (-want +have):\n%s", diff)
	}

	// Configured dataframes, including one that was never stored.
	cfg.Dataframes = []overlap.DataframeID{"1", "2", "3"}
	if _, err := Aggregate(ctx, cfg, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantOverlap, readFile(t, cfg.OutputFile)); diff != "" {
		t.Errorf("configured dataframes (-want +have):\n%s", diff)
	}
}

// Both files are dataframe 1; the second one in file name order replaces
// the first, and none of the first file's classes may remain.
func TestRunReplacedDataframe(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"dataframe-1.csv": "long,lat,unit_classification\n" +
			"0,0,1\n0,10,1\n10,10,1\n10,0,1\n" +
			"5,5,3\n20,20,3\n5,1,3\n",
		"dataframe_1.csv": "long,lat,unit_classification\n" +
			"0,0,1\n0,10,1\n10,10,1\n10,0,1\n" +
			"5,5,2\n50,60,2\n",
	} {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := testConfig(dir)
	cfg.InputFiles = []string{filepath.Join(dir, "dataframe*1.csv")}
	cfg.ClassReportFile = filepath.Join(dir, "classes.csv")
	if _, err := Run(context.Background(), cfg, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	want := "Dataframe,Unit_Class1,Unit_Class2,Min_Overlap_Points,Sum_Min_Overlap\r\n" +
		"1,1,2,0,\r\n" +
		"Total Sum for 1,,,,0\r\n"
	if diff := cmp.Diff(want, readFile(t, cfg.OutputFile)); diff != "" {
		t.Errorf("overlap table (-want +have):\n%s", diff)
	}
	wantClasses := "Dataframe,Unit_Class,Points,Hull_Kind,Hull_Vertices,Self_Count\r\n" +
		"1,1,4,polygon,4,4\r\n" +
		"1,2,2,segment,2,2\r\n"
	if diff := cmp.Diff(wantClasses, readFile(t, cfg.ClassReportFile)); diff != "" {
		t.Errorf("class table (-want +have):\n%s", diff)
	}
}

// Classifying into a store directory that already holds the dataframe
// replaces its classes.
func TestClassifyReusedStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := testConfig(dir)
	cfg.StoreDir = filepath.Join(dir, "store")
	cfg.Overwrite = true
	for _, data := range []string{
		"long,lat,unit_classification\n0,0,1\n0,10,1\n10,10,1\n10,0,1\n5,5,3\n20,20,3\n5,1,3\n",
		"long,lat,unit_classification\n0,0,1\n0,10,1\n10,10,1\n10,0,1\n5,5,2\n50,60,2\n",
	} {
		if err := ioutil.WriteFile(filepath.Join(dir, "dataframe-1.csv"), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := Classify(ctx, cfg, ioutil.Discard); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"dataframe_1_unit_class3.shp", "dataframe_1_unit_class3_MBG.shp"} {
		if _, err := os.Stat(filepath.Join(cfg.StoreDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed: %v", name, err)
		}
	}
	if _, err := Aggregate(ctx, cfg, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	want := "Dataframe,Unit_Class1,Unit_Class2,Min_Overlap_Points,Sum_Min_Overlap\r\n" +
		"1,1,2,0,\r\n" +
		"Total Sum for 1,,,,0\r\n"
	if diff := cmp.Diff(want, readFile(t, cfg.OutputFile)); diff != "" {
		t.Errorf("overlap table (-want +have):\n%s", diff)
	}
}

func TestRunBadOutput(t *testing.T) {
	dir := t.TempDir()
	testInputs(t, dir)
	cfg := testConfig(dir)
	cfg.OutputFile = filepath.Join(dir, "missing", "overlap.csv")
	cfg.LogFile = filepath.Join(dir, "run.log")
	if _, err := Run(context.Background(), cfg, ioutil.Discard); err == nil {
		t.Error("an output in a missing directory should fail the run")
	}
}

func TestRunBlobOutput(t *testing.T) {
	dir := t.TempDir()
	testInputs(t, dir)
	cfg := testConfig(dir)
	cfg.InputFiles = []string{"file://" + filepath.ToSlash(dir) + "/dataframe-1.csv"}
	cfg.OutputFile = "mem://results/overlap.csv"
	r, err := Run(context.Background(), cfg, ioutil.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Records) != 1 || r.Records[0].MinOverlap != 0 {
		t.Errorf("have records %+v", r.Records)
	}
}
