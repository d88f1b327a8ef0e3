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

// Package report writes aggregation results and class diagnostics as CSV
// tables.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spatialmodel/overlap"
	"github.com/spatialmodel/overlap/cloud"
	"github.com/tealeg/xlsx"
)

// OverlapHeader is the header row of the overlap table.
var OverlapHeader = []string{"Dataframe", "Unit_Class1", "Unit_Class2", "Min_Overlap_Points", "Sum_Min_Overlap"}

// ClassHeader is the header row of the class diagnostics table.
var ClassHeader = []string{"Dataframe", "Unit_Class", "Points", "Hull_Kind", "Hull_Vertices", "Self_Count"}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return cw
}

// overlapRows returns the rows of the overlap table, without the header:
// one row per class pair, each dataframe's rows followed directly by its
// totals row.
func overlapRows(r *overlap.Result) ([][]string, error) {
	var rows [][]string
	i := 0
	for _, s := range r.Summaries {
		for ; i < len(r.Records) && r.Records[i].Dataframe == s.Dataframe; i++ {
			rec := r.Records[i]
			rows = append(rows, []string{string(rec.Dataframe), string(rec.ClassA), string(rec.ClassB), strconv.Itoa(rec.MinOverlap), ""})
		}
		rows = append(rows, []string{fmt.Sprintf("Total Sum for %s", s.Dataframe), "", "", "", strconv.Itoa(s.TotalMinOverlap)})
	}
	if i != len(r.Records) {
		return nil, fmt.Errorf("report: %d overlap records do not belong to a summarized dataframe", len(r.Records)-i)
	}
	return rows, nil
}

// WriteOverlap writes r to w as the overlap table in CSV format.
// Rows are CRLF terminated.
func WriteOverlap(w io.Writer, r *overlap.Result) error {
	rows, err := overlapRows(r)
	if err != nil {
		return err
	}
	cw := newWriter(w)
	if err := cw.Write(OverlapHeader); err != nil {
		return fmt.Errorf("report: %v", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("report: %v", err)
	}
	return nil
}

// OverlapSheet is the name of the worksheet written by WriteOverlapXLSX.
const OverlapSheet = "Overlap"

// WriteOverlapXLSX writes r to w as a Microsoft Excel workbook holding the
// overlap table. Counts are stored as numbers.
func WriteOverlapXLSX(w io.Writer, r *overlap.Result) error {
	rows, err := overlapRows(r)
	if err != nil {
		return err
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(OverlapSheet)
	if err != nil {
		return fmt.Errorf("report: %v", err)
	}
	row := sheet.AddRow()
	for _, h := range OverlapHeader {
		row.AddCell().SetString(h)
	}
	for _, values := range rows {
		row := sheet.AddRow()
		for j, v := range values {
			c := row.AddCell()
			if n, err := strconv.Atoi(v); err == nil && j >= 3 {
				c.SetInt(n)
			} else {
				c.SetString(v)
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: writing workbook: %v", err)
	}
	return nil
}

// OverlapWriter returns the function that writes the overlap table in the
// format implied by the extension of path: a workbook for .xlsx files and
// CSV otherwise.
func OverlapWriter(path string) func(io.Writer, *overlap.Result) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteOverlapXLSX
	}
	return WriteOverlap
}

// WriteClasses writes the class diagnostics table.
func WriteClasses(w io.Writer, summaries []overlap.ClassSummary) error {
	cw := newWriter(w)
	if err := cw.Write(ClassHeader); err != nil {
		return fmt.Errorf("report: %v", err)
	}
	for _, s := range summaries {
		row := []string{
			string(s.Dataframe),
			string(s.Class),
			strconv.Itoa(s.Points),
			s.HullKind.String(),
			strconv.Itoa(s.Vertices),
			strconv.Itoa(s.SelfCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("report: %v", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: %v", err)
	}
	return nil
}

// Create opens the report destination at path, which may be a local file
// or a blob address such as gs://bucket/overlap.csv. The directory of a
// local file must already exist. A path of "-" writes to standard output.
// Blob reports are only saved once the returned writer is closed.
func Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if cloud.IsBlob(path) {
		return cloud.NewWriter(ctx, path)
	}
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("report: output directory: %v", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("report: output directory %s is not a directory", dir)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: %v", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
