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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlap"
	"github.com/spatialmodel/overlap/cloud"
	"github.com/spatialmodel/overlap/ingest"
	"github.com/spatialmodel/overlap/internal/hash"
	"github.com/spatialmodel/overlap/report"
)

// session holds the logger and cleanup of a single command invocation.
type session struct {
	log     *logrus.Logger
	start   time.Time
	logfile io.Closer
}

// newSession starts logging to out and, if the configuration names one,
// to a log file.
func newSession(cfg *Config, out io.Writer) (*session, error) {
	s := &session{log: logrus.New(), start: time.Now()}
	s.log.SetOutput(out)
	if f := cfg.logFile(); f != "" {
		logfile, err := os.Create(f)
		if err != nil {
			return nil, fmt.Errorf("overlaputil: creating log file: %v", err)
		}
		s.logfile = logfile
		s.log.SetOutput(io.MultiWriter(out, logfile))
	}
	return s, nil
}

func (s *session) close() {
	s.log.Infof("Elapsed time: %s", time.Since(s.start).Round(time.Millisecond))
	if s.logfile != nil {
		s.logfile.Close()
	}
}

func (s *session) logSkips(skips []overlap.Skip) {
	for _, sk := range skips {
		s.log.WithFields(sk.Fields()).Warn("skipped")
	}
	if len(skips) > 0 {
		s.log.Warnf("%d units of work were skipped; the output is incomplete", len(skips))
	}
}

// classified is the output of the classification stage.
type classified struct {
	dataframes []overlap.DataframeID
	summaries  []overlap.ClassSummary
	skips      []overlap.Skip
}

// drop removes the summaries and skips of dataframe df.
func (c *classified) drop(df overlap.DataframeID) {
	summaries := c.summaries[:0]
	for _, s := range c.summaries {
		if s.Dataframe != df {
			summaries = append(summaries, s)
		}
	}
	c.summaries = summaries
	skips := c.skips[:0]
	for _, s := range c.skips {
		if s.Dataframe != df {
			skips = append(skips, s)
		}
	}
	c.skips = skips
}

// sources expands the input file patterns and downloads remote inputs.
// Patterns that cannot be resolved become IngestFailure skips.
func sources(ctx context.Context, cfg *Config, log logrus.FieldLogger) ([]string, []overlap.Skip) {
	var o []string
	var skips []overlap.Skip
	for _, in := range cfg.InputFiles {
		if cloud.IsHTTP(in) || cloud.IsBlob(in) {
			local, err := cloud.Download(ctx, in, log)
			if err != nil {
				skips = append(skips, overlap.Skip{
					Kind: overlap.IngestFailure, Source: in,
					Err: &ingest.Error{Source: in, Err: err},
				})
				continue
			}
			o = append(o, local)
			continue
		}
		matches, err := filepath.Glob(in)
		if err == nil && len(matches) == 0 {
			err = fmt.Errorf("no files match %q", in)
		}
		if err != nil {
			skips = append(skips, overlap.Skip{
				Kind: overlap.IngestFailure, Source: in,
				Err: &ingest.Error{Source: in, Err: err},
			})
			continue
		}
		o = append(o, matches...)
	}
	return o, skips
}

// classify ingests every input table and saves its class partitions and
// bounding geometries in st.
func classify(ctx context.Context, cfg *Config, st overlap.Store, log *logrus.Logger) (*classified, error) {
	files, skips := sources(ctx, cfg, log)
	r := &classified{skips: skips}
	cl := &overlap.Classifier{Store: st, Attribute: cfg.ClassField, Epsilon: cfg.Epsilon, Log: log}
	seen := make(map[overlap.DataframeID]string)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := ingest.ReadFile(f, cfg.ingestOptions())
		if err != nil {
			r.skips = append(r.skips, overlap.Skip{Kind: overlap.IngestFailure, Source: f, Err: err})
			continue
		}
		df := ingest.DataframeID(c.Name)
		if prev, ok := seen[df]; ok {
			log.WithField("dataframe", df).Warnf("%s and %s are the same dataframe; the later one replaces the earlier one", prev, f)
			r.drop(df)
		} else {
			r.dataframes = append(r.dataframes, df)
		}
		seen[df] = f
		log.Infof("CSV %s converted to %s (%d points)", f, c.Name, c.Len())

		summaries, sk, err := cl.Classify(df, c)
		r.summaries = append(r.summaries, summaries...)
		r.skips = append(r.skips, sk...)
		if err != nil {
			log.WithField("dataframe", df).Error(err)
			r.skips = append(r.skips, overlap.Skip{Kind: overlap.StoreLookupFailure, Dataframe: df, Source: f, Err: err})
		}
	}
	overlap.SortDataframes(r.dataframes)
	return r, nil
}

// aggregate computes the overlap of the given dataframes.
func aggregate(ctx context.Context, cfg *Config, st overlap.Store, dfs []overlap.DataframeID, log *logrus.Logger) (*overlap.Result, error) {
	a := &overlap.Aggregator{
		Store:    st,
		ClassIDs: cfg.ClassIDs,
		Epsilon:  cfg.Epsilon,
		Workers:  cfg.Workers,
		Log:      log,
	}
	return a.Aggregate(ctx, dfs)
}

// sink is a report destination that may be closed more than once.
type sink struct {
	io.WriteCloser
	once sync.Once
	err  error
}

func createSink(ctx context.Context, path string) (*sink, error) {
	w, err := report.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	return &sink{WriteCloser: w}, nil
}

func (s *sink) Close() error {
	s.once.Do(func() { s.err = s.WriteCloser.Close() })
	return s.err
}

// writeReport writes to the already opened sink w and closes it.
func writeReport(w *sink, write func(io.Writer) error) error {
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Run ingests the input tables, classifies their points, computes the
// minimum overlap of every pair of classes in each dataframe, and writes
// the overlap table (and the class diagnostics table, if configured).
// Log messages are written to out.
//
// Problems with individual inputs, dataframes, or classes are logged and
// returned in Result.Skips. An error is only returned for an invalid
// configuration, an output that can't be created, or a cancelled context.
func Run(ctx context.Context, cfg *Config, out io.Writer) (*overlap.Result, error) {
	if err := cfg.CheckRun(); err != nil {
		return nil, err
	}
	s, err := newSession(cfg, out)
	if err != nil {
		return nil, err
	}
	defer s.close()

	// Create the outputs first so that a bad location fails fast.
	w, err := createSink(ctx, cfg.OutputFile)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	var cw *sink
	if cfg.ClassReportFile != "" {
		if cw, err = createSink(ctx, cfg.ClassReportFile); err != nil {
			return nil, err
		}
		defer cw.Close()
	}

	st, err := cfg.openStore()
	if err != nil {
		return nil, err
	}
	s.log.Info("Classifying input data...")
	c, err := classify(ctx, cfg, st, s.log)
	if err != nil {
		return nil, err
	}
	if cw != nil {
		if err := writeReport(cw, func(w io.Writer) error { return report.WriteClasses(w, c.summaries) }); err != nil {
			return nil, err
		}
		s.log.Infof("Class diagnostics have been written to %s", cfg.ClassReportFile)
	}

	dfs := cfg.Dataframes
	if len(dfs) == 0 {
		dfs = c.dataframes
	}
	s.log.Info("Calculating overlap...")
	r, err := aggregate(ctx, cfg, st, dfs, s.log)
	if err != nil {
		return nil, err
	}
	r.Skips = append(c.skips, r.Skips...)
	write := report.OverlapWriter(cfg.OutputFile)
	if err := writeReport(w, func(w io.Writer) error { return write(w, r) }); err != nil {
		return nil, err
	}
	s.logSkips(r.Skips)
	s.log.WithField("digest", hash.Result(r)).Infof("Overlap counts and total sums for all dataframes have been written to %s", cfg.OutputFile)
	return r, nil
}

// Classify ingests the input tables and saves the class partitions and
// bounding geometries in the store directory for a later Aggregate.
func Classify(ctx context.Context, cfg *Config, out io.Writer) ([]overlap.ClassSummary, []overlap.Skip, error) {
	if err := cfg.CheckClassify(); err != nil {
		return nil, nil, err
	}
	s, err := newSession(cfg, out)
	if err != nil {
		return nil, nil, err
	}
	defer s.close()

	var cw *sink
	if cfg.ClassReportFile != "" {
		if cw, err = createSink(ctx, cfg.ClassReportFile); err != nil {
			return nil, nil, err
		}
		defer cw.Close()
	}
	st, err := cfg.openStore()
	if err != nil {
		return nil, nil, err
	}
	c, err := classify(ctx, cfg, st, s.log)
	if err != nil {
		return nil, nil, err
	}
	if cw != nil {
		if err := writeReport(cw, func(w io.Writer) error { return report.WriteClasses(w, c.summaries) }); err != nil {
			return nil, nil, err
		}
	}
	s.logSkips(c.skips)
	s.log.Infof("Classified %d dataframes into %s", len(c.dataframes), cfg.StoreDir)
	return c.summaries, c.skips, nil
}

// Aggregate computes the overlap table from the partitions and bounding
// geometries in the store directory. If no dataframes are configured, all
// dataframes in the store are used.
func Aggregate(ctx context.Context, cfg *Config, out io.Writer) (*overlap.Result, error) {
	if err := cfg.CheckAggregate(); err != nil {
		return nil, err
	}
	s, err := newSession(cfg, out)
	if err != nil {
		return nil, err
	}
	defer s.close()

	w, err := createSink(ctx, cfg.OutputFile)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	st, err := cfg.openStore()
	if err != nil {
		return nil, err
	}
	dfs := cfg.Dataframes
	if len(dfs) == 0 {
		keys, err := st.List()
		if err != nil {
			return nil, err
		}
		dfs = overlap.Dataframes(keys)
	}
	r, err := aggregate(ctx, cfg, st, dfs, s.log)
	if err != nil {
		return nil, err
	}
	write := report.OverlapWriter(cfg.OutputFile)
	if err := writeReport(w, func(w io.Writer) error { return write(w, r) }); err != nil {
		return nil, err
	}
	s.logSkips(r.Skips)
	s.log.WithField("digest", hash.Result(r)).Infof("Overlap counts and total sums for all dataframes have been written to %s", cfg.OutputFile)
	return r, nil
}
