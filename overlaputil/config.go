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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/overlap"
	"github.com/spatialmodel/overlap/cloud"
	"github.com/spatialmodel/overlap/ingest"
	"github.com/spatialmodel/overlap/store"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds the settings of a UnitOverlap run. The zero value is not
// usable; start from DefaultConfig or ConfigFromViper.
type Config struct {
	// InputFiles are paths, glob patterns, HTTP(S) URLs, or blob addresses
	// of the input CSV tables, one dataframe per file.
	InputFiles []string

	// XField and YField are the coordinate columns of the input tables.
	XField, YField string

	// CRS is the spatial reference of the input coordinates in WKT or
	// Proj4 format.
	CRS string

	// ClassField is the classification attribute.
	ClassField string

	// StoreDir is the directory for class partitions and bounding
	// geometries. If empty, they are kept in memory.
	StoreDir string

	// Dataframes restricts aggregation to the given dataframes. If empty,
	// every dataframe that was classified (or found in StoreDir) is used.
	Dataframes []overlap.DataframeID

	// ClassIDs is the ordered list of classes that are compared.
	ClassIDs []overlap.ClassID

	// OutputFile is where the overlap table is written.
	OutputFile string

	// ClassReportFile, if set, is where the class diagnostics table is
	// written.
	ClassReportFile string

	// LogFile receives a copy of the log. If empty, it is placed next to a
	// local OutputFile.
	LogFile string

	// Overwrite allows existing stored features to be replaced.
	Overwrite bool

	// Epsilon is the geometric tolerance in coordinate units.
	Epsilon float64

	// Workers is the number of dataframes aggregated concurrently.
	Workers int
}

// DefaultClassIDs are the classes compared when none are configured.
var DefaultClassIDs = []overlap.ClassID{"1", "2", "3", "4", "5", "6"}

// WGS84 is the default input spatial reference.
const WGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// DefaultConfig returns a configuration with the default settings and no
// inputs or outputs.
func DefaultConfig() *Config {
	return &Config{
		XField:     ingest.DefaultXField,
		YField:     ingest.DefaultYField,
		CRS:        WGS84,
		ClassField: "unit_classification",
		ClassIDs:   append([]overlap.ClassID(nil), DefaultClassIDs...),
		Epsilon:    overlap.DefaultEpsilon,
		Workers:    1,
	}
}

// ConfigFromViper reads a configuration from cfg, expanding environment
// variables in paths and names.
func ConfigFromViper(cfg *viper.Viper) (*Config, error) {
	inputs, err := stringSlice(cfg.Get("InputFiles"))
	if err != nil {
		return nil, fmt.Errorf("overlaputil: InputFiles: %v", err)
	}
	dfs, err := stringSlice(cfg.Get("Dataframes"))
	if err != nil {
		return nil, fmt.Errorf("overlaputil: Dataframes: %v", err)
	}
	classes, err := stringSlice(cfg.Get("ClassIDs"))
	if err != nil {
		return nil, fmt.Errorf("overlaputil: ClassIDs: %v", err)
	}
	eps, err := cast.ToFloat64E(cfg.Get("Epsilon"))
	if err != nil {
		return nil, fmt.Errorf("overlaputil: Epsilon: %v", err)
	}
	workers, err := cast.ToIntE(cfg.Get("Workers"))
	if err != nil {
		return nil, fmt.Errorf("overlaputil: Workers: %v", err)
	}
	overwrite, err := cast.ToBoolE(cfg.Get("Overwrite"))
	if err != nil {
		return nil, fmt.Errorf("overlaputil: Overwrite: %v", err)
	}

	c := &Config{
		InputFiles:      expandStringSlice(inputs),
		XField:          os.ExpandEnv(cfg.GetString("XField")),
		YField:          os.ExpandEnv(cfg.GetString("YField")),
		CRS:             os.ExpandEnv(cfg.GetString("CRS")),
		ClassField:      os.ExpandEnv(cfg.GetString("ClassField")),
		StoreDir:        os.ExpandEnv(cfg.GetString("StoreDir")),
		OutputFile:      os.ExpandEnv(cfg.GetString("OutputFile")),
		ClassReportFile: os.ExpandEnv(cfg.GetString("ClassReportFile")),
		LogFile:         os.ExpandEnv(cfg.GetString("LogFile")),
		Overwrite:       overwrite,
		Epsilon:         eps,
		Workers:         workers,
	}
	for _, df := range expandStringSlice(dfs) {
		c.Dataframes = append(c.Dataframes, overlap.DataframeID(df))
	}
	for _, class := range expandStringSlice(classes) {
		c.ClassIDs = append(c.ClassIDs, overlap.ClassID(class))
	}
	return c, nil
}

// stringSlice converts a configuration value into a list of strings.
// Values may be separated by whitespace or commas, so that lists can be
// given in environment variables.
func stringSlice(v interface{}) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, err
	}
	var o []string
	for _, e := range s {
		for _, f := range strings.Split(e, ",") {
			if f = strings.TrimSpace(f); f != "" {
				o = append(o, f)
			}
		}
	}
	return o, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// check verifies the settings shared by all commands.
func (c *Config) check() error {
	if len(c.ClassIDs) == 0 {
		return fmt.Errorf("overlaputil: you need to specify at least one class (ClassIDs)")
	}
	seen := make(map[overlap.ClassID]bool)
	for _, id := range c.ClassIDs {
		if seen[id] {
			return fmt.Errorf("overlaputil: class %q is listed more than once in ClassIDs", id)
		}
		seen[id] = true
	}
	if !(c.Epsilon > 0) || math.IsInf(c.Epsilon, 0) {
		return fmt.Errorf("overlaputil: Epsilon=%g but should be a finite number >0", c.Epsilon)
	}
	if c.Workers < 0 {
		return fmt.Errorf("overlaputil: Workers=%d but should be >=0", c.Workers)
	}
	if cloud.IsBlob(c.StoreDir) || cloud.IsHTTP(c.StoreDir) {
		return fmt.Errorf("overlaputil: StoreDir must be a local directory, not %s", c.StoreDir)
	}
	return nil
}

func (c *Config) checkInputs() error {
	if len(c.InputFiles) == 0 {
		return fmt.Errorf("overlaputil: you need to specify at least one input file (InputFiles)")
	}
	if c.XField == "" || c.YField == "" {
		return fmt.Errorf("overlaputil: you need to specify the coordinate fields (XField and YField)")
	}
	if c.ClassField == "" {
		return fmt.Errorf("overlaputil: you need to specify the classification field (ClassField)")
	}
	return nil
}

func (c *Config) checkOutput() error {
	if c.OutputFile == "" {
		return fmt.Errorf(`overlaputil: you need to specify an output file configuration variable (for example: OutputFile="overlap_counts.csv")`)
	}
	return nil
}

// CheckRun verifies the configuration for the run command.
func (c *Config) CheckRun() error {
	for _, f := range []func() error{c.check, c.checkInputs, c.checkOutput} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// CheckClassify verifies the configuration for the classify command, which
// needs a store directory to keep its results.
func (c *Config) CheckClassify() error {
	for _, f := range []func() error{c.check, c.checkInputs} {
		if err := f(); err != nil {
			return err
		}
	}
	if c.StoreDir == "" {
		return fmt.Errorf("overlaputil: classify needs a store directory (StoreDir)")
	}
	return nil
}

// CheckAggregate verifies the configuration for the aggregate command.
func (c *Config) CheckAggregate() error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.checkOutput(); err != nil {
		return err
	}
	if c.StoreDir == "" {
		return fmt.Errorf("overlaputil: aggregate needs a store directory (StoreDir)")
	}
	if _, err := os.Stat(c.StoreDir); err != nil {
		return fmt.Errorf("overlaputil: store directory: %v", err)
	}
	return nil
}

// logFile returns the path of the log file, if any. By default the log
// is saved next to a local output file.
func (c *Config) logFile() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	out := c.OutputFile
	if out == "" || out == "-" || cloud.IsBlob(out) {
		return ""
	}
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".log"
}

// openStore returns the store the configuration specifies.
func (c *Config) openStore() (overlap.Store, error) {
	if c.StoreDir == "" {
		return store.NewMem(), nil
	}
	return store.NewShapefile(c.StoreDir, c.Overwrite)
}

func (c *Config) ingestOptions() ingest.Options {
	return ingest.Options{XField: c.XField, YField: c.YField, CRS: c.CRS}
}
