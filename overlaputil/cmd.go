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

// Package overlaputil holds the command-line interface and the run
// orchestration of UnitOverlap.
package overlaputil

import (
	"fmt"

	"github.com/spatialmodel/overlap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to UnitOverlap.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFiles",
			usage: `
              InputFiles are the CSV tables to process, one dataframe per
              table. Entries can be paths, glob patterns such as
              "data/dataframe-*.csv", HTTP(S) URLs, or blob addresses
              (gs://, s3://, file://). The dataframe identifier is taken
              from the file name: dataframe-7.csv is dataframe 7.
              Can include environment variables.`,
			shorthand:  "i",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "XField",
			usage: `
              XField is the column holding the X coordinate (longitude).`,
			defaultVal: "long",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "YField",
			usage: `
              YField is the column holding the Y coordinate (latitude).`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "CRS",
			usage: `
              CRS gives the spatial reference of the input coordinates in
              WKT or Proj4 format.`,
			defaultVal: WGS84,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "ClassField",
			usage: `
              ClassField is the attribute that assigns each point to a
              unit class.`,
			defaultVal: "unit_classification",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "StoreDir",
			usage: `
              StoreDir is the directory where class partitions and their
              minimum bounding geometries are saved as shapefiles. If it is
              empty, the run command keeps them in memory. It can include
              environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "Dataframes",
			usage: `
              Dataframes lists the dataframes to include in the overlap table.
              If it is empty, all classified (or stored) dataframes are used.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "ClassIDs",
			usage: `
              ClassIDs is the ordered list of unit classes to compare. Every
              pair of them is reported for each dataframe.`,
			defaultVal: []string{"1", "2", "3", "4", "5", "6"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired overlap table location. It can
              be a blob address and can include environment variables.`,
			shorthand:  "o",
			defaultVal: "overlap_counts_all_dataframes.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "ClassReportFile",
			usage: `
              ClassReportFile, if set, is the path where a table describing every
              class partition and its bounding geometry is written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "Overwrite",
			usage: `
              Overwrite specifies whether existing features in StoreDir
              may be replaced.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags()},
		},
		{
			name: "Epsilon",
			usage: `
              Epsilon is the tolerance, in coordinate units, within which
              points are considered coincident or on a boundary.`,
			defaultVal: overlap.DefaultEpsilon,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), classifyCmd.Flags(), aggregateCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of dataframes whose overlap is calculated
              at the same time.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), aggregateCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("UNITOVERLAP")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(classifyCmd)
	Root.AddCommand(aggregateCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("overlaputil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "unitoverlap",
	Short: "Measure the spatial overlap of unit classes.",
	Long: `UnitOverlap splits point datasets ("dataframes") into unit classes, bounds
each class with its convex hull, and reports for every pair of classes in a
dataframe how many points of each class fall within the other class's hull.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'UNITOVERLAP_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of UnitOverlap.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("UnitOverlap v%s\n", overlap.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify the input tables and calculate class overlap.",
	Long: `run ingests the input tables, splits each of them by unit class, creates the
minimum bounding geometry of each class, and writes the minimum overlap of every
pair of classes, with per-dataframe totals, to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		_, err = Run(cmd.Context(), cfg, cmd.OutOrStdout())
		return err
	},
	DisableAutoGenTag: true,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Split the input tables by unit class and save them in StoreDir.",
	Long: `classify ingests the input tables, splits each of them by unit class, and
saves the class partitions and their minimum bounding geometries as shapefiles
in StoreDir, where the aggregate command can find them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		_, _, err = Classify(cmd.Context(), cfg, cmd.OutOrStdout())
		return err
	},
	DisableAutoGenTag: true,
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Calculate class overlap from the features in StoreDir.",
	Long: `aggregate reads previously classified partitions and bounding geometries from
StoreDir and writes the minimum overlap of every pair of classes, with
per-dataframe totals, to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		_, err = Aggregate(cmd.Context(), cfg, cmd.OutOrStdout())
		return err
	},
	DisableAutoGenTag: true,
}
