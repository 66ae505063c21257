// Package config parses the CLI surface (base spec §6) into a single
// immutable Effective record. All downstream code reads Effective;
// nothing downstream re-parses CLI strings (base spec §9, "Dynamic
// sub-command dispatch").
package config

import (
	"fmt"
	"path/filepath"

	"github.com/alice-daq/cruscan/internal/ioscan"
	"github.com/alice-daq/cruscan/internal/logging"
	"github.com/alice-daq/cruscan/internal/stats"
	"github.com/spf13/pflag"
)

// Mode selects the top-level operation.
type Mode int

const (
	ModeCheck Mode = iota
	ModeView
	ModeFilterOnly
)

// CheckDepth mirrors linkcheck.Depth without importing it, keeping
// config dependency-free of the validation package.
type CheckDepth int

const (
	CheckSanity CheckDepth = iota
	CheckAllITS
	CheckAllITSStave
)

// ViewKind selects which view subcommand renders.
type ViewKind int

const (
	ViewRDH ViewKind = iota
	ViewHBF
	ViewITSReadoutFrames
	ViewITSReadoutFramesData
)

// FilterKind tags which single filter flag (if any) was set (base spec
// §6, "filter flags form a single group; only one may be set").
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterLink
	FilterFee
	FilterStave
)

// Filter is the resolved filter predicate plus its descriptive form,
// used both for validation dispatch and for the S5 "not found" report.
type Filter struct {
	Kind  FilterKind
	Link  uint8
	Fee   uint16
	Layer uint8
	Stave uint8
	Raw   string // the original --filter-its-stave string, for error messages
}

// Outputs bundles the output-sink flags.
type Outputs struct {
	Path      string // empty means stdout; only meaningful when Filter.Kind != FilterNone
	StatsPath string
	StatsFmt  stats.Format
	InputStatsPath string
}

// Limits bundles the error-quota/exit-code flags.
type Limits struct {
	MaxErrors        uint32
	AnyErrorsExitCode uint8 // 0 means unset
}

// Effective is the tagged record every downstream component reads
// (base spec §9). It never changes after Parse returns.
type Effective struct {
	InputPath string // empty means stdin

	Mode       Mode
	Depth      CheckDepth
	View       ViewKind
	ShowBytes  bool // view its-readout-frames-data

	Filter        Filter
	TriggerPeriod uint16 // requires Filter.Kind == FilterStave and Depth == CheckAllITSStave

	Outputs Outputs
	Limits  Limits

	ChecksTOMLPath string

	Verbosity int
	NoColor   bool

	LogLevel  logging.Level
}

// ConfigError is base spec §7 category 7: rejected before any I/O.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// Parse parses argv (excluding the program name) into an Effective
// configuration, applying every cross-flag validation rule named in
// base spec §6 before any I/O occurs.
func Parse(argv []string) (Effective, error) {
	fs := pflag.NewFlagSet("cruscan", pflag.ContinueOnError)

	filterLink := fs.Uint8("filter-link", 0, "filter by link_id")
	filterFee := fs.Uint16("filter-fee", 0, "filter by fee_id")
	filterStave := fs.String("filter-its-stave", "", "filter by ITS stave, e.g. L0_12")
	triggerPeriod := fs.Uint16("its-trigger-period", 0, "expected ITS trigger period in bc units (requires check all its-stave)")
	output := fs.StringP("output", "o", "", "output path or \"stdout\" (requires a filter)")
	verbosity := fs.IntP("verbosity", "v", 2, "log verbosity 0..4")
	maxErrors := fs.Uint32P("max-errors", "e", 0, "error quota before the stop flag trips (0 = unbounded)")
	anyErrorsExitCode := fs.Uint8P("any-errors-exit-code", "E", 0, "non-zero exit code to use when any validation error occurred")
	checksTOML := fs.String("checks-toml", "", "declarative expected-counters file (.json or .toml)")
	outputStats := fs.String("output-stats", "", "persist the stats snapshot to this path")
	statsFormat := fs.String("stats-format", "", "json or toml (inferred from --output-stats extension if omitted)")
	inputStats := fs.String("input-stats", "", "compare this run against a previously persisted snapshot")
	noColor := fs.Bool("no-color", false, "recorded in the effective config; has no effect on log output")

	if err := fs.Parse(argv); err != nil {
		return Effective{}, &ConfigError{Reason: err.Error()}
	}

	args := fs.Args()
	if len(args) == 0 {
		return Effective{}, &ConfigError{Reason: "missing subcommand: expected check or view"}
	}

	eff := Effective{
		Verbosity: *verbosity,
		NoColor:   *noColor,
		LogLevel:  logging.VerbosityLevel(*verbosity),
	}

	switch args[0] {
	case "check":
		if err := parseCheck(args[1:], &eff); err != nil {
			return Effective{}, err
		}
	case "view":
		if err := parseView(args[1:], &eff); err != nil {
			return Effective{}, err
		}
	default:
		eff.Mode = ModeFilterOnly
		if len(args) > 0 {
			eff.InputPath = args[0]
		}
	}

	if err := resolveFilter(*filterLink, *filterFee, *filterStave, fs, &eff); err != nil {
		return Effective{}, err
	}

	if *triggerPeriod != 0 {
		if eff.Filter.Kind != FilterStave || eff.Depth != CheckAllITSStave {
			return Effective{}, &ConfigError{Reason: "--its-trigger-period requires check all its-stave and --filter-its-stave"}
		}
		eff.TriggerPeriod = *triggerPeriod
	}

	if *output != "" {
		if eff.Filter.Kind == FilterNone {
			return Effective{}, &ConfigError{Reason: "-o/--output requires a filter flag"}
		}
		if *output != "stdout" {
			eff.Outputs.Path = *output
		}
	}

	eff.Limits.MaxErrors = *maxErrors
	if fs.Changed("any-errors-exit-code") {
		if *anyErrorsExitCode == 0 {
			return Effective{}, &ConfigError{Reason: "--any-errors-exit-code/-E must be non-zero"}
		}
		eff.Limits.AnyErrorsExitCode = *anyErrorsExitCode
	}

	eff.ChecksTOMLPath = *checksTOML

	if *outputStats != "" {
		eff.Outputs.StatsPath = *outputStats
		fmtVal := stats.FormatFromPath(*outputStats)
		if *statsFormat != "" {
			parsed, err := stats.ParseFormat(*statsFormat)
			if err != nil {
				return Effective{}, &ConfigError{Reason: err.Error()}
			}
			if parsed != fmtVal && filepath.Ext(*outputStats) != "" {
				return Effective{}, &ConfigError{Reason: "stats file extension must match --stats-format"}
			}
			fmtVal = parsed
		}
		eff.Outputs.StatsFmt = fmtVal
	}
	eff.Outputs.InputStatsPath = *inputStats

	return eff, nil
}

func parseCheck(rest []string, eff *Effective) error {
	eff.Mode = ModeCheck
	if len(rest) == 0 {
		return &ConfigError{Reason: "check requires sanity or all"}
	}
	var pathArgs []string
	switch rest[0] {
	case "sanity":
		eff.Depth = CheckSanity
		if len(rest) > 1 && rest[1] == "its-stave" {
			return &ConfigError{Reason: "check sanity its-stave is invalid; use check all its-stave"}
		}
		pathArgs = rest[1:]
	case "all":
		switch {
		case len(rest) > 1 && rest[1] == "its":
			eff.Depth = CheckAllITS
			pathArgs = rest[2:]
		case len(rest) > 1 && rest[1] == "its-stave":
			eff.Depth = CheckAllITSStave
			pathArgs = rest[2:]
		default:
			eff.Depth = CheckAllITS
			pathArgs = rest[1:]
		}
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown check kind %q", rest[0])}
	}
	if len(pathArgs) > 1 {
		return &ConfigError{Reason: fmt.Sprintf("unexpected extra argument %q", pathArgs[1])}
	}
	if len(pathArgs) == 1 {
		eff.InputPath = pathArgs[0]
	}
	return nil
}

func parseView(rest []string, eff *Effective) error {
	eff.Mode = ModeView
	if len(rest) == 0 {
		return &ConfigError{Reason: "view requires rdh, hbf, its-readout-frames, or its-readout-frames-data"}
	}
	switch rest[0] {
	case "rdh":
		eff.View = ViewRDH
	case "hbf":
		eff.View = ViewHBF
	case "its-readout-frames":
		eff.View = ViewITSReadoutFrames
	case "its-readout-frames-data":
		eff.View = ViewITSReadoutFramesData
		eff.ShowBytes = true
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown view kind %q", rest[0])}
	}
	if len(rest) > 1 {
		eff.InputPath = rest[1]
	}
	return nil
}

func resolveFilter(link uint8, fee uint16, stave string, fs *pflag.FlagSet, eff *Effective) error {
	set := 0
	if fs.Changed("filter-link") {
		set++
	}
	if fs.Changed("filter-fee") {
		set++
	}
	if fs.Changed("filter-its-stave") {
		set++
	}
	if set > 1 {
		return &ConfigError{Reason: "filter flags are mutually exclusive: set at most one of --filter-link, --filter-fee, --filter-its-stave"}
	}

	switch {
	case fs.Changed("filter-link"):
		eff.Filter = Filter{Kind: FilterLink, Link: link}
	case fs.Changed("filter-fee"):
		eff.Filter = Filter{Kind: FilterFee, Fee: fee}
	case fs.Changed("filter-its-stave"):
		layer, staveNum, err := ioscan.ParseStave(stave)
		if err != nil {
			return &ConfigError{Reason: err.Error()}
		}
		eff.Filter = Filter{Kind: FilterStave, Layer: layer, Stave: staveNum, Raw: stave}
	}
	return nil
}
