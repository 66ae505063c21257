// Package pipeline wires the input scanner, dispatcher, per-link
// checkers, and stats actor into the two top-level run shapes named in
// base spec §1: a validating check run and a raw-byte filter/output
// run. It owns the shared atomic stop flag (base spec §9).
package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/alice-daq/cruscan/internal/alpide"
	"github.com/alice-daq/cruscan/internal/checks"
	"github.com/alice-daq/cruscan/internal/config"
	"github.com/alice-daq/cruscan/internal/dispatch"
	"github.com/alice-daq/cruscan/internal/ioscan"
	"github.com/alice-daq/cruscan/internal/linkcheck"
	"github.com/alice-daq/cruscan/internal/logging"
	"github.com/alice-daq/cruscan/internal/stats"
	"github.com/alice-daq/cruscan/internal/view"
)

// ExitCode names the four outcome classes of base spec §6.
type ExitCode int

const (
	ExitSuccess      ExitCode = 0
	ExitStartupError ExitCode = 1
	ExitProcessError ExitCode = 2
	ExitUnknownRDH   ExitCode = 3
)

// Result carries the run's outcome for main to translate into a
// process exit code.
type Result struct {
	Code     ExitCode
	Snapshot stats.StatsSnapshot
}

// buildFilter resolves an Effective's Filter into an ioscan.FilterFunc,
// or nil when no filter flag was set.
func buildFilter(f config.Filter) ioscan.FilterFunc {
	switch f.Kind {
	case config.FilterLink:
		return ioscan.ByLink(f.Link)
	case config.FilterFee:
		return ioscan.ByFee(f.Fee)
	case config.FilterStave:
		return ioscan.ByStave(f.Layer, f.Stave)
	default:
		return nil
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Run dispatches to the filter-only path, the view path, or the
// validating check path based on eff.Mode.
func Run(eff config.Effective, logger logging.Logger) (Result, error) {
	switch eff.Mode {
	case config.ModeFilterOnly:
		return runFilter(eff, logger)
	case config.ModeView:
		return runView(eff, logger)
	default:
		return runCheck(eff, logger)
	}
}

func runFilter(eff config.Effective, logger logging.Logger) (Result, error) {
	in, err := openInput(eff.InputPath)
	if err != nil {
		return Result{Code: ExitStartupError}, err
	}
	defer in.Close()
	out, err := openOutput(eff.Outputs.Path)
	if err != nil {
		return Result{Code: ExitStartupError}, err
	}
	defer out.Close()

	src := ioscan.NewSource(in)
	filter := buildFilter(eff.Filter)
	matched, total, err := ioscan.RunFilter(src, filter, out)
	if err != nil {
		return Result{Code: ExitStartupError}, err
	}

	snap := stats.StatsSnapshot{RdhsSeen: uint64(matched), RdhsFiltered: uint64(total - matched)}
	if eff.Filter.Kind == config.FilterStave && matched == 0 {
		snap.NotFound = append(snap.NotFound, eff.Filter.Raw)
		logger.Warn("stave not found in input", logging.Field{Key: "stave", Value: eff.Filter.Raw})
	}
	if eff.Outputs.StatsPath != "" {
		if err := stats.WriteSnapshot(eff.Outputs.StatsPath, eff.Outputs.StatsFmt, snap); err != nil {
			return Result{Code: ExitStartupError, Snapshot: snap}, err
		}
	}
	return Result{Code: ExitSuccess, Snapshot: snap}, nil
}

func runView(eff config.Effective, logger logging.Logger) (Result, error) {
	in, err := openInput(eff.InputPath)
	if err != nil {
		return Result{Code: ExitStartupError}, err
	}
	defer in.Close()
	src := ioscan.NewSource(in)
	filter := buildFilter(eff.Filter)

	switch eff.View {
	case config.ViewRDH, config.ViewHBF:
		if err := view.RunRDHView(src, filter, nil, os.Stdout); err != nil {
			return Result{Code: ExitProcessError}, err
		}
	case config.ViewITSReadoutFrames, config.ViewITSReadoutFramesData:
		if err := view.RunITSFrameView(src, filter, nil, eff.ShowBytes, os.Stdout); err != nil {
			return Result{Code: ExitProcessError}, err
		}
	}
	return Result{Code: ExitSuccess}, nil
}

func runCheck(eff config.Effective, logger logging.Logger) (Result, error) {
	in, err := openInput(eff.InputPath)
	if err != nil {
		return Result{Code: ExitStartupError}, err
	}
	defer in.Close()

	actor := stats.NewActor(eff.Limits.MaxErrors, logger)
	go actor.Run()

	depth := depthFor(eff)
	byStave := eff.Depth == config.CheckAllITSStave

	d := dispatch.New(
		func(id uint16, tuples <-chan ioscan.Tuple) {
			opts := linkcheck.Options{
				Depth:            depth,
				TriggerPeriod:    eff.TriggerPeriod,
				ChipOrders:       alpide.DefaultChipOrders(),
				Sink:             actor,
				RequireITSChecks: depth < linkcheck.DepthITS,
			}
			checker := linkcheck.New(opts)
			for t := range tuples {
				checker.Feed(t)
			}
		},
		func(err error) {
			actor.Send(stats.Event{Kind: stats.EvFatal, Message: err.Error()})
		},
	)

	src := ioscan.NewSource(in)
	sc := ioscan.NewScanner(src)
	sc.Filter = buildFilter(eff.Filter)
	sc.SkipPayload = depth == linkcheck.DepthRDH
	sc.StopFlag = actor.StopFlag()

	runErr := drive(sc, d, actor, byStave)
	d.Shutdown()
	actor.Close()
	snap := actor.Wait()

	code := ExitSuccess
	if runErr != nil {
		if _, ok := runErr.(*ioscan.VersionMismatch); ok {
			code = ExitUnknownRDH
		} else {
			code = ExitProcessError
		}
	}

	if eff.ChecksTOMLPath != "" {
		exp, err := checks.Load(eff.ChecksTOMLPath)
		if err != nil {
			return Result{Code: ExitStartupError, Snapshot: snap}, err
		}
		for _, mismatch := range checks.Compare(exp, snap) {
			snap.ErrCount++
			actor.Send(stats.Event{Kind: stats.EvError, Category: stats.CategoryCounterMismatch, Message: mismatch.String()})
		}
	}

	if eff.Outputs.InputStatsPath != "" {
		prior, err := stats.ReadSnapshot(eff.Outputs.InputStatsPath)
		if err != nil {
			return Result{Code: ExitStartupError, Snapshot: snap}, err
		}
		if mismatches := compareSnapshots(prior, snap); len(mismatches) > 0 {
			for _, m := range mismatches {
				logger.Error("input-stats mismatch", logging.Field{Key: "field", Value: m})
			}
			snap.ErrCount += uint64(len(mismatches))
		}
	}

	if eff.Outputs.StatsPath != "" {
		if err := stats.WriteSnapshot(eff.Outputs.StatsPath, eff.Outputs.StatsFmt, snap); err != nil {
			return Result{Code: ExitStartupError, Snapshot: snap}, err
		}
	}

	if code == ExitSuccess && snap.ErrCount > 0 && eff.Limits.AnyErrorsExitCode != 0 {
		code = ExitCode(eff.Limits.AnyErrorsExitCode)
	}
	return Result{Code: code, Snapshot: snap}, nil
}

func depthFor(eff config.Effective) linkcheck.Depth {
	switch eff.Depth {
	case config.CheckAllITS:
		return linkcheck.DepthITS
	case config.CheckAllITSStave:
		return linkcheck.DepthStave
	default:
		return linkcheck.DepthRDH
	}
}

// drive pulls Tuples off sc and routes them through d until the stream
// ends or a fatal error occurs. A Sanity-category violation (I1/I5/I8)
// arrives as a non-nil error alongside a non-nil Tuple (base spec §7:
// these accumulate, they don't terminate the scan); everything else
// non-nil — a nil Tuple alongside the error — is Fatal or VersionMismatch
// and ends the run.
func drive(sc *ioscan.Scanner, d *dispatch.Dispatcher, actor *stats.Actor, byStave bool) error {
	versionSent := false
	for {
		tup, err := sc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil && tup == nil {
			switch e := err.(type) {
			case *ioscan.VersionMismatch:
				actor.Send(stats.Event{Kind: stats.EvFatal, Message: e.Error()})
				return e
			default:
				actor.Send(stats.Event{Kind: stats.EvFatal, Message: err.Error()})
				return err
			}
		}
		if err != nil {
			actor.Send(stats.Event{Kind: stats.EvError, Category: stats.CategorySanity, Message: err.Error(), Offset: tup.Offset})
		}
		if tup == nil {
			continue
		}
		if !versionSent {
			actor.Send(stats.Event{Kind: stats.EvRdhVersion, Version: tup.RDH.HeaderID})
			versionSent = true
		}
		id := dispatch.DispatchID(*tup, byStave)
		d.Send(id, *tup)
	}
}

func compareSnapshots(prior, got stats.StatsSnapshot) []string {
	var out []string
	if prior.RdhsSeen != got.RdhsSeen {
		out = append(out, fmt.Sprintf("rdhs_seen: want %d got %d", prior.RdhsSeen, got.RdhsSeen))
	}
	if prior.Hbfs != got.Hbfs {
		out = append(out, fmt.Sprintf("hbfs: want %d got %d", prior.Hbfs, got.Hbfs))
	}
	if prior.Cdps != got.Cdps {
		out = append(out, fmt.Sprintf("cdps: want %d got %d", prior.Cdps, got.Cdps))
	}
	return out
}
