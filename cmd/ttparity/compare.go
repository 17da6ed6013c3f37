package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/example/go-ttparity/internal/config"
	"github.com/example/go-ttparity/internal/metrics"
	"github.com/example/go-ttparity/internal/parity"
	"github.com/example/go-ttparity/internal/profiler"
	"github.com/example/go-ttparity/internal/report"
	"github.com/example/go-ttparity/internal/runtime/tensor"
	"github.com/example/go-ttparity/internal/safetensors"
)

func newCompareCmd() *cobra.Command {
	var (
		names       []string
		stripPrefix string
	)

	cmd := &cobra.Command{
		Use:   "compare GOLDEN CALCULATED",
		Short: "Compare calculated tensors against golden tensors",
		Long: "Compare every tensor present in both files. Inputs are safetensors, or Arrow\n" +
			"IPC dumps when the file ends in .arrow. Exits non-zero when any case fails.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			golden, err := loadTensors(args[0], stripPrefix, names)
			if err != nil {
				return fmt.Errorf("load golden: %w", err)
			}

			calculated, err := loadTensors(args[1], stripPrefix, names)
			if err != nil {
				return fmt.Errorf("load calculated: %w", err)
			}

			if len(golden) == 0 {
				return fmt.Errorf("no golden tensors selected")
			}

			rep := &report.Report{
				Golden:     args[0],
				Calculated: args[1],
				Mode:       cfg.Parity.Mode,
				Options:    cfg.Parity.Options(),
			}

			prof := newProfiler(cfg)
			rec := metrics.NewRecorder()

			runCompare(rep, golden, calculated, prof, rec)

			return finishReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, rep, prof, rec)
		},
	}

	cmd.Flags().StringSliceVar(&names, "tensor", nil, "Only compare these tensor names (repeatable)")
	cmd.Flags().StringVar(&stripPrefix, "strip-prefix", "", "Drop tensors without this name prefix and strip it from the rest")

	return cmd
}

func newProfiler(cfg config.Config) *profiler.Profiler {
	p := profiler.New()
	if !cfg.Profile.Enabled {
		p.Disable()
	}

	return p
}

// runCompare fills rep with one case per golden tensor, plus skipped cases
// for tensors only the calculated side has.
func runCompare(rep *report.Report, golden, calculated []*safetensors.Tensor, prof *profiler.Profiler, rec *metrics.Recorder) {
	mode := parity.Mode(rep.Mode)
	pairs, goldenOnly, calculatedOnly := safetensors.MatchPairs(golden, calculated)

	for _, pair := range pairs {
		c := comparePair(pair, mode, rep.Options, prof, rec)
		rep.Add(c)
	}

	for _, name := range goldenOnly {
		rep.Add(report.SkippedCase(name, mode, "missing from calculated"))
	}

	for _, name := range calculatedOnly {
		rep.Add(report.SkippedCase(name, mode, "missing from golden"))
	}
}

func comparePair(pair safetensors.Pair, mode parity.Mode, opts parity.Options, prof *profiler.Profiler, rec *metrics.Recorder) report.Case {
	fail := func(err error) report.Case {
		slog.Error("compare failed", "tensor", pair.Name, "error", err)
		rec.ObserveError(mode)

		return report.ErrorCase(pair.Name, mode, err)
	}

	golden, err := pair.Golden.Host()
	if err != nil {
		return fail(err)
	}

	calculated, err := pair.Calculated.Host()
	if err != nil {
		return fail(err)
	}

	var res parity.Result

	err = prof.Time("compare", func() error {
		var cmpErr error
		res, cmpErr = parity.Compare(mode, golden, calculated, opts)

		return cmpErr
	})
	if err != nil {
		return fail(err)
	}

	c := report.NewCase(pair.Name, mode, golden.Shape(), res)
	c.GoldenNonFinite = golden.CountNonFinite()
	c.CalculatedNonFinite = calculated.CountNonFinite()

	rec.ObserveCase(pair.Name, mode, res)
	rec.ObserveNonFinite(pair.Name, "golden", c.GoldenNonFinite)
	rec.ObserveNonFinite(pair.Name, "calculated", c.CalculatedNonFinite)

	logCase(pair.Name, golden, calculated, res)

	return c
}

// logCase logs one comparison. Failures also carry the correlation
// coefficient and the order of magnitude of each side's largest finite value.
func logCase(name string, golden, calculated *tensor.Tensor, res parity.Result) {
	attrs := []any{"tensor", name, "shape", golden.Shape(), "passed", res.Passed, "message", res.Message}
	if res.Passed {
		slog.Debug("case compared", attrs...)
		return
	}

	if corr, err := parity.CorrCoef(golden, calculated); err == nil && !math.IsNaN(corr[0][1]) {
		attrs = append(attrs, "corrcoef", corr[0][1])
	}

	ooms := parity.OrdersOfMagnitude([]float64{maxAbsFinite(golden), maxAbsFinite(calculated)})
	attrs = append(attrs, "golden_oom", ooms[0], "calculated_oom", ooms[1])

	slog.Warn("case failed", attrs...)
}

func maxAbsFinite(t *tensor.Tensor) float64 {
	var m float64

	for _, v := range t.RawData() {
		a := math.Abs(float64(v))
		if !math.IsInf(a, 0) && !math.IsNaN(a) && a > m {
			m = a
		}
	}

	return m
}

// finishReport prints, persists and exports rep, and turns a failing report
// into an error.
func finishReport(stdout, stderr io.Writer, cfg config.Config, rep *report.Report, prof *profiler.Profiler, rec *metrics.Recorder) error {
	if prof.Enabled() {
		rep.Stages = report.StagesFromProfiler(prof)

		for _, key := range prof.Keys() {
			for _, d := range prof.Samples(key) {
				rec.ObserveStage(key, d.Seconds())
			}
		}
	}

	var err error
	switch cfg.Report.Format {
	case config.FormatJSON:
		err = report.FormatJSON(rep, stdout)
	default:
		err = report.FormatTable(rep, stdout)
	}

	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if prof.Enabled() && cfg.Report.Format != config.FormatJSON {
		if err := prof.Print(stderr); err != nil {
			return err
		}
	}

	if cfg.Report.Path != "" {
		if err := report.Save(cfg.Report.Path, rep); err != nil {
			return err
		}
	}

	if cfg.Report.MetricsTextfile != "" {
		if err := rec.WriteTextfile(cfg.Report.MetricsTextfile); err != nil {
			return err
		}
	}

	if !rep.Passed() {
		return fmt.Errorf("parity check failed: %d failed, %d errors of %d cases",
			rep.Summary.Failed, rep.Summary.Errors, rep.Summary.Total)
	}

	return nil
}
