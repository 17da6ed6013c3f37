// Package metrics exports parity results as Prometheus metrics, typically
// written to a node-exporter textfile at the end of a CI run.
package metrics

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/go-ttparity/internal/parity"
)

const namespace = "ttparity"

// Recorder holds the parity metrics in its own registry.
type Recorder struct {
	reg *prometheus.Registry

	Cases       *prometheus.CounterVec
	PCC         *prometheus.GaugeVec
	MaxAbsDelta *prometheus.GaugeVec
	MaxRelDelta *prometheus.GaugeVec
	NonFinite   *prometheus.CounterVec
	Stage       *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		Cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Comparison cases by mode and outcome.",
		}, []string{"mode", "status"}),
		PCC: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pcc",
			Help:      "Pearson correlation of the last comparison per tensor.",
		}, []string{"tensor"}),
		MaxAbsDelta: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_abs_delta",
			Help:      "Largest absolute difference per tensor.",
		}, []string{"tensor"}),
		MaxRelDelta: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_rel_delta",
			Help:      "Largest relative difference per tensor.",
		}, []string{"tensor"}),
		NonFinite: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonfinite_values_total",
			Help:      "NaN or Inf values seen in compared tensors.",
		}, []string{"tensor", "side"}),
		Stage: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage timings taken by the profiler.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"stage"}),
	}
}

// Registry exposes the underlying registry, e.g. for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// ObserveCase records the outcome of one tensor comparison.
func (r *Recorder) ObserveCase(tensor string, mode parity.Mode, res parity.Result) {
	status := "fail"
	if res.Passed {
		status = "pass"
	}

	r.Cases.WithLabelValues(string(mode), status).Inc()

	if mode == parity.ModeCombined || mode == parity.ModePCC {
		if !res.PCCSkipped {
			r.PCC.WithLabelValues(tensor).Set(res.PCC)
		}
	}

	if mode != parity.ModePCC {
		r.MaxAbsDelta.WithLabelValues(tensor).Set(res.MaxAbsDelta)
		r.MaxRelDelta.WithLabelValues(tensor).Set(res.MaxRelDelta)
	}
}

// ObserveError counts a case that could not be compared at all.
func (r *Recorder) ObserveError(mode parity.Mode) {
	r.Cases.WithLabelValues(string(mode), "error").Inc()
}

// ObserveNonFinite adds count NaN/Inf values for one side (golden or calculated).
func (r *Recorder) ObserveNonFinite(tensor, side string, count int) {
	if count > 0 {
		r.NonFinite.WithLabelValues(tensor, side).Add(float64(count))
	}
}

// ObserveStage records one stage duration in seconds.
func (r *Recorder) ObserveStage(stage string, seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		return
	}

	r.Stage.WithLabelValues(stage).Observe(seconds)
}

// WriteTextfile writes every metric in the textfile-collector format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}

	return nil
}
