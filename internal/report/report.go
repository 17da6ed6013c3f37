// Package report collects per-tensor comparison outcomes and renders them as
// a table or JSON, and persists them between runs.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/example/go-ttparity/internal/parity"
	"github.com/example/go-ttparity/internal/profiler"
)

const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Float is a float64 that survives JSON when it is NaN or infinite.
// Non-finite values are written as the strings "NaN", "+Inf" and "-Inf".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)

	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}

	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*f = Float(math.NaN())
		case "+Inf", "Inf":
			*f = Float(math.Inf(1))
		case "-Inf":
			*f = Float(math.Inf(-1))
		default:
			return fmt.Errorf("report: invalid float %q", s)
		}

		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("report: invalid float %s: %w", data, err)
	}

	*f = Float(v)

	return nil
}

// Case is the outcome for one named tensor.
type Case struct {
	Name        string  `json:"name"`
	Mode        string  `json:"mode"`
	Status      string  `json:"status"`
	Shape       []int64 `json:"shape,omitempty"`
	PCC         Float   `json:"pcc"`
	PCCSkipped  bool    `json:"pcc_skipped,omitempty"`
	MaxAbsDelta Float   `json:"max_abs_delta"`
	MaxRelDelta Float   `json:"max_rel_delta"`
	Message     string  `json:"message,omitempty"`
	Reason      string  `json:"reason,omitempty"`

	GoldenNonFinite     int `json:"golden_nonfinite,omitempty"`
	CalculatedNonFinite int `json:"calculated_nonfinite,omitempty"`
}

// NewCase converts a comparison result into a report case.
func NewCase(name string, mode parity.Mode, shape []int64, res parity.Result) Case {
	status := StatusFail
	if res.Passed {
		status = StatusPass
	}

	return Case{
		Name:        name,
		Mode:        string(mode),
		Status:      status,
		Shape:       shape,
		PCC:         Float(res.PCC),
		PCCSkipped:  res.PCCSkipped,
		MaxAbsDelta: Float(res.MaxAbsDelta),
		MaxRelDelta: Float(res.MaxRelDelta),
		Message:     res.Message,
	}
}

// ErrorCase records a tensor that could not be compared.
func ErrorCase(name string, mode parity.Mode, err error) Case {
	return Case{Name: name, Mode: string(mode), Status: StatusError, Reason: err.Error()}
}

// SkippedCase records a tensor present on one side only.
func SkippedCase(name string, mode parity.Mode, reason string) Case {
	return Case{Name: name, Mode: string(mode), Status: StatusSkipped, Reason: reason}
}

// Summary counts cases by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

func Summarize(cases []Case) Summary {
	s := Summary{Total: len(cases)}

	for _, c := range cases {
		switch c.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusError:
			s.Errors++
		case StatusSkipped:
			s.Skipped++
		}
	}

	return s
}

// Stage is the timing summary of one profiled stage, in milliseconds.
type Stage struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// StagesFromProfiler snapshots every key recorded by p, in first-seen order.
func StagesFromProfiler(p *profiler.Profiler) []Stage {
	if p == nil {
		return nil
	}

	keys := p.Keys()
	out := make([]Stage, 0, len(keys))

	for _, k := range keys {
		st := p.Stats(k)
		out = append(out, Stage{
			Name:   k,
			Count:  st.Count,
			MinMS:  millis(st.Min),
			MeanMS: millis(st.Mean),
			MaxMS:  millis(st.Max),
		})
	}

	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Report is the full outcome of one run.
type Report struct {
	Golden     string         `json:"golden"`
	Calculated string         `json:"calculated,omitempty"`
	Mode       string         `json:"mode"`
	Options    parity.Options `json:"options"`
	Cases      []Case         `json:"cases"`
	Stages     []Stage        `json:"stages,omitempty"`
	Summary    Summary        `json:"summary"`
}

// Add appends c and refreshes the summary.
func (r *Report) Add(c Case) {
	r.Cases = append(r.Cases, c)
	r.Summary = Summarize(r.Cases)
}

// Passed reports whether no case failed or errored.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0 && r.Summary.Errors == 0
}

func Save(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	r.Summary = Summarize(r.Cases)

	return &r, nil
}
