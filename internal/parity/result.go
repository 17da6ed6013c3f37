// Package parity compares an accelerator's output against a golden reference:
// tolerance checks, masked Pearson correlation (PCC), and the combined check
// model ports gate on.
package parity

import (
	"math"
	"strconv"
	"strings"
)

// Result is the outcome of one comparison. It is a value; nothing retains it.
type Result struct {
	Passed bool    `json:"passed"`
	PCC    float64 `json:"pcc"`
	// PCCSkipped is set by the combined check for single-element inputs.
	PCCSkipped  bool    `json:"pcc_skipped,omitempty"`
	MaxAbsDelta float64 `json:"max_abs_delta"`
	MaxRelDelta float64 `json:"max_rel_delta"`
	Message     string  `json:"message"`
}

// formatFloat renders v the way diagnostics have always printed floats:
// shortest round-trip digits, with a trailing ".0" on integral values.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}

func pccMessage(v float64) string {
	return "PCC: " + formatFloat(v)
}
