package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatTable writes a human-readable ASCII table of the report to w.
func FormatTable(r *Report, w io.Writer) error {
	sb := &strings.Builder{}

	nameWidth := len("Tensor")
	for _, c := range r.Cases {
		nameWidth = max(nameWidth, len(c.Name))
	}

	rule := strings.Repeat("-", nameWidth+58)

	fmt.Fprintf(sb, "%-*s  %-7s  %12s  %12s  %12s  %s\n", nameWidth, "Tensor", "Status", "PCC", "MaxAbs", "MaxRel", "Shape")
	fmt.Fprintln(sb, rule)

	for _, c := range r.Cases {
		pcc := cell(c.PCC)
		if c.PCCSkipped || c.Status == StatusError || c.Status == StatusSkipped {
			pcc = "-"
		}

		maxAbs, maxRel := cell(c.MaxAbsDelta), cell(c.MaxRelDelta)
		if c.Status == StatusError || c.Status == StatusSkipped {
			maxAbs, maxRel = "-", "-"
		}

		fmt.Fprintf(sb, "%-*s  %-7s  %12s  %12s  %12s  %s\n",
			nameWidth,
			c.Name,
			c.Status,
			pcc,
			maxAbs,
			maxRel,
			shapeString(c.Shape),
		)

		if c.Reason != "" {
			fmt.Fprintf(sb, "%-*s  %s\n", nameWidth, "", c.Reason)
		}
	}

	fmt.Fprintln(sb, rule)
	fmt.Fprintf(sb, "%d cases: %d passed, %d failed, %d errors, %d skipped\n",
		r.Summary.Total, r.Summary.Passed, r.Summary.Failed, r.Summary.Errors, r.Summary.Skipped)

	if len(r.Stages) > 0 {
		fmt.Fprintln(sb)
		fmt.Fprintf(sb, "%-20s  %6s  %10s  %10s  %10s\n", "Stage", "Count", "Min(ms)", "Mean(ms)", "Max(ms)")
		fmt.Fprintln(sb, strings.Repeat("-", 64))

		for _, s := range r.Stages {
			fmt.Fprintf(sb, "%-20s  %6d  %10.3f  %10.3f  %10.3f\n", s.Name, s.Count, s.MinMS, s.MeanMS, s.MaxMS)
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

// FormatJSON writes the report as indented JSON to w.
func FormatJSON(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}

func cell(f Float) string {
	return strconv.FormatFloat(float64(f), 'g', 6, 64)
}

func shapeString(shape []int64) string {
	if len(shape) == 0 {
		return ""
	}

	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.FormatInt(d, 10)
	}

	return "[" + strings.Join(parts, " ") + "]"
}
