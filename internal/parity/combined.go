package parity

import (
	"fmt"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// Options configures every comparison mode.
type Options struct {
	Close    CloseOptions    `json:"close"`
	Allclose AllcloseOptions `json:"allclose"`
	PCC      float64         `json:"pcc"`
}

func DefaultOptions() Options {
	return Options{
		Close:    DefaultCloseOptions(),
		Allclose: DefaultAllcloseOptions(),
		PCC:      DefaultPCC,
	}
}

// CompAllcloseAndPCC runs the tolerance check and, for inputs with more than
// one element, the PCC check. Both must pass. Single-element inputs rely on
// the tolerance check alone.
func CompAllcloseAndPCC(golden, calculated *tensor.Tensor, opts Options) (Result, error) {
	closeReport, err := IsClose(calculated, golden, opts.Close)
	if err != nil {
		return Result{}, err
	}

	out := Result{
		Passed:      closeReport.Passed,
		MaxAbsDelta: closeReport.MaxAbsDelta,
		MaxRelDelta: closeReport.MaxRelDelta,
		Message:     closeReport.Message(),
	}

	if golden.ElemCount() == 1 {
		out.PCCSkipped = true
		return out, nil
	}

	pcc, err := CompPCC(golden, calculated, opts.PCC)
	if err != nil {
		return Result{}, err
	}

	out.Passed = out.Passed && pcc.Passed
	out.PCC = pcc.PCC
	out.Message += ", " + pcc.Message

	return out, nil
}

// Mode selects a comparison.
type Mode string

const (
	ModeCombined Mode = "combined"
	ModePCC      Mode = "pcc"
	ModeAllclose Mode = "allclose"
	ModeIsClose  Mode = "isclose"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeCombined:
		return ModeCombined, nil
	case ModePCC, ModeAllclose, ModeIsClose:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("parity: unknown mode %q (expected combined|pcc|allclose|isclose)", raw)
	}
}

// Compare dispatches to the comparison selected by mode.
func Compare(mode Mode, golden, calculated *tensor.Tensor, opts Options) (Result, error) {
	switch mode {
	case ModeCombined, "":
		return CompAllcloseAndPCC(golden, calculated, opts)
	case ModePCC:
		return CompPCC(golden, calculated, opts.PCC)
	case ModeAllclose:
		return CompAllclose(golden, calculated, opts.Allclose)
	case ModeIsClose:
		r, err := IsClose(calculated, golden, opts.Close)
		if err != nil {
			return Result{}, err
		}

		return Result{
			Passed:      r.Passed,
			MaxAbsDelta: r.MaxAbsDelta,
			MaxRelDelta: r.MaxRelDelta,
			Message:     r.Message(),
		}, nil
	default:
		return Result{}, fmt.Errorf("parity: unknown mode %q", mode)
	}
}
