package parity

import (
	"math"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// AllcloseOptions mirror numpy/torch allclose: |g-c| <= ATol + RTol*|c|.
type AllcloseOptions struct {
	RTol float64 `json:"rtol"`
	ATol float64 `json:"atol"`
}

func DefaultAllcloseOptions() AllcloseOptions {
	return AllcloseOptions{RTol: 1e-5, ATol: 1e-8}
}

// CompAllclose checks calculated against golden with allclose semantics.
// NaNs compare equal to NaNs and infinities to infinities of the same sign.
func CompAllclose(golden, calculated *tensor.Tensor, opts AllcloseOptions) (Result, error) {
	if err := tensor.CheckSameShape("parity: allclose", golden, calculated); err != nil {
		return Result{}, err
	}

	g, c := golden.RawData(), calculated.RawData()

	passed := true

	var absDelta, relDelta64 float64

	for i := range g {
		x, y := float64(g[i]), float64(c[i])
		diff := math.Abs(x - y)

		absDelta = maxPropagateNaN(absDelta, diff)
		relDelta64 = maxPropagateNaN(relDelta64, relDelta(diff, y))

		if !allcloseElem(x, y, opts) {
			passed = false
		}
	}

	return Result{
		Passed:      passed,
		MaxAbsDelta: absDelta,
		MaxRelDelta: relDelta64,
		Message:     deltaMessage(absDelta, relDelta64),
	}, nil
}

func allcloseElem(x, y float64, opts AllcloseOptions) bool {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.IsNaN(x) && math.IsNaN(y)
	case math.IsInf(x, 0) || math.IsInf(y, 0):
		return x == y
	}

	return math.Abs(x-y) <= opts.ATol+opts.RTol*math.Abs(y)
}
