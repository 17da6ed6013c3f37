package parity

import (
	"log/slog"
	"math"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// DefaultPCC is the correlation threshold model ports gate on.
const DefaultPCC = 0.99

// CompPCC compares calculated against golden by Pearson correlation.
//
// Special cases are evaluated in order: both all-NaN passes with 1.0; one
// all-NaN fails with 0.0; a nonzero-vs-all-zero pair fails with 0.0; arrays
// equal after replacing NaN/±Inf with 0 pass with 1.0. Otherwise the
// correlation is computed over the element pairs where both inputs were
// finite. A degenerate correlation (fewer than two pairs or zero variance)
// passes with 1.0.
func CompPCC(golden, calculated *tensor.Tensor, threshold float64) (Result, error) {
	if err := tensor.CheckSameShape("parity: pcc", golden, calculated); err != nil {
		return Result{}, err
	}

	g, c := golden.RawData(), calculated.RawData()

	if len(g) == 0 {
		slog.Debug("pcc on empty tensors")
		return pccResult(true, 1), nil
	}

	gNaN, cNaN := allNaN(g), allNaN(c)
	if gNaN && cNaN {
		slog.Warn("both tensors are nan")
		return pccResult(true, 1), nil
	}

	if gNaN || cNaN {
		slog.Error("one tensor is all nan, the other is not")
		return pccResult(false, 0), nil
	}

	if anyNonzero(g) != anyNonzero(c) {
		slog.Error("one tensor is all zero")
		return pccResult(false, 0), nil
	}

	if equalMasked(g, c) {
		return pccResult(true, 1), nil
	}

	pcc, ok := maskedPearson(g, c)
	if !ok {
		slog.Debug("degenerate correlation, treating as match", "elements", len(g))
		return pccResult(true, 1), nil
	}

	pcc = math.Min(pcc, 1)

	return pccResult(pcc >= threshold, pcc), nil
}

func pccResult(passed bool, pcc float64) Result {
	return Result{Passed: passed, PCC: pcc, Message: pccMessage(pcc)}
}

func allNaN(data []float32) bool {
	for _, v := range data {
		if !math.IsNaN(float64(v)) {
			return false
		}
	}

	return true
}

// anyNonzero reports whether some element is truthy; NaN counts as nonzero.
func anyNonzero(data []float32) bool {
	for _, v := range data {
		if v != 0 {
			return true
		}
	}

	return false
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func masked(v float32) float32 {
	if isFinite(v) {
		return v
	}

	return 0
}

// equalMasked compares the arrays with every non-finite value replaced by 0.
func equalMasked(g, c []float32) bool {
	for i := range g {
		if masked(g[i]) != masked(c[i]) {
			return false
		}
	}

	return true
}

// maskedPearson computes the correlation coefficient over the pairs where
// both values are finite. ok is false when the coefficient is undefined.
func maskedPearson(x, y []float32) (float64, bool) {
	var (
		n          int
		sumX, sumY float64
	)

	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			continue
		}

		n++
		sumX += float64(x[i])
		sumY += float64(y[i])
	}

	if n < 2 {
		return 0, false
	}

	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64

	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			continue
		}

		dx := float64(x[i]) - meanX
		dy := float64(y[i]) - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}

	return r, true
}
