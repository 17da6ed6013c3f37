package parity

import (
	"math"
	"strconv"
	"strings"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// OrdersOfMagnitude returns a coarse order of magnitude per value, read off
// its shortest decimal rendering: the number of integer digits for
// 1 <= |v| < 1e16, and the decimal exponent otherwise (0.05 -> -2,
// 1e16 -> 16). Zero maps to -2, as "0.0" has one zero after the point. The
// sign is ignored and NaN/Inf map to 0. It is meant for "at least the same
// order of magnitude" sanity checks.
func OrdersOfMagnitude(values []float64) []int {
	out := make([]int, len(values))

	for i, v := range values {
		a := math.Abs(v)

		switch {
		case math.IsNaN(a) || math.IsInf(a, 0):
			out[i] = 0
		case a == 0:
			out[i] = -2
		case a >= 1 && a < 1e16:
			out[i] = decimalExponent(a) + 1
		default:
			out[i] = decimalExponent(a)
		}
	}

	return out
}

// decimalExponent returns e such that a = m * 10^e with 1 <= m < 10, read
// from the shortest decimal representation so exact powers of ten are exact.
func decimalExponent(a float64) int {
	s := strconv.FormatFloat(a, 'e', -1, 64)

	exp, err := strconv.Atoi(s[strings.LastIndexByte(s, 'e')+1:])
	if err != nil {
		return int(math.Floor(math.Log10(a)))
	}

	return exp
}

// CorrCoef returns the 2x2 Pearson correlation matrix of the flattened
// inputs, computed over the pairs where both values are finite. Undefined
// entries are NaN.
func CorrCoef(x, y *tensor.Tensor) ([2][2]float64, error) {
	if x.ElemCount() != y.ElemCount() {
		return [2][2]float64{}, &tensor.ShapeMismatchError{Op: "parity: corrcoef", Shape: x.Shape(), Other: y.Shape()}
	}

	xd, yd := x.RawData(), y.RawData()

	r := math.NaN()
	if v, ok := maskedPearson(xd, yd); ok {
		r = v
	}

	diag := func(d []float32) float64 {
		if _, ok := maskedPearson(d, d); ok {
			return 1
		}

		return math.NaN()
	}

	return [2][2]float64{{diag(xd), r}, {r, diag(yd)}}, nil
}
