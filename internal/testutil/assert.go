package testutil

import (
	"math"
	"testing"
)

// AssertSlicesClose fails the test when got and want differ in length or any
// element differs by more than tol. NaNs compare equal to NaNs.
func AssertSlicesClose(tb testing.TB, got, want []float32, tol float64) {
	tb.Helper()

	if len(got) != len(want) {
		tb.Fatalf("length = %d, want %d", len(got), len(want))
	}

	for i := range want {
		g, w := float64(got[i]), float64(want[i])
		if math.IsNaN(g) && math.IsNaN(w) {
			continue
		}

		if math.IsNaN(g) != math.IsNaN(w) || math.Abs(g-w) > tol {
			tb.Fatalf("element %d = %v, want %v (tol %g)", i, got[i], want[i], tol)
		}
	}
}
