package tensor

import (
	"math"
	"testing"
)

func TestBFloat16Rounding(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{in: 1, want: 1},
		{in: 0, want: 0},
		{in: 1.00390625, want: 1},        // halfway, ties to even
		{in: 1.01171875, want: 1.015625}, // halfway, ties to even (up)
		{in: 3.14159265, want: 3.140625},
	}

	for _, tc := range tests {
		if got := RoundBFloat16(tc.in); got != tc.want {
			t.Errorf("RoundBFloat16(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if got := RoundBFloat16(float32(math.NaN())); !math.IsNaN(float64(got)) {
		t.Errorf("RoundBFloat16(NaN) = %v, want NaN", got)
	}

	if got := RoundBFloat16(float32(math.Inf(-1))); !math.IsInf(float64(got), -1) {
		t.Errorf("RoundBFloat16(-Inf) = %v, want -Inf", got)
	}
}

func TestBFloat16BitsRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -2.5, 3.140625, 65280} {
		if got := FromBFloat16Bits(BFloat16Bits(v)); got != v {
			t.Errorf("FromBFloat16Bits(BFloat16Bits(%v)) = %v", v, got)
		}
	}
}
