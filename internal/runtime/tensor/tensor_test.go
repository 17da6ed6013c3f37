package tensor

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewRejectsLengthMismatch(t *testing.T) {
	_, err := New([]float32{1, 2, 3}, []int64{2, 2})
	if err == nil {
		t.Fatal("expected error for data/shape mismatch")
	}

	if !strings.Contains(err.Error(), "does not match shape") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRejectsNegativeDim(t *testing.T) {
	if _, err := New(nil, []int64{0, -1}); err == nil {
		t.Fatal("expected error for negative dimension")
	}
}

func TestNewCopiesInputs(t *testing.T) {
	data := []float32{1, 2}
	shape := []int64{2}

	x, err := New(data, shape)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	data[0] = 99
	shape[0] = 7

	if got := x.Data(); got[0] != 1 {
		t.Fatalf("data aliased caller slice: %v", got)
	}

	if got := x.Shape(); got[0] != 2 {
		t.Fatalf("shape aliased caller slice: %v", got)
	}
}

func TestZeroSizedTensor(t *testing.T) {
	x, err := Zeros([]int64{3, 0, 2})
	if err != nil {
		t.Fatalf("zeros: %v", err)
	}

	if x.ElemCount() != 0 {
		t.Fatalf("ElemCount = %d, want 0", x.ElemCount())
	}
}

func TestReshapePreservesValues(t *testing.T) {
	x, err := New([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	y, err := x.Reshape([]int64{3, 2})
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	if got := y.Shape(); !equalI64(got, []int64{3, 2}) {
		t.Fatalf("shape = %v, want [3 2]", got)
	}
	if got := y.Data(); !equalF32(got, []float32{1, 2, 3, 4, 5, 6}, 0) {
		t.Fatalf("data = %v", got)
	}
}

func TestReshapeRejectsWrongCount(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4}, []int64{4})
	if _, err := x.Reshape([]int64{3}); err == nil {
		t.Fatal("expected reshape error")
	}
}

func TestSqueeze(t *testing.T) {
	tests := []struct {
		name  string
		shape []int64
		want  []int64
	}{
		{name: "leading ones", shape: []int64{1, 1, 2, 3}, want: []int64{2, 3}},
		{name: "middle one", shape: []int64{2, 1, 3}, want: []int64{2, 3}},
		{name: "all ones", shape: []int64{1, 1, 1, 1}, want: []int64{1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, err := Zeros(tc.shape)
			if err != nil {
				t.Fatalf("zeros: %v", err)
			}

			if got := x.Squeeze().Shape(); !equalI64(got, tc.want) {
				t.Fatalf("Squeeze shape = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCoordAndAt(t *testing.T) {
	x, _ := New([]float32{10, 20, 30, 40, 50, 60}, []int64{2, 3})

	coord, err := x.Coord(4)
	if err != nil {
		t.Fatalf("coord: %v", err)
	}

	if !equalI64(coord, []int64{1, 1}) {
		t.Fatalf("coord = %v, want [1 1]", coord)
	}

	v, err := x.At(coord...)
	if err != nil {
		t.Fatalf("at: %v", err)
	}

	if v != 50 {
		t.Fatalf("At(1,1) = %v, want 50", v)
	}

	if _, err := x.Coord(6); err == nil {
		t.Fatal("expected out-of-range error")
	}

	if _, err := x.At(2, 0); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestCountNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	ninf := float32(math.Inf(-1))

	x, _ := New([]float32{1, nan, inf, ninf, 0}, []int64{5})
	if got := x.CountNonFinite(); got != 3 {
		t.Fatalf("CountNonFinite = %d, want 3", got)
	}
}

func TestNilTensorAccessors(t *testing.T) {
	var x *Tensor

	if x.Shape() != nil || x.Data() != nil || x.ElemCount() != 0 || x.Rank() != 0 {
		t.Fatal("nil tensor accessors should return zero values")
	}

	if _, err := x.Reshape([]int64{1}); err == nil {
		t.Fatal("expected error reshaping nil tensor")
	}
}

func TestFromFloat64(t *testing.T) {
	x, err := FromFloat64([]float64{0.5, -1.25}, []int64{2})
	if err != nil {
		t.Fatalf("FromFloat64: %v", err)
	}

	if got := x.Data(); !equalF32(got, []float32{0.5, -1.25}, 0) {
		t.Fatalf("data = %v", got)
	}
}

func TestCheckSameShape(t *testing.T) {
	a, _ := Zeros([]int64{2, 2})
	b, _ := Zeros([]int64{4})

	err := CheckSameShape("compare", a, b)
	if err == nil {
		t.Fatal("expected shape mismatch")
	}

	var sme *ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("error %T is not *ShapeMismatchError", err)
	}

	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatal("errors.Is(err, ErrShapeMismatch) = false")
	}

	if err := CheckSameShape("compare", a, a.Clone()); err != nil {
		t.Fatalf("same shape reported mismatch: %v", err)
	}
}
