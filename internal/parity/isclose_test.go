package parity

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

func TestIsClosePassConditions(t *testing.T) {
	opts := DefaultCloseOptions()

	tests := []struct {
		name string
		a, b float32
		want bool
	}{
		{name: "absolute", a: 0.005, b: 0, want: true},
		{name: "relative", a: 100.5, b: 100, want: true},
		{name: "stable relative", a: 0.0, b: 0.009, want: true},
		{name: "magnitude", a: 10.03, b: 10, want: true},
		{name: "far apart", a: 1, b: 0, want: false},
		{name: "nan", a: nan32, b: 1, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := IsClose(mustTensor(t, []float32{tc.a}), mustTensor(t, []float32{tc.b}), opts)
			if err != nil {
				t.Fatalf("IsClose: %v", err)
			}

			if got.Passed != tc.want {
				t.Fatalf("IsClose(%v, %v) = %v, want %v", tc.a, tc.b, got.Passed, tc.want)
			}
		})
	}
}

func TestIsCloseZeroReferenceMasksRelDiff1(t *testing.T) {
	got, err := IsClose(mustTensor(t, []float32{1}), mustTensor(t, []float32{0}), DefaultCloseOptions())
	if err != nil {
		t.Fatalf("IsClose: %v", err)
	}

	if got.Passed || got.Mismatch == nil {
		t.Fatalf("expected mismatch, got %+v", got)
	}

	if !math.IsInf(got.Mismatch.RelDiff1, 1) {
		t.Fatalf("RelDiff1 = %v, want +Inf", got.Mismatch.RelDiff1)
	}

	if got.Mismatch.RelDiff2 != 1 {
		t.Fatalf("RelDiff2 = %v, want 1", got.Mismatch.RelDiff2)
	}
}

// The first relative difference divides by b only, so swapping the arguments
// can change the outcome.
func TestIsCloseIsNotSymmetric(t *testing.T) {
	opts := CloseOptions{RelTol: 0.3, AbsTol: 0.1}
	one := mustTensor(t, []float32{1})
	half := mustTensor(t, []float32{0.5})

	ab, err := IsClose(one, half, opts)
	if err != nil {
		t.Fatalf("IsClose: %v", err)
	}

	ba, err := IsClose(half, one, opts)
	if err != nil {
		t.Fatalf("IsClose: %v", err)
	}

	if ab.Passed || !ba.Passed {
		t.Fatalf("IsClose(1, 0.5) = %v, IsClose(0.5, 1) = %v; want false, true", ab.Passed, ba.Passed)
	}
}

func TestIsCloseReportsFirstMismatch(t *testing.T) {
	a := mustTensor(t, []float32{1, 1, 5, 9}, 2, 2)
	b := mustTensor(t, []float32{1, 1, 1, 1}, 2, 2)

	got, err := IsClose(a, b, DefaultCloseOptions())
	if err != nil {
		t.Fatalf("IsClose: %v", err)
	}

	m := got.Mismatch
	if m == nil {
		t.Fatal("expected mismatch")
	}

	if m.Index != 2 || m.A != 5 || m.B != 1 || m.AbsDiff != 4 {
		t.Fatalf("mismatch = %+v, want index 2 a=5 b=1 absdiff=4", m)
	}

	if len(m.Coord) != 2 || m.Coord[0] != 1 || m.Coord[1] != 0 {
		t.Fatalf("coord = %v, want [1 0]", m.Coord)
	}

	if m.Tiled {
		t.Fatal("2x2 array should not report tile coordinates")
	}

	if got.MaxAbsDelta != 8 {
		t.Fatalf("MaxAbsDelta = %v, want 8", got.MaxAbsDelta)
	}

	if !strings.Contains(got.Message(), "isclose mismatch at index=2") {
		t.Fatalf("message = %q", got.Message())
	}
}

func TestIsCloseTileCoordinates(t *testing.T) {
	const idx = 1024 + 33

	a := fill(64*64, 0)
	a[idx] = 5

	got, err := IsClose(mustTensor(t, a, 64, 64), mustTensor(t, fill(64*64, 0), 64, 64), DefaultCloseOptions())
	if err != nil {
		t.Fatalf("IsClose: %v", err)
	}

	m := got.Mismatch
	if m == nil || !m.Tiled {
		t.Fatalf("expected tiled mismatch, got %+v", m)
	}

	if m.TileRow != 0 || m.TileCol != 1 || m.Row != 1 || m.Col != 1 {
		t.Fatalf("tile coords = (%d,%d) (%d,%d), want (0,1) (1,1)", m.TileRow, m.TileCol, m.Row, m.Col)
	}
}

func TestIsCloseShapeMismatch(t *testing.T) {
	_, err := IsClose(mustTensor(t, seqData(6), 2, 3), mustTensor(t, seqData(6), 3, 2), DefaultCloseOptions())
	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Fatalf("error = %v, want ErrShapeMismatch", err)
	}
}
