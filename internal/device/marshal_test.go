package device

import (
	"errors"
	"testing"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

func mustTensor(t *testing.T, data []float32, shape []int64) *tensor.Tensor {
	t.Helper()

	x, err := tensor.New(data, shape)
	if err != nil {
		t.Fatalf("tensor.New(%v, %v): %v", data, shape, err)
	}

	return x
}

func seqData(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32((i%17)-8) / 17
	}

	return out
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func TestToDeviceFormPadsLeadingDims(t *testing.T) {
	tests := []struct {
		name  string
		shape []int64
		want  []int64
	}{
		{name: "scalar", shape: []int64{}, want: []int64{1, 1, 1, 1}},
		{name: "vector", shape: []int64{5}, want: []int64{1, 1, 1, 5}},
		{name: "matrix", shape: []int64{3, 4}, want: []int64{1, 1, 3, 4}},
		{name: "rank3", shape: []int64{2, 3, 4}, want: []int64{1, 2, 3, 4}},
		{name: "rank4", shape: []int64{2, 1, 3, 4}, want: []int64{2, 1, 3, 4}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, _ := tensor.ElemCount(tc.shape)
			x := mustTensor(t, seqData(n), tc.shape)

			form, err := ToDeviceForm(x)
			if err != nil {
				t.Fatalf("ToDeviceForm: %v", err)
			}

			if len(form.Shape) != Rank {
				t.Fatalf("padded rank = %d, want %d", len(form.Shape), Rank)
			}

			if !equalShape(form.Shape, tc.want) {
				t.Fatalf("padded shape = %v, want %v", form.Shape, tc.want)
			}

			if len(form.Data) != n {
				t.Fatalf("flat length = %d, want %d", len(form.Data), n)
			}

			if form.OrigRank != len(tc.shape) {
				t.Fatalf("OrigRank = %d, want %d", form.OrigRank, len(tc.shape))
			}
		})
	}
}

func TestToDeviceFormRejectsRank5(t *testing.T) {
	x := mustTensor(t, seqData(2), []int64{1, 1, 1, 1, 2})
	if _, err := ToDeviceForm(x); err == nil {
		t.Fatal("expected error for rank 5")
	}
}

func TestRoundTripRestoresOriginal(t *testing.T) {
	shapes := [][]int64{{}, {7}, {2, 3}, {1, 4, 5}, {2, 3, 4, 5}, {1, 1, 2}}

	for _, shape := range shapes {
		n, _ := tensor.ElemCount(shape)
		x := mustTensor(t, seqData(n), shape)

		form, err := ToDeviceForm(x)
		if err != nil {
			t.Fatalf("ToDeviceForm(%v): %v", shape, err)
		}

		back, err := form.Restore()
		if err != nil {
			t.Fatalf("Restore(%v): %v", shape, err)
		}

		if !equalShape(back.Shape(), shape) {
			t.Fatalf("restored shape = %v, want %v", back.Shape(), shape)
		}

		got, want := back.RawData(), x.RawData()
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("shape %v: data[%d] = %v, want %v", shape, i, got[i], want[i])
			}
		}
	}
}

func TestFromDeviceFormShapeMismatch(t *testing.T) {
	_, err := FromDeviceForm([]float32{1, 2, 3}, []int64{1, 1, 2, 2})
	if err == nil {
		t.Fatal("expected ShapeMismatchError")
	}

	var sme *tensor.ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("error %T is not *tensor.ShapeMismatchError", err)
	}

	if sme.Length != 3 {
		t.Fatalf("Length = %d, want 3", sme.Length)
	}

	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Fatal("errors.Is(err, ErrShapeMismatch) = false")
	}
}

func TestUnpadRejectsRealDims(t *testing.T) {
	if _, err := Unpad([]int64{2, 1, 3, 4}, 2); err == nil {
		t.Fatal("expected error stripping a non-padding dimension")
	}

	got, err := Unpad([]int64{1, 1, 3, 4}, 2)
	if err != nil {
		t.Fatalf("Unpad: %v", err)
	}

	if !equalShape(got, []int64{3, 4}) {
		t.Fatalf("Unpad = %v, want [3 4]", got)
	}
}
