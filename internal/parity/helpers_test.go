package parity

import (
	"math"
	"testing"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

var nan32 = float32(math.NaN())

func mustTensor(t *testing.T, data []float32, shape ...int64) *tensor.Tensor {
	t.Helper()

	if len(shape) == 0 {
		shape = []int64{int64(len(data))}
	}

	x, err := tensor.New(data, shape)
	if err != nil {
		t.Fatalf("tensor.New(%v, %v): %v", data, shape, err)
	}

	return x
}

func seqData(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32((i*7)%23-11) / 11
	}

	return out
}

func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}

	return out
}
