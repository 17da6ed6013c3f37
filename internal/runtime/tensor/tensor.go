// Package tensor holds the host-resident numeric arrays that parity checks
// consume: dense, row-major float32 data with an int64 shape.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Tensor is a dense, row-major float32 array resident in host memory.
type Tensor struct {
	shape []int64
	data  []float32
}

// New creates a tensor from data and shape. Both slices are copied.
func New(data []float32, shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	s := append([]int64(nil), shape...)
	d := append([]float32(nil), data...)

	return &Tensor{shape: s, data: d}, nil
}

// FromFloat64 creates a tensor from float64 values, narrowing to float32.
func FromFloat64(data []float64, shape []int64) (*Tensor, error) {
	narrowed := make([]float32, len(data))
	for i, v := range data {
		narrowed[i] = float32(v)
	}

	return New(narrowed, shape)
}

// Zeros creates a zero-initialized tensor.
func Zeros(shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Tensor{
		shape: append([]int64(nil), shape...),
		data:  make([]float32, total),
	}, nil
}

func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the underlying tensor data.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Tensor) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Tensor) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}

	dup, _ := New(t.data, t.shape)

	return dup
}

// Reshape returns a copy of the tensor with a new shape.
func (t *Tensor) Reshape(shape []int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: reshape on nil tensor")
	}

	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if total != len(t.data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v (%d elements) to %v (%d elements)", t.shape, len(t.data), shape, total)
	}

	return &Tensor{shape: append([]int64(nil), shape...), data: append([]float32(nil), t.data...)}, nil
}

// Squeeze drops every size-1 dimension. A tensor whose dims are all 1
// becomes rank 1 so it still carries its single element.
func (t *Tensor) Squeeze() *Tensor {
	if t == nil {
		return nil
	}

	shape := make([]int64, 0, len(t.shape))
	for _, d := range t.shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}

	if len(shape) == 0 && len(t.data) == 1 {
		shape = append(shape, 1)
	}

	return &Tensor{shape: shape, data: append([]float32(nil), t.data...)}
}

// Coord converts a row-major linear index into per-dimension coordinates.
func (t *Tensor) Coord(index int) ([]int64, error) {
	if t == nil {
		return nil, errors.New("tensor: coord on nil tensor")
	}

	if index < 0 || index >= len(t.data) {
		return nil, fmt.Errorf("tensor: index %d out of range for %d elements", index, len(t.data))
	}

	coord := make([]int64, len(t.shape))
	linearToCoord(int64(index), t.shape, computeStrides(t.shape), coord)

	return coord, nil
}

// At returns the element at coord.
func (t *Tensor) At(coord ...int64) (float32, error) {
	if t == nil {
		return 0, errors.New("tensor: at on nil tensor")
	}

	if len(coord) != len(t.shape) {
		return 0, fmt.Errorf("tensor: at expects %d coordinates, got %d", len(t.shape), len(coord))
	}

	for i, c := range coord {
		if c < 0 || c >= t.shape[i] {
			return 0, fmt.Errorf("tensor: coordinate %d (%d) out of range for dim size %d", i, c, t.shape[i])
		}
	}

	return t.data[coordToLinear(coord, computeStrides(t.shape))], nil
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	return equalShape(a.Shape(), b.Shape())
}

// CountNonFinite returns how many elements are NaN or ±Inf.
func (t *Tensor) CountNonFinite() int {
	if t == nil {
		return 0
	}

	n := 0

	for _, v := range t.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			n++
		}
	}

	return n
}
