package device

import (
	"fmt"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// Form is the flat buffer plus padded shape handed to Runtime.MakeTensor.
type Form struct {
	Data  []float32
	Shape []int64 // always Rank long
	// OrigRank is the rank of the array before padding.
	OrigRank int
}

// ToDeviceForm left-pads the shape of t with size-1 dimensions up to Rank and
// flattens its data row-major. Arrays with more than Rank dimensions are
// rejected.
func ToDeviceForm(t *tensor.Tensor) (Form, error) {
	if t == nil {
		return Form{}, fmt.Errorf("device: to device form: nil tensor")
	}

	shape := t.Shape()
	if len(shape) > Rank {
		return Form{}, fmt.Errorf("device: to device form: rank %d exceeds %d (shape %v)", len(shape), Rank, shape)
	}

	padded := make([]int64, 0, Rank)
	for range Rank - len(shape) {
		padded = append(padded, 1)
	}

	padded = append(padded, shape...)

	return Form{Data: t.Data(), Shape: padded, OrigRank: len(shape)}, nil
}

// FromDeviceForm reshapes a flat buffer into an array of the given shape.
func FromDeviceForm(data []float32, shape []int64) (*tensor.Tensor, error) {
	want, err := tensor.ElemCount(shape)
	if err != nil {
		return nil, fmt.Errorf("device: from device form: %w", err)
	}

	if len(data) != want {
		return nil, &tensor.ShapeMismatchError{Op: "device: from device form", Shape: append([]int64(nil), shape...), Length: len(data)}
	}

	return tensor.New(data, shape)
}

// FromDeviceFormRank reshapes like FromDeviceForm and then strips leading
// size-1 dimensions until the result has the requested rank.
func FromDeviceFormRank(data []float32, shape []int64, rank int) (*tensor.Tensor, error) {
	unpadded, err := Unpad(shape, rank)
	if err != nil {
		return nil, err
	}

	return FromDeviceForm(data, unpadded)
}

// Unpad removes leading size-1 dimensions from shape down to rank. It fails
// if a dimension that would have to be removed is not 1.
func Unpad(shape []int64, rank int) ([]int64, error) {
	if rank < 0 || rank > len(shape) {
		return nil, fmt.Errorf("device: unpad: rank %d out of range for shape %v", rank, shape)
	}

	drop := len(shape) - rank
	for i := range drop {
		if shape[i] != 1 {
			return nil, fmt.Errorf("device: unpad: dimension %d of %v is %d, not padding", i, shape, shape[i])
		}
	}

	return append([]int64(nil), shape[drop:]...), nil
}

// Restore converts a form back into the host array it was produced from.
func (f Form) Restore() (*tensor.Tensor, error) {
	return FromDeviceFormRank(f.Data, f.Shape, f.OrigRank)
}
