package tensor

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is matched by every *ShapeMismatchError via errors.Is.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeMismatchError reports a flat buffer whose length disagrees with its
// declared shape, or two arrays whose shapes differ.
type ShapeMismatchError struct {
	Op     string
	Shape  []int64
	Other  []int64 // set when two shapes were compared
	Length int     // buffer length when Other is nil
}

func (e *ShapeMismatchError) Error() string {
	if e.Other != nil {
		return fmt.Sprintf("%s: shape %v does not match shape %v", e.Op, e.Shape, e.Other)
	}

	want, err := shapeElemCount(e.Shape)
	if err != nil {
		return fmt.Sprintf("%s: invalid shape %v: %v", e.Op, e.Shape, err)
	}

	return fmt.Sprintf("%s: shape %v needs %d elements, buffer has %d", e.Op, e.Shape, want, e.Length)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// CheckSameShape returns a *ShapeMismatchError when a and b differ in shape.
func CheckSameShape(op string, a, b *Tensor) error {
	if a == nil || b == nil {
		return fmt.Errorf("%s: tensors must be non-nil", op)
	}

	if !SameShape(a, b) {
		return &ShapeMismatchError{Op: op, Shape: a.Shape(), Other: b.Shape()}
	}

	return nil
}
