package device

import (
	"errors"
	"fmt"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// OperandKind tags which variant an Operand holds.
type OperandKind uint8

const (
	OperandInvalid OperandKind = iota
	OperandHost
	OperandDevice
)

func (k OperandKind) String() string {
	switch k {
	case OperandHost:
		return "host"
	case OperandDevice:
		return "device"
	default:
		return "invalid"
	}
}

// Operand is either a host array or a runtime tensor. The zero value is
// invalid.
type Operand struct {
	kind   OperandKind
	host   *tensor.Tensor
	remote Tensor
}

func HostOperand(t *tensor.Tensor) Operand {
	return Operand{kind: OperandHost, host: t}
}

func DeviceOperand(t Tensor) Operand {
	return Operand{kind: OperandDevice, remote: t}
}

func (o Operand) Kind() OperandKind { return o.kind }

// Host extracts the operand as a host array. Runtime tensors are downloaded
// and returned in their padded rank-4 shape.
func (o Operand) Host() (*tensor.Tensor, error) {
	switch o.kind {
	case OperandHost:
		if o.host == nil {
			return nil, errors.New("device: host operand holds nil tensor")
		}

		return o.host, nil
	case OperandDevice:
		return Download(o.remote)
	default:
		return nil, fmt.Errorf("device: operand kind %s cannot be extracted", o.kind)
	}
}

// Peek returns count values of the flattened operand starting at offset and
// advancing by stride.
func Peek(o Operand, count, offset, stride int) ([]float32, error) {
	if count < 0 || offset < 0 || stride < 1 {
		return nil, fmt.Errorf("device: peek: invalid window count=%d offset=%d stride=%d", count, offset, stride)
	}

	t, err := o.Host()
	if err != nil {
		return nil, err
	}

	data := t.RawData()

	out := make([]float32, 0, count)
	for i := range count {
		idx := offset + i*stride
		if idx >= len(data) {
			return nil, fmt.Errorf("device: peek: index %d out of range for %d elements", idx, len(data))
		}

		out = append(out, data[idx])
	}

	return out, nil
}
