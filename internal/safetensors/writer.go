package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// EncodeOptions controls serialization.
type EncodeOptions struct {
	// DType is F32 (default) or BF16. BF16 rounds to nearest even.
	DType    string
	Metadata map[string]string
}

// EncodeTensors serializes float32 tensors into safetensors format.
func EncodeTensors(tensors []Tensor, opts EncodeOptions) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: no tensors to encode")
	}

	dtype := strings.ToUpper(opts.DType)
	if dtype == "" {
		dtype = dtypeF32
	}

	if dtype != dtypeF32 && dtype != dtypeBF16 {
		return nil, fmt.Errorf("safetensors: cannot encode dtype %q (expected F32|BF16)", opts.DType)
	}

	width := dtypeSize(dtype)

	sorted := make([]Tensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	header := make(map[string]any, len(sorted)+1)
	raw := make([]byte, 0, estimateTensorBytes(sorted, width))

	for _, t := range sorted {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, errors.New("safetensors: tensor name must not be empty")
		}

		if name == "__metadata__" {
			return nil, errors.New("safetensors: tensor name __metadata__ is reserved")
		}

		if _, exists := header[name]; exists {
			return nil, fmt.Errorf("safetensors: duplicate tensor name %q", name)
		}

		elemCount, err := shapeElementCount(t.Shape)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		if int64(len(t.Data)) != elemCount {
			return nil, fmt.Errorf(
				"safetensors: tensor %q shape %v expects %d elements, got %d",
				name,
				t.Shape,
				elemCount,
				len(t.Data),
			)
		}

		start := len(raw)

		raw = append(raw, make([]byte, len(t.Data)*width)...)
		for i, v := range t.Data {
			switch dtype {
			case dtypeBF16:
				binary.LittleEndian.PutUint16(raw[start+i*2:], tensor.BFloat16Bits(v))
			default:
				binary.LittleEndian.PutUint32(raw[start+i*4:], math.Float32bits(v))
			}
		}

		header[name] = storeHeaderEntry{
			DType:   dtype,
			Shape:   append([]int64{}, t.Shape...),
			Offsets: [2]int{start, len(raw)},
		}
	}

	if len(opts.Metadata) > 0 {
		header["__metadata__"] = opts.Metadata
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 8, 8+len(headerJSON)+len(raw))
	binary.LittleEndian.PutUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	out = append(out, raw...)

	return out, nil
}

// WriteFile writes tensors into a .safetensors file.
func WriteFile(path string, tensors []Tensor, opts EncodeOptions) error {
	data, err := EncodeTensors(tensors, opts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	return nil
}

func estimateTensorBytes(tensors []Tensor, width int) int {
	total := 0
	for _, t := range tensors {
		total += len(t.Data) * width
	}

	return total
}
