package device

import (
	"errors"
	"fmt"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// TransferOptions selects how a host array is materialized on the device.
type TransferOptions struct {
	DType  DType
	Layout Layout
}

// DefaultTransferOptions matches what model ports feed their kernels:
// bfloat16 data in tile layout.
func DefaultTransferOptions() TransferOptions {
	return TransferOptions{DType: DTypeBFloat16, Layout: LayoutTile}
}

// Upload pads t to rank 4, builds a row-major runtime tensor, converts it to
// the requested layout and moves it onto dev.
func Upload(rt Runtime, dev Device, t *tensor.Tensor, opts TransferOptions) (Tensor, error) {
	if rt == nil || dev == nil {
		return nil, errors.New("device: upload requires a runtime and a device")
	}

	if opts.DType == "" {
		opts.DType = DTypeBFloat16
	}

	if opts.Layout == "" {
		opts.Layout = LayoutRowMajor
	}

	form, err := ToDeviceForm(t)
	if err != nil {
		return nil, err
	}

	host, err := rt.MakeTensor(form.Data, form.Shape, opts.DType, LayoutRowMajor)
	if err != nil {
		return nil, fmt.Errorf("device: upload: make tensor: %w", err)
	}

	if opts.Layout != LayoutRowMajor {
		host, err = host.ToLayout(opts.Layout)
		if err != nil {
			return nil, fmt.Errorf("device: upload: to %s: %w", opts.Layout, err)
		}
	}

	out, err := host.ToDevice(dev)
	if err != nil {
		return nil, fmt.Errorf("device: upload: to device: %w", err)
	}

	return out, nil
}

// Download moves t to the host, converts it to row-major and returns it as a
// rank-4 host array.
func Download(t Tensor) (*tensor.Tensor, error) {
	if t == nil {
		return nil, errors.New("device: download: nil tensor")
	}

	host := t
	if t.Device() != nil {
		var err error

		host, err = t.ToHost()
		if err != nil {
			return nil, fmt.Errorf("device: download: to host: %w", err)
		}
	}

	if host.Layout() != LayoutRowMajor {
		var err error

		host, err = host.ToLayout(LayoutRowMajor)
		if err != nil {
			return nil, fmt.Errorf("device: download: to %s: %w", LayoutRowMajor, err)
		}
	}

	data, err := host.Data()
	if err != nil {
		return nil, fmt.Errorf("device: download: data: %w", err)
	}

	return FromDeviceForm(data, host.Shape())
}

// DownloadRank is Download followed by stripping padding back to rank.
func DownloadRank(t Tensor, rank int) (*tensor.Tensor, error) {
	out, err := Download(t)
	if err != nil {
		return nil, err
	}

	shape, err := Unpad(out.Shape(), rank)
	if err != nil {
		return nil, err
	}

	return out.Reshape(shape)
}

// TileCompatible reports whether a padded rank-4 shape can use TILE layout.
func TileCompatible(shape []int64) bool {
	if len(shape) < 2 {
		return false
	}

	return shape[len(shape)-2]%TileSize == 0 && shape[len(shape)-1]%TileSize == 0
}
