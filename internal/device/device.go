// Package device describes the accelerator runtime the parity harness talks
// to and the host-side plumbing around it: padding arrays into the 4D flat
// form the runtime expects, scoped device acquisition, host<->device
// transfers, and an in-process emulator that stands in for real hardware.
//
// The runtime itself is opaque. Kernel execution, compiled-kernel caching and
// on-device tile ordering all live behind the Runtime, Device and Tensor
// interfaces.
package device

import (
	"errors"
	"fmt"
	"strings"
)

// Arch identifies an accelerator generation.
type Arch string

const (
	ArchGrayskull  Arch = "grayskull"
	ArchWormholeB0 Arch = "wormhole_b0"
)

// ParseArch normalizes user input into a known Arch.
func ParseArch(raw string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "grayskull", "gs":
		return ArchGrayskull, nil
	case "wormhole_b0", "wormhole", "wh", "wh_b0":
		return ArchWormholeB0, nil
	default:
		return "", fmt.Errorf("device: unknown arch %q (expected grayskull|wormhole_b0)", raw)
	}
}

// DType tags the element type a tensor is stored with on the runtime side.
type DType string

const (
	DTypeBFloat16 DType = "BFLOAT16"
	DTypeFloat32  DType = "FLOAT32"
)

// Layout tags the memory arrangement of a tensor.
type Layout string

const (
	LayoutRowMajor Layout = "ROW_MAJOR"
	LayoutTile     Layout = "TILE"
)

// TileSize is the edge length of a square tile in TILE layout.
const TileSize = 32

// Rank is the number of dimensions every runtime tensor carries.
const Rank = 4

var (
	ErrDeviceClosed    = errors.New("device: device is closed")
	ErrNotInitialized  = errors.New("device: device is not initialized")
	ErrDeviceResident  = errors.New("device: tensor is resident on device")
	ErrUnsupportedType = errors.New("device: unsupported dtype or layout")
)

// Runtime is the accelerator library entry point.
type Runtime interface {
	// CreateDevice returns an uninitialized handle. The handle must be
	// closed even if Initialize fails.
	CreateDevice(arch Arch, index int) (Device, error)

	// MakeTensor builds a host-resident tensor from flat row-major data and
	// a rank-4 shape.
	MakeTensor(data []float32, shape []int64, dtype DType, layout Layout) (Tensor, error)
}

// Device is an acquired accelerator context.
type Device interface {
	Arch() Arch
	Index() int
	Initialize() error
	Close() error
}

// Tensor is a runtime tensor, host- or device-resident.
type Tensor interface {
	Shape() []int64
	DType() DType
	Layout() Layout

	// Device returns the device holding the tensor, or nil for host tensors.
	Device() Device

	ToLayout(layout Layout) (Tensor, error)
	ToDevice(dev Device) (Tensor, error)
	ToHost() (Tensor, error)

	// Data returns the flat element buffer of a host-resident tensor.
	Data() ([]float32, error)
}
