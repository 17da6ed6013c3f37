package device

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// Emulator is an in-process Runtime. It applies dtype rounding and validates
// layout constraints the way the accelerator library does, but keeps every
// buffer row-major in host memory.
type Emulator struct {
	open    map[*emulatedDevice]struct{}
	created int

	// InitHook, when set, runs inside Device.Initialize and can fail it.
	InitHook func(arch Arch, index int) error
}

func NewEmulator() *Emulator {
	return &Emulator{open: make(map[*emulatedDevice]struct{})}
}

// OpenDevices returns the number of created handles not yet closed.
func (e *Emulator) OpenDevices() int {
	return len(e.open)
}

// Created returns how many device handles were ever created.
func (e *Emulator) Created() int {
	return e.created
}

func (e *Emulator) CreateDevice(arch Arch, index int) (Device, error) {
	if _, err := ParseArch(string(arch)); err != nil {
		return nil, err
	}

	if index < 0 {
		return nil, fmt.Errorf("device: invalid device index %d", index)
	}

	if e.open == nil {
		e.open = make(map[*emulatedDevice]struct{})
	}

	dev := &emulatedDevice{emu: e, arch: arch, index: index}
	e.open[dev] = struct{}{}
	e.created++

	return dev, nil
}

func (e *Emulator) MakeTensor(data []float32, shape []int64, dtype DType, layout Layout) (Tensor, error) {
	if len(shape) != Rank {
		return nil, fmt.Errorf("device: make tensor: shape %v must have %d dimensions", shape, Rank)
	}

	want, err := tensor.ElemCount(shape)
	if err != nil {
		return nil, fmt.Errorf("device: make tensor: %w", err)
	}

	if len(data) != want {
		return nil, &tensor.ShapeMismatchError{Op: "device: make tensor", Shape: append([]int64(nil), shape...), Length: len(data)}
	}

	if err := checkDType(dtype); err != nil {
		return nil, err
	}

	if err := checkLayout(layout, shape); err != nil {
		return nil, err
	}

	return &emulatedTensor{
		shape:  append([]int64(nil), shape...),
		data:   roundSlice(dtype, data),
		dtype:  dtype,
		layout: layout,
	}, nil
}

type emulatedDevice struct {
	emu         *Emulator
	arch        Arch
	index       int
	initialized bool
	closed      bool
}

func (d *emulatedDevice) Arch() Arch { return d.arch }
func (d *emulatedDevice) Index() int { return d.index }

func (d *emulatedDevice) Initialize() error {
	if d.closed {
		return ErrDeviceClosed
	}

	if d.emu.InitHook != nil {
		if err := d.emu.InitHook(d.arch, d.index); err != nil {
			return err
		}
	}

	d.initialized = true

	return nil
}

func (d *emulatedDevice) Close() error {
	if d.closed {
		return ErrDeviceClosed
	}

	d.closed = true
	delete(d.emu.open, d)

	return nil
}

func (d *emulatedDevice) usable() error {
	if d.closed {
		return ErrDeviceClosed
	}

	if !d.initialized {
		return ErrNotInitialized
	}

	return nil
}

type emulatedTensor struct {
	shape  []int64
	data   []float32
	dtype  DType
	layout Layout
	dev    *emulatedDevice
}

func (t *emulatedTensor) Shape() []int64 { return append([]int64(nil), t.shape...) }
func (t *emulatedTensor) DType() DType   { return t.dtype }
func (t *emulatedTensor) Layout() Layout { return t.layout }

func (t *emulatedTensor) Device() Device {
	if t.dev == nil {
		return nil
	}

	return t.dev
}

func (t *emulatedTensor) ToLayout(layout Layout) (Tensor, error) {
	if t.dev != nil {
		return nil, fmt.Errorf("device: layout conversion: %w", ErrDeviceResident)
	}

	if err := checkLayout(layout, t.shape); err != nil {
		return nil, err
	}

	return t.with(func(c *emulatedTensor) { c.layout = layout }), nil
}

func (t *emulatedTensor) ToDevice(dev Device) (Tensor, error) {
	target, ok := dev.(*emulatedDevice)
	if !ok || target == nil {
		return nil, fmt.Errorf("device: to device: foreign device handle %T", dev)
	}

	if err := target.usable(); err != nil {
		return nil, fmt.Errorf("device: to device: %w", err)
	}

	if t.dev != nil && t.dev != target {
		return nil, errors.New("device: to device: tensor already resident on another device")
	}

	slog.Debug("tensor to device", "shape", t.shape, "dtype", t.dtype, "layout", t.layout, "index", target.index)

	return t.with(func(c *emulatedTensor) { c.dev = target }), nil
}

func (t *emulatedTensor) ToHost() (Tensor, error) {
	if t.dev == nil {
		return t, nil
	}

	if t.dev.closed {
		return nil, fmt.Errorf("device: to host: %w", ErrDeviceClosed)
	}

	return t.with(func(c *emulatedTensor) { c.dev = nil }), nil
}

func (t *emulatedTensor) Data() ([]float32, error) {
	if t.dev != nil {
		return nil, ErrDeviceResident
	}

	return append([]float32(nil), t.data...), nil
}

func (t *emulatedTensor) with(mut func(*emulatedTensor)) *emulatedTensor {
	c := &emulatedTensor{
		shape:  append([]int64(nil), t.shape...),
		data:   append([]float32(nil), t.data...),
		dtype:  t.dtype,
		layout: t.layout,
		dev:    t.dev,
	}
	mut(c)

	return c
}

func checkDType(dtype DType) error {
	switch dtype {
	case DTypeBFloat16, DTypeFloat32:
		return nil
	default:
		return fmt.Errorf("%w: dtype %q", ErrUnsupportedType, dtype)
	}
}

func checkLayout(layout Layout, shape []int64) error {
	switch layout {
	case LayoutRowMajor:
		return nil
	case LayoutTile:
		h, w := shape[len(shape)-2], shape[len(shape)-1]
		if h%TileSize != 0 || w%TileSize != 0 {
			return fmt.Errorf("device: TILE layout needs the last two dims to be multiples of %d, got %v", TileSize, shape)
		}

		return nil
	default:
		return fmt.Errorf("%w: layout %q", ErrUnsupportedType, layout)
	}
}

func roundSlice(dtype DType, data []float32) []float32 {
	out := make([]float32, len(data))
	if dtype != DTypeBFloat16 {
		copy(out, data)
		return out
	}

	for i, v := range data {
		out[i] = tensor.RoundBFloat16(v)
	}

	return out
}
