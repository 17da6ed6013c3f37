package device

import (
	"errors"
	"fmt"
	"log/slog"
)

// Open creates and initializes a device. If initialization fails the handle
// is closed before returning.
func Open(rt Runtime, arch Arch, index int) (Device, error) {
	if rt == nil {
		return nil, errors.New("device: runtime is required")
	}

	dev, err := rt.CreateDevice(arch, index)
	if err != nil {
		return nil, fmt.Errorf("device: create %s:%d: %w", arch, index, err)
	}

	if err := dev.Initialize(); err != nil {
		initErr := fmt.Errorf("device: initialize %s:%d: %w", arch, index, err)
		if closeErr := dev.Close(); closeErr != nil {
			return nil, errors.Join(initErr, fmt.Errorf("device: close %s:%d: %w", arch, index, closeErr))
		}

		return nil, initErr
	}

	slog.Debug("device opened", "arch", arch, "index", index)

	return dev, nil
}

// WithDevice opens a device, runs fn, and closes the device on every exit
// path, including a panic in fn. A close failure is joined to fn's error.
func WithDevice(rt Runtime, arch Arch, index int, fn func(Device) error) (err error) {
	dev, err := Open(rt, arch, index)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := dev.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("device: close %s:%d: %w", arch, index, closeErr))
		}

		slog.Debug("device closed", "arch", arch, "index", index)
	}()

	return fn(dev)
}
