//go:build windows

package reference

import (
	"context"
	"fmt"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// Runner is unavailable in windows builds.
type Runner struct {
	name string
}

// NewRunner always returns an error in windows builds.
func NewRunner(modelPath string, _ Config) (*Runner, error) {
	return nil, fmt.Errorf("reference: onnx runner is unavailable on windows for model %q", ModelName(modelPath))
}

// Run always returns an error in windows builds.
func (r *Runner) Run(_ context.Context, _ map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	return nil, fmt.Errorf("reference: onnx runner is unavailable on windows for model %q", r.name)
}

// Close is a no-op in windows builds.
func (r *Runner) Close() {}

// Name returns the model name.
func (r *Runner) Name() string {
	return r.name
}
