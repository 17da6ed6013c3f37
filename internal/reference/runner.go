//go:build !windows

package reference

import (
	"context"
	"fmt"
	"log/slog"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// Runner wraps an ORT session for a single ONNX model.
type Runner struct {
	name    string
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

// NewRunner loads modelPath into a new ORT session.
func NewRunner(modelPath string, cfg Config) (*Runner, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}

	lib, err := DetectLibrary(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}

	name := ModelName(modelPath)

	runtime, err := ort.NewRuntime(lib.Path, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("reference: ort runtime for %q: %w", name, err)
	}

	env, err := runtime.NewEnv("ttparity-"+name, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("reference: ort env for %q: %w", name, err)
	}

	session, err := runtime.NewSession(env, modelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("reference: ort session for %q (%s): %w", name, modelPath, err)
	}

	slog.Debug("reference runner ready", "model", modelPath, "ort_library", lib.Path, "ort_version", lib.Version)

	return &Runner{
		name:    name,
		runtime: runtime,
		env:     env,
		session: session,
	}, nil
}

// Run executes the model with the given named float32 inputs.
func (r *Runner) Run(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if r.session == nil {
		return nil, fmt.Errorf("reference: runner %q is closed", r.name)
	}

	ortInputs := make(map[string]*ort.Value, len(inputs))
	for name, t := range inputs {
		v, err := ort.NewTensorValue(r.runtime, t.Data(), t.Shape())
		if err != nil {
			closeORTValues(ortInputs)
			return nil, fmt.Errorf("reference: input %q: %w", name, err)
		}

		ortInputs[name] = v
	}

	defer closeORTValues(ortInputs)

	ortOutputs, err := r.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, fmt.Errorf("reference: run %q: %w", r.name, err)
	}
	defer closeORTValues(ortOutputs)

	results := make(map[string]*tensor.Tensor, len(ortOutputs))
	for name, v := range ortOutputs {
		t, err := fromORT(v)
		if err != nil {
			return nil, fmt.Errorf("reference: output %q: %w", name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close releases all ORT resources. Safe to call multiple times.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

// Name returns the model name.
func (r *Runner) Name() string {
	return r.name
}

func fromORT(v *ort.Value) (*tensor.Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	if elemType != ort.ONNXTensorElementDataTypeFloat {
		return nil, fmt.Errorf("unsupported ORT element type %d (float32 only)", elemType)
	}

	data, shape, err := ort.GetTensorData[float32](v)
	if err != nil {
		return nil, err
	}

	return tensor.New(append([]float32(nil), data...), shape)
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
