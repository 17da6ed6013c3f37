package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/example/go-ttparity/internal/reference"
	"github.com/example/go-ttparity/internal/runtime/tensor"
	"github.com/example/go-ttparity/internal/safetensors"
)

func newReferenceCmd() *cobra.Command {
	var stripPrefix string

	cmd := &cobra.Command{
		Use:   "reference MODEL INPUTS OUTPUT",
		Short: "Run an ONNX model on the host and save its outputs as golden tensors",
		Long: "Every tensor in INPUTS is fed to MODEL under its own name. The model's float32\n" +
			"outputs are written to OUTPUT (.safetensors or .arrow).",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			modelPath, inputPath, outputPath := args[0], args[1], args[2]

			loaded, err := loadTensors(inputPath, stripPrefix, nil)
			if err != nil {
				return fmt.Errorf("load inputs: %w", err)
			}

			inputs := make(map[string]*tensor.Tensor, len(loaded))
			for _, t := range loaded {
				host, err := t.Host()
				if err != nil {
					return err
				}

				inputs[t.Name] = host
			}

			prof := newProfiler(cfg)

			prof.Start("load_model")
			runner, err := reference.NewRunner(modelPath, reference.Config{
				LibraryPath: cfg.Reference.ORTLibraryPath,
				APIVersion:  uint32(cfg.Reference.ORTAPIVersion),
			})
			prof.End("load_model", 1)

			if err != nil {
				return err
			}
			defer runner.Close()

			var outputs map[string]*tensor.Tensor

			err = prof.Time("run_model", func() error {
				var runErr error
				outputs, runErr = runner.Run(cmd.Context(), inputs)

				return runErr
			})
			if err != nil {
				return err
			}

			if len(outputs) == 0 {
				return fmt.Errorf("model %s produced no outputs", runner.Name())
			}

			golden := goldenFromOutputs(outputs)
			if err := writeTensors(outputPath, golden, map[string]string{"source": modelPath}); err != nil {
				return err
			}

			slog.Info("golden tensors written", "model", runner.Name(), "count", len(golden), "path", outputPath)

			if prof.Enabled() {
				return prof.Print(cmd.ErrOrStderr())
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&stripPrefix, "strip-prefix", "", "Feed only inputs with this name prefix, with the prefix removed")

	return cmd
}

func goldenFromOutputs(outputs map[string]*tensor.Tensor) []safetensors.Tensor {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]safetensors.Tensor, 0, len(names))
	for _, name := range names {
		out = append(out, safetensors.FromHost(name, outputs[name]))
	}

	return out
}
