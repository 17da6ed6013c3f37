package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/go-ttparity/internal/config"
	"github.com/example/go-ttparity/internal/device"
	"github.com/example/go-ttparity/internal/doctor"
	"github.com/example/go-ttparity/internal/reference"
)

func newDoctorCmd() *cobra.Command {
	var skipORT bool

	cmd := &cobra.Command{
		Use:   "doctor [TENSOR_FILE...]",
		Short: "Check the ONNX Runtime install, the device, and tensor files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return runDoctor(cmd.OutOrStdout(), cmd.ErrOrStderr(), device.NewEmulator(), cfg, args, skipORT)
		},
	}

	cmd.Flags().BoolVar(&skipORT, "skip-ort", false, "Skip the ONNX Runtime library check")

	return cmd
}

func runDoctor(stdout, stderr io.Writer, rt device.Runtime, cfg config.Config, files []string, skipORT bool) error {
	arch, err := device.ParseArch(cfg.Device.Arch)
	if err != nil {
		return err
	}

	dcfg := doctor.Config{
		ORTLibrary: func() (string, string, error) {
			info, err := reference.DetectLibrary(cfg.Reference.ORTLibraryPath)
			return info.Path, info.Version, err
		},
		SkipORT:       skipORT,
		ORTAPIVersion: cfg.Reference.ORTAPIVersion,
		DeviceProbe: func() error {
			return device.WithDevice(rt, arch, cfg.Device.Index, func(device.Device) error { return nil })
		},
		DeviceLabel: fmt.Sprintf("%s:%d", arch, cfg.Device.Index),
		TensorFiles: files,
		ReadTensors: func(path string) (int, error) {
			tensors, err := loadTensors(path, "", nil)
			return len(tensors), err
		},
	}

	result := doctor.Run(dcfg, stdout)
	if result.Failed() {
		for _, f := range result.Failures() {
			_, _ = fmt.Fprintf(stderr, "FAIL: %s\n", f)
		}

		return errors.New("doctor checks failed")
	}

	_, _ = fmt.Fprintln(stdout, "doctor checks passed")

	return nil
}
