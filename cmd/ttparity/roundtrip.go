package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-ttparity/internal/config"
	"github.com/example/go-ttparity/internal/device"
	"github.com/example/go-ttparity/internal/metrics"
	"github.com/example/go-ttparity/internal/parity"
	"github.com/example/go-ttparity/internal/profiler"
	"github.com/example/go-ttparity/internal/report"
	"github.com/example/go-ttparity/internal/safetensors"
)

const peekCount = 8

func newRoundtripCmd() *cobra.Command {
	var (
		names  []string
		dtype  string
		layout string
		output string
	)

	cmd := &cobra.Command{
		Use:   "roundtrip INPUT",
		Short: "Push tensors through the emulated device and compare them to the source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts, err := parseTransfer(dtype, layout)
			if err != nil {
				return err
			}

			inputs, err := loadTensors(args[0], "", names)
			if err != nil {
				return fmt.Errorf("load input: %w", err)
			}

			if len(inputs) == 0 {
				return fmt.Errorf("no input tensors selected")
			}

			rep := &report.Report{
				Golden:  args[0],
				Mode:    cfg.Parity.Mode,
				Options: cfg.Parity.Options(),
			}

			prof := newProfiler(cfg)
			rec := metrics.NewRecorder()

			downloaded, err := runRoundtrip(cmd.Context(), device.NewEmulator(), cfg, inputs, opts, rep, prof, rec)
			if err != nil {
				return err
			}

			if output != "" && len(downloaded) > 0 {
				if err := writeTensors(output, downloaded, map[string]string{"source": args[0]}); err != nil {
					return err
				}
			}

			return finishReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, rep, prof, rec)
		},
	}

	cmd.Flags().StringSliceVar(&names, "tensor", nil, "Only round-trip these tensor names (repeatable)")
	cmd.Flags().StringVar(&dtype, "dtype", string(device.DTypeBFloat16), "Device element type (BFLOAT16|FLOAT32)")
	cmd.Flags().StringVar(&layout, "layout", "auto", "Device layout (auto|TILE|ROW_MAJOR); auto picks TILE when the shape allows it")
	cmd.Flags().StringVar(&output, "output", "", "Write the downloaded tensors to this file (.safetensors|.arrow)")

	return cmd
}

// transferChoice is the requested dtype plus an optional forced layout.
type transferChoice struct {
	dtype  device.DType
	layout device.Layout // empty means auto
}

func parseTransfer(dtype, layout string) (transferChoice, error) {
	var out transferChoice

	switch device.DType(strings.ToUpper(strings.TrimSpace(dtype))) {
	case device.DTypeBFloat16, "BF16":
		out.dtype = device.DTypeBFloat16
	case device.DTypeFloat32, "FP32", "F32":
		out.dtype = device.DTypeFloat32
	default:
		return out, fmt.Errorf("invalid --dtype %q (expected BFLOAT16|FLOAT32)", dtype)
	}

	switch strings.ToUpper(strings.TrimSpace(layout)) {
	case "", "AUTO":
	case string(device.LayoutTile):
		out.layout = device.LayoutTile
	case string(device.LayoutRowMajor):
		out.layout = device.LayoutRowMajor
	default:
		return out, fmt.Errorf("invalid --layout %q (expected auto|TILE|ROW_MAJOR)", layout)
	}

	return out, nil
}

// runRoundtrip uploads and downloads every input on one device and records a
// case per tensor in rep. It returns the downloaded tensors.
func runRoundtrip(
	ctx context.Context,
	rt device.Runtime,
	cfg config.Config,
	inputs []*safetensors.Tensor,
	choice transferChoice,
	rep *report.Report,
	prof *profiler.Profiler,
	rec *metrics.Recorder,
) ([]safetensors.Tensor, error) {
	arch, err := device.ParseArch(cfg.Device.Arch)
	if err != nil {
		return nil, err
	}

	mode := parity.Mode(rep.Mode)

	var downloaded []safetensors.Tensor

	err = device.WithDevice(rt, arch, cfg.Device.Index, func(dev device.Device) error {
		for _, in := range inputs {
			if err := ctx.Err(); err != nil {
				return err
			}

			out, err := roundtripOne(rt, dev, in, choice, prof)
			if err != nil {
				slog.Error("roundtrip failed", "tensor", in.Name, "error", err)
				rec.ObserveError(mode)
				rep.Add(report.ErrorCase(in.Name, mode, err))

				continue
			}

			c := comparePair(safetensors.Pair{Name: in.Name, Golden: in, Calculated: out}, mode, rep.Options, prof, rec)
			rep.Add(c)
			downloaded = append(downloaded, *out)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return downloaded, nil
}

func roundtripOne(rt device.Runtime, dev device.Device, in *safetensors.Tensor, choice transferChoice, prof *profiler.Profiler) (*safetensors.Tensor, error) {
	host, err := in.Host()
	if err != nil {
		return nil, err
	}

	form, err := device.ToDeviceForm(host)
	if err != nil {
		return nil, err
	}

	opts := device.TransferOptions{DType: choice.dtype, Layout: choice.layout}
	if opts.Layout == "" {
		opts.Layout = device.LayoutRowMajor
		if device.TileCompatible(form.Shape) {
			opts.Layout = device.LayoutTile
		}
	}

	prof.Start("upload")
	remote, err := device.Upload(rt, dev, host, opts)
	prof.End("upload", 1)

	if err != nil {
		return nil, err
	}

	op := device.DeviceOperand(remote)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		n := min(peekCount, host.ElemCount())
		if head, err := device.Peek(op, n, 0, 1); err == nil {
			slog.Debug("uploaded", "tensor", in.Name, "shape", form.Shape, "dtype", opts.DType, "layout", opts.Layout, "head", head)
		}
	}

	prof.Start("download")
	back, err := device.DownloadRank(remote, form.OrigRank)
	prof.End("download", 1)

	if err != nil {
		return nil, err
	}

	out := safetensors.FromHost(in.Name, back)

	return &out, nil
}
