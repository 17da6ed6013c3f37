package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-ttparity/internal/config"
	"github.com/example/go-ttparity/internal/device"
	"github.com/example/go-ttparity/internal/metrics"
	"github.com/example/go-ttparity/internal/parity"
	"github.com/example/go-ttparity/internal/report"
	"github.com/example/go-ttparity/internal/safetensors"
)

func TestParseTransfer(t *testing.T) {
	tests := []struct {
		dtype, layout string
		want          transferChoice
		wantErr       bool
	}{
		{"BFLOAT16", "auto", transferChoice{dtype: device.DTypeBFloat16}, false},
		{"bf16", "tile", transferChoice{dtype: device.DTypeBFloat16, layout: device.LayoutTile}, false},
		{"float32", "row_major", transferChoice{dtype: device.DTypeFloat32, layout: device.LayoutRowMajor}, false},
		{"fp32", "", transferChoice{dtype: device.DTypeFloat32}, false},
		{"int8", "auto", transferChoice{}, true},
		{"bf16", "blocked", transferChoice{}, true},
	}

	for _, tc := range tests {
		got, err := parseTransfer(tc.dtype, tc.layout)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseTransfer(%q, %q) = %+v; want error", tc.dtype, tc.layout, got)
			}

			continue
		}

		if err != nil || got != tc.want {
			t.Errorf("parseTransfer(%q, %q) = %+v, %v; want %+v", tc.dtype, tc.layout, got, err, tc.want)
		}
	}
}

func TestRunRoundtrip_EmulatorBF16(t *testing.T) {
	emu := device.NewEmulator()
	cfg := config.DefaultConfig()

	inputs := []*safetensors.Tensor{
		{Name: "tiled", Shape: []int64{32, 32}, Data: seq(1024, 0.01)},
		{Name: "vector", Shape: []int64{3}, Data: []float32{0.1, 0.2, 0.3}},
		{Name: "rank5", Shape: []int64{1, 1, 1, 1, 2}, Data: []float32{1, 2}},
	}

	rep := &report.Report{Mode: cfg.Parity.Mode, Options: cfg.Parity.Options()}

	out, err := runRoundtrip(context.Background(), emu, cfg, inputs,
		transferChoice{dtype: device.DTypeBFloat16}, rep, newProfiler(cfg), metrics.NewRecorder())
	if err != nil {
		t.Fatalf("runRoundtrip: %v", err)
	}

	if rep.Summary.Passed != 2 || rep.Summary.Errors != 1 {
		t.Fatalf("summary = %+v, want 2 passed 1 error; cases %+v", rep.Summary, rep.Cases)
	}

	if len(out) != 2 || out[0].Name != "tiled" {
		t.Fatalf("downloaded = %d tensors", len(out))
	}

	if !equalShape(out[0].Shape, []int64{32, 32}) {
		t.Fatalf("tiled shape = %v, want [32 32]", out[0].Shape)
	}

	if emu.Created() != 1 || emu.OpenDevices() != 0 {
		t.Fatalf("created = %d open = %d, want one device opened and closed", emu.Created(), emu.OpenDevices())
	}
}

func TestRunRoundtrip_ForcedTileOnUnalignedShape(t *testing.T) {
	emu := device.NewEmulator()
	cfg := config.DefaultConfig()
	rep := &report.Report{Mode: string(parity.ModePCC), Options: cfg.Parity.Options()}

	_, err := runRoundtrip(context.Background(), emu, cfg,
		[]*safetensors.Tensor{{Name: "v", Shape: []int64{3}, Data: []float32{1, 2, 3}}},
		transferChoice{dtype: device.DTypeFloat32, layout: device.LayoutTile}, rep, newProfiler(cfg), metrics.NewRecorder())
	if err != nil {
		t.Fatalf("runRoundtrip: %v", err)
	}

	if rep.Summary.Errors != 1 {
		t.Fatalf("summary = %+v, want 1 error", rep.Summary)
	}
}

func TestRunRoundtrip_DeviceInitFailure(t *testing.T) {
	emu := device.NewEmulator()
	emu.InitHook = func(device.Arch, int) error { return errors.New("no card") }

	cfg := config.DefaultConfig()
	rep := &report.Report{Mode: cfg.Parity.Mode}

	_, err := runRoundtrip(context.Background(), emu, cfg,
		[]*safetensors.Tensor{{Name: "v", Shape: []int64{1}, Data: []float32{1}}},
		transferChoice{dtype: device.DTypeBFloat16}, rep, newProfiler(cfg), metrics.NewRecorder())
	if err == nil || !strings.Contains(err.Error(), "no card") {
		t.Fatalf("err = %v, want init failure", err)
	}

	if emu.OpenDevices() != 0 {
		t.Fatalf("open devices = %d after failed init", emu.OpenDevices())
	}
}

func TestRoundtripCommand_WritesOutput(t *testing.T) {
	input := writeSafetensors(t, "input.safetensors",
		safetensors.Tensor{Name: "x", Shape: []int64{1, 32, 64}, Data: seq(2048, 0.001)},
	)
	output := filepath.Join(t.TempDir(), "device.arrow")

	stdout, stderr, err := runRoot(t, "roundtrip", input, "--output="+output, "--profile", "--arch=wh")
	if err != nil {
		t.Fatalf("roundtrip: %v\n%s", err, stdout)
	}

	if !strings.Contains(stdout, "1 cases: 1 passed") {
		t.Fatalf("unexpected table:\n%s", stdout)
	}

	for _, stage := range []string{"upload:", "download:", "compare:"} {
		if !strings.Contains(stderr, stage) {
			t.Errorf("profile output missing %q:\n%s", stage, stderr)
		}
	}

	back, err := loadTensors(output, "", nil)
	if err != nil {
		t.Fatalf("loadTensors: %v", err)
	}

	if len(back) != 1 || !equalShape(back[0].Shape, []int64{1, 32, 64}) {
		t.Fatalf("output = %+v", back)
	}
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
