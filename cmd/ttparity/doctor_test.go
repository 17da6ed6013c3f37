package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-ttparity/internal/config"
	"github.com/example/go-ttparity/internal/device"
	"github.com/example/go-ttparity/internal/safetensors"
)

func TestRunDoctor_PassesWithEmulatorAndReadableFile(t *testing.T) {
	path := writeSafetensors(t, "golden.safetensors",
		safetensors.Tensor{Name: "a", Shape: []int64{2, 2}, Data: seq(4, 1)},
		safetensors.Tensor{Name: "b", Shape: []int64{3}, Data: seq(3, 1)},
	)

	rt := device.NewEmulator()

	var stdout, stderr bytes.Buffer

	err := runDoctor(&stdout, &stderr, rt, config.DefaultConfig(), []string{path}, true)
	if err != nil {
		t.Fatalf("runDoctor: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"onnx runtime: skipped", "device grayskull:0: open/close ok", "(2 tensors)", "doctor checks passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}

	if rt.OpenDevices() != 0 {
		t.Errorf("OpenDevices = %d after probe, want 0", rt.OpenDevices())
	}
}

func TestRunDoctor_FailsOnBadFile(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "junk.safetensors")
	if err := os.WriteFile(bad, []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer

	err := runDoctor(&stdout, &stderr, device.NewEmulator(), config.DefaultConfig(), []string{bad}, true)
	if err == nil {
		t.Fatal("expected doctor failure")
	}

	if !strings.Contains(stderr.String(), "FAIL: tensor file") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunDoctor_FailsWhenORTMissing(t *testing.T) {
	t.Setenv("TTPARITY_ORT_LIB", "")
	t.Setenv("ORT_LIBRARY_PATH", "")

	cfg := config.DefaultConfig()
	cfg.Reference.ORTLibraryPath = filepath.Join(t.TempDir(), "libonnxruntime.so")

	var stdout, stderr bytes.Buffer

	err := runDoctor(&stdout, &stderr, device.NewEmulator(), cfg, nil, false)
	if err == nil {
		t.Fatal("expected failure for a missing library")
	}

	if !strings.Contains(stderr.String(), "onnx runtime") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
