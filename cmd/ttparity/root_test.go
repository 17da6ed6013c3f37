package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/example/go-ttparity/internal/config"
	"github.com/example/go-ttparity/internal/safetensors"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"compare", "roundtrip", "reference", "doctor"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag to be registered")
	}

	if root.PersistentFlags().Lookup("pcc") == nil {
		t.Error("expected --pcc persistent flag to be registered")
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	// Should not panic on invalid level.
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Parity.Mode != "combined" {
		t.Errorf("unexpected Parity.Mode: %q", got.Parity.Mode)
	}
}

// runRoot executes the root command with args and returns stdout, stderr and
// the command error.
func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	var stdout, stderr bytes.Buffer

	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

// writeSafetensors writes tensors to a new file in a temp dir.
func writeSafetensors(t *testing.T, name string, tensors ...safetensors.Tensor) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := safetensors.WriteFile(path, tensors, safetensors.EncodeOptions{}); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}

	return path
}

func seq(n int, scale float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i+1) * scale
	}

	return out
}
