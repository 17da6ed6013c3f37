// Package doctor provides environment preflight checks for ttparity.
package doctor

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// LibraryFunc locates the ONNX Runtime library and returns its path and
// version ("unknown" when it cannot be inferred).
type LibraryFunc func() (path, version string, err error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// ORTLibrary locates the ONNX Runtime shared library.
	ORTLibrary LibraryFunc
	// SkipORT skips the ONNX Runtime check (no reference runs planned).
	SkipORT bool
	// ORTAPIVersion is the C API version runners will request. The library's
	// minor version must be at least this.
	ORTAPIVersion int
	// DeviceProbe opens and closes the configured device.
	DeviceProbe func() error
	// DeviceLabel names the probed device in the output, e.g. "grayskull:0".
	DeviceLabel string
	// TensorFiles are read in full to confirm they decode.
	TensorFiles []string
	// ReadTensors decodes one tensor file and returns its tensor count.
	ReadTensors func(path string) (int, error)
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ONNX Runtime -----------------------------------------------------
	switch {
	case cfg.SkipORT || cfg.ORTLibrary == nil:
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	default:
		path, ver, err := cfg.ORTLibrary()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else if verErr := checkORTVersion(ver, cfg.ORTAPIVersion); verErr != nil {
			res.fail(fmt.Sprintf("onnx runtime version: %v", verErr))
			fmt.Fprintf(w, "%s onnx runtime %s (%s): %v\n", FailMark, ver, path, verErr)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, ver, path)
		}
	}

	// ---- device -----------------------------------------------------------
	if cfg.DeviceProbe != nil {
		if err := cfg.DeviceProbe(); err != nil {
			res.fail(fmt.Sprintf("device %s: %v", cfg.DeviceLabel, err))
			fmt.Fprintf(w, "%s device %s: %v\n", FailMark, cfg.DeviceLabel, err)
		} else {
			fmt.Fprintf(w, "%s device %s: open/close ok\n", PassMark, cfg.DeviceLabel)
		}
	}

	// ---- tensor files -----------------------------------------------------
	for _, path := range cfg.TensorFiles {
		if cfg.ReadTensors == nil {
			break
		}

		n, err := cfg.ReadTensors(path)
		if err != nil {
			res.fail(fmt.Sprintf("tensor file %q: %v", path, err))
			fmt.Fprintf(w, "%s tensor file %s: %v\n", FailMark, path, err)
		} else {
			fmt.Fprintf(w, "%s tensor file: %s (%d tensors)\n", PassMark, path, n)
		}
	}

	return res
}

// checkORTVersion returns an error if ver is a known 1.x version older than
// the requested C API. Unknown versions pass.
func checkORTVersion(ver string, apiVersion int) error {
	if ver == "" || ver == "unknown" || apiVersion <= 0 {
		return nil
	}

	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if minor < apiVersion {
		return fmt.Errorf("C API %d requires ONNX Runtime >=1.%d, got 1.%d", apiVersion, apiVersion, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
