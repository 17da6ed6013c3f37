// Package reference runs ONNX models on the host to produce golden tensors.
package reference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultAPIVersion is the ORT C API version requested when none is set.
const DefaultAPIVersion = 23

// Config holds ORT library settings for creating runners.
type Config struct {
	LibraryPath string
	APIVersion  uint32
}

// LibraryInfo describes a located ONNX Runtime shared library.
type LibraryInfo struct {
	Path    string
	Version string
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

var libraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// ErrLibraryNotFound is returned when no ONNX Runtime library can be located.
var ErrLibraryNotFound = errors.New("reference: unable to locate ONNX Runtime library")

// DetectLibrary resolves the ORT shared library. An explicit path wins, then
// TTPARITY_ORT_LIB, then ORT_LIBRARY_PATH, then common system locations.
func DetectLibrary(path string) (LibraryInfo, error) {
	if path == "" {
		path = os.Getenv("TTPARITY_ORT_LIB")
	}

	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		for _, c := range libraryCandidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return LibraryInfo{}, ErrLibraryNotFound
	}

	if _, err := os.Stat(path); err != nil {
		return LibraryInfo{Path: path}, fmt.Errorf("reference: onnx runtime library check failed: %w", err)
	}

	version := inferVersionFromPath(path)
	if version == "" {
		version = "unknown"
	}

	return LibraryInfo{Path: path, Version: version}, nil
}

func inferVersionFromPath(path string) string {
	if m := versionPattern.FindStringSubmatch(filepath.Base(path)); len(m) == 2 {
		return m[1]
	}

	return ""
}

// ModelName derives a runner name from the model file name.
func ModelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
