package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/example/go-ttparity/internal/dump"
	"github.com/example/go-ttparity/internal/safetensors"
)

// loadTensors reads the tensors of path, or only those in names when names is
// non-empty. Arrow dumps are chosen by extension; anything else is read as
// safetensors.
func loadTensors(path, stripPrefix string, names []string) ([]*safetensors.Tensor, error) {
	if dump.IsDump(path) {
		tensors, err := dump.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if stripPrefix == "" {
			return selectTensors(tensors, names), nil
		}

		out := tensors[:0]
		for _, t := range tensors {
			if name, ok := strings.CutPrefix(t.Name, stripPrefix); ok {
				t.Name = name
				out = append(out, t)
			}
		}

		if len(out) == 0 {
			return nil, fmt.Errorf("%s: no tensors with prefix %q", path, stripPrefix)
		}

		return selectTensors(out, names), nil
	}

	opts := safetensors.StoreOptions{}
	if stripPrefix != "" {
		opts.KeyMapper = safetensors.PrefixMapper(stripPrefix)
	}

	if len(names) == 0 {
		return safetensors.Load(path, opts)
	}

	tensors, missing, err := safetensors.LoadNamed(path, opts, names)
	if err != nil {
		return nil, err
	}

	for _, name := range missing {
		slog.Warn("tensor not in file", "path", path, "tensor", name)
	}

	return tensors, nil
}

// writeTensors writes tensors to path, picking the format by extension.
func writeTensors(path string, tensors []safetensors.Tensor, metadata map[string]string) error {
	if dump.IsDump(path) {
		return dump.WriteFile(path, tensors)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".safetensors" {
		return fmt.Errorf("unsupported output extension %q (expected .safetensors|%s)", ext, dump.Ext)
	}

	return safetensors.WriteFile(path, tensors, safetensors.EncodeOptions{Metadata: metadata})
}

// selectTensors keeps only the named tensors; an empty filter keeps all.
func selectTensors(tensors []*safetensors.Tensor, names []string) []*safetensors.Tensor {
	if len(names) == 0 {
		return tensors
	}

	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}

	out := make([]*safetensors.Tensor, 0, len(names))
	for _, t := range tensors {
		if _, ok := keep[t.Name]; ok {
			out = append(out, t)
		}
	}

	return out
}
