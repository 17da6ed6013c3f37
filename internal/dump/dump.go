// Package dump stores named activation tensors as Arrow IPC files.
//
// A dump holds one record batch with three columns: the tensor name, its
// shape and its row-major float32 data. One row per tensor.
package dump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/example/go-ttparity/internal/runtime/tensor"
	"github.com/example/go-ttparity/internal/safetensors"
)

const (
	colName  = "name"
	colShape = "shape"
	colData  = "data"

	formatKey     = "ttparity.format"
	formatVersion = "dump/v1"
)

// Ext is the file extension used for dumps.
const Ext = ".arrow"

// Schema returns the Arrow schema shared by every dump file.
func Schema() *arrow.Schema {
	md := arrow.NewMetadata([]string{formatKey}, []string{formatVersion})

	return arrow.NewSchema([]arrow.Field{
		{Name: colName, Type: arrow.BinaryTypes.String},
		{Name: colShape, Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
		{Name: colData, Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
	}, &md)
}

// IsDump reports whether path carries the dump extension.
func IsDump(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}

// WriteFile writes tensors to path as a single record batch.
func WriteFile(path string, tensors []safetensors.Tensor) error {
	if len(tensors) == 0 {
		return errors.New("dump: no tensors to write")
	}

	seen := make(map[string]struct{}, len(tensors))
	for _, t := range tensors {
		if strings.TrimSpace(t.Name) == "" {
			return errors.New("dump: tensor name must not be empty")
		}

		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("dump: duplicate tensor name %q", t.Name)
		}

		seen[t.Name] = struct{}{}

		want, err := tensor.ElemCount(t.Shape)
		if err != nil {
			return fmt.Errorf("dump: tensor %q: %w", t.Name, err)
		}

		if want != len(t.Data) {
			return fmt.Errorf("dump: tensor %q shape %v expects %d elements, got %d", t.Name, t.Shape, want, len(t.Data))
		}
	}

	return writeRecords(path, tensors)
}

// writeRecords encodes tensors without validating them.
func writeRecords(path string, tensors []safetensors.Tensor) error {
	mem := memory.NewGoAllocator()
	schema := Schema()

	rec := buildRecord(mem, schema, tensors)
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dump: create %s: %w", path, err)
	}

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		f.Close()
		return fmt.Errorf("dump: open writer: %w", err)
	}

	if err := w.Write(rec); err != nil {
		w.Close()
		f.Close()

		return fmt.Errorf("dump: write record: %w", err)
	}

	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("dump: close writer: %w", err)
	}

	return f.Close()
}

func buildRecord(mem memory.Allocator, schema *arrow.Schema, tensors []safetensors.Tensor) arrow.Record {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	names := b.Field(0).(*array.StringBuilder)
	shapes := b.Field(1).(*array.ListBuilder)
	shapeValues := shapes.ValueBuilder().(*array.Int64Builder)
	data := b.Field(2).(*array.ListBuilder)
	dataValues := data.ValueBuilder().(*array.Float32Builder)

	for _, t := range tensors {
		names.Append(t.Name)

		shapes.Append(true)
		shapeValues.AppendValues(t.Shape, nil)

		data.Append(true)
		dataValues.AppendValues(t.Data, nil)
	}

	return b.NewRecord()
}

// ReadFile loads every tensor stored in the dump at path, in file order.
func ReadFile(path string) ([]*safetensors.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dump: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("dump: open reader %s: %w", path, err)
	}
	defer r.Close()

	if err := checkSchema(r.Schema()); err != nil {
		return nil, fmt.Errorf("dump: %s: %w", path, err)
	}

	var out []*safetensors.Tensor

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("dump: read record %d: %w", i, err)
		}

		tensors, err := decodeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("dump: record %d: %w", i, err)
		}

		out = append(out, tensors...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("dump: %s holds no tensors", path)
	}

	return out, nil
}

func checkSchema(schema *arrow.Schema) error {
	want := Schema()
	if schema.NumFields() != want.NumFields() {
		return fmt.Errorf("expected %d columns, got %d", want.NumFields(), schema.NumFields())
	}

	for i, f := range want.Fields() {
		got := schema.Field(i)
		if got.Name != f.Name || !arrow.TypeEqual(got.Type, f.Type) {
			return fmt.Errorf("column %d is %s %s, want %s %s", i, got.Name, got.Type, f.Name, f.Type)
		}
	}

	md := schema.Metadata()
	if idx := md.FindKey(formatKey); idx >= 0 && md.Values()[idx] != formatVersion {
		return fmt.Errorf("unsupported dump format %q", md.Values()[idx])
	}

	return nil
}

func decodeRecord(rec arrow.Record) ([]*safetensors.Tensor, error) {
	names, ok := rec.Column(0).(*array.String)
	if !ok {
		return nil, fmt.Errorf("column %q has type %s", colName, rec.Column(0).DataType())
	}

	shapes, ok := rec.Column(1).(*array.List)
	if !ok {
		return nil, fmt.Errorf("column %q has type %s", colShape, rec.Column(1).DataType())
	}

	data, ok := rec.Column(2).(*array.List)
	if !ok {
		return nil, fmt.Errorf("column %q has type %s", colData, rec.Column(2).DataType())
	}

	shapeValues := shapes.ListValues().(*array.Int64).Int64Values()
	dataValues := data.ListValues().(*array.Float32).Float32Values()

	out := make([]*safetensors.Tensor, 0, int(rec.NumRows()))

	for i := 0; i < int(rec.NumRows()); i++ {
		if names.IsNull(i) || shapes.IsNull(i) || data.IsNull(i) {
			return nil, fmt.Errorf("row %d has null fields", i)
		}

		sStart, sEnd := shapes.ValueOffsets(i)
		dStart, dEnd := data.ValueOffsets(i)

		t := &safetensors.Tensor{
			Name:  names.Value(i),
			DType: "F32",
			Shape: append([]int64{}, shapeValues[sStart:sEnd]...),
			Data:  append([]float32(nil), dataValues[dStart:dEnd]...),
		}

		want, err := tensor.ElemCount(t.Shape)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", t.Name, err)
		}

		if want != len(t.Data) {
			return nil, fmt.Errorf("tensor %q shape %v expects %d elements, got %d", t.Name, t.Shape, want, len(t.Data))
		}

		out = append(out, t)
	}

	return out, nil
}
