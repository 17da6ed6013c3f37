package safetensors

import (
	"fmt"

	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// Tensor holds a single tensor loaded from, or destined for, a safetensors
// file. Data is always widened to float32; DType records the stored type.
type Tensor struct {
	Name  string
	DType string
	Shape []int64
	Data  []float32
}

// Host converts the tensor into a host array.
func (t *Tensor) Host() (*tensor.Tensor, error) {
	out, err := tensor.New(t.Data, t.Shape)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q: %w", t.Name, err)
	}

	return out, nil
}

// FromHost wraps a host array for writing.
func FromHost(name string, t *tensor.Tensor) Tensor {
	return Tensor{Name: name, DType: dtypeF32, Shape: t.Shape(), Data: t.Data()}
}

// Load reads every tensor of a safetensors file, sorted by (mapped) name.
func Load(path string, opts StoreOptions) ([]*Tensor, error) {
	store, err := OpenStore(path, opts)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.ReadAll()
}

// LoadNamed decodes only the named tensors of a safetensors file, in the
// order given. Names the file does not hold are returned in missing.
func LoadNamed(path string, opts StoreOptions, names []string) (tensors []*Tensor, missing []string, err error) {
	store, err := OpenStore(path, opts)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	seen := make(map[string]bool, len(names))

	for _, name := range names {
		if seen[name] {
			continue
		}

		seen[name] = true

		if !store.Has(name) {
			missing = append(missing, name)
			continue
		}

		t, err := store.Tensor(name)
		if err != nil {
			return nil, nil, err
		}

		tensors = append(tensors, t)
	}

	return tensors, missing, nil
}

// LoadHost reads one named tensor as a host array.
func LoadHost(path, name string) (*tensor.Tensor, error) {
	store, err := OpenStore(path, StoreOptions{})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	t, err := store.Tensor(name)
	if err != nil {
		return nil, err
	}

	return t.Host()
}

// Pair is a golden tensor matched by name with its calculated counterpart.
type Pair struct {
	Name       string
	Golden     *Tensor
	Calculated *Tensor
}

// ShapesMatch reports whether both sides share a shape.
func (p Pair) ShapesMatch() bool {
	return equalShape(p.Golden.Shape, p.Calculated.Shape)
}

// MatchPairs joins two tensor lists by name. Names present on only one side
// are returned separately, in input order.
func MatchPairs(golden, calculated []*Tensor) (pairs []Pair, goldenOnly, calculatedOnly []string) {
	byName := make(map[string]*Tensor, len(calculated))
	for _, t := range calculated {
		byName[t.Name] = t
	}

	seen := make(map[string]bool, len(golden))

	for _, g := range golden {
		seen[g.Name] = true

		c, ok := byName[g.Name]
		if !ok {
			goldenOnly = append(goldenOnly, g.Name)
			continue
		}

		pairs = append(pairs, Pair{Name: g.Name, Golden: g, Calculated: c})
	}

	for _, c := range calculated {
		if !seen[c.Name] {
			calculatedOnly = append(calculatedOnly, c.Name)
		}
	}

	return pairs, goldenOnly, calculatedOnly
}
