package parity

import (
	"fmt"
	"math"

	"github.com/example/go-ttparity/internal/device"
	"github.com/example/go-ttparity/internal/runtime/tensor"
)

// CloseOptions are the thresholds of IsClose. An element passes when any one
// of the absolute, relative or magnitude conditions holds.
type CloseOptions struct {
	RelTol         float64 `json:"rel_tol"`
	AbsTol         float64 `json:"abs_tol"`
	MaxMag         float64 `json:"max_mag"`
	MaxMagFraction float64 `json:"max_mag_fraction"`
}

func DefaultCloseOptions() CloseOptions {
	return CloseOptions{
		RelTol:         1e-2,
		AbsTol:         1e-2,
		MaxMag:         2.0,
		MaxMagFraction: 0.02,
	}
}

// Mismatch describes the first element that failed IsClose.
type Mismatch struct {
	Index    int     `json:"index"`
	Coord    []int64 `json:"coord"`
	A        float64 `json:"a"`
	B        float64 `json:"b"`
	RelDiff1 float64 `json:"rel_diff1"`
	RelDiff2 float64 `json:"rel_diff2"`
	AbsDiff  float64 `json:"abs_diff"`

	// Tile coordinates assume the array is stored as 32x32 tiles over its
	// last two dims. Valid only when Tiled is set.
	Tiled   bool `json:"tiled"`
	TileRow int  `json:"tile_row"`
	TileCol int  `json:"tile_col"`
	Row     int  `json:"row"`
	Col     int  `json:"col"`
}

func (m *Mismatch) String() string {
	s := fmt.Sprintf(
		"isclose mismatch at index=%d: a=%s b=%s reldiff1=%s reldiff2=%s absdiff=%s",
		m.Index,
		formatFloat(m.A),
		formatFloat(m.B),
		formatFloat(m.RelDiff1),
		formatFloat(m.RelDiff2),
		formatFloat(m.AbsDiff),
	)
	if m.Tiled {
		s += fmt.Sprintf(" (HTWT=%d %d HW=%d %d)", m.TileRow, m.TileCol, m.Row, m.Col)
	}

	return s
}

// CloseReport is the outcome of IsClose.
type CloseReport struct {
	Passed      bool
	MaxAbsDelta float64
	MaxRelDelta float64
	Mismatch    *Mismatch
}

// Message summarizes the report in the "Max ATOL Delta" form shared with
// CompAllclose, followed by the first mismatch if any.
func (r CloseReport) Message() string {
	msg := deltaMessage(r.MaxAbsDelta, r.MaxRelDelta)
	if r.Mismatch != nil {
		msg += ", " + r.Mismatch.String()
	}

	return msg
}

// IsClose checks a against b element-wise. b is treated as the reference:
// the first relative difference is |a|/|b| - 1 and is not symmetric in a
// and b. The second, (|a|+1)/(|b|+1) - 1, stays finite when b is zero.
func IsClose(a, b *tensor.Tensor, opts CloseOptions) (CloseReport, error) {
	if err := tensor.CheckSameShape("parity: isclose", a, b); err != nil {
		return CloseReport{}, err
	}

	ad, bd := a.RawData(), b.RawData()
	report := CloseReport{Passed: true}
	magLimit := opts.MaxMag * opts.MaxMagFraction

	for i := range ad {
		x, y := float64(ad[i]), float64(bd[i])
		absDiff := math.Abs(x - y)
		rel1 := relDiff(x, y)
		rel2 := (math.Abs(x)+1)/(math.Abs(y)+1) - 1

		report.MaxAbsDelta = maxPropagateNaN(report.MaxAbsDelta, absDiff)
		report.MaxRelDelta = maxPropagateNaN(report.MaxRelDelta, relDelta(absDiff, y))

		ok := absDiff < opts.AbsTol ||
			math.Abs(rel1) < opts.RelTol ||
			math.Abs(rel2) < opts.RelTol ||
			absDiff < magLimit
		if ok || report.Mismatch != nil {
			continue
		}

		report.Passed = false
		report.Mismatch = newMismatch(a, i, x, y, rel1, rel2, absDiff)
	}

	return report, nil
}

// relDiff is |x|/|y| - 1. A zero y yields +Inf, or NaN when x is zero too;
// either value fails every threshold comparison.
func relDiff(x, y float64) float64 {
	ay := math.Abs(y)
	if ay == 0 {
		if x == 0 {
			return math.NaN()
		}

		return math.Inf(1)
	}

	return math.Abs(x)/ay - 1
}

func newMismatch(t *tensor.Tensor, index int, x, y, rel1, rel2, absDiff float64) *Mismatch {
	m := &Mismatch{
		Index:    index,
		A:        x,
		B:        y,
		RelDiff1: rel1,
		RelDiff2: rel2,
		AbsDiff:  absDiff,
	}

	if coord, err := t.Coord(index); err == nil {
		m.Coord = coord
	}

	shape := t.Shape()
	if len(shape) >= 2 {
		tilesW := int(shape[len(shape)-1]) / device.TileSize
		if tilesW > 0 {
			const tileElems = device.TileSize * device.TileSize

			hwt := index / tileElems
			m.Tiled = true
			m.TileCol = hwt % tilesW
			m.TileRow = hwt / tilesW
			m.Row = (index % tileElems) / device.TileSize
			m.Col = (index % tileElems) % device.TileSize
		}
	}

	return m
}

// relDelta is absDiff relative to the reference value. Identical elements
// have no relative delta even when the reference is zero.
func relDelta(absDiff, ref float64) float64 {
	if absDiff == 0 {
		return 0
	}

	return absDiff / math.Abs(ref)
}

func maxPropagateNaN(cur, v float64) float64 {
	if math.IsNaN(cur) || math.IsNaN(v) {
		return math.NaN()
	}

	return math.Max(cur, v)
}

func deltaMessage(absDelta, relDelta float64) string {
	return fmt.Sprintf("Max ATOL Delta: %s, Max RTOL Delta: %s", formatFloat(absDelta), formatFloat(relDelta))
}
