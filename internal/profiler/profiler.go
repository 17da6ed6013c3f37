// Package profiler is a named-key stopwatch for timing stages of a parity
// run. A Profiler is created by the caller and passed to whatever needs it;
// it is not safe for concurrent use.
package profiler

import (
	"fmt"
	"io"
	"slices"
	"time"
)

// Stats holds aggregate timings for one key.
type Stats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

type Profiler struct {
	now      func() time.Time
	disabled bool
	starts   map[string]time.Time
	times    map[string][]time.Duration
	order    []string
}

// Option customizes a Profiler.
type Option func(*Profiler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Profiler) { p.now = now }
}

func New(opts ...Option) *Profiler {
	p := &Profiler{
		now:    time.Now,
		starts: make(map[string]time.Time),
		times:  make(map[string][]time.Duration),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Profiler) Enable()       { p.disabled = false }
func (p *Profiler) Disable()      { p.disabled = true }
func (p *Profiler) Enabled() bool { return !p.disabled }

// Start records the current time for key.
func (p *Profiler) Start(key string) {
	if p.disabled {
		return
	}

	p.starts[key] = p.now()
}

// End appends the time elapsed since Start(key), divided by count, to the
// samples of key. count is the number of iterations the interval covered;
// values below 1 count as 1. End without a matching Start is ignored.
func (p *Profiler) End(key string, count int) {
	if p.disabled {
		return
	}

	start, ok := p.starts[key]
	if !ok {
		return
	}

	if count < 1 {
		count = 1
	}

	if _, seen := p.times[key]; !seen {
		p.order = append(p.order, key)
	}

	p.times[key] = append(p.times[key], p.now().Sub(start)/time.Duration(count))
}

// Time runs fn between Start(key) and End(key, 1).
func (p *Profiler) Time(key string, fn func() error) error {
	p.Start(key)
	err := fn()
	p.End(key, 1)

	return err
}

// Get returns the mean recorded duration for key, or 0 if none.
func (p *Profiler) Get(key string) time.Duration {
	return p.Stats(key).Mean
}

// Stats returns aggregate timings for key. The zero Stats means no samples.
func (p *Profiler) Stats(key string) Stats {
	samples := p.times[key]
	if len(samples) == 0 {
		return Stats{}
	}

	s := Stats{Count: len(samples), Min: samples[0], Max: samples[0]}

	var sum time.Duration

	for _, d := range samples {
		s.Min = min(s.Min, d)
		s.Max = max(s.Max, d)
		sum += d
	}

	s.Mean = sum / time.Duration(len(samples))

	return s
}

// Samples returns a copy of the recorded durations for key.
func (p *Profiler) Samples(key string) []time.Duration {
	return slices.Clone(p.times[key])
}

// Keys returns the keys with samples, in first-recorded order.
func (p *Profiler) Keys() []string {
	return slices.Clone(p.order)
}

// Reset drops all samples and pending starts. The enabled flag is kept.
func (p *Profiler) Reset() {
	clear(p.starts)
	clear(p.times)
	p.order = p.order[:0]
}

// Print writes one "key: 0.123s" line per key with its mean duration.
func (p *Profiler) Print(w io.Writer) error {
	for _, key := range p.order {
		if _, err := fmt.Fprintf(w, "%s: %.3fs\n", key, p.Get(key).Seconds()); err != nil {
			return fmt.Errorf("profiler: print: %w", err)
		}
	}

	return nil
}
