// Package metrics provides an append-only in-process metrics collector used to
// time and count pipeline stages. Samples are held in memory under a single
// lock; there is no export path.
package metrics

import (
	"sync"
	"time"
)

// Stats summarizes the recorded samples of one metric.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Collector records named metric samples. Safe for concurrent writers.
type Collector struct {
	mu        sync.Mutex
	samples   map[string][]float64
	retention int
}

// NewCollector creates a collector keeping at most retention samples per
// metric. A non-positive retention keeps everything.
func NewCollector(retention int) *Collector {
	return &Collector{
		samples:   make(map[string][]float64),
		retention: retention,
	}
}

// Record appends a sample for the named metric.
func (c *Collector) Record(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := append(c.samples[name], value)
	if c.retention > 0 && len(values) > c.retention {
		values = values[len(values)-c.retention:]
	}

	c.samples[name] = values
}

// Values returns a copy of all recorded samples for the named metric.
func (c *Collector) Values(name string) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := c.samples[name]
	out := make([]float64, len(values))
	copy(out, values)

	return out
}

// Stats returns summary statistics for the named metric. A metric with no
// samples yields a zero Stats.
func (c *Collector) Stats(name string) Stats {
	values := c.Values(name)
	if len(values) == 0 {
		return Stats{}
	}

	stats := Stats{
		Count: len(values),
		Min:   values[0],
		Max:   values[0],
	}

	sum := 0.0
	for _, v := range values {
		if v < stats.Min {
			stats.Min = v
		}

		if v > stats.Max {
			stats.Max = v
		}

		sum += v
	}

	stats.Avg = sum / float64(len(values))

	return stats
}

// Track starts a timer for the named metric and returns a function that
// records the elapsed seconds when called. Intended for defer.
func (c *Collector) Track(name string) func() {
	start := time.Now()

	return func() {
		c.Record(name, time.Since(start).Seconds())
	}
}

// Reset discards all recorded samples.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = make(map[string][]float64)
}
