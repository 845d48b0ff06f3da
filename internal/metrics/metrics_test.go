package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordAndStats(t *testing.T) {
	c := NewCollector(100)

	c.Record("latency", 1.0)
	c.Record("latency", 3.0)
	c.Record("latency", 2.0)

	stats := c.Stats("latency")

	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 3.0, stats.Max)
	assert.Equal(t, 2.0, stats.Avg)
}

func TestCollector_StatsEmptyMetric(t *testing.T) {
	c := NewCollector(100)

	assert.Equal(t, Stats{}, c.Stats("missing"))
}

func TestCollector_RetentionDropsOldest(t *testing.T) {
	c := NewCollector(3)

	for i := 1; i <= 5; i++ {
		c.Record("m", float64(i))
	}

	assert.Equal(t, []float64{3, 4, 5}, c.Values("m"))
}

func TestCollector_NonPositiveRetentionKeepsEverything(t *testing.T) {
	c := NewCollector(0)

	for i := 0; i < 50; i++ {
		c.Record("m", float64(i))
	}

	assert.Len(t, c.Values("m"), 50)
}

func TestCollector_ValuesReturnsCopy(t *testing.T) {
	c := NewCollector(10)
	c.Record("m", 1.0)

	values := c.Values("m")
	values[0] = 99.0

	assert.Equal(t, []float64{1.0}, c.Values("m"))
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(10)
	c.Record("m", 1.0)

	c.Reset()

	assert.Empty(t, c.Values("m"))
	assert.Equal(t, Stats{}, c.Stats("m"))
}

func TestCollector_Track(t *testing.T) {
	c := NewCollector(10)

	done := c.Track("elapsed")
	done()

	stats := c.Stats("elapsed")
	assert.Equal(t, 1, stats.Count)
	assert.GreaterOrEqual(t, stats.Min, 0.0)
}

func TestCollector_ConcurrentWriters(t *testing.T) {
	c := NewCollector(0)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				c.Record("m", 1.0)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1000, c.Stats("m").Count)
}
