// Package stats collects per-request samples from a load-generation session
// and normalizes them into the response schema.
package stats

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Sample is one completed request observation.
type Sample struct {
	Method  string
	Name    string // request label, the target path
	Latency time.Duration
	Status  int
	Bytes   int64
	Err     error

	// OverheadMs is the gateway-reported added latency for this request.
	// HasOverhead distinguishes a missing signal from a zero one.
	OverheadMs  float64
	HasOverhead bool
}

// ErrorEntry aggregates identical failures across a run.
type ErrorEntry struct {
	Method      string `json:"method"`
	Name        string `json:"name"`
	Occurrences int64  `json:"occurrences"`
	Error       string `json:"error"`
}

// Collector holds real-time aggregated metrics for one session. Counters
// are atomics and histograms are mutex-wrapped, so virtual users record
// concurrently without coordination.
type Collector struct {
	Requests uint64
	Failures uint64
	Bytes    uint64

	// Latency histograms (microseconds)
	Latency  *SafeHistogram
	Overhead *SafeHistogram

	mu     sync.Mutex
	errors map[string]*ErrorEntry
}

func NewCollector() *Collector {
	return &Collector{
		Latency:  NewSafeHistogram(),
		Overhead: NewSafeHistogram(),
		errors:   make(map[string]*ErrorEntry),
	}
}

// Record folds one sample into the counters. A sample fails when its
// transport errored or the status is 400 or above; failed samples still
// contribute their latency, matching how the engine's reports count them.
func (c *Collector) Record(s Sample) {
	atomic.AddUint64(&c.Requests, 1)
	if s.Bytes > 0 {
		atomic.AddUint64(&c.Bytes, uint64(s.Bytes))
	}

	us := s.Latency.Microseconds()
	if us < 1 {
		us = 1
	}
	c.Latency.RecordValue(us)

	if s.HasOverhead {
		ous := int64(s.OverheadMs * 1000)
		if ous < 1 {
			ous = 1
		}
		c.Overhead.RecordValue(ous)
	}

	desc := ""
	switch {
	case s.Err != nil:
		desc = s.Err.Error()
	case s.Status >= 400:
		desc = fmt.Sprintf("HTTP %d %s", s.Status, http.StatusText(s.Status))
	default:
		return
	}

	atomic.AddUint64(&c.Failures, 1)
	key := s.Method + "|" + s.Name + "|" + desc
	c.mu.Lock()
	entry, ok := c.errors[key]
	if !ok {
		entry = &ErrorEntry{Method: s.Method, Name: s.Name, Error: desc}
		c.errors[key] = entry
	}
	entry.Occurrences++
	c.mu.Unlock()
}

// ErrorEntries returns the failure rollup, most frequent first.
func (c *Collector) ErrorEntries() []ErrorEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ErrorEntry, 0, len(c.errors))
	for _, e := range c.errors {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Error < out[j].Error
	})
	return out
}

func (c *Collector) RequestCount() uint64 {
	return atomic.LoadUint64(&c.Requests)
}

func (c *Collector) FailureCount() uint64 {
	return atomic.LoadUint64(&c.Failures)
}

func (c *Collector) BytesCount() uint64 {
	return atomic.LoadUint64(&c.Bytes)
}

func (c *Collector) P50Ms() float64 {
	return float64(c.Latency.ValueAtQuantile(50)) / 1000.0
}

func (c *Collector) P95Ms() float64 {
	return float64(c.Latency.ValueAtQuantile(95)) / 1000.0
}

func (c *Collector) P99Ms() float64 {
	return float64(c.Latency.ValueAtQuantile(99)) / 1000.0
}

func (c *Collector) MaxMs() float64 {
	return float64(c.Latency.Max()) / 1000.0
}

// Raw is the aggregate an engine session reports once it stops.
type Raw struct {
	Requests int64
	Failures int64
	Elapsed  time.Duration

	AvgMs    float64
	MedianMs float64
	P95Ms    float64
	P99Ms    float64
	MaxMs    float64

	RequestsPerSecond float64
	FailuresPerSecond float64

	Errors []ErrorEntry

	// Overhead signal stats. OverheadCount of zero means the target never
	// reported the signal; the remaining fields are meaningless then.
	OverheadCount    int64
	OverheadMinMs    float64
	OverheadMaxMs    float64
	OverheadAvgMs    float64
	OverheadMedianMs float64
}

// Raw snapshots the counters into the final aggregate for a run that took
// elapsed wall-clock time. A session with zero completed requests yields a
// degenerate but well-formed aggregate, not an error.
func (c *Collector) Raw(elapsed time.Duration) *Raw {
	r := &Raw{
		Requests: int64(atomic.LoadUint64(&c.Requests)),
		Failures: int64(atomic.LoadUint64(&c.Failures)),
		Elapsed:  elapsed,
		Errors:   c.ErrorEntries(),
	}
	if elapsed > 0 {
		r.RequestsPerSecond = float64(r.Requests) / elapsed.Seconds()
		r.FailuresPerSecond = float64(r.Failures) / elapsed.Seconds()
	}
	if c.Latency.TotalCount() > 0 {
		r.AvgMs = c.Latency.Mean() / 1000.0
		r.MedianMs = float64(c.Latency.ValueAtQuantile(50)) / 1000.0
		r.P95Ms = float64(c.Latency.ValueAtQuantile(95)) / 1000.0
		r.P99Ms = float64(c.Latency.ValueAtQuantile(99)) / 1000.0
		r.MaxMs = float64(c.Latency.Max()) / 1000.0
	}
	if n := c.Overhead.TotalCount(); n > 0 {
		r.OverheadCount = n
		r.OverheadMinMs = float64(c.Overhead.Min()) / 1000.0
		r.OverheadMaxMs = float64(c.Overhead.Max()) / 1000.0
		r.OverheadAvgMs = c.Overhead.Mean() / 1000.0
		r.OverheadMedianMs = float64(c.Overhead.ValueAtQuantile(50)) / 1000.0
	}
	return r
}
