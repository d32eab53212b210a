package stats

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsSuccessesAndFailures(t *testing.T) {
	c := NewCollector()

	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 20 * time.Millisecond, Status: 200})
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 30 * time.Millisecond, Status: 200})
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 40 * time.Millisecond, Status: 500})
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Err: errors.New("dial tcp: connection refused")})

	assert.Equal(t, uint64(4), c.RequestCount())
	assert.Equal(t, uint64(2), c.FailureCount())
}

func TestCollectorAccumulatesBytes(t *testing.T) {
	c := NewCollector()

	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: time.Millisecond, Status: 200, Bytes: 512})
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: time.Millisecond, Status: 200, Bytes: 256})
	// Unknown content length reports -1; it must not wrap the counter.
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: time.Millisecond, Status: 200, Bytes: -1})

	assert.Equal(t, uint64(768), c.BytesCount())
}

func TestCollectorErrorRollup(t *testing.T) {
	c := NewCollector()

	for i := 0; i < 3; i++ {
		c.Record(Sample{Method: "POST", Name: "/v1/embeddings", Latency: time.Millisecond, Status: 429})
	}
	c.Record(Sample{Method: "POST", Name: "/v1/embeddings", Latency: time.Millisecond, Status: 500})

	entries := c.ErrorEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].Occurrences, "most frequent first")
	assert.Equal(t, "HTTP 429 Too Many Requests", entries[0].Error)
	assert.Equal(t, "HTTP 500 Internal Server Error", entries[1].Error)
	assert.Equal(t, "POST", entries[0].Method)
	assert.Equal(t, "/v1/embeddings", entries[0].Name)
}

func TestRawPercentiles(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.Record(Sample{Method: "POST", Name: "/v1/responses", Latency: time.Duration(i) * time.Millisecond, Status: 200})
	}

	raw := c.Raw(10 * time.Second)

	assert.Equal(t, int64(100), raw.Requests)
	assert.Equal(t, int64(0), raw.Failures)
	assert.InDelta(t, 50.0, raw.MedianMs, 1.0)
	assert.InDelta(t, 95.0, raw.P95Ms, 1.0)
	assert.InDelta(t, 99.0, raw.P99Ms, 1.0)
	assert.InDelta(t, 100.0, raw.MaxMs, 1.0)
	assert.InDelta(t, 50.5, raw.AvgMs, 1.0)
	assert.InDelta(t, 10.0, raw.RequestsPerSecond, 0.01)
	assert.Zero(t, raw.FailuresPerSecond)
	assert.Empty(t, raw.Errors)
}

func TestRawWithZeroRequests(t *testing.T) {
	c := NewCollector()
	raw := c.Raw(time.Second)

	assert.Zero(t, raw.Requests)
	assert.Zero(t, raw.Failures)
	assert.Zero(t, raw.MedianMs)
	assert.Zero(t, raw.RequestsPerSecond)
	assert.Zero(t, raw.OverheadCount)
}

func TestCollectorOverheadSignal(t *testing.T) {
	c := NewCollector()
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 10 * time.Millisecond, Status: 200, OverheadMs: 2.0, HasOverhead: true})
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 10 * time.Millisecond, Status: 200, OverheadMs: 4.0, HasOverhead: true})
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 10 * time.Millisecond, Status: 200})

	raw := c.Raw(time.Second)

	assert.Equal(t, int64(2), raw.OverheadCount, "samples without the signal are not counted")
	assert.InDelta(t, 2.0, raw.OverheadMinMs, 0.1)
	assert.InDelta(t, 4.0, raw.OverheadMaxMs, 0.1)
	assert.InDelta(t, 3.0, raw.OverheadAvgMs, 0.1)
}
