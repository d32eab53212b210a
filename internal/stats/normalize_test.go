package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perftest/internal/config"
	"perftest/internal/scenario"
)

func testResolved() config.Resolved {
	return config.Resolved{
		Scenario:        scenario.Chat,
		DurationSeconds: 60,
		UserCount:       10,
		SpawnRate:       2.0,
		Host:            "http://gateway:4000",
		Model:           "gpt-3.5-turbo",
	}
}

func TestNormalizeEchoesConfig(t *testing.T) {
	raw := &Raw{Requests: 100, Failures: 5, P95Ms: 91.0, RequestsPerSecond: 10}

	rep := Normalize(raw, testResolved())

	assert.Equal(t, 60, rep.Config.DurationSeconds)
	assert.Equal(t, 10, rep.Config.UserCount)
	assert.Equal(t, 2.0, rep.Config.SpawnRate)
	assert.Equal(t, "http://gateway:4000", rep.Config.Host)
	assert.Equal(t, int64(100), rep.Requests)
	assert.Equal(t, int64(5), rep.Failures)
	assert.Equal(t, 91.0, rep.P95ResponseTimeMs)
	assert.NotNil(t, rep.Errors, "errors marshals as [] rather than null")
}

func TestNormalizeOverheadUnavailable(t *testing.T) {
	rep := Normalize(&Raw{Requests: 10}, testResolved())

	assert.Equal(t, int64(0), rep.OverheadSummary.Count)
	assert.Nil(t, rep.OverheadSummary.AvgMs)

	body, err := json.Marshal(rep.OverheadSummary)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 0}`, string(body), "absent signal reports count only, never zeros")
}

func TestNormalizeOverheadPresent(t *testing.T) {
	raw := &Raw{
		Requests:         10,
		OverheadCount:    9,
		OverheadMinMs:    1.5,
		OverheadMaxMs:    14.0,
		OverheadAvgMs:    6.2,
		OverheadMedianMs: 6.0,
	}

	rep := Normalize(raw, testResolved())

	require.NotNil(t, rep.OverheadSummary.MinMs)
	assert.Equal(t, 1.5, *rep.OverheadSummary.MinMs)
	assert.Equal(t, 14.0, *rep.OverheadSummary.MaxMs)
	assert.Equal(t, 6.2, *rep.OverheadSummary.AvgMs)
	assert.Equal(t, 6.0, *rep.OverheadSummary.MedianMs)
	assert.Equal(t, int64(9), rep.OverheadSummary.Count)
}

func TestReportJSONShape(t *testing.T) {
	c := NewCollector()
	c.Record(Sample{Method: "POST", Name: "/v1/chat/completions", Latency: 25 * time.Millisecond, Status: 200, OverheadMs: 3.0, HasOverhead: true})

	rep := Normalize(c.Raw(time.Second), testResolved())

	body, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	for _, key := range []string{
		"config",
		"request_count", "failure_count",
		"avg_response_time_ms", "median_response_time_ms",
		"p95_response_time_ms", "p99_response_time_ms", "max_response_time_ms",
		"requests_per_second", "failures_per_second",
		"errors", "overhead_summary",
	} {
		assert.Contains(t, decoded, key)
	}

	cfg, ok := decoded["config"].(map[string]any)
	require.True(t, ok, "config is a nested object")
	for _, key := range []string{"duration_seconds", "user_count", "spawn_rate", "host", "model"} {
		assert.Contains(t, cfg, key)
	}
	assert.NotContains(t, cfg, "Scenario", "scenario name rides on the result key, not the config echo")
}
