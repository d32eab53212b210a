package stats

import (
	"perftest/internal/config"
)

// Report is the wire shape for one scenario's outcome: the resolved
// configuration that produced the run, then the aggregate metrics.
type Report struct {
	Config config.Resolved `json:"config"`

	Requests int64 `json:"request_count"`
	Failures int64 `json:"failure_count"`

	AvgResponseTimeMs    float64 `json:"avg_response_time_ms"`
	MedianResponseTimeMs float64 `json:"median_response_time_ms"`
	P95ResponseTimeMs    float64 `json:"p95_response_time_ms"`
	P99ResponseTimeMs    float64 `json:"p99_response_time_ms"`
	MaxResponseTimeMs    float64 `json:"max_response_time_ms"`

	RequestsPerSecond float64 `json:"requests_per_second"`
	FailuresPerSecond float64 `json:"failures_per_second"`

	Errors []ErrorEntry `json:"errors"`

	OverheadSummary OverheadSummary `json:"overhead_summary"`
}

// OverheadSummary describes the gateway-added latency signal. When the
// target never reported the signal only the count appears: zero stats would
// read as "no overhead", which is not what an absent signal means.
type OverheadSummary struct {
	Count    int64    `json:"count"`
	MinMs    *float64 `json:"min_ms,omitempty"`
	MaxMs    *float64 `json:"max_ms,omitempty"`
	AvgMs    *float64 `json:"avg_ms,omitempty"`
	MedianMs *float64 `json:"median_ms,omitempty"`
}

// Normalize folds one session's raw aggregate and the configuration that
// produced it into the response schema. It never fails: a degenerate raw
// aggregate simply yields a report full of zeros.
func Normalize(raw *Raw, cfg config.Resolved) *Report {
	rep := &Report{
		Config: cfg,

		Requests: raw.Requests,
		Failures: raw.Failures,

		AvgResponseTimeMs:    raw.AvgMs,
		MedianResponseTimeMs: raw.MedianMs,
		P95ResponseTimeMs:    raw.P95Ms,
		P99ResponseTimeMs:    raw.P99Ms,
		MaxResponseTimeMs:    raw.MaxMs,

		RequestsPerSecond: raw.RequestsPerSecond,
		FailuresPerSecond: raw.FailuresPerSecond,

		Errors: raw.Errors,

		OverheadSummary: OverheadSummary{Count: raw.OverheadCount},
	}
	if rep.Errors == nil {
		rep.Errors = []ErrorEntry{}
	}
	if raw.OverheadCount > 0 {
		minMs, maxMs, avgMs, medianMs := raw.OverheadMinMs, raw.OverheadMaxMs, raw.OverheadAvgMs, raw.OverheadMedianMs
		rep.OverheadSummary.MinMs = &minMs
		rep.OverheadSummary.MaxMs = &maxMs
		rep.OverheadSummary.AvgMs = &avgMs
		rep.OverheadSummary.MedianMs = &medianMs
	}
	return rep
}
