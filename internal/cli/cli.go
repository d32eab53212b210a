// Package cli renders headless run output: a startup header, a rewriting
// progress line fed by engine snapshots, and the final per-scenario summary.
package cli

import (
	"fmt"
	"strings"
	"time"

	"perftest/internal/config"
	"perftest/internal/engine"
	"perftest/internal/orchestrator"
	"perftest/internal/scenario"
	"perftest/internal/stats"
)

func PrintHeader(plans []config.Resolved) {
	fmt.Printf("\n🚀 STARTING LOAD-TEST RUN\n")
	fmt.Printf("======================================================================\n")
	for _, p := range plans {
		fmt.Printf("%-11s: %s | %d users @ %.1f/s | %ds | model %s\n",
			p.Scenario, p.Host, p.UserCount, p.SpawnRate, p.DurationSeconds, p.Model)
	}
	fmt.Printf("======================================================================\n\n")
}

// Watch consumes snapshots until the channel closes, rewriting a single
// progress line. Callers close the channel once the run returns.
func Watch(updates engine.UpdateChan, plans []config.Resolved) {
	total := time.Duration(0)
	order := make([]string, 0, len(plans))
	for _, p := range plans {
		order = append(order, string(p.Scenario))
		if d := time.Duration(p.DurationSeconds) * time.Second; d > total {
			total = d
		}
	}

	latest := make(map[string]engine.Snapshot, len(order))
	start := time.Now()

	for snap := range updates {
		latest[snap.Label] = snap

		elapsed := time.Since(start)
		pct := 1.0
		if total > 0 {
			pct = elapsed.Seconds() / total.Seconds()
			if pct > 1.0 {
				pct = 1.0
			}
		}

		parts := make([]string, 0, len(order))
		for _, name := range order {
			s := latest[name]
			parts = append(parts, fmt.Sprintf("%s %d/%d", name, s.Requests, s.Failures))
		}

		fmt.Printf("\r%s %3.0f%% | %s/%s | %s        ",
			progressBar(pct, 20), pct*100,
			elapsed.Round(time.Second), total,
			strings.Join(parts, " | "))
	}
	fmt.Println()
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// PrintAggregate prints the final summary, one block per scenario in the
// fixed catalog order.
func PrintAggregate(agg orchestrator.Aggregate, elapsed time.Duration) {
	fmt.Printf("\n📊 LOAD-TEST RESULTS (%s)\n", elapsed.Round(time.Second))

	names := make([]scenario.Name, 0, len(agg))
	for _, name := range scenario.All() {
		if _, ok := agg[name]; ok {
			names = append(names, name)
		}
	}

	for _, name := range names {
		outcome := agg[name]
		fmt.Printf("======================================================================\n")
		if outcome.Err != nil {
			fmt.Printf("❌ %s: %v\n", name, outcome.Err)
			continue
		}
		printReport(string(name), outcome.Report)
	}
	fmt.Printf("======================================================================\n")
}

func printReport(name string, r *stats.Report) {
	fmt.Printf("%s @ %s\n", name, r.Config.Host)
	fmt.Printf("Requests Sent  : %d\n", r.Requests)
	fmt.Printf("Failures       : %d\n", r.Failures)
	fmt.Printf("Actual RPS     : %.2f\n", r.RequestsPerSecond)
	fmt.Printf("\n⏱️  RESPONSE TIMES (ms)\n")
	fmt.Printf("   Avg : %.2f\n", r.AvgResponseTimeMs)
	fmt.Printf("   P50 : %.2f\n", r.MedianResponseTimeMs)
	fmt.Printf("   P95 : %.2f\n", r.P95ResponseTimeMs)
	fmt.Printf("   P99 : %.2f\n", r.P99ResponseTimeMs)
	fmt.Printf("   Max : %.2f\n", r.MaxResponseTimeMs)

	if o := r.OverheadSummary; o.Count > 0 {
		fmt.Printf("\n🔀 GATEWAY OVERHEAD (ms, %d samples)\n", o.Count)
		fmt.Printf("   Avg : %.2f | P50 : %.2f | Min : %.2f | Max : %.2f\n",
			*o.AvgMs, *o.MedianMs, *o.MinMs, *o.MaxMs)
	}

	if len(r.Errors) > 0 {
		fmt.Printf("\n❌ FAILURE SUMMARY\n")
		for _, e := range r.Errors {
			fmt.Printf("   %d x %s %s: %s\n", e.Occurrences, e.Method, e.Name, e.Error)
		}
	}
}
