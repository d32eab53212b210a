package orchestrator

import (
	"context"
	"time"

	"perftest/internal/config"
	"perftest/internal/engine"
	"perftest/internal/perferrors"
	"perftest/internal/scenario"
	"perftest/internal/stats"
)

// EngineRunner executes scenarios on a fresh engine session per call.
// Failing to construct the session (unparseable host, bad sizing) is an
// ExecutionError; once the session runs, request failures are ordinary
// counters inside the raw aggregate.
type EngineRunner struct {
	// APIKey is forwarded by every simulated user to the target host.
	APIKey string
	// Updates optionally receives live snapshots, for the terminal views.
	Updates engine.UpdateChan
}

func (r *EngineRunner) Run(ctx context.Context, cfg config.Resolved) (*stats.Raw, error) {
	builder, err := scenario.NewBuilder(cfg.Scenario, cfg.Host, r.APIKey, cfg.Model)
	if err != nil {
		return nil, &perferrors.ErrExecution{Scenario: string(cfg.Scenario), Message: err.Error()}
	}
	sess, err := engine.NewSession(engine.Config{
		Users:          cfg.UserCount,
		SpawnRate:      cfg.SpawnRate,
		Duration:       time.Duration(cfg.DurationSeconds) * time.Second,
		Factory:        builder,
		Label:          string(cfg.Scenario),
		OverheadHeader: scenario.OverheadHeader,
	}, r.Updates)
	if err != nil {
		return nil, &perferrors.ErrExecution{Scenario: string(cfg.Scenario), Message: err.Error()}
	}
	return sess.Run(ctx), nil
}
