// Package orchestrator coordinates load-test runs: it resolves each
// requested scenario, fans the runs out concurrently, enforces the
// single-flight discipline per scenario, and assembles the aggregate once
// every run has terminated.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"perftest/internal/config"
	"perftest/internal/perferrors"
	"perftest/internal/scenario"
	"perftest/internal/stats"
)

// graceTimeout pads each scenario deadline so a finishing session can drain
// in-flight requests before the hard stop.
const graceTimeout = 30 * time.Second

// Request names the scenarios to run, each with an optional override. A nil
// override means defaults.
type Request map[scenario.Name]*config.Override

// Scenarios returns the requested names in stable dispatch order.
func (r Request) Scenarios() []scenario.Name {
	out := make([]scenario.Name, 0, len(r))
	for _, n := range scenario.All() {
		if _, ok := r[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// AllScenarios is the request an empty trigger-all body stands for: every
// scenario with defaults.
func AllScenarios() Request {
	r := make(Request, len(scenario.All()))
	for _, n := range scenario.All() {
		r[n] = nil
	}
	return r
}

// Outcome is one scenario's report or the error that stopped it.
type Outcome struct {
	Report *stats.Report
	Err    error
}

// Aggregate maps each requested scenario to its outcome.
type Aggregate map[scenario.Name]Outcome

// Runner executes one resolved scenario to completion.
type Runner interface {
	Run(ctx context.Context, cfg config.Resolved) (*stats.Raw, error)
}

// Coordinator owns the per-scenario single-flight locks and fans runs out.
type Coordinator struct {
	env    *config.Env
	runner Runner

	locks map[scenario.Name]*sync.Mutex
}

func New(env *config.Env, runner Runner) *Coordinator {
	locks := make(map[scenario.Name]*sync.Mutex, len(scenario.All()))
	for _, n := range scenario.All() {
		locks[n] = &sync.Mutex{}
	}
	return &Coordinator{env: env, runner: runner, locks: locks}
}

// acquire claims every requested scenario or nothing. Claiming is
// all-or-nothing so a rejected request never leaves scenarios half-locked,
// and the fixed claim order keeps two overlapping requests from deadlocking.
func (c *Coordinator) acquire(names []scenario.Name) error {
	var held []scenario.Name
	var busy []string
	for _, n := range names {
		if c.locks[n].TryLock() {
			held = append(held, n)
		} else {
			busy = append(busy, string(n))
		}
	}
	if len(busy) > 0 {
		c.release(held)
		return &perferrors.ErrRunInFlight{Scenarios: busy}
	}
	return nil
}

func (c *Coordinator) release(names []scenario.Name) {
	for _, n := range names {
		c.locks[n].Unlock()
	}
}

// RunAll executes every requested scenario concurrently and assembles the
// aggregate once the last one terminates. Outcomes are independent: one
// scenario failing resolution or execution never cancels its siblings.
// The only whole-call failure is ErrRunInFlight.
func (c *Coordinator) RunAll(ctx context.Context, req Request) (Aggregate, error) {
	names := req.Scenarios()
	if err := c.acquire(names); err != nil {
		return nil, err
	}
	defer c.release(names)

	outcomes := make(Aggregate, len(names))
	resolved := make(map[scenario.Name]config.Resolved, len(names))
	expected := 0
	for _, n := range names {
		cfg, err := c.env.Resolve(n, req[n])
		if err != nil {
			outcomes[n] = Outcome{Err: err}
			continue
		}
		resolved[n] = cfg
		expected += cfg.DurationSeconds
	}

	runID := uuid.New().String()
	log.WithFields(log.Fields{
		"run_id":                    runID,
		"scenarios":                 names,
		"expected_duration_seconds": expected,
	}).Info("starting load-test run")

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for n, cfg := range resolved {
		g.Go(func() error {
			out := c.runScenario(gctx, runID, cfg)
			mu.Lock()
			outcomes[n] = out
			mu.Unlock()
			// Outcomes stay in the map instead of becoming group errors so
			// one scenario failing never cancels the rest.
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

// RunOne is RunAll restricted to exactly one scenario. Resolution and
// execution failures come back directly instead of packed in an aggregate.
func (c *Coordinator) RunOne(ctx context.Context, name scenario.Name, o *config.Override) (*stats.Report, error) {
	if err := c.acquire([]scenario.Name{name}); err != nil {
		return nil, err
	}
	defer c.release([]scenario.Name{name})

	cfg, err := c.env.Resolve(name, o)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log.WithFields(log.Fields{
		"run_id":                    runID,
		"scenarios":                 []scenario.Name{name},
		"expected_duration_seconds": cfg.DurationSeconds,
	}).Info("starting load-test run")

	out := c.runScenario(ctx, runID, cfg)
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Report, nil
}

// runScenario executes one resolved scenario under its deadline and maps
// any failure into the error taxonomy.
func (c *Coordinator) runScenario(ctx context.Context, runID string, cfg config.Resolved) Outcome {
	deadline := time.Duration(cfg.DurationSeconds)*time.Second + graceTimeout
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fields := log.Fields{
		"run_id":           runID,
		"scenario":         cfg.Scenario,
		"host":             cfg.Host,
		"users":            cfg.UserCount,
		"spawn_rate":       cfg.SpawnRate,
		"duration_seconds": cfg.DurationSeconds,
	}
	log.WithFields(fields).Info("scenario started")

	started := time.Now()
	raw, err := c.safeRun(runCtx, cfg)
	if err != nil {
		var execErr *perferrors.ErrExecution
		if !errors.As(err, &execErr) {
			err = &perferrors.ErrExecution{Scenario: string(cfg.Scenario), Message: err.Error()}
		}
		log.WithFields(fields).WithError(err).Error("scenario failed")
		return Outcome{Err: err}
	}

	log.WithFields(fields).WithFields(log.Fields{
		"requests": raw.Requests,
		"failures": raw.Failures,
		"elapsed":  time.Since(started).Round(time.Millisecond).String(),
	}).Info("scenario finished")
	return Outcome{Report: stats.Normalize(raw, cfg)}
}

// safeRun converts a runner panic into that scenario's execution error.
// Scenarios run in their own goroutines, so an unrecovered panic would take
// the whole process down rather than one aggregate entry.
func (c *Coordinator) safeRun(ctx context.Context, cfg config.Resolved) (raw *stats.Raw, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = &perferrors.ErrExecution{
				Scenario: string(cfg.Scenario),
				Message:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return c.runner.Run(ctx, cfg)
}
