package config

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"perftest/internal/perferrors"
	"perftest/internal/scenario"
)

// Override carries request-supplied values for one scenario. Nil fields fall
// through to the next configuration layer.
type Override struct {
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
	UserCount       *int     `json:"user_count,omitempty"`
	SpawnRate       *float64 `json:"spawn_rate,omitempty"`
	Host            *string  `json:"host,omitempty"`
}

// Resolved is the effective configuration for one scenario run. It is
// echoed inside every scenario result, so the JSON tags are part of the wire
// schema; the scenario name stays out because results are already keyed by it.
type Resolved struct {
	Scenario        scenario.Name `json:"-"`
	DurationSeconds int           `json:"duration_seconds"`
	UserCount       int           `json:"user_count"`
	SpawnRate       float64       `json:"spawn_rate"`
	Host            string        `json:"host"`
	Model           string        `json:"model"`
}

// Resolve layers request override over scenario environment over global
// environment (host only) over built-in defaults and validates the outcome.
// Every offending field is collected so one pass reports them all.
func (e *Env) Resolve(name scenario.Name, o *Override) (Resolved, error) {
	se := e.Scenarios[name]

	r := Resolved{
		Scenario:        name,
		DurationSeconds: DefaultDurationSeconds,
		UserCount:       DefaultUserCount,
		SpawnRate:       DefaultSpawnRate,
		Model:           se.Model,
	}
	if r.Model == "" {
		r.Model = name.DefaultModel()
	}

	var errs *multierror.Error
	fieldErr := func(field, msg string) {
		errs = multierror.Append(errs, &perferrors.ErrConfiguration{
			Scenario: string(name),
			Field:    field,
			Message:  msg,
		})
	}

	switch {
	case o != nil && o.DurationSeconds != nil:
		r.DurationSeconds = *o.DurationSeconds
	case se.DurationSeconds != "":
		d, err := strconv.Atoi(se.DurationSeconds)
		if err != nil {
			fieldErr("duration_seconds", fmt.Sprintf("environment value %q is not an integer", se.DurationSeconds))
		} else {
			r.DurationSeconds = d
		}
	}
	if r.DurationSeconds <= 0 {
		fieldErr("duration_seconds", "must be a positive integer")
	}

	switch {
	case o != nil && o.UserCount != nil:
		r.UserCount = *o.UserCount
	case se.UserCount != "":
		u, err := strconv.Atoi(se.UserCount)
		if err != nil {
			fieldErr("user_count", fmt.Sprintf("environment value %q is not an integer", se.UserCount))
		} else {
			r.UserCount = u
		}
	}
	if r.UserCount <= 0 {
		fieldErr("user_count", "must be a positive integer")
	}

	switch {
	case o != nil && o.SpawnRate != nil:
		r.SpawnRate = *o.SpawnRate
	case se.SpawnRate != "":
		s, err := strconv.ParseFloat(se.SpawnRate, 64)
		if err != nil {
			fieldErr("spawn_rate", fmt.Sprintf("environment value %q is not a number", se.SpawnRate))
		} else {
			r.SpawnRate = s
		}
	}
	if r.SpawnRate <= 0 {
		fieldErr("spawn_rate", "must be a positive number")
	}

	// Host has one extra layer: the scenario's own environment beats the
	// global LOCUST_HOST, and there is no built-in default.
	switch {
	case o != nil && o.Host != nil && *o.Host != "":
		r.Host = *o.Host
	case se.Host != "":
		r.Host = se.Host
	case e.GlobalHost != "":
		r.Host = e.GlobalHost
	}
	if r.Host == "" {
		fieldErr("host", "no target host resolved from override or environment")
	}

	return r, errs.ErrorOrNil()
}

// MergeOverrides returns primary with every unset field filled from
// fallback. Either side may be nil.
func MergeOverrides(primary, fallback *Override) *Override {
	if primary == nil && fallback == nil {
		return nil
	}
	out := Override{}
	if primary != nil {
		out = *primary
	}
	if fallback == nil {
		return &out
	}
	if out.DurationSeconds == nil {
		out.DurationSeconds = fallback.DurationSeconds
	}
	if out.UserCount == nil {
		out.UserCount = fallback.UserCount
	}
	if out.SpawnRate == nil {
		out.SpawnRate = fallback.SpawnRate
	}
	if out.Host == nil {
		out.Host = fallback.Host
	}
	return &out
}
