// Package config owns the load-test configuration surface: the environment
// variables read once at startup and the layered per-scenario resolution
// applied to each run request.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"perftest/internal/scenario"
)

// Built-in defaults for any scenario field no other layer supplies. There is
// no default host: a run without a resolvable target is a configuration
// error, not a guess.
const (
	DefaultDurationSeconds = 60
	DefaultUserCount       = 1
	DefaultSpawnRate       = 1.0
)

// Env is the configuration captured from the process environment at
// startup. It is loaded once and treated as immutable afterwards; requests
// never see environment changes made while the process runs.
type Env struct {
	// APIKey is forwarded by simulated users to the target host
	// (LOCUST_API_KEY).
	APIKey string
	// BearerToken is the secret the API expects from callers
	// (LOAD_TEST_BEARER_TOKEN). May be empty; the gate reports the server
	// as unconfigured per request rather than refusing to start.
	BearerToken string
	// GlobalHost is the host fallback shared by all scenarios (LOCUST_HOST).
	GlobalHost string

	Scenarios map[scenario.Name]ScenarioEnv
}

// ScenarioEnv is one scenario's slice of the environment, kept as raw
// strings so a malformed value surfaces as a configuration error on the run
// that needs it.
type ScenarioEnv struct {
	DurationSeconds string
	UserCount       string
	SpawnRate       string
	Host            string
	Model           string
}

// LoadEnv reads the documented environment surface once. A .env file in the
// working directory is honored, with real environment variables taking
// precedence, so secrets can live in .env locally and in real env vars on a
// deployed host.
func LoadEnv() (*Env, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	env := &Env{
		APIKey:      v.GetString("LOCUST_API_KEY"),
		BearerToken: v.GetString("LOAD_TEST_BEARER_TOKEN"),
		GlobalHost:  v.GetString("LOCUST_HOST"),
		Scenarios:   make(map[scenario.Name]ScenarioEnv, len(scenario.All())),
	}
	for _, name := range scenario.All() {
		prefix := "LOCUST_" + strings.ToUpper(string(name)) + "_"
		env.Scenarios[name] = ScenarioEnv{
			DurationSeconds: v.GetString(prefix + "DURATION_SECONDS"),
			UserCount:       v.GetString(prefix + "USER_COUNT"),
			SpawnRate:       v.GetString(prefix + "SPAWN_RATE"),
			Host:            v.GetString(prefix + "HOST"),
			Model:           v.GetString(prefix + "MODEL"),
		}
	}

	if env.APIKey == "" {
		return nil, errors.New("LOCUST_API_KEY environment variable is required")
	}
	return env, nil
}
