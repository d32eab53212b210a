package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"perftest/internal/config"
	"perftest/internal/orchestrator"
	"perftest/internal/perferrors"
	"perftest/internal/scenario"
)

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	env   *config.Env
	coord *orchestrator.Coordinator
}

func NewHandlers(env *config.Env, coord *orchestrator.Coordinator) *Handlers {
	return &Handlers{env: env, coord: coord}
}

// Health reports service liveness. It is deliberately outside the bearer
// gate so orchestrators can probe it without credentials.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "perftest",
	})
}

// RequireBearer rejects requests that do not carry the shared-secret bearer
// token. A server missing the secret fails every gated request with a 500
// rather than refusing to boot, so the health endpoint stays probeable.
func (h *Handlers) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := h.env.BearerToken
		if expected == "" {
			respondError(w, http.StatusInternalServerError, "Server is not configured with LOAD_TEST_BEARER_TOKEN.")
			return
		}

		supplied, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, "Invalid bearer token.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", &perferrors.ErrUnauthorized{Message: "Missing Authorization header."}
	}
	scheme, param, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") || param == "" {
		return "", &perferrors.ErrUnauthorized{Message: "Invalid authorization scheme."}
	}
	return strings.TrimSpace(param), nil
}

// RunAll triggers the scenarios named in the request body, or every
// supported scenario when the body is empty. The response always carries
// one entry per requested scenario; the status code reflects the worst
// outcome among them.
func (h *Handlers) RunAll(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		respondError(w, perferrors.CodeFromError(err), err.Error())
		return
	}

	agg, err := h.coord.RunAll(r.Context(), req)
	if err != nil {
		respondError(w, perferrors.CodeFromError(err), err.Error())
		return
	}

	results := make(map[string]any, len(agg))
	for name, outcome := range agg {
		if outcome.Err != nil {
			results[name.String()] = map[string]any{"error": errorBody(outcome.Err)}
			continue
		}
		results[name.String()] = outcome.Report
	}
	respondJSON(w, aggregateStatus(agg), map[string]any{"results": results})
}

// RunOne triggers a single scenario named in the URL path.
func (h *Handlers) RunOne(w http.ResponseWriter, r *http.Request) {
	name, ok := scenarioFromPath(w, r)
	if !ok {
		return
	}

	override, err := decodeOverride(r)
	if err != nil {
		respondError(w, perferrors.CodeFromError(err), err.Error())
		return
	}

	report, err := h.coord.RunOne(r.Context(), name, override)
	if err != nil {
		respondError(w, perferrors.CodeFromError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"test":   name.String(),
		"result": report,
	})
}

// RunWithIntensity triggers a single scenario with a named preset applied
// underneath any body overrides. The preset is validated before the
// scenario name, so an unknown preset on an unknown scenario reports 400.
func (h *Handlers) RunWithIntensity(w http.ResponseWriter, r *http.Request) {
	level := chi.URLParam(r, "intensity")
	preset, ok := config.IntensityLevel(level)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf(
			"Unsupported intensity level '%s'. Supported levels: %s", level, config.IntensityLevelNames()))
		return
	}

	name, ok := scenarioFromPath(w, r)
	if !ok {
		return
	}

	override, err := decodeOverride(r)
	if err != nil {
		respondError(w, perferrors.CodeFromError(err), err.Error())
		return
	}
	merged := config.MergeOverrides(override, preset)

	report, err := h.coord.RunOne(r.Context(), name, merged)
	if err != nil {
		respondError(w, perferrors.CodeFromError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"test":            name.String(),
		"intensity_level": level,
		"configuration":   configurationBody(merged),
		"result":          report,
	})
}

// scenarioFromPath parses the {test} URL parameter, writing a 404 and
// returning ok=false when it names no supported scenario.
func scenarioFromPath(w http.ResponseWriter, r *http.Request) (scenario.Name, bool) {
	raw := chi.URLParam(r, "test")
	name, err := scenario.Parse(raw)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf(
			"Unsupported load test '%s'. Supported tests: %s", raw, scenario.Supported()))
		return "", false
	}
	return name, true
}

// decodeRunRequest reads the trigger-all body. An absent or null body means
// every supported scenario with default settings; a body naming scenarios
// restricts the run to exactly those, where a null override keeps defaults.
func decodeRunRequest(r *http.Request) (orchestrator.Request, error) {
	raw, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return orchestrator.AllScenarios(), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, invalidBody(err)
	}
	if len(fields) == 0 {
		return orchestrator.AllScenarios(), nil
	}

	req := make(orchestrator.Request, len(fields))
	for key, value := range fields {
		name, err := scenario.Parse(key)
		if err != nil {
			return nil, &perferrors.ErrBadRequest{Message: fmt.Sprintf(
				"Unsupported load test '%s'. Supported tests: %s", key, scenario.Supported())}
		}
		override, err := decodeOverrideJSON(value)
		if err != nil {
			return nil, invalidBody(err)
		}
		req[name] = override
	}
	return req, nil
}

// decodeOverride reads an optional single-scenario override body.
func decodeOverride(r *http.Request) (*config.Override, error) {
	raw, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	override, err := decodeOverrideJSON(raw)
	if err != nil {
		return nil, invalidBody(err)
	}
	return override, nil
}

func invalidBody(err error) error {
	return &perferrors.ErrBadRequest{Message: fmt.Sprintf("Invalid request body: %v", err)}
}

func decodeOverrideJSON(raw json.RawMessage) (*config.Override, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var override config.Override
	if err := json.Unmarshal(raw, &override); err != nil {
		return nil, err
	}
	return &override, nil
}

// readBody slurps the request body, mapping an empty or all-whitespace body
// to nil so callers can treat "no body" and "null" alike.
func readBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	return body, nil
}

// aggregateStatus picks the response code for a fan-out run: configuration
// rejections outrank execution failures, which outrank success.
func aggregateStatus(agg orchestrator.Aggregate) int {
	status := http.StatusOK
	for _, outcome := range agg {
		switch perferrors.CodeFromError(outcome.Err) {
		case http.StatusBadRequest:
			return http.StatusBadRequest
		case http.StatusOK:
		default:
			status = http.StatusInternalServerError
		}
	}
	return status
}

// errorBody renders one scenario's failure for the fan-out response.
func errorBody(err error) map[string]any {
	body := map[string]any{"message": err.Error()}

	var cfgErr *perferrors.ErrConfiguration
	var execErr *perferrors.ErrExecution
	switch {
	case errors.As(err, &cfgErr):
		body["type"] = "configuration_error"
		if cfgErr.Field != "" {
			body["field"] = cfgErr.Field
		}
	case errors.As(err, &execErr):
		body["type"] = "execution_error"
	default:
		body["type"] = "internal_error"
	}
	return body
}

// configurationBody echoes the merged preset the way it was applied, with
// explicit nulls for fields no layer set.
func configurationBody(o *config.Override) map[string]any {
	if o == nil {
		o = &config.Override{}
	}
	return map[string]any{
		"duration_seconds": o.DurationSeconds,
		"user_count":       o.UserCount,
		"spawn_rate":       o.SpawnRate,
		"host":             o.Host,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}
