// Package perferrors contains the error types returned by load-test
// orchestration code. The API layer looks for the types defined in this file
// and sets the HTTP status code accordingly.
//
// If multiple configuration fields are invalid for one scenario, resolution
// returns an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates the individual
// errors; CodeFromError sees through it.
package perferrors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnauthorized occurs when the caller's bearer token is missing or does
// not match the operator secret. No scenario work happens after it.
type ErrUnauthorized struct {
	Message string
}

func (err *ErrUnauthorized) Error() string {
	if err.Message == "" {
		return "unauthorized"
	}
	return err.Message
}

// ErrBadRequest occurs when a request body cannot be decoded or names an
// unsupported load test. The message is returned to the caller verbatim.
type ErrBadRequest struct {
	Message string
}

func (err *ErrBadRequest) Error() string {
	return err.Message
}

// ErrConfiguration occurs when a scenario field is still missing or invalid
// after request override, scenario environment, global environment, and
// built-in default have all been consulted.
type ErrConfiguration struct {
	Scenario string // Scenario the field belongs to, e.g., "chat"
	Field    string // Offending field, e.g., "duration_seconds"
	Message  string
}

func (err *ErrConfiguration) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("%s: invalid value for field %q", err.Scenario, err.Field)
	}
	return fmt.Sprintf("%s: invalid value for field %q; %s", err.Scenario, err.Field, err.Message)
}

// ErrExecution occurs when an engine session could not be started at all or
// died outside normal stats reporting. Request failures observed during a
// run are ordinary failure counts, not ErrExecution.
type ErrExecution struct {
	Scenario string
	Message  string
}

func (err *ErrExecution) Error() string {
	return fmt.Sprintf("failed to execute %s load test: %s", err.Scenario, err.Message)
}

// ErrRunInFlight occurs when a run is requested while another run still
// holds one or more of the requested scenarios.
type ErrRunInFlight struct {
	Scenarios []string
}

func (err *ErrRunInFlight) Error() string {
	return fmt.Sprintf("a load test is already in flight for: %s", strings.Join(err.Scenarios, ", "))
}

// CodeFromError maps error types to HTTP status codes.
// Uses errors.As to look through the chain of errors, as opposed to just
// considering the topmost error in the chain.
func CodeFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	{
		var e *ErrUnauthorized
		if errors.As(err, &e) {
			return http.StatusUnauthorized
		}
	}
	{
		var e *ErrRunInFlight
		if errors.As(err, &e) {
			return http.StatusConflict
		}
	}
	{
		var e *ErrBadRequest
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e *ErrConfiguration
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e *ErrExecution
		if errors.As(err, &e) {
			return http.StatusInternalServerError
		}
	}

	return http.StatusInternalServerError
}
