package scenario

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Name identifies one of the fixed load-test scenarios.
type Name string

const (
	Chat       Name = "chat"
	Responses  Name = "responses"
	Embeddings Name = "embeddings"
)

// OverheadHeader is the response header gateways use to report the latency
// they added on top of the model backend, in milliseconds.
const OverheadHeader = "x-litellm-overhead-duration-ms"

// All returns the supported scenarios in stable dispatch order.
func All() []Name {
	return []Name{Chat, Responses, Embeddings}
}

// Parse validates a raw scenario name from a URL path or request body.
func Parse(s string) (Name, error) {
	switch Name(s) {
	case Chat, Responses, Embeddings:
		return Name(s), nil
	}
	return "", errors.Errorf("unsupported load test %q", s)
}

// Supported lists the scenario names alphabetically for error messages.
func Supported() string {
	names := make([]string, 0, len(All()))
	for _, n := range All() {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (n Name) String() string { return string(n) }

// Path returns the OpenAI-compatible API path the scenario exercises.
func (n Name) Path() string {
	switch n {
	case Chat:
		return "/v1/chat/completions"
	case Responses:
		return "/v1/responses"
	case Embeddings:
		return "/v1/embeddings"
	}
	return ""
}

// DefaultModel is the model requested when no per-scenario model is
// configured.
func (n Name) DefaultModel() string {
	if n == Embeddings {
		return "text-embedding-ada-002"
	}
	return "gpt-3.5-turbo"
}
