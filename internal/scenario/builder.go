package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Builder stamps load-generation requests for one scenario against one
// target host. Each call to New produces a fresh request with a unique
// prompt so gateway-side caches cannot serve repeats.
type Builder struct {
	name   Name
	url    string
	apiKey string
	model  string
}

// NewBuilder validates the target host up front. A host that cannot be
// parsed into an absolute URL means the session can never be started, which
// callers treat differently from requests failing mid-run.
func NewBuilder(name Name, host, apiKey, model string) (*Builder, error) {
	if name.Path() == "" {
		return nil, errors.Errorf("unsupported load test %q", name)
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid host %q", host)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid host %q: absolute URL with scheme required", host)
	}
	if model == "" {
		model = name.DefaultModel()
	}
	return &Builder{
		name:   name,
		url:    strings.TrimRight(base.String(), "/") + name.Path(),
		apiKey: apiKey,
		model:  model,
	}, nil
}

// New builds one request ready to send.
func (b *Builder) New() (*http.Request, error) {
	body, err := b.payload()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	return req, nil
}

func (b *Builder) payload() ([]byte, error) {
	id := uuid.New().String()
	switch b.name {
	case Chat:
		return json.Marshal(map[string]any{
			"model": b.model,
			"messages": []map[string]string{
				{"role": "user", "content": fmt.Sprintf("Why is the sky blue? (probe %s)", id)},
			},
		})
	case Responses:
		return json.Marshal(map[string]any{
			"model": b.model,
			"input": fmt.Sprintf("Why is the sky blue? (probe %s)", id),
		})
	case Embeddings:
		return json.Marshal(map[string]any{
			"model": b.model,
			"input": fmt.Sprintf("The quick brown fox jumps over the lazy dog. (%s)", id),
		})
	}
	return nil, errors.Errorf("unsupported load test %q", b.name)
}
