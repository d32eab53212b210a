package scenario

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, name := range []string{"chat", "responses", "embeddings"} {
		got, err := Parse(name)
		require.NoError(t, err)
		assert.Equal(t, name, got.String())
	}

	_, err := Parse("images")
	assert.Error(t, err)

	// Names are exact, no case folding.
	_, err = Parse("Chat")
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.Equal(t, "chat, embeddings, responses", Supported())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/v1/chat/completions", Chat.Path())
	assert.Equal(t, "/v1/responses", Responses.Path())
	assert.Equal(t, "/v1/embeddings", Embeddings.Path())
}

func TestNewBuilderRejectsBadHosts(t *testing.T) {
	for _, host := range []string{"", "not a url", "localhost:4000", "/just/a/path"} {
		_, err := NewBuilder(Chat, host, "sk-key", "")
		assert.Error(t, err, "host %q", host)
	}
}

func TestBuilderRequest(t *testing.T) {
	b, err := NewBuilder(Chat, "http://localhost:4000/", "sk-key", "")
	require.NoError(t, err)

	req, err := b.New()
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://localhost:4000/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-key", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "gpt-3.5-turbo", body.Model)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.NotEmpty(t, body.Messages[0].Content)
}

func TestBuilderUniquePrompts(t *testing.T) {
	b, err := NewBuilder(Embeddings, "http://localhost:4000", "sk-key", "custom-embed")
	require.NoError(t, err)

	first, err := b.New()
	require.NoError(t, err)
	second, err := b.New()
	require.NoError(t, err)

	one, err := io.ReadAll(first.Body)
	require.NoError(t, err)
	two, err := io.ReadAll(second.Body)
	require.NoError(t, err)

	assert.NotEqual(t, string(one), string(two))
	assert.Contains(t, string(one), "custom-embed")
}

func TestDefaultModels(t *testing.T) {
	assert.Equal(t, "gpt-3.5-turbo", Chat.DefaultModel())
	assert.Equal(t, "gpt-3.5-turbo", Responses.DefaultModel())
	assert.Equal(t, "text-embedding-ada-002", Embeddings.DefaultModel())
}
