// Package dummy is a stub OpenAI-compatible gateway for local runs. It
// speaks just enough of the chat, responses, and embeddings wire shapes to
// exercise every scenario, and reports a fake overhead duration header the
// same way the real gateway does.
package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"perftest/internal/scenario"
)

// Handler builds the stub gateway routes.
func Handler() http.Handler {
	mux := http.NewServeMux()

	// 1. Chat completions (150-650ms, occasional 429/500)
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if !gate(w, r) {
			return
		}
		sleep(150, 500)

		// A busy gateway sheds a little load.
		rnd := rand.Float32()
		if rnd < 0.03 {
			writeJSON(w, http.StatusTooManyRequests, apiError("Rate limit reached for model.", "rate_limit_error"))
			return
		}
		if rnd < 0.05 {
			writeJSON(w, http.StatusInternalServerError, apiError("The model is overloaded.", "server_error"))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-" + uuid.New().String(),
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   requestedModel(r),
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "Sunlight scatters off air molecules, and blue scatters the most."},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 14, "total_tokens": 26},
		})
	})

	// 2. Responses (120-520ms)
	mux.HandleFunc("/v1/responses", func(w http.ResponseWriter, r *http.Request) {
		if !gate(w, r) {
			return
		}
		sleep(120, 400)

		writeJSON(w, http.StatusOK, map[string]any{
			"id":      "resp_" + uuid.New().String(),
			"object":  "response",
			"created": time.Now().Unix(),
			"model":   requestedModel(r),
			"output": []map[string]any{{
				"type": "message",
				"role": "assistant",
				"content": []map[string]string{
					{"type": "output_text", "text": "Sunlight scatters off air molecules, and blue scatters the most."},
				},
			}},
		})
	})

	// 3. Embeddings (15-90ms, cheap and boring)
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if !gate(w, r) {
			return
		}
		sleep(15, 75)

		vec := make([]float64, 8)
		for i := range vec {
			vec[i] = rand.Float64()*2 - 1
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"model":  requestedModel(r),
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"usage": map[string]int{"prompt_tokens": 6, "total_tokens": 6},
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// NewServer wraps the stub routes in a server listening on addr.
func NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: Handler(),
	}
}

// gate rejects non-POSTs and requests without a bearer token, the way the
// real gateway would. Any token is accepted.
func gate(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError("Method not allowed.", "invalid_request_error"))
		return false
	}
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, apiError("No API key provided.", "invalid_request_error"))
		return false
	}
	return true
}

func sleep(baseMs, jitterMs int) {
	time.Sleep(time.Duration(rand.Intn(jitterMs)+baseMs) * time.Millisecond)
}

func requestedModel(r *http.Request) string {
	var body struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Model == "" {
		return "unknown"
	}
	return body.Model
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	// Overhead lands on every response, success or not.
	w.Header().Set(scenario.OverheadHeader, fmt.Sprintf("%.2f", rand.Float64()*8+0.5))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func apiError(message, kind string) map[string]any {
	return map[string]any{
		"error": map[string]string{"message": message, "type": kind},
	}
}
