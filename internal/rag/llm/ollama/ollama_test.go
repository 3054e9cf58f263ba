package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if req.Stream || req.Model != "llama3.1" || req.Options.NumPredict != 800 || req.Options.Temperature != 0.2 {
			t.Errorf("unexpected request %+v", req)
		}
		if !strings.HasPrefix(req.Prompt, "SYSTEM") || !strings.HasSuffix(req.Prompt, "USER") {
			t.Errorf("prompt should join system and user text, got %q", req.Prompt)
		}
		w.Write([]byte(`{"model":"llama3.1","response":"Не ешьте за 8 часов [1].","done":true}`))
	}))
	defer server.Close()

	c := NewOllamaClient(config.OllamaSettings{URL: server.URL, Model: "llama3.1"}, 0.2, 800, time.Second)
	text, err := c.Generate(context.Background(), "SYSTEM", "USER")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Не ешьте за 8 часов [1]." {
		t.Errorf("text = %q", text)
	}
	if c.Name() != "ollama" {
		t.Errorf("Name = %q", c.Name())
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "no model", http.StatusNotFound) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"response":`)) }},
		{"error field", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"error":"model not found"}`)) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{"response":"late"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewOllamaClient(config.OllamaSettings{URL: server.URL, Model: "m"}, 0, 0, 100*time.Millisecond)
			_, err := c.Generate(context.Background(), "s", "u")
			var llmErr *knowledgeModel.LLMBackendError
			if !errors.As(err, &llmErr) || llmErr.Backend != "ollama" {
				t.Errorf("expected ollama LLMBackendError, got %v", err)
			}
		})
	}
}
