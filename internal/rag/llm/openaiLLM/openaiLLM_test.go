package openaiLLM

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

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Приходите натощак [1]."}}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing api key header")
		}
		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if body.Model != "gpt-4o-mini" || body.MaxTokens != 300 || len(body.Messages) != 2 ||
			body.Messages[0].Role != "system" || body.Messages[1].Content != "вопрос" {
			t.Errorf("unexpected request %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody))
	}))
	defer server.Close()

	p, err := NewOpenAIClient(config.OpenAISettings{BaseURL: server.URL, Model: "gpt-4o-mini", APIKey: "sk-test"}, 0.2, 300, time.Second)
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	text, err := p.Generate(context.Background(), "system prompt", "вопрос")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Приходите натощак [1]." {
		t.Errorf("text = %q", text)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIClient(config.OpenAISettings{BaseURL: server.URL, Model: "m", APIKey: "k"}, 0, 0, time.Second)
	_, err := p.Generate(context.Background(), "s", "u")
	var llmErr *knowledgeModel.LLMBackendError
	if !errors.As(err, &llmErr) || llmErr.Backend != "openai" {
		t.Errorf("expected openai LLMBackendError, got %v", err)
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(config.OpenAISettings{Model: "m"}, 0, 0, time.Second); !knowledgeModel.IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}
