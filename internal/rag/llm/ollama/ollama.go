package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/customHttpClient"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

const backendName = "ollama"

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

type llmClient struct {
	http        *http.Client
	url         string
	model       string
	temperature float64
	maxTokens   int
	logger      *logger_i.Logger
}

// NewOllamaClient talks to a local-network /api/generate endpoint, one non streaming call per answer.
func NewOllamaClient(cfg config.OllamaSettings, temperature float64, maxTokens int, timeout time.Duration) llm.Provider {
	if timeout <= 0 {
		timeout = config.LLMTimeout
	}
	return &llmClient{
		http:        customHttpClient.NewPooledClient(timeout),
		url:         cfg.URL,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger_i.NewLogger("llm_ollama"),
	}
}

func (c *llmClient) Name() string { return backendName }

func (c *llmClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	log := c.logger.WithTrace(ctx)

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  systemPrompt + "\n\n" + userPrompt,
		Stream:  false,
		Options: generateOptions{Temperature: c.temperature, NumPredict: c.maxTokens},
	})
	if err != nil {
		return "", backendError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", backendError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("generate request failed", "error", err)
		return "", backendError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", backendError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", backendError(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(payload), 200)))
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", backendError(fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return "", backendError(fmt.Errorf("backend: %s", out.Error))
	}
	log.Debug("generation finished", "model", c.model, "chars", len(out.Response))
	return out.Response, nil
}

func backendError(err error) error {
	return &knowledgeModel.LLMBackendError{Backend: backendName, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
