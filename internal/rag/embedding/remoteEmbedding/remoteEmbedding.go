package remoteEmbedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/customHttpClient"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

const backendName = "remote"

type client struct {
	http   *http.Client
	url    string
	model  string
	apiKey string
	logger *logger_i.Logger
}

type embedRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Prompt string `json:"prompt"`
}

// NewRemoteEmbedder calls an external inference endpoint. Both Ollama-style and OpenAI-style
// servers are accepted.
func NewRemoteEmbedder(cfg config.RemoteEmbeddingSettings, timeout time.Duration) embedding.Embedder {
	if timeout <= 0 {
		timeout = config.EmbeddingTimeout
	}
	return &client{
		http:   customHttpClient.NewPooledClient(timeout),
		url:    cfg.URL,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		logger: logger_i.NewLogger("remote_embedding"),
	}
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if embedding.IsBlank(text) {
		return nil, knowledgeModel.ErrEmptyInput
	}
	log := c.logger.WithTrace(ctx)

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text, Prompt: text})
	if err != nil {
		return nil, backendError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backendError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("embedding request failed", "error", err)
		return nil, backendError(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backendError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("embedding endpoint returned error", "status", resp.StatusCode)
		return nil, backendError(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(payload, 200)))
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, backendError(fmt.Errorf("decode response: %w", err))
	}
	vector, err := ExtractVector(decoded)
	if err != nil {
		return nil, backendError(err)
	}
	log.Debug("remote embedding received", "dimension", len(vector))
	return vector, nil
}

func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedSequentially(ctx, c, texts)
}

var errNoVector = errors.New("response does not contain a vector")

// vector fields checked on object responses, in order
var vectorFields = []string{"embedding", "embeddings", "vector", "data"}

// ExtractVector normalises the response shapes seen in the wild to one flat vector:
// [[...]], {"embedding":[...]}, [...] and {"data":[{"embedding":[...]}]}.
func ExtractVector(v any) ([]float32, error) {
	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return nil, errNoVector
		}
		if _, ok := val[0].(float64); ok {
			return toFloat32(val)
		}
		return ExtractVector(val[0])
	case map[string]any:
		for _, field := range vectorFields {
			if inner, ok := val[field]; ok && inner != nil {
				return ExtractVector(inner)
			}
		}
		return nil, errNoVector
	default:
		return nil, errNoVector
	}
}

func toFloat32(values []any) ([]float32, error) {
	out := make([]float32, len(values))
	for i, raw := range values {
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("vector element %d is %T, not a number", i, raw)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func backendError(err error) error {
	return &knowledgeModel.EmbeddingBackendError{Backend: backendName, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
