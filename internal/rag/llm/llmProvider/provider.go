package llmProvider

import (
	"context"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
	"github.com/akolanti/ClinicRAG/internal/rag/llm/gemini"
	"github.com/akolanti/ClinicRAG/internal/rag/llm/ollama"
	"github.com/akolanti/ClinicRAG/internal/rag/llm/openaiLLM"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

// New returns the configured generation backend. "none", or a hosted backend whose client cannot be
// built, yields a nil provider; answers then fall back to the unavailable message. Only an unknown
// backend name is an error.
func New(ctx context.Context, cfg config.LLMSettings) (llm.Provider, error) {
	logger := logger_i.NewLogger("llm_provider")

	var (
		provider llm.Provider
		err      error
	)
	switch cfg.Backend {
	case "ollama":
		return ollama.NewOllamaClient(cfg.Ollama, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case "openai":
		provider, err = openaiLLM.NewOpenAIClient(cfg.OpenAI, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
	case "gemini":
		provider, err = gemini.GetGeminiClient(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey, cfg.Temperature, cfg.MaxTokens)
	case "none", "":
		logger.Warn("No LLM backend configured, answers will use the unavailable message")
		return nil, nil
	default:
		return nil, &knowledgeModel.ConfigurationError{Field: "llm.backend", Reason: "unknown backend " + cfg.Backend}
	}

	if err != nil {
		logger.Warn("LLM backend unavailable, answers will use the unavailable message", "backend", cfg.Backend, "error", err)
		return nil, nil
	}
	return provider, nil
}
