package answer

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

type Generator struct {
	provider llm.Provider
	logger   *logger_i.Logger
}

// NewGenerator accepts a nil provider; every grounded answer is then the unavailable message.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{
		provider: provider,
		logger:   logger_i.NewLogger("Answer Generator"),
	}
}

// Answer never fails. Backend problems turn into a degraded answer with no sources.
func (g *Generator) Answer(ctx context.Context, query string, grounding []knowledgeModel.ScoredFragment, scope *int64) knowledgeModel.Answer {
	log := g.logger.WithTrace(ctx)

	if len(grounding) == 0 {
		metrics.IncrementDegradedAnswer("no_information")
		return degraded(query, NoInformationMessage)
	}
	if g.provider == nil {
		metrics.IncrementDegradedAnswer("unavailable")
		return degraded(query, UnavailableMessage)
	}

	start := time.Now()
	text, err := g.provider.Generate(ctx, SystemPrompt(), BuildUserPrompt(query, grounding))
	metrics.CaptureExecutionMetrics("llm_generation", time.Since(start))
	if err == nil && strings.TrimSpace(text) == "" {
		err = &knowledgeModel.LLMBackendError{Backend: g.provider.Name(), Err: errEmptyCompletion}
	}
	if err != nil {
		log.Error("generation failed", "backend", g.provider.Name(), "scope", scope, "error", err)
		metrics.IncrementDegradedAnswer("backend_error")
		return degraded(query, ApologyMessage)
	}

	return knowledgeModel.Answer{
		Question: query,
		Text:     strings.TrimSpace(text),
		Sources:  sourcesOf(grounding),
	}
}

func degraded(query, message string) knowledgeModel.Answer {
	return knowledgeModel.Answer{
		Question: query,
		Text:     message,
		Sources:  []knowledgeModel.Source{},
		Degraded: true,
	}
}
