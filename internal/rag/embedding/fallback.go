package embedding

import (
	"context"
	"errors"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

type fallbackEmbedder struct {
	primary  Embedder
	fallback Embedder
	logger   *logger_i.Logger
}

// WithFallback retries a failed primary call once on fallback. The substitution only applies to that
// call; the next call goes to primary again.
func WithFallback(primary Embedder, fallback Embedder) Embedder {
	if fallback == nil {
		return primary
	}
	return &fallbackEmbedder{
		primary:  primary,
		fallback: fallback,
		logger:   logger_i.NewLogger("embedding_fallback"),
	}
}

func (f *fallbackEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := checkInput(text); err != nil {
		return nil, err
	}
	v, primaryErr := f.primary.GetEmbedding(ctx, text)
	if primaryErr == nil {
		return v, nil
	}
	if errors.Is(primaryErr, knowledgeModel.ErrEmptyInput) {
		return nil, primaryErr
	}

	f.logger.WithTrace(ctx).Warn("primary embedding backend failed, using fallback", "error", primaryErr)
	metrics.IncrementEmbeddingFallback()

	v, fallbackErr := f.fallback.GetEmbedding(ctx, text)
	if fallbackErr != nil {
		return nil, &knowledgeModel.EmbeddingBackendError{
			Backend: "fallback",
			Err:     errors.Join(primaryErr, fallbackErr),
		}
	}
	return v, nil
}

func (f *fallbackEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return EmbedSequentially(ctx, f, texts)
}
