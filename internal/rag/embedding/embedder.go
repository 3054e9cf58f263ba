package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

// Embedder turns text into a fixed-length vector. Blank text fails with knowledgeModel.ErrEmptyInput.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedSequentially embeds texts one call at a time. Any failure aborts the whole batch.
func EmbedSequentially(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		v, err := e.GetEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed item %d: %w", i, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

func checkInput(text string) error {
	if IsBlank(text) {
		return knowledgeModel.ErrEmptyInput
	}
	return nil
}
