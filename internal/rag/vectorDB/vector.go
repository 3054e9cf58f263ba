package vectorDB

import (
	"context"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

// AnswerCache stores generated answers by question embedding, partitioned by scope.
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, queryVector []float32, scope *int64) (knowledgeModel.Answer, bool, error)
	SaveToCache(ctx context.Context, id string, vector []float32, scope *int64, answer knowledgeModel.Answer) error

	// Invalidate drops the answers of one scope; a nil scope drops everything because scope-less
	// documents ground answers in every scope.
	Invalidate(ctx context.Context, scope *int64) error
}

// NoopCache never hits. It is used when no cache backend is configured.
type NoopCache struct{}

func (NoopCache) GetCachedAnswer(ctx context.Context, queryVector []float32, scope *int64) (knowledgeModel.Answer, bool, error) {
	return knowledgeModel.Answer{}, false, nil
}

func (NoopCache) SaveToCache(ctx context.Context, id string, vector []float32, scope *int64, answer knowledgeModel.Answer) error {
	return nil
}

func (NoopCache) Invalidate(ctx context.Context, scope *int64) error {
	return nil
}
