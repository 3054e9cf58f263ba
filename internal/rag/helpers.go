package rag

import (
	"context"
	"time"

	"github.com/akolanti/ClinicRAG/internal/adapter/utils"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

const cacheWriteTimeout = 5 * time.Second

func (s *service) executeEmbeddingStep(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return s.embedder.GetEmbedding(ctx, question)
}

// executeCacheCheckStep treats a broken cache as a miss.
func (s *service) executeCacheCheckStep(ctx context.Context, log *logger_i.Logger, vector []float32, scope *int64) (knowledgeModel.Answer, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	cached, found, err := s.cache.GetCachedAnswer(ctx, vector, scope)
	if err != nil {
		log.Warn("cache lookup failed", "error", err)
		return knowledgeModel.Answer{}, false
	}
	metrics.CaptureCacheLookup(found)
	return cached, found
}

// executeSaveStep writes to the cache in the background so the caller is not kept waiting.
func (s *service) executeSaveStep(ctx context.Context, vector []float32, scope *int64, result knowledgeModel.Answer) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
		defer cancel()

		if err := s.cache.SaveToCache(saveCtx, utils.NewId(), vector, scope, result); err != nil {
			s.logger.WithTrace(ctx).Error("Failed to save to cache", "error", err)
		}
	}()
}
