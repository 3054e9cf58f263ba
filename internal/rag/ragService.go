package rag

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/internal/rag/answer"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/internal/rag/ingest"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
	"github.com/akolanti/ClinicRAG/internal/rag/retriever"
	"github.com/akolanti/ClinicRAG/internal/rag/vectorDB"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

/*
Service is the only thing the transports (http handlers, mcp tools) talk to.
The private service struct holds the store, backends and cache; swapping any of them
for a mock in tests does not touch the callers.
*/
type Service interface {
	Ask(ctx context.Context, question string, scope *int64) (knowledgeModel.Answer, error)
	Search(ctx context.Context, query string, scope *int64, topK int) ([]knowledgeModel.ScoredFragment, error)

	UpsertDocument(ctx context.Context, req knowledgeModel.UpsertRequest) (knowledgeModel.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	GetDocument(ctx context.Context, id int64) (knowledgeModel.Document, error)
	ListDocuments(ctx context.Context, filter knowledgeModel.DocumentFilter) ([]knowledgeModel.Document, error)
	SetActive(ctx context.Context, id int64, active bool) (knowledgeModel.Document, error)

	// Drain waits for background cache writes, used on shutdown.
	Drain()
}

type service struct {
	store        knowledgeModel.KnowledgeStore
	embedder     embedding.Embedder
	cache        vectorDB.AnswerCache
	retriever    *retriever.Retriever
	generator    *answer.Generator
	orchestrator *ingest.Orchestrator
	groundingTop int
	pending      sync.WaitGroup
	logger       *logger_i.Logger
}

// NewService wires the pipeline. provider may be nil (answers degrade to the unavailable message)
// and so may cache.
func NewService(store knowledgeModel.KnowledgeStore, embedder embedding.Embedder, provider llm.Provider, cache vectorDB.AnswerCache, settings *config.Settings) (Service, error) {
	if cache == nil {
		cache = vectorDB.NoopCache{}
	}
	orchestrator, err := ingest.NewOrchestrator(store, embedder, cache, settings.Chunking, settings.Embedding.Workers)
	if err != nil {
		return nil, err
	}
	return &service{
		store:        store,
		embedder:     embedder,
		cache:        cache,
		retriever:    retriever.NewRetriever(store, embedder, settings.Retrieval),
		generator:    answer.NewGenerator(provider),
		orchestrator: orchestrator,
		groundingTop: settings.Retrieval.TopK,
		logger:       logger_i.NewLogger("RAG Service"),
	}, nil
}

func (s *service) Ask(ctx context.Context, question string, scope *int64) (knowledgeModel.Answer, error) {
	log := s.logger.WithTrace(ctx)
	if embedding.IsBlank(question) {
		return knowledgeModel.Answer{}, knowledgeModel.ErrEmptyQuery
	}

	start := time.Now()
	status := "error"
	defer func() { metrics.CaptureRequestMetrics(status, time.Since(start)) }()

	// Embedding
	vector, err := s.executeEmbeddingStep(ctx, question)
	if err != nil {
		log.Error("EMBEDDING_FAILURE", "error", err)
		return knowledgeModel.Answer{}, err
	}

	// Cache Check
	if cached, found := s.executeCacheCheckStep(ctx, log, vector, scope); found {
		status = "cache_hit"
		cached.Question = question
		return cached, nil
	}

	// Retrieval
	grounding, err := s.retriever.SearchByVector(ctx, question, vector, scope, s.groundingTop)
	if err != nil {
		log.Error("VECTOR_SEARCH_FAILURE", "error", err)
		return knowledgeModel.Answer{}, err
	}

	// Generation never fails, degraded answers are just not cached
	result := s.generator.Answer(ctx, question, grounding, scope)
	if result.Degraded {
		status = "degraded"
		return result, nil
	}

	s.executeSaveStep(ctx, vector, scope, result)
	status = "success"
	return result, nil
}

func (s *service) Search(ctx context.Context, query string, scope *int64, topK int) ([]knowledgeModel.ScoredFragment, error) {
	return s.retriever.Search(ctx, query, scope, topK)
}

func (s *service) UpsertDocument(ctx context.Context, req knowledgeModel.UpsertRequest) (knowledgeModel.Document, error) {
	return s.orchestrator.UpsertDocument(ctx, req)
}

func (s *service) DeleteDocument(ctx context.Context, id int64) error {
	return s.orchestrator.DeleteDocument(ctx, id)
}

func (s *service) GetDocument(ctx context.Context, id int64) (knowledgeModel.Document, error) {
	return s.store.FindDocument(ctx, id)
}

func (s *service) ListDocuments(ctx context.Context, filter knowledgeModel.DocumentFilter) ([]knowledgeModel.Document, error) {
	return s.store.ListDocuments(ctx, filter)
}

func (s *service) SetActive(ctx context.Context, id int64, active bool) (knowledgeModel.Document, error) {
	return s.orchestrator.SetActive(ctx, id, active)
}

func (s *service) Drain() {
	s.pending.Wait()
}
