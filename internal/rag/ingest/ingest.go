package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/internal/rag/chunker"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/internal/rag/vectorDB"
	"github.com/akolanti/ClinicRAG/internal/worker"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("Document Ingestion")

// Orchestrator owns every write to the knowledge base. Fragments are embedded before anything is
// written, and all store changes of one call happen in a single transaction.
type Orchestrator struct {
	store    knowledgeModel.KnowledgeStore
	embedder embedding.Embedder
	cache    vectorDB.AnswerCache
	chunking config.ChunkingSettings
	workers  int
	locks    *keyedMutex
}

func NewOrchestrator(store knowledgeModel.KnowledgeStore, embedder embedding.Embedder, cache vectorDB.AnswerCache, chunking config.ChunkingSettings, workers int) (*Orchestrator, error) {
	if err := chunker.Validate(chunking.WindowSize, chunking.Overlap); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = vectorDB.NoopCache{}
	}
	return &Orchestrator{
		store:    store,
		embedder: embedder,
		cache:    cache,
		chunking: chunking,
		workers:  workers,
		locks:    newKeyedMutex(),
	}, nil
}

// UpsertDocument creates a document, or replaces the content of req.ExistingId and bumps its version.
func (o *Orchestrator) UpsertDocument(ctx context.Context, req knowledgeModel.UpsertRequest) (knowledgeModel.Document, error) {
	log := logger.WithTrace(ctx)
	if embedding.IsBlank(req.Title) {
		return knowledgeModel.Document{}, fmt.Errorf("title: %w", knowledgeModel.ErrEmptyInput)
	}
	if embedding.IsBlank(req.Content) {
		return knowledgeModel.Document{}, fmt.Errorf("content: %w", knowledgeModel.ErrEmptyInput)
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	var existing *knowledgeModel.Document
	if req.ExistingId != nil {
		unlock := o.locks.Lock(*req.ExistingId)
		defer unlock()

		doc, err := o.store.FindDocument(ctx, *req.ExistingId)
		if err != nil {
			return knowledgeModel.Document{}, err
		}
		existing = &doc
	}

	fragments, err := chunker.Chunk(req.Content, o.chunking.WindowSize, o.chunking.Overlap)
	if err != nil {
		return knowledgeModel.Document{}, err
	}

	vectors, err := o.embedFragments(ctx, fragments)
	if err != nil {
		log.Error("embedding fragments failed, nothing written", "title", req.Title, "fragments", len(fragments), "error", err)
		metrics.IncrementDocumentsIngested("failed")
		return knowledgeModel.Document{}, err
	}

	var saved knowledgeModel.Document
	err = o.store.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
		if existing != nil {
			if err := replaceFragments(ctx, tx, existing.Id); err != nil {
				return err
			}
			fields := existing.Fields()
			fields.Title = req.Title
			fields.Content = req.Content
			fields.DocumentType = req.DocumentType
			fields.Scope = req.Scope
			fields.Version = existing.Version + 1
			saved, err = tx.UpdateDocument(ctx, existing.Id, fields)
		} else {
			saved, err = tx.CreateDocument(ctx, knowledgeModel.DocumentFields{
				Title:        req.Title,
				Content:      req.Content,
				DocumentType: req.DocumentType,
				Scope:        req.Scope,
				Version:      1,
				Active:       true,
				CreatedBy:    req.Actor,
			})
		}
		if err != nil {
			return err
		}

		meta := knowledgeModel.FragmentMetadata{DocumentType: saved.DocumentType, Scope: saved.Scope}
		for i, text := range fragments {
			f, err := tx.CreateFragment(ctx, saved.Id, text, i, meta)
			if err != nil {
				return err
			}
			if _, err := tx.CreateEmbedding(ctx, f.Id, vectors[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("storing document failed", "title", req.Title, "error", err)
		metrics.IncrementDocumentsIngested("failed")
		return knowledgeModel.Document{}, err
	}

	if existing != nil {
		o.invalidate(ctx, existing.Scope)
		metrics.IncrementDocumentsIngested("updated")
	} else {
		metrics.IncrementDocumentsIngested("created")
	}
	if existing == nil || !knowledgeModel.SameScope(existing.Scope, saved.Scope) {
		o.invalidate(ctx, saved.Scope)
	}

	log.Info("document ingested", "documentId", saved.Id, "version", saved.Version, "fragments", len(fragments))
	return saved, nil
}

// DeleteDocument removes the document with its fragments and embeddings.
func (o *Orchestrator) DeleteDocument(ctx context.Context, id int64) error {
	unlock := o.locks.Lock(id)
	defer unlock()

	doc, err := o.store.FindDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := o.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	o.invalidate(ctx, doc.Scope)
	logger.WithTrace(ctx).Info("document deleted", "documentId", id)
	return nil
}

// SetActive hides a document from retrieval, or brings it back, without touching its fragments.
func (o *Orchestrator) SetActive(ctx context.Context, id int64, active bool) (knowledgeModel.Document, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	var saved knowledgeModel.Document
	err := o.store.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
		doc, err := tx.FindDocument(ctx, id)
		if err != nil {
			return err
		}
		if doc.Active == active {
			saved = doc
			return nil
		}
		fields := doc.Fields()
		fields.Active = active
		saved, err = tx.UpdateDocument(ctx, id, fields)
		return err
	})
	if err != nil {
		return knowledgeModel.Document{}, err
	}
	o.invalidate(ctx, saved.Scope)
	return saved, nil
}

func replaceFragments(ctx context.Context, tx knowledgeModel.KnowledgeWriter, documentId int64) error {
	old, err := tx.ListFragments(ctx, documentId)
	if err != nil {
		return err
	}
	ids := make([]int64, len(old))
	for i, f := range old {
		ids[i] = f.Id
	}
	if err := tx.DeleteEmbeddingsOfFragments(ctx, ids); err != nil {
		return err
	}
	return tx.DeleteFragmentsOf(ctx, documentId)
}

// embedFragments keeps fragment order whether it runs sequentially or on the worker pool.
func (o *Orchestrator) embedFragments(ctx context.Context, fragments []string) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	if o.workers <= 1 {
		return o.embedder.BatchEmbedding(ctx, fragments)
	}
	return worker.Run(ctx, o.workers, len(fragments), func(ctx context.Context, i int) ([]float32, error) {
		return o.embedder.GetEmbedding(ctx, fragments[i])
	})
}

// invalidate is best effort: a stale cache entry is preferable to failing a committed write.
func (o *Orchestrator) invalidate(ctx context.Context, scope *int64) {
	if err := o.cache.Invalidate(ctx, scope); err != nil {
		logger.WithTrace(ctx).Warn("answer cache invalidation failed", "error", err)
	}
}
