package rag_test

import (
	"context"
	"sync"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

// MockCache implements vectorDB.AnswerCache
type MockCache struct {
	mu    sync.Mutex
	saved []knowledgeModel.Answer

	OnGetCachedAnswer func(ctx context.Context, queryVector []float32, scope *int64) (knowledgeModel.Answer, bool, error)
	OnSaveToCache     func(ctx context.Context, id string, vector []float32, scope *int64, answer knowledgeModel.Answer) error
	OnInvalidate      func(ctx context.Context, scope *int64) error
}

func (m *MockCache) GetCachedAnswer(ctx context.Context, v []float32, scope *int64) (knowledgeModel.Answer, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, v, scope)
	}
	return knowledgeModel.Answer{}, false, nil
}

func (m *MockCache) SaveToCache(ctx context.Context, id string, v []float32, scope *int64, a knowledgeModel.Answer) error {
	m.mu.Lock()
	m.saved = append(m.saved, a)
	m.mu.Unlock()
	if m.OnSaveToCache != nil {
		return m.OnSaveToCache(ctx, id, v, scope, a)
	}
	return nil
}

func (m *MockCache) Invalidate(ctx context.Context, scope *int64) error {
	if m.OnInvalidate != nil {
		return m.OnInvalidate(ctx, scope)
	}
	return nil
}

func (m *MockCache) Saved() []knowledgeModel.Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]knowledgeModel.Answer(nil), m.saved...)
}

type MockEmbedder struct {
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.GetEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return []float32{1, 0}, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	calls      int
	OnGenerate func(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

func (m *MockLLM) Name() string { return "mock" }

func (m *MockLLM) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	m.calls++
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, systemPrompt, userPrompt)
	}
	return "mocked llm response [1]", nil
}
