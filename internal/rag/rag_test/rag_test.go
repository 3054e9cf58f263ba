package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/data/store"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag"
	"github.com/akolanti/ClinicRAG/internal/rag/answer"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
)

func newService(t *testing.T, e *MockEmbedder, provider llm.Provider, c *MockCache) (rag.Service, *store.InMemoryKnowledgeStore) {
	t.Helper()
	s := store.InitInMemoryKnowledgeStore()
	svc, err := rag.NewService(s, e, provider, c, config.Defaults())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, s
}

func seedDocument(t *testing.T, svc rag.Service, title string, scope *int64) knowledgeModel.Document {
	t.Helper()
	doc, err := svc.UpsertDocument(context.Background(), knowledgeModel.UpsertRequest{
		Title: title, Content: "Не есть за 8 часов до исследования.", Scope: scope, Actor: "admin",
	})
	if err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	return doc
}

func TestAsk_Scenarios(t *testing.T) {
	serviceX := knowledgeModel.ScopeOf(3)

	tests := []struct {
		name          string
		seed          bool
		setupMocks    func(e *MockEmbedder, l *MockLLM, c *MockCache)
		expectedText  string
		expectSources int
		expectLLM     int
		expectSaved   int
		checkErr      func(error) bool
	}{
		{
			name:          "Success_Full_Flow",
			seed:          true,
			expectedText:  "mocked llm response [1]",
			expectSources: 1,
			expectLLM:     1,
			expectSaved:   1,
		},
		{
			name: "Success_Cache_Hit",
			seed: true,
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				c.OnGetCachedAnswer = func(ctx context.Context, v []float32, scope *int64) (knowledgeModel.Answer, bool, error) {
					return knowledgeModel.Answer{Question: "older wording", Text: "cached answer", Sources: []knowledgeModel.Source{{DocumentId: 1}}}, true, nil
				}
			},
			expectedText:  "cached answer",
			expectSources: 1,
		},
		{
			name: "Cache_Failure_Is_A_Miss",
			seed: true,
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				c.OnGetCachedAnswer = func(ctx context.Context, v []float32, scope *int64) (knowledgeModel.Answer, bool, error) {
					return knowledgeModel.Answer{}, false, errors.New("qdrant unreachable")
				}
			},
			expectedText:  "mocked llm response [1]",
			expectSources: 1,
			expectLLM:     1,
			expectSaved:   1,
		},
		{
			name:         "No_Documents_In_Scope",
			expectedText: answer.NoInformationMessage,
		},
		{
			name: "LLM_Failure_Degrades",
			seed: true,
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				l.OnGenerate = func(ctx context.Context, s, u string) (string, error) {
					return "", errors.New("context deadline exceeded")
				}
			},
			expectedText: answer.ApologyMessage,
			expectLLM:    1,
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(e *MockEmbedder, l *MockLLM, c *MockCache) {
				e.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					return nil, &knowledgeModel.EmbeddingBackendError{Backend: "fallback", Err: errors.New("api limit")}
				}
			},
			checkErr: knowledgeModel.IsEmbeddingBackendError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, l, c := &MockEmbedder{}, &MockLLM{}, &MockCache{}
			svc, _ := newService(t, e, l, c)
			if tt.seed {
				seedDocument(t, svc, "Подготовка к ФГДС", serviceX)
			}
			if tt.setupMocks != nil {
				tt.setupMocks(e, l, c)
			}

			result, err := svc.Ask(context.Background(), "как подготовиться к фгдс?", serviceX)
			svc.Drain()

			if tt.checkErr != nil {
				if !tt.checkErr(err) {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Ask failed: %v", err)
			}
			if result.Text != tt.expectedText {
				t.Errorf("answer = %q, want %q", result.Text, tt.expectedText)
			}
			if result.Question != "как подготовиться к фгдс?" {
				t.Errorf("question not echoed: %q", result.Question)
			}
			if len(result.Sources) != tt.expectSources {
				t.Errorf("sources = %d, want %d", len(result.Sources), tt.expectSources)
			}
			if l.calls != tt.expectLLM {
				t.Errorf("llm calls = %d, want %d", l.calls, tt.expectLLM)
			}
			if got := len(c.Saved()); got != tt.expectSaved {
				t.Errorf("cached answers = %d, want %d", got, tt.expectSaved)
			}
		})
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	e := &MockEmbedder{OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
		t.Error("blank question must not be embedded")
		return nil, nil
	}}
	svc, _ := newService(t, e, &MockLLM{}, &MockCache{})
	if _, err := svc.Ask(context.Background(), " \t", nil); !errors.Is(err, knowledgeModel.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestAsk_NoProvider(t *testing.T) {
	svc, _ := newService(t, &MockEmbedder{}, nil, &MockCache{})
	seedDocument(t, svc, "Общие правила", nil)

	result, err := svc.Ask(context.Background(), "когда приходить?", nil)
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if result.Text != answer.UnavailableMessage || len(result.Sources) != 0 {
		t.Errorf("expected unavailable message, got %+v", result)
	}
}

func TestAsk_PromptCarriesGroundingInOrder(t *testing.T) {
	var prompt string
	l := &MockLLM{OnGenerate: func(ctx context.Context, s, u string) (string, error) {
		prompt = u
		return "ok", nil
	}}
	svc, _ := newService(t, &MockEmbedder{}, l, &MockCache{})
	seedDocument(t, svc, "Подготовка к ФГДС", knowledgeModel.ScopeOf(3))
	seedDocument(t, svc, "Общие правила", nil)
	seedDocument(t, svc, "Другая услуга", knowledgeModel.ScopeOf(4))

	result, err := svc.Ask(context.Background(), "подготовка фгдс", knowledgeModel.ScopeOf(3))
	svc.Drain()
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(result.Sources) != 2 || result.Sources[0].DocumentTitle != "Подготовка к ФГДС" {
		t.Fatalf("unexpected sources %+v", result.Sources)
	}
	if strings.Contains(prompt, "Другая услуга") {
		t.Error("other scope leaked into the prompt")
	}
	if strings.Index(prompt, "Подготовка к ФГДС") > strings.Index(prompt, "Общие правила") {
		t.Error("prompt context not in ranked order")
	}
}

func TestDocumentOperations(t *testing.T) {
	var invalidated []*int64
	c := &MockCache{OnInvalidate: func(ctx context.Context, scope *int64) error {
		invalidated = append(invalidated, scope)
		return nil
	}}
	svc, _ := newService(t, &MockEmbedder{}, &MockLLM{}, c)
	ctx := context.Background()

	doc := seedDocument(t, svc, "Памятка", knowledgeModel.ScopeOf(9))
	got, err := svc.GetDocument(ctx, doc.Id)
	if err != nil || got.Title != "Памятка" {
		t.Fatalf("GetDocument = %+v, %v", got, err)
	}

	list, _ := svc.ListDocuments(ctx, knowledgeModel.DocumentFilter{Scope: knowledgeModel.ScopeOf(9)})
	if len(list) != 1 {
		t.Errorf("expected 1 document in scope 9, got %d", len(list))
	}

	if _, err := svc.SetActive(ctx, doc.Id, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	results, _ := svc.Search(ctx, "памятка", knowledgeModel.ScopeOf(9), 5)
	if len(results) != 0 {
		t.Errorf("inactive document found by search: %+v", results)
	}

	if err := svc.DeleteDocument(ctx, doc.Id); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if _, err := svc.GetDocument(ctx, doc.Id); !errors.Is(err, knowledgeModel.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	if len(invalidated) != 3 {
		t.Errorf("expected 3 cache invalidations, got %d", len(invalidated))
	}
}
