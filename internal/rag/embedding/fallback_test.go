package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

type mockEmbedder struct {
	calls          int
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return []float32{1}, nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return EmbedSequentially(ctx, m, texts)
}

func failing(err error) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) { return nil, err }
}

func TestWithFallback(t *testing.T) {
	remoteDown := &knowledgeModel.EmbeddingBackendError{Backend: "remote", Err: errors.New("timeout")}

	t.Run("primary succeeds", func(t *testing.T) {
		primary, fallback := &mockEmbedder{}, &mockEmbedder{}
		if _, err := WithFallback(primary, fallback).GetEmbedding(context.Background(), "q"); err != nil {
			t.Fatal(err)
		}
		if fallback.calls != 0 {
			t.Error("fallback must not be called when primary succeeds")
		}
	})

	t.Run("primary fails once", func(t *testing.T) {
		primary := &mockEmbedder{OnGetEmbedding: failing(remoteDown)}
		fallback := &mockEmbedder{OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0, 1}, nil
		}}
		e := WithFallback(primary, fallback)

		v, err := e.GetEmbedding(context.Background(), "q")
		if err != nil || len(v) != 2 {
			t.Fatalf("expected fallback vector, got %v, %v", v, err)
		}

		primary.OnGetEmbedding = nil
		v, _ = e.GetEmbedding(context.Background(), "q")
		if len(v) != 1 || primary.calls != 2 {
			t.Errorf("the next call must go to primary again, calls=%d", primary.calls)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		localErr := errors.New("model missing")
		e := WithFallback(&mockEmbedder{OnGetEmbedding: failing(remoteDown)}, &mockEmbedder{OnGetEmbedding: failing(localErr)})

		_, err := e.GetEmbedding(context.Background(), "q")
		var backendErr *knowledgeModel.EmbeddingBackendError
		if !errors.As(err, &backendErr) {
			t.Fatalf("expected EmbeddingBackendError, got %v", err)
		}
		if !errors.Is(err, localErr) {
			t.Error("both causes should be kept")
		}
	})

	t.Run("blank input is not retried", func(t *testing.T) {
		primary, fallback := &mockEmbedder{}, &mockEmbedder{}
		_, err := WithFallback(primary, fallback).GetEmbedding(context.Background(), "   ")
		if !errors.Is(err, knowledgeModel.ErrEmptyInput) {
			t.Fatalf("expected ErrEmptyInput, got %v", err)
		}
		if primary.calls+fallback.calls != 0 {
			t.Error("no backend should be called for blank input")
		}
	})
}

func TestEmbedSequentially_Aborts(t *testing.T) {
	n := 0
	m := &mockEmbedder{OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
		n++
		if text == "bad" {
			return nil, errors.New("boom")
		}
		return []float32{1}, nil
	}}
	vectors, err := EmbedSequentially(context.Background(), m, []string{"a", "bad", "c"})
	if err == nil || vectors != nil {
		t.Fatalf("expected failure without partial result, got %v, %v", vectors, err)
	}
	if n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}
