package localEmbedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
)

func testClient() embedding.Embedder {
	return GetLocalEmbeddingClient(config.LocalEmbeddingSettings{Buckets: 512, Seed: 7}, 64)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLocalModel_InitialisedOnce(t *testing.T) {
	var wg sync.WaitGroup
	clients := make([]embedding.Embedder, 32)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i] = testClient()
			if _, err := clients[i].GetEmbedding(context.Background(), "подготовка"); err != nil {
				t.Errorf("GetEmbedding failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := initCount.Load(); got != 1 {
		t.Fatalf("model initialised %d times, want 1", got)
	}
	first := clients[0].(*client).model
	for _, c := range clients[1:] {
		if c.(*client).model != first {
			t.Fatal("clients must share the same model instance")
		}
	}
}

func TestLocalEmbedding_NormalisedAndDeterministic(t *testing.T) {
	c := testClient()
	ctx := context.Background()

	a, err := c.GetEmbedding(ctx, "Подготовка к ФГДС: не есть 8 часов")
	if err != nil {
		t.Fatalf("GetEmbedding failed: %v", err)
	}
	b, _ := c.GetEmbedding(ctx, "Подготовка к ФГДС: не есть 8 часов")

	var norm float64
	for i := range a {
		norm += float64(a[i]) * float64(a[i])
		if a[i] != b[i] {
			t.Fatalf("embedding is not deterministic at %d", i)
		}
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("vector norm = %v, want 1", math.Sqrt(norm))
	}
	if len(a) != sharedModel.dimension {
		t.Errorf("dimension = %d, want %d", len(a), sharedModel.dimension)
	}
}

func TestLocalEmbedding_RelatedTextIsCloser(t *testing.T) {
	c := testClient()
	ctx := context.Background()
	query, _ := c.GetEmbedding(ctx, "подготовка к фгдс")
	related, _ := c.GetEmbedding(ctx, "Как проходит подготовка к ФГДС")
	unrelated, _ := c.GetEmbedding(ctx, "parking rules at the clinic entrance")

	if cosine(query, related) <= cosine(query, unrelated) {
		t.Errorf("related similarity %v should exceed unrelated %v", cosine(query, related), cosine(query, unrelated))
	}
}

func TestLocalEmbedding_BlankAndPunctuation(t *testing.T) {
	c := testClient()
	if _, err := c.GetEmbedding(context.Background(), " \t"); !errors.Is(err, knowledgeModel.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	v, err := c.GetEmbedding(context.Background(), "?!")
	if err != nil || len(v) == 0 {
		t.Errorf("punctuation-only text should still embed, got %v, %v", v, err)
	}
}
