package embedding

import (
	"context"
	"reflect"
	"testing"
)

func TestWithDimensionCheck(t *testing.T) {
	wide := &mockEmbedder{OnGetEmbedding: func(ctx context.Context, text string) ([]float32, error) {
		return make([]float32, 768), nil
	}}

	checked := WithDimensionCheck(wide, 384)
	v, err := checked.GetEmbedding(context.Background(), "фгдс")
	if err != nil {
		t.Fatalf("GetEmbedding failed: %v", err)
	}
	if len(v) != 768 {
		t.Errorf("vector must pass through unchanged, got width %d", len(v))
	}
	if _, err := checked.BatchEmbedding(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("BatchEmbedding failed: %v", err)
	}
	if got := checked.(*dimensionCheck).mismatches.Load(); got != 3 {
		t.Errorf("mismatches = %d, want 3", got)
	}

	exact := WithDimensionCheck(&mockEmbedder{}, 1)
	if _, err := exact.GetEmbedding(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if got := exact.(*dimensionCheck).mismatches.Load(); got != 0 {
		t.Errorf("matching width counted as mismatch: %d", got)
	}

	inner := &mockEmbedder{}
	if got := WithDimensionCheck(inner, 0); !reflect.DeepEqual(got, Embedder(inner)) {
		t.Error("zero dimension should return the embedder unwrapped")
	}
}
