package googleEmbedding

import (
	"errors"
	"testing"

	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDoRetry(t *testing.T) {
	log := logger_i.NewLogger("test")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", status.Error(codes.ResourceExhausted, "quota"), true},
		{"unavailable", status.Error(codes.Unavailable, "down"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := doRetry(tt.err, log); got != tt.want {
			t.Errorf("%s: doRetry = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGetContent(t *testing.T) {
	contents := getContent([]string{"a", "b"})
	if len(contents) != 2 || contents[1].Parts[0].Text != "b" {
		t.Errorf("unexpected contents %+v", contents)
	}
}

func TestToVectors(t *testing.T) {
	ok := &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{
		{Values: []float32{1, 0}},
		{Values: []float32{0, 1}},
	}}
	vectors, err := toVectors(ok, 2)
	if err != nil || len(vectors) != 2 || vectors[1][1] != 1 {
		t.Fatalf("toVectors = %v, %v", vectors, err)
	}

	if _, err := toVectors(ok, 3); err == nil {
		t.Error("count mismatch should fail")
	}
	if _, err := toVectors(nil, 1); err == nil {
		t.Error("nil response should fail")
	}
	partial := &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}, nil}}
	if _, err := toVectors(partial, 2); err == nil {
		t.Error("missing item should fail the batch")
	}
}
