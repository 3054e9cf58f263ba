package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_DefaultsWhenNothingConfigured(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Chunking.WindowSize != ChunkWindowSize || s.Chunking.Overlap != ChunkOverlap {
		t.Errorf("chunking defaults = %+v", s.Chunking)
	}
	if s.Retrieval.TopK != 5 || s.Retrieval.Threshold != 0.15 || s.Retrieval.OverFetchFactor != 3 {
		t.Errorf("retrieval defaults = %+v", s.Retrieval)
	}
	if s.Retrieval.TitleBonus != 0.15 || s.Retrieval.BodyBonus != 0.05 {
		t.Errorf("bonus defaults = %v / %v", s.Retrieval.TitleBonus, s.Retrieval.BodyBonus)
	}
	if len(s.Retrieval.StopWords) == 0 {
		t.Error("expected default stop words")
	}
}

func TestLoad_YamlThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinicrag.yaml")
	yml := `
chunking:
  window_size: 400
  overlap: 40
embedding:
  backend: remote
  timeout: 5s
llm:
  backend: openai
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHUNK_OVERLAP", "60")
	t.Setenv("LLM_BACKEND", "none")

	s, err := Load(path, noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Chunking.WindowSize != 400 {
		t.Errorf("window size = %d, want 400", s.Chunking.WindowSize)
	}
	if s.Chunking.Overlap != 60 {
		t.Errorf("env should override yaml overlap, got %d", s.Chunking.Overlap)
	}
	if s.Embedding.Backend != "remote" || s.Embedding.Timeout != 5*time.Second {
		t.Errorf("embedding = %+v", s.Embedding)
	}
	if s.LLM.Backend != "none" {
		t.Errorf("llm backend = %s, want none", s.LLM.Backend)
	}
	if s.Retrieval.TopK != RetrievalTopK {
		t.Error("unset yaml sections should keep defaults")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	os.Unsetenv("OLLAMA_MODEL")
	t.Cleanup(func() { os.Unsetenv("OLLAMA_MODEL") })

	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("OLLAMA_MODEL=qwen2.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load("", envPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.LLM.Ollama.Model != "qwen2.5" {
		t.Errorf("ollama model = %s, want qwen2.5", s.LLM.Ollama.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
		field  string
	}{
		{"zero window", func(s *Settings) { s.Chunking.WindowSize = 0 }, "chunking.window_size"},
		{"overlap equals window", func(s *Settings) { s.Chunking.Overlap = s.Chunking.WindowSize }, "chunking.overlap"},
		{"negative overlap", func(s *Settings) { s.Chunking.Overlap = -1 }, "chunking.overlap"},
		{"zero topK", func(s *Settings) { s.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"threshold above one", func(s *Settings) { s.Retrieval.Threshold = 1.5 }, "retrieval.threshold"},
		{"unknown store", func(s *Settings) { s.Store.Backend = "mongo" }, "store.backend"},
		{"unknown embedder", func(s *Settings) { s.Embedding.Backend = "tfidf" }, "embedding.backend"},
		{"unknown llm", func(s *Settings) { s.LLM.Backend = "claude" }, "llm.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(s)
			err := s.Validate()
			cfgErr, ok := err.(*knowledgeModel.ConfigurationError)
			if !ok {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %s, want %s", cfgErr.Field, tt.field)
			}
		})
	}

	if err := Defaults().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "five")
	_, err := Load("", noEnvFile(t))
	if !knowledgeModel.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
