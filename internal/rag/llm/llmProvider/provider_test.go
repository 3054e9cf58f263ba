package llmProvider

import (
	"context"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *config.LLMSettings)
		wantName  string
		wantNil   bool
		wantError bool
	}{
		{"ollama default", func(s *config.LLMSettings) {}, "ollama", false, false},
		{"openai", func(s *config.LLMSettings) { s.Backend = "openai"; s.OpenAI.APIKey = "k" }, "openai", false, false},
		{"openai without key degrades", func(s *config.LLMSettings) { s.Backend = "openai"; s.OpenAI.APIKey = "" }, "", true, false},
		{"gemini without key degrades", func(s *config.LLMSettings) { s.Backend = "gemini"; s.Gemini.APIKey = "" }, "", true, false},
		{"none", func(s *config.LLMSettings) { s.Backend = "none" }, "", true, false},
		{"unknown", func(s *config.LLMSettings) { s.Backend = "bard" }, "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults().LLM
			tt.mutate(&cfg)
			p, err := New(context.Background(), cfg)
			if tt.wantError {
				if !knowledgeModel.IsConfigurationError(err) {
					t.Errorf("expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if p != nil {
					t.Errorf("expected nil provider, got %v", p.Name())
				}
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}
