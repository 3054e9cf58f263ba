package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

type mockProvider struct {
	calls      int
	lastSystem string
	lastUser   string
	OnGenerate func(ctx context.Context, system, user string) (string, error)
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(ctx context.Context, system, user string) (string, error) {
	m.calls++
	m.lastSystem, m.lastUser = system, user
	return m.OnGenerate(ctx, system, user)
}

func grounding() []knowledgeModel.ScoredFragment {
	return []knowledgeModel.ScoredFragment{
		{Candidate: knowledgeModel.Candidate{DocumentId: 9, DocumentTitle: "Подготовка к ФГДС", Scope: knowledgeModel.ScopeOf(3), FragmentIndex: 1, Text: "Не есть 8 часов."}, Similarity: 0.9},
		{Candidate: knowledgeModel.Candidate{DocumentId: 2, DocumentTitle: "Общие правила", FragmentIndex: 0, Text: "Приходите за 15 минут."}, Similarity: 0.4},
	}
}

func TestAnswer_NoGroundingSkipsBackend(t *testing.T) {
	p := &mockProvider{OnGenerate: func(ctx context.Context, s, u string) (string, error) { return "x", nil }}
	ans := NewGenerator(p).Answer(context.Background(), "Можно ли пить кофе?", nil, knowledgeModel.ScopeOf(5))

	if ans.Text != NoInformationMessage || len(ans.Sources) != 0 || !ans.Degraded {
		t.Errorf("unexpected answer %+v", ans)
	}
	if p.calls != 0 {
		t.Errorf("backend called %d times", p.calls)
	}
}

func TestAnswer_NilProvider(t *testing.T) {
	ans := NewGenerator(nil).Answer(context.Background(), "q", grounding(), nil)
	if ans.Text != UnavailableMessage || len(ans.Sources) != 0 || !ans.Degraded {
		t.Errorf("unexpected answer %+v", ans)
	}
}

func TestAnswer_BackendErrorBecomesApology(t *testing.T) {
	tests := []struct {
		name string
		gen  func(ctx context.Context, s, u string) (string, error)
	}{
		{"error", func(ctx context.Context, s, u string) (string, error) {
			return "", &knowledgeModel.LLMBackendError{Backend: "mock", Err: errors.New("503")}
		}},
		{"blank completion", func(ctx context.Context, s, u string) (string, error) { return "  ", nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := NewGenerator(&mockProvider{OnGenerate: tt.gen}).Answer(context.Background(), "q", grounding(), nil)
			if ans.Text != ApologyMessage || len(ans.Sources) != 0 || !ans.Degraded {
				t.Errorf("unexpected answer %+v", ans)
			}
		})
	}
}

func TestAnswer_Success(t *testing.T) {
	p := &mockProvider{OnGenerate: func(ctx context.Context, s, u string) (string, error) {
		return " Не ешьте 8 часов до процедуры [1]. ", nil
	}}
	ans := NewGenerator(p).Answer(context.Background(), "Как готовиться к ФГДС?", grounding(), knowledgeModel.ScopeOf(3))

	if ans.Degraded || ans.Text != "Не ешьте 8 часов до процедуры [1]." || ans.Question != "Как готовиться к ФГДС?" {
		t.Errorf("unexpected answer %+v", ans)
	}
	if len(ans.Sources) != 2 || ans.Sources[0].DocumentId != 9 || ans.Sources[1].DocumentId != 2 {
		t.Fatalf("sources must follow grounding order: %+v", ans.Sources)
	}
	if ans.Sources[0].FragmentIndex != 1 || *ans.Sources[0].Scope != 3 || ans.Sources[1].Scope != nil {
		t.Errorf("source fields not copied: %+v", ans.Sources)
	}

	if p.lastSystem != SystemPrompt() {
		t.Error("system prompt not passed to the backend")
	}
	first := strings.Index(p.lastUser, "[1] Подготовка к ФГДС (фрагмент 1)")
	second := strings.Index(p.lastUser, "[2] Общие правила (фрагмент 0)")
	if first < 0 || second < 0 || first > second {
		t.Errorf("context blocks missing or out of order:\n%s", p.lastUser)
	}
	if !strings.HasSuffix(p.lastUser, "Вопрос: Как готовиться к ФГДС?") {
		t.Errorf("question should close the prompt:\n%s", p.lastUser)
	}
}
