package qdrantDB

import (
	"context"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

func TestAnswerPayloadRoundTrip(t *testing.T) {
	in := knowledgeModel.Answer{
		Question: "Нужно ли приходить натощак?",
		Text:     "Да, за 8 часов не ешьте [1].",
		Sources: []knowledgeModel.Source{
			{DocumentId: 4, DocumentTitle: "Анализ крови", Scope: knowledgeModel.ScopeOf(2), FragmentIndex: 1},
			{DocumentId: 1, DocumentTitle: "Общие правила"},
		},
	}
	payload, err := answerPayload(knowledgeModel.ScopeOf(2), in)
	if err != nil {
		t.Fatalf("answerPayload failed: %v", err)
	}
	if payload["scope"].GetIntegerValue() != 2 {
		t.Errorf("scope payload = %v", payload["scope"])
	}

	out, err := answerFromPayload(payload)
	if err != nil {
		t.Fatalf("answerFromPayload failed: %v", err)
	}
	if out.Text != in.Text || out.Question != in.Question || len(out.Sources) != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Sources[0].DocumentId != 4 || *out.Sources[0].Scope != 2 || out.Sources[1].Scope != nil {
		t.Errorf("sources mismatch: %+v", out.Sources)
	}
}

func TestScopeFilter(t *testing.T) {
	if got := scopeFilter(nil).Must[0].GetField().GetMatch().GetInteger(); got != noScope {
		t.Errorf("nil scope filter matches %d, want %d", got, noScope)
	}
	if got := scopeFilter(knowledgeModel.ScopeOf(9)).Must[0].GetField().GetMatch().GetInteger(); got != 9 {
		t.Errorf("scope filter matches %d, want 9", got)
	}
}

func TestAnswerFromPayload_BadSources(t *testing.T) {
	payload, _ := answerPayload(nil, knowledgeModel.Answer{Text: "x"})
	delete(payload, "sources")
	out, err := answerFromPayload(payload)
	if err != nil || out.Text != "x" || len(out.Sources) != 0 {
		t.Errorf("missing sources should decode to an empty list, got %+v, %v", out, err)
	}
}

func TestWrongWidthSkipsQdrant(t *testing.T) {
	logger = logger_i.NewLogger("test qdrant")
	// QObj is nil: any call reaching Qdrant would panic
	db := &ClientHolder{collectionName: "test", dimension: 384}
	ctx := context.Background()

	_, found, err := db.GetCachedAnswer(ctx, make([]float32, 768), nil)
	if found || err != nil {
		t.Errorf("wrong width lookup should be a plain miss, got %v, %v", found, err)
	}
	if err := db.SaveToCache(ctx, "id", make([]float32, 768), nil, knowledgeModel.Answer{Text: "x"}); err != nil {
		t.Errorf("wrong width save should be skipped, got %v", err)
	}
	if !db.fitsCollection(ctx, make([]float32, 384)) {
		t.Error("matching width rejected")
	}
}
