package sqliteStore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/data/storeContract"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	storeContract.Run(t, func(t *testing.T) knowledgeModel.KnowledgeStore {
		return setupTestStore(t)
	})
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")
	first, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := first.CreateDocument(context.Background(), knowledgeModel.DocumentFields{Title: "Kept", Content: "c", Version: 1, Active: true}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	first.Close()

	second, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	var applied int
	if err := second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("reading schema_migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied migration, got %d", applied)
	}
	docs, _ := second.ListDocuments(context.Background(), knowledgeModel.DocumentFilter{})
	if len(docs) != 1 || docs[0].Title != "Kept" {
		t.Errorf("data lost across reopen: %+v", docs)
	}
}

func TestStore_LegacyVectorEncoding(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc, _ := s.CreateDocument(ctx, knowledgeModel.DocumentFields{Title: "Legacy", Content: "c", Version: 1, Active: true})
	legacy, _ := s.CreateFragment(ctx, doc.Id, "legacy", 0, knowledgeModel.FragmentMetadata{})
	modern, _ := s.CreateFragment(ctx, doc.Id, "modern", 1, knowledgeModel.FragmentMetadata{})
	broken, _ := s.CreateFragment(ctx, doc.Id, "broken", 2, knowledgeModel.FragmentMetadata{})

	// delimited strings come from databases filled by the previous importer
	if _, err := s.db.Exec("INSERT INTO embeddings (fragment_id, vector) VALUES (?, ?)", legacy.Id, "0.5, 0.25"); err != nil {
		t.Fatalf("insert legacy: %v", err)
	}
	if _, err := s.CreateEmbedding(ctx, modern.Id, []float32{0.5, 0.25}); err != nil {
		t.Fatalf("CreateEmbedding failed: %v", err)
	}
	if _, err := s.db.Exec("INSERT INTO embeddings (fragment_id, vector) VALUES (?, ?)", broken.Id, "not a vector"); err != nil {
		t.Fatalf("insert broken: %v", err)
	}

	candidates, err := s.FetchCandidates(ctx, nil, 0)
	if err != nil {
		t.Fatalf("FetchCandidates failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	for i := 0; i < 2; i++ {
		c := candidates[i]
		if c.DecodeErr != nil || len(c.Vector) != 2 || c.Vector[0] != 0.5 || c.Vector[1] != 0.25 {
			t.Errorf("candidate %d decoded wrong: %+v", i, c)
		}
	}
	if candidates[2].DecodeErr == nil {
		t.Error("broken vector should report DecodeErr")
	}

	var stored string
	_ = s.db.QueryRow("SELECT vector FROM embeddings WHERE fragment_id = ?", modern.Id).Scan(&stored)
	if stored != "[0.5,0.25]" {
		t.Errorf("canonical encoding = %q, want JSON array", stored)
	}
}
