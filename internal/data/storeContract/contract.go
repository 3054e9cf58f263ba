// Package storeContract holds the behaviour every knowledgeModel.KnowledgeStore must share. Store
// packages run it from their own tests.
package storeContract

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

// Factory returns an empty store; it is called once per sub test.
type Factory func(t *testing.T) knowledgeModel.KnowledgeStore

func testContext() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "store-contract")
}

func fields(title string, scope *int64) knowledgeModel.DocumentFields {
	return knowledgeModel.DocumentFields{
		Title:        title,
		Content:      title + " content",
		DocumentType: "preparation",
		Scope:        scope,
		Version:      1,
		Active:       true,
		CreatedBy:    "admin",
	}
}

// seed creates a document with n embedded fragments in one transaction.
func seed(t *testing.T, s knowledgeModel.KnowledgeStore, f knowledgeModel.DocumentFields, n int) knowledgeModel.Document {
	t.Helper()
	ctx := testContext()
	var doc knowledgeModel.Document
	err := s.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
		var err error
		doc, err = tx.CreateDocument(ctx, f)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			frag, err := tx.CreateFragment(ctx, doc.Id, f.Title+" fragment", i, knowledgeModel.FragmentMetadata{DocumentType: f.DocumentType, Scope: f.Scope})
			if err != nil {
				return err
			}
			if _, err := tx.CreateEmbedding(ctx, frag.Id, []float32{float32(i), 1, 0.5}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed %q failed: %v", f.Title, err)
	}
	return doc
}

func Run(t *testing.T, newStore Factory) {
	t.Run("Create and find document", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc, err := s.CreateDocument(ctx, fields("Подготовка к ФГДС", knowledgeModel.ScopeOf(3)))
		if err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		if doc.Id == 0 || doc.CreatedAt.IsZero() {
			t.Fatalf("document not populated: %+v", doc)
		}

		found, err := s.FindDocument(ctx, doc.Id)
		if err != nil {
			t.Fatalf("FindDocument failed: %v", err)
		}
		if found.Title != doc.Title || found.Version != 1 || !found.Active || !knowledgeModel.SameScope(found.Scope, doc.Scope) {
			t.Errorf("round trip mismatch: got %+v, want %+v", found, doc)
		}
	})

	t.Run("Find missing document", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.FindDocument(testContext(), 404); !errors.Is(err, knowledgeModel.ErrDocumentNotFound) {
			t.Errorf("expected ErrDocumentNotFound, got %v", err)
		}
	})

	t.Run("Update keeps creation time", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc, _ := s.CreateDocument(ctx, fields("Old", nil))
		f := doc.Fields()
		f.Title = "New"
		f.Version = 2
		updated, err := s.UpdateDocument(ctx, doc.Id, f)
		if err != nil {
			t.Fatalf("UpdateDocument failed: %v", err)
		}
		if updated.Title != "New" || updated.Version != 2 {
			t.Errorf("update not applied: %+v", updated)
		}
		if !updated.CreatedAt.Equal(doc.CreatedAt) {
			t.Errorf("CreatedAt changed from %v to %v", doc.CreatedAt, updated.CreatedAt)
		}
		if _, err := s.UpdateDocument(ctx, 999, f); !errors.Is(err, knowledgeModel.ErrDocumentNotFound) {
			t.Errorf("expected ErrDocumentNotFound on missing update, got %v", err)
		}
	})

	t.Run("Fragments are ordered by index", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc, _ := s.CreateDocument(ctx, fields("Doc", nil))
		for _, idx := range []int{2, 0, 1} {
			if _, err := s.CreateFragment(ctx, doc.Id, "text", idx, knowledgeModel.FragmentMetadata{}); err != nil {
				t.Fatalf("CreateFragment failed: %v", err)
			}
		}
		fragments, err := s.ListFragments(ctx, doc.Id)
		if err != nil {
			t.Fatalf("ListFragments failed: %v", err)
		}
		if len(fragments) != 3 {
			t.Fatalf("expected 3 fragments, got %d", len(fragments))
		}
		for i, f := range fragments {
			if f.Index != i {
				t.Errorf("fragment %d has index %d", i, f.Index)
			}
		}
		if _, err := s.CreateFragment(ctx, 12345, "orphan", 0, knowledgeModel.FragmentMetadata{}); err == nil {
			t.Error("fragment for a missing document should fail")
		}
	})

	t.Run("Embedding requires fragment", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.CreateEmbedding(testContext(), 777, []float32{1}); err == nil {
			t.Error("embedding for a missing fragment should fail")
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc := seed(t, s, fields("Cascade", nil), 3)
		keep := seed(t, s, fields("Keep", nil), 1)

		if err := s.DeleteDocument(ctx, doc.Id); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if _, err := s.FindDocument(ctx, doc.Id); !errors.Is(err, knowledgeModel.ErrDocumentNotFound) {
			t.Errorf("document still present: %v", err)
		}
		fragments, _ := s.ListFragments(ctx, doc.Id)
		if len(fragments) != 0 {
			t.Errorf("fragments survived delete: %d", len(fragments))
		}
		candidates, _ := s.FetchCandidates(ctx, nil, 0)
		if len(candidates) != 1 || candidates[0].DocumentId != keep.Id {
			t.Errorf("expected only the kept document's candidate, got %+v", candidates)
		}
		if err := s.DeleteDocument(ctx, doc.Id); !errors.Is(err, knowledgeModel.ErrDocumentNotFound) {
			t.Errorf("second delete should be not found, got %v", err)
		}
	})

	t.Run("Delete fragments and embeddings", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc := seed(t, s, fields("Doc", nil), 2)
		fragments, _ := s.ListFragments(ctx, doc.Id)

		if err := s.DeleteEmbeddingsOfFragments(ctx, []int64{fragments[0].Id}); err != nil {
			t.Fatalf("DeleteEmbeddingsOfFragments failed: %v", err)
		}
		candidates, _ := s.FetchCandidates(ctx, nil, 0)
		if len(candidates) != 1 || candidates[0].FragmentId != fragments[1].Id {
			t.Errorf("fragment without embedding must not be a candidate: %+v", candidates)
		}

		if err := s.DeleteFragmentsOf(ctx, doc.Id); err != nil {
			t.Fatalf("DeleteFragmentsOf failed: %v", err)
		}
		left, _ := s.ListFragments(ctx, doc.Id)
		if len(left) != 0 {
			t.Errorf("fragments left: %d", len(left))
		}
		if err := s.DeleteEmbeddingsOfFragments(ctx, nil); err != nil {
			t.Errorf("empty delete should be a no-op, got %v", err)
		}
	})

	t.Run("List documents with filter", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		a := seed(t, s, fields("A", knowledgeModel.ScopeOf(1)), 0)
		bFields := fields("B", knowledgeModel.ScopeOf(2))
		bFields.DocumentType = "policy"
		b := seed(t, s, bFields, 0)
		c := seed(t, s, fields("C", nil), 0)

		all, err := s.ListDocuments(ctx, knowledgeModel.DocumentFilter{})
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if len(all) != 3 || all[0].Id != a.Id || all[1].Id != b.Id || all[2].Id != c.Id {
			t.Errorf("expected all documents ordered by id, got %+v", all)
		}
		byScope, _ := s.ListDocuments(ctx, knowledgeModel.DocumentFilter{Scope: knowledgeModel.ScopeOf(1)})
		if len(byScope) != 1 || byScope[0].Id != a.Id {
			t.Errorf("scope filter: %+v", byScope)
		}
		byType, _ := s.ListDocuments(ctx, knowledgeModel.DocumentFilter{DocumentType: "policy"})
		if len(byType) != 1 || byType[0].Id != b.Id {
			t.Errorf("type filter: %+v", byType)
		}
	})

	t.Run("Fetch candidates by scope", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		global := seed(t, s, fields("Global", nil), 2)
		scoped := seed(t, s, fields("Scoped", knowledgeModel.ScopeOf(7)), 1)
		other := seed(t, s, fields("Other", knowledgeModel.ScopeOf(8)), 1)
		inactive := fields("Inactive", nil)
		inactive.Active = false
		seed(t, s, inactive, 1)

		got, err := s.FetchCandidates(ctx, knowledgeModel.ScopeOf(7), 0)
		if err != nil {
			t.Fatalf("FetchCandidates failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
		}
		if got[0].DocumentId != global.Id || got[0].FragmentIndex != 0 ||
			got[1].DocumentId != global.Id || got[1].FragmentIndex != 1 ||
			got[2].DocumentId != scoped.Id {
			t.Errorf("candidates not ordered by document then index: %+v", got)
		}
		if got[2].DocumentTitle != "Scoped" || !knowledgeModel.SameScope(got[2].Scope, knowledgeModel.ScopeOf(7)) {
			t.Errorf("candidate not joined with its document: %+v", got[2])
		}
		if len(got[1].Vector) != 3 || got[1].Vector[0] != 1 || got[1].DecodeErr != nil {
			t.Errorf("vector not decoded: %+v", got[1])
		}

		noScope, _ := s.FetchCandidates(ctx, nil, 0)
		for _, c := range noScope {
			if c.DocumentId == scoped.Id || c.DocumentId == other.Id {
				t.Errorf("scoped document returned without a scope: %+v", c)
			}
		}
		if len(noScope) != 2 {
			t.Errorf("expected the 2 global fragments, got %d", len(noScope))
		}

		limited, _ := s.FetchCandidates(ctx, knowledgeModel.ScopeOf(7), 2)
		if len(limited) != 2 {
			t.Errorf("limit ignored: %d", len(limited))
		}
	})

	t.Run("Transaction rolls back on error", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc := seed(t, s, fields("Stable", nil), 2)
		boom := errors.New("embedding failed")

		err := s.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
			if err := tx.DeleteFragmentsOf(ctx, doc.Id); err != nil {
				return err
			}
			f := doc.Fields()
			f.Version = 2
			if _, err := tx.UpdateDocument(ctx, doc.Id, f); err != nil {
				return err
			}
			if _, err := tx.CreateDocument(ctx, fields("Phantom", nil)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the callback error, got %v", err)
		}

		found, _ := s.FindDocument(ctx, doc.Id)
		if found.Version != 1 {
			t.Errorf("update leaked out of rolled back transaction: version %d", found.Version)
		}
		fragments, _ := s.ListFragments(ctx, doc.Id)
		if len(fragments) != 2 {
			t.Errorf("fragment delete leaked: %d left", len(fragments))
		}
		docs, _ := s.ListDocuments(ctx, knowledgeModel.DocumentFilter{})
		if len(docs) != 1 {
			t.Errorf("phantom document persisted: %+v", docs)
		}
	})

	t.Run("Transaction replaces fragments", func(t *testing.T) {
		s := newStore(t)
		ctx := testContext()
		doc := seed(t, s, fields("Replace", nil), 3)

		err := s.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
			old, err := tx.ListFragments(ctx, doc.Id)
			if err != nil {
				return err
			}
			ids := make([]int64, len(old))
			for i, f := range old {
				ids[i] = f.Id
			}
			if err := tx.DeleteEmbeddingsOfFragments(ctx, ids); err != nil {
				return err
			}
			if err := tx.DeleteFragmentsOf(ctx, doc.Id); err != nil {
				return err
			}
			frag, err := tx.CreateFragment(ctx, doc.Id, "fresh", 0, knowledgeModel.FragmentMetadata{})
			if err != nil {
				return err
			}
			_, err = tx.CreateEmbedding(ctx, frag.Id, []float32{9, 9})
			return err
		})
		if err != nil {
			t.Fatalf("InTransaction failed: %v", err)
		}

		candidates, _ := s.FetchCandidates(ctx, nil, 0)
		if len(candidates) != 1 || candidates[0].Text != "fresh" || candidates[0].Vector[0] != 9 {
			t.Errorf("expected only the new fragment, got %+v", candidates)
		}
	})
}
