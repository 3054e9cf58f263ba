package store_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/data/redisStore"
	"github.com/akolanti/ClinicRAG/internal/data/store"
	"github.com/akolanti/ClinicRAG/internal/data/storeContract"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisKnowledgeStore(t *testing.T) (*store.RedisKnowledgeStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.TestKnowledgeStore(redisStore.NewTestStore(client))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestInMemoryKnowledgeStore_Contract(t *testing.T) {
	storeContract.Run(t, func(t *testing.T) knowledgeModel.KnowledgeStore {
		return store.InitInMemoryKnowledgeStore()
	})
}

func TestRedisKnowledgeStore_Contract(t *testing.T) {
	storeContract.Run(t, func(t *testing.T) knowledgeModel.KnowledgeStore {
		s, _ := newRedisKnowledgeStore(t)
		return s
	})
}

func TestRedisKnowledgeStore_LegacyAndBrokenVectors(t *testing.T) {
	s, mr := newRedisKnowledgeStore(t)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")

	doc, err := s.CreateDocument(ctx, knowledgeModel.DocumentFields{Title: "Legacy", Content: "x", Version: 1, Active: true})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	legacy, _ := s.CreateFragment(ctx, doc.Id, "legacy", 0, knowledgeModel.FragmentMetadata{})
	broken, _ := s.CreateFragment(ctx, doc.Id, "broken", 1, knowledgeModel.FragmentMetadata{})

	// rows written by the old importer kept vectors as delimited strings
	mr.Set("kb:fragment:"+itoa(legacy.Id)+":embedding", `{"id":1,"fragment_id":`+itoa(legacy.Id)+`,"vector":"0.5,0.25"}`)
	mr.Set("kb:fragment:"+itoa(broken.Id)+":embedding", `{"id":2,"fragment_id":`+itoa(broken.Id)+`,"vector":"0.5,abc"}`)

	candidates, err := s.FetchCandidates(ctx, nil, 0)
	if err != nil {
		t.Fatalf("FetchCandidates failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].DecodeErr != nil || len(candidates[0].Vector) != 2 || candidates[0].Vector[1] != 0.25 {
		t.Errorf("legacy vector not decoded: %+v", candidates[0])
	}
	if candidates[1].DecodeErr == nil || candidates[1].Vector != nil {
		t.Errorf("broken vector should carry DecodeErr: %+v", candidates[1])
	}
}

func TestRedisKnowledgeStore_Race(t *testing.T) {
	s, _ := newRedisKnowledgeStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateDocument(ctx, knowledgeModel.DocumentFields{Title: "Doc", Content: "c", Version: 1, Active: true})
			if err != nil {
				t.Errorf("CreateDocument %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	docs, err := s.ListDocuments(ctx, knowledgeModel.DocumentFilter{})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 20 {
		t.Errorf("expected 20 documents, got %d", len(docs))
	}
	seen := make(map[int64]bool)
	for _, d := range docs {
		if seen[d.Id] {
			t.Errorf("duplicate id %d", d.Id)
		}
		seen[d.Id] = true
	}
}

func TestInMemoryKnowledgeStore_ConcurrentTransactions(t *testing.T) {
	s := store.InitInMemoryKnowledgeStore()
	ctx := context.Background()
	doc, _ := s.CreateDocument(ctx, knowledgeModel.DocumentFields{Title: "Doc", Content: "c", Version: 1, Active: true})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
				if err := tx.DeleteFragmentsOf(ctx, doc.Id); err != nil {
					return err
				}
				for idx := 0; idx < 3; idx++ {
					f, err := tx.CreateFragment(ctx, doc.Id, "v"+itoa(int64(i)), idx, knowledgeModel.FragmentMetadata{})
					if err != nil {
						return err
					}
					if _, err := tx.CreateEmbedding(ctx, f.Id, []float32{1}); err != nil {
						return err
					}
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	fragments, _ := s.ListFragments(ctx, doc.Id)
	if len(fragments) != 3 {
		t.Fatalf("expected exactly one generation of 3 fragments, got %d", len(fragments))
	}
	for _, f := range fragments[1:] {
		if f.Text != fragments[0].Text {
			t.Errorf("fragments mix two transactions: %q vs %q", f.Text, fragments[0].Text)
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
