package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/akolanti/ClinicRAG/internal/data/redisStore"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

const (
	documentSetKey  = "kb:documents"
	documentSeqKey  = "kb:seq:document"
	fragmentSeqKey  = "kb:seq:fragment"
	embeddingSeqKey = "kb:seq:embedding"
)

func documentKey(id int64) string          { return fmt.Sprintf("kb:document:%d", id) }
func documentFragmentsKey(id int64) string { return fmt.Sprintf("kb:document:%d:fragments", id) }
func fragmentKey(id int64) string          { return fmt.Sprintf("kb:fragment:%d", id) }
func embeddingKey(fragmentId int64) string { return fmt.Sprintf("kb:fragment:%d:embedding", fragmentId) }

// RedisKnowledgeStore keeps JSON records in Redis. Writes of one transaction are queued on a
// MULTI/EXEC pipeline; ids are taken with INCR before the pipeline runs, so a rollback leaves gaps.
// Reads inside a transaction see committed data plus the documents and fragments created in it.
type RedisKnowledgeStore struct {
	store  *redisStore.Store
	owned  bool
	logger *logger_i.Logger
}

func GetRedisKnowledgeStore(ctx context.Context, opts redisStore.Options) (*RedisKnowledgeStore, error) {
	s, err := redisStore.GetRedisStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &RedisKnowledgeStore{
		store:  s,
		logger: logger_i.NewLogger("KnowledgeStore"),
	}, nil
}

// TestKnowledgeStore wraps a store built with redisStore.NewTestStore; Close closes its client.
func TestKnowledgeStore(store *redisStore.Store) *RedisKnowledgeStore {
	return &RedisKnowledgeStore{
		store:  store,
		owned:  true,
		logger: logger_i.NewLogger("test redis"),
	}
}

func (s *RedisKnowledgeStore) newWriter() *redisWriter {
	return &redisWriter{
		s:                s,
		pipe:             s.store.TxPipeline(),
		stagedDocuments:  make(map[int64]knowledgeModel.Document),
		stagedFragments:  make(map[int64]bool),
		deletedDocuments: make(map[int64]bool),
	}
}

func (s *RedisKnowledgeStore) InTransaction(ctx context.Context, fn func(tx knowledgeModel.KnowledgeWriter) error) error {
	log := s.logger.WithTrace(ctx)
	w := s.newWriter()
	if err := fn(w); err != nil {
		w.pipe.Discard()
		log.Debug("transaction discarded", "error", err)
		return err
	}
	if _, err := w.pipe.Exec(ctx); err != nil {
		log.Error("transaction exec failed", "error", err)
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

// single runs one write as its own transaction.
func single[T any](ctx context.Context, s *RedisKnowledgeStore, op func(w *redisWriter) (T, error)) (T, error) {
	var out T
	err := s.InTransaction(ctx, func(tx knowledgeModel.KnowledgeWriter) error {
		var err error
		out, err = op(tx.(*redisWriter))
		return err
	})
	return out, err
}

func (s *RedisKnowledgeStore) FindDocument(ctx context.Context, id int64) (knowledgeModel.Document, error) {
	return s.newWriter().FindDocument(ctx, id)
}

func (s *RedisKnowledgeStore) ListFragments(ctx context.Context, documentId int64) ([]knowledgeModel.Fragment, error) {
	return s.newWriter().ListFragments(ctx, documentId)
}

func (s *RedisKnowledgeStore) CreateDocument(ctx context.Context, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	return single(ctx, s, func(w *redisWriter) (knowledgeModel.Document, error) { return w.CreateDocument(ctx, fields) })
}

func (s *RedisKnowledgeStore) UpdateDocument(ctx context.Context, id int64, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	return single(ctx, s, func(w *redisWriter) (knowledgeModel.Document, error) { return w.UpdateDocument(ctx, id, fields) })
}

func (s *RedisKnowledgeStore) DeleteDocument(ctx context.Context, id int64) error {
	_, err := single(ctx, s, func(w *redisWriter) (struct{}, error) { return struct{}{}, w.DeleteDocument(ctx, id) })
	return err
}

func (s *RedisKnowledgeStore) CreateFragment(ctx context.Context, documentId int64, text string, index int, metadata knowledgeModel.FragmentMetadata) (knowledgeModel.Fragment, error) {
	return single(ctx, s, func(w *redisWriter) (knowledgeModel.Fragment, error) {
		return w.CreateFragment(ctx, documentId, text, index, metadata)
	})
}

func (s *RedisKnowledgeStore) DeleteFragmentsOf(ctx context.Context, documentId int64) error {
	_, err := single(ctx, s, func(w *redisWriter) (struct{}, error) { return struct{}{}, w.DeleteFragmentsOf(ctx, documentId) })
	return err
}

func (s *RedisKnowledgeStore) CreateEmbedding(ctx context.Context, fragmentId int64, vector []float32) (knowledgeModel.Embedding, error) {
	return single(ctx, s, func(w *redisWriter) (knowledgeModel.Embedding, error) { return w.CreateEmbedding(ctx, fragmentId, vector) })
}

func (s *RedisKnowledgeStore) DeleteEmbeddingsOfFragments(ctx context.Context, fragmentIds []int64) error {
	_, err := single(ctx, s, func(w *redisWriter) (struct{}, error) {
		return struct{}{}, w.DeleteEmbeddingsOfFragments(ctx, fragmentIds)
	})
	return err
}

func (s *RedisKnowledgeStore) documentIds(ctx context.Context) ([]int64, error) {
	members, err := s.store.SetMembers(ctx, documentSetKey)
	if err != nil {
		return nil, err
	}
	return parseIds(members)
}

func (s *RedisKnowledgeStore) loadDocuments(ctx context.Context, ids []int64) ([]knowledgeModel.Document, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = documentKey(id)
	}
	values, err := s.store.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	docs := make([]knowledgeModel.Document, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var d knowledgeModel.Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode document %d: %w", ids[i], err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *RedisKnowledgeStore) ListDocuments(ctx context.Context, filter knowledgeModel.DocumentFilter) ([]knowledgeModel.Document, error) {
	ids, err := s.documentIds(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.loadDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	docs := make([]knowledgeModel.Document, 0, len(all))
	for _, d := range all {
		if filter.Matches(d) {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

type storedEmbedding struct {
	Id         int64           `json:"id"`
	FragmentId int64           `json:"fragment_id"`
	Vector     json.RawMessage `json:"vector"`
}

func (s *RedisKnowledgeStore) FetchCandidates(ctx context.Context, scope *int64, limit int) ([]knowledgeModel.Candidate, error) {
	ids, err := s.documentIds(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.loadDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]knowledgeModel.Candidate, 0)
	for _, doc := range docs {
		if !doc.Active || (doc.Scope != nil && !knowledgeModel.SameScope(doc.Scope, scope)) {
			continue
		}
		fragments, err := s.ListFragments(ctx, doc.Id)
		if err != nil {
			return nil, err
		}
		embKeys := make([]string, len(fragments))
		for i, f := range fragments {
			embKeys[i] = embeddingKey(f.Id)
		}
		embeddings, err := s.store.MGet(ctx, embKeys...)
		if err != nil {
			return nil, err
		}

		for i, f := range fragments {
			if limit > 0 && len(candidates) >= limit {
				return candidates, nil
			}
			raw, ok := embeddings[i].(string)
			if !ok {
				continue
			}
			c := knowledgeModel.Candidate{
				FragmentId:    f.Id,
				DocumentId:    doc.Id,
				DocumentTitle: doc.Title,
				DocumentType:  doc.DocumentType,
				Scope:         doc.Scope,
				FragmentIndex: f.Index,
				Text:          f.Text,
			}
			var stored storedEmbedding
			if err := json.Unmarshal([]byte(raw), &stored); err != nil {
				c.DecodeErr = err
			} else {
				var v knowledgeModel.Vector
				if err := v.UnmarshalJSON(stored.Vector); err != nil {
					c.DecodeErr = err
				} else {
					c.Vector = v
				}
			}
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func (s *RedisKnowledgeStore) Close() error {
	if !s.owned {
		// shared clients are closed by redisStore on shutdown
		return nil
	}
	return s.store.Close()
}

type redisWriter struct {
	s    *RedisKnowledgeStore
	pipe redis.Pipeliner

	stagedDocuments  map[int64]knowledgeModel.Document
	stagedFragments  map[int64]bool
	deletedDocuments map[int64]bool
}

func (w *redisWriter) FindDocument(ctx context.Context, id int64) (knowledgeModel.Document, error) {
	if w.deletedDocuments[id] {
		return knowledgeModel.Document{}, knowledgeModel.ErrDocumentNotFound
	}
	if d, ok := w.stagedDocuments[id]; ok {
		return d, nil
	}
	raw, err := w.s.store.Get(ctx, documentKey(id))
	if w.s.store.IsNil(err) {
		return knowledgeModel.Document{}, knowledgeModel.ErrDocumentNotFound
	}
	if err != nil {
		return knowledgeModel.Document{}, err
	}
	var d knowledgeModel.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return knowledgeModel.Document{}, fmt.Errorf("decode document %d: %w", id, err)
	}
	return d, nil
}

func (w *redisWriter) fragmentIds(ctx context.Context, documentId int64) ([]int64, error) {
	members, err := w.s.store.ListGetAll(ctx, documentFragmentsKey(documentId))
	if err != nil {
		return nil, err
	}
	return parseIds(members)
}

func (w *redisWriter) ListFragments(ctx context.Context, documentId int64) ([]knowledgeModel.Fragment, error) {
	ids, err := w.fragmentIds(ctx, documentId)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fragmentKey(id)
	}
	values, err := w.s.store.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	fragments := make([]knowledgeModel.Fragment, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var f knowledgeModel.Fragment
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("decode fragment %d: %w", ids[i], err)
		}
		fragments = append(fragments, f)
	}
	sort.SliceStable(fragments, func(i, j int) bool { return fragments[i].Index < fragments[j].Index })
	return fragments, nil
}

func (w *redisWriter) putDocument(ctx context.Context, d knowledgeModel.Document) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	w.pipe.Set(ctx, documentKey(d.Id), data, 0)
	w.pipe.SAdd(ctx, documentSetKey, d.Id)
	w.stagedDocuments[d.Id] = d
	delete(w.deletedDocuments, d.Id)
	return nil
}

func (w *redisWriter) CreateDocument(ctx context.Context, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	id, err := w.s.store.Incr(ctx, documentSeqKey)
	if err != nil {
		return knowledgeModel.Document{}, err
	}
	now := time.Now().UTC()
	d := documentFromFields(id, fields, now, now)
	return d, w.putDocument(ctx, d)
}

func (w *redisWriter) UpdateDocument(ctx context.Context, id int64, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	existing, err := w.FindDocument(ctx, id)
	if err != nil {
		return knowledgeModel.Document{}, err
	}
	d := documentFromFields(id, fields, existing.CreatedAt, time.Now().UTC())
	return d, w.putDocument(ctx, d)
}

func (w *redisWriter) DeleteDocument(ctx context.Context, id int64) error {
	if _, err := w.FindDocument(ctx, id); err != nil {
		return err
	}
	if err := w.DeleteFragmentsOf(ctx, id); err != nil {
		return err
	}
	w.pipe.Del(ctx, documentKey(id))
	w.pipe.SRem(ctx, documentSetKey, id)
	delete(w.stagedDocuments, id)
	w.deletedDocuments[id] = true
	return nil
}

func (w *redisWriter) CreateFragment(ctx context.Context, documentId int64, text string, index int, metadata knowledgeModel.FragmentMetadata) (knowledgeModel.Fragment, error) {
	if _, err := w.FindDocument(ctx, documentId); err != nil {
		return knowledgeModel.Fragment{}, err
	}
	id, err := w.s.store.Incr(ctx, fragmentSeqKey)
	if err != nil {
		return knowledgeModel.Fragment{}, err
	}
	f := knowledgeModel.Fragment{Id: id, DocumentId: documentId, Text: text, Index: index, Metadata: metadata}
	data, err := json.Marshal(f)
	if err != nil {
		return knowledgeModel.Fragment{}, err
	}
	w.pipe.Set(ctx, fragmentKey(id), data, 0)
	w.pipe.RPush(ctx, documentFragmentsKey(documentId), id)
	w.stagedFragments[id] = true
	return f, nil
}

// DeleteFragmentsOf also drops the embeddings of the removed fragments.
func (w *redisWriter) DeleteFragmentsOf(ctx context.Context, documentId int64) error {
	ids, err := w.fragmentIds(ctx, documentId)
	if err != nil {
		return err
	}
	keys := make([]string, 0, 2*len(ids)+1)
	for _, id := range ids {
		keys = append(keys, fragmentKey(id), embeddingKey(id))
	}
	keys = append(keys, documentFragmentsKey(documentId))
	w.pipe.Del(ctx, keys...)
	return nil
}

func (w *redisWriter) CreateEmbedding(ctx context.Context, fragmentId int64, vector []float32) (knowledgeModel.Embedding, error) {
	if !w.stagedFragments[fragmentId] {
		exists, err := w.s.store.Exists(ctx, fragmentKey(fragmentId))
		if err != nil {
			return knowledgeModel.Embedding{}, err
		}
		if !exists {
			return knowledgeModel.Embedding{}, errFragmentNotFound(fragmentId)
		}
	}
	id, err := w.s.store.Incr(ctx, embeddingSeqKey)
	if err != nil {
		return knowledgeModel.Embedding{}, err
	}
	e := knowledgeModel.Embedding{Id: id, FragmentId: fragmentId, Vector: append(knowledgeModel.Vector(nil), vector...)}
	data, err := json.Marshal(storedEmbedding{
		Id:         e.Id,
		FragmentId: fragmentId,
		Vector:     json.RawMessage(knowledgeModel.EncodeVector(vector)),
	})
	if err != nil {
		return knowledgeModel.Embedding{}, err
	}
	w.pipe.Set(ctx, embeddingKey(fragmentId), data, 0)
	return e, nil
}

func (w *redisWriter) DeleteEmbeddingsOfFragments(ctx context.Context, fragmentIds []int64) error {
	if len(fragmentIds) == 0 {
		return nil
	}
	keys := make([]string, len(fragmentIds))
	for i, id := range fragmentIds {
		keys[i] = embeddingKey(id)
	}
	w.pipe.Del(ctx, keys...)
	return nil
}

func parseIds(members []string) ([]int64, error) {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
