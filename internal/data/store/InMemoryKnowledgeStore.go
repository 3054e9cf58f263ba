package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem KnowledgeStore")

type memState struct {
	documents  map[int64]knowledgeModel.Document
	fragments  map[int64]knowledgeModel.Fragment
	embeddings map[int64]knowledgeModel.Embedding // keyed by fragment id

	nextDocument  int64
	nextFragment  int64
	nextEmbedding int64
}

func (s *memState) clone() *memState {
	c := &memState{
		documents:     make(map[int64]knowledgeModel.Document, len(s.documents)),
		fragments:     make(map[int64]knowledgeModel.Fragment, len(s.fragments)),
		embeddings:    make(map[int64]knowledgeModel.Embedding, len(s.embeddings)),
		nextDocument:  s.nextDocument,
		nextFragment:  s.nextFragment,
		nextEmbedding: s.nextEmbedding,
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.fragments {
		c.fragments[k] = v
	}
	for k, v := range s.embeddings {
		c.embeddings[k] = v
	}
	return c
}

// InMemoryKnowledgeStore keeps everything in maps. Transactions work on a copy that replaces the
// live state on success.
type InMemoryKnowledgeStore struct {
	mu    sync.RWMutex
	state *memState
}

func InitInMemoryKnowledgeStore() *InMemoryKnowledgeStore {
	return &InMemoryKnowledgeStore{
		state: &memState{
			documents:  make(map[int64]knowledgeModel.Document),
			fragments:  make(map[int64]knowledgeModel.Fragment),
			embeddings: make(map[int64]knowledgeModel.Embedding),
		},
	}
}

func (store *InMemoryKnowledgeStore) read() memWriter {
	return memWriter{state: store.state}
}

func (store *InMemoryKnowledgeStore) FindDocument(ctx context.Context, id int64) (knowledgeModel.Document, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.read().FindDocument(ctx, id)
}

func (store *InMemoryKnowledgeStore) ListFragments(ctx context.Context, documentId int64) ([]knowledgeModel.Fragment, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.read().ListFragments(ctx, documentId)
}

func (store *InMemoryKnowledgeStore) CreateDocument(ctx context.Context, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().CreateDocument(ctx, fields)
}

func (store *InMemoryKnowledgeStore) UpdateDocument(ctx context.Context, id int64, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().UpdateDocument(ctx, id, fields)
}

func (store *InMemoryKnowledgeStore) DeleteDocument(ctx context.Context, id int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().DeleteDocument(ctx, id)
}

func (store *InMemoryKnowledgeStore) CreateFragment(ctx context.Context, documentId int64, text string, index int, metadata knowledgeModel.FragmentMetadata) (knowledgeModel.Fragment, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().CreateFragment(ctx, documentId, text, index, metadata)
}

func (store *InMemoryKnowledgeStore) DeleteFragmentsOf(ctx context.Context, documentId int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().DeleteFragmentsOf(ctx, documentId)
}

func (store *InMemoryKnowledgeStore) CreateEmbedding(ctx context.Context, fragmentId int64, vector []float32) (knowledgeModel.Embedding, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().CreateEmbedding(ctx, fragmentId, vector)
}

func (store *InMemoryKnowledgeStore) DeleteEmbeddingsOfFragments(ctx context.Context, fragmentIds []int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.read().DeleteEmbeddingsOfFragments(ctx, fragmentIds)
}

func (store *InMemoryKnowledgeStore) ListDocuments(ctx context.Context, filter knowledgeModel.DocumentFilter) ([]knowledgeModel.Document, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	docs := make([]knowledgeModel.Document, 0)
	for _, d := range store.state.documents {
		if filter.Matches(d) {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Id < docs[j].Id })
	return docs, nil
}

func (store *InMemoryKnowledgeStore) FetchCandidates(ctx context.Context, scope *int64, limit int) ([]knowledgeModel.Candidate, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	docIds := make([]int64, 0, len(store.state.documents))
	for id, d := range store.state.documents {
		if d.Active && (d.Scope == nil || knowledgeModel.SameScope(d.Scope, scope)) {
			docIds = append(docIds, id)
		}
	}
	sort.Slice(docIds, func(i, j int) bool { return docIds[i] < docIds[j] })

	candidates := make([]knowledgeModel.Candidate, 0)
	for _, docId := range docIds {
		doc := store.state.documents[docId]
		fragments, _ := store.read().ListFragments(ctx, docId)
		for _, f := range fragments {
			if limit > 0 && len(candidates) >= limit {
				return candidates, nil
			}
			e, ok := store.state.embeddings[f.Id]
			if !ok {
				continue
			}
			candidates = append(candidates, knowledgeModel.Candidate{
				FragmentId:    f.Id,
				DocumentId:    doc.Id,
				DocumentTitle: doc.Title,
				DocumentType:  doc.DocumentType,
				Scope:         doc.Scope,
				FragmentIndex: f.Index,
				Text:          f.Text,
				Vector:        e.Vector,
			})
		}
	}
	return candidates, nil
}

func (store *InMemoryKnowledgeStore) InTransaction(ctx context.Context, fn func(tx knowledgeModel.KnowledgeWriter) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	staged := store.state.clone()
	if err := fn(memWriter{state: staged}); err != nil {
		inMemLogger.Debug("transaction rolled back", "error", err)
		return err
	}
	store.state = staged
	return nil
}

func (store *InMemoryKnowledgeStore) Close() error {
	return nil
}

// memWriter applies operations to one state without locking; callers hold the store lock.
type memWriter struct {
	state *memState
}

func (w memWriter) FindDocument(ctx context.Context, id int64) (knowledgeModel.Document, error) {
	d, ok := w.state.documents[id]
	if !ok {
		return knowledgeModel.Document{}, knowledgeModel.ErrDocumentNotFound
	}
	return d, nil
}

func (w memWriter) ListFragments(ctx context.Context, documentId int64) ([]knowledgeModel.Fragment, error) {
	fragments := make([]knowledgeModel.Fragment, 0)
	for _, f := range w.state.fragments {
		if f.DocumentId == documentId {
			fragments = append(fragments, f)
		}
	}
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].Index < fragments[j].Index })
	return fragments, nil
}

func (w memWriter) CreateDocument(ctx context.Context, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	w.state.nextDocument++
	now := time.Now().UTC()
	d := documentFromFields(w.state.nextDocument, fields, now, now)
	w.state.documents[d.Id] = d
	return d, nil
}

func (w memWriter) UpdateDocument(ctx context.Context, id int64, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	existing, ok := w.state.documents[id]
	if !ok {
		return knowledgeModel.Document{}, knowledgeModel.ErrDocumentNotFound
	}
	d := documentFromFields(id, fields, existing.CreatedAt, time.Now().UTC())
	w.state.documents[id] = d
	return d, nil
}

func (w memWriter) DeleteDocument(ctx context.Context, id int64) error {
	if _, ok := w.state.documents[id]; !ok {
		return knowledgeModel.ErrDocumentNotFound
	}
	if err := w.DeleteFragmentsOf(ctx, id); err != nil {
		return err
	}
	delete(w.state.documents, id)
	return nil
}

func (w memWriter) CreateFragment(ctx context.Context, documentId int64, text string, index int, metadata knowledgeModel.FragmentMetadata) (knowledgeModel.Fragment, error) {
	if _, ok := w.state.documents[documentId]; !ok {
		return knowledgeModel.Fragment{}, knowledgeModel.ErrDocumentNotFound
	}
	w.state.nextFragment++
	f := knowledgeModel.Fragment{
		Id:         w.state.nextFragment,
		DocumentId: documentId,
		Text:       text,
		Index:      index,
		Metadata:   metadata,
	}
	w.state.fragments[f.Id] = f
	return f, nil
}

// DeleteFragmentsOf also drops the embeddings of the removed fragments.
func (w memWriter) DeleteFragmentsOf(ctx context.Context, documentId int64) error {
	for id, f := range w.state.fragments {
		if f.DocumentId == documentId {
			delete(w.state.embeddings, id)
			delete(w.state.fragments, id)
		}
	}
	return nil
}

func (w memWriter) CreateEmbedding(ctx context.Context, fragmentId int64, vector []float32) (knowledgeModel.Embedding, error) {
	if _, ok := w.state.fragments[fragmentId]; !ok {
		return knowledgeModel.Embedding{}, errFragmentNotFound(fragmentId)
	}
	w.state.nextEmbedding++
	e := knowledgeModel.Embedding{
		Id:         w.state.nextEmbedding,
		FragmentId: fragmentId,
		Vector:     append(knowledgeModel.Vector(nil), vector...),
	}
	w.state.embeddings[fragmentId] = e
	return e, nil
}

func (w memWriter) DeleteEmbeddingsOfFragments(ctx context.Context, fragmentIds []int64) error {
	for _, id := range fragmentIds {
		delete(w.state.embeddings, id)
	}
	return nil
}
