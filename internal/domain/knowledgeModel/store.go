package knowledgeModel

import "context"

// KnowledgeWriter is the write side of the knowledge store. Inside InTransaction every call
// belongs to the same unit of work.
type KnowledgeWriter interface {
	FindDocument(ctx context.Context, id int64) (Document, error)
	ListFragments(ctx context.Context, documentId int64) ([]Fragment, error)

	CreateDocument(ctx context.Context, fields DocumentFields) (Document, error)
	UpdateDocument(ctx context.Context, id int64, fields DocumentFields) (Document, error)
	// DeleteDocument cascades to fragments and their embeddings.
	DeleteDocument(ctx context.Context, id int64) error

	CreateFragment(ctx context.Context, documentId int64, text string, index int, metadata FragmentMetadata) (Fragment, error)
	DeleteFragmentsOf(ctx context.Context, documentId int64) error

	CreateEmbedding(ctx context.Context, fragmentId int64, vector []float32) (Embedding, error)
	DeleteEmbeddingsOfFragments(ctx context.Context, fragmentIds []int64) error
}

type KnowledgeStore interface {
	KnowledgeWriter

	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)

	// FetchCandidates returns fragments of active documents that are scope-less or match scope,
	// ordered by document id then fragment index, at most limit rows; limit <= 0 returns all of them.
	FetchCandidates(ctx context.Context, scope *int64, limit int) ([]Candidate, error)

	// InTransaction runs fn atomically: either every write made through tx is visible or none is.
	InTransaction(ctx context.Context, fn func(tx KnowledgeWriter) error) error

	Close() error
}
