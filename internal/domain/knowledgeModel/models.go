package knowledgeModel

import "time"

// Document is a free-text knowledge article. Scope is nil for documents that apply to every service.
type Document struct {
	Id           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	DocumentType string    `json:"document_type"`
	Scope        *int64    `json:"scope,omitempty"`
	Version      int       `json:"version"`
	Active       bool      `json:"active"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentFields is the writable part of a Document
type DocumentFields struct {
	Title        string
	Content      string
	DocumentType string
	Scope        *int64
	Version      int
	Active       bool
	CreatedBy    string
}

func (d Document) Fields() DocumentFields {
	return DocumentFields{
		Title:        d.Title,
		Content:      d.Content,
		DocumentType: d.DocumentType,
		Scope:        d.Scope,
		Version:      d.Version,
		Active:       d.Active,
		CreatedBy:    d.CreatedBy,
	}
}

type DocumentFilter struct {
	Scope        *int64
	DocumentType string
}

func (f DocumentFilter) Matches(d Document) bool {
	if f.DocumentType != "" && f.DocumentType != d.DocumentType {
		return false
	}
	if f.Scope != nil && (d.Scope == nil || *d.Scope != *f.Scope) {
		return false
	}
	return true
}

// FragmentMetadata is denormalized from the owning document when the fragment is created.
type FragmentMetadata struct {
	DocumentType string `json:"document_type,omitempty"`
	Scope        *int64 `json:"scope,omitempty"`
}

type Fragment struct {
	Id         int64            `json:"id"`
	DocumentId int64            `json:"document_id"`
	Text       string           `json:"text"`
	Index      int              `json:"index"`
	Metadata   FragmentMetadata `json:"metadata"`
}

type Embedding struct {
	Id         int64  `json:"id"`
	FragmentId int64  `json:"fragment_id"`
	Vector     Vector `json:"vector"`
}

// Candidate is a fragment joined with its document and decoded vector, as returned by FetchCandidates.
// DecodeErr is set when the stored vector could not be decoded; Vector is nil in that case.
type Candidate struct {
	FragmentId    int64
	DocumentId    int64
	DocumentTitle string
	DocumentType  string
	Scope         *int64
	FragmentIndex int
	Text          string
	Vector        []float32
	DecodeErr     error
}

type ScoredFragment struct {
	Candidate
	Similarity float64
}

// Source is the citation descriptor returned with an answer.
type Source struct {
	DocumentId    int64  `json:"documentId"`
	DocumentTitle string `json:"documentTitle"`
	Scope         *int64 `json:"scope"`
	FragmentIndex int    `json:"fragmentIndex"`
}

type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"answer"`
	Sources  []Source `json:"sources"`

	// Degraded marks static fallback messages; they are never cached.
	Degraded bool `json:"-"`
}

// UpsertRequest carries an upload or a re-upload when ExistingId is set.
type UpsertRequest struct {
	Title        string
	Content      string
	DocumentType string
	Scope        *int64
	Actor        string
	ExistingId   *int64
}

func SameScope(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ScopeOf(v int64) *int64 {
	return &v
}
