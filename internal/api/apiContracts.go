package api

import "time"

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    int    `json:"code" example:"404"`
	Message string `json:"message" example:"Document not found"`
}

type Source struct {
	DocumentId    int64  `json:"documentId" example:"7"`
	DocumentTitle string `json:"documentTitle" example:"Подготовка к ФГДС"`
	Scope         *int64 `json:"scope" example:"3"`
	FragmentIndex int    `json:"fragmentIndex" example:"0"`
}

type AskResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

type SearchResult struct {
	DocumentId    int64   `json:"documentId"`
	DocumentTitle string  `json:"documentTitle"`
	DocumentType  string  `json:"documentType"`
	Scope         *int64  `json:"scope"`
	FragmentIndex int     `json:"fragmentIndex"`
	Text          string  `json:"text"`
	Similarity    float64 `json:"similarity" example:"0.82"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// DocumentResponse is returned by upload and update; Active and UpdatedAt are filled on reads too.
type DocumentResponse struct {
	Id           int64     `json:"id" example:"7"`
	Title        string    `json:"title"`
	DocumentType string    `json:"documentType" example:"preparation"`
	Scope        *int64    `json:"scope"`
	Version      int       `json:"version" example:"2"`
	Active       bool      `json:"active"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type DocumentDetailResponse struct {
	DocumentResponse
	Content string `json:"content"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type DeleteResponse struct {
	Id      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// requests---------------------

type AskRequest struct {
	Question string `json:"question" validate:"required" example:"Можно ли пить воду перед ФГДС?"`
	Scope    *int64 `json:"scope,omitempty" example:"3"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Scope *int64 `json:"scope,omitempty"`
	TopK  int    `json:"topK,omitempty" example:"5"`
}

type DocumentRequest struct {
	Title        string `json:"title" validate:"required"`
	Content      string `json:"content" validate:"required"`
	DocumentType string `json:"documentType"`
	Scope        *int64 `json:"scope,omitempty"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
