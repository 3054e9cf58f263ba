package mcpServer

import (
	"context"
	"time"

	"github.com/akolanti/ClinicRAG/internal/adapter"
	"github.com/akolanti/ClinicRAG/internal/api"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	Question string `json:"question" jsonschema:"the patient question, in any language the documents are written in"`
	Scope    *int64 `json:"scope,omitempty" jsonschema:"service id the question is about; omit for general clinic questions"`
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"text to look up in the clinic documents"`
	Scope *int64 `json:"scope,omitempty" jsonschema:"service id to restrict the search to; general documents are always included"`
	TopK  int    `json:"topK,omitempty" jsonschema:"maximum number of fragments to return (default from server settings)"`
}

type ListInput struct {
	Scope        *int64 `json:"scope,omitempty" jsonschema:"only documents of this service id"`
	DocumentType string `json:"documentType,omitempty" jsonschema:"only documents of this type, e.g. preparation"`
}

type DocumentSummary struct {
	Id           int64  `json:"id"`
	Title        string `json:"title"`
	DocumentType string `json:"documentType"`
	Scope        *int64 `json:"scope"`
	Version      int    `json:"version"`
	Active       bool   `json:"active"`
	UpdatedAt    string `json:"updatedAt"`
}

type ListOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_knowledge_base",
		Description: "Answer a patient question using only the clinic documents; returns the answer and the cited documents",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_knowledge_base",
		Description: "Return the clinic document fragments most relevant to a query, ranked by similarity",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents stored in the clinic knowledge base",
	}, s.handleList)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, api.AskResponse, error) {
	answer, err := s.service.Ask(ctx, input.Question, input.Scope)
	if err != nil {
		s.logger.WithTrace(ctx).Warn("ask tool failed", "error", err)
		return nil, api.AskResponse{}, err
	}
	return nil, adapter.ToAskResponse(answer), nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, api.SearchResponse, error) {
	results, err := s.service.Search(ctx, input.Query, input.Scope, input.TopK)
	if err != nil {
		s.logger.WithTrace(ctx).Warn("search tool failed", "error", err)
		return nil, api.SearchResponse{}, err
	}
	return nil, adapter.ToSearchResponse(results), nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.service.ListDocuments(ctx, knowledgeModel.DocumentFilter{Scope: input.Scope, DocumentType: input.DocumentType})
	if err != nil {
		return nil, ListOutput{}, err
	}

	output := ListOutput{Documents: make([]DocumentSummary, len(docs)), Count: len(docs)}
	for i, d := range docs {
		output.Documents[i] = DocumentSummary{
			Id:           d.Id,
			Title:        d.Title,
			DocumentType: d.DocumentType,
			Scope:        d.Scope,
			Version:      d.Version,
			Active:       d.Active,
			UpdatedAt:    d.UpdatedAt.Format(time.RFC3339),
		}
	}
	return nil, output, nil
}
