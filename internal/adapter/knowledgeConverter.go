package adapter

import (
	"github.com/akolanti/ClinicRAG/internal/api"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func ToAskResponse(answer knowledgeModel.Answer) api.AskResponse {
	sources := make([]api.Source, len(answer.Sources))
	for i, s := range answer.Sources {
		sources[i] = api.Source{
			DocumentId:    s.DocumentId,
			DocumentTitle: s.DocumentTitle,
			Scope:         s.Scope,
			FragmentIndex: s.FragmentIndex,
		}
	}
	return api.AskResponse{
		Question: answer.Question,
		Answer:   answer.Text,
		Sources:  sources,
	}
}

func ToSearchResponse(results []knowledgeModel.ScoredFragment) api.SearchResponse {
	out := make([]api.SearchResult, len(results))
	for i, r := range results {
		out[i] = api.SearchResult{
			DocumentId:    r.DocumentId,
			DocumentTitle: r.DocumentTitle,
			DocumentType:  r.DocumentType,
			Scope:         r.Scope,
			FragmentIndex: r.FragmentIndex,
			Text:          r.Text,
			Similarity:    r.Similarity,
		}
	}
	return api.SearchResponse{Results: out}
}

func ToDocumentResponse(doc knowledgeModel.Document) api.DocumentResponse {
	return api.DocumentResponse{
		Id:           doc.Id,
		Title:        doc.Title,
		DocumentType: doc.DocumentType,
		Scope:        doc.Scope,
		Version:      doc.Version,
		Active:       doc.Active,
		CreatedBy:    doc.CreatedBy,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func ToDocumentDetailResponse(doc knowledgeModel.Document) api.DocumentDetailResponse {
	return api.DocumentDetailResponse{
		DocumentResponse: ToDocumentResponse(doc),
		Content:          doc.Content,
	}
}

func ToDocumentListResponse(docs []knowledgeModel.Document) api.DocumentListResponse {
	out := make([]api.DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = ToDocumentResponse(d)
	}
	return api.DocumentListResponse{Documents: out}
}

func ToUpsertRequest(req api.DocumentRequest, actor string, existingId *int64) knowledgeModel.UpsertRequest {
	return knowledgeModel.UpsertRequest{
		Title:        req.Title,
		Content:      req.Content,
		DocumentType: req.DocumentType,
		Scope:        req.Scope,
		Actor:        actor,
		ExistingId:   existingId,
	}
}

func BadRequest(message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Error: api.ErrorBody{
			Code:    code,
			Message: message,
		},
	}
}
