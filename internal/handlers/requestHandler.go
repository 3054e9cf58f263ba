package handlers

import (
	"net/http"

	"github.com/akolanti/ClinicRAG/internal/adapter"
	"github.com/akolanti/ClinicRAG/internal/api"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

// GetHandler godoc
// @Summary      Health check
// @Tags         Health
// @Success      200
// @Router       /health [get]
func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// AskHandler godoc
// @Summary      Ask the knowledge base
// @Description  Answers a patient question from the clinic documents visible in the given scope.
// @Tags         Knowledge
// @Accept       json
// @Produce      json
// @Param        request  body      api.AskRequest     true  "Question and optional service scope"
// @Success      200      {object}  api.AskResponse    "Answer with cited sources"
// @Failure      400      {object}  api.ErrorResponse  "Empty question or malformed body"
// @Failure      500      {object}  api.ErrorResponse
// @Router       /ask [post]
func AskHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	var req api.AskRequest
	if err := decodeJson(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	answer, err := knowledgeService().Ask(r.Context(), req.Question, req.Scope)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAskResponse(answer))
}

// SearchHandler godoc
// @Summary      Search fragments
// @Description  Returns the ranked fragments that would ground an answer. Useful to debug retrieval.
// @Tags         Knowledge
// @Accept       json
// @Produce      json
// @Param        request  body      api.SearchRequest  true  "Query, optional scope and topK"
// @Success      200      {object}  api.SearchResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /search [post]
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	var req api.SearchRequest
	if err := decodeJson(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	results, err := knowledgeService().Search(r.Context(), req.Query, req.Scope, req.TopK)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(results))
}

// UploadDocumentHandler godoc
// @Summary      Upload a document
// @Description  Accepts JSON, multipart/form-data with an optional pdf/docx/txt file, or a text/plain body with title, documentType and scope in the query.
// @Tags         Documents
// @Accept       json
// @Accept       multipart/form-data
// @Accept       plain
// @Produce      json
// @Param        request  body      api.DocumentRequest  false  "Document"
// @Success      201      {object}  api.DocumentResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /documents [post]
func UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	req, err := readDocumentRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	doc, err := knowledgeService().UpsertDocument(r.Context(), adapter.ToUpsertRequest(req, actorOf(r), nil))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	logRH.WithTrace(r.Context()).Info("Document uploaded", "documentId", doc.Id)
	writeJsonResponse(w, http.StatusCreated, adapter.ToDocumentResponse(doc))
}

// UpdateDocumentHandler godoc
// @Summary      Replace document content
// @Description  Re-chunks and re-embeds the document; the version is incremented.
// @Tags         Documents
// @Accept       json
// @Accept       multipart/form-data
// @Accept       plain
// @Produce      json
// @Param        id       path      int                  true   "Document ID"
// @Param        request  body      api.DocumentRequest  false  "Document"
// @Success      200      {object}  api.DocumentResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /documents/{id} [put]
func UpdateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	id, err := parseId(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	req, err := readDocumentRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	doc, err := knowledgeService().UpsertDocument(r.Context(), adapter.ToUpsertRequest(req, actorOf(r), &id))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(doc))
}

// DeleteDocumentHandler godoc
// @Summary      Delete a document
// @Tags         Documents
// @Produce      json
// @Param        id   path      int  true  "Document ID"
// @Success      200  {object}  api.DeleteResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{id} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	id, err := parseId(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := knowledgeService().DeleteDocument(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.DeleteResponse{Id: id, Deleted: true})
}

// GetDocumentHandler godoc
// @Summary      Get a document
// @Tags         Documents
// @Produce      json
// @Param        id   path      int  true  "Document ID"
// @Success      200  {object}  api.DocumentDetailResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{id} [get]
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	id, err := parseId(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	doc, err := knowledgeService().GetDocument(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentDetailResponse(doc))
}

// ListDocumentsHandler godoc
// @Summary      List documents
// @Tags         Documents
// @Produce      json
// @Param        scope         query     int     false  "Only documents of this scope"
// @Param        documentType  query     string  false  "Only documents of this type"
// @Success      200           {object}  api.DocumentListResponse
// @Failure      400           {object}  api.ErrorResponse
// @Router       /documents [get]
func ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	scope, err := parseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	filter := knowledgeModel.DocumentFilter{Scope: scope, DocumentType: r.URL.Query().Get("documentType")}

	docs, err := knowledgeService().ListDocuments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentListResponse(docs))
}

// SetActiveHandler godoc
// @Summary      Activate or deactivate a document
// @Description  Inactive documents stay stored but are excluded from retrieval.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        id       path      int                   true  "Document ID"
// @Param        request  body      api.SetActiveRequest  true  "New state"
// @Success      200      {object}  api.DocumentResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /documents/{id}/active [patch]
func SetActiveHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) || !serviceOrUnavailable(w) {
		return
	}
	id, err := parseId(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req api.SetActiveRequest
	if err := decodeJson(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Active == nil {
		WriteErrorResponse(w, http.StatusBadRequest, "active is required")
		return
	}

	doc, err := knowledgeService().SetActive(r.Context(), id, *req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(doc))
}
