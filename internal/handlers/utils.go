package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/ClinicRAG/internal/adapter"
	"github.com/akolanti/ClinicRAG/internal/adapter/utils"
	"github.com/akolanti/ClinicRAG/internal/api"
	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/ingest"
)

// badRequestError carries a message that is safe to show to the client.
type badRequestError struct {
	message string
	err     error
}

func (e *badRequestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(message string, err error) error {
	return &badRequestError{message: message, err: err}
}

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.WithTrace(ctx).Warn("context error", "error", ctx.Err())
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, message string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(message, httpCode))
}

// writeServiceError maps the error taxonomy onto status codes. Only client errors carry detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logRH.WithTrace(r.Context())
	var badReq *badRequestError
	switch {
	case errors.As(err, &badReq):
		log.Warn("Bad request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, badReq.message)
	case errors.Is(err, knowledgeModel.ErrEmptyInput), errors.Is(err, knowledgeModel.ErrEmptyQuery):
		log.Warn("Bad request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, knowledgeModel.ErrDocumentNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "Document not found")
	case knowledgeModel.IsConfigurationError(err):
		log.Error("Configuration error", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Configuration error")
	default:
		log.Error("Request failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func serviceOrUnavailable(w http.ResponseWriter) bool {
	if knowledgeService() == nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "Service not ready")
		return false
	}
	return true
}

func parseId(r *http.Request) (int64, error) {
	id, err := utils.URLParamId(r, "id")
	if err != nil {
		return 0, badRequest("invalid document id", err)
	}
	return id, nil
}

// parseScope returns nil for an empty value.
func parseScope(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	scope, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, badRequest("invalid scope", err)
	}
	return &scope, nil
}

func decodeJson(r *http.Request, dst any) error {
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the request body", "error", err)
		}
	}(r.Body)
	if err := json.NewDecoder(io.LimitReader(r.Body, config.MaxUploadSize)).Decode(dst); err != nil {
		return badRequest("Bad Request", err)
	}
	return nil
}

func actorOf(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		return actor
	}
	return "api"
}

// readDocumentRequest accepts json, multipart/form-data (optionally with a file) or a text/plain body.
func readDocumentRequest(r *http.Request) (api.DocumentRequest, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}

	switch mediaType {
	case "multipart/form-data":
		return readMultipartDocument(r)
	case "text/plain":
		return readPlainDocument(r)
	default:
		var req api.DocumentRequest
		err := decodeJson(r, &req)
		return req, err
	}
}

func readPlainDocument(r *http.Request) (api.DocumentRequest, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxUploadSize))
	if err != nil {
		return api.DocumentRequest{}, badRequest("could not read body", err)
	}
	query := r.URL.Query()
	scope, err := parseScope(query.Get("scope"))
	if err != nil {
		return api.DocumentRequest{}, err
	}
	return api.DocumentRequest{
		Title:        query.Get("title"),
		Content:      string(body),
		DocumentType: query.Get("documentType"),
		Scope:        scope,
	}, nil
}

func readMultipartDocument(r *http.Request) (api.DocumentRequest, error) {
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		return api.DocumentRequest{}, badRequest("File too large or bad request", err)
	}
	scope, err := parseScope(r.FormValue("scope"))
	if err != nil {
		return api.DocumentRequest{}, err
	}
	req := api.DocumentRequest{
		Title:        r.FormValue("title"),
		Content:      r.FormValue("content"),
		DocumentType: r.FormValue("documentType"),
		Scope:        scope,
	}

	fileReader, fileMetadata, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return api.DocumentRequest{}, badRequest("Could not retrieve file", err)
	}
	defer fileReader.Close()

	text, err := extractUploadedFile(r.Context(), fileReader, fileMetadata.Filename)
	if err != nil {
		return api.DocumentRequest{}, err
	}
	req.Content = text
	if req.Title == "" {
		req.Title = strings.TrimSuffix(fileMetadata.Filename, filepath.Ext(fileMetadata.Filename))
	}
	return req, nil
}

// extractUploadedFile spools the upload to disk because the pdf reader needs a seekable file.
func extractUploadedFile(ctx context.Context, src io.Reader, filename string) (string, error) {
	targetDir, err := getTargetDirectory()
	if err != nil {
		return "", err
	}
	tempFilePath := filepath.Join(targetDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(filename)))
	dst, err := os.Create(tempFilePath)
	if err != nil {
		return "", fmt.Errorf("storage error: %w", err)
	}
	defer func() {
		if err := os.Remove(tempFilePath); err != nil {
			logRH.WithTrace(ctx).Warn("could not remove upload", "path", tempFilePath, "error", err)
		}
	}()

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return "", fmt.Errorf("write error: %w", err)
	}

	text, err := ingest.ExtractText(tempFilePath)
	if errors.Is(err, ingest.ErrUnsupportedFile) {
		return "", badRequest("unsupported file type, expected pdf, docx, odt, rtf, md or txt", err)
	}
	if err != nil {
		return "", badRequest("could not read the uploaded file", err)
	}
	return text, nil
}

func getTargetDirectory() (string, error) {
	targetDir := filepath.Join(os.TempDir(), "clinicrag_uploads")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", fmt.Errorf("storage error: %w", err)
	}
	return targetDir, nil
}
