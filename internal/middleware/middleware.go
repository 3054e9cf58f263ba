package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/handlers"
	"github.com/akolanti/ClinicRAG/internal/metrics"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var (
	settingsMu     sync.RWMutex
	serverSettings = config.ServerSettings{NoAuth: config.NoAuthBypass}
)

// Configure sets the auth token and bypass flag used by every wrapped handler.
func Configure(settings config.ServerSettings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	serverSettings = settings
}

func currentSettings() config.ServerSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return serverSettings
}

var GetHandler = Wrap(handlers.GetHandler)

var AskHandler = Wrap(handlers.AskHandler)
var SearchHandler = Wrap(handlers.SearchHandler)
var UploadDocumentHandler = Wrap(handlers.UploadDocumentHandler)
var UpdateDocumentHandler = Wrap(handlers.UpdateDocumentHandler)
var DeleteDocumentHandler = Wrap(handlers.DeleteDocumentHandler)
var GetDocumentHandler = Wrap(handlers.GetDocumentHandler)
var ListDocumentsHandler = Wrap(handlers.ListDocumentsHandler)
var SetActiveHandler = Wrap(handlers.SetActiveHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if !re.badRequest.isBadRequest {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

// WrapHandler is Wrap for plain http.Handlers such as the mcp endpoint.
func WrapHandler(next http.Handler) http.Handler {
	return Wrap(next.ServeHTTP)
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)

	re = injectTrace(re)
	re = authenticate(re)
	if !handleBadRequest(re) {
		return re //stop if auth fails
	}
	re = rateLimiter(re)
	handleBadRequest(re)
	return re
}
