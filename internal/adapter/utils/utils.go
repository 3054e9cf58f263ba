package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	_ "github.com/akolanti/ClinicRAG/cmd/api/docs"
	"github.com/akolanti/ClinicRAG/internal/api"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
)

var (
	once   sync.Once
	router *chi.Mux
)

// Router is the sub-router handed to chi Route callbacks.
type Router = chi.Router

type RouterClient struct {
	Router *chi.Mux
}

// NewId returns a random UUID string. Used for trace ids and answer cache point ids.
func NewId() string {
	return uuid.New().String()
}

// URLParamId reads a positive int64 path parameter such as a document id.
func URLParamId(request *http.Request, key string) (int64, error) {
	raw := chi.URLParam(request, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, id)
	}
	return id, nil
}

// GetRouter returns the shared router with swagger, /metrics and JSON bodies for unknown routes.
func GetRouter() RouterClient {
	once.Do(func() {
		router = chi.NewRouter()
		router.NotFound(errorHandler(http.StatusNotFound, "Route not found"))
		router.MethodNotAllowed(errorHandler(http.StatusMethodNotAllowed, "Method not allowed"))
		mountSwagger(router)
		router.Handle("/metrics", promhttp.Handler())
	})

	return RouterClient{Router: router}
}

// errorHandler answers with the same error envelope the API handlers use.
func errorHandler(code int, message string) http.HandlerFunc {
	body, _ := json.Marshal(api.ErrorResponse{Error: api.ErrorBody{Code: code, Message: message}})
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write(body)
	}
}

func mountSwagger(r *chi.Mux) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
	))
}
