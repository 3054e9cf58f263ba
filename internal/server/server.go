package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/akolanti/ClinicRAG/internal/adapter/utils"
	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/middleware"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

var (
	server  *http.Server
	_logger *logger_i.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	// DrainServices runs after the listener stopped, e.g. waiting for background cache writes.
	DrainServices func()
	CloseServices context.CancelFunc
}

// Routes registers the API on the shared router. mcpHandler may be nil.
func Routes(mcpHandler http.Handler) http.Handler {
	r := utils.GetRouter()

	r.Router.Get("/health", middleware.GetHandler)
	r.Router.Post("/ask", middleware.AskHandler)
	r.Router.Post("/search", middleware.SearchHandler)
	r.Router.Route("/documents", func(d utils.Router) {
		d.Get("/", middleware.ListDocumentsHandler)
		d.Post("/", middleware.UploadDocumentHandler)
		d.Get("/{id}", middleware.GetDocumentHandler)
		d.Put("/{id}", middleware.UpdateDocumentHandler)
		d.Delete("/{id}", middleware.DeleteDocumentHandler)
		d.Patch("/{id}/active", middleware.SetActiveHandler)
	})
	if mcpHandler != nil {
		r.Router.Handle("/mcp", middleware.WrapHandler(mcpHandler))
	}
	return r.Router
}

func CreateServer(listenAddr string, handler http.Handler) {
	_logger = logger_i.NewLogger("Server")

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully", "error", err)
		}

		if shutdownParams.DrainServices != nil {
			shutdownParams.DrainServices()
		}
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
