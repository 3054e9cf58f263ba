package embeddingProvider

import (
	"context"
	"strings"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding/localEmbedding"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding/remoteEmbedding"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

// New selects the configured embedding backend. Remote and google backends are wrapped with the
// local model as per-call fallback when cfg.FallbackToLocal is set.
func New(ctx context.Context, cfg config.EmbeddingSettings) (embedding.Embedder, error) {
	logger := logger_i.NewLogger("embedding_provider")

	local := func() embedding.Embedder {
		return localEmbedding.GetLocalEmbeddingClient(cfg.Local, cfg.Dimension)
	}

	var primary embedding.Embedder
	switch strings.ToLower(cfg.Backend) {
	case "local":
		logger.Info("Using local embedding model")
		return local(), nil
	case "remote":
		primary = remoteEmbedding.NewRemoteEmbedder(cfg.Remote, cfg.Timeout)
	case "google":
		google, err := googleEmbedding.GetGoogleEmbeddingClient(ctx, cfg.Google.Model, cfg.Google.APIKey, cfg.Dimension)
		if err != nil {
			if !cfg.FallbackToLocal {
				return nil, err
			}
			logger.Warn("Google embedding unavailable, serving the local model only", "error", err)
			return local(), nil
		}
		primary = google
	default:
		return nil, &knowledgeModel.ConfigurationError{Field: "embedding.backend", Reason: "unknown backend " + cfg.Backend}
	}

	logger.Info("Using embedding backend", "backend", cfg.Backend, "fallbackToLocal", cfg.FallbackToLocal)
	if cfg.FallbackToLocal {
		return embedding.WithDimensionCheck(embedding.WithFallback(primary, local()), cfg.Dimension), nil
	}
	return embedding.WithDimensionCheck(primary, cfg.Dimension), nil
}
