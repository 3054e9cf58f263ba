// @title           Clinic Knowledge RAG API
// @version         1.0
// @description     Answers patient questions from clinic documents and manages the knowledge base.
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/data/redisStore"
	"github.com/akolanti/ClinicRAG/internal/data/sqliteStore"
	"github.com/akolanti/ClinicRAG/internal/data/store"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/handlers"
	"github.com/akolanti/ClinicRAG/internal/mcpServer"
	"github.com/akolanti/ClinicRAG/internal/middleware"
	"github.com/akolanti/ClinicRAG/internal/rag"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding/embeddingProvider"
	"github.com/akolanti/ClinicRAG/internal/rag/llm/llmProvider"
	"github.com/akolanti/ClinicRAG/internal/rag/vectorDB"
	"github.com/akolanti/ClinicRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/ClinicRAG/internal/server"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

var (
	configPath string
	listenAddr string
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&configPath, "config", os.Getenv("CLINICRAG_CONFIG"), "path to the yaml config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the config file")
	flag.Parse()

	settings, err := config.Load(configPath)
	if err != nil {
		logger.Error("Could not load configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		settings.Server.ListenAddr = listenAddr
	}
	middleware.Configure(settings.Server)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	knowledgeStore, err := openStore(serviceContext, settings.Store)
	if err != nil {
		if !config.FALLBACK_TO_MEMSTORE {
			logger.Error("Knowledge store is offline", "backend", settings.Store.Backend, "error", err)
			os.Exit(1)
		}
		logger.Error("Knowledge store is offline, falling back to memory", "backend", settings.Store.Backend, "error", err)
		knowledgeStore = store.InitInMemoryKnowledgeStore()
	}

	embedder, err := embeddingProvider.New(serviceContext, settings.Embedding)
	if err != nil {
		logger.Error("Embedding backend failed to initialize. Shutting down.", "backend", settings.Embedding.Backend, "error", err)
		os.Exit(1)
	}
	provider, err := llmProvider.New(serviceContext, settings.LLM)
	if err != nil {
		logger.Error("LLM backend failed to initialize. Shutting down.", "backend", settings.LLM.Backend, "error", err)
		os.Exit(1)
	}

	var cache vectorDB.AnswerCache = vectorDB.NoopCache{}
	if settings.Cache.Enabled {
		qdrantCache, err := qdrantDB.GetQuadrantClient(serviceContext, settings.Cache, settings.Embedding.Dimension)
		if err != nil {
			logger.Warn("Answer cache unavailable, continuing without it", "error", err)
		} else {
			cache = qdrantCache
		}
	}
	logger.Debug("Available services : ", "Store", settings.Store.Backend, "Embedding", settings.Embedding.Backend, "LLM", provider != nil, "Cache", settings.Cache.Enabled)

	ragService, err := rag.NewService(knowledgeStore, embedder, provider, cache, settings)
	if err != nil {
		logger.Error("Could not start the knowledge service", "error", err)
		os.Exit(1)
	}

	handlers.InitKnowledgeHandler(ragService)
	mcp := mcpServer.NewServer(ragService)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		DrainServices:    ragService.Drain,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(settings.Server.ListenAddr, server.Routes(mcp.Handler()))

	<-stopExecution
	if err := knowledgeStore.Close(); err != nil {
		logger.Error("Error closing the knowledge store", "error", err)
	}
	logger.Info("Server stopped")
}

func openStore(ctx context.Context, cfg config.StoreSettings) (knowledgeModel.KnowledgeStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return sqliteStore.Open(ctx, cfg.SQLitePath)
	case "redis":
		return store.GetRedisKnowledgeStore(ctx, redisStore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "memory":
		return store.InitInMemoryKnowledgeStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
