package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD               = false
	LOG_LEVEL_PROD        = slog.LevelInfo
	FALLBACK_TO_MEMSTORE  = true //if the configured store fails to open, the service falls back to the in-memory store
	TRACE_ID_KEY          = "traceId"
	RATE_LIMIT_PER_SECOND = 2
	BURST_RATE_LIMIT      = 5
	CacheSimilarityCutoff = 0.97

	//auth
	NoAuthBypass    = false
	AuthTokenEnvKey = "AUTH_TOKEN"

	//chunking
	ChunkWindowSize = 1000 // characters
	ChunkOverlap    = 150

	//retrieval
	RetrievalTopK            = 5
	RetrievalOverFetchFactor = 3
	RetrievalThreshold       = 0.15
	TitleKeywordBonus        = 0.15
	BodyKeywordBonus         = 0.05
	MinKeywordLength         = 3

	//embeddings
	EmbeddingBackend              = "local" // remote | google | local
	EmbeddingFallbackToLocal      = true
	EmbeddingOutputDimensionality = 384
	EmbeddingTimeout              = 30 * time.Second
	EmbeddingWorkers              = 1 // >1 enables the bounded worker pool during ingestion
	RemoteEmbeddingURL            = "http://127.0.0.1:11434/api/embeddings"
	RemoteEmbeddingModel          = "nomic-embed-text"
	GoogleEmbeddingModel          = "gemini-embedding-001"
	LocalEmbeddingBuckets         = 4096
	LocalEmbeddingSeed            = 20240117

	//llm
	LLMBackend         = "ollama" // ollama | openai | gemini | none
	LLMTimeout         = 60 * time.Second
	OllamaURL          = "http://127.0.0.1:11434/api/generate"
	OllamaModel        = "llama3.1"
	OpenAIModel        = "gpt-4o-mini"
	OpenAIBaseURL      = "https://api.openai.com/v1"
	GeminiModelName    = "gemini-2.5-flash-lite-preview-09-2025"
	ModelTemperature   = 0.2
	MaxOutputTokens    = 800

	//worker pool
	MaxWorkerCount = 10

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 90 * time.Second //an ask call waits on the llm
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//uploads
	MaxUploadSize = 32 << 20 //32mb

	//store
	StoreBackend = "sqlite" // sqlite | redis | memory
	SQLitePath   = "clinicrag.db"

	//vectorDB (semantic answer cache)
	QdrantEnabled           = false
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "127.0.0.1"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false //set for https
	QdrantPoolSize          = 1     //2-5 is preferred for prod according to documentation
	SemanticCacheName       = "clinic-answer-cache"

	//http client pool
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost     = "127.0.0.1"
	redisPort     = "6379"
	RedisAddr     = redisHost + ":" + redisPort
	RedisPassword = ""

	//redis has 16 DB we can use
	RedisKnowledgeStore = 0
)
