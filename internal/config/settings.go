package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultStopWords are question-phrasing function words ignored by the keyword bonus.
var DefaultStopWords = []string{
	// ru
	"как", "что", "где", "когда", "какие", "какой", "какая", "каких", "почему", "зачем",
	"можно", "нужно", "надо", "ли", "для", "при", "это", "мне", "меня", "есть", "или",
	"перед", "после", "чем", "чтобы", "если", "нет", "все", "так", "уже", "еще", "вас", "вам",
	// en
	"what", "how", "when", "where", "which", "who", "why", "the", "and", "for", "are", "can",
	"should", "does", "with", "about", "before", "after", "there", "this", "that", "have",
}

type ServerSettings struct {
	ListenAddr string `yaml:"listen_addr"`
	AuthToken  string `yaml:"auth_token"`
	NoAuth     bool   `yaml:"no_auth"`
}

type StoreSettings struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type ChunkingSettings struct {
	WindowSize int `yaml:"window_size"`
	Overlap    int `yaml:"overlap"`
}

type RetrievalSettings struct {
	TopK            int      `yaml:"top_k"`
	OverFetchFactor int      `yaml:"over_fetch_factor"`
	Threshold       float64  `yaml:"threshold"`
	TitleBonus      float64  `yaml:"title_bonus"`
	BodyBonus       float64  `yaml:"body_bonus"`
	MinTokenLength  int      `yaml:"min_token_length"`
	StopWords       []string `yaml:"stop_words"`
}

type RemoteEmbeddingSettings struct {
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

type GoogleSettings struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

type LocalEmbeddingSettings struct {
	Buckets int   `yaml:"buckets"`
	Seed    int64 `yaml:"seed"`
}

type EmbeddingSettings struct {
	Backend         string                  `yaml:"backend"`
	FallbackToLocal bool                    `yaml:"fallback_to_local"`
	Workers         int                     `yaml:"workers"`
	Dimension       int                     `yaml:"dimension"`
	Timeout         time.Duration           `yaml:"timeout"`
	Remote          RemoteEmbeddingSettings `yaml:"remote"`
	Google          GoogleSettings          `yaml:"google"`
	Local           LocalEmbeddingSettings  `yaml:"local"`
}

type OllamaSettings struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

type OpenAISettings struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

type LLMSettings struct {
	Backend     string         `yaml:"backend"`
	Timeout     time.Duration  `yaml:"timeout"`
	Temperature float64        `yaml:"temperature"`
	MaxTokens   int            `yaml:"max_tokens"`
	Ollama      OllamaSettings `yaml:"ollama"`
	OpenAI      OpenAISettings `yaml:"openai"`
	Gemini      GoogleSettings `yaml:"gemini"`
}

type CacheSettings struct {
	Enabled          bool    `yaml:"enabled"`
	QdrantHost       string  `yaml:"qdrant_host"`
	QdrantPort       int     `yaml:"qdrant_port"`
	QdrantAPIKey     string  `yaml:"qdrant_api_key"`
	UseTLS           bool    `yaml:"use_tls"`
	Collection       string  `yaml:"collection"`
	SimilarityCutoff float64 `yaml:"similarity_cutoff"`
}

// Settings is the runtime configuration. Load resolves it as
// defaults -> yaml file -> .env -> environment variables.
type Settings struct {
	Server    ServerSettings    `yaml:"server"`
	Store     StoreSettings     `yaml:"store"`
	Chunking  ChunkingSettings  `yaml:"chunking"`
	Retrieval RetrievalSettings `yaml:"retrieval"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	LLM       LLMSettings       `yaml:"llm"`
	Cache     CacheSettings     `yaml:"cache"`
}

func Defaults() *Settings {
	return &Settings{
		Server: ServerSettings{ListenAddr: ServerListenAddr, NoAuth: NoAuthBypass},
		Store: StoreSettings{
			Backend:       StoreBackend,
			SQLitePath:    SQLitePath,
			RedisAddr:     RedisAddr,
			RedisPassword: RedisPassword,
			RedisDB:       RedisKnowledgeStore,
		},
		Chunking: ChunkingSettings{WindowSize: ChunkWindowSize, Overlap: ChunkOverlap},
		Retrieval: RetrievalSettings{
			TopK:            RetrievalTopK,
			OverFetchFactor: RetrievalOverFetchFactor,
			Threshold:       RetrievalThreshold,
			TitleBonus:      TitleKeywordBonus,
			BodyBonus:       BodyKeywordBonus,
			MinTokenLength:  MinKeywordLength,
			StopWords:       append([]string(nil), DefaultStopWords...),
		},
		Embedding: EmbeddingSettings{
			Backend:         EmbeddingBackend,
			FallbackToLocal: EmbeddingFallbackToLocal,
			Workers:         EmbeddingWorkers,
			Dimension:       EmbeddingOutputDimensionality,
			Timeout:         EmbeddingTimeout,
			Remote:          RemoteEmbeddingSettings{URL: RemoteEmbeddingURL, Model: RemoteEmbeddingModel},
			Google:          GoogleSettings{Model: GoogleEmbeddingModel},
			Local:           LocalEmbeddingSettings{Buckets: LocalEmbeddingBuckets, Seed: LocalEmbeddingSeed},
		},
		LLM: LLMSettings{
			Backend:     LLMBackend,
			Timeout:     LLMTimeout,
			Temperature: ModelTemperature,
			MaxTokens:   MaxOutputTokens,
			Ollama:      OllamaSettings{URL: OllamaURL, Model: OllamaModel},
			OpenAI:      OpenAISettings{BaseURL: OpenAIBaseURL, Model: OpenAIModel},
			Gemini:      GoogleSettings{Model: GeminiModelName},
		},
		Cache: CacheSettings{
			Enabled:          QdrantEnabled,
			QdrantHost:       QdrantHost,
			QdrantPort:       QdrantGrpcPort,
			UseTLS:           QdrantUseTLS,
			Collection:       SemanticCacheName,
			SimilarityCutoff: CacheSimilarityCutoff,
		},
	}
}

// Load builds Settings. A missing yaml file or .env file is not an error.
func Load(path string, envFiles ...string) (*Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	envString("LISTEN_ADDR", &s.Server.ListenAddr)
	envString(AuthTokenEnvKey, &s.Server.AuthToken)

	envString("STORE_BACKEND", &s.Store.Backend)
	envString("SQLITE_PATH", &s.Store.SQLitePath)
	envString("REDIS_ADDR", &s.Store.RedisAddr)
	envString("REDIS_PASSWORD", &s.Store.RedisPassword)

	envString("EMBEDDING_BACKEND", &s.Embedding.Backend)
	envString("REMOTE_EMBEDDING_URL", &s.Embedding.Remote.URL)
	envString("REMOTE_EMBEDDING_MODEL", &s.Embedding.Remote.Model)
	envString("REMOTE_EMBEDDING_API_KEY", &s.Embedding.Remote.APIKey)
	envString("GOOGLE_EMBEDDING_MODEL", &s.Embedding.Google.Model)
	envString("GEMINI_API_KEY", &s.Embedding.Google.APIKey)

	envString("LLM_BACKEND", &s.LLM.Backend)
	envString("OLLAMA_URL", &s.LLM.Ollama.URL)
	envString("OLLAMA_MODEL", &s.LLM.Ollama.Model)
	envString("OPENAI_API_KEY", &s.LLM.OpenAI.APIKey)
	envString("OPENAI_BASE_URL", &s.LLM.OpenAI.BaseURL)
	envString("OPENAI_MODEL", &s.LLM.OpenAI.Model)
	envString("GEMINI_MODEL", &s.LLM.Gemini.Model)
	envString("GEMINI_API_KEY", &s.LLM.Gemini.APIKey)

	envString("QDRANT_HOST", &s.Cache.QdrantHost)
	envString("QDRANT_API_KEY", &s.Cache.QdrantAPIKey)

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &s.Store.RedisDB},
		{"CHUNK_WINDOW_SIZE", &s.Chunking.WindowSize},
		{"CHUNK_OVERLAP", &s.Chunking.Overlap},
		{"RETRIEVAL_TOP_K", &s.Retrieval.TopK},
		{"EMBEDDING_WORKERS", &s.Embedding.Workers},
		{"QDRANT_PORT", &s.Cache.QdrantPort},
	}
	for _, e := range ints {
		if err := envInt(e.key, e.dst); err != nil {
			return err
		}
	}

	if err := envFloat("RETRIEVAL_THRESHOLD", &s.Retrieval.Threshold); err != nil {
		return err
	}
	if err := envBool("EMBEDDING_FALLBACK_TO_LOCAL", &s.Embedding.FallbackToLocal); err != nil {
		return err
	}
	if err := envBool("CACHE_ENABLED", &s.Cache.Enabled); err != nil {
		return err
	}
	return envBool("NO_AUTH", &s.Server.NoAuth)
}

// Validate reports the first invalid setting as a *knowledgeModel.ConfigurationError.
func (s *Settings) Validate() error {
	if s.Chunking.WindowSize <= 0 {
		return &knowledgeModel.ConfigurationError{Field: "chunking.window_size", Reason: "must be positive"}
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.WindowSize {
		return &knowledgeModel.ConfigurationError{Field: "chunking.overlap", Reason: "must be in [0, window_size)"}
	}
	if s.Retrieval.TopK <= 0 {
		return &knowledgeModel.ConfigurationError{Field: "retrieval.top_k", Reason: "must be positive"}
	}
	if s.Retrieval.OverFetchFactor < 1 {
		return &knowledgeModel.ConfigurationError{Field: "retrieval.over_fetch_factor", Reason: "must be at least 1"}
	}
	if s.Retrieval.Threshold < 0 || s.Retrieval.Threshold > 1 {
		return &knowledgeModel.ConfigurationError{Field: "retrieval.threshold", Reason: "must be in [0, 1]"}
	}
	if !oneOf(s.Store.Backend, "sqlite", "redis", "memory") {
		return &knowledgeModel.ConfigurationError{Field: "store.backend", Reason: "unknown backend " + s.Store.Backend}
	}
	if !oneOf(s.Embedding.Backend, "remote", "google", "local") {
		return &knowledgeModel.ConfigurationError{Field: "embedding.backend", Reason: "unknown backend " + s.Embedding.Backend}
	}
	if !oneOf(s.LLM.Backend, "ollama", "openai", "gemini", "none") {
		return &knowledgeModel.ConfigurationError{Field: "llm.backend", Reason: "unknown backend " + s.LLM.Backend}
	}
	if s.Embedding.Dimension <= 0 {
		return &knowledgeModel.ConfigurationError{Field: "embedding.dimension", Reason: "must be positive"}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &knowledgeModel.ConfigurationError{Field: key, Reason: "not an integer: " + v}
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return &knowledgeModel.ConfigurationError{Field: key, Reason: "not a number: " + v}
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return &knowledgeModel.ConfigurationError{Field: key, Reason: "not a boolean: " + v}
	}
	*dst = b
	return nil
}
