package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/embedding"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const backendName = "google"

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var initErr error

// back-off before the single retry on a rate limit
var retryBackoff = 5 * time.Second

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string, dimension int) {
	if apikey == "" {
		initErr = errors.New("missing Gemini API key")
		logger.Error("Google Embedding client not created", "error", initErr)
		return
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		initErr = err
		logger.Error("Error creating Google Embedding client", "error", err)
		return
	}
	embeddingClient = &client{
		genAi:     c,
		model:     modelName,
		dimension: int32(dimension),
	}
	logger.Debug("Google Embedding model", "name", modelName)
	logger.Info("Google Embedding client created")
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string, dimension int) (embedding.Embedder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey, dimension)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil, &knowledgeModel.EmbeddingBackendError{Backend: backendName, Err: initErr}
	}
	return embeddingClient, nil
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if embedding.IsBlank(query) {
		return nil, knowledgeModel.ErrEmptyInput
	}
	vectors, err := c.embedWithRetry(ctx, genai.Text(query))
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbedding sends all texts in one request; the whole batch fails if any item is missing.
func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	for _, chunk := range chunks {
		if embedding.IsBlank(chunk) {
			return nil, knowledgeModel.ErrEmptyInput
		}
	}
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	return c.embedWithRetry(ctx, getContent(chunks))
}

func (c *client) embedWithRetry(ctx context.Context, content []*genai.Content) ([][]float32, error) {
	log := logger.WithTrace(ctx)

	res, err := c.doCall(ctx, content)
	if err != nil && doRetry(err, log) {
		log.Debug("Retrying embedding call", "backoff", retryBackoff)
		select {
		case <-ctx.Done():
			return nil, backendError(ctx.Err())
		case <-time.After(retryBackoff):
		}
		res, err = c.doCall(ctx, content)
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, backendError(err)
	}

	vectors, err := toVectors(res, len(content))
	if err != nil {
		return nil, backendError(err)
	}
	return vectors, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	conf := &genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: "RETRIEVAL_DOCUMENT"}
	return c.genAi.Models.EmbedContent(ctx, c.model, content, conf)
}

func backendError(err error) error {
	return &knowledgeModel.EmbeddingBackendError{Backend: backendName, Err: fmt.Errorf("gemini embed: %w", err)}
}
