package gemini

import (
	"context"
	"errors"
	"sync"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const backendName = "gemini"

type llmClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
}

var logger *logger_i.Logger
var geminiClient *llmClient
var initErr error
var once sync.Once

// GetGeminiClient builds the shared Gemini client on first use. Later calls reuse it.
func GetGeminiClient(ctx context.Context, modelName string, apikey string, temperature float64, maxTokens int) (llm.Provider, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		initErr = newGeminiClient(ctx, modelName, apikey, temperature, maxTokens)
	})

	if geminiClient == nil {
		return nil, initErr
	}
	return geminiClient, nil
}

func newGeminiClient(ctx context.Context, modelName string, apikey string, temperature float64, maxTokens int) error {
	if apikey == "" {
		return &knowledgeModel.ConfigurationError{Field: "llm.gemini.api_key", Reason: "must be set for the gemini backend"}
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		return err
	}
	geminiClient = &llmClient{
		client:      c,
		modelName:   modelName,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
	}
	logger.Info("Gemini client created", "model", modelName)
	return nil
}

func (c *llmClient) Name() string { return backendName }

func (c *llmClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	log := logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Temperature: genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		contentConfig.MaxOutputTokens = c.maxTokens
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(userPrompt), contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", &knowledgeModel.LLMBackendError{Backend: backendName, Err: err}
	}
	text := result.Text()
	if text == "" {
		return "", &knowledgeModel.LLMBackendError{Backend: backendName, Err: errors.New("empty response")}
	}
	return text, nil
}
