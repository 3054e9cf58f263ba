package openaiLLM

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/ClinicRAG/internal/config"
	"github.com/akolanti/ClinicRAG/internal/customHttpClient"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/internal/rag/llm"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const backendName = "openai"

type llmClient struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *logger_i.Logger
}

// NewOpenAIClient uses the hosted chat completion API. BaseURL may point at any compatible server.
func NewOpenAIClient(cfg config.OpenAISettings, temperature float64, maxTokens int, timeout time.Duration) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, &knowledgeModel.ConfigurationError{Field: "llm.openai.api_key", Reason: "must be set for the openai backend"}
	}
	if timeout <= 0 {
		timeout = config.LLMTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(customHttpClient.NewPooledClient(timeout)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &llmClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger_i.NewLogger("llm_openai"),
	}, nil
}

func (c *llmClient) Name() string { return backendName }

func (c *llmClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	log := c.logger.WithTrace(ctx)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error("chat completion failed", "error", err)
		return "", &knowledgeModel.LLMBackendError{Backend: backendName, Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &knowledgeModel.LLMBackendError{Backend: backendName, Err: errors.New("no choices returned")}
	}
	log.Debug("chat completion finished", "model", completion.Model, "tokens", completion.Usage.TotalTokens)
	return completion.Choices[0].Message.Content, nil
}
