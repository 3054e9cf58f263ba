package llm

import "context"

// Provider generates one completion for a system instruction and a user prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
