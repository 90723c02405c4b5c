package provider

import (
	"context"
	"errors"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/models"
	openai_provider "github.com/lwhela12/the-hive-sub001/provider/openai"
)

// Client represents different reasoning-engine providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the reasoning-engine contract consumed by the tool loop and
// the summarizer.
type Provider interface {
	// Chat submits a system prompt, tool declarations and a transcript and
	// returns a typed response: final text or tool-invocation requests.
	Chat(ctx context.Context, systemPrompt string, tools []models.ToolDefinition, transcript []models.EngineMessage) (models.EngineResponse, error)

	// Complete runs a single-shot prompt with no tools, returning plain text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider creates a reasoning-engine client from configuration.
func NewProvider(client Client, cfg config.OpenAIConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not configured (providers.openai.api_key)")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.CompletionModel, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported reasoning-engine provider")
	}
}
