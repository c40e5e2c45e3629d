package models

import (
	"context"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/helmsman-ai/helmsman/internal/config"
)

const defaultAnthropicMaxTokens = 4096

// NewAnthropic creates a new Anthropic (Claude) ChatModel.
func NewAnthropic(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	modelConfig := &einoclaude.Config{
		APIKey:    auth.Value,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		modelConfig.BaseURL = &baseURL
	}

	return einoclaude.NewChatModel(ctx, modelConfig)
}
