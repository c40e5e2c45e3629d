package models

import (
	"context"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/helmsman-ai/helmsman/internal/config"
)

// NewOpenAI creates an OpenAI-compatible chat model. BaseURL supports
// any endpoint speaking the OpenAI wire format.
func NewOpenAI(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	mc := &einoopenai.ChatModelConfig{
		APIKey:  auth.Value,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxCompletionTokens = &maxTokens
	}
	return einoopenai.NewChatModel(ctx, mc)
}
