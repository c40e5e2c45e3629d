package models

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// GenerateWithRetry calls the model, retrying transient provider failures
// with exponential backoff. Non-retryable failures and context cancellation
// return immediately.
func GenerateWithRetry(ctx context.Context, provider string, m model.ToolCallingChatModel,
	msgs []*schema.Message, cfg config.ProviderConfig, opts ...model.Option) (*schema.Message, error) {

	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.RetryBackoff.Duration()
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := m.Generate(ctx, msgs, opts...)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		classified := ClassifyError(provider, err)
		var provErr *types.ModelProviderError
		if errors.As(classified, &provErr) && !provErr.Retryable {
			return nil, classified
		}
		lastErr = classified
	}
	return nil, lastErr
}
