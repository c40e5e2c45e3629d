package models

import (
	"strings"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// ClassifyError wraps a provider SDK error as a ModelProviderError,
// deciding whether the failure is worth retrying.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case containsAny(errStr, "429", "rate limit", "quota", "too many requests"):
		return &types.ModelProviderError{Provider: provider, Retryable: true, Err: err}
	case containsAny(errStr, "connection", "eof", "timeout", "dial", "refused", "502", "503"):
		return &types.ModelProviderError{Provider: provider, Retryable: true, Err: err}
	case containsAny(errStr, "401", "403", "unauthorized", "invalid api key", "forbidden"):
		return &types.ModelProviderError{Provider: provider, Retryable: false, Err: err}
	case containsAny(errStr, "context length", "too many tokens", "max tokens", "token limit"):
		return &types.ModelProviderError{Provider: provider, Retryable: false, Err: err}
	case containsAny(errStr, "model not found", "404", "not found"):
		return &types.ModelProviderError{Provider: provider, Retryable: false, Err: err}
	default:
		return &types.ModelProviderError{Provider: provider, Retryable: false, Err: err}
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
