package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/helmsman-ai/helmsman/internal/config"
)

// ResolvedAuth holds resolved provider credentials.
type ResolvedAuth struct {
	Value string
}

// ResolveAuth resolves the credentials for a provider.
// Resolution order: direct api_key → ${ENV_VAR} reference → driver default env.
func ResolveAuth(cfg config.ProviderConfig) (ResolvedAuth, error) {
	apiKey := strings.TrimSpace(cfg.Auth.APIKey)
	if strings.HasPrefix(apiKey, "${") && strings.HasSuffix(apiKey, "}") {
		apiKey = os.Getenv(apiKey[2 : len(apiKey)-1])
	}
	if apiKey != "" {
		return ResolvedAuth{Value: apiKey}, nil
	}

	envVar := ""
	switch strings.ToLower(cfg.Driver) {
	case "openai":
		envVar = "OPENAI_API_KEY"
	case "anthropic":
		envVar = "ANTHROPIC_API_KEY"
	case "gemini":
		envVar = "GEMINI_API_KEY"
	default:
		return ResolvedAuth{}, fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
	if key := os.Getenv(envVar); key != "" {
		return ResolvedAuth{Value: key}, nil
	}
	return ResolvedAuth{}, fmt.Errorf("%s not set", envVar)
}
