package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/bingsearch"
	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"

	"github.com/helmsman-ai/helmsman/internal/config"
)

const (
	searchToolName = "web_search"
	searchToolDesc = "Search the web for current information. Returns titles, URLs, and snippets."
)

// NewSearchTool builds the web_search tool for the configured provider.
// DuckDuckGo is the default and needs no API key.
func NewSearchTool(ctx context.Context, cfg config.WebSearchConfig) (tool.InvokableTool, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "duckduckgo"
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch provider {
	case "duckduckgo":
		return duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   searchToolName,
			ToolDesc:   searchToolDesc,
			MaxResults: maxResults,
			Timeout:    timeout,
		})
	case "google":
		return googlesearch.NewTool(ctx, &googlesearch.Config{
			APIKey:         cfg.GoogleAPIKey,
			SearchEngineID: cfg.GoogleCX,
			Num:            maxResults,
			ToolName:       searchToolName,
			ToolDesc:       searchToolDesc,
		})
	case "bing":
		return bingsearch.NewTool(ctx, &bingsearch.Config{
			APIKey:     cfg.BingAPIKey,
			MaxResults: maxResults,
			Timeout:    timeout,
			ToolName:   searchToolName,
			ToolDesc:   searchToolDesc,
		})
	default:
		return nil, fmt.Errorf("web_search: unknown provider %q", provider)
	}
}
