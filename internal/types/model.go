package types

// Model describes a chat model reachable through a provider.
type Model struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	// APIBase overrides the provider's default endpoint when set.
	APIBase string `json:"api_base,omitempty"`
	// ContextLength is the provider-advertised context window, in tokens.
	ContextLength int  `json:"context_length,omitempty"`
	ToolCalling   bool `json:"tool_calling"`
}
