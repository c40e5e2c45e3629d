package types

import "time"

// Agent is a configured persona: a system prompt plus the capabilities
// that decide which tools its tasks may call.
type Agent struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`

	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`

	// ModelID selects the provider model used for this agent's turns.
	// Empty means the configured default.
	ModelID string `json:"model_id,omitempty"`

	// Capability switches.
	CodeInterpreterEnabled bool `json:"code_interpreter_enabled"`
	WebBrowsingEnabled     bool `json:"web_browsing_enabled"`

	// ExecutionStepsLimit bounds the number of execution turns a single
	// task may take before it is failed. Zero means the configured default.
	ExecutionStepsLimit int `json:"execution_steps_limit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
