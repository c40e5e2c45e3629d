package types

import "time"

// Role is the author role of a message.
type Role string

const (
	RoleSystem          Role = "system"
	RoleUser            Role = "user"
	RoleAssistant       Role = "assistant"
	RoleTool            Role = "tool"
	RoleCodeInterpreter Role = "code_interpreter"
)

// MessageStatus tracks the completion lifecycle of a message.
type MessageStatus string

const (
	// MessagePending marks an assistant message whose content is still
	// being produced by the model.
	MessagePending MessageStatus = "pending"
	// MessageWaitingForToolCall marks an assistant message whose tool
	// calls have not been dispatched yet.
	MessageWaitingForToolCall MessageStatus = "waiting_for_tool_call"
	MessageCompleted          MessageStatus = "completed"
	MessageFailed             MessageStatus = "failed"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a chat transcript. Ordering within a chat is
// by CreatedAt; bulk inserts space timestamps so order survives.
type Message struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	ChatID    string `json:"chat_id"`
	AgentID   string `json:"agent_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`

	Status     MessageStatus `json:"status"`
	Role       Role          `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`

	// IsSelfReflection marks reflection-turn messages. They are kept in
	// the transcript but excluded from the model context of ordinary turns.
	IsSelfReflection bool `json:"is_self_reflection"`
	// IsInternalToolOutput marks synthetic tool outputs produced by
	// control verdicts. Hidden from user-facing listings.
	IsInternalToolOutput bool `json:"is_internal_tool_output"`

	CreatedAt time.Time `json:"created_at"`
}

// HasToolCalls reports whether the message requests any tool invocation.
func (m *Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }
