package types

import "time"

// ChatKind distinguishes user-facing chats from the channels tasks own.
type ChatKind string

const (
	// ChatDirect is a user ↔ agent conversation.
	ChatDirect ChatKind = "direct"
	// ChatControl is a task's internal bookkeeping channel.
	ChatControl ChatKind = "control"
	// ChatExecution is a task's working transcript.
	ChatExecution ChatKind = "execution"
)

// Chat is a message container. Execution and control chats belong to
// exactly one task and are never shown to the user directly.
type Chat struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	UserID    string    `json:"user_id"`
	Kind      ChatKind  `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
