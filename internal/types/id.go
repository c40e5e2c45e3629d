package types

import (
	"strings"

	"github.com/google/uuid"
)

func newID(prefix string) string {
	u := uuid.New().String()
	return prefix + "_" + strings.ReplaceAll(u, "-", "")
}

// NewTaskID creates a unique task identifier.
func NewTaskID() string { return newID("task") }

// NewChatID creates a unique chat identifier.
func NewChatID() string { return newID("chat") }

// NewMessageID creates a unique message identifier.
func NewMessageID() string { return newID("msg") }

// NewResultID creates a unique task-result identifier.
func NewResultID() string { return newID("res") }

// NewAgentID creates a unique agent identifier.
func NewAgentID() string { return newID("agent") }
