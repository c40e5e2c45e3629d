// Package types holds the core data model shared by the repositories,
// the executor and the orchestrator.
package types

import (
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskDraft          TaskStatus = "draft"
	TaskToDo           TaskStatus = "todo"
	TaskInProgress     TaskStatus = "in_progress"
	TaskWaitingForUser TaskStatus = "waiting_for_user"
	TaskDone           TaskStatus = "done"
	TaskFailed         TaskStatus = "failed"
	TaskCancelled      TaskStatus = "cancelled"
)

// Terminal reports whether no further execution turns may be scheduled.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed || s == TaskCancelled
}

// Advanceable reports whether the orchestrator may run an execution turn.
func (s TaskStatus) Advanceable() bool {
	return s == TaskToDo || s == TaskInProgress
}

// taskTransitions is the guarded transition table of the task state machine.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskDraft:          {TaskToDo, TaskInProgress, TaskCancelled},
	TaskToDo:           {TaskInProgress, TaskCancelled},
	TaskInProgress:     {TaskWaitingForUser, TaskDone, TaskFailed, TaskCancelled},
	TaskWaitingForUser: {TaskInProgress, TaskCancelled},
}

// CanTransition reports whether from → to is a legal status transition.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range taskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task is the unit of work. Non-root tasks carry a materialized ancestry
// path of ancestor ids ("a/b/c") plus the depth as AncestryLevel.
type Task struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`

	// OriginChatID is the user-facing chat this task was created from.
	OriginChatID string `json:"origin_chat_id,omitempty"`
	// ControlChatID is the internal bookkeeping channel.
	ControlChatID string `json:"control_chat_id,omitempty"`
	// ExecutionChatID is the chat the task executes in. Owned exclusively.
	ExecutionChatID string `json:"execution_chat_id,omitempty"`

	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	Status        TaskStatus `json:"status"`
	Ancestry      string     `json:"ancestry,omitempty"`
	AncestryLevel int        `json:"ancestry_level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool { return t.Ancestry == "" }

// ParentID returns the id of the direct parent, or "" for root tasks.
func (t *Task) ParentID() string {
	if t.Ancestry == "" {
		return ""
	}
	segments := strings.Split(t.Ancestry, "/")
	return segments[len(segments)-1]
}

// ParentIDs returns all ancestor ids, root first. Nil for root tasks.
func (t *Task) ParentIDs() []string {
	if t.Ancestry == "" {
		return nil
	}
	return strings.Split(t.Ancestry, "/")
}

// ChildrenAncestry returns the ancestry path children of this task must carry.
func (t *Task) ChildrenAncestry() string {
	if t.Ancestry == "" {
		return t.ID
	}
	return t.Ancestry + "/" + t.ID
}

// WorkdirID returns the id the task's sandbox working directory is keyed by.
// The whole decomposition tree shares the root task's directory.
func (t *Task) WorkdirID() string {
	if t.Ancestry == "" {
		return t.ID
	}
	return strings.Split(t.Ancestry, "/")[0]
}
