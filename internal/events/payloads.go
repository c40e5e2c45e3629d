package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TASK EVENTS
// =============================================================================

type TaskCreatedPayload struct {
	TaskID   string `json:"task_id"`
	ParentID string `json:"parent_id,omitempty"`
	AgentID  string `json:"agent_id"`
	Title    string `json:"title"`
}

func (TaskCreatedPayload) EventType() EventType { return EventTaskCreated }

type TaskStatusChangedPayload struct {
	TaskID string `json:"task_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

func (TaskStatusChangedPayload) EventType() EventType { return EventTaskStatusChanged }

// =============================================================================
// MESSAGE EVENTS
// =============================================================================

type MessageCreatedPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	Role      string `json:"role"`
}

func (MessageCreatedPayload) EventType() EventType { return EventMessageCreated }

type MessageUpdatedPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	Status    string `json:"status"`
}

func (MessageUpdatedPayload) EventType() EventType { return EventMessageUpdated }

// =============================================================================
// RESULT EVENTS
// =============================================================================

type ResultCreatedPayload struct {
	ResultID string `json:"result_id"`
	TaskID   string `json:"task_id"`
	Kind     string `json:"kind"`
}

func (ResultCreatedPayload) EventType() EventType { return EventResultCreated }

// =============================================================================
// TOOL EVENTS
// =============================================================================

type ToolStatus string

const (
	ToolStatusStarted   ToolStatus = "started"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
)

type ToolCallPayload struct {
	Status ToolStatus `json:"status"`
	Name   string     `json:"name"`
	CallID string     `json:"call_id,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func (ToolCallPayload) EventType() EventType { return EventToolCall }

// =============================================================================
// INTERNAL EVENTS
// =============================================================================

type LLMCallPayload struct {
	Phase        string        `json:"phase"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider,omitempty"`
	MessageCount int           `json:"message_count,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func (LLMCallPayload) EventType() EventType { return EventLLMCall }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func NewTypedEventForTask(source EventSource, payload EventPayload, taskID string) Event {
	return Event{
		ID:        generateEventID(),
		TaskID:    taskID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetTaskCreatedPayload(e Event) (TaskCreatedPayload, bool) {
	return ExtractPayload[TaskCreatedPayload](e)
}

func GetTaskStatusChangedPayload(e Event) (TaskStatusChangedPayload, bool) {
	return ExtractPayload[TaskStatusChangedPayload](e)
}

func GetMessageCreatedPayload(e Event) (MessageCreatedPayload, bool) {
	return ExtractPayload[MessageCreatedPayload](e)
}

func GetResultCreatedPayload(e Event) (ResultCreatedPayload, bool) {
	return ExtractPayload[ResultCreatedPayload](e)
}

func GetToolCallPayload(e Event) (ToolCallPayload, bool) {
	return ExtractPayload[ToolCallPayload](e)
}

func GetLLMCallPayload(e Event) (LLMCallPayload, bool) {
	return ExtractPayload[LLMCallPayload](e)
}
