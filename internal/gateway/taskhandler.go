package gateway

import (
	"context"

	"github.com/helmsman-ai/helmsman/internal/orchestrator"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// TaskHandler adapts the orchestrator to the ws.TaskHandler surface and
// backs the REST task endpoints.
type TaskHandler struct {
	orch *orchestrator.Orchestrator
}

// NewTaskHandler creates a task handler over an orchestrator.
func NewTaskHandler(orch *orchestrator.Orchestrator) *TaskHandler {
	return &TaskHandler{orch: orch}
}

type taskSummary struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	AgentID string           `json:"agent_id"`
	Status  types.TaskStatus `json:"status"`
}

// Submit creates a new root task.
func (h *TaskHandler) Submit(ctx context.Context, companyID, userID, agentID, title, summary string, plan bool) (string, error) {
	t, err := h.orch.Submit(ctx, orchestrator.SubmitRequest{
		CompanyID: companyID,
		UserID:    userID,
		AgentID:   agentID,
		Title:     title,
		Summary:   summary,
		Plan:      plan,
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// Cancel requests cancellation of a task and its descendants.
func (h *TaskHandler) Cancel(ctx context.Context, companyID, taskID, reason string) error {
	return h.orch.Cancel(ctx, companyID, taskID, reason)
}

// List returns the company's root tasks, newest first.
func (h *TaskHandler) List(ctx context.Context, companyID string) (any, error) {
	tasks, err := h.orch.Tasks.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]taskSummary, len(tasks))
	for i, t := range tasks {
		out[i] = taskSummary{ID: t.ID, Title: t.Title, AgentID: t.AgentID, Status: t.Status}
	}
	return out, nil
}

// SendMessage records a user message and resumes tasks waiting on the chat.
func (h *TaskHandler) SendMessage(ctx context.Context, companyID, chatID, userID, content string) error {
	return h.orch.HandleUserMessage(ctx, companyID, chatID, userID, content)
}
