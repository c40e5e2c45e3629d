// Package orchestrator owns the task lifecycle: submission, planning,
// scheduling onto worker slots, user-input resumption and cancellation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/executor"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// Orchestrator schedules runnable tasks onto a bounded set of worker
// slots and exposes the task lifecycle operations.
type Orchestrator struct {
	Tasks    repo.TaskRepo
	Chats    repo.ChatRepo
	Messages repo.MessageRepo
	Agents   repo.AgentRepo

	Exec    *executor.Executor
	Planner *planner.Planner
	Bus     *events.Bus
	Cfg     config.OrchestratorConfig
	Log     *slog.Logger

	mu      sync.Mutex
	running map[string]struct{} // task ids with an in-flight advance
	cancels map[string]struct{} // cooperative cancel requests
	parked  map[string]struct{} // in-progress tasks waiting on a child or verdict

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires an orchestrator and hooks its cancellation registry into the
// executor.
func New(o Orchestrator) *Orchestrator {
	o.running = make(map[string]struct{})
	o.cancels = make(map[string]struct{})
	o.parked = make(map[string]struct{})
	o.wake = make(chan struct{}, 1)
	out := &o
	if out.Exec != nil {
		out.Exec.CancelCheck = out.cancelRequested
	}
	return out
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}

// SubmitRequest describes a new objective.
type SubmitRequest struct {
	CompanyID    string `json:"company_id"`
	UserID       string `json:"user_id"`
	AgentID      string `json:"agent_id"`
	OriginChatID string `json:"origin_chat_id,omitempty"`
	Title        string `json:"title"`
	Summary      string `json:"summary,omitempty"`

	// Plan submits the task as a draft for a planning pass instead of
	// executing it directly.
	Plan bool `json:"plan,omitempty"`
}

// Submit validates and persists a new root task, then wakes the scheduler.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*types.Task, error) {
	if req.CompanyID == "" {
		return nil, &types.ValidationError{Field: "company_id", Reason: "required"}
	}
	if req.UserID == "" {
		return nil, &types.ValidationError{Field: "user_id", Reason: "required"}
	}
	if req.Title == "" {
		return nil, &types.ValidationError{Field: "title", Reason: "required"}
	}
	if req.AgentID == "" {
		return nil, &types.ValidationError{Field: "agent_id", Reason: "required"}
	}
	if _, err := o.Agents.Get(ctx, req.CompanyID, req.AgentID); err != nil {
		return nil, &types.ValidationError{Field: "agent_id", Reason: "unknown agent"}
	}

	status := types.TaskToDo
	if req.Plan {
		status = types.TaskDraft
	}
	task := &types.Task{
		CompanyID:    req.CompanyID,
		UserID:       req.UserID,
		AgentID:      req.AgentID,
		OriginChatID: req.OriginChatID,
		Title:        req.Title,
		Summary:      req.Summary,
		Status:       status,
	}
	if err := o.Tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	o.publish(events.TaskCreatedPayload{
		TaskID:  task.ID,
		AgentID: task.AgentID,
		Title:   task.Title,
	}, task.ID)
	o.wakeScheduler()
	return task, nil
}

// ChildSpec describes one sub-task of a decomposition.
type ChildSpec struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	// AgentID is optional; children inherit the parent's agent when empty.
	AgentID string `json:"agent_id,omitempty"`
}

// Decompose splits a live task into child tasks carrying the parent's
// ancestry path extended by the parent id. Children are scheduled
// independently; the parent's done verdict stays gated until all of
// them reach a terminal status.
func (o *Orchestrator) Decompose(ctx context.Context, companyID, parentTaskID string, specs []ChildSpec) ([]*types.Task, error) {
	parent, err := o.Tasks.Get(ctx, companyID, parentTaskID)
	if err != nil {
		return nil, err
	}
	if parent.Status.Terminal() {
		return nil, &types.ValidationError{Field: "task_id", Reason: fmt.Sprintf("task is %s", parent.Status)}
	}
	if len(specs) == 0 {
		return nil, &types.ValidationError{Field: "children", Reason: "required"}
	}
	for i, spec := range specs {
		if spec.Title == "" {
			return nil, &types.ValidationError{Field: fmt.Sprintf("children[%d].title", i), Reason: "required"}
		}
		if spec.AgentID != "" {
			if _, err := o.Agents.Get(ctx, companyID, spec.AgentID); err != nil {
				return nil, &types.ValidationError{Field: fmt.Sprintf("children[%d].agent_id", i), Reason: "unknown agent"}
			}
		}
	}

	children := make([]*types.Task, 0, len(specs))
	for _, spec := range specs {
		agentID := spec.AgentID
		if agentID == "" {
			agentID = parent.AgentID
		}
		child := &types.Task{
			CompanyID:     parent.CompanyID,
			UserID:        parent.UserID,
			AgentID:       agentID,
			OriginChatID:  parent.OriginChatID,
			Title:         spec.Title,
			Summary:       spec.Summary,
			Status:        types.TaskToDo,
			Ancestry:      parent.ChildrenAncestry(),
			AncestryLevel: parent.AncestryLevel + 1,
		}
		if err := o.Tasks.Create(ctx, child); err != nil {
			return nil, fmt.Errorf("create sub-task of %s: %w", parent.ID, err)
		}
		o.publish(events.TaskCreatedPayload{
			TaskID:   child.ID,
			ParentID: parent.ID,
			AgentID:  child.AgentID,
			Title:    child.Title,
		}, child.ID)
		children = append(children, child)
	}
	o.wakeScheduler()
	return children, nil
}

// ActiveTasks reports how many task advances are in flight.
func (o *Orchestrator) ActiveTasks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running)
}

// Cancel requests cancellation of a task and its descendants. Running
// advances observe the request cooperatively; idle tasks are moved to
// cancelled directly. Terminal tasks are left untouched.
func (o *Orchestrator) Cancel(ctx context.Context, companyID, taskID, reason string) error {
	task, err := o.Tasks.Get(ctx, companyID, taskID)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return nil
	}

	tasks := []*types.Task{task}
	if children, err := o.Tasks.Children(ctx, task); err == nil {
		tasks = append(tasks, children...)
	}

	for _, t := range tasks {
		if t.Status.Terminal() {
			continue
		}
		o.mu.Lock()
		_, busy := o.running[t.ID]
		o.cancels[t.ID] = struct{}{}
		o.mu.Unlock()
		if busy {
			continue
		}
		from := t.Status
		if err := o.Tasks.UpdateStatus(ctx, t, types.TaskCancelled); err != nil {
			o.log().Warn("cancel task", "task_id", t.ID, "error", err)
			continue
		}
		o.clearCancel(t.ID)
		// An ancestor parked on this child must get rescanned too.
		o.unpark(append(t.ParentIDs(), t.ID)...)
		o.publish(events.TaskStatusChangedPayload{
			TaskID: t.ID, From: string(from), To: string(types.TaskCancelled), Reason: reason,
		}, t.ID)
	}
	o.wakeScheduler()
	return nil
}

// HandleUserMessage records a user message in a chat and resumes any
// tasks that were waiting on it.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, companyID, chatID, userID, content string) error {
	chat, err := o.Chats.Get(ctx, companyID, chatID)
	if err != nil {
		return err
	}
	msg := &types.Message{
		CompanyID: companyID,
		ChatID:    chat.ID,
		UserID:    userID,
		Role:      types.RoleUser,
		Content:   content,
		Status:    types.MessageCompleted,
	}
	if err := o.Messages.Create(ctx, msg); err != nil {
		return err
	}
	o.publish(events.MessageCreatedPayload{
		MessageID: msg.ID, ChatID: chat.ID, Role: string(msg.Role),
	}, "")

	waiting, err := o.Tasks.WaitingOnChat(ctx, companyID, chatID)
	if err != nil {
		return err
	}
	for _, t := range waiting {
		if err := o.resume(ctx, t, content); err != nil {
			return fmt.Errorf("resume task %s: %w", t.ID, err)
		}
	}
	if len(waiting) > 0 {
		o.wakeScheduler()
	}
	return nil
}

// resume feeds the user's answer into the task's execution chat and
// moves the task back to in progress.
func (o *Orchestrator) resume(ctx context.Context, t *types.Task, content string) error {
	if t.ExecutionChatID != "" {
		if err := o.Messages.Create(ctx, &types.Message{
			CompanyID: t.CompanyID,
			ChatID:    t.ExecutionChatID,
			UserID:    t.UserID,
			Role:      types.RoleUser,
			Content:   content,
			Status:    types.MessageCompleted,
		}); err != nil {
			return err
		}
	}
	from := t.Status
	if err := o.Tasks.UpdateStatus(ctx, t, types.TaskInProgress); err != nil {
		return err
	}
	o.unpark(t.ID)
	o.publish(events.TaskStatusChangedPayload{
		TaskID: t.ID, From: string(from), To: string(types.TaskInProgress), Reason: "user replied",
	}, t.ID)
	return nil
}

// cancelRequested backs the executor's cooperative cancellation check.
func (o *Orchestrator) cancelRequested(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.cancels[taskID]
	return ok
}

func (o *Orchestrator) clearCancel(taskID string) {
	o.mu.Lock()
	delete(o.cancels, taskID)
	o.mu.Unlock()
}

// park shelves an in-progress task until something it waits on happens.
// Parked tasks are skipped by the scheduler.
func (o *Orchestrator) park(taskID string) {
	o.mu.Lock()
	o.parked[taskID] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) unpark(taskIDs ...string) {
	o.mu.Lock()
	for _, id := range taskIDs {
		delete(o.parked, id)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) isParked(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.parked[taskID]
	return ok
}

func (o *Orchestrator) publish(payload events.EventPayload, taskID string) {
	if o.Bus == nil {
		return
	}
	o.Bus.Publish(events.NewTypedEventForTask(events.SourceOrchestrator, payload, taskID))
}
