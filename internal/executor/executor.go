// Package executor drives a single task's conversation with the model:
// completion turns, tool dispatch, and the self-reflection verdict pass.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/models"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/tools"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// Executor runs execution turns for tasks. One Advance call drives the
// task until it reaches a verdict, waits on the user, or fails.
type Executor struct {
	Tasks    repo.TaskRepo
	Chats    repo.ChatRepo
	Messages repo.MessageRepo
	Results  repo.ResultRepo
	Models   ModelResolver
	Tools    *tools.Deps
	Dispatch *tools.Dispatcher
	Bus      *events.Bus
	Cfg      config.ExecutorConfig

	// CancelCheck reports whether cancellation was requested for a task.
	// Observed at the top of every turn.
	CancelCheck func(taskID string) bool

	Log *slog.Logger
}

func (e *Executor) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// Advance runs the task's execution loop. The task must be in an
// advanceable status; on return its status reflects the outcome.
func (e *Executor) Advance(ctx context.Context, task *types.Task, agent *types.Agent) error {
	if !task.Status.Advanceable() {
		return fmt.Errorf("task %s: status %s is not advanceable", task.ID, task.Status)
	}
	if task.Status == types.TaskToDo {
		if err := e.updateStatus(ctx, task, types.TaskInProgress, ""); err != nil {
			return err
		}
	}
	if task.Status != types.TaskInProgress {
		// A concurrent writer advanced the task first.
		return nil
	}

	if err := e.ensureChats(ctx, task); err != nil {
		return err
	}

	set, err := e.Tools.ForTask(ctx, task, agent)
	if err != nil {
		return fmt.Errorf("task %s: build tools: %w", task.ID, err)
	}

	stepsLimit := agent.ExecutionStepsLimit
	if stepsLimit <= 0 {
		stepsLimit = e.Cfg.ExecutionStepsLimit
	}

	for task.Status == types.TaskInProgress {
		if e.cancellationRequested(ctx, task) {
			return e.updateStatus(ctx, task, types.TaskCancelled, "cancellation requested")
		}

		last, err := e.Messages.LastNonReflection(ctx, task.CompanyID, task.ExecutionChatID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			last = nil
		case err != nil:
			return fmt.Errorf("task %s: read last message: %w", task.ID, err)
		}

		switch {
		case last == nil, last.Role == types.RoleUser,
			last.Role == types.RoleTool, last.Role == types.RoleCodeInterpreter:
			steps, err := e.Messages.CountAssistantTurns(ctx, task.CompanyID, task.ExecutionChatID)
			if err != nil {
				return err
			}
			if steps >= stepsLimit {
				return e.failTask(ctx, task, agent,
					fmt.Sprintf("execution steps limit reached (%d turns)", steps))
			}
			if err := e.completionTurn(ctx, task, agent, set); err != nil {
				return err
			}

		case last.HasToolCalls() && last.Status == types.MessageWaitingForToolCall:
			if err := e.toolTurn(ctx, task, set, last); err != nil {
				return err
			}

		default:
			// Assistant message without pending tool calls: verify.
			if err := e.selfReflect(ctx, task, agent); err != nil {
				return err
			}
			if task.Status == types.TaskInProgress {
				// Verdict rejected (incomplete children). Leave the
				// task for a later advance instead of spinning.
				return nil
			}
		}
	}
	return nil
}

// cancellationRequested checks the cooperative cancel signal and the context.
func (e *Executor) cancellationRequested(ctx context.Context, task *types.Task) bool {
	if ctx.Err() != nil {
		return true
	}
	return e.CancelCheck != nil && e.CancelCheck(task.ID)
}

// ensureChats creates the control and execution chats on first advance.
func (e *Executor) ensureChats(ctx context.Context, task *types.Task) error {
	if task.ExecutionChatID != "" {
		return nil
	}
	control := &types.Chat{CompanyID: task.CompanyID, UserID: task.UserID, Kind: types.ChatControl}
	if err := e.Chats.Create(ctx, control); err != nil {
		return fmt.Errorf("task %s: create control chat: %w", task.ID, err)
	}
	execution := &types.Chat{CompanyID: task.CompanyID, UserID: task.UserID, Kind: types.ChatExecution}
	if err := e.Chats.Create(ctx, execution); err != nil {
		return fmt.Errorf("task %s: create execution chat: %w", task.ID, err)
	}
	if err := e.Tasks.AttachChats(ctx, task.CompanyID, task.ID, control.ID, execution.ID); err != nil {
		return fmt.Errorf("task %s: attach chats: %w", task.ID, err)
	}
	task.ControlChatID = control.ID
	task.ExecutionChatID = execution.ID
	return nil
}

// completionTurn requests one model completion and persists exactly one
// assistant message for it.
func (e *Executor) completionTurn(ctx context.Context, task *types.Task, agent *types.Agent, set *tools.Set) error {
	history, err := e.Messages.List(ctx, task.CompanyID, task.ExecutionChatID, repo.ListOptions{})
	if err != nil {
		return err
	}

	pending := &types.Message{
		CompanyID: task.CompanyID,
		ChatID:    task.ExecutionChatID,
		AgentID:   agent.ID,
		Role:      types.RoleAssistant,
		Status:    types.MessagePending,
	}
	if err := e.Messages.Create(ctx, pending); err != nil {
		return err
	}
	e.publish(events.SourceExecutor, events.MessageCreatedPayload{
		MessageID: pending.ID, ChatID: pending.ChatID, Role: string(pending.Role),
	}, task.ID)

	resp, err := e.generate(ctx, agent, set, buildContext(task, agent, history, false, e.Tools.NotebookContent(task.ID)), "execution")
	if err != nil {
		if finErr := e.Messages.Finalize(ctx, pending, "", nil, types.MessageFailed); finErr != nil {
			e.log().Error("finalize failed message", "task", task.ID, "error", finErr)
		}
		e.publish(events.SourceExecutor, events.MessageUpdatedPayload{
			MessageID: pending.ID, ChatID: pending.ChatID, Status: string(types.MessageFailed),
		}, task.ID)
		if ctx.Err() != nil {
			return e.updateStatus(ctx, task, types.TaskCancelled, "cancellation requested")
		}
		return e.failTask(ctx, task, agent, fmt.Sprintf("model provider error: %v", err))
	}

	calls := fromSchemaToolCalls(resp.ToolCalls)
	status := types.MessageCompleted
	if len(calls) > 0 {
		status = types.MessageWaitingForToolCall
	}
	if err := e.Messages.Finalize(ctx, pending, resp.Content, calls, status); err != nil {
		return err
	}
	e.publish(events.SourceExecutor, events.MessageUpdatedPayload{
		MessageID: pending.ID, ChatID: pending.ChatID, Status: string(status),
	}, task.ID)
	return nil
}

// toolTurn dispatches the assistant's tool calls in order and appends
// their results before the next completion.
func (e *Executor) toolTurn(ctx context.Context, task *types.Task, set *tools.Set, assistant *types.Message) error {
	dispatchCtx := events.ContextWithTaskID(ctx, task.ID)

	results := make([]*types.Message, 0, len(assistant.ToolCalls))
	for _, call := range assistant.ToolCalls {
		content := e.Dispatch.Dispatch(dispatchCtx, set, call)
		role := types.RoleTool
		if call.Name == "execute" || call.Name == "save" {
			role = types.RoleCodeInterpreter
		}
		results = append(results, &types.Message{
			CompanyID:  task.CompanyID,
			ChatID:     task.ExecutionChatID,
			AgentID:    assistant.AgentID,
			Role:       role,
			Content:    content,
			ToolCallID: call.ID,
			Status:     types.MessageCompleted,
		})
	}
	if err := e.Messages.CreateMany(ctx, results); err != nil {
		return err
	}
	return e.Messages.UpdateStatus(ctx, task.CompanyID, assistant.ID, types.MessageCompleted)
}

// ModelResolver hands out chat models by provider name. Implemented by
// models.Registry; tests substitute a fake.
type ModelResolver interface {
	Resolve(ctx context.Context, name string) (model.ToolCallingChatModel, config.ProviderConfig, error)
	DefaultName() string
}

// generate resolves the agent's model and calls it with retry. phase tags
// the published call event as "execution" or "reflection".
func (e *Executor) generate(ctx context.Context, agent *types.Agent, set *tools.Set, msgs []*schema.Message, phase string) (*schema.Message, error) {
	name := agent.ModelID
	if name == "" {
		name = e.Models.DefaultName()
	}
	m, provCfg, err := e.Models.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	infos, err := set.Infos(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) > 0 {
		if m, err = m.WithTools(infos); err != nil {
			return nil, err
		}
	}
	started := time.Now()
	resp, err := models.GenerateWithRetry(ctx, name, m, msgs, provCfg)
	payload := events.LLMCallPayload{
		Phase:        phase,
		Model:        provCfg.Model,
		Provider:     name,
		MessageCount: len(msgs),
		Duration:     time.Since(started),
	}
	if err != nil {
		payload.Error = err.Error()
	}
	e.publish(events.SourceExecutor, payload, "")
	return resp, err
}

// failTask moves a task to Failed with the reason persisted as a result.
func (e *Executor) failTask(ctx context.Context, task *types.Task, agent *types.Agent, reason string) error {
	if err := e.Results.Create(ctx, &types.TaskResult{
		CompanyID: task.CompanyID,
		AgentID:   agent.ID,
		TaskID:    task.ID,
		Kind:      types.ResultText,
		Data:      reason,
	}); err != nil {
		return err
	}
	return e.updateStatus(ctx, task, types.TaskFailed, reason)
}

// updateStatus transitions the task, retrying transparently when another
// writer won the optimistic-concurrency race.
func (e *Executor) updateStatus(ctx context.Context, task *types.Task, to types.TaskStatus, reason string) error {
	from := task.Status
	for {
		err := e.Tasks.UpdateStatus(ctx, task, to)
		if err == nil {
			e.publish(events.SourceExecutor, events.TaskStatusChangedPayload{
				TaskID: task.ID, From: string(from), To: string(to), Reason: reason,
			}, task.ID)
			return nil
		}

		var conflict *types.ConcurrencyConflictError
		if !errors.As(err, &conflict) {
			return err
		}

		fresh, readErr := e.Tasks.Get(ctx, task.CompanyID, task.ID)
		if readErr != nil {
			return readErr
		}
		*task = *fresh
		if task.Status == to || task.Status.Terminal() {
			// The other writer already advanced the task.
			return nil
		}
		if !types.CanTransition(task.Status, to) {
			return nil
		}
	}
}

func (e *Executor) publish(source events.EventSource, payload events.EventPayload, taskID string) {
	if e.Bus == nil {
		return
	}
	e.Bus.Publish(events.NewTypedEventForTask(source, payload, taskID))
}
