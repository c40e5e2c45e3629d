package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/tools"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// selfReflect runs the constrained verification pass. The model may only
// answer with a control verdict; with none recognized within the retry
// budget the task is failed as inconclusive.
func (e *Executor) selfReflect(ctx context.Context, task *types.Task, agent *types.Agent) error {
	set, err := tools.ReflectionSet(ctx)
	if err != nil {
		return err
	}

	retries := e.Cfg.ReflectionRetries
	if retries <= 0 {
		retries = 2
	}
	attempts := retries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if e.cancellationRequested(ctx, task) {
			return e.updateStatus(ctx, task, types.TaskCancelled, "cancellation requested")
		}

		// Reflection sees the full transcript, earlier attempts included.
		history, err := e.Messages.List(ctx, task.CompanyID, task.ExecutionChatID,
			repo.ListOptions{IncludeReflection: true, IncludeInternal: true})
		if err != nil {
			return err
		}

		pending := &types.Message{
			CompanyID:        task.CompanyID,
			ChatID:           task.ExecutionChatID,
			AgentID:          agent.ID,
			Role:             types.RoleAssistant,
			Status:           types.MessagePending,
			IsSelfReflection: true,
		}
		if err := e.Messages.Create(ctx, pending); err != nil {
			return err
		}

		resp, err := e.generate(ctx, agent, set, buildContext(task, agent, history, true, e.Tools.NotebookContent(task.ID)), "reflection")
		if err != nil {
			if finErr := e.Messages.Finalize(ctx, pending, "", nil, types.MessageFailed); finErr != nil {
				e.log().Error("finalize failed reflection", "task", task.ID, "error", finErr)
			}
			if ctx.Err() != nil {
				return e.updateStatus(ctx, task, types.TaskCancelled, "cancellation requested")
			}
			return e.failTask(ctx, task, agent, fmt.Sprintf("model provider error: %v", err))
		}

		calls := fromSchemaToolCalls(resp.ToolCalls)
		if err := e.Messages.Finalize(ctx, pending, resp.Content, calls, types.MessageCompleted); err != nil {
			return err
		}

		call, ok := firstControlCall(calls)
		if !ok {
			continue
		}
		verdict, err := tools.ParseControlVerdict(call.Name, call.Arguments)
		if err != nil {
			e.log().Warn("malformed verdict arguments", "task", task.ID, "tool", call.Name, "error", err)
			continue
		}

		done, err := e.applyVerdict(ctx, task, agent, call, verdict)
		if err != nil || done {
			return err
		}
		// Rejected done verdict: leave the task in progress for a re-check.
		return nil
	}

	return e.failTask(ctx, task, agent,
		fmt.Sprintf("self-reflection inconclusive after %d attempts", attempts))
}

func firstControlCall(calls []types.ToolCall) (types.ToolCall, bool) {
	for _, c := range calls {
		if tools.IsControlTool(c.Name) {
			return c, true
		}
	}
	return types.ToolCall{}, false
}

// applyVerdict translates a control verdict into a task transition.
// Returns done=false only when a done verdict was rejected because of
// incomplete children.
func (e *Executor) applyVerdict(ctx context.Context, task *types.Task, agent *types.Agent,
	call types.ToolCall, verdict tools.ControlVerdict) (doneHandling bool, err error) {

	switch verdict.Name {
	case tools.ToolDone:
		incomplete, err := e.incompleteChildren(ctx, task)
		if err != nil {
			return true, err
		}
		if incomplete > 0 {
			reason := fmt.Sprintf("Error: cannot mark the task done, %d child tasks are still running.", incomplete)
			if err := e.appendVerdictAck(ctx, task, agent, call, reason); err != nil {
				return true, err
			}
			return false, nil
		}
		if err := e.appendVerdictAck(ctx, task, agent, call, "ok"); err != nil {
			return true, err
		}
		if err := e.captureResult(ctx, task, agent); err != nil {
			return true, err
		}
		return true, e.updateStatus(ctx, task, types.TaskDone, "verdict: done")

	case tools.ToolFail:
		if err := e.appendVerdictAck(ctx, task, agent, call, "ok"); err != nil {
			return true, err
		}
		reason := verdict.Comment
		if reason == "" {
			reason = "task failed without a stated reason"
		}
		return true, e.failTask(ctx, task, agent, reason)

	case tools.ToolWaitForUser:
		if err := e.appendVerdictAck(ctx, task, agent, call, "ok"); err != nil {
			return true, err
		}
		if task.OriginChatID != "" && verdict.Comment != "" {
			question := &types.Message{
				CompanyID: task.CompanyID,
				ChatID:    task.OriginChatID,
				AgentID:   agent.ID,
				Role:      types.RoleAssistant,
				Content:   verdict.Comment,
				Status:    types.MessageCompleted,
			}
			if err := e.Messages.Create(ctx, question); err != nil {
				return true, err
			}
			e.publish(events.SourceExecutor, events.MessageCreatedPayload{
				MessageID: question.ID, ChatID: question.ChatID, Role: string(question.Role),
			}, task.ID)
		}
		return true, e.updateStatus(ctx, task, types.TaskWaitingForUser, "verdict: wait_for_user")
	}
	return true, fmt.Errorf("task %s: unknown verdict %q", task.ID, verdict.Name)
}

// appendVerdictAck closes a verdict tool call with an internal tool
// output so the transcript stays well-formed for future context.
func (e *Executor) appendVerdictAck(ctx context.Context, task *types.Task, agent *types.Agent,
	call types.ToolCall, content string) error {
	return e.Messages.Create(ctx, &types.Message{
		CompanyID:            task.CompanyID,
		ChatID:               task.ExecutionChatID,
		AgentID:              agent.ID,
		Role:                 types.RoleTool,
		Content:              content,
		ToolCallID:           call.ID,
		Status:               types.MessageCompleted,
		IsSelfReflection:     true,
		IsInternalToolOutput: true,
	})
}

// incompleteChildren counts descendants that are not yet terminal.
func (e *Executor) incompleteChildren(ctx context.Context, task *types.Task) (int, error) {
	children, err := e.Tasks.Children(ctx, task)
	if err != nil {
		return 0, err
	}
	incomplete := 0
	for _, c := range children {
		if !c.Status.Terminal() {
			incomplete++
		}
	}
	return incomplete, nil
}

// captureResult records the final answer: the last ordinary assistant
// message of the execution chat.
func (e *Executor) captureResult(ctx context.Context, task *types.Task, agent *types.Agent) error {
	last, err := e.Messages.LastNonReflection(ctx, task.CompanyID, task.ExecutionChatID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if last.Role != types.RoleAssistant || last.Content == "" {
		return nil
	}
	result := &types.TaskResult{
		CompanyID: task.CompanyID,
		AgentID:   agent.ID,
		TaskID:    task.ID,
		Kind:      types.ResultText,
		Data:      last.Content,
	}
	if err := e.Results.Create(ctx, result); err != nil {
		return err
	}
	e.publish(events.SourceExecutor, events.ResultCreatedPayload{
		ResultID: result.ID, TaskID: task.ID, Kind: string(result.Kind),
	}, task.ID)
	return nil
}
