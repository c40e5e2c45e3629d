package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/browser"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/sandbox"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// Deps holds the shared backends tools execute against.
type Deps struct {
	Sandbox *sandbox.Sandbox
	Browser *browser.Manager
	// Search is the web_search tool shared across tasks. Nil disables it.
	Search tool.InvokableTool
	Bus    *events.Bus
}

// Set is the per-task tool collection handed to the execution loop.
type Set struct {
	byName  map[string]tool.InvokableTool
	ordered []tool.InvokableTool
}

// ForTask builds the tool set a task's agent may use. Control verdicts are
// always present so misuse outside reflection gets a usage-error result.
func (d *Deps) ForTask(ctx context.Context, task *types.Task, agent *types.Agent) (*Set, error) {
	var list []tool.InvokableTool
	list = append(list, ControlTools()...)
	if agent.CodeInterpreterEnabled && d.Sandbox != nil {
		list = append(list, CodeTools(d.Sandbox, task.WorkdirID())...)
	}
	if agent.WebBrowsingEnabled && d.Search != nil {
		list = append(list, d.Search)
	}
	if agent.WebBrowsingEnabled && d.Browser != nil {
		taskID := task.ID
		list = append(list, BrowserTools(func(ctx context.Context) (*browser.Session, error) {
			return d.Browser.Session(ctx, taskID)
		})...)
	}
	return NewSet(ctx, list)
}

// NotebookContent returns the task's research notebook rendered for the
// system prompt, or "" when the task has no live browser session.
func (d *Deps) NotebookContent(taskID string) string {
	if d.Browser == nil {
		return ""
	}
	s, ok := d.Browser.Peek(taskID)
	if !ok {
		return ""
	}
	return s.Notebook().Content()
}

// ReflectionSet returns the tool set of a self-reflection pass: verdicts only.
func ReflectionSet(ctx context.Context) (*Set, error) {
	return NewSet(ctx, ControlTools())
}

// NewSet indexes tools by name.
func NewSet(ctx context.Context, list []tool.InvokableTool) (*Set, error) {
	s := &Set{byName: make(map[string]tool.InvokableTool, len(list)), ordered: list}
	for _, t := range list {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		s.byName[info.Name] = t
	}
	return s, nil
}

// Infos returns the tool schemas for binding to the model.
func (s *Set) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(s.ordered))
	for _, t := range s.ordered {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Get returns the named tool.
func (s *Set) Get(name string) (tool.InvokableTool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Dispatcher executes tool calls and renders their results as message
// content. Failures never propagate as errors: the model sees them as
// tool output and reacts.
type Dispatcher struct {
	Bus *events.Bus
}

// Dispatch runs one tool call against a set and returns the result content.
func (d *Dispatcher) Dispatch(ctx context.Context, set *Set, call types.ToolCall) string {
	if d.Bus != nil {
		d.Bus.Publish(events.NewTypedEventForTask(events.SourceTools, events.ToolCallPayload{
			Status: events.ToolStatusStarted,
			Name:   call.Name,
			CallID: call.ID,
		}, events.TaskIDFromContext(ctx)))
	}

	content, failed := d.dispatch(ctx, set, call)

	if d.Bus != nil {
		status := events.ToolStatusCompleted
		payload := events.ToolCallPayload{Status: status, Name: call.Name, CallID: call.ID}
		if failed {
			payload.Status = events.ToolStatusFailed
			payload.Error = content
		}
		d.Bus.Publish(events.NewTypedEventForTask(events.SourceTools, payload, events.TaskIDFromContext(ctx)))
	}
	return content
}

func (d *Dispatcher) dispatch(ctx context.Context, set *Set, call types.ToolCall) (content string, failed bool) {
	t, ok := set.Get(call.Name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q.", call.Name), true
	}

	defer func() {
		if r := recover(); r != nil {
			content = fmt.Sprintf("Error: tool %s panicked: %v", call.Name, r)
			failed = true
		}
	}()

	out, err := t.InvokableRun(ctx, call.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	return out, false
}
