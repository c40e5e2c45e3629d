// Package planner decomposes a draft task into agent-assigned sub-tasks
// with a single constrained model call per nesting level.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/models"
	"github.com/helmsman-ai/helmsman/internal/prompts"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/types"
)

const (
	toolPlan   = "plan_task_execution"
	toolAssign = "assign_to_agent"
)

// ModelResolver hands out chat models by provider name.
type ModelResolver interface {
	Resolve(ctx context.Context, name string) (model.ToolCallingChatModel, config.ProviderConfig, error)
	DefaultName() string
}

// Planner runs the planning pass for draft tasks.
type Planner struct {
	Tasks  repo.TaskRepo
	Agents repo.AgentRepo
	Models ModelResolver
	Bus    *events.Bus

	// DepthLimit caps how many ancestry levels may receive sub-tasks.
	DepthLimit int

	Log *slog.Logger
}

func (p *Planner) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

type planTask struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	AgentID string `json:"agent_id"`
}

type executionPlan struct {
	Tasks []planTask `json:"tasks"`
}

// Plan decides how a draft task is executed: either reassigned to a
// single agent, or split into draft sub-tasks which are then planned
// recursively. Tasks created by a plan stay in draft until the caller
// promotes the subtree.
func (p *Planner) Plan(ctx context.Context, task *types.Task) error {
	if task.Status != types.TaskDraft {
		return fmt.Errorf("task %s: planning unavailable in status %s", task.ID, task.Status)
	}

	agents, err := p.Agents.List(ctx, task.CompanyID)
	if err != nil {
		return fmt.Errorf("task %s: list agents: %w", task.ID, err)
	}

	plan, err := p.requestPlan(ctx, task, agents)
	if err != nil {
		return err
	}
	if len(plan.Tasks) == 0 {
		return fmt.Errorf("task %s: empty plan received", task.ID)
	}

	if len(plan.Tasks) == 1 {
		agentID := p.resolveAgent(plan.Tasks[0].AgentID, agents, task.AgentID)
		if agentID != task.AgentID {
			if err := p.Tasks.Assign(ctx, task.CompanyID, task.ID, agentID); err != nil {
				return err
			}
			task.AgentID = agentID
		}
		return nil
	}

	if task.AncestryLevel >= p.DepthLimit {
		p.log().Info("planning depth limit reached, keeping task whole",
			"task_id", task.ID, "level", task.AncestryLevel, "limit", p.DepthLimit)
		return nil
	}

	for _, st := range plan.Tasks {
		child := &types.Task{
			CompanyID:     task.CompanyID,
			UserID:        task.UserID,
			AgentID:       p.resolveAgent(st.AgentID, agents, task.AgentID),
			OriginChatID:  task.OriginChatID,
			Title:         st.Title,
			Summary:       st.Summary,
			Status:        types.TaskDraft,
			Ancestry:      task.ChildrenAncestry(),
			AncestryLevel: task.AncestryLevel + 1,
		}
		if err := p.Tasks.Create(ctx, child); err != nil {
			return fmt.Errorf("task %s: create sub-task: %w", task.ID, err)
		}
		if p.Bus != nil {
			p.Bus.Publish(events.NewTypedEventForTask(events.SourcePlanner, events.TaskCreatedPayload{
				TaskID:   child.ID,
				ParentID: task.ID,
				AgentID:  child.AgentID,
				Title:    child.Title,
			}, child.ID))
		}
		if err := p.Plan(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// requestPlan makes the constrained model call and parses the verdict.
func (p *Planner) requestPlan(ctx context.Context, task *types.Task, agents []*types.Agent) (*executionPlan, error) {
	name := p.Models.DefaultName()
	m, provCfg, err := p.Models.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if m, err = m.WithTools(planToolInfos()); err != nil {
		return nil, err
	}

	msgs := []*schema.Message{
		schema.SystemMessage(prompts.Planning()),
		schema.UserMessage(prompts.PlanningTaskMessage(task, agents)),
	}
	resp, err := models.GenerateWithRetry(ctx, name, m, msgs, provCfg)
	if err != nil {
		return nil, fmt.Errorf("task %s: planning completion: %w", task.ID, err)
	}

	for _, call := range resp.ToolCalls {
		switch call.Function.Name {
		case toolAssign:
			var args struct {
				AgentID string `json:"agent_id"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("task %s: parse %s arguments: %w", task.ID, toolAssign, err)
			}
			return &executionPlan{Tasks: []planTask{{
				Title:   task.Title,
				Summary: task.Summary,
				AgentID: args.AgentID,
			}}}, nil
		case toolPlan:
			var plan executionPlan
			if err := json.Unmarshal([]byte(call.Function.Arguments), &plan); err != nil {
				return nil, fmt.Errorf("task %s: parse plan: %w", task.ID, err)
			}
			return &plan, nil
		}
	}
	return nil, fmt.Errorf("task %s: no plan tool call received", task.ID)
}

// resolveAgent validates the model's agent choice against the roster and
// falls back to the task's current agent.
func (p *Planner) resolveAgent(agentID string, agents []*types.Agent, fallback string) string {
	for _, a := range agents {
		if a.ID == agentID {
			return agentID
		}
	}
	return fallback
}

func planToolInfos() []*schema.ToolInfo {
	subTask := map[string]*schema.ParameterInfo{
		"title": {
			Type:     schema.String,
			Desc:     "Task title",
			Required: true,
		},
		"summary": {
			Type:     schema.String,
			Desc:     "Everything the agent needs to complete the task",
			Required: true,
		},
		"agent_id": {
			Type:     schema.String,
			Desc:     "ID of the agent to assign the task to",
			Required: true,
		},
	}
	return []*schema.ToolInfo{
		{
			Name: toolAssign,
			Desc: "No plan required. Assign the task to a single agent.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"agent_id": {
					Type:     schema.String,
					Desc:     "ID of the agent to assign the task to",
					Required: true,
				},
			}),
		},
		{
			Name: toolPlan,
			Desc: "Split the task into sequential sub-tasks.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"tasks": {
					Type: schema.Array,
					Desc: "List of planned sub-tasks",
					ElemInfo: &schema.ParameterInfo{
						Type:      schema.Object,
						SubParams: subTask,
					},
					Required: true,
				},
			}),
		},
	}
}
