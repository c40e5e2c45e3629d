package prompts

import (
	"strings"
	"testing"

	"github.com/helmsman-ai/helmsman/internal/types"
)

func TestSystem_ExecutionTurn(t *testing.T) {
	agent := &types.Agent{Name: "researcher", SystemPrompt: "You dig into primary sources."}
	result := System(agent, false, "")
	if !strings.Contains(result, "You are researcher.") {
		t.Errorf("expected agent name in preamble, got %q", result)
	}
	if !strings.Contains(result, "You dig into primary sources.") {
		t.Errorf("expected agent system prompt, got %q", result)
	}
	if strings.Contains(result, "execute tool") || strings.Contains(result, "browse the web") {
		t.Errorf("capability hints present without capabilities, got %q", result)
	}
}

func TestSystem_UnnamedAgentFallback(t *testing.T) {
	result := System(&types.Agent{}, false, "")
	if !strings.Contains(result, "You are an autonomous assistant.") {
		t.Errorf("expected fallback name, got %q", result)
	}
}

func TestSystem_CapabilityHints(t *testing.T) {
	agent := &types.Agent{
		Name:                   "operator",
		CodeInterpreterEnabled: true,
		WebBrowsingEnabled:     true,
	}
	result := System(agent, false, "")
	if !strings.Contains(result, "execute tool") {
		t.Errorf("expected code interpreter hint, got %q", result)
	}
	if !strings.Contains(result, "web_search") || !strings.Contains(result, "replace_notebook") {
		t.Errorf("expected browsing hint with tool names, got %q", result)
	}
}

func TestSystem_NotebookSection(t *testing.T) {
	agent := &types.Agent{Name: "scout", WebBrowsingEnabled: true}

	result := System(agent, false, "## https://example.com\n\nprices doubled")
	if !strings.Contains(result, "## Research Notebook") {
		t.Errorf("expected notebook section, got %q", result)
	}
	if !strings.Contains(result, "prices doubled") {
		t.Errorf("expected notebook content, got %q", result)
	}

	// No section for browsing agents with an empty notebook.
	if r := System(agent, false, "  \n"); strings.Contains(r, "Research Notebook") {
		t.Errorf("notebook section present for blank notebook, got %q", r)
	}
	// Nor for agents that cannot browse.
	grounded := &types.Agent{Name: "clerk"}
	if r := System(grounded, false, "stale findings"); strings.Contains(r, "stale findings") {
		t.Errorf("notebook leaked into non-browsing prompt, got %q", r)
	}
}

func TestSystem_ReflectionTurn(t *testing.T) {
	agent := &types.Agent{Name: "researcher", CodeInterpreterEnabled: true}
	result := System(agent, true, "")
	if !strings.Contains(result, "reviewing your own work") {
		t.Errorf("expected reflection preamble, got %q", result)
	}
	for _, verdict := range []string{"`done`", "`fail`", "`wait_for_user`"} {
		if !strings.Contains(result, verdict) {
			t.Errorf("expected verdict %s in prompt, got %q", verdict, result)
		}
	}
	if strings.Contains(result, "execute tool") {
		t.Errorf("capability hints do not belong in reflection turns, got %q", result)
	}
}

func TestTaskMessage(t *testing.T) {
	task := &types.Task{Title: "Audit the invoices", Summary: "Focus on Q3."}
	result := TaskMessage(task)
	if !strings.Contains(result, "# Task\nAudit the invoices") {
		t.Errorf("expected title under header, got %q", result)
	}
	if !strings.Contains(result, "Focus on Q3.") {
		t.Errorf("expected summary, got %q", result)
	}

	bare := TaskMessage(&types.Task{Title: "Just do it"})
	if strings.TrimSpace(bare) != "# Task\nJust do it" {
		t.Errorf("expected no trailing summary block, got %q", bare)
	}
}

func TestPlanningTaskMessage(t *testing.T) {
	task := &types.Task{Title: "Ship the feature", Summary: "End to end."}
	agents := []*types.Agent{
		{ID: "agent_1", Name: "coder", Description: "writes code"},
		{ID: "agent_2", Name: "tester", Description: "verifies behaviour"},
	}
	result := PlanningTaskMessage(task, agents)
	if !strings.Contains(result, "## Available Agents") {
		t.Errorf("expected roster header, got %q", result)
	}
	if !strings.Contains(result, "- ID: agent_1. coder: writes code") {
		t.Errorf("expected roster entry, got %q", result)
	}
	if !strings.Contains(result, "## Task: Ship the feature") {
		t.Errorf("expected task header, got %q", result)
	}

	empty := PlanningTaskMessage(task, nil)
	if !strings.Contains(empty, "No agents available.") {
		t.Errorf("expected empty-roster notice, got %q", empty)
	}
}
