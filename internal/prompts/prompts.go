// Package prompts builds the system and task messages for execution turns.
package prompts

import (
	"fmt"
	"strings"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// executionPreamble frames every execution turn.
const executionPreamble = `You are %s. %s

You are executing a task autonomously. Work step by step. Use the tools
available to you when they help. When the task is complete, state the
final answer plainly in an ordinary message without calling any tool.`

// reflectionPreamble frames a self-reflection turn. The verdict tools are
// the only permitted response.
const reflectionPreamble = `You are %s, reviewing your own work on a task.

Look at the conversation so far and decide the state of the task. You MUST
respond by calling exactly one of these tools:
- ` + "`done`" + `: the task is complete and the final answer is already in the conversation
- ` + "`fail`" + `: the task cannot be completed; explain why in the comment
- ` + "`wait_for_user`" + `: input from the user is required before work can continue

Do not produce any other output. Call exactly one tool.`

// codeInterpreterHint is appended when the agent may run code.
const codeInterpreterHint = `

You can run shell commands with the execute tool and write files with the
save tool. Commands run in the task's working directory; files written
there persist between runs.`

// webBrowsingHint is appended when the agent may browse.
const webBrowsingHint = `

You can browse the web. Find pages with web_search, open one with navigate,
then interact with the
numbered viewport elements via click, type and scroll_down. Use
save_to_notebook to keep findings worth remembering, and replace_notebook
to rewrite the notebook when it needs restructuring.`

// System renders the system message content for an execution or
// self-reflection turn of the given agent. For browsing agents the
// current notebook content rides along so findings survive viewport
// churn between turns.
func System(agent *types.Agent, selfReflection bool, notebook string) string {
	name := agent.Name
	if name == "" {
		name = "an autonomous assistant"
	}
	if selfReflection {
		var b strings.Builder
		fmt.Fprintf(&b, reflectionPreamble, name)
		appendNotebook(&b, agent, notebook)
		return b.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, executionPreamble, name, strings.TrimSpace(agent.SystemPrompt))
	if agent.CodeInterpreterEnabled {
		b.WriteString(codeInterpreterHint)
	}
	if agent.WebBrowsingEnabled {
		b.WriteString(webBrowsingHint)
	}
	appendNotebook(&b, agent, notebook)
	return b.String()
}

func appendNotebook(b *strings.Builder, agent *types.Agent, notebook string) {
	if !agent.WebBrowsingEnabled || strings.TrimSpace(notebook) == "" {
		return
	}
	fmt.Fprintf(b, "\n\n## Research Notebook\n\n%s", strings.TrimSpace(notebook))
}

// planningPreamble frames a planning turn. The planner either assigns the
// task to a single agent or splits it into sub-tasks.
const planningPreamble = `You are a project manager orchestrating task
execution with a team of agents.

Guidelines:
1. Each sub-task is a discrete, manageable unit of work assigned to exactly
   one agent.
2. Straightforward requests do not need a plan. For those, assign the task
   to an agent directly instead of creating sub-tasks.
3. Keep the number of sub-tasks and nesting levels to a minimum. Do not
   split closely related steps like "write a script" and "run the script".
4. Do not create review or delivery steps; the user reviews final results.
5. A sub-task summary must carry everything the agent needs to do the work.
6. Plan at a single level of depth only.

Respond with exactly one tool call and no other output.`

// Planning renders the system message for a planning turn.
func Planning() string {
	return planningPreamble
}

// PlanningTaskMessage renders the planning request: the agent roster and
// the task to plan.
func PlanningTaskMessage(task *types.Task, agents []*types.Agent) string {
	var b strings.Builder
	b.WriteString("## Available Agents\n\n")
	if len(agents) == 0 {
		b.WriteString("No agents available.")
	}
	for i, a := range agents {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- ID: %s. %s: %s", a.ID, a.Name, a.Description)
	}
	fmt.Fprintf(&b, "\n\n## Task: %s", strings.TrimSpace(task.Title))
	if s := strings.TrimSpace(task.Summary); s != "" {
		fmt.Fprintf(&b, "\n\n%s", s)
	}
	return b.String()
}

// TaskMessage renders the task statement placed at the head of the
// execution transcript.
func TaskMessage(task *types.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task\n%s", strings.TrimSpace(task.Title))
	if s := strings.TrimSpace(task.Summary); s != "" {
		fmt.Fprintf(&b, "\n\n%s", s)
	}
	return b.String()
}
