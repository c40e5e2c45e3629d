// Package tools exposes the actions a task's model may invoke: control
// verdicts, the code interpreter and browser automation. Every tool
// implements Eino's tool.InvokableTool.
package tools

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Control verdict tool names. The reflection controller recognizes these
// by name; they are never dispatched for side effects.
const (
	ToolDone        = "done"
	ToolFail        = "fail"
	ToolWaitForUser = "wait_for_user"
)

// IsControlTool reports whether name is one of the verdict tools.
func IsControlTool(name string) bool {
	return name == ToolDone || name == ToolFail || name == ToolWaitForUser
}

// ControlVerdict is a parsed verdict tool call.
type ControlVerdict struct {
	Name string
	// Comment carries the fail reason or the wait-for-user question.
	Comment string
}

// ParseControlVerdict extracts the verdict from tool-call arguments.
func ParseControlVerdict(name, argumentsJSON string) (ControlVerdict, error) {
	v := ControlVerdict{Name: name}
	if argumentsJSON == "" {
		return v, nil
	}
	var args struct {
		Reason   string `json:"reason"`
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return v, err
	}
	switch name {
	case ToolFail:
		v.Comment = args.Reason
	case ToolWaitForUser:
		v.Comment = args.Question
	}
	return v, nil
}

var _ tool.InvokableTool = (*controlTool)(nil)

// controlTool exposes a verdict to the model. Outside a reflection pass
// its invocation is a usage error surfaced as tool-result content.
type controlTool struct {
	name string
	desc string
	info *schema.ToolInfo
}

func newControlTool(name, desc string, params map[string]*schema.ParameterInfo) *controlTool {
	info := &schema.ToolInfo{Name: name, Desc: desc}
	if len(params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}
	return &controlTool{name: name, desc: desc, info: info}
}

func (t *controlTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *controlTool) InvokableRun(_ context.Context, _ string, _ ...tool.Option) (string, error) {
	return "Error: the " + t.name + " tool may only be used while verifying a finished task.", nil
}

// ControlTools returns the three verdict tools.
func ControlTools() []tool.InvokableTool {
	return []tool.InvokableTool{
		newControlTool(ToolDone,
			"Declare the task complete. The final answer must already be in the conversation.", nil),
		newControlTool(ToolFail,
			"Declare the task impossible to complete.", map[string]*schema.ParameterInfo{
				"reason": {Type: schema.String, Desc: "Why the task cannot be completed", Required: true},
			}),
		newControlTool(ToolWaitForUser,
			"Pause the task until the user answers a question.", map[string]*schema.ParameterInfo{
				"question": {Type: schema.String, Desc: "What to ask the user", Required: true},
			}),
	}
}
