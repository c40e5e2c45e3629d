package executor

import (
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/prompts"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// buildContext assembles the model context for a turn: the rendered
// prelude (system + task statement) followed by the stored transcript.
// Ordinary turns see only non-reflection messages; reflection turns see
// everything, including earlier reflection attempts.
func buildContext(task *types.Task, agent *types.Agent, history []*types.Message, selfReflection bool, notebook string) []*schema.Message {
	out := make([]*schema.Message, 0, len(history)+2)
	out = append(out, schema.SystemMessage(prompts.System(agent, selfReflection, notebook)))
	out = append(out, schema.UserMessage(prompts.TaskMessage(task)))
	for _, m := range history {
		out = append(out, toSchemaMessage(m))
	}
	return out
}

func toSchemaMessage(m *types.Message) *schema.Message {
	switch m.Role {
	case types.RoleAssistant:
		return &schema.Message{
			Role:      schema.Assistant,
			Content:   m.Content,
			ToolCalls: toSchemaToolCalls(m.ToolCalls),
		}
	case types.RoleTool, types.RoleCodeInterpreter:
		return schema.ToolMessage(m.Content, m.ToolCallID)
	case types.RoleSystem:
		return schema.SystemMessage(m.Content)
	default:
		return schema.UserMessage(m.Content)
	}
}

func toSchemaToolCalls(calls []types.ToolCall) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = schema.ToolCall{
			ID: c.ID,
			Function: schema.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		}
	}
	return out
}

func fromSchemaToolCalls(calls []schema.ToolCall) []types.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]types.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = types.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		}
	}
	return out
}
