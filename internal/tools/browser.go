package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/browser"
)

// sessionFunc lazily resolves the task's browser session so no browser is
// launched until the first browsing tool call.
type sessionFunc func(ctx context.Context) (*browser.Session, error)

type browserTool struct {
	info    *schema.ToolInfo
	session sessionFunc
	run     func(ctx context.Context, s *browser.Session, args map[string]string) (string, error)
}

func (t *browserTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *browserTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	args := map[string]string{}
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("%s: parse args: %w", t.info.Name, err)
		}
	}
	s, err := t.session(ctx)
	if err != nil {
		return fmt.Sprintf("Error: browser unavailable: %v", err), nil
	}
	out, err := t.run(ctx, s, args)
	if err != nil {
		// Page-level failures are content the model can react to.
		return fmt.Sprintf("Error: %v", err), nil
	}
	return out, nil
}

func stringParams(params map[string]string) *schema.ParamsOneOf {
	infos := make(map[string]*schema.ParameterInfo, len(params))
	for name, desc := range params {
		infos[name] = &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: true}
	}
	return schema.NewParamsOneOfByParams(infos)
}

// BrowserTools returns the browsing tools bound to a session resolver.
func BrowserTools(session sessionFunc) []tool.InvokableTool {
	return []tool.InvokableTool{
		&browserTool{
			info: &schema.ToolInfo{
				Name:        "navigate",
				Desc:        "Open a URL and return the visible page elements.",
				ParamsOneOf: stringParams(map[string]string{"url": "Absolute URL to open"}),
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, args map[string]string) (string, error) {
				vp, err := s.Navigate(ctx, args["url"])
				if err != nil {
					return "", err
				}
				return vp.Render(), nil
			},
		},
		&browserTool{
			info: &schema.ToolInfo{
				Name:        "click",
				Desc:        "Click a page element by its id and return the updated page.",
				ParamsOneOf: stringParams(map[string]string{"id": "Element id from the page listing"}),
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, args map[string]string) (string, error) {
				vp, err := s.Click(ctx, args["id"])
				if err != nil {
					return "", err
				}
				return vp.Render(), nil
			},
		},
		&browserTool{
			info: &schema.ToolInfo{
				Name: "type",
				Desc: "Type text into an input element and return the updated page.",
				ParamsOneOf: stringParams(map[string]string{
					"id":   "Element id from the page listing",
					"text": "Text to type",
				}),
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, args map[string]string) (string, error) {
				vp, err := s.TypeText(ctx, args["id"], args["text"])
				if err != nil {
					return "", err
				}
				return vp.Render(), nil
			},
		},
		&browserTool{
			info: &schema.ToolInfo{
				Name: "scroll_down",
				Desc: "Scroll down one screen and return the newly visible elements.",
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, _ map[string]string) (string, error) {
				vp, err := s.ScrollDown(ctx)
				if err != nil {
					return "", err
				}
				return vp.Render(), nil
			},
		},
		&browserTool{
			info: &schema.ToolInfo{
				Name: "read_viewport",
				Desc: "Return the currently visible page elements without interacting.",
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, _ map[string]string) (string, error) {
				vp, err := s.CurrentViewport(ctx)
				if err != nil {
					return "", err
				}
				return vp.Render(), nil
			},
		},
		&browserTool{
			info: &schema.ToolInfo{
				Name:        "save_to_notebook",
				Desc:        "Save a finding to the research notebook, tagged with the current URL.",
				ParamsOneOf: stringParams(map[string]string{"text": "Finding to save"}),
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, args map[string]string) (string, error) {
				if err := s.SaveToNotebook(ctx, args["text"]); err != nil {
					return "", err
				}
				return "Saved to notebook.", nil
			},
		},
		&browserTool{
			info: &schema.ToolInfo{
				Name:        "replace_notebook",
				Desc:        "Replace the whole notebook with new content, discarding earlier entries.",
				ParamsOneOf: stringParams(map[string]string{"text": "New notebook content"}),
			},
			session: session,
			run: func(ctx context.Context, s *browser.Session, args map[string]string) (string, error) {
				if err := s.ReplaceNotebook(ctx, args["text"]); err != nil {
					return "", err
				}
				return "Notebook replaced.", nil
			},
		},
	}
}
