package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/helmsman-ai/helmsman/internal/sandbox"
)

var _ tool.InvokableTool = (*saveFileTool)(nil)

// saveFileTool writes a file into the task's working directory.
type saveFileTool struct {
	sandbox *sandbox.Sandbox
	workdir string
}

func (t *saveFileTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "save",
		Desc: "Save a file into the task's working directory.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"filename": {Type: schema.String, Desc: "Relative file name", Required: true},
			"content":  {Type: schema.String, Desc: "File content", Required: true},
		}),
	}, nil
}

func (t *saveFileTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("save: parse args: %w", err)
	}
	if args.Filename == "" {
		return "Error: filename is required.", nil
	}

	dir, err := t.sandbox.Workdir(t.workdir)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, filepath.Clean(args.Filename))
	if !strings.HasPrefix(dest, dir+string(filepath.Separator)) {
		return "Error: filename escapes the working directory.", nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if err := os.WriteFile(dest, []byte(args.Content), 0o644); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return fmt.Sprintf("Saved %s (%d bytes).", args.Filename, len(args.Content)), nil
}

var _ tool.InvokableTool = (*executeTool)(nil)

// executeTool runs a shell command in the task's working directory.
type executeTool struct {
	sandbox *sandbox.Sandbox
	workdir string
}

func (t *executeTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "execute",
		Desc: "Execute a shell command in the task's working directory and return its output.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"command": {Type: schema.String, Desc: "Shell command to run", Required: true},
		}),
	}, nil
}

func (t *executeTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("execute: parse args: %w", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return "Error: command is required.", nil
	}

	res, err := t.sandbox.Run(ctx, t.workdir, args.Command)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return renderRunResult(res), nil
}

func renderRunResult(res *sandbox.Result) string {
	var b strings.Builder
	if res.TimedOut {
		b.WriteString("Command timed out.\n")
	} else if res.ExitCode != 0 {
		fmt.Fprintf(&b, "Exit code: %d\n", res.ExitCode)
	}
	if res.Stdout != "" {
		fmt.Fprintf(&b, "stdout:\n%s", res.Stdout)
	}
	if res.Stderr != "" {
		if res.Stdout != "" {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "stderr:\n%s", res.Stderr)
	}
	if b.Len() == 0 {
		return "Command completed with no output."
	}
	return b.String()
}

// CodeTools returns the code interpreter tools bound to a working
// directory key.
func CodeTools(sb *sandbox.Sandbox, workdirKey string) []tool.InvokableTool {
	return []tool.InvokableTool{
		&saveFileTool{sandbox: sb, workdir: workdirKey},
		&executeTool{sandbox: sb, workdir: workdirKey},
	}
}
