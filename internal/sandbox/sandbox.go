// Package sandbox runs agent-authored shell scripts with an interpreter
// embedded in the process, bounded by a deadline and confined to a
// per-task working directory.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Result captures one script run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Sandbox executes shell scripts in working directories keyed by task.
type Sandbox struct {
	root    string
	timeout time.Duration
}

// New creates a sandbox rooted at dir. Scripts of a task tree share one
// working directory under the root.
func New(root string, timeout time.Duration) (*Sandbox, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox: empty workdir root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create root: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Sandbox{root: root, timeout: timeout}, nil
}

// Workdir returns (creating if needed) the working directory for a key.
func (s *Sandbox) Workdir(key string) (string, error) {
	dir := filepath.Join(s.root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("sandbox: create workdir: %w", err)
	}
	return dir, nil
}

// Run parses and executes a shell script in the key's working directory.
// The script is interrupted at the configured timeout; a non-zero exit
// status is reported in the result, not as an error.
func (s *Sandbox) Run(ctx context.Context, key, script string) (*Result, error) {
	dir, err := s.Workdir(key)
	if err != nil {
		return nil, err
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(script), "script.sh")
	if err != nil {
		return nil, fmt.Errorf("sandbox: parse script: %w", err)
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.StdIO(nil, &stdout, &stderr),
		interp.Env(expand.ListEnviron(runEnv(dir)...)),
	)
	if err != nil {
		return nil, fmt.Errorf("sandbox: init interpreter: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := &Result{}
	err = runner.Run(runCtx, file)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var status interp.ExitStatus
		switch {
		case errors.As(err, &status):
			res.ExitCode = int(status)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			res.TimedOut = true
			res.ExitCode = -1
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("sandbox: run script: %w", err)
		}
	}
	return res, nil
}

// runEnv builds a minimal environment for script runs.
func runEnv(dir string) []string {
	env := []string{
		"HOME=" + dir,
		"PWD=" + dir,
		"PATH=" + os.Getenv("PATH"),
	}
	if tz := os.Getenv("TZ"); tz != "" {
		env = append(env, "TZ="+tz)
	}
	return env
}
