package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/helmsman-ai/helmsman/internal/config"
)

// NewInitCommand returns the onboarding subcommand.
func NewInitCommand() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Initialize the Helmsman home directory (~/.helmsman)",
		Action: runInit,
	}
}

func runInit(_ context.Context, _ *cli.Command) error {
	root := config.HelmsmanPath()
	created := false

	// Ensure directories exist.
	dirs := []string{
		root,
		filepath.Join(root, "data"),
		filepath.Join(root, "workdirs"),
	}
	for _, d := range dirs {
		if _, err := os.Stat(d); err != nil {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", d, err)
			}
			fmt.Printf("  Created %s\n", d)
			created = true
		}
	}

	// Write default config if missing.
	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("  Created %s\n", configPath)
		created = true
	}

	// Write default .env if missing.
	dotenvPath := config.DotenvPath()
	if _, err := os.Stat(dotenvPath); err != nil {
		if err := os.WriteFile(dotenvPath, []byte(defaultDotenv), 0o600); err != nil {
			return fmt.Errorf("write .env: %w", err)
		}
		fmt.Printf("  Created %s\n", dotenvPath)
		created = true
	}

	// Write a sample agents file if missing.
	agentsPath := filepath.Join(root, "agents.yaml")
	if _, err := os.Stat(agentsPath); err != nil {
		if err := os.WriteFile(agentsPath, []byte(defaultAgents), 0o644); err != nil {
			return fmt.Errorf("write agents file: %w", err)
		}
		fmt.Printf("  Created %s\n", agentsPath)
		created = true
	}

	if !created {
		fmt.Printf("%s is already set up. Nothing to do.\n", root)
		return nil
	}

	fmt.Printf(`
Helmsman home set up at %s

Next steps:
  1. Drop your API key in %s/.env
  2. Define your agents in %s/agents.yaml
  3. Run: helmsman serve
`, root, root, root)
	return nil
}

const defaultConfig = `{
	// Helmsman configuration

	"gateway": {
		"host": "127.0.0.1",
		"port": 18520
	},

	"models": {
		"default": "claude",
		"providers": {
			"claude": {
				"driver": "anthropic",
				"model": "claude-sonnet-4-20250514",
				"auth": {
					"api_key": "${{ .Env.ANTHROPIC_API_KEY }}"
				},
				"max_tokens": 4096
			}

			// Local model via Ollama (no auth required)
			// "local": {
			// 	"driver": "ollama",
			// 	"model": "llama3.1:8b",
			// 	"base_url": "http://localhost:11434"
			// }
		}
	},

	"orchestrator": {
		"workers": 4,
		"planning_depth_limit": 2
	},

	// Browser automation sidecar; browsing tools stay off without it.
	// "browser": {
	// 	"driver_url": "http://localhost:9515",
	// 	"timeout": "30s"
	// },

	"agents": {
		"file": "${{ .Env.HOME }}/.helmsman/agents.yaml"
	}
}
`

const defaultDotenv = `# Helmsman environment variables
# This file is loaded automatically. Existing env vars are never overridden.

# ANTHROPIC_API_KEY=sk-ant-...
# OPENAI_API_KEY=sk-...
# GEMINI_API_KEY=...
`

const defaultAgents = `# Agent definitions, upserted at server startup (keyed by company + name).
agents:
  - company_id: default
    name: assistant
    description: General-purpose assistant
    system_prompt: |
      You are a capable, careful assistant. Work through tasks step by
      step and state your final answer clearly.
    code_interpreter: true
    web_browsing: true
`
