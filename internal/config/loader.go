package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }}
// templates, unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	standardized, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("standardize config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with all defaults applied and no providers.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18520
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Orchestrator.Workers == 0 {
		cfg.Orchestrator.Workers = 4
	}
	if cfg.Orchestrator.PollInterval == 0 {
		cfg.Orchestrator.PollInterval = Duration(2 * time.Second)
	}
	if cfg.Orchestrator.PlanningDepthLimit == 0 {
		cfg.Orchestrator.PlanningDepthLimit = 2
	}
	if cfg.Executor.ReflectionRetries == 0 {
		cfg.Executor.ReflectionRetries = 2
	}
	if cfg.Executor.ExecutionStepsLimit == 0 {
		cfg.Executor.ExecutionStepsLimit = 24
	}
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = Duration(60 * time.Second)
	}
	if cfg.Sandbox.WorkdirRoot == "" {
		cfg.Sandbox.WorkdirRoot = filepath.Join(HelmsmanPath(), "workdirs")
	}
	if cfg.Browser.Timeout == 0 {
		cfg.Browser.Timeout = Duration(30 * time.Second)
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = filepath.Join(HelmsmanPath(), "data")
	}

	for name, p := range cfg.Models.Providers {
		if p.Retries <= 0 {
			p.Retries = 3
		}
		if p.RetryBackoff <= 0 {
			p.RetryBackoff = Duration(500 * time.Millisecond)
		}
		cfg.Models.Providers[name] = p
	}
}
