package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("TEST_HELMSMAN_KEY", "sk-abc")
	path := writeConfig(t, `{
		// primary provider
		"models": {
			"default": "main",
			"providers": {
				"main": {
					"driver": "openai",
					"model": "gpt-4o",
					"auth": { "api_key": "${{ .Env.TEST_HELMSMAN_KEY }}" }
				}
			}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := cfg.Models.Providers["main"]
	if p.Auth.APIKey != "sk-abc" {
		t.Errorf("api key = %q", p.Auth.APIKey)
	}
	if p.Retries != 3 || p.RetryBackoff.Duration() != 500*time.Millisecond {
		t.Errorf("provider retry defaults: %+v", p)
	}
	if cfg.Gateway.Port != 18520 || cfg.Orchestrator.Workers != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Executor.ReflectionRetries != 2 || cfg.Executor.ExecutionStepsLimit != 24 {
		t.Errorf("executor defaults: %+v", cfg.Executor)
	}
}

func TestLoadDuration(t *testing.T) {
	path := writeConfig(t, `{
		"orchestrator": { "poll_interval": "250ms" },
		"sandbox": { "timeout": "10s" }
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Orchestrator.PollInterval.Duration() != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Orchestrator.PollInterval.Duration())
	}
	if cfg.Sandbox.Timeout.Duration() != 10*time.Second {
		t.Errorf("sandbox timeout = %v", cfg.Sandbox.Timeout.Duration())
	}
}

func TestLoadDotenvDoesNotOverride(t *testing.T) {
	t.Setenv("HELMSMAN_EXISTING", "keep")
	path := filepath.Join(t.TempDir(), ".env")
	content := "HELMSMAN_EXISTING=lose\nHELMSMAN_FRESH='value'\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("HELMSMAN_EXISTING"); got != "keep" {
		t.Errorf("existing var overridden: %q", got)
	}
	if got := os.Getenv("HELMSMAN_FRESH"); got != "value" {
		t.Errorf("fresh var = %q", got)
	}
	os.Unsetenv("HELMSMAN_FRESH")
}
