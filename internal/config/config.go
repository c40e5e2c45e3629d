package config

import "time"

// Config is the root configuration for Helmsman.
type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Models       ModelsConfig       `json:"models"`
	Events       EventsConfig       `json:"events"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Executor     ExecutorConfig     `json:"executor"`
	Sandbox      SandboxConfig      `json:"sandbox"`
	Browser      BrowserConfig      `json:"browser"`
	WebSearch    WebSearchConfig    `json:"web_search"`
	Data         DataConfig         `json:"data"`
	Agents       AgentsConfig       `json:"agents"`
	Schedules    []ScheduleEntry    `json:"schedules,omitempty"`
}

// ScheduleEntry defines a recurring task submission.
type ScheduleEntry struct {
	Name      string `json:"name"`
	Cron      string `json:"cron"`
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
	// Agent is the agent name within the company, resolved at trigger time.
	Agent   string `json:"agent"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Plan    bool   `json:"plan,omitempty"`
}

// GatewayConfig holds the HTTP API server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string     `json:"driver"` // "openai"
	Model     string     `json:"model"`
	BaseURL   string     `json:"base_url,omitempty"`
	Auth      AuthConfig `json:"auth"`
	MaxTokens int        `json:"max_tokens,omitempty"`
	Timeout   Duration   `json:"timeout,omitempty"`
	// Retries bounds attempts against transient provider failures.
	Retries int `json:"retries,omitempty"`
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff Duration `json:"retry_backoff,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${{ .Env.VAR }} template
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// OrchestratorConfig holds the scheduling settings.
type OrchestratorConfig struct {
	// Workers is the number of concurrent task execution slots.
	Workers int `json:"workers"`
	// PollInterval is how often the pool rescans for runnable tasks.
	PollInterval Duration `json:"poll_interval"`
	// PlanningDepthLimit caps decomposition depth.
	PlanningDepthLimit int `json:"planning_depth_limit"`
}

// ExecutorConfig holds the per-task execution loop settings.
type ExecutorConfig struct {
	// ReflectionRetries is how many extra self-reflection turns are
	// attempted when no verdict is recognized.
	ReflectionRetries int `json:"reflection_retries"`
	// ExecutionStepsLimit is the default cap on assistant turns per task.
	// Agents may override it.
	ExecutionStepsLimit int `json:"execution_steps_limit"`
}

// SandboxConfig holds the code interpreter settings.
type SandboxConfig struct {
	// Timeout bounds a single script run.
	Timeout Duration `json:"timeout"`
	// WorkdirRoot is where per-task working directories are created.
	WorkdirRoot string `json:"workdir_root,omitempty"`
}

// BrowserConfig configures the browser automation sidecar. Browsing
// tools are offered only when a driver URL is set.
type BrowserConfig struct {
	// DriverURL is the base URL of the browser driver sidecar.
	DriverURL string `json:"driver_url,omitempty"`
	// Timeout bounds a single driver request.
	Timeout Duration `json:"timeout,omitempty"`
}

// WebSearchConfig configures the web_search tool offered to browsing agents.
type WebSearchConfig struct {
	// Provider selects the backend: "duckduckgo" (default, keyless),
	// "google" or "bing".
	Provider   string   `json:"provider,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	Timeout    Duration `json:"timeout,omitempty"`
	// Google programmable search credentials.
	GoogleAPIKey string `json:"google_api_key,omitempty"`
	GoogleCX     string `json:"google_cx,omitempty"`
	// Bing web search credentials.
	BingAPIKey string `json:"bing_api_key,omitempty"`
}

// DataConfig holds persistence settings.
type DataConfig struct {
	// Dir is where the SQLite database lives. Defaults under HelmsmanPath.
	Dir string `json:"dir,omitempty"`
}

// AgentsConfig points at the agent seed file.
type AgentsConfig struct {
	// File is a YAML file of agent definitions loaded at startup.
	File string `json:"file,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
