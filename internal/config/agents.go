package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentSeed is one agent definition from the agents file. Seeds are
// upserted into the store at startup, keyed by company and name.
type AgentSeed struct {
	CompanyID           string `yaml:"company_id"`
	Name                string `yaml:"name"`
	Description         string `yaml:"description,omitempty"`
	SystemPrompt        string `yaml:"system_prompt"`
	Model               string `yaml:"model,omitempty"`
	CodeInterpreter     bool   `yaml:"code_interpreter,omitempty"`
	WebBrowsing         bool   `yaml:"web_browsing,omitempty"`
	ExecutionStepsLimit int    `yaml:"execution_steps_limit,omitempty"`
}

type agentsFile struct {
	Agents []AgentSeed `yaml:"agents"`
}

// LoadAgentSeeds reads agent definitions from a YAML file. A missing
// file is not an error; it just yields no seeds.
func LoadAgentSeeds(path string) ([]AgentSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}

	for i, a := range f.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("agents file %s: agent %d has no name", path, i)
		}
		if a.CompanyID == "" {
			return nil, fmt.Errorf("agents file %s: agent %q has no company_id", path, a.Name)
		}
		if a.SystemPrompt == "" {
			return nil, fmt.Errorf("agents file %s: agent %q has no system_prompt", path, a.Name)
		}
	}
	return f.Agents, nil
}
