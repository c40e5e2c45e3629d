package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/helmsman-ai/helmsman/internal/config"
)

// ProviderEntry holds a lazily-initialized model instance.
type ProviderEntry struct {
	Config config.ProviderConfig
	model  model.ToolCallingChatModel
	once   sync.Once
	err    error
}

// Registry manages named model providers with lazy initialization.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]*ProviderEntry
	defaultName string
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig) *Registry {
	r := &Registry{
		providers:   make(map[string]*ProviderEntry),
		defaultName: cfg.Default,
	}

	for name, provCfg := range cfg.Providers {
		r.providers[name] = &ProviderEntry{Config: provCfg}
	}

	return r
}

// Replace swaps the provider set for a reloaded configuration.
// Already-initialized models are discarded and rebuilt lazily.
func (r *Registry) Replace(cfg config.ModelsConfig) {
	providers := make(map[string]*ProviderEntry, len(cfg.Providers))
	for name, provCfg := range cfg.Providers {
		providers[name] = &ProviderEntry{Config: provCfg}
	}
	r.mu.Lock()
	r.providers = providers
	r.defaultName = cfg.Default
	r.mu.Unlock()
}

// Get returns the named model, initializing it lazily.
func (r *Registry) Get(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	r.mu.RLock()
	entry, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model provider %q not found", name)
	}

	entry.once.Do(func() {
		entry.model, entry.err = CreateModel(ctx, entry.Config)
	})

	return entry.model, entry.err
}

// Default returns the default model.
func (r *Registry) Default(ctx context.Context) (model.ToolCallingChatModel, error) {
	name := r.DefaultName()
	if name == "" {
		return nil, fmt.Errorf("no default model configured")
	}
	return r.Get(ctx, name)
}

// DefaultName returns the name of the default provider.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Resolve returns the named model together with its provider config.
func (r *Registry) Resolve(ctx context.Context, name string) (model.ToolCallingChatModel, config.ProviderConfig, error) {
	m, err := r.Get(ctx, name)
	if err != nil {
		return nil, config.ProviderConfig{}, err
	}
	cfg, _ := r.ProviderConfig(name)
	return m, cfg, nil
}

// ProviderConfig returns the config of the named provider.
func (r *Registry) ProviderConfig(name string) (config.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.providers[name]
	if !ok {
		return config.ProviderConfig{}, false
	}
	return entry.Config, true
}
