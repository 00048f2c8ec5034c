package ai

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runtime is a chat-completion backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// RuntimeConfig carries the knobs shared by runtimes. Zero values select
// each runtime's defaults.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OpenRouter
	APIKey  string
	BaseURL string
	// Ollama
	Host string

	Logger *zap.Logger
}

// RuntimeFactory builds a Runtime from cfg.
type RuntimeFactory func(cfg RuntimeConfig) Runtime

var registry = map[string]RuntimeFactory{}

// RegisterRuntime makes a provider available to New.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// Providers lists the registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the runtime registered under provider.
func New(provider string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[provider]
	if !ok {
		return nil, fmt.Errorf("unknown narrative provider %q (available: %v)", provider, Providers())
	}
	return f(cfg), nil
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL).WithLogger(c.Logger)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay).WithLogger(c.Logger)
	})
}
