package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataglimpse/internal/config"
	"github.com/KaramelBytes/dataglimpse/internal/utils"
	"go.uber.org/zap"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
	Logger       *zap.Logger
}

// buildRuntime resolves the narrative provider (flag > config > openrouter)
// and its connection settings.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	rc := ai.RuntimeConfig{Logger: opts.Logger}
	if cfg != nil {
		rc.HTTPTimeout, rc.BaseDelay, rc.MaxDelay = cfg.RetryDurations()
		rc.RetryMax = cfg.RetryMaxAttempts
		rc.APIKey = cfg.APIKey
	}
	if rc.APIKey == "" {
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil {
		providerName = strings.ToLower(strings.TrimSpace(cfg.NarrativeProvider))
	}
	switch providerName {
	case "":
		providerName = ai.ProviderOpenRouter
	case "local":
		providerName = ai.ProviderOllama
	case "openai", "anthropic", "google", "gemini", "meta", "llama":
		providerName = ai.ProviderOpenRouter
	}

	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		rc.Host = host
	}

	rt, err := ai.New(providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return rt, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.NarrativeModel != "" {
		return cfg.NarrativeModel
	}
	return "openai/gpt-4o-mini"
}

// printJSON writes v as indented JSON to w (stdout when nil).
func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	return utils.WriteJSON(w, v)
}
