package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	cfgpkg "github.com/KaramelBytes/dataglimpse/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set DataGlimpse configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		showConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func showConfig(w io.Writer, c *cfgpkg.Global) {
	fmt.Fprintf(w, "listen_addr: %s\n", c.ListenAddr)
	fmt.Fprintf(w, "cors_origins: %s\n", strings.Join(c.CORSOrigins, ","))
	fmt.Fprintf(w, "store_driver: %s\n", c.StoreDriver)
	fmt.Fprintf(w, "sqlite_dsn: %s\n", c.SQLiteDSN)
	if c.PostgresDSN != "" {
		fmt.Fprintf(w, "postgres_dsn: %s\n", mask(c.PostgresDSN))
	}
	fmt.Fprintf(w, "upload_dir: %s\n", c.UploadDir)
	fmt.Fprintf(w, "max_upload_mb: %d\n", c.MaxUploadMB)
	fmt.Fprintf(w, "preview_row_cap: %d\n", c.PreviewRowCap)
	fmt.Fprintf(w, "sample_rows: %d\n", c.SampleRows)
	fmt.Fprintf(w, "guest_session_ttl: %s\n", c.GuestSessionTTL)
	fmt.Fprintf(w, "sweep_interval: %s\n", c.SweepInterval)
	fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
	fmt.Fprintf(w, "log_format: %s\n", c.LogFormat)
	fmt.Fprintf(w, "api_tokens: %d configured\n", len(c.APITokens))
	fmt.Fprintf(w, "narrative_provider: %s\n", c.NarrativeProvider)
	fmt.Fprintf(w, "narrative_model: %s\n", c.NarrativeModel)
	fmt.Fprintf(w, "api_key: %s\n", mask(c.APIKey))
	fmt.Fprintf(w, "max_tokens: %d\n", c.MaxTokens)
	fmt.Fprintf(w, "temperature: %.3f\n", c.Temperature)
	fmt.Fprintf(w, "ollama_host: %s\n", c.OllamaHost)
	fmt.Fprintf(w, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
	fmt.Fprintf(w, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
	fmt.Fprintf(w, "retry_base_delay_ms: %d\n", c.RetryBaseDelayMs)
	fmt.Fprintf(w, "retry_max_delay_ms: %d\n", c.RetryMaxDelayMs)
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	var err error
	switch key {
	case "listen_addr":
		c.ListenAddr = val
	case "cors_origins":
		c.CORSOrigins = splitList(val)
	case "store_driver":
		c.StoreDriver = strings.ToLower(val)
	case "sqlite_dsn":
		c.SQLiteDSN = val
	case "postgres_dsn":
		c.PostgresDSN = val
	case "upload_dir":
		c.UploadDir = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "preview_row_cap":
		c.PreviewRowCap, err = atoi()
	case "sample_rows":
		c.SampleRows, err = atoi()
	case "guest_session_ttl", "sweep_interval":
		d, perr := time.ParseDuration(val)
		if perr != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, perr)
		}
		if key == "guest_session_ttl" {
			c.GuestSessionTTL = d
		} else {
			c.SweepInterval = d
		}
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	case "api_tokens":
		c.APITokens = splitList(val)
	case "narrative_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.NarrativeProvider = "openrouter"
		case "ollama", "local":
			c.NarrativeProvider = "ollama"
		default:
			return fmt.Errorf("invalid narrative_provider: %s (use openrouter or ollama)", val)
		}
	case "narrative_model":
		c.NarrativeModel = val
	case "api_key":
		c.APIKey = val
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for temperature: %w", perr)
		}
		c.Temperature = f
	case "ollama_host":
		c.OllamaHost = val
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
