package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// HTTP server
	ListenAddr  string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// Storage
	StoreDriver string `mapstructure:"store_driver" yaml:"store_driver"`
	SQLiteDSN   string `mapstructure:"sqlite_dsn" yaml:"sqlite_dsn"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	UploadDir   string `mapstructure:"upload_dir" yaml:"upload_dir"`

	// Limits
	MaxUploadMB     int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PreviewRowCap   int           `mapstructure:"preview_row_cap" yaml:"preview_row_cap"`
	SampleRows      int           `mapstructure:"sample_rows" yaml:"sample_rows"`
	GuestSessionTTL time.Duration `mapstructure:"guest_session_ttl" yaml:"guest_session_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// APITokens entries have the form "token=accountId" or "token=accountId:role".
	APITokens []string `mapstructure:"api_tokens" yaml:"api_tokens"`

	// Narrative insights
	NarrativeProvider string  `mapstructure:"narrative_provider" yaml:"narrative_provider"`
	NarrativeModel    string  `mapstructure:"narrative_model" yaml:"narrative_model"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	OllamaHost        string  `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP/Retry configuration for narrative runtimes
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Dir returns ~/.dataglimpse.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dataglimpse"), nil
}

// Save writes c as YAML to cfgFile, or to ~/.dataglimpse/config.yaml when
// cfgFile is empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsurePrivateDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.WriteFileAtomic(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from defaults, the config file, a .env file and
// the environment. Precedence: env > .env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// A missing .env is normal; variables already set are not overridden.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DATAGLIMPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	lim := model.DefaultLimits()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("store_driver", DriverSQLite)
	v.SetDefault("sqlite_dsn", "")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("upload_dir", "")
	v.SetDefault("max_upload_mb", int(lim.MaxUploadBytes>>20))
	v.SetDefault("preview_row_cap", lim.PreviewRowCap)
	v.SetDefault("sample_rows", lim.SampleRows)
	v.SetDefault("guest_session_ttl", lim.GuestSessionTTL)
	v.SetDefault("sweep_interval", 15*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("api_tokens", []string{})
	v.SetDefault("narrative_provider", "openrouter")
	v.SetDefault("narrative_model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SQLiteDSN == "" {
		c.SQLiteDSN = filepath.Join(dir, "dataglimpse.db")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(os.TempDir(), "dataglimpse-uploads")
	}
	return &c, nil
}

// Validate rejects settings the services cannot run with.
func (c *Global) Validate() error {
	var problems []string
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			problems = append(problems, "postgres_dsn is required for the postgres store")
		}
	default:
		problems = append(problems, fmt.Sprintf("store_driver %q is not one of memory, sqlite, postgres", c.StoreDriver))
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "max_upload_mb must be positive")
	}
	if c.PreviewRowCap <= 0 {
		problems = append(problems, "preview_row_cap must be positive")
	}
	if c.SampleRows <= 0 {
		problems = append(problems, "sample_rows must be positive")
	}
	if c.GuestSessionTTL <= 0 {
		problems = append(problems, "guest_session_ttl must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Limits returns the caps handed to the services.
func (c *Global) Limits() model.Limits {
	return model.Limits{
		PreviewRowCap:   c.PreviewRowCap,
		SampleRows:      c.SampleRows,
		GuestSessionTTL: c.GuestSessionTTL,
		MaxUploadBytes:  int64(c.MaxUploadMB) << 20,
	}
}

// StoreDSN returns the DSN for the selected driver.
func (c *Global) StoreDSN() string {
	switch c.StoreDriver {
	case DriverSQLite:
		return c.SQLiteDSN
	case DriverPostgres:
		return c.PostgresDSN
	}
	return ""
}

// RetryDurations converts the millisecond and second settings.
func (c *Global) RetryDurations() (timeout, base, maxDelay time.Duration) {
	return time.Duration(c.HTTPTimeoutSec) * time.Second,
		time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}
