// Package config assembles the runtime configuration from a TOML file,
// CHATBOT_-prefixed environment variables, and the handful of standalone
// variables (OLLAMA_ENDPOINT, LANGSMITH_*, APP_URL/VERCEL_URL) the app
// has always honored.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/remacdev/chatbot/pkg/runlog"
	"github.com/remacdev/chatbot/pkg/session"
)

const (
	// DefaultConfigPath is tried when neither the --config flag nor
	// CHATBOT_CONFIG names a file.
	DefaultConfigPath = "chatbot.toml"

	DefaultListen   = ":8090"
	DefaultModel    = "mistral"
	DefaultNPredict = 50

	// NPredict bounds. The UI rejects values outside them; config values
	// clamp instead so a bad file still boots.
	MinNPredict = 1
	MaxNPredict = 2048

	envPrefix = "CHATBOT_"
)

// Config is the full runtime configuration.
type Config struct {
	Endpoint  string          `koanf:"endpoint"`  // Generate endpoint URL; empty disables chat
	Listen    string          `koanf:"listen"`    // Web UI bind address
	Model     string          `koanf:"model"`     // Default model name
	NPredict  int             `koanf:"n_predict"` // Default max tokens per turn
	Analytics bool            `koanf:"analytics"` // Default analytics toggle for new sessions
	RunLog    bool            `koanf:"runlog"`    // Default run log toggle for new sessions
	Debug     bool            `koanf:"debug"`     // Verbose logging
	AppURL    string          `koanf:"app_url"`   // Public origin, recorded in run log metadata
	LangSmith LangSmithConfig `koanf:"langsmith"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// LangSmithConfig points run logging at a collector.
type LangSmithConfig struct {
	APIKey  string `koanf:"api_key"` // Bearer token; empty disables run logging entirely
	URL     string `koanf:"url"`     // Collector endpoint
	Project string `koanf:"project"` // Optional project runs file under
}

// TelemetryConfig switches trace export on.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load builds the runtime config. Precedence, lowest to highest:
// defaults, the TOML file, the legacy standalone variables, then
// CHATBOT_-prefixed variables. A missing file at the default path is
// fine; a missing file at an explicitly given path is not.
func Load(path string) (*Config, error) {
	// Pull in a local .env first so every lookup below sees it.
	_ = godotenv.Load()

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if envPath := os.Getenv("CHATBOT_CONFIG"); envPath != "" {
			path, explicit = envPath, true
		} else {
			path = DefaultConfigPath
		}
	}
	if err := k.Load(file.Provider(path), tomlParser{}); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	applyLegacyEnv(k)

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.AppURL = normalizeAppURL(cfg.AppURL)
	cfg.NPredict = clampNPredict(cfg.NPredict)
	return &cfg, nil
}

// applyLegacyEnv maps the standalone variables older deployments set
// onto config keys. They override the file; the prefixed variables
// load afterwards and win when both are set.
func applyLegacyEnv(k *koanf.Koanf) {
	set := func(key, envVar string) {
		if v := os.Getenv(envVar); v != "" {
			k.Set(key, v)
		}
	}
	set("endpoint", "OLLAMA_ENDPOINT")
	set("langsmith.api_key", "LANGSMITH_API_KEY")
	set("langsmith.url", "LANGSMITH_URL")
	set("langsmith.project", "LANGSMITH_PROJECT")

	// Vercel deployments surface the public origin as VERCEL_URL; an
	// explicit APP_URL wins over it.
	if v := os.Getenv("APP_URL"); v != "" {
		k.Set("app_url", v)
	} else if v := os.Getenv("VERCEL_URL"); v != "" {
		k.Set("app_url", v)
	}
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"listen":            DefaultListen,
		"model":             DefaultModel,
		"n_predict":         DefaultNPredict,
		"analytics":         true,
		"langsmith.url":     runlog.DefaultURL,
		"telemetry.enabled": false,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
	// Run logging defaults to on exactly when a key is present.
	if !k.Exists("runlog") {
		k.Set("runlog", k.String("langsmith.api_key") != "")
	}
}

// normalizeAppURL prefixes a scheme when the platform supplies a bare
// host (Vercel sets VERCEL_URL without one).
func normalizeAppURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return "https://" + u
}

func clampNPredict(n int) int {
	if n < MinNPredict {
		return MinNPredict
	}
	if n > MaxNPredict {
		return MaxNPredict
	}
	return n
}

// ChatDisabledReason explains why chatting is off, or returns "" when an
// endpoint is configured.
func (c *Config) ChatDisabledReason() string {
	if c.Endpoint != "" {
		return ""
	}
	return "inference endpoint not configured: set OLLAMA_ENDPOINT or the endpoint config key"
}

// DefaultSettings are the toggles new sessions start with.
func (c *Config) DefaultSettings() session.Settings {
	return session.Settings{
		AnalyticsEnabled: c.Analytics,
		RunLogEnabled:    c.RunLog && c.LangSmith.APIKey != "",
	}
}
