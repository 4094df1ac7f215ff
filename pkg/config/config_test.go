package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remacdev/chatbot/pkg/config"
)

// clearEnv blanks the variables Load honors so ambient values on the
// test machine cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"OLLAMA_ENDPOINT", "LANGSMITH_API_KEY", "LANGSMITH_URL",
		"LANGSMITH_PROJECT", "APP_URL", "VERCEL_URL", "CHATBOT_CONFIG",
	} {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Listen)
	assert.Equal(t, "mistral", cfg.Model)
	assert.Equal(t, 50, cfg.NPredict)
	assert.True(t, cfg.Analytics)
	assert.False(t, cfg.RunLog)
	assert.Equal(t, "https://api.langsmith.ai/v1/runs", cfg.LangSmith.URL)
	assert.Empty(t, cfg.Endpoint)
	assert.NotEmpty(t, cfg.ChatDisabledReason())

	settings := cfg.DefaultSettings()
	assert.True(t, settings.AnalyticsEnabled)
	assert.False(t, settings.RunLogEnabled)
}

func TestLoadPrefixedEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("CHATBOT_ENDPOINT", "http://localhost:11434/api/generate")
	t.Setenv("CHATBOT_MODEL", "llama2")
	t.Setenv("CHATBOT_N_PREDICT", "80")
	t.Setenv("CHATBOT_LANGSMITH__API_KEY", "sk-prefixed")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/api/generate", cfg.Endpoint)
	assert.Equal(t, "llama2", cfg.Model)
	assert.Equal(t, 80, cfg.NPredict)
	assert.Equal(t, "sk-prefixed", cfg.LangSmith.APIKey)
	assert.Empty(t, cfg.ChatDisabledReason())

	// A configured key flips the run log default on.
	assert.True(t, cfg.RunLog)
	assert.True(t, cfg.DefaultSettings().RunLogEnabled)
}

func TestLoadLegacyEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("OLLAMA_ENDPOINT", "http://box:11434/api/generate")
	t.Setenv("LANGSMITH_API_KEY", "sk-legacy")
	t.Setenv("LANGSMITH_URL", "https://collector.example.com/runs")
	t.Setenv("LANGSMITH_PROJECT", "experiments")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://box:11434/api/generate", cfg.Endpoint)
	assert.Equal(t, "sk-legacy", cfg.LangSmith.APIKey)
	assert.Equal(t, "https://collector.example.com/runs", cfg.LangSmith.URL)
	assert.Equal(t, "experiments", cfg.LangSmith.Project)
}

func TestLoadPrefixedBeatsLegacy(t *testing.T) {
	clearEnv(t)

	t.Setenv("OLLAMA_ENDPOINT", "http://legacy:11434/api/generate")
	t.Setenv("CHATBOT_ENDPOINT", "http://prefixed:11434/api/generate")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://prefixed:11434/api/generate", cfg.Endpoint)
}

func TestLoadAppURL(t *testing.T) {
	clearEnv(t)

	t.Setenv("VERCEL_URL", "myapp.vercel.app")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://myapp.vercel.app", cfg.AppURL)

	// An explicit APP_URL wins and keeps its scheme.
	t.Setenv("APP_URL", "http://localhost:8090")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8090", cfg.AppURL)
}

func TestLoadTOMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "chatbot.toml")
	raw := `
endpoint = "http://file:11434/api/generate"
model = "codellama"
n_predict = 128
debug = true

[langsmith]
api_key = "sk-file"
project = "from-file"

[telemetry]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://file:11434/api/generate", cfg.Endpoint)
	assert.Equal(t, "codellama", cfg.Model)
	assert.Equal(t, 128, cfg.NPredict)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "sk-file", cfg.LangSmith.APIKey)
	assert.Equal(t, "from-file", cfg.LangSmith.Project)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "chatbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`model = "codellama"`), 0o644))
	t.Setenv("CHATBOT_MODEL", "phi")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "phi", cfg.Model)
}

func TestLoadConfigPathEnvVar(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "alt.toml")
	require.NoError(t, os.WriteFile(path, []byte(`model = "phi"`), 0o644))
	t.Setenv("CHATBOT_CONFIG", path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "phi", cfg.Model)

	// The variable names a file that must exist, same as --config.
	t.Setenv("CHATBOT_CONFIG", filepath.Join(t.TempDir(), "nope.toml"))
	_, err = config.Load("")
	assert.Error(t, err)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`model = [unclosed`), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestNPredictClamping(t *testing.T) {
	clearEnv(t)

	t.Setenv("CHATBOT_N_PREDICT", "5000")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.MaxNPredict, cfg.NPredict)

	t.Setenv("CHATBOT_N_PREDICT", "0")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.MinNPredict, cfg.NPredict)
}
