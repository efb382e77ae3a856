package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/httpretry/retry"
)

func noEnv() []string { return nil }

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnviron(noEnv))
	require.NoError(t, err)

	assert.Equal(t, "retryctl", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, 3, cfg.Retry.Count)
	assert.Equal(t, 200, cfg.Retry.DelayMS)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, retry.DefaultAttemptHeader, cfg.HTTP.AttemptHeader)
	assert.Equal(t, "X-Request-ID", cfg.HTTP.RequestIDHeader)
	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "503,503,200", cfg.Server.Script)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
app:
  env: staging
retry:
  count: 5
  delayms: 1000
http:
  baseurl: https://api.example.com
  timeout: 2s
  headers:
    Accept: application/json
`)

	cfg, err := Load(WithFile(path), WithEnviron(noEnv))
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.App.Env)
	assert.Equal(t, 5, cfg.Retry.Count)
	assert.Equal(t, 1000, cfg.Retry.DelayMS)
	assert.Equal(t, "https://api.example.com", cfg.HTTP.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "application/json", cfg.HTTP.Headers["Accept"])
	assert.Equal(t, "https://api.example.com", cfg.GetString("http.baseurl", ""))
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "retry:\n  count: 5\n")
	environ := func() []string {
		return []string{
			"HTTPRETRY_RETRY_COUNT=7",
			"HTTPRETRY_LOG_LEVEL=debug",
			"UNRELATED_RETRY_COUNT=99",
		}
	}

	cfg, err := Load(WithFile(path), WithEnviron(environ))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.Count)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "missing.yaml")), WithEnviron(noEnv))
	require.Error(t, err)
}

func TestLoadBytes(t *testing.T) {
	cfg, err := LoadBytes([]byte("retry:\n  count: 0\n  delayms: 0\n"))
	require.NoError(t, err)

	settings, err := cfg.Retry.Settings()
	require.NoError(t, err)
	assert.Equal(t, 0, settings.RetryCount)
	assert.Equal(t, time.Duration(0), settings.RetryDelay)
	assert.Equal(t, 1, settings.MaxAttempts())
}

func TestLoadBytesRejectsMalformedYAML(t *testing.T) {
	_, err := LoadBytes([]byte("retry: [unterminated"))
	require.Error(t, err)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		field     string
		category  string
		hasAction bool
	}{
		{name: "negative_retry_count", yaml: "retry:\n  count: -1\n", field: "retry.count", category: "invalid"},
		{name: "negative_retry_delay", yaml: "retry:\n  delayms: -5\n", field: "retry.delayms", category: "invalid"},
		{name: "unknown_environment", yaml: "app:\n  env: moon\n", field: "app.env", category: "invalid", hasAction: true},
		{name: "unknown_log_level", yaml: "log:\n  level: loud\n", field: "log.level", category: "invalid", hasAction: true},
		{name: "empty_app_name", yaml: "app:\n  name: \"\"\n", field: "app.name", category: "missing", hasAction: true},
		{name: "bad_base_url", yaml: "http:\n  baseurl: not a url\n", field: "http.baseurl", category: "invalid"},
		{name: "port_out_of_range", yaml: "server:\n  port: 70000\n", field: "server.port", category: "invalid"},
		{name: "empty_script", yaml: "server:\n  script: \"\"\n", field: "server.script", category: "missing", hasAction: true},
		{name: "observability_without_service", yaml: "observability:\n  enabled: true\n", field: "observability", category: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, tt.category, cfgErr.Category)
			if tt.hasAction {
				assert.NotEmpty(t, cfgErr.Action)
			}
		})
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewMissingFieldError("app.name", "HTTPRETRY_APP_NAME", "app.name")
	assert.Equal(t, "config_missing: app.name required set HTTPRETRY_APP_NAME env var or add app.name to retryctl.yaml", err.Error())

	err = NewInvalidFieldError("log.level", "invalid value", []string{"debug", "info"})
	assert.Equal(t, "config_invalid: log.level invalid value must be one of: debug, info", err.Error())
}

func TestAllExposesResolvedKeys(t *testing.T) {
	cfg, err := LoadBytes([]byte("retry:\n  count: 4\n"))
	require.NoError(t, err)

	all := cfg.All()
	assert.Equal(t, 4, all["retry.count"])
	assert.Equal(t, "fallback", cfg.GetString("does.not.exist", "fallback"))
	assert.Empty(t, (&Config{}).All())
}
