// Package config loads the client configuration from defaults, an optional
// YAML file and the environment, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultFile is the YAML file read when no path is given.
	DefaultFile = "retryctl.yaml"
	// EnvPrefix prefixes environment overrides, e.g. HTTPRETRY_RETRY_COUNT=5.
	EnvPrefix = "HTTPRETRY_"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type loadOptions struct {
	file     string
	required bool
	environ  func() []string
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithFile reads path instead of DefaultFile. A file named explicitly must exist.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
			o.required = true
		}
	}
}

// WithEnviron replaces os.Environ as the source of environment overrides.
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load loads configuration with priority:
// 1. Environment variables prefixed with EnvPrefix (highest priority)
// 2. The YAML configuration file
// 3. Default values (lowest priority)
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{file: DefaultFile}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
		if o.required || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", o.file, err)
		}
	}

	if err := loadEnv(k, o.environ); err != nil {
		return nil, err
	}

	return finish(k)
}

// LoadBytes loads configuration from YAML content layered over the defaults.
// The environment is not consulted.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnv(k *koanf.Koanf, environ func() []string) error {
	provider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// HTTPRETRY_RETRY_DELAYMS -> retry.delayms
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
		EnvironFunc: environ,
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "retryctl",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"retry.count":   3,
		"retry.delayms": 200,

		"http.timeout":         "30s",
		"http.attemptheader":   "X-Retry-Attempt",
		"http.requestidheader": "X-Request-ID",

		"server.host":         "127.0.0.1",
		"server.port":         8080,
		"server.readtimeout":  "15s",
		"server.writetimeout": "30s",
		"server.script":       "503,503,200",

		"observability.enabled": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// All returns every resolved configuration key, flattened.
func (c *Config) All() map[string]any {
	if c.k == nil {
		return map[string]any{}
	}
	return c.k.All()
}

// GetString returns a raw string key, or defaultVal when it is unset.
func (c *Config) GetString(key, defaultVal string) string {
	if c.k == nil || !c.k.Exists(key) {
		return defaultVal
	}
	return c.k.String(key)
}
