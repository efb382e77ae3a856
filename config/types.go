package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/httpretry/observability"
	"github.com/gaborage/httpretry/retry"
)

// Config is the configuration of the retrying REST client and its command
// line tool. The koanf instance is kept for access to raw keys.
type Config struct {
	App           AppConfig            `koanf:"app" json:"app" yaml:"app"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log"`
	Retry         RetryConfig          `koanf:"retry" json:"retry" yaml:"retry"`
	HTTP          HTTPConfig           `koanf:"http" json:"http" yaml:"http"`
	Server        ServerConfig         `koanf:"server" json:"server" yaml:"server"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig identifies the running program.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// RetryConfig holds the two retry knobs.
type RetryConfig struct {
	// Count is the maximum number of retries after the first attempt.
	Count int `koanf:"count" json:"count" yaml:"count" validate:"gte=0"`
	// DelayMS is the median delay before the first retry, in milliseconds.
	DelayMS int `koanf:"delayms" json:"delayms" yaml:"delayms" validate:"gte=0"`
}

// Settings converts the configuration into validated retry settings.
func (c RetryConfig) Settings() (retry.Settings, error) {
	return retry.NewSettings(c.Count, c.DelayMS)
}

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"omitempty,url"`
	// Timeout bounds each attempt. Zero disables the per-attempt timeout.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gte=0"`
	// AttemptHeader carries the retry number on retried requests. Empty disables it.
	AttemptHeader string `koanf:"attemptheader" json:"attemptheader" yaml:"attemptheader"`
	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader string `koanf:"requestidheader" json:"requestidheader" yaml:"requestidheader"`
	// Headers are sent with every request.
	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
}

// ServerConfig configures the scripted upstream served by "retryctl serve".
type ServerConfig struct {
	Host         string        `koanf:"host" json:"host" yaml:"host"`
	Port         int           `koanf:"port" json:"port" yaml:"port" validate:"min=0,max=65535"`
	BasePath     string        `koanf:"basepath" json:"basepath" yaml:"basepath"`
	ReadTimeout  time.Duration `koanf:"readtimeout" json:"readtimeout" yaml:"readtimeout" validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"writetimeout" json:"writetimeout" yaml:"writetimeout" validate:"gte=0"`
	// Script lists the replies, e.g. "503,429@1,200~2s". The last one repeats.
	Script string `koanf:"script" json:"script" yaml:"script" validate:"required"`
}
