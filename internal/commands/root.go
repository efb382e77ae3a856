// Package commands implements the retryctl command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/httpretry/config"
	"github.com/gaborage/httpretry/logger"
	"github.com/gaborage/httpretry/observability"
)

type rootOptions struct {
	configFile string
	logLevel   string
	pretty     bool
}

// NewRootCommand creates the retryctl command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "retryctl",
		Short: "Send HTTP requests with decorrelated-jitter retries",
		Long: `retryctl sends HTTP requests through the retrying REST client.

Failed attempts (connection errors, timeouts, 5xx, and 503/429 replies whose
Retry-After fits the backoff schedule) are retried after a jittered delay.
The "serve" command starts a scripted upstream to watch this happen.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file (default "+config.DefaultFile+" when present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level")
	flags.BoolVar(&opts.pretty, "pretty", false, "human readable log output")

	cmd.AddCommand(
		newSendCommand(opts),
		newScheduleCommand(opts),
		newServeCommand(opts),
		NewVersionCommand(version),
	)

	return cmd
}

// session carries what a command needs once configuration is loaded.
type session struct {
	cfg      *config.Config
	log      logger.Logger
	provider observability.Provider
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.WithFile(o.configFile))
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.pretty {
		cfg.Log.Pretty = true
	}
	return cfg, nil
}

// open loads configuration, then builds the logger and the telemetry
// provider. Logs go to the command's error stream.
func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty, logger.DefaultFilterConfig())

	obs := cfg.Observability
	if obs.Service.Name == "" {
		obs.Service.Name = cfg.App.Name
	}
	if obs.Service.Version == "" {
		obs.Service.Version = cfg.App.Version
	}
	if obs.Environment == "" {
		obs.Environment = cfg.App.Env
	}
	provider, err := observability.NewProvider(&obs)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	return &session{cfg: cfg, log: log, provider: provider}, nil
}

// close flushes telemetry. Failures are logged, not returned.
func (s *session) close() {
	if err := observability.Shutdown(s.provider, 0); err != nil {
		s.log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}
