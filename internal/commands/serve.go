package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/httpretry/server"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	host   string
	port   int
	script string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a scripted upstream",
		Long: `Run an HTTP server whose /script endpoint replies from a script.

A script is a comma separated list of STATUS[@RETRY_AFTER][~DELAY] steps,
for example "503,429@1,200~2s". Separate steps with ";" instead when a
Retry-After is an HTTP date, which contains a comma:
"429@Wed, 21 Oct 2030 07:28:00 GMT;200". Each request ID walks the script
one step per attempt and the last step repeats. GET /stats shows hits per request ID
and DELETE /stats resets them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.host, "host", "", "override server.host")
	flags.IntVar(&opts.port, "port", 0, "override server.port")
	flags.StringVar(&opts.script, "script", "", "override server.script")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	s, err := root.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cfg := s.cfg.Server
	if cmd.Flags().Changed("host") {
		cfg.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}
	if cmd.Flags().Changed("script") {
		cfg.Script = opts.script
	}

	srv, err := server.New(cfg, s.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("Shutting down upstream...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
