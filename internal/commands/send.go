package commands

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	restclient "github.com/gaborage/httpretry/http"
	"github.com/gaborage/httpretry/logger"
	"github.com/gaborage/httpretry/retry"
)

type sendOptions struct {
	method  string
	retries int
	delay   time.Duration
	timeout time.Duration
	data    string
	headers []string
}

func newSendCommand(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:     "send <url>",
		Aliases: []string{"get"},
		Short:   "Send one request with retries",
		Long: `Send one logical request and print the response body.

The body goes to stdout. A summary with the status, the number of attempts
and the total backoff goes to stderr. A non-2xx final status is an error.`,
		Example: `  retryctl send http://127.0.0.1:8080/script
  retryctl send -X POST -d '{"a":1}' -H 'Content-Type: application/json' --retries 5 --delay 100ms /items`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", nethttp.MethodGet, "HTTP method")
	flags.IntVar(&opts.retries, "retries", 0, "override retry.count")
	flags.DurationVar(&opts.delay, "delay", 0, "override the median first retry delay (retry.delayms)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "override http.timeout for each attempt")
	flags.StringVarP(&opts.data, "data", "d", "", "request body")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `request header as "Name: value", repeatable`)

	return cmd
}

func runSend(cmd *cobra.Command, root *rootOptions, opts *sendOptions, target string) error {
	s, err := root.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return err
	}

	settings, err := s.cfg.Retry.Settings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("retries") {
		settings.RetryCount = opts.retries
	}
	if cmd.Flags().Changed("delay") {
		settings.RetryDelay = opts.delay
	}
	timeout := s.cfg.HTTP.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = opts.timeout
	}

	metrics, err := retry.NewMetricsObserver(s.provider.MeterProvider())
	if err != nil {
		return fmt.Errorf("retry metrics: %w", err)
	}

	b := restclient.NewBuilder(s.log).
		WithRetrySettings(settings).
		WithRetryObserver(metrics).
		WithTimeout(timeout).
		WithAttemptHeader(s.cfg.HTTP.AttemptHeader).
		WithTraceIDHeader(s.cfg.HTTP.RequestIDHeader)
	if s.cfg.HTTP.BaseURL != "" {
		b = b.WithBaseURL(s.cfg.HTTP.BaseURL)
	}
	for k, v := range s.cfg.HTTP.Headers {
		b = b.WithDefaultHeader(k, v)
	}
	if s.cfg.Observability.Enabled {
		b = b.WithTracerProvider(s.provider.TracerProvider())
	}
	client, err := b.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRetryCounter(ctx)

	req := &restclient.Request{URL: target, Headers: headers}
	if opts.data != "" {
		req.Body = []byte(opts.data)
	}

	resp, err := client.Do(ctx, strings.ToUpper(opts.method), req)
	if resp != nil {
		if _, werr := cmd.OutOrStdout().Write(resp.Body); werr != nil {
			return werr
		}
		printSummary(ctx, cmd.ErrOrStderr(), resp)
	}
	return err
}

func printSummary(ctx context.Context, w io.Writer, resp *restclient.Response) {
	fmt.Fprintf(w, "\nstatus: %d %s\n", resp.StatusCode, nethttp.StatusText(resp.StatusCode))
	fmt.Fprintf(w, "attempts: %d (retries: %d, waited: %s)\n",
		resp.Stats.Attempts, logger.GetRetryCounter(ctx), logger.GetRetryWait(ctx).Round(time.Millisecond))
	fmt.Fprintf(w, "elapsed: %s\n", resp.Stats.ElapsedTime.Round(time.Millisecond))
	fmt.Fprintf(w, "request-id: %s\n", resp.Stats.RequestID)
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
