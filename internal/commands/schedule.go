package commands

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/httpretry/backoff"
)

type scheduleOptions struct {
	retries int
	delay   time.Duration
	seed    uint64
}

func newScheduleCommand(root *rootOptions) *cobra.Command {
	opts := &scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print a decorrelated-jitter backoff schedule",
		Long: `Print the delays the client would sleep before each retry.

Every run draws a fresh schedule unless --seed is given. Defaults come from
retry.count and retry.delayms.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.retries, "retries", 0, "override retry.count")
	flags.DurationVar(&opts.delay, "delay", 0, "override the median first retry delay")
	flags.Uint64Var(&opts.seed, "seed", 0, "seed for a reproducible schedule")

	return cmd
}

func runSchedule(cmd *cobra.Command, root *rootOptions, opts *scheduleOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	settings, err := cfg.Retry.Settings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("retries") {
		settings.RetryCount = opts.retries
	}
	if cmd.Flags().Changed("delay") {
		settings.RetryDelay = opts.delay
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	var delays []time.Duration
	if cmd.Flags().Changed("seed") {
		r := rand.New(rand.NewPCG(opts.seed, opts.seed))
		delays = backoff.NewScheduler(backoff.SourceFunc(r.Float64)).Schedule(settings.RetryDelay, settings.RetryCount)
	} else {
		delays = backoff.DecorrelatedJitter(settings.RetryDelay, settings.RetryCount)
	}

	w := cmd.OutOrStdout()
	if len(delays) == 0 {
		fmt.Fprintln(w, "no retries")
		return nil
	}

	var total time.Duration
	for i, d := range delays {
		total += d
		fmt.Fprintf(w, "retry %d: %-12s total %s\n", i+1, d.Round(time.Microsecond), total.Round(time.Microsecond))
	}
	return nil
}
