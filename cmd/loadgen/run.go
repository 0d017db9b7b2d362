package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JailtonJunior94/observable-service/pkg/loadgen"
)

type runOptions struct {
	target      string
	paths       []string
	requests    int
	concurrency int
	retries     int
	timeout     time.Duration
	format      string
	failOnError bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send a fixed number of GET requests and print a report",
		Long: `Run spreads --requests GETs round-robin over every --path, with at most
--concurrency in flight. Failed attempts (network errors and 5xx) are retried
only when --retries is greater than zero.

Examples:
    loadgen run --path /api/data --requests 500 --concurrency 20
    loadgen run --path /load-test --retries 2 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", loadgen.DefaultTarget, "Base URL of the backend")
	cmd.Flags().StringSliceVarP(&opts.paths, "path", "p", []string{"/api/data"}, "Request path (repeatable)")
	cmd.Flags().IntVarP(&opts.requests, "requests", "n", loadgen.DefaultRequests, "Total number of requests")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", loadgen.DefaultConcurrency, "Maximum requests in flight")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retries per request on network errors and 5xx")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", loadgen.DefaultTimeout, "Per-request timeout")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "Exit non-zero when any request failed")

	return cmd
}

func runLoad(ctx context.Context, opts runOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := loadgen.Runner{
		Target:      opts.target,
		Paths:       opts.paths,
		Requests:    opts.requests,
		Concurrency: opts.concurrency,
		Retries:     opts.retries,
		Timeout:     opts.timeout,
	}

	report, err := runner.Run(ctx)
	if err != nil && report.Requests == 0 {
		return err
	}

	switch opts.format {
	case "json":
		data, merr := json.MarshalIndent(report, "", "  ")
		if merr != nil {
			return merr
		}
		fmt.Println(string(data))
	default:
		fmt.Print(report.String())
	}

	if err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	if opts.failOnError && report.Failures() > 0 {
		return fmt.Errorf("%d of %d requests failed", report.Failures(), report.Requests)
	}
	return nil
}
