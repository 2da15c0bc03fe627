// Package app assembles the programs of the chain from their parts: config,
// logging, crash reporting, stores, engine and transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/common/report"
)

// Version is stamped into logs and crash reports.
const Version = "0.1.0-dev"

// Execute runs fn under a context cancelled by SIGINT or SIGTERM and maps
// the outcome to an exit code. A failure is reported to Sentry when it was
// configured, logged, and exits 1.
func Execute(program string, fn func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := fn(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}

	fields := map[string]any{"program": program, "error": err}
	if id := report.Fatal(err, map[string]string{"program": program}); id != "" {
		fields["sentry_event"] = id
	}
	log.Error(fields, "Exiting after fatal error")
	fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
	return 1
}

// setup configures the global logger and crash reporting for a program.
func setup(program, env, level, dsn string) error {
	if err := log.Configure(env, level); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	if err := report.Configure(dsn, program+"@"+Version); err != nil {
		return err
	}
	return nil
}
