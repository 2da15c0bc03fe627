// Package report forwards fatal errors to Sentry when a DSN is configured.
// With no DSN every call is a no-op.
package report

import (
	"fmt"
	"sync/atomic"

	"github.com/getsentry/raven-go"
)

var enabled atomic.Bool

// Configure points the raven client at dsn and tags events with release.
// An empty dsn leaves reporting disabled.
func Configure(dsn, release string) error {
	if dsn == "" {
		enabled.Store(false)
		return nil
	}
	if err := raven.SetDSN(dsn); err != nil {
		return fmt.Errorf("invalid sentry dsn: %w", err)
	}
	raven.SetRelease(release)
	enabled.Store(true)
	return nil
}

// Enabled reports whether errors are being shipped to Sentry.
func Enabled() bool {
	return enabled.Load()
}

// Fatal captures err synchronously so the event is delivered before the
// process exits. It returns the Sentry event id, or "" when disabled.
func Fatal(err error, tags map[string]string) string {
	if err == nil || !Enabled() {
		return ""
	}
	return raven.CaptureErrorAndWait(err, tags)
}
