// Command rr-stub is an interactive client. Type a hostname, optionally
// followed by a record type, or quit.
package main

import (
	"context"
	"os"

	"github.com/haukened/rr-chain/internal/dns/app"
)

func main() {
	os.Exit(app.Execute("rr-stub", func(ctx context.Context) error {
		return app.RunStubPrompt(ctx, os.Stdin, os.Stdout)
	}))
}
