// Command rr-journal prints the local resolver's answer journal as CSV.
package main

import (
	"context"
	"os"

	"github.com/haukened/rr-chain/internal/dns/app"
)

func main() {
	os.Exit(app.Execute("rr-journal", func(ctx context.Context) error {
		return app.RunJournalDump(ctx, os.Stdout)
	}))
}
