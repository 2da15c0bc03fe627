// Command rr-spoof floods a resolver with forged answers for a window of
// guessed transaction ids.
package main

import (
	"os"

	"github.com/haukened/rr-chain/internal/dns/app"
)

func main() {
	os.Exit(app.Execute("rr-spoof", app.RunSpoofer))
}
