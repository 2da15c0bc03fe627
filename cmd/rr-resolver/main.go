// Command rr-resolver is the local resolver: it answers from its own zone
// and cache, and forwards misses to the authoritative responder.
package main

import (
	"os"

	"github.com/haukened/rr-chain/internal/dns/app"
)

func main() {
	os.Exit(app.Execute("rr-resolver", app.RunResolver))
}
