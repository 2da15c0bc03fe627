// Command rr-authority answers queries for its zones and never forwards.
package main

import (
	"os"

	"github.com/haukened/rr-chain/internal/dns/app"
)

func main() {
	os.Exit(app.Execute("rr-authority", app.RunAuthority))
}
