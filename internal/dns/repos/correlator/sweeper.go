package correlator

import (
	"context"

	"github.com/haukened/rr-chain/internal/dns/common/clock"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// RunSweeper calls Sweep on every tick and hands each expired request to
// onExpired. It returns when ctx is cancelled and stops the ticker.
func (c *Correlator) RunSweeper(ctx context.Context, ticker clock.Ticker, onExpired func(domain.PendingRequest)) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			for _, req := range c.Sweep(c.clock.Now()) {
				if onExpired != nil {
					onExpired(req)
				}
			}
		}
	}
}
