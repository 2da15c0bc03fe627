package rrtable

import (
	"context"

	"github.com/haukened/rr-chain/internal/dns/common/clock"
	"github.com/haukened/rr-chain/internal/dns/common/log"
)

// RunDecay calls DecayAndEvict once per tick until ctx is cancelled. It
// blocks; run it in its own goroutine. The ticker is stopped on return.
func (t *Table) RunDecay(ctx context.Context, ticker clock.Ticker, logger log.Logger) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if n := t.DecayAndEvict(); n > 0 {
				logger.Debug(map[string]any{
					"evicted":   n,
					"remaining": t.Len(),
				}, "Evicted expired records")
			}
		}
	}
}
