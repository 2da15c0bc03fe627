package app

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/time/rate"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/config"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/transport"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
	"github.com/haukened/rr-chain/internal/dns/services/spoofer"
)

// RunSpoof floods forged answers at cfg.Target from an ephemeral socket and
// returns how many datagrams were sent.
func RunSpoof(ctx context.Context, cfg *config.SpoofConfig) (int, error) {
	target, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		return 0, fmt.Errorf("invalid target %q: %w", cfg.Target, err)
	}
	rrtype, err := domain.ParseRRType(cfg.Type)
	if err != nil {
		return 0, err
	}

	sock := transport.NewUDPTransport("127.0.0.1:0", 0, log.Named("transport"))
	if err := sock.Bind(); err != nil {
		return 0, err
	}
	defer sock.Stop()

	logger := log.Named("spoofer")
	sp, err := spoofer.New(spoofer.Options{
		Sender:      sock,
		Codec:       wire.NewJSONCodec(log.Named("codec")),
		Target:      target,
		Domain:      cfg.Domain,
		Type:        rrtype,
		Result:      cfg.Result,
		TTL:         cfg.TTL,
		WindowStart: cfg.WindowStart,
		WindowSize:  cfg.WindowSize,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		Rounds:      cfg.Rounds,
		Pause:       cfg.Pause,
		Logger:      logger,
	})
	if err != nil {
		return 0, err
	}

	logger.Info(map[string]any{
		"target": target.String(),
		"domain": cfg.Domain,
		"result": cfg.Result,
		"from":   sock.Address(),
		"ids":    fmt.Sprintf("[%d,%d)", cfg.WindowStart, uint64(cfg.WindowStart)+uint64(cfg.WindowSize)),
	}, "Flooding forged answers")
	return sp.Run(ctx)
}

// RunSpoofer loads the spoofer configuration and floods.
func RunSpoofer(ctx context.Context) error {
	cfg, err := config.LoadSpoof()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := setup("rr-spoof", cfg.Env, cfg.LogLevel, ""); err != nil {
		return err
	}
	sent, err := RunSpoof(ctx, cfg)
	log.Info(map[string]any{"sent": sent}, "Spoofer finished")
	return err
}
