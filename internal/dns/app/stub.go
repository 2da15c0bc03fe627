package app

import (
	"context"
	"fmt"
	"io"

	"github.com/haukened/rr-chain/internal/dns/common/clock"
	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/config"
	"github.com/haukened/rr-chain/internal/dns/gateways/upstream"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
	"github.com/haukened/rr-chain/internal/dns/repos/correlator"
	"github.com/haukened/rr-chain/internal/dns/repos/rrtable"
	"github.com/haukened/rr-chain/internal/dns/services/stub"
)

// RunStub drives the interactive client over in and out until the user
// quits, input ends, or ctx is cancelled. The local cache decays on its own
// ticker while the prompt waits.
func RunStub(ctx context.Context, cfg *config.StubConfig, clk clock.Clock, in io.Reader, out io.Writer) error {
	if clk == nil {
		clk = clock.RealClock{}
	}
	ids, err := correlator.NewIDGenerator(cfg.TxID)
	if err != nil {
		return err
	}
	client, err := upstream.NewClient(upstream.Options{
		Server:  cfg.Resolver,
		Timeout: cfg.Timeout,
		Codec:   wire.NewJSONCodec(log.Named("codec")),
		IDs:     ids,
		Logger:  log.Named("client"),
	})
	if err != nil {
		return fmt.Errorf("failed to create resolver client: %w", err)
	}

	store := rrtable.New()
	s, err := stub.New(stub.Options{
		Store:     store,
		Resolver:  client,
		ShowTable: cfg.ShowTable,
		Logger:    log.Named("stub"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.RunDecay(ctx, clk.NewTicker(cfg.TickInterval), log.Named("rrtable"))
	}()

	err = s.Run(ctx, in, out)
	cancel()
	<-done
	return err
}

// RunStubPrompt loads the stub configuration and runs the prompt.
func RunStubPrompt(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadStub()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := setup("rr-stub", cfg.Env, cfg.LogLevel, cfg.SentryDSN); err != nil {
		return err
	}
	return RunStub(ctx, cfg, clock.RealClock{}, in, out)
}
