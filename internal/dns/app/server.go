package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/rr-chain/internal/dns/common/clock"
	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/config"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/transport"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
	"github.com/haukened/rr-chain/internal/dns/repos/correlator"
	"github.com/haukened/rr-chain/internal/dns/repos/journal"
	"github.com/haukened/rr-chain/internal/dns/repos/rrtable"
	"github.com/haukened/rr-chain/internal/dns/repos/seen"
	"github.com/haukened/rr-chain/internal/dns/repos/zone"
	"github.com/haukened/rr-chain/internal/dns/services/resolver"
)

// ServerOptions overrides what a Server would otherwise take from the
// environment.
type ServerOptions struct {
	Clock clock.Clock
	// Table receives the record table after each answer when ShowTable is
	// set. Defaults to stdout.
	Table io.Writer
}

// Server is a resolver tier: the local resolver when an upstream is
// configured, an authoritative responder otherwise.
type Server struct {
	cfg       *config.ServerConfig
	clock     clock.Clock
	store     *rrtable.Table
	pending   *correlator.Correlator
	engine    *resolver.Engine
	transport transport.ServerTransport
	journal   *journal.Store
}

// NewServer seeds the store from the zone directory, wires the engine and
// binds the socket.
func NewServer(cfg *config.ServerConfig, opts ServerOptions) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Table == nil {
		opts.Table = os.Stdout
	}
	kind := transport.TransportType(cfg.Transport)
	if !transport.IsTransportSupported(kind) {
		return nil, fmt.Errorf("unsupported transport %q, expected one of %v", cfg.Transport, transport.GetSupportedTransports())
	}
	s := &Server{cfg: cfg, clock: opts.Clock, store: rrtable.New()}

	zones, err := zone.LoadZoneDirectory(cfg.ZoneDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone directory: %w", err)
	}
	if err := s.store.ReplaceStatic(zone.Flatten(zones)); err != nil {
		return nil, fmt.Errorf("failed to seed record store: %w", err)
	}
	log.Info(map[string]any{
		"zone_dir": cfg.ZoneDir,
		"zones":    zone.Roots(zones),
		"records":  s.store.Len(),
	}, "Record store seeded")

	engineOpts := resolver.Options{
		Store:     s.store,
		Codec:     wire.NewJSONCodec(log.Named("codec")),
		StaticTTL: cfg.StaticTTL,
		Zones:     zone.Roots(zones),
		Clock:     s.clock,
		Logger:    log.Named("engine"),
	}
	if cfg.ShowTable {
		engineOpts.Table = opts.Table
	}

	if cfg.Upstream != "" {
		upstream, err := net.ResolveUDPAddr("udp", cfg.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream %q: %w", cfg.Upstream, err)
		}
		ids, err := correlator.NewIDGenerator(cfg.TxID)
		if err != nil {
			return nil, err
		}
		s.pending, err = correlator.New(correlator.Options{
			IDs:      ids,
			Capacity: cfg.MaxPending,
			Timeout:  cfg.PendingTimeout,
			Clock:    s.clock,
			OnEvict: func(req domain.PendingRequest) {
				log.Warn(map[string]any{
					"upstream_txid": req.UpstreamTxID,
					"name":          req.Name,
				}, "Pending table full, dropped oldest forwarded query")
			},
		})
		if err != nil {
			return nil, err
		}
		engineOpts.Upstream = upstream
		engineOpts.Pending = s.pending
		engineOpts.Replies = seen.New(cfg.ConsumedCapacity, seen.DefaultFPRate)
	}

	if cfg.JournalPath != "" {
		s.journal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		fields := journalFields(s.journal)
		fields["path"] = cfg.JournalPath
		if last, err := s.journal.Recent(1); err == nil && len(last) == 1 {
			fields["last_name"] = last[0].Name
			fields["last_result"] = last[0].Result
		}
		log.Info(fields, "Answer journal opened")
		engineOpts.Journal = s.journal
	}

	s.engine, err = resolver.NewEngine(engineOpts)
	if err != nil {
		return nil, s.closeOnError(err)
	}

	s.transport, err = transport.NewTransport(kind, cfg.Listen, cfg.ReadTimeout, log.Named("transport"))
	if err != nil {
		return nil, s.closeOnError(err)
	}
	if err := s.transport.Bind(); err != nil {
		return nil, s.closeOnError(err)
	}
	return s, nil
}

func (s *Server) closeOnError(err error) error {
	if s.journal != nil {
		err = multierr.Append(err, s.journal.Close())
	}
	return err
}

// Address is the bound listen address.
func (s *Server) Address() string {
	return s.transport.Address()
}

// Store exposes the record store.
func (s *Server) Store() *rrtable.Table {
	return s.store
}

// Run serves until ctx is cancelled or the transport fails. Housekeeping
// tasks run alongside: TTL decay, the pending sweeper when a timeout is
// configured, and the zone watcher when enabled.
func (s *Server) Run(ctx context.Context) error {
	role := "resolver"
	if s.engine.Authoritative() {
		role = "authority"
	}
	log.Info(map[string]any{
		"version":   Version,
		"role":      role,
		"address":   s.Address(),
		"upstream":  s.cfg.Upstream,
		"txid":      s.cfg.TxID,
		"transport": s.cfg.Transport,
	}, "Starting server")

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.transport.Start(taskCtx, s.engine); err != nil {
		return multierr.Append(fmt.Errorf("failed to start transport: %w", err), s.shutdown(nil))
	}

	var wg sync.WaitGroup
	watchErr := make(chan error, 1)
	s.startTasks(taskCtx, &wg, watchErr)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(nil, "Shutdown initiated")
	case err := <-s.transport.Done():
		if err != nil {
			runErr = fmt.Errorf("transport failed: %w", err)
		}
	}

	cancel()
	err := s.shutdown(func() {
		wg.Wait()
		close(watchErr)
	})
	for werr := range watchErr {
		err = multierr.Append(err, werr)
	}
	return multierr.Append(runErr, err)
}

func (s *Server) startTasks(ctx context.Context, wg *sync.WaitGroup, watchErr chan<- error) {
	decay := s.clock.NewTicker(s.cfg.TickInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.store.RunDecay(ctx, decay, log.Named("rrtable"))
	}()

	if s.pending != nil && s.cfg.PendingTimeout > 0 {
		sweep := s.clock.NewTicker(s.cfg.TickInterval)
		logger := log.Named("correlator")
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pending.RunSweeper(ctx, sweep, func(req domain.PendingRequest) {
				logger.Info(map[string]any{
					"upstream_txid": req.UpstreamTxID,
					"client_txid":   req.ClientTxID,
					"name":          req.Name,
				}, "Forwarded query expired unanswered")
			})
		}()
	}

	if s.cfg.WatchZones {
		logger := log.Named("zone")
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := zone.Watch(ctx, s.cfg.ZoneDir, zone.DefaultDebounce, logger, func(zones map[string][]domain.ResourceRecord) {
				if err := s.store.ReplaceStatic(zone.Flatten(zones)); err != nil {
					logger.Warn(map[string]any{"error": err}, "Reloaded zones rejected by store")
				}
			})
			if err != nil {
				watchErr <- fmt.Errorf("zone watcher: %w", err)
			}
		}()
	}
}

// shutdown stops the transport, waits for tasks via wait, and closes the
// journal, combining every error.
func (s *Server) shutdown(wait func()) error {
	err := s.transport.Stop()
	if wait != nil {
		wait()
	}
	if s.pending != nil {
		evictions, expired := s.pending.Stats()
		log.Info(map[string]any{
			"outstanding": s.pending.Len(),
			"evictions":   evictions,
			"expired":     expired,
		}, "Pending table at shutdown")
	}
	if s.journal != nil {
		log.Info(journalFields(s.journal), "Answer journal at shutdown")
		err = multierr.Append(err, s.journal.Close())
	}
	if err == nil {
		log.Info(nil, "Server stopped")
	}
	return err
}

func journalFields(j *journal.Store) map[string]any {
	count, updated := j.Stats()
	fields := map[string]any{"entries": count}
	if updated > 0 {
		fields["updated"] = time.Unix(updated, 0).UTC().Format(time.RFC3339)
	}
	return fields
}

// RunResolver loads the local resolver configuration and serves.
func RunResolver(ctx context.Context) error {
	return runServer(ctx, "rr-resolver", config.LoadResolver)
}

// RunAuthority loads the authoritative responder configuration and serves.
func RunAuthority(ctx context.Context) error {
	return runServer(ctx, "rr-authority", config.LoadAuthority)
}

func runServer(ctx context.Context, program string, load func() (*config.ServerConfig, error)) error {
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := setup(program, cfg.Env, cfg.LogLevel, cfg.SentryDSN); err != nil {
		return err
	}
	srv, err := NewServer(cfg, ServerOptions{})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
