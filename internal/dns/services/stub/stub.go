// Package stub is the interactive client at the edge of the chain. It keeps
// a small decaying cache of its own and asks the local resolver on a miss.
package stub

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/upstream"
)

// Prompt is printed before each line of input.
const Prompt = "Enter the hostname (or type 'quit' to exit) "

// RecordStore is the stub's local cache.
type RecordStore interface {
	Get(name string, rrtype domain.RRType) (domain.ResourceRecord, bool)
	Refresh(name string, rrtype domain.RRType, result string, ttl uint32) error
	Render(w io.Writer) error
}

// Resolver sends a lookup to the local resolver.
type Resolver interface {
	Lookup(ctx context.Context, name string, rrtype domain.RRType) (domain.Response, error)
}

type Options struct {
	Store     RecordStore
	Resolver  Resolver
	ShowTable bool
	Logger    log.Logger
}

// Outcome describes how a lookup was satisfied.
type Outcome struct {
	Result    string
	TTL       uint32
	FromCache bool
	Cached    bool
	Negative  bool
}

type Stub struct {
	store     RecordStore
	resolver  Resolver
	showTable bool
	logger    log.Logger
}

func New(opts Options) (*Stub, error) {
	if opts.Store == nil {
		return nil, errors.New("record store is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Stub{
		store:     opts.Store,
		resolver:  opts.Resolver,
		showTable: opts.ShowTable,
		logger:    opts.Logger,
	}, nil
}

// Resolve answers req from the local cache or the resolver. Positive answers
// with a TTL are cached under the name and type the answer carries.
func (s *Stub) Resolve(ctx context.Context, req Request) (Outcome, error) {
	if rr, ok := s.store.Get(req.Name, req.Type); ok {
		ttl, _ := rr.TTL()
		return Outcome{Result: rr.Result, TTL: ttl, FromCache: true}, nil
	}

	resp, err := s.resolver.Lookup(ctx, req.Name, req.Type)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Result: resp.Result, TTL: resp.TTLOr(0), Negative: resp.IsNegative()}
	if out.Negative || out.TTL == 0 {
		return out, nil
	}
	if err := s.store.Refresh(resp.Name, resp.Type, resp.Result, out.TTL); err != nil {
		s.logger.Warn(map[string]any{"name": resp.Name, "error": err}, "Failed to cache answer")
		return out, nil
	}
	out.Cached = true
	return out, nil
}

// Run drives the prompt until "quit", end of input, or ctx ends. A lookup
// that times out or fails still shows the table.
func (s *Stub) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, scanErr := readLines(ctx, in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, Prompt)

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		req, cmd := ParseInput(line)
		switch cmd {
		case CmdQuit:
			return nil
		case CmdEmpty:
			continue
		}

		fields := map[string]any{"name": req.Name, "type": req.Type.String()}
		outcome, err := s.Resolve(ctx, req)
		switch {
		case errors.Is(err, upstream.ErrTimeout):
			s.logger.Warn(fields, "No answer from resolver")
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			fields["error"] = err
			s.logger.Error(fields, "Lookup failed")
		default:
			fields["result"] = outcome.Result
			fields["cache"] = outcome.FromCache
			s.logger.Debug(fields, "Lookup answered")
		}

		if s.showTable {
			if err := s.store.Render(out); err != nil {
				return fmt.Errorf("render table: %w", err)
			}
		} else if err == nil {
			fmt.Fprintf(out, "%s %s %s\n", req.Name, req.Type, outcome.Result)
		}
	}
}

// readLines scans in on its own goroutine so a blocked read does not hold
// up cancellation. The scan error, if any, is delivered before lines closes.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
	}()
	return lines, scanErr
}
