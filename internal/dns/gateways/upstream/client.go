// Package upstream is the stub side of the wire: it sends one query to a
// resolver and waits for the matching response.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
	"github.com/haukened/rr-chain/internal/dns/gateways/wire"
)

// Error message constants for consistent error handling
const (
	errServerRequired  = "resolver address is required"
	errCodecRequired   = "codec is required"
	errFailedToConnect = "failed to connect: %w"
	errEncodeFailed    = "encode failed: %w"
	errWriteFailed     = "write failed: %w"
	errReadFailed      = "read failed: %w"
)

// ErrTimeout is returned when no matching response arrives in time.
var ErrTimeout = errors.New("query timed out")

// IDSource hands out transaction ids for outgoing queries.
type IDSource interface {
	Next() uint32
}

// DialFunc establishes a network connection, matching net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures a Client.
type Options struct {
	Server  string
	Timeout time.Duration
	Codec   wire.Codec
	IDs     IDSource
	Logger  log.Logger
	// Dial is injectable for tests.
	Dial DialFunc
}

// Client queries a single resolver over UDP.
type Client struct {
	server  string
	timeout time.Duration
	codec   wire.Codec
	ids     IDSource
	logger  log.Logger
	dial    DialFunc
}

// NewClient validates opts and fills defaults: a 3 second timeout, ids
// counting from zero, and a plain net.Dialer.
func NewClient(opts Options) (*Client, error) {
	if opts.Server == "" {
		return nil, errors.New(errServerRequired)
	}
	if opts.Codec == nil {
		return nil, errors.New(errCodecRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.IDs == nil {
		opts.IDs = &counter{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	return &Client{
		server:  opts.Server,
		timeout: opts.Timeout,
		codec:   opts.Codec,
		ids:     opts.IDs,
		logger:  opts.Logger,
		dial:    opts.Dial,
	}, nil
}

// Lookup sends a query for name and type and returns the first response
// that carries the query's transaction id. Replies that fail to decode, are
// not responses, or carry another id are discarded while waiting.
func (c *Client) Lookup(ctx context.Context, name string, rrtype domain.RRType) (domain.Response, error) {
	q := domain.Query{TxID: c.ids.Next(), Name: name, Type: rrtype}
	return c.Exchange(ctx, q)
}

// Exchange sends q and waits for its response until the context deadline
// or the client timeout, whichever comes first.
func (c *Client) Exchange(ctx context.Context, q domain.Query) (domain.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.codec.EncodeQuery(q)
	if err != nil {
		return domain.Response{}, fmt.Errorf(errEncodeFailed, err)
	}

	conn, err := c.dial(ctx, "udp", c.server)
	if err != nil {
		return domain.Response{}, fmt.Errorf(errFailedToConnect, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock a pending read if the caller cancels early
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write(payload); err != nil {
		return domain.Response{}, fmt.Errorf(errWriteFailed, err)
	}

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if ctxErr := context.Cause(ctx); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
					return domain.Response{}, ctxErr
				}
				return domain.Response{}, fmt.Errorf("%w after %v", ErrTimeout, c.timeout)
			}
			return domain.Response{}, fmt.Errorf(errReadFailed, err)
		}

		msg, err := c.codec.Decode(buf[:n])
		if err != nil {
			c.logger.Debug(map[string]any{"kind": wire.KindOf(err), "error": err}, "Discarding undecodable reply")
			continue
		}
		if msg.Kind != domain.KindResponse || msg.Response.TxID != q.TxID {
			c.logger.Debug(map[string]any{
				"expected_txid": q.TxID,
				"kind":          msg.Kind.String(),
				"txid":          msg.Response.TxID,
			}, "Discarding unrelated reply")
			continue
		}
		return msg.Response, nil
	}
}

// counter is the default id source: 0, 1, 2, ... wrapping at 2^32.
type counter struct{ next uint32 }

func (c *counter) Next() uint32 {
	id := c.next
	c.next++
	return id
}
