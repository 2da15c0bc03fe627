package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/haukened/rr-chain/internal/dns/common/log"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// MaxDatagramSize is the largest payload read from the socket.
const MaxDatagramSize = 4096

// DefaultReadTimeout bounds each blocking read so cancellation is observed.
const DefaultReadTimeout = time.Second

// UDPTransport implements ServerTransport over a single UDP socket. The
// receive loop is strictly sequential: a datagram is decoded, handled, and
// its replies written before the next read.
type UDPTransport struct {
	addr        string
	readTimeout time.Duration
	logger      log.Logger

	mu      sync.RWMutex
	conn    *net.UDPConn
	running bool
	stopped bool
	done    chan error
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(addr string, readTimeout time.Duration, logger log.Logger) *UDPTransport {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &UDPTransport{
		addr:        addr,
		readTimeout: readTimeout,
		logger:      logger,
		done:        make(chan error, 1),
	}
}

// Bind opens the socket without starting the receive loop. Calling it again
// is a no-op.
func (t *UDPTransport) Bind() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bindLocked()
}

func (t *UDPTransport) bindLocked() error {
	if t.conn != nil {
		return nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}
	t.conn = conn
	return nil
}

// Start binds the socket and begins the receive loop in a new goroutine.
func (t *UDPTransport) Start(ctx context.Context, handler PacketHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}
	if t.stopped {
		return fmt.Errorf("UDP transport already stopped")
	}
	if err := t.bindLocked(); err != nil {
		return err
	}
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.conn.LocalAddr().String(),
	}, "Transport started")

	go func() {
		t.done <- t.serve(ctx, handler)
	}()
	return nil
}

// Done yields the receive loop's result once it ends.
func (t *UDPTransport) Done() <-chan error {
	return t.done
}

// Stop closes the socket. The receive loop, if running, ends with a nil
// error.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil
	}
	t.stopped = true
	t.running = false
	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	if err != nil {
		t.logger.Warn(map[string]any{"error": err}, "Error closing UDP connection")
	}
	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.conn.LocalAddr().String(),
	}, "Transport stopped")
	return err
}

// Address returns the bound local address, or the configured address when
// the socket is not open yet.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

// Send writes one datagram from the transport's socket.
func (t *UDPTransport) Send(d domain.Datagram) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("UDP transport not bound")
	}
	_, err := conn.WriteTo(d.Payload, d.Addr)
	return err
}

func (t *UDPTransport) isStopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

// serve is the receive loop. A read timeout is not an error; any other read
// failure or any write failure ends the loop with that error.
func (t *UDPTransport) serve(ctx context.Context, handler PacketHandler) error {
	buffer := make([]byte, MaxDatagramSize)

	for {
		if ctx.Err() != nil {
			t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
			return nil
		}

		if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			if t.isStopped() {
				return nil
			}
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, from, err := t.conn.ReadFrom(buffer)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if t.isStopped() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])

		t.logger.Debug(map[string]any{
			"from": from.String(),
			"size": n,
		}, "Received datagram")

		for _, out := range handler.HandlePacket(ctx, packet, from) {
			if _, err := t.conn.WriteTo(out.Payload, out.Addr); err != nil {
				if t.isStopped() {
					return nil
				}
				return fmt.Errorf("write datagram to %s: %w", out.Addr, err)
			}
			t.logger.Debug(map[string]any{
				"to":   out.Addr.String(),
				"size": len(out.Payload),
			}, "Sent datagram")
		}
	}
}

var _ ServerTransport = (*UDPTransport)(nil)
var _ Sender = (*UDPTransport)(nil)
