// Package transport owns the datagram socket of a resolver tier. It reads one
// datagram at a time, hands it to a PacketHandler, and writes whatever
// datagrams the handler produces before reading the next one.
package transport

import (
	"context"
	"net"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

// ServerTransport is a bound socket driving a PacketHandler.
type ServerTransport interface {
	Sender
	// Bind opens the socket without serving, so the bound address is known
	// before Start.
	Bind() error
	// Start binds the socket if needed and begins the receive loop.
	Start(ctx context.Context, handler PacketHandler) error
	// Done yields the loop's terminal error, or nil after a clean stop.
	Done() <-chan error
	// Stop closes the socket and ends the receive loop.
	Stop() error
	// Address returns the bound address, or the configured one before binding.
	Address() string
}

// PacketHandler processes one inbound datagram and returns the datagrams to
// send in response. Returning none drops the input silently.
type PacketHandler interface {
	HandlePacket(ctx context.Context, payload []byte, from net.Addr) []domain.Datagram
}

// Sender writes a single datagram.
type Sender interface {
	Send(d domain.Datagram) error
}

// TransportType names a transport protocol.
type TransportType string

const (
	TransportUDP TransportType = "udp"
)
