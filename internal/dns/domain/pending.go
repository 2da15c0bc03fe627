package domain

import "net"

// PendingRequest remembers who asked for a forwarded query so the upstream
// answer can be relayed back under the requester's own transaction id.
type PendingRequest struct {
	UpstreamTxID uint32
	ClientAddr   net.Addr
	ClientTxID   uint32
	Name         string
	Type         RRType
}

// Datagram is one outbound payload and its destination.
type Datagram struct {
	Payload []byte
	Addr    net.Addr
}
