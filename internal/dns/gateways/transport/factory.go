package transport

import (
	"fmt"
	"time"

	"github.com/haukened/rr-chain/internal/dns/common/log"
)

// NewTransport creates a transport of the given type bound to addr.
func NewTransport(transportType TransportType, addr string, readTimeout time.Duration, logger log.Logger) (ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(addr, readTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// GetSupportedTransports returns a list of currently supported transport types.
func GetSupportedTransports() []TransportType {
	return []TransportType{TransportUDP}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	for _, t := range GetSupportedTransports() {
		if t == transportType {
			return true
		}
	}
	return false
}
