package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RRType is one of the four record types the chain understands. The numeric
// values are single-bit type codes, so a set of types fits in one nibble.
type RRType uint8

const (
	RRTypeNS    RRType = 0b0001 // NS - Name server
	RRTypeCNAME RRType = 0b0010 // CNAME - Canonical name
	RRTypeAAAA  RRType = 0b0100 // AAAA - IPv6 address
	RRTypeA     RRType = 0b1000 // A - IPv4 address
)

// ErrUnsupportedRRType is returned when a type name or code is not one of A, AAAA, CNAME, NS.
var ErrUnsupportedRRType = errors.New("unsupported record type")

// IsValid returns true if the RRType is one of the supported types.
func (t RRType) IsValid() bool {
	switch t {
	case RRTypeA, RRTypeAAAA, RRTypeCNAME, RRTypeNS:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RRType.
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeAAAA:
		return "AAAA"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypeNS:
		return "NS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// ParseRRType converts a type name to its RRType, ignoring case and
// surrounding whitespace.
func ParseRRType(s string) (RRType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return RRTypeA, nil
	case "AAAA":
		return RRTypeAAAA, nil
	case "CNAME":
		return RRTypeCNAME, nil
	case "NS":
		return RRTypeNS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRRType, s)
	}
}
