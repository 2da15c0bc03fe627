package stub

import (
	"strings"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

// Command classifies one line of prompt input.
type Command int

const (
	CmdLookup Command = iota
	CmdQuit
	CmdEmpty
)

// Request is a parsed lookup.
type Request struct {
	Name string
	Type domain.RRType
}

// ParseInput reads "name [type]" or "quit". The type is matched
// case-insensitively; an unknown type falls back to A.
func ParseInput(line string) (Request, Command) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, CmdEmpty
	}
	if len(fields) == 1 && strings.EqualFold(fields[0], "quit") {
		return Request{}, CmdQuit
	}

	req := Request{Name: fields[0], Type: domain.RRTypeA}
	if len(fields) >= 2 {
		if t, err := domain.ParseRRType(fields[1]); err == nil {
			req.Type = t
		}
	}
	return req, CmdLookup
}
