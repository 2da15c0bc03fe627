package resolver

import (
	"io"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

// RecordStore is the engine's view of the record table.
type RecordStore interface {
	Get(name string, rrtype domain.RRType) (domain.ResourceRecord, bool)
	Refresh(name string, rrtype domain.RRType, result string, ttl uint32) error
	Render(w io.Writer) error
}

// Correlator tracks queries forwarded upstream.
type Correlator interface {
	Allocate(req domain.PendingRequest) (uint32, error)
	Resolve(id uint32) (domain.PendingRequest, bool)
}

// ReplyTracker remembers upstream ids that were already answered.
type ReplyTracker interface {
	MarkConsumed(id uint32)
	Consumed(id uint32) bool
}

// Journal records accepted upstream answers.
type Journal interface {
	Record(e domain.JournalEntry) (uint64, error)
}
