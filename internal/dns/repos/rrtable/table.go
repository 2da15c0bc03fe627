// Package rrtable implements the record store shared by the resolver tiers
// and the stub client: an insertion-ordered list of static (zone) and dynamic
// (cached) records whose dynamic TTLs decay once per tick.
//
// A single mutex serializes every operation, including the decay pass, so a
// reader never observes a half-decremented or half-evicted table.
package rrtable

import (
	"sync"

	"github.com/haukened/rr-chain/internal/dns/domain"
)

// Table is the record store. The zero value is not usable; call New.
type Table struct {
	mu      sync.Mutex
	records []domain.ResourceRecord
	next    int // ordinal handed to the next appended record
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Add appends rr and assigns it the next display ordinal. No uniqueness is
// enforced; lookups return the first live match in insertion order.
func (t *Table) Add(rr domain.ResourceRecord) error {
	if err := rr.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(rr)
	return nil
}

// AddRecord builds and appends a record. ttl is ignored for static records.
func (t *Table) AddRecord(name string, rrtype domain.RRType, result string, ttl uint32, static bool) error {
	var (
		rr  domain.ResourceRecord
		err error
	)
	if static {
		rr, err = domain.NewStaticRecord(name, rrtype, result)
	} else {
		rr, err = domain.NewDynamicRecord(name, rrtype, result, ttl)
	}
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(rr)
	return nil
}

func (t *Table) appendLocked(rr domain.ResourceRecord) {
	rr.Ordinal = t.next
	t.next++
	t.records = append(t.records, rr)
}

// Get returns a copy of the first record matching name and type that is
// static or still has TTL left. Records whose TTL reached zero are treated as
// absent even before the next eviction pass removes them.
func (t *Table) Get(name string, rrtype domain.RRType) (domain.ResourceRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rr := range t.records {
		if rr.Matches(name, rrtype) && rr.Live() {
			return rr, true
		}
	}
	return domain.ResourceRecord{}, false
}

// Refresh caches an upstream answer. The first dynamic record with the same
// name and type is overwritten in place; otherwise a new record is appended.
func (t *Table) Refresh(name string, rrtype domain.RRType, result string, ttl uint32) error {
	fresh, err := domain.NewDynamicRecord(name, rrtype, result, ttl)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.records {
		rr := &t.records[i]
		if !rr.IsStatic() && rr.Matches(name, rrtype) {
			rr.Refresh(result, ttl)
			return nil
		}
	}
	t.appendLocked(fresh)
	return nil
}

// ReplaceStatic swaps the zone-seeded records for records, keeping every
// dynamic record. Static records come first, then dynamic ones in their
// existing order; ordinals are renumbered from zero.
func (t *Table) ReplaceStatic(records []domain.ResourceRecord) error {
	kept := make([]domain.ResourceRecord, 0, len(records)+len(t.records))
	for _, rr := range records {
		if err := rr.Validate(); err != nil {
			return err
		}
		if !rr.IsStatic() {
			rr, _ = domain.NewStaticRecord(rr.Name, rr.Type, rr.Result)
		}
		kept = append(kept, rr)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rr := range t.records {
		if !rr.IsStatic() {
			kept = append(kept, rr)
		}
	}
	t.records = kept
	t.renumberLocked()
	return nil
}

// DecayAndEvict decrements every dynamic TTL above zero, removes dynamic
// records left at zero, and renumbers ordinals contiguously from zero. It
// returns how many records were evicted.
func (t *Table) DecayAndEvict() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.records[:0]
	for _, rr := range t.records {
		rr.Decay()
		if rr.Live() {
			kept = append(kept, rr)
		}
	}
	evicted := len(t.records) - len(kept)
	// clear the tail so evicted records do not linger in the backing array
	for i := len(kept); i < len(t.records); i++ {
		t.records[i] = domain.ResourceRecord{}
	}
	t.records = kept
	t.renumberLocked()
	return evicted
}

func (t *Table) renumberLocked() {
	for i := range t.records {
		t.records[i].Ordinal = i
	}
	t.next = len(t.records)
}

// Snapshot returns a copy of the current contents in display order.
func (t *Table) Snapshot() []domain.ResourceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ResourceRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records, live or not yet evicted.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
