package domain

import (
	"fmt"

	"github.com/haukened/rr-chain/internal/dns/common/utils"
)

// ResourceRecord is a single entry of a record store.
//
// Static records come from a zone and carry no TTL; they never decay.
// Dynamic records were learned from an upstream answer and hold the number
// of seconds they may still be served.
type ResourceRecord struct {
	Ordinal int
	Name    string
	Type    RRType
	Result  string
	ttl     uint32
	static  bool
}

// NewStaticRecord constructs a zone record.
func NewStaticRecord(name string, rrtype RRType, result string) (ResourceRecord, error) {
	rr := ResourceRecord{Name: name, Type: rrtype, Result: result, static: true}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// NewDynamicRecord constructs a cached record with ttl seconds remaining.
func NewDynamicRecord(name string, rrtype RRType, result string, ttl uint32) (ResourceRecord, error) {
	rr := ResourceRecord{Name: name, Type: rrtype, Result: result, ttl: ttl}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are valid.
func (rr ResourceRecord) Validate() error {
	if utils.CanonicalDNSName(rr.Name) == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if !rr.Type.IsValid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedRRType, uint8(rr.Type))
	}
	if rr.Result == "" {
		return fmt.Errorf("record result must not be empty")
	}
	return nil
}

// IsStatic reports whether the record was seeded from a zone.
func (rr ResourceRecord) IsStatic() bool {
	return rr.static
}

// TTL returns the remaining seconds of a dynamic record. ok is false for
// static records, which have no TTL.
func (rr ResourceRecord) TTL() (ttl uint32, ok bool) {
	if rr.static {
		return 0, false
	}
	return rr.ttl, true
}

// Live reports whether the record may satisfy a lookup.
func (rr ResourceRecord) Live() bool {
	return rr.static || rr.ttl > 0
}

// Matches reports whether the record answers the given name and type.
func (rr ResourceRecord) Matches(name string, rrtype RRType) bool {
	return rr.Type == rrtype && utils.SameName(rr.Name, name)
}

// Decay removes one second from a dynamic record's TTL. Static records and
// records already at zero are left untouched.
func (rr *ResourceRecord) Decay() {
	if !rr.static && rr.ttl > 0 {
		rr.ttl--
	}
}

// Refresh replaces the answer and TTL of a dynamic record.
func (rr *ResourceRecord) Refresh(result string, ttl uint32) {
	rr.Result = result
	rr.ttl = ttl
}
