// Package seen remembers which upstream transaction ids have already been
// answered. A reply that arrives for a consumed id is the footprint of a
// race between a forged and a genuine answer; the resolver logs it.
//
// Membership is probabilistic: Consumed may report a false positive at the
// configured rate but never a false negative for an id marked within the
// last two generations.
package seen

import (
	"encoding/binary"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

const (
	DefaultCapacity = 65536
	DefaultFPRate   = 0.001
)

// Tracker is a two-generation Bloom filter of consumed ids. When the current
// generation has absorbed Capacity ids it becomes the previous one and a
// fresh filter takes its place, so memory stays bounded while recently
// consumed ids remain visible.
type Tracker struct {
	mu       sync.RWMutex
	capacity uint64
	fpRate   float64
	current  *bitsbloom.BloomFilter
	previous *bitsbloom.BloomFilter
	added    uint64
}

// New returns a Tracker sized for capacity ids per generation.
func New(capacity uint64, fpRate float64) *Tracker {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = DefaultFPRate
	}
	t := &Tracker{capacity: capacity, fpRate: fpRate}
	t.current = t.newFilter()
	return t
}

func (t *Tracker) newFilter() *bitsbloom.BloomFilter {
	m, k := size(t.capacity, t.fpRate)
	return bitsbloom.New(uint(m), uint(k))
}

func key(id uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return b[:]
}

// MarkConsumed records that id has been answered.
func (t *Tracker) MarkConsumed(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.added >= t.capacity {
		t.previous = t.current
		t.current = t.newFilter()
		t.added = 0
	}
	t.current.Add(key(id))
	t.added++
}

// Consumed reports whether id was probably answered before.
func (t *Tracker) Consumed(id uint32) bool {
	k := key(id)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current.Test(k) {
		return true
	}
	return t.previous != nil && t.previous.Test(k)
}
