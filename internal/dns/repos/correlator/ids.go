package correlator

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
)

// IDGenerator hands out candidate upstream transaction ids.
type IDGenerator interface {
	Next() uint32
}

// Generator modes accepted by NewIDGenerator.
const (
	ModeSequential = "sequential"
	ModeRandom     = "random"
)

// NewIDGenerator returns the generator for mode. An empty mode selects the
// sequential generator.
func NewIDGenerator(mode string) (IDGenerator, error) {
	switch mode {
	case "", ModeSequential:
		return NewSequential(0), nil
	case ModeRandom:
		return NewRandom(), nil
	default:
		return nil, fmt.Errorf("unknown txid mode %q", mode)
	}
}

// Sequential counts up from a starting value and wraps at 2^32. Its ids are
// trivially predictable, which is exactly what the spoofer relies on.
type Sequential struct {
	mu   sync.Mutex
	next uint32
}

// NewSequential returns a generator whose first id is start.
func NewSequential(start uint32) *Sequential {
	return &Sequential{next: start}
}

func (s *Sequential) Next() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++ // uint32 overflow wraps to 0
	return id
}

// Random draws ids from crypto/rand.
type Random struct {
	read func([]byte) (int, error)
}

func NewRandom() *Random {
	return &Random{read: rand.Read}
}

func (r *Random) Next() uint32 {
	var b [4]byte
	if _, err := r.read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("correlator: reading random txid: %v", err))
	}
	return binary.BigEndian.Uint32(b[:])
}
