// Package correlator tracks queries the resolver has forwarded upstream and
// matches answers back to them by upstream transaction id.
package correlator

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-chain/internal/dns/common/clock"
	"github.com/haukened/rr-chain/internal/dns/domain"
)

// DefaultCapacity bounds the number of outstanding requests when Options
// leaves Capacity unset.
const DefaultCapacity = 4096

// maxAllocAttempts caps how many ids Allocate draws before giving up.
const maxAllocAttempts = 1 << 16

// ErrNoFreeID is returned when no unused transaction id could be drawn.
var ErrNoFreeID = errors.New("no free transaction id")

// Options configures a Correlator.
type Options struct {
	IDs      IDGenerator
	Capacity int
	// Timeout is how long a request may stay outstanding before Sweep
	// reports it. Zero keeps requests until answered or displaced.
	Timeout time.Duration
	Clock   clock.Clock
	// OnEvict is called, outside the lock, with a request displaced to make
	// room for a new one.
	OnEvict func(domain.PendingRequest)
}

type entry struct {
	req      domain.PendingRequest
	deadline time.Time
}

// Correlator is the pending-request table. Every method is safe for
// concurrent use; Resolve looks up and removes an entry as one step so an
// upstream id is consumed at most once.
type Correlator struct {
	mu       sync.Mutex
	ids      IDGenerator
	pending  *lru.Cache[uint32, entry]
	capacity int
	timeout  time.Duration
	clock    clock.Clock
	onEvict  func(domain.PendingRequest)

	evictions uint64
	expired   uint64
}

// New builds a Correlator. A nil IDs defaults to a sequential generator
// starting at 0.
func New(opts Options) (*Correlator, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.IDs == nil {
		opts.IDs = NewSequential(0)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	cache, err := lru.New[uint32, entry](opts.Capacity)
	if err != nil {
		return nil, err
	}
	return &Correlator{
		ids:      opts.IDs,
		pending:  cache,
		capacity: opts.Capacity,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		onEvict:  opts.OnEvict,
	}, nil
}

// Allocate assigns req a fresh upstream id that is not currently
// outstanding, records it, and returns the id. When the table is full the
// oldest outstanding request is displaced.
func (c *Correlator) Allocate(req domain.PendingRequest) (uint32, error) {
	var displaced *domain.PendingRequest

	c.mu.Lock()
	id, err := c.freeIDLocked()
	if err != nil {
		c.mu.Unlock()
		return 0, err
	}
	if c.pending.Len() >= c.capacity {
		if _, old, ok := c.pending.RemoveOldest(); ok {
			displaced = &old.req
			atomic.AddUint64(&c.evictions, 1)
		}
	}
	req.UpstreamTxID = id
	e := entry{req: req}
	if c.timeout > 0 {
		e.deadline = c.clock.Now().Add(c.timeout)
	}
	c.pending.Add(id, e)
	c.mu.Unlock()

	if displaced != nil && c.onEvict != nil {
		c.onEvict(*displaced)
	}
	return id, nil
}

func (c *Correlator) freeIDLocked() (uint32, error) {
	for i := 0; i < maxAllocAttempts; i++ {
		id := c.ids.Next()
		if !c.pending.Contains(id) {
			return id, nil
		}
	}
	return 0, ErrNoFreeID
}

// Resolve removes and returns the request waiting on upstream id. ok is
// false when nothing is outstanding under id.
func (c *Correlator) Resolve(id uint32) (domain.PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pending.Peek(id)
	if !ok {
		return domain.PendingRequest{}, false
	}
	c.pending.Remove(id)
	return e.req, true
}

// Sweep removes and returns every request whose deadline is at or before
// now. It is a no-op when no timeout is configured.
func (c *Correlator) Sweep(now time.Time) []domain.PendingRequest {
	if c.timeout <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.PendingRequest
	for _, id := range c.pending.Keys() {
		e, ok := c.pending.Peek(id)
		if !ok || e.deadline.After(now) {
			continue
		}
		c.pending.Remove(id)
		out = append(out, e.req)
	}
	atomic.AddUint64(&c.expired, uint64(len(out)))
	return out
}

// Len returns the number of outstanding requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// Stats returns how many requests were displaced by capacity and how many
// expired through Sweep.
func (c *Correlator) Stats() (evictions, expired uint64) {
	return atomic.LoadUint64(&c.evictions), atomic.LoadUint64(&c.expired)
}
