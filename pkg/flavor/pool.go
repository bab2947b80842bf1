package flavor

import "sync"

// PoolStats is a point-in-time snapshot of one pool.
type PoolStats struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Target   int    `json:"target"`
	Low      int    `json:"low"`
	InFlight bool   `json:"inFlight"`
	Served   int64  `json:"served"`
}

// Pool is a bounded FIFO queue of pre-fetched content items. Items enter via
// batch refills and are consumed at most once. At most one batch fetch may be
// in flight per pool; the inFlight flag is set by TryBeginRefill and cleared
// by EndRefill regardless of fetch outcome.
type Pool[T any] struct {
	name   string
	target int
	low    int

	mu       sync.Mutex
	items    []T
	inFlight bool
	served   int64
}

// NewPool builds an empty pool with the given target size and low-watermark
// refill threshold.
func NewPool[T any](name string, target, low int) *Pool[T] {
	return &Pool[T]{
		name:   name,
		target: target,
		low:    low,
		items:  make([]T, 0, target),
	}
}

// Pop removes and returns the oldest item. ok is false when the pool is
// empty; popping an empty pool has no side effects.
func (p *Pool[T]) Pop() (item T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return item, false
	}
	item = p.items[0]
	p.items = p.items[1:]
	p.served++
	return item, true
}

// Push appends items in order, discarding any overflow past the target size.
func (p *Pool[T]) Push(items ...T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room := p.target - len(p.items)
	if room <= 0 {
		return
	}
	if len(items) > room {
		items = items[:room]
	}
	p.items = append(p.items, items...)
}

// Len returns the current number of pooled items.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// TryBeginRefill claims the single refill slot when the pool is below its
// low watermark and no batch fetch is already in flight. It returns the
// number of items needed to reach the target. When ok is false the caller
// must not fetch.
func (p *Pool[T]) TryBeginRefill() (need int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight || len(p.items) >= p.low {
		return 0, false
	}
	p.inFlight = true
	return p.target - len(p.items), true
}

// EndRefill releases the refill slot. Call it once per successful
// TryBeginRefill, whether or not the fetch produced items.
func (p *Pool[T]) EndRefill() {
	p.mu.Lock()
	p.inFlight = false
	p.mu.Unlock()
}

// Stats returns a snapshot for status reporting.
func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Name:     p.name,
		Size:     len(p.items),
		Target:   p.target,
		Low:      p.low,
		InFlight: p.inFlight,
		Served:   p.served,
	}
}
