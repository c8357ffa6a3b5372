// Package arena provides bulk allocation scoped to one translation unit.
// All IR nodes for a region are drawn from a single Arena and released
// together when the region is discarded or retranslated; nothing is freed
// individually.
package arena

// Arena tracks the pools created for one translation unit. It exists so
// a region's entire node storage can be dropped in one step and so the
// total allocation count can be inspected.
type Arena struct {
	pools []resettable
}

type resettable interface {
	reset()
	len() int
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{}
}

// NumAllocated returns the number of objects currently allocated across
// all pools of this arena.
func (a *Arena) NumAllocated() int {
	n := 0
	for _, p := range a.pools {
		n += p.len()
	}
	return n
}

// Reset drops every allocation in the arena. Pointers previously handed
// out must not be used afterwards.
func (a *Arena) Reset() {
	for _, p := range a.pools {
		p.reset()
	}
}

const chunkCap = 64

// Pool bump-allocates values of a single type from fixed-size chunks.
// Addresses stay stable for the lifetime of the arena: a chunk is never
// grown in place once handed out from.
type Pool[T any] struct {
	chunk []T
	count int
}

// NewPool creates a pool of T registered with the arena.
func NewPool[T any](a *Arena) *Pool[T] {
	p := &Pool[T]{}
	a.pools = append(a.pools, p)
	return p
}

// New returns a pointer to a zero value of T allocated from the pool.
func (p *Pool[T]) New() *T {
	if len(p.chunk) == cap(p.chunk) {
		p.chunk = make([]T, 0, chunkCap)
	}
	var zero T
	p.chunk = append(p.chunk, zero)
	p.count++
	return &p.chunk[len(p.chunk)-1]
}

func (p *Pool[T]) reset() {
	p.chunk = nil
	p.count = 0
}

func (p *Pool[T]) len() int { return p.count }
