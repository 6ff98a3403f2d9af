package gpu

import "sync"

// Buffer is a device buffer handed out by a Pool.
type Buffer[T any] struct {
	Data []T

	id        uint64
	createdAt uint64
	retiredAt uint64
	retired   bool
}

func (b *Buffer[T]) Len() int { return len(b.Data) }

// ID is unique within the pool that allocated the buffer.
func (b *Buffer[T]) ID() uint64 { return b.id }

// DoubleBuffer holds two buffer handles that alternate between being read
// and written by successive passes.
type DoubleBuffer[B any] struct {
	Read  B
	Write B
}

// Swap exchanges the read and write handles.
func (d *DoubleBuffer[B]) Swap() {
	d.Read, d.Write = d.Write, d.Read
}

// PoolStats is a snapshot of a pool's bookkeeping.
type PoolStats struct {
	Generation uint64
	Live       int
	Pending    int
	Free       int
	Allocs     int
	Reuses     int
	Reaped     int
}

// Pool hands out buffers tagged with the generation that acquired them.
// Retired buffers stay untouched until `lag` further generations have
// completed, since work from an older generation may still read them; only
// then are they recycled or dropped.
type Pool[T any] struct {
	mu         sync.Mutex
	lag        uint64
	generation uint64
	nextID     uint64
	lastLen    int

	live    map[uint64]*Buffer[T]
	pending []*Buffer[T]
	free    []*Buffer[T]

	allocs, reuses, reaped int
}

// NewPool creates a pool releasing retired buffers after lag generations.
func NewPool[T any](lag int) *Pool[T] {
	if lag < 1 {
		lag = 1
	}
	return &Pool[T]{lag: uint64(lag), live: make(map[uint64]*Buffer[T])}
}

// Acquire returns a zeroed buffer of length n, reusing a reaped one of the
// same length when available.
func (p *Pool[T]) Acquire(n int) *Buffer[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastLen = n
	var b *Buffer[T]
	for i, f := range p.free {
		if len(f.Data) == n {
			b = f
			p.free = append(p.free[:i], p.free[i+1:]...)
			clear(b.Data)
			p.reuses++
			break
		}
	}
	if b == nil {
		p.nextID++
		b = &Buffer[T]{Data: make([]T, n), id: p.nextID}
		p.allocs++
	}
	b.createdAt = p.generation
	b.retired = false
	p.live[b.id] = b
	return b
}

// Retire hands a buffer back. It is not reused before lag generations have
// been completed after the current one. Retiring nil or an already retired
// buffer is a no-op.
func (p *Pool[T]) Retire(b *Buffer[T]) {
	if b == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.retired {
		return
	}
	b.retired = true
	b.retiredAt = p.generation
	delete(p.live, b.id)
	p.pending = append(p.pending, b)
}

// Advance marks the current generation complete and reaps every retired
// buffer that is old enough. Reaped buffers whose length no longer matches
// the most recent request are dropped instead of recycled.
func (p *Pool[T]) Advance() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	kept := p.pending[:0]
	for _, b := range p.pending {
		if b.retiredAt+p.lag > p.generation {
			kept = append(kept, b)
			continue
		}
		p.reaped++
		if len(b.Data) == p.lastLen {
			p.free = append(p.free, b)
		} else {
			b.Data = nil
		}
	}
	clear(p.pending[len(kept):])
	p.pending = kept

	free := p.free[:0]
	for _, b := range p.free {
		if len(b.Data) == p.lastLen {
			free = append(free, b)
		}
	}
	clear(p.free[len(free):])
	p.free = free
	return p.generation
}

// Generation returns the number of completed generations.
func (p *Pool[T]) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Generation: p.generation,
		Live:       len(p.live),
		Pending:    len(p.pending),
		Free:       len(p.free),
		Allocs:     p.allocs,
		Reuses:     p.reuses,
		Reaped:     p.reaped,
	}
}

// Release drops every buffer the pool knows about.
func (p *Pool[T]) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, b := range p.live {
		b.Data = nil
		delete(p.live, id)
	}
	for _, b := range p.pending {
		b.Data = nil
	}
	p.pending = nil
	p.free = nil
}
