package arena

import "sync"

// Guard defers finalizers past the lifetime of earlier-taken snapshots.
//
// A snapshot pins the guard before it starts reading and closes the pin when
// it is done. A mutation that supersedes an off-heap row schedules its
// reference-count decrement with FinalizeLater instead of running it
// synchronously; the finalizer runs only once every pin created before the
// schedule point has been closed, so no concurrent snapshot can dereference
// freed memory.
type Guard struct {
	mu       sync.Mutex
	stamp    uint64
	pins     map[uint64]uint64 // pin id -> creation stamp
	nextPin  uint64
	deferred []deferredFn
}

type deferredFn struct {
	stamp uint64
	fn    func()
}

// Pin marks the start of a read section (typically a snapshot lifetime).
type Pin struct {
	g      *Guard
	id     uint64
	closed bool
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{pins: make(map[uint64]uint64)}
}

// Pin opens a read section. The returned Pin must be closed exactly once.
func (g *Guard) Pin() *Pin {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stamp++
	g.nextPin++
	id := g.nextPin
	g.pins[id] = g.stamp
	return &Pin{g: g, id: id}
}

// FinalizeLater schedules fn to run once all currently open pins are closed.
// With no open pins fn runs immediately.
func (g *Guard) FinalizeLater(fn func()) {
	g.mu.Lock()
	g.stamp++
	g.deferred = append(g.deferred, deferredFn{stamp: g.stamp, fn: fn})
	ready := g.collectReady()
	g.mu.Unlock()

	run(ready)
}

// Close ends the pin's read section and flushes any finalizers it was
// holding back. Idempotent.
func (p *Pin) Close() {
	g := p.g
	g.mu.Lock()
	if p.closed {
		g.mu.Unlock()
		return
	}
	p.closed = true
	delete(g.pins, p.id)
	ready := g.collectReady()
	g.mu.Unlock()

	run(ready)
}

// collectReady pops finalizers whose stamp precedes every open pin. Caller
// holds g.mu.
func (g *Guard) collectReady() []deferredFn {
	min := g.minPinStamp()
	n := 0
	for n < len(g.deferred) && g.deferred[n].stamp <= min {
		n++
	}
	if n == 0 {
		return nil
	}
	ready := make([]deferredFn, n)
	copy(ready, g.deferred[:n])
	g.deferred = g.deferred[n:]
	return ready
}

func (g *Guard) minPinStamp() uint64 {
	min := ^uint64(0)
	for _, s := range g.pins {
		if s < min {
			min = s
		}
	}
	return min
}

// Pending returns the number of finalizers still held back. Intended for
// tests and stats.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.deferred)
}

func run(fns []deferredFn) {
	for _, d := range fns {
		d.fn()
	}
}
