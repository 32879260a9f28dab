package session

import "sync"

// A Property is a continuously updated, replayable value: subscribers
// registered with OnChange immediately receive the latest published value
// (if any) and every subsequent one. Each publication carries a version,
// and deliveries to a listener are serialized and version-checked, so a
// replay racing a concurrent Publish can never leave the listener on an
// older value than one it has already seen.
type Property[T any] struct {
	mu        sync.Mutex
	val       T
	ver       uint64
	eq        func(a, b T) bool
	listeners []*listener[T]
}

type listener[T any] struct {
	mu   sync.Mutex
	seen uint64
	fn   func(T)
}

// deliver invokes the callback unless a newer value has already been
// delivered to this listener.
func (l *listener[T]) deliver(ver uint64, val T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ver <= l.seen {
		return
	}
	l.seen = ver
	l.fn(val)
}

// NewProperty creates a Property. If eq is non-nil it is used to suppress
// duplicate publications: a value equal to the current one is not re-emitted.
func NewProperty[T any](eq func(a, b T) bool) *Property[T] {
	return &Property[T]{eq: eq}
}

// Get returns the latest published value (zero value if none yet).
func (p *Property[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.val
}

// OnChange registers a listener. The current value, if any, is replayed
// synchronously before OnChange returns.
func (p *Property[T]) OnChange(cb func(T)) {
	l := &listener[T]{fn: cb}
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	ver, val := p.ver, p.val
	p.mu.Unlock()
	if ver > 0 {
		l.deliver(ver, val)
	}
}

// Publish sets a new value and notifies listeners. Duplicate values are
// suppressed when the Property was created with an equality func.
func (p *Property[T]) Publish(val T) {
	p.mu.Lock()
	if p.ver > 0 && p.eq != nil && p.eq(p.val, val) {
		p.mu.Unlock()
		return
	}
	p.val = val
	p.ver++
	ver := p.ver
	listeners := make([]*listener[T], len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		l.deliver(ver, val)
	}
}

// Signal is a bridge emission: a value read from or pushed by the current
// session handle, or a "no controller" marker when Live is false.
type Signal[T any] struct {
	Val  T
	Live bool
}
