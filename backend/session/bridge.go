package session

import "sync/atomic"

// bridge adapts one of a handle's push-callback signals into a replayable
// property. It is a switching subscription: when the resolver publishes a
// new controller, the previous handle's callback is unregistered before the
// new handle is touched, and pushes from superseded generations are dropped
// by comparing against the current generation.
//
// The controller property's OnChange callbacks run on the resolver's
// affinity goroutine, so handle callback (un)registration below stays on
// that goroutine. The pushed-value callbacks themselves may fire from any
// goroutine; they only touch the generation atomic and the output property.
type bridge[T any] struct {
	out *Property[Signal[T]]
}

func newBridge[T any](
	controller *Property[Controller],
	read func(SessionHandle) T,
	register func(SessionHandle, func(T)),
) *bridge[T] {
	b := &bridge[T]{out: NewProperty[Signal[T]](nil)}
	var prev SessionHandle
	var gen atomic.Uint64

	controller.OnChange(func(c Controller) {
		if prev != nil {
			register(prev, nil) // unregister before anything new happens
		}
		prev = c.Handle
		gen.Store(c.Gen)

		if c.Handle == nil {
			b.out.Publish(Signal[T]{})
			return
		}

		h := c.Handle
		myGen := c.Gen
		b.out.Publish(Signal[T]{Val: read(h), Live: true})
		register(h, func(val T) {
			if gen.Load() != myGen {
				return // pushed by a superseded handle
			}
			b.out.Publish(Signal[T]{Val: val, Live: true})
		})
	})
	return b
}

// Out is the bridged value stream: an initial read of the handle's current
// value followed by every pushed change, or a non-live Signal when no
// controller is active.
func (b *bridge[T]) Out() *Property[Signal[T]] {
	return b.out
}

func newMetadataBridge(controller *Property[Controller]) *bridge[*MediaMetadataSnapshot] {
	return newBridge(controller,
		SessionHandle.Metadata,
		func(h SessionHandle, cb func(*MediaMetadataSnapshot)) { h.OnMetadataChanged(cb) },
	)
}

func newTimelineBridge(controller *Property[Controller]) *bridge[*TimelineSnapshot] {
	return newBridge(controller,
		SessionHandle.Timeline,
		func(h SessionHandle, cb func(*TimelineSnapshot)) { h.OnTimelineChanged(cb) },
	)
}

func newDurationBridge(controller *Property[Controller]) *bridge[int64] {
	return newBridge(controller,
		SessionHandle.DurationMillis,
		func(h SessionHandle, cb func(int64)) { h.OnDurationChanged(cb) },
	)
}
