package session

import (
	"context"
	"errors"
	"log"
	"time"
)

// DefaultResolveTimeout bounds a single session-token resolution attempt.
const DefaultResolveTimeout = 5 * time.Second

var errResolverStopped = errors.New("controller resolver stopped")

// Controller is the resolver output: the live handle (nil when no session
// is active) tagged with a monotonically increasing generation. Bridges use
// the generation to discard callbacks from superseded handles. Pkg is the
// handle's resolved package id, captured at resolve time so consumers
// never have to call back into the handle for it.
type Controller struct {
	Handle SessionHandle
	Pkg    string
	Gen    uint64
}

// Resolver consumes discovery selections and owns the lifecycle of the
// current SessionHandle. All handle mutation (construct, release, callback
// registration, transport verbs) happens on the single goroutine running
// Run, because handles are not safe for concurrent access. At most one
// live handle exists at any time. The loop itself performs no store or
// filesystem I/O; durable state is recorded downstream by the projector.
type Resolver struct {
	resolver SessionResolver
	timeout  time.Duration

	inbox chan *NotificationRecord // latest-wins, capacity 1
	work  chan func()
	done  chan struct{}

	controller *Property[Controller]

	// loop-local; only touched from the Run goroutine
	cur       SessionHandle
	curToken  SessionToken
	gen       uint64
	published bool
}

func NewResolver(r SessionResolver, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{
		resolver:   r,
		timeout:    timeout,
		inbox:      make(chan *NotificationRecord, 1),
		work:       make(chan func()),
		done:       make(chan struct{}),
		controller: NewProperty[Controller](nil),
	}
}

// Controller is the resolver's output property. Its OnChange callbacks run
// on the controller-affinity goroutine, so bridges may register handle
// callbacks directly from them.
func (r *Resolver) Controller() *Property[Controller] {
	return r.controller
}

// Submit hands a discovery selection to the resolver. Only the latest
// pending selection is kept; stale ones are dropped.
func (r *Resolver) Submit(rec *NotificationRecord) {
	for {
		select {
		case r.inbox <- rec:
			return
		default:
		}
		// inbox full: drop the stale pending value and retry
		select {
		case <-r.inbox:
		default:
		}
	}
}

// Do marshals fn onto the controller-affinity goroutine and waits for it to
// run. Returns false if the resolver has shut down.
func (r *Resolver) Do(fn func()) bool {
	ran := make(chan struct{})
	select {
	case r.work <- func() { fn(); close(ran) }:
	case <-r.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-r.done:
		return false
	}
}

// call runs fn with the current handle (nil if none) on the affinity
// goroutine and returns its error.
func (r *Resolver) call(fn func(SessionHandle) error) error {
	var err error
	if !r.Do(func() { err = fn(r.cur) }) {
		return errResolverStopped
	}
	return err
}

// Run is the controller-affinity loop. It returns when ctx is cancelled,
// after releasing any live handle.
func (r *Resolver) Run(ctx context.Context) {
	defer close(r.done)
	defer r.releaseCurrent()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.work:
			fn()
		case rec := <-r.inbox:
			for {
				next, again := r.apply(ctx, rec)
				if !again {
					break
				}
				rec = next
			}
		}
	}
}

// publishNone emits a nil-handle controller, unless the last publication
// was already a none.
func (r *Resolver) publishNone() {
	if r.published && r.controller.Get().Handle == nil {
		return
	}
	r.gen++
	r.published = true
	r.controller.Publish(Controller{Gen: r.gen})
}

// apply processes one selection. If a newer selection arrived while a
// handle was being constructed, the fresh result is released and the newer
// selection is returned with again=true for reprocessing.
func (r *Resolver) apply(ctx context.Context, rec *NotificationRecord) (next *NotificationRecord, again bool) {
	if rec == nil {
		r.releaseCurrent()
		r.publishNone()
		return nil, false
	}
	if r.cur != nil && rec.Token == r.curToken {
		return nil, false // discovery deduplicates, but guard anyway
	}

	// release before constructing the replacement, unconditionally
	r.releaseCurrent()

	resolveCtx, cancel := context.WithTimeout(ctx, r.timeout)
	h, err := r.resolver.Resolve(resolveCtx, rec.Token)
	cancel()
	if err != nil {
		log.Printf("error resolving session for %s: %v", rec.PackageID, err)
		r.publishNone()
		return nil, false
	}

	// the result may no longer be wanted: the selection could have changed
	// (or the whole aggregator been cancelled) while we were resolving
	select {
	case <-ctx.Done():
		h.Release()
		return nil, false
	case next := <-r.inbox:
		h.Release()
		return next, true
	default:
	}

	r.cur = h
	r.curToken = rec.Token
	r.gen++
	r.published = true
	r.controller.Publish(Controller{Handle: h, Pkg: h.ResolvedPackageID(), Gen: r.gen})
	return nil, false
}

func (r *Resolver) releaseCurrent() {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
		r.curToken = ""
	}
}
