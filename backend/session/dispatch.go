package session

import "sync"

// dispatcher runs queued functions on a single background goroutine in
// FIFO order. Enqueue never blocks, so work handed off from the resolver's
// controller loop can't stall the loop behind a slow consumer.
type dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Enqueue appends fn to the queue. Work submitted after Stop is dropped;
// the return value reports whether fn was accepted.
func (d *dispatcher) Enqueue(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
	return true
}

// Flush blocks until everything queued before the call has run. Returns
// immediately if the dispatcher has been stopped.
func (d *dispatcher) Flush() {
	ran := make(chan struct{})
	if !d.Enqueue(func() { close(ran) }) {
		return
	}
	<-ran
}

// Stop lets the goroutine drain the remaining queue, then waits for it to
// exit.
func (d *dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		fn()
	}
}
