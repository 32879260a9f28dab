package session

import (
	"context"
	"time"
)

// Options tunes aggregator behavior.
type Options struct {
	// ResolveTimeout bounds a single token resolution attempt.
	// Zero means DefaultResolveTimeout.
	ResolveTimeout time.Duration
}

// Aggregator wires the discovery stream, controller resolver, bridges,
// projections and transport facade into one unit with a single background
// scope. Notifications flow from discovery through the resolver and
// bridges into the projections; transport commands flow the opposite way.
type Aggregator struct {
	Discovery *Discovery
	Resolver  *Resolver
	State     *CachedState
	Projector *Projector
	Transport *Transport

	cancel context.CancelFunc
}

func NewAggregator(
	ctx context.Context,
	src NotificationSource,
	filter SourceFilter,
	res SessionResolver,
	store KeyValueStore,
	apps AppLookup,
	keys KeyDispatcher,
	opts Options,
) *Aggregator {
	state := NewCachedState(store)
	resolver := NewResolver(res, opts.ResolveTimeout)
	projector := NewProjector(resolver.Controller(), state, apps)
	transport := NewTransport(resolver, keys, apps, state, projector)

	runCtx, cancel := context.WithCancel(ctx)
	go resolver.Run(runCtx)

	discovery := NewDiscovery(src, filter)
	discovery.Selected().OnChange(resolver.Submit)

	return &Aggregator{
		Discovery: discovery,
		Resolver:  resolver,
		State:     state,
		Projector: projector,
		Transport: transport,
		cancel:    cancel,
	}
}

// SetSourceFilter swaps the discovery source filter (live config reload).
func (a *Aggregator) SetSourceFilter(filter SourceFilter) {
	a.Discovery.SetFilter(filter)
}

// Shutdown cancels the background scope and blocks until the controller
// loop has released any live handle and the projector has drained its
// queued work.
func (a *Aggregator) Shutdown() {
	a.cancel()
	<-a.Resolver.done
	a.Projector.Stop()
}
