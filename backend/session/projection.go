package session

import "sync"

func stringEq(a, b string) bool { return a == b }
func int64Eq(a, b int64) bool   { return a == b }

// Projector derives the user-facing now-playing properties from the bridged
// metadata/timeline/duration signals. Live values are written through to
// the fallback store before being emitted; when no controller is active the
// cached values are projected verbatim.
//
// All store reads and writes, and the app-label lookup, run on a dedicated
// dispatch goroutine: bridge emissions arrive on the resolver's controller
// loop, which must never stall behind a slow store.
type Projector struct {
	state *CachedState
	apps  AppLookup

	dispatch *dispatcher

	mu       sync.Mutex
	metaLive bool
	durLive  bool

	title      *Property[string]
	artist     *Property[string]
	album      *Property[string]
	artworkRef *Property[string]
	duration   *Property[int64]
	timeline   *Property[*TimelineSnapshot]

	// fixed placeholders: live tracking of these is out of scope
	position         *Property[int64]
	playbackState    *Property[PlaybackState]
	supportedActions *Property[SupportedActions]
}

func NewProjector(controller *Property[Controller], state *CachedState, apps AppLookup) *Projector {
	p := &Projector{
		state:            state,
		apps:             apps,
		dispatch:         newDispatcher(),
		title:            NewProperty(stringEq),
		artist:           NewProperty(stringEq),
		album:            NewProperty(stringEq),
		artworkRef:       NewProperty(stringEq),
		duration:         NewProperty(int64Eq),
		timeline:         NewProperty[*TimelineSnapshot](nil),
		position:         NewProperty(int64Eq),
		playbackState:    NewProperty[PlaybackState](nil),
		supportedActions: NewProperty[SupportedActions](nil),
	}
	p.position.Publish(PositionUnknown)
	p.playbackState.Publish(PlaybackStateUnknown)
	p.supportedActions.Publish(ActionsNone)

	// registered before the bridges so the package is recorded ahead of the
	// metadata projection, which may synthesize a title from its app label
	controller.OnChange(func(c Controller) {
		if c.Handle == nil {
			return
		}
		pkg := c.Pkg
		p.dispatch.Enqueue(func() { p.state.SetLastPlayerPackage(pkg) })
	})

	newMetadataBridge(controller).Out().OnChange(func(s Signal[*MediaMetadataSnapshot]) {
		p.dispatch.Enqueue(func() { p.projectMetadata(s) })
	})
	newTimelineBridge(controller).Out().OnChange(func(s Signal[*TimelineSnapshot]) {
		p.dispatch.Enqueue(func() { p.projectTimeline(s) })
	})
	newDurationBridge(controller).Out().OnChange(func(s Signal[int64]) {
		p.dispatch.Enqueue(func() { p.projectDuration(s) })
	})
	return p
}

// Stop drains any queued projection work and stops the dispatch goroutine.
func (p *Projector) Stop() {
	p.dispatch.Stop()
}

// flush blocks until all projection work queued so far has run.
func (p *Projector) flush() {
	p.dispatch.Flush()
}

func (p *Projector) Title() *Property[string]               { return p.title }
func (p *Projector) Artist() *Property[string]              { return p.artist }
func (p *Projector) Album() *Property[string]               { return p.album }
func (p *Projector) ArtworkRef() *Property[string]          { return p.artworkRef }
func (p *Projector) DurationMillis() *Property[int64]       { return p.duration }
func (p *Projector) Timeline() *Property[*TimelineSnapshot] { return p.timeline }

func (p *Projector) Position() *Property[int64]                    { return p.position }
func (p *Projector) PlaybackState() *Property[PlaybackState]       { return p.playbackState }
func (p *Projector) SupportedActions() *Property[SupportedActions] { return p.supportedActions }

func (p *Projector) projectMetadata(s Signal[*MediaMetadataSnapshot]) {
	p.mu.Lock()
	p.metaLive = s.Live
	p.mu.Unlock()

	if !s.Live {
		p.title.Publish(p.state.Title())
		p.artist.Publish(p.state.Artist())
		p.album.Publish(p.state.Album())
		p.artworkRef.Publish(p.state.ArtworkRef())
		return
	}

	m := s.Val
	if m == nil {
		m = &MediaMetadataSnapshot{}
	}

	title := m.Title
	if title == "" {
		title = m.DisplayTitle
	}
	if title == "" {
		// fall back to the player's own display name, and if even that
		// lookup fails, to the cached title
		if label, ok := p.apps.LabelFor(p.state.LastPlayerPackage()); ok && label != "" {
			title = label
		} else {
			title = p.state.Title()
		}
	}

	artist := m.Artist
	if artist == "" {
		artist = m.Subtitle
	}

	p.state.SetTitle(title)
	p.state.SetArtist(artist)
	p.state.SetAlbum(m.AlbumTitle)
	p.state.SetArtworkRef(m.ArtworkRef)

	p.title.Publish(title)
	p.artist.Publish(artist)
	p.album.Publish(m.AlbumTitle)
	p.artworkRef.Publish(m.ArtworkRef)
}

func (p *Projector) projectTimeline(s Signal[*TimelineSnapshot]) {
	if !s.Live {
		p.timeline.Publish(nil)
		return
	}
	p.timeline.Publish(s.Val)
}

func (p *Projector) projectDuration(s Signal[int64]) {
	p.mu.Lock()
	p.durLive = s.Live
	p.mu.Unlock()

	if !s.Live {
		p.duration.Publish(p.state.DurationMillis())
		return
	}
	p.state.SetDurationMillis(s.Val)
	p.duration.Publish(s.Val)
}

// Refresh re-projects the cached values for any property that has no live
// source. Called after the fallback store is reset so consumers don't keep
// seeing pre-reset values. Blocks until the re-projection has run.
func (p *Projector) Refresh() {
	p.dispatch.Enqueue(p.refreshFromCache)
	p.dispatch.Flush()
}

func (p *Projector) refreshFromCache() {
	p.mu.Lock()
	metaLive, durLive := p.metaLive, p.durLive
	p.mu.Unlock()

	if !metaLive {
		p.title.Publish(p.state.Title())
		p.artist.Publish(p.state.Artist())
		p.album.Publish(p.state.Album())
		p.artworkRef.Publish(p.state.ArtworkRef())
	}
	if !durLive {
		p.duration.Publish(p.state.DurationMillis())
	}
}
