package session

import (
	"errors"
	"log"
)

// ErrUnavailable is returned by OpenPlayer when neither the live session
// nor the cached last player resolves to a launchable target.
var ErrUnavailable = errors.New("no launchable player available")

// errNoHandle signals transport fallback mode internally.
var errNoHandle = errors.New("no live session handle")

// Transport exposes the unified playback commands. The mode is resolved at
// call time: commands go to the live handle when one is resolved, otherwise
// they degrade to synthesized hardware media-key events.
type Transport struct {
	resolver  *Resolver
	keys      KeyDispatcher
	apps      AppLookup
	state     *CachedState
	projector *Projector
}

func NewTransport(resolver *Resolver, keys KeyDispatcher, apps AppLookup, state *CachedState, projector *Projector) *Transport {
	return &Transport{
		resolver:  resolver,
		keys:      keys,
		apps:      apps,
		state:     state,
		projector: projector,
	}
}

func (t *Transport) Play() error {
	return t.command(SessionHandle.Play, KeyPlay, true)
}

func (t *Transport) Pause() error {
	return t.command(SessionHandle.Pause, KeyPause, true)
}

func (t *Transport) Next() error {
	return t.command(SessionHandle.SeekNext, KeyNext, true)
}

func (t *Transport) Previous() error {
	return t.command(SessionHandle.SeekPrevious, KeyPrevious, true)
}

// SeekTo seeks the live session to the given position. There is no
// hardware-key equivalent, so without a live handle this is a no-op.
func (t *Transport) SeekTo(ms int64) error {
	return t.command(func(h SessionHandle) error {
		return h.SeekToMillis(ms)
	}, 0, false)
}

func (t *Transport) command(live func(SessionHandle) error, key MediaKey, hasKey bool) error {
	err := t.resolver.call(func(h SessionHandle) error {
		if h == nil {
			return errNoHandle
		}
		return live(h)
	})
	if errors.Is(err, errNoHandle) || errors.Is(err, errResolverStopped) {
		if !hasKey {
			return nil
		}
		return t.pressKey(key)
	}
	return err
}

func (t *Transport) pressKey(key MediaKey) error {
	if err := t.keys.Dispatch(key, KeyDown); err != nil {
		return err
	}
	return t.keys.Dispatch(key, KeyUp)
}

// OpenPlayer returns a launch target for the active player's UI: the live
// session's originating target if it carries one, else a generic launch of
// the last resolved player's package. Returns ErrUnavailable if neither
// resolves.
func (t *Transport) OpenPlayer() (LaunchTarget, error) {
	var target LaunchTarget
	t.resolver.call(func(h SessionHandle) error {
		if h != nil {
			target = h.OriginatingTarget()
		}
		return nil
	})
	if target == nil {
		if pkg := t.state.LastPlayerPackage(); pkg != "" {
			if lt, ok := t.apps.LaunchTargetFor(pkg); ok {
				target = lt
			}
		}
	}
	if target == nil {
		return nil, ErrUnavailable
	}
	return target, nil
}

// OpenPlayerChooser delegates to the platform's generic media-player
// chooser, independent of live/fallback mode.
func (t *Transport) OpenPlayerChooser() error {
	return t.apps.OpenPlayerChooser()
}

// Reset clears the entire fallback store and re-projects the (now empty)
// cached values. It does not tear down a live handle.
func (t *Transport) Reset() error {
	err := t.state.Clear()
	if err != nil {
		log.Printf("error clearing fallback store: %v", err)
	}
	t.projector.Refresh()
	return err
}
