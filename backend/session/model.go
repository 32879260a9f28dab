// Package session implements discovery of the host's active media session,
// resolution of that session into a controllable handle, and projection of
// unified now-playing properties backed by a durable fallback store.
package session

import (
	"context"
	"time"
)

// SessionToken is an opaque identifier referencing a specific active
// media-playback session on the host. The empty token means "no session".
type SessionToken string

// NotificationRecord is a single entry in the host's notification feed.
// Records are immutable; a newer record with a later PostTime supersedes
// older ones regardless of which player posted it.
type NotificationRecord struct {
	PackageID string
	PostTime  time.Time
	Token     SessionToken
}

// HasToken reports whether the record carries a valid session token.
func (r NotificationRecord) HasToken() bool {
	return r.Token != ""
}

// MediaMetadataSnapshot is the full metadata state pushed by a session
// handle. Snapshots are superseded wholesale on each change, never merged
// field by field.
type MediaMetadataSnapshot struct {
	Title        string
	DisplayTitle string
	Artist       string
	Subtitle     string
	AlbumTitle   string
	ArtworkRef   string
}

// TimelineSnapshot describes the session's queue structure. Opaque to the
// projections; superseded wholesale on each change.
type TimelineSnapshot struct {
	Queue       []string
	ActiveIndex int
}

// LaunchTarget is something that can bring a player's own UI to the front.
type LaunchTarget interface {
	Name() string
	Open() error
}

// SessionHandle is a connected, controllable reference to a resolved
// session. Handles are not safe for concurrent use: all calls must be
// marshaled onto the resolver's controller loop (see Resolver.Do).
type SessionHandle interface {
	ResolvedPackageID() string

	Metadata() *MediaMetadataSnapshot
	Timeline() *TimelineSnapshot
	DurationMillis() int64

	// Change callbacks. Only one callback per signal may be registered at
	// a time; registering nil unregisters. After unregistration (or
	// Release) the previous callback must not fire again.
	OnMetadataChanged(func(*MediaMetadataSnapshot))
	OnTimelineChanged(func(*TimelineSnapshot))
	OnDurationChanged(func(int64))

	Play() error
	Pause() error
	SeekNext() error
	SeekPrevious() error
	SeekToMillis(ms int64) error

	// OriginatingTarget returns a launch target for the player's own UI,
	// or nil if the session doesn't carry one.
	OriginatingTarget() LaunchTarget

	// Release disconnects the handle and frees its resources.
	Release()
}

// SessionResolver turns a session token into a live handle. Resolution may
// involve out-of-process negotiation and is bounded by the passed context.
type SessionResolver interface {
	Resolve(ctx context.Context, token SessionToken) (SessionHandle, error)
}

// NotificationSource produces snapshots of the host's current notification
// set. Each snapshot replaces the previous one.
type NotificationSource interface {
	Notifications() []NotificationRecord
	OnNotificationsChanged(func([]NotificationRecord))
}

// SourceFilter restricts discovery to an allow-list of known music apps.
// Mutated externally (config reload); read-only to this package.
type SourceFilter interface {
	Enabled() bool
	Allows(packageID string) bool
}

// MediaKey identifies a hardware media key for fallback transport control.
type MediaKey int

const (
	KeyPlay MediaKey = iota
	KeyPause
	KeyPlayPause
	KeyNext
	KeyPrevious
)

// KeyAction is the press phase of a hardware key event.
type KeyAction int

const (
	KeyDown KeyAction = iota
	KeyUp
)

// KeyDispatcher synthesizes hardware media-key events on the host.
type KeyDispatcher interface {
	Dispatch(key MediaKey, action KeyAction) error
}

// AppLookup resolves package identifiers to display labels and launch
// targets, and exposes the platform's generic media-player chooser.
type AppLookup interface {
	LabelFor(packageID string) (string, bool)
	LaunchTargetFor(packageID string) (LaunchTarget, bool)
	OpenPlayerChooser() error
}

// KeyValueStore is the durable storage primitive behind CachedState.
type KeyValueStore interface {
	GetString(key string) (string, error)
	SetString(key, val string) error
	GetInt64(key string) (int64, error)
	SetInt64(key string, val int64) error
	Clear() error
}

// PlaybackState as exposed to consumers. Live tracking is not implemented;
// the aggregator always reports PlaybackStateUnknown.
type PlaybackState int

const (
	PlaybackStateUnknown PlaybackState = iota
	PlaybackStateStopped
	PlaybackStatePlaying
	PlaybackStatePaused
)

// SupportedActions is a transport-capability bitmask. Live tracking is not
// implemented; the aggregator always reports ActionsNone.
type SupportedActions uint32

const ActionsNone SupportedActions = 0

// PositionUnknown is the fixed value of the position property. Live
// position polling is out of scope for the aggregator.
const PositionUnknown int64 = -1
