// Package platform provides the Linux implementations of the session
// package's host interfaces: an MPRIS D-Bus notification source and session
// resolver, desktop-entry app lookup, and uinput media-key dispatch.
package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/tayokelay/nowplaying/backend/session"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propsInterface  = "org.freedesktop.DBus.Properties"

	nameOwnerChangedSignal  = "org.freedesktop.DBus.NameOwnerChanged"
	propertiesChangedSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

// MPRISSource watches the session bus for MPRIS player names and presents
// them as notification records. A player re-posting state (PropertiesChanged)
// bumps its record's post time, so the most recently active player wins
// discovery.
type MPRISSource struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal

	mu      sync.Mutex
	records map[string]session.NotificationRecord // keyed by well-known bus name
	owners  map[string]string                     // unique name -> well-known bus name
	cbs     []func([]session.NotificationRecord)
}

var _ session.NotificationSource = (*MPRISSource)(nil)

func NewMPRISSource(ctx context.Context, conn *dbus.Conn) (*MPRISSource, error) {
	s := &MPRISSource{
		conn:    conn,
		records: make(map[string]session.NotificationRecord),
		owners:  make(map[string]string),
	}
	err := conn.AddMatchSignal(
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	)
	if err != nil {
		return nil, fmt.Errorf("adding NameOwnerChanged match: %w", err)
	}
	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(mprisObjectPath),
	)
	if err != nil {
		return nil, fmt.Errorf("adding PropertiesChanged match: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("listing bus names: %w", err)
	}
	now := time.Now()
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		var owner string
		if err := conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner); err == nil {
			s.owners[owner] = name
		}
		s.records[name] = newPlayerRecord(name, now)
	}

	s.signals = make(chan *dbus.Signal, 32)
	conn.Signal(s.signals)
	go s.watch(ctx)
	return s, nil
}

func newPlayerRecord(busName string, postTime time.Time) session.NotificationRecord {
	return session.NotificationRecord{
		PackageID: strings.TrimPrefix(busName, mprisPrefix),
		PostTime:  postTime,
		Token:     session.SessionToken(busName),
	}
}

func (s *MPRISSource) Notifications() []session.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *MPRISSource) OnNotificationsChanged(cb func([]session.NotificationRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cbs = append(s.cbs, cb)
}

func (s *MPRISSource) snapshotLocked() []session.NotificationRecord {
	records := make([]session.NotificationRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	return records
}

func (s *MPRISSource) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.conn.RemoveSignal(s.signals)
			return
		case sig := <-s.signals:
			if sig == nil {
				return
			}
			if s.handleSignal(sig) {
				s.notify()
			}
		}
	}
}

// handleSignal reports whether the record set changed.
func (s *MPRISSource) handleSignal(sig *dbus.Signal) bool {
	switch sig.Name {
	case nameOwnerChangedSignal:
		if len(sig.Body) != 3 {
			return false
		}
		name, _ := sig.Body[0].(string)
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		if !strings.HasPrefix(name, mprisPrefix) {
			return false
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.owners, oldOwner)
		if newOwner == "" {
			delete(s.records, name)
		} else {
			s.owners[newOwner] = name
			s.records[name] = newPlayerRecord(name, time.Now())
		}
		return true
	case propertiesChangedSignal:
		// a player pushed new state; treat it as a re-post so the most
		// recently active player wins discovery
		s.mu.Lock()
		defer s.mu.Unlock()
		name, ok := s.owners[sig.Sender]
		if !ok {
			return false
		}
		r := s.records[name]
		r.PostTime = time.Now()
		s.records[name] = r
		return true
	}
	return false
}

func (s *MPRISSource) notify() {
	s.mu.Lock()
	records := s.snapshotLocked()
	cbs := make([]func([]session.NotificationRecord), len(s.cbs))
	copy(cbs, s.cbs)
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(records)
	}
}

// MPRISResolver connects session tokens (MPRIS bus names) to live player
// handles.
type MPRISResolver struct {
	conn *dbus.Conn
}

var _ session.SessionResolver = (*MPRISResolver)(nil)

func NewMPRISResolver(conn *dbus.Conn) *MPRISResolver {
	return &MPRISResolver{conn: conn}
}

func (r *MPRISResolver) Resolve(ctx context.Context, token session.SessionToken) (session.SessionHandle, error) {
	busName := string(token)
	obj := r.conn.Object(busName, mprisObjectPath)

	// a live player must answer Identity; this doubles as the liveness check
	identity, err := getStringProperty(ctx, obj, rootInterface, "Identity")
	if err != nil {
		return nil, fmt.Errorf("player %s not responding: %w", busName, err)
	}
	desktopEntry, _ := getStringProperty(ctx, obj, rootInterface, "DesktopEntry")

	var owner string
	if err := r.conn.BusObject().CallWithContext(
		ctx, "org.freedesktop.DBus.GetNameOwner", 0, busName,
	).Store(&owner); err != nil {
		return nil, fmt.Errorf("resolving owner of %s: %w", busName, err)
	}

	h := &mprisHandle{
		conn:         r.conn,
		obj:          obj,
		busName:      busName,
		owner:        owner,
		identity:     identity,
		desktopEntry: desktopEntry,
		quit:         make(chan struct{}),
	}
	err = r.conn.AddMatchSignal(
		dbus.WithMatchSender(busName),
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(mprisObjectPath),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", busName, err)
	}
	h.signals = make(chan *dbus.Signal, 16)
	r.conn.Signal(h.signals)
	go h.watchSignals()
	return h, nil
}

func getStringProperty(ctx context.Context, obj dbus.BusObject, iface, prop string) (string, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propsInterface+".Get", 0, iface, prop).Store(&v)
	if err != nil {
		return "", err
	}
	s, _ := v.Value().(string)
	return s, nil
}

// mprisHandle is a live handle to one MPRIS player.
type mprisHandle struct {
	conn         *dbus.Conn
	obj          dbus.BusObject
	busName      string
	owner        string
	identity     string
	desktopEntry string

	signals chan *dbus.Signal
	quit    chan struct{}

	mu          sync.Mutex
	released    bool
	releaseOnce sync.Once
	metaCb      func(*session.MediaMetadataSnapshot)
	timelineCb  func(*session.TimelineSnapshot)
	durationCb  func(int64)
}

var _ session.SessionHandle = (*mprisHandle)(nil)

func (h *mprisHandle) ResolvedPackageID() string {
	if h.desktopEntry != "" {
		return h.desktopEntry
	}
	return strings.TrimPrefix(h.busName, mprisPrefix)
}

func (h *mprisHandle) Metadata() *session.MediaMetadataSnapshot {
	m, err := h.rawMetadata()
	if err != nil {
		return nil
	}
	return metadataSnapshot(m)
}

func (h *mprisHandle) Timeline() *session.TimelineSnapshot {
	m, err := h.rawMetadata()
	if err != nil {
		return nil
	}
	return timelineSnapshot(m)
}

func (h *mprisHandle) DurationMillis() int64 {
	m, err := h.rawMetadata()
	if err != nil {
		return 0
	}
	return durationMillis(m)
}

func (h *mprisHandle) rawMetadata() (map[string]dbus.Variant, error) {
	v, err := h.obj.GetProperty(playerInterface + ".Metadata")
	if err != nil {
		return nil, err
	}
	m, _ := v.Value().(map[string]dbus.Variant)
	return m, nil
}

func (h *mprisHandle) OnMetadataChanged(cb func(*session.MediaMetadataSnapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metaCb = cb
}

func (h *mprisHandle) OnTimelineChanged(cb func(*session.TimelineSnapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timelineCb = cb
}

func (h *mprisHandle) OnDurationChanged(cb func(int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durationCb = cb
}

func (h *mprisHandle) Play() error {
	return h.obj.Call(playerInterface+".Play", 0).Err
}

func (h *mprisHandle) Pause() error {
	return h.obj.Call(playerInterface+".Pause", 0).Err
}

func (h *mprisHandle) SeekNext() error {
	return h.obj.Call(playerInterface+".Next", 0).Err
}

func (h *mprisHandle) SeekPrevious() error {
	return h.obj.Call(playerInterface+".Previous", 0).Err
}

func (h *mprisHandle) SeekToMillis(ms int64) error {
	m, err := h.rawMetadata()
	if err != nil {
		return err
	}
	trackID, ok := trackObjectPath(m)
	if !ok {
		return fmt.Errorf("player %s exposes no track id to seek within", h.busName)
	}
	return h.obj.Call(playerInterface+".SetPosition", 0, trackID, ms*1000).Err
}

func (h *mprisHandle) OriginatingTarget() session.LaunchTarget {
	var canRaise bool
	if v, err := h.obj.GetProperty(rootInterface + ".CanRaise"); err == nil {
		canRaise, _ = v.Value().(bool)
	}
	if !canRaise {
		return nil
	}
	return &raiseTarget{name: h.identity, obj: h.obj}
}

func (h *mprisHandle) Release() {
	h.releaseOnce.Do(func() {
		h.mu.Lock()
		h.released = true
		h.metaCb = nil
		h.timelineCb = nil
		h.durationCb = nil
		h.mu.Unlock()
		h.conn.RemoveMatchSignal(
			dbus.WithMatchSender(h.busName),
			dbus.WithMatchInterface(propsInterface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchObjectPath(mprisObjectPath),
		)
		h.conn.RemoveSignal(h.signals)
		close(h.quit)
	})
}

func (h *mprisHandle) watchSignals() {
	for {
		select {
		case <-h.quit:
			return
		case sig := <-h.signals:
			if sig == nil {
				return
			}
			h.handlePropertiesChanged(sig)
		}
	}
}

func (h *mprisHandle) handlePropertiesChanged(sig *dbus.Signal) {
	// the shared bus connection fans all matched signals out to every
	// registered channel; keep only this player's property pushes
	if sig.Name != propertiesChangedSignal || sig.Sender != h.owner || len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	if iface != playerInterface {
		return
	}
	changed, _ := sig.Body[1].(map[string]dbus.Variant)
	mdVariant, ok := changed["Metadata"]
	if !ok {
		return
	}
	m, _ := mdVariant.Value().(map[string]dbus.Variant)

	h.mu.Lock()
	metaCb, timelineCb, durationCb := h.metaCb, h.timelineCb, h.durationCb
	released := h.released
	h.mu.Unlock()
	if released {
		return
	}
	if metaCb != nil {
		metaCb(metadataSnapshot(m))
	}
	if timelineCb != nil {
		timelineCb(timelineSnapshot(m))
	}
	if durationCb != nil {
		durationCb(durationMillis(m))
	}
}

// metadataSnapshot maps MPRIS xesam metadata onto the session snapshot.
func metadataSnapshot(m map[string]dbus.Variant) *session.MediaMetadataSnapshot {
	snap := &session.MediaMetadataSnapshot{
		Title:      variantString(m["xesam:title"]),
		AlbumTitle: variantString(m["xesam:album"]),
		ArtworkRef: variantString(m["mpris:artUrl"]),
	}
	if artists, ok := m["xesam:artist"].Value().([]string); ok {
		snap.Artist = strings.Join(artists, ", ")
	} else {
		snap.Artist = variantString(m["xesam:artist"])
	}
	return snap
}

// timelineSnapshot synthesizes a single-entry queue from the current track.
// MPRIS players rarely implement the TrackList interface, so the queue
// structure beyond the active entry is not available.
func timelineSnapshot(m map[string]dbus.Variant) *session.TimelineSnapshot {
	title := variantString(m["xesam:title"])
	if title == "" {
		return &session.TimelineSnapshot{ActiveIndex: -1}
	}
	return &session.TimelineSnapshot{Queue: []string{title}, ActiveIndex: 0}
}

// durationMillis extracts mpris:length (microseconds) as milliseconds.
func durationMillis(m map[string]dbus.Variant) int64 {
	return variantInt64(m["mpris:length"]) / 1000
}

func trackObjectPath(m map[string]dbus.Variant) (dbus.ObjectPath, bool) {
	switch v := m["mpris:trackid"].Value().(type) {
	case dbus.ObjectPath:
		return v, true
	case string:
		return dbus.ObjectPath(v), v != ""
	}
	return "", false
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

// variantInt64 tolerates the numeric types players use for mpris:length.
func variantInt64(v dbus.Variant) int64 {
	switch n := v.Value().(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

type raiseTarget struct {
	name string
	obj  dbus.BusObject
}

func (t *raiseTarget) Name() string { return t.name }

func (t *raiseTarget) Open() error {
	return t.obj.Call(rootInterface+".Raise", 0).Err
}
