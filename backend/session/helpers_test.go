package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

type fakeSource struct {
	mu   sync.Mutex
	recs []NotificationRecord
	cbs  []func([]NotificationRecord)
}

func (s *fakeSource) Notifications() []NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs
}

func (s *fakeSource) OnNotificationsChanged(cb func([]NotificationRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cbs = append(s.cbs, cb)
}

func (s *fakeSource) push(recs ...NotificationRecord) {
	s.mu.Lock()
	s.recs = recs
	cbs := make([]func([]NotificationRecord), len(s.cbs))
	copy(cbs, s.cbs)
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(recs)
	}
}

type allowFilter struct {
	enabled bool
	allowed map[string]bool
}

func (f *allowFilter) Enabled() bool { return f.enabled }

func (f *allowFilter) Allows(pkg string) bool { return f.allowed[pkg] }

type memStore struct {
	mu      sync.Mutex
	strings map[string]string
	ints    map[string]int64
	fail    bool
}

func newMemStore() *memStore {
	return &memStore{strings: map[string]string{}, ints: map[string]int64{}}
}

var errStoreFail = errors.New("store failure")

func (m *memStore) GetString(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errStoreFail
	}
	return m.strings[key], nil
}

func (m *memStore) SetString(key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreFail
	}
	m.strings[key] = val
	return nil
}

func (m *memStore) GetInt64(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errStoreFail
	}
	return m.ints[key], nil
}

func (m *memStore) SetInt64(key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreFail
	}
	m.ints[key] = val
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreFail
	}
	m.strings = map[string]string{}
	m.ints = map[string]int64{}
	return nil
}

func (m *memStore) getString(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strings[key]
}

// stalledStore blocks every string write until gate is closed, simulating
// a contended database.
type stalledStore struct {
	*memStore
	gate chan struct{}
}

func (s *stalledStore) SetString(key, val string) error {
	<-s.gate
	return s.memStore.SetString(key, val)
}

type fakeTarget struct {
	name   string
	opened int
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Open() error {
	f.opened++
	return nil
}

type fakeHandle struct {
	mu       sync.Mutex
	pkg      string
	meta     *MediaMetadataSnapshot
	timeline *TimelineSnapshot
	duration int64
	target   LaunchTarget

	metaCb func(*MediaMetadataSnapshot)
	tlCb   func(*TimelineSnapshot)
	durCb  func(int64)

	released bool
	calls    []string
}

func (h *fakeHandle) ResolvedPackageID() string { return h.pkg }

func (h *fakeHandle) Metadata() *MediaMetadataSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.meta
}

func (h *fakeHandle) Timeline() *TimelineSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeline
}

func (h *fakeHandle) DurationMillis() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *fakeHandle) OnMetadataChanged(cb func(*MediaMetadataSnapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metaCb = cb
}

func (h *fakeHandle) OnTimelineChanged(cb func(*TimelineSnapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tlCb = cb
}

func (h *fakeHandle) OnDurationChanged(cb func(int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durCb = cb
}

func (h *fakeHandle) record(call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	return nil
}

func (h *fakeHandle) Play() error              { return h.record("play") }
func (h *fakeHandle) Pause() error             { return h.record("pause") }
func (h *fakeHandle) SeekNext() error          { return h.record("next") }
func (h *fakeHandle) SeekPrevious() error      { return h.record("previous") }
func (h *fakeHandle) SeekToMillis(int64) error { return h.record("seek") }

func (h *fakeHandle) OriginatingTarget() LaunchTarget {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.target
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	h.metaCb, h.tlCb, h.durCb = nil, nil, nil
}

func (h *fakeHandle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *fakeHandle) callNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	calls := make([]string, len(h.calls))
	copy(calls, h.calls)
	return calls
}

// pushMetadata simulates the handle pushing a new metadata snapshot.
func (h *fakeHandle) pushMetadata(m *MediaMetadataSnapshot) {
	h.mu.Lock()
	h.meta = m
	cb := h.metaCb
	h.mu.Unlock()
	if cb != nil {
		cb(m)
	}
}

func (h *fakeHandle) pushDuration(ms int64) {
	h.mu.Lock()
	h.duration = ms
	cb := h.durCb
	h.mu.Unlock()
	if cb != nil {
		cb(ms)
	}
}

type fakeSessionResolver struct {
	mu       sync.Mutex
	handles  map[SessionToken]*fakeHandle
	err      error
	entered  chan SessionToken // non-nil: signaled when Resolve is entered
	proceed  chan struct{}     // non-nil: Resolve blocks until signaled
	resolved []SessionToken
}

func newFakeSessionResolver() *fakeSessionResolver {
	return &fakeSessionResolver{handles: map[SessionToken]*fakeHandle{}}
}

func (f *fakeSessionResolver) addHandle(token SessionToken, h *fakeHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[token] = h
}

func (f *fakeSessionResolver) Resolve(ctx context.Context, token SessionToken) (SessionHandle, error) {
	if f.entered != nil {
		f.entered <- token
	}
	if f.proceed != nil {
		select {
		case <-f.proceed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, token)
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.handles[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return h, nil
}

type fakeApps struct {
	mu        sync.Mutex
	labels    map[string]string
	targets   map[string]*fakeTarget
	choosers  int
	chooseErr error
}

func newFakeApps() *fakeApps {
	return &fakeApps{labels: map[string]string{}, targets: map[string]*fakeTarget{}}
}

func (f *fakeApps) LabelFor(pkg string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.labels[pkg]
	return l, ok
}

func (f *fakeApps) LaunchTargetFor(pkg string) (LaunchTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[pkg]
	if !ok {
		return nil, false
	}
	return t, true
}

func (f *fakeApps) OpenPlayerChooser() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choosers++
	return f.chooseErr
}

type keyEvent struct {
	key    MediaKey
	action KeyAction
}

type fakeKeys struct {
	mu     sync.Mutex
	events []keyEvent
}

func (f *fakeKeys) Dispatch(key MediaKey, action KeyAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, keyEvent{key, action})
	return nil
}

func (f *fakeKeys) dispatched() []keyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]keyEvent, len(f.events))
	copy(events, f.events)
	return events
}
