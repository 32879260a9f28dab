package backend

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

var ErrNotFound = errors.New("item not found")

type artworkEntry struct {
	img image.Image

	// unix time
	expiresAt    int64
	lastAccessed int64
}

// An in-memory cache of decoded artwork keyed by artwork reference, with
// the following eviction strategy:
//  1. If there are fewer than MinSize items in the cache, none will be evicted
//  2. If a new addition would make the cache exceed MaxSize, the LRU expired
//     item (or if none expired, the LRU item) is immediately evicted
//  3. Between MinSize and MaxSize, expired items are periodically evicted
type ArtworkCache struct {
	MinSize    int
	MaxSize    int
	DefaultTTL time.Duration

	mu      sync.Mutex
	entries map[string]artworkEntry
}

func (a *ArtworkCache) Init(ctx context.Context, evictionInterval time.Duration) {
	a.entries = make(map[string]artworkEntry)
	go a.periodicallyEvict(ctx, evictionInterval)
}

func (a *ArtworkCache) Set(ref string, img image.Image) {
	now := time.Now().Unix()
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entries[ref]; !ok && len(a.entries) >= a.MaxSize {
		a.evictOneLocked(now)
	}
	a.entries[ref] = artworkEntry{
		img:          img,
		expiresAt:    time.Now().Add(a.DefaultTTL).Unix(),
		lastAccessed: now,
	}
}

func (a *ArtworkCache) Get(ref string) (image.Image, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[ref]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastAccessed = time.Now().Unix()
	e.expiresAt = time.Now().Add(a.DefaultTTL).Unix()
	a.entries[ref] = e
	return e.img, nil
}

func (a *ArtworkCache) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[string]artworkEntry)
}

// must be called with mu held
func (a *ArtworkCache) evictOneLocked(now int64) {
	var lruRef, lruExpiredRef string
	lruTime, lruExpiredTime := now, now
	for ref, e := range a.entries {
		if e.expiresAt < now && e.lastAccessed < lruExpiredTime {
			lruExpiredTime = e.lastAccessed
			lruExpiredRef = ref
		}
		if e.lastAccessed < lruTime {
			lruTime = e.lastAccessed
			lruRef = ref
		}
	}
	if lruExpiredTime < now {
		delete(a.entries, lruExpiredRef)
	} else {
		delete(a.entries, lruRef)
	}
}

func (a *ArtworkCache) periodicallyEvict(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.evictExpired()
		}
	}
}

// evictExpired removes expired items until none remain or the cache
// holds MinSize elements, least recently used first.
func (a *ArtworkCache) evictExpired() {
	now := time.Now().Unix()
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.entries) > a.MinSize {
		var oldestRef string
		oldestTime := now
		for ref, e := range a.entries {
			if e.expiresAt < now && e.lastAccessed < oldestTime {
				oldestTime = e.lastAccessed
				oldestRef = ref
			}
		}
		if oldestRef == "" {
			return
		}
		delete(a.entries, oldestRef)
	}
}
