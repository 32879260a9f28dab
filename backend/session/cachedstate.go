package session

import (
	"log"
	"sync"
)

// Keys under which CachedState fields are persisted.
const (
	StateKeyTitle             = "title"
	StateKeyArtist            = "artist"
	StateKeyAlbum             = "album"
	StateKeyArtworkRef        = "artwork_ref"
	StateKeyDurationMillis    = "duration_ms"
	StateKeyLastPlayerPackage = "last_player_package"
)

type cachedString struct {
	val    string
	loaded bool
}

type cachedInt64 struct {
	val    int64
	loaded bool
}

// CachedState holds the last known now-playing values, durably persisted so
// they survive restarts. Each field is read through from the store on first
// access and written through on every set. Store failures affect only the
// single operation: the in-memory value stands and the store is retried on
// the next write.
type CachedState struct {
	mu    sync.Mutex
	store KeyValueStore

	title, artist, album, artworkRef, lastPkg cachedString
	duration                                  cachedInt64
}

func NewCachedState(store KeyValueStore) *CachedState {
	return &CachedState{store: store}
}

func (c *CachedState) getString(key string, f *cachedString) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !f.loaded {
		val, err := c.store.GetString(key)
		if err != nil {
			log.Printf("error reading cached %s: %v", key, err)
		} else {
			f.val = val
		}
		f.loaded = true
	}
	return f.val
}

func (c *CachedState) setString(key string, f *cachedString, val string) {
	c.mu.Lock()
	f.val = val
	f.loaded = true
	c.mu.Unlock()
	if err := c.store.SetString(key, val); err != nil {
		log.Printf("error persisting cached %s: %v", key, err)
	}
}

func (c *CachedState) Title() string          { return c.getString(StateKeyTitle, &c.title) }
func (c *CachedState) SetTitle(v string)      { c.setString(StateKeyTitle, &c.title, v) }
func (c *CachedState) Artist() string         { return c.getString(StateKeyArtist, &c.artist) }
func (c *CachedState) SetArtist(v string)     { c.setString(StateKeyArtist, &c.artist, v) }
func (c *CachedState) Album() string          { return c.getString(StateKeyAlbum, &c.album) }
func (c *CachedState) SetAlbum(v string)      { c.setString(StateKeyAlbum, &c.album, v) }
func (c *CachedState) ArtworkRef() string     { return c.getString(StateKeyArtworkRef, &c.artworkRef) }
func (c *CachedState) SetArtworkRef(v string) { c.setString(StateKeyArtworkRef, &c.artworkRef, v) }

func (c *CachedState) LastPlayerPackage() string {
	return c.getString(StateKeyLastPlayerPackage, &c.lastPkg)
}

func (c *CachedState) SetLastPlayerPackage(v string) {
	c.setString(StateKeyLastPlayerPackage, &c.lastPkg, v)
}

func (c *CachedState) DurationMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.duration.loaded {
		val, err := c.store.GetInt64(StateKeyDurationMillis)
		if err != nil {
			log.Printf("error reading cached %s: %v", StateKeyDurationMillis, err)
		} else {
			c.duration.val = val
		}
		c.duration.loaded = true
	}
	return c.duration.val
}

func (c *CachedState) SetDurationMillis(v int64) {
	c.mu.Lock()
	c.duration.val = v
	c.duration.loaded = true
	c.mu.Unlock()
	if err := c.store.SetInt64(StateKeyDurationMillis, v); err != nil {
		log.Printf("error persisting cached %s: %v", StateKeyDurationMillis, err)
	}
}

// Clear wipes the persisted store and resets all in-memory values to their
// defaults.
func (c *CachedState) Clear() error {
	c.mu.Lock()
	c.title = cachedString{loaded: true}
	c.artist = cachedString{loaded: true}
	c.album = cachedString{loaded: true}
	c.artworkRef = cachedString{loaded: true}
	c.lastPkg = cachedString{loaded: true}
	c.duration = cachedInt64{loaded: true}
	c.mu.Unlock()
	return c.store.Clear()
}
