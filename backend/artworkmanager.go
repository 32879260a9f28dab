package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/boxes-ltd/imaging"
	"github.com/cenkalti/dominantcolor"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tayokelay/nowplaying/backend/session"
)

var ErrNoArtwork = errors.New("no artwork available")

const (
	artworkFetchTimeout = 15 * time.Second
	maxArtworkBytes     = 20 * 1_048_576
)

// ArtworkManager resolves artwork references published by the session layer
// into decoded, size-normalized images. References may be local file paths,
// file:// URIs, or http(s) URLs. Failed loads leave the previously published
// image in place.
type ArtworkManager struct {
	targetSize int
	httpClient *retryablehttp.Client
	cache      ArtworkCache

	loadGen     atomic.Uint64
	image       *session.Property[image.Image]
	accentColor *session.Property[color.Color]
}

func NewArtworkManager(ctx context.Context, targetSize int) *ArtworkManager {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = artworkFetchTimeout
	client.Logger = nil

	a := &ArtworkManager{
		targetSize: targetSize,
		httpClient: client,
		cache: ArtworkCache{
			MinSize:    4,
			MaxSize:    24,
			DefaultTTL: 5 * time.Minute,
		},
		image:       session.NewProperty[image.Image](nil),
		accentColor: session.NewProperty[color.Color](nil),
	}
	a.cache.Init(ctx, 2*time.Minute)
	return a
}

// Image is the most recently loaded artwork. Emits nil when the current
// session has no artwork reference.
func (a *ArtworkManager) Image() *session.Property[image.Image] {
	return a.image
}

// AccentColor is the dominant color of the current artwork.
func (a *ArtworkManager) AccentColor() *session.Property[color.Color] {
	return a.accentColor
}

// FollowRef starts loading artwork whenever ref publishes a new reference.
// Loads run asynchronously and only the most recent reference wins.
func (a *ArtworkManager) FollowRef(ref *session.Property[string]) {
	ref.OnChange(func(r string) {
		gen := a.loadGen.Add(1)
		go a.loadAndPublish(gen, r)
	})
}

func (a *ArtworkManager) loadAndPublish(gen uint64, ref string) {
	if ref == "" {
		if gen == a.loadGen.Load() {
			a.image.Publish(nil)
			a.accentColor.Publish(nil)
		}
		return
	}
	img, err := a.Load(ref)
	if err != nil {
		// keep showing the previous artwork
		log.Printf("failed to load artwork %q: %v", ref, err)
		return
	}
	if gen != a.loadGen.Load() {
		return
	}
	a.image.Publish(img)
	a.accentColor.Publish(dominantcolor.Find(img))
}

// Load fetches, decodes, and size-normalizes the artwork behind ref,
// consulting the in-memory cache first.
func (a *ArtworkManager) Load(ref string) (image.Image, error) {
	if img, err := a.cache.Get(ref); err == nil {
		return img, nil
	}
	img, err := a.decodeRef(ref)
	if err != nil {
		return nil, err
	}
	if a.targetSize > 0 {
		img = imaging.Fit(img, a.targetSize, a.targetSize, imaging.Lanczos)
	}
	a.cache.Set(ref, img)
	return img, nil
}

func (a *ArtworkManager) decodeRef(ref string) (image.Image, error) {
	u, err := url.Parse(ref)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return a.fetchRemote(ref)
	}
	path := ref
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(io.LimitReader(f, maxArtworkBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", ref, err)
	}
	return img, nil
}

func (a *ArtworkManager) fetchRemote(artURL string) (image.Image, error) {
	resp, err := a.httpClient.Get(artURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("bad status fetching artwork: %s", resp.Status)
	}
	ctype := resp.Header.Get("Content-Type")
	if ctype != "" && !strings.HasPrefix(ctype, "image/") {
		return nil, fmt.Errorf("unexpected artwork content type %q", ctype)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", artURL, err)
	}
	return img, nil
}
