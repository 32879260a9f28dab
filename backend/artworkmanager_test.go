package backend

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tayokelay/nowplaying/backend/session"
)

func writeTestArtwork(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "art.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating artwork file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding artwork: %v", err)
	}
	return path
}

func waitForArtwork(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestArtworkManager_LoadFitsToTargetSize(t *testing.T) {
	path := writeTestArtwork(t, 600, 400, color.RGBA{R: 200, A: 255})
	a := NewArtworkManager(context.Background(), 300)

	img, err := a.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 300 || b.Dy() != 200 {
		t.Errorf("fitted size = %dx%d, want 300x200", b.Dx(), b.Dy())
	}
}

func TestArtworkManager_LoadFileURI(t *testing.T) {
	path := writeTestArtwork(t, 64, 64, color.RGBA{B: 200, A: 255})
	a := NewArtworkManager(context.Background(), 300)

	if _, err := a.Load("file://" + path); err != nil {
		t.Fatalf("Load(file URI): %v", err)
	}
}

func TestArtworkManager_LoadCachesDecodedImage(t *testing.T) {
	path := writeTestArtwork(t, 64, 64, color.RGBA{G: 200, A: 255})
	a := NewArtworkManager(context.Background(), 300)

	first, err := a.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// delete the backing file; a second load must be served from cache
	os.Remove(path)
	second, err := a.Load(path)
	if err != nil {
		t.Fatalf("Load from cache: %v", err)
	}
	if first != second {
		t.Error("expected cached image instance on second load")
	}
}

func TestArtworkManager_FollowRefPublishesImageAndAccent(t *testing.T) {
	path := writeTestArtwork(t, 32, 32, color.RGBA{R: 255, A: 255})
	a := NewArtworkManager(context.Background(), 300)
	ref := session.NewProperty[string](nil)
	a.FollowRef(ref)

	ref.Publish(path)
	waitForArtwork(t, "image published", func() bool { return a.Image().Get() != nil })

	accent := a.AccentColor().Get()
	if accent == nil {
		t.Fatal("accent color not published")
	}
	r, _, _, _ := accent.RGBA()
	if r == 0 {
		t.Errorf("accent of red artwork has zero red channel: %v", accent)
	}
}

func TestArtworkManager_FailedLoadKeepsLastImage(t *testing.T) {
	path := writeTestArtwork(t, 32, 32, color.RGBA{R: 255, A: 255})
	a := NewArtworkManager(context.Background(), 300)
	ref := session.NewProperty[string](nil)
	a.FollowRef(ref)

	ref.Publish(path)
	waitForArtwork(t, "image published", func() bool { return a.Image().Get() != nil })
	last := a.Image().Get()

	ref.Publish(filepath.Join(t.TempDir(), "missing.png"))
	// give the failed load a moment to (not) publish
	time.Sleep(50 * time.Millisecond)
	if got := a.Image().Get(); got != last {
		t.Error("failed load must not replace the last image")
	}
}

func TestArtworkManager_EmptyRefClearsImage(t *testing.T) {
	path := writeTestArtwork(t, 32, 32, color.RGBA{R: 255, A: 255})
	a := NewArtworkManager(context.Background(), 300)
	ref := session.NewProperty[string](nil)
	a.FollowRef(ref)

	ref.Publish(path)
	waitForArtwork(t, "image published", func() bool { return a.Image().Get() != nil })

	ref.Publish("")
	waitForArtwork(t, "image cleared", func() bool { return a.Image().Get() == nil })
}
