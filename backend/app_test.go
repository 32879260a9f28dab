package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tayokelay/nowplaying/backend/platform"
	"github.com/tayokelay/nowplaying/backend/session"
)

// newConfigTestApp builds an App with a live aggregator but no notification
// source, enough to exercise the config paths.
func newConfigTestApp(t *testing.T) *App {
	t.Helper()
	store, err := NewFallbackStore(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := &App{
		Config:        DefaultConfig("v0.0.0"),
		appVersionTag: "v0.0.0",
		configDir:     t.TempDir(),
	}
	a.bgrndCtx, a.cancel = context.WithCancel(context.Background())
	t.Cleanup(a.cancel)
	a.Aggregator = session.NewAggregator(
		a.bgrndCtx, nil, nil, nil, store,
		platform.NewDesktopAppLookup(), unavailableKeyDispatcher{}, session.Options{},
	)
	t.Cleanup(a.Aggregator.Shutdown)
	return a
}

func TestApp_ConcurrentFilterApplyAndConfigWrite(t *testing.T) {
	a := newConfigTestApp(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			a.applySourceFilter(SourceFilterConfig{
				FilterSources:  true,
				AllowedSources: []string{fmt.Sprintf("app%d", i)},
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			a.persistConfigIfChanged()
		}
	}()
	wg.Wait()

	if got := a.Config.SourceFilter.AllowedSources; len(got) != 1 || got[0] != "app49" {
		t.Errorf("final AllowedSources = %v, expected the last applied filter", got)
	}
	a.persistConfigIfChanged()
	cfg, err := ReadConfigFile(a.configFilePath(), "v0.0.0")
	if err != nil {
		t.Fatalf("persisted config unreadable: %v", err)
	}
	if len(cfg.SourceFilter.AllowedSources) != 1 {
		t.Errorf("persisted AllowedSources = %v", cfg.SourceFilter.AllowedSources)
	}
}

func TestApp_MalformedConfigBackedUp(t *testing.T) {
	dir := t.TempDir()
	a := &App{appVersionTag: "v0.0.0", configDir: dir}
	bad := "[Application\nnot toml at all"
	if err := os.WriteFile(filepath.Join(dir, configFile), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	a.readConfig()

	if a.Config == nil || a.Config.Application.ResolveTimeoutSeconds != 5 {
		t.Error("malformed config must fall back to defaults")
	}
	got, err := os.ReadFile(filepath.Join(dir, configFile+".bak"))
	if err != nil {
		t.Fatalf("backup copy not written: %v", err)
	}
	if string(got) != bad {
		t.Errorf("backup = %q, expected the original file contents", got)
	}
	if a.IsFirstLaunch() {
		t.Error("an existing config file, even malformed, is not a first launch")
	}
}
