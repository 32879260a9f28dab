package backend

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestConfig_WriteReadRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig("v0.1.0")
	cfg.SourceFilter.FilterSources = true
	cfg.SourceFilter.AllowedSources = []string{"vlc", "spotify"}
	cfg.Application.ResolveTimeoutSeconds = 8
	cfg.Artwork.TargetSize = 512

	if err := cfg.WriteConfigFile(p); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	got, err := ReadConfigFile(p, "v0.1.0")
	if err != nil {
		t.Fatalf("ReadConfigFile: %v", err)
	}
	if !got.SourceFilter.FilterSources {
		t.Error("FilterSources not round-tripped")
	}
	if !slices.Equal(got.SourceFilter.AllowedSources, cfg.SourceFilter.AllowedSources) {
		t.Errorf("AllowedSources = %v", got.SourceFilter.AllowedSources)
	}
	if got.Application.ResolveTimeoutSeconds != 8 {
		t.Errorf("ResolveTimeoutSeconds = %d", got.Application.ResolveTimeoutSeconds)
	}
	if got.Artwork.TargetSize != 512 {
		t.Errorf("TargetSize = %d", got.Artwork.TargetSize)
	}
}

func TestConfig_ReadClampsInvalidValues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.toml")
	contents := "[Application]\nResolveTimeoutSeconds = -1\n\n[Artwork]\nTargetSize = 0\n"
	if err := os.WriteFile(p, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadConfigFile(p, "v0.1.0")
	if err != nil {
		t.Fatalf("ReadConfigFile: %v", err)
	}
	if got.Application.ResolveTimeoutSeconds != 5 {
		t.Errorf("ResolveTimeoutSeconds = %d, want default 5", got.Application.ResolveTimeoutSeconds)
	}
	if got.Artwork.TargetSize != 300 {
		t.Errorf("TargetSize = %d, want default 300", got.Artwork.TargetSize)
	}
}

func TestConfig_ReadMissingFileErrors(t *testing.T) {
	if _, err := ReadConfigFile(filepath.Join(t.TempDir(), "nope.toml"), "v0.1.0"); err == nil {
		t.Error("expected error for missing config file")
	}
}
