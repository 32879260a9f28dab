package backend

import (
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

type AppConfig struct {
	LastLaunchedVersion   string
	AllowMultiInstance    bool
	ResolveTimeoutSeconds int
}

type SourceFilterConfig struct {
	// When false, notifications from any app are eligible for discovery.
	FilterSources  bool
	AllowedSources []string
}

type ArtworkConfig struct {
	TargetSize int
}

type Config struct {
	Application  AppConfig
	SourceFilter SourceFilterConfig
	Artwork      ArtworkConfig
}

func DefaultConfig(appVersionTag string) *Config {
	return &Config{
		Application: AppConfig{
			LastLaunchedVersion:   "",
			AllowMultiInstance:    false,
			ResolveTimeoutSeconds: 5,
		},
		SourceFilter: SourceFilterConfig{
			FilterSources:  false,
			AllowedSources: []string{},
		},
		Artwork: ArtworkConfig{
			TargetSize: 300,
		},
	}
}

func ReadConfigFile(filepath, appVersionTag string) (*Config, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := DefaultConfig(appVersionTag)
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}

	if c.Application.ResolveTimeoutSeconds <= 0 {
		c.Application.ResolveTimeoutSeconds = 5
	}
	if c.Artwork.TargetSize <= 0 {
		c.Artwork.TargetSize = 300
	}

	return c, nil
}

var writeLock sync.Mutex

func (c *Config) WriteConfigFile(filepath string) error {
	if !writeLock.TryLock() {
		return nil // another write in progress
	}
	defer writeLock.Unlock()

	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	os.WriteFile(filepath, b, 0644)

	return nil
}
