package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"reflect"
	"sync"
	"time"

	"github.com/20after4/configdir"
	"github.com/godbus/dbus/v5"

	"github.com/tayokelay/nowplaying/backend/ipc"
	"github.com/tayokelay/nowplaying/backend/platform"
	"github.com/tayokelay/nowplaying/backend/session"
)

const (
	configFile  = "config.toml"
	stateDBFile = "state.db"
)

var ErrAnotherInstance = errors.New("another instance is running")

type App struct {
	Config         *Config
	Aggregator     *session.Aggregator
	ArtworkManager *ArtworkManager
	FallbackStore  *FallbackStore

	// Callback to be set in main. Invoked when a quit is requested over IPC.
	OnExit func()

	appName       string
	appVersionTag string
	configDir     string
	cacheDir      string

	dbusConn  *dbus.Conn
	keys      *platform.UinputKeyDispatcher
	ipcServer *http.Server

	isFirstLaunch bool // set by config file reader
	bgrndCtx      context.Context
	cancel        context.CancelFunc

	// guards Config and lastWrittenCfg: the config watcher and the
	// periodic writer both touch them from background goroutines
	cfgLock        sync.Mutex
	lastWrittenCfg Config
}

func (a *App) VersionTag() string {
	return a.appVersionTag
}

func StartupApp(appName, appVersionTag string) (*App, error) {
	confDir := configdir.LocalConfig(appName)
	cacheDir := configdir.LocalCache(appName)
	// ensure config and cache dirs exist
	configdir.MakePath(confDir)
	configdir.MakePath(cacheDir)

	if _, err := ipc.Connect(); err == nil {
		log.Println("Another instance is running.")
		return nil, ErrAnotherInstance
	}

	log.Printf("Starting %s...", appName)
	log.Printf("Using config dir: %s", confDir)
	log.Printf("Using cache dir: %s", cacheDir)

	a := &App{
		appName:       appName,
		appVersionTag: appVersionTag,
		configDir:     confDir,
		cacheDir:      cacheDir,
	}
	a.bgrndCtx, a.cancel = context.WithCancel(context.Background())
	a.readConfig()
	a.startConfigWriter(a.bgrndCtx)

	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	a.dbusConn = conn

	source, err := platform.NewMPRISSource(a.bgrndCtx, conn)
	if err != nil {
		return nil, fmt.Errorf("watching for media players: %w", err)
	}
	resolver := platform.NewMPRISResolver(conn)
	apps := platform.NewDesktopAppLookup()

	var keys session.KeyDispatcher
	if kd, err := platform.NewUinputKeyDispatcher(); err != nil {
		log.Printf("media key fallback unavailable: %v", err)
		keys = unavailableKeyDispatcher{err: err}
	} else {
		a.keys = kd
		keys = kd
	}

	store, err := NewFallbackStore(path.Join(confDir, stateDBFile))
	if err != nil {
		return nil, fmt.Errorf("opening fallback store: %w", err)
	}
	a.FallbackStore = store

	a.Aggregator = session.NewAggregator(
		a.bgrndCtx, source, NewAllowListFilter(a.Config.SourceFilter),
		resolver, store, apps, keys,
		session.Options{
			ResolveTimeout: time.Duration(a.Config.Application.ResolveTimeoutSeconds) * time.Second,
		},
	)

	a.ArtworkManager = NewArtworkManager(a.bgrndCtx, a.Config.Artwork.TargetSize)
	a.ArtworkManager.FollowRef(a.Aggregator.Projector.ArtworkRef())

	a.startConfigWatcher()

	if listener, err := ipc.Listen(); err != nil {
		log.Printf("error starting IPC server: %v", err)
	} else {
		a.ipcServer = ipc.NewServer(transportAPI{a}, a, a)
		go a.ipcServer.Serve(listener)
	}

	return a, nil
}

func (a *App) IsFirstLaunch() bool {
	return a.isFirstLaunch
}

func (a *App) readConfig() {
	cfgPath := a.configFilePath()
	var cfgExists bool
	if _, err := os.Stat(cfgPath); err == nil {
		cfgExists = true
	}
	a.isFirstLaunch = !cfgExists
	cfg, err := ReadConfigFile(cfgPath, a.appVersionTag)
	if err != nil {
		log.Printf("Error reading app config file: %v", err)
		cfg = DefaultConfig(a.appVersionTag)
		if cfgExists {
			backupCfgName := fmt.Sprintf("%s.bak", configFile)
			log.Printf("Config file may be malformed: copying to %s", backupCfgName)
			_ = copyFile(cfgPath, path.Join(a.configDir, backupCfgName))
		}
	}
	a.Config = cfg
}

// periodically save config file so abnormal exit won't lose settings
func (a *App) startConfigWriter(ctx context.Context) {
	tick := time.NewTicker(2 * time.Minute)
	go func() {
		for {
			select {
			case <-ctx.Done():
				tick.Stop()
				return
			case <-tick.C:
				a.persistConfigIfChanged()
			}
		}
	}()
}

func (a *App) persistConfigIfChanged() {
	a.cfgLock.Lock()
	defer a.cfgLock.Unlock()
	if reflect.DeepEqual(a.lastWrittenCfg, *a.Config) {
		return
	}
	a.Config.WriteConfigFile(a.configFilePath())
	a.lastWrittenCfg = *a.Config
}

// Status implements the IPC status surface.
func (a *App) Status() ipc.Status {
	p := a.Aggregator.Projector
	return ipc.Status{
		Title:          p.Title().Get(),
		Artist:         p.Artist().Get(),
		Album:          p.Album().Get(),
		ArtworkRef:     p.ArtworkRef().Get(),
		DurationMillis: p.DurationMillis().Get(),
		PositionMillis: p.Position().Get(),
		PlaybackState:  playbackStateString(p.PlaybackState().Get()),
		Live:           a.Aggregator.Resolver.Controller().Get().Handle != nil,
		PlayerPackage:  a.Aggregator.State.LastPlayerPackage(),
	}
}

// Quit implements the IPC quit surface.
func (a *App) Quit() {
	if a.OnExit != nil {
		a.OnExit()
	}
}

func (a *App) Shutdown() {
	if a.ipcServer != nil {
		a.ipcServer.Shutdown(context.Background())
		ipc.DestroyConn()
	}
	a.Aggregator.Shutdown()
	if a.keys != nil {
		a.keys.Close()
	}
	a.cancel()
	a.SaveConfigFile()
	a.FallbackStore.Close()
}

func (a *App) SaveConfigFile() {
	a.cfgLock.Lock()
	defer a.cfgLock.Unlock()
	a.Config.WriteConfigFile(a.configFilePath())
	a.lastWrittenCfg = *a.Config
}

func (a *App) configFilePath() string {
	return path.Join(a.configDir, configFile)
}

// copyFile snapshots src to dst, creating or truncating dst. Only used for
// small files like the config backup.
func copyFile(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	return os.WriteFile(dstPath, data, 0644)
}

func playbackStateString(s session.PlaybackState) string {
	switch s {
	case session.PlaybackStatePlaying:
		return "playing"
	case session.PlaybackStatePaused:
		return "paused"
	case session.PlaybackStateStopped:
		return "stopped"
	}
	return "unknown"
}

// transportAPI adapts the aggregator's transport to the IPC handler surface.
type transportAPI struct {
	a *App
}

func (t transportAPI) Play() error {
	return t.a.Aggregator.Transport.Play()
}

func (t transportAPI) Pause() error {
	return t.a.Aggregator.Transport.Pause()
}

func (t transportAPI) SeekNext() error {
	return t.a.Aggregator.Transport.Next()
}

func (t transportAPI) SeekPrevious() error {
	return t.a.Aggregator.Transport.Previous()
}

func (t transportAPI) SeekToMillis(ms int64) error {
	return t.a.Aggregator.Transport.SeekTo(ms)
}

func (t transportAPI) OpenPlayer() error {
	target, err := t.a.Aggregator.Transport.OpenPlayer()
	if err != nil {
		return err
	}
	log.Printf("opening player %s", target.Name())
	return target.Open()
}

func (t transportAPI) OpenPlayerChooser() error {
	return t.a.Aggregator.Transport.OpenPlayerChooser()
}

func (t transportAPI) ResetState() error {
	return t.a.Aggregator.Transport.Reset()
}

// unavailableKeyDispatcher stands in when the uinput device can't be
// created; fallback transport commands then surface the init error.
type unavailableKeyDispatcher struct {
	err error
}

func (d unavailableKeyDispatcher) Dispatch(session.MediaKey, session.KeyAction) error {
	return d.err
}
