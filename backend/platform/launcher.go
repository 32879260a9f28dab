package platform

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tayokelay/nowplaying/backend/session"
	"github.com/tayokelay/nowplaying/sharedutil"
)

// DesktopAppLookup resolves package identifiers against freedesktop
// .desktop entries, providing display labels and launch targets.
type DesktopAppLookup struct {
	mu      sync.Mutex
	dirs    []string
	entries map[string]*desktopEntry // keyed by normalized entry ID
	loaded  bool
}

type desktopEntry struct {
	id   string
	name string
	exec string
}

var _ session.AppLookup = (*DesktopAppLookup)(nil)

func NewDesktopAppLookup() *DesktopAppLookup {
	return &DesktopAppLookup{dirs: desktopEntryDirs()}
}

func desktopEntryDirs() []string {
	var dirs []string
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(dataDirs, ":") {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	return dirs
}

func (d *DesktopAppLookup) LabelFor(packageID string) (string, bool) {
	e, ok := d.lookup(packageID)
	if !ok {
		return "", false
	}
	return e.name, true
}

func (d *DesktopAppLookup) LaunchTargetFor(packageID string) (session.LaunchTarget, bool) {
	e, ok := d.lookup(packageID)
	if !ok || e.exec == "" {
		return nil, false
	}
	return &execTarget{name: e.name, exec: e.exec}, true
}

// OpenPlayerChooser launches the system's default audio player, the
// closest thing to a media-player chooser the desktop offers.
func (d *DesktopAppLookup) OpenPlayerChooser() error {
	out, err := exec.Command("xdg-mime", "query", "default", "audio/mpeg").Output()
	if err != nil {
		return fmt.Errorf("querying default audio player: %w", err)
	}
	id := strings.TrimSuffix(strings.TrimSpace(string(out)), ".desktop")
	if id == "" {
		return errors.New("no default audio player configured")
	}
	target, ok := d.LaunchTargetFor(id)
	if !ok {
		return fmt.Errorf("default audio player %q has no launchable desktop entry", id)
	}
	return target.Open()
}

func (d *DesktopAppLookup) lookup(packageID string) (*desktopEntry, bool) {
	if packageID == "" {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		d.load()
		d.loaded = true
	}

	key := sharedutil.NormalizeAppKey(packageID)
	if e, ok := d.entries[key]; ok {
		return e, true
	}
	// players may register as <entry>.instance<pid>
	if i := strings.LastIndex(key, ".instance"); i > 0 {
		if e, ok := d.entries[key[:i]]; ok {
			return e, true
		}
	}
	for _, e := range d.entries {
		if sharedutil.AppKeysMatch(e.name, packageID) {
			return e, true
		}
	}
	return nil, false
}

// must be called with mu held
func (d *DesktopAppLookup) load() {
	d.entries = make(map[string]*desktopEntry)
	for _, dir := range d.dirs {
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".desktop") {
				continue
			}
			id := strings.TrimSuffix(f.Name(), ".desktop")
			key := sharedutil.NormalizeAppKey(id)
			if _, ok := d.entries[key]; ok {
				// earlier dirs take precedence, per the XDG search order
				continue
			}
			if e := parseDesktopFile(filepath.Join(dir, f.Name()), id); e != nil {
				d.entries[key] = e
			}
		}
	}
}

func parseDesktopFile(path, id string) *desktopEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	e := &desktopEntry{id: id}
	inEntrySection := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inEntrySection = line == "[Desktop Entry]"
			continue
		}
		if !inEntrySection {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Name=") && e.name == "":
			e.name = strings.TrimPrefix(line, "Name=")
		case strings.HasPrefix(line, "Exec=") && e.exec == "":
			e.exec = strings.TrimPrefix(line, "Exec=")
		case line == "NoDisplay=true":
			return nil
		}
	}
	if e.name == "" {
		e.name = id
	}
	return e
}

type execTarget struct {
	name string
	exec string
}

func (t *execTarget) Name() string { return t.name }

func (t *execTarget) Open() error {
	args := splitExecLine(t.exec)
	if len(args) == 0 {
		return fmt.Errorf("desktop entry for %s has an empty Exec line", t.name)
	}
	cmd := exec.Command(args[0], args[1:]...)
	return cmd.Start()
}

// splitExecLine tokenizes a desktop-entry Exec value, dropping the %f/%u
// style field codes that only apply when opening files.
func splitExecLine(line string) []string {
	fields := strings.Fields(line)
	return sharedutil.FilterSlice(fields, func(f string) bool {
		return !strings.HasPrefix(f, "%")
	})
}
