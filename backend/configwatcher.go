package backend

import (
	"log"
	"path"
	"reflect"

	"github.com/fsnotify/fsnotify"
)

// startConfigWatcher applies source-filter edits to the running aggregator
// when the config file changes on disk.
func (a *App) startConfigWatcher() {
	watch, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("error watching config dir: %v", err)
		return
	}
	watch.Add(a.configDir)
	go func() {
		defer watch.Close()
		for {
			select {
			case <-a.bgrndCtx.Done():
				return
			case ev := <-watch.Events:
				if path.Base(ev.Name) != configFile || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				a.reloadSourceFilter()
			}
		}
	}()
}

func (a *App) reloadSourceFilter() {
	cfg, err := ReadConfigFile(a.configFilePath(), a.appVersionTag)
	if err != nil {
		log.Printf("ignoring malformed config edit: %v", err)
		return
	}
	a.applySourceFilter(cfg.SourceFilter)
}

// applySourceFilter swaps the active discovery filter if sf differs from
// the running config.
func (a *App) applySourceFilter(sf SourceFilterConfig) {
	a.cfgLock.Lock()
	if reflect.DeepEqual(sf, a.Config.SourceFilter) {
		a.cfgLock.Unlock()
		return
	}
	a.Config.SourceFilter = sf
	a.cfgLock.Unlock()

	log.Println("source filter changed on disk; applying")
	a.Aggregator.SetSourceFilter(NewAllowListFilter(sf))
}
