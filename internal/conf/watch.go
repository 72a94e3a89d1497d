// conf/watch.go hot-reload of the active config file.
package conf

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sctg-development/photoacoustic-go/internal/logging"
)

var watchLogger = logging.ForComponent("config")

// Watcher reloads Settings whenever the active config file changes on disk
// and republishes the result through Replace. The daemon supervisor starts
// exactly one Watcher per process; downstream consumers read the current
// snapshot via Current() rather than holding a stale copy.
type Watcher struct {
	fsw    *fsnotify.Watcher
	onLoad func(*Settings)
	done   chan struct{}
}

// NewWatcher watches the file viper resolved as the active config (set by a
// prior call to Load). onLoad, if non-nil, is invoked after each successful
// reload with the new settings, in addition to the package-level Replace.
func NewWatcher(onLoad func(*Settings)) (*Watcher, error) {
	path := ConfigFileUsed()
	if path == "" {
		return nil, fmt.Errorf("no config file loaded yet")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching config file %s: %w", path, err)
	}
	w := &Watcher{fsw: fsw, onLoad: onLoad, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			watchLogger.Error("config watcher error", logging.WithErr(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	instanceMu.Lock()
	if err := viper.ReadInConfig(); err != nil {
		instanceMu.Unlock()
		watchLogger.Error("failed to re-read config file", logging.WithErr(err))
		return
	}
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		instanceMu.Unlock()
		watchLogger.Error("failed to unmarshal reloaded config", logging.WithErr(err))
		return
	}
	instance = settings
	instanceMu.Unlock()

	watchLogger.Info("configuration reloaded")
	if w.onLoad != nil {
		w.onLoad(settings)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
