package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// reloadDebounce coalesces the burst of events editors emit on save
const reloadDebounce = 200 * time.Millisecond

// Watcher reloads a configuration file whenever it changes on disk. A file
// that fails to load or validate is logged and skipped; the previous
// configuration stays in effect.
type Watcher struct {
	path     string
	onChange func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher prepares a watcher calling onChange with every valid reload
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, so atomic renames by
// editors are seen as well
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.watcher.Close()
		close(w.done)
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	go w.loop()

	log.Info().Str("path", w.path).Msg("Watching config for changes")
	return nil
}

// Stop closes the watcher and waits for the loop to exit
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	// Load falls back to defaults for a missing file; a vanished file is
	// not a reload
	if _, err := os.Stat(w.path); err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Config file unavailable, keeping previous settings")
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Config reload rejected, keeping previous settings")
		return
	}
	log.Info().Str("path", w.path).Msg("Config reloaded")
	w.onChange(cfg)
}
