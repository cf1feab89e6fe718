package config

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a profile file whenever it changes on disk and
// delivers the new Config to OnChange. A reload that fails to parse is
// logged and skipped — the previously loaded Config stays authoritative
// until a subsequent edit parses cleanly.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	OnChange func(*Config)
	done     chan struct{}
}

// NewWatcher starts watching path's containing directory (not the file
// itself, since editors commonly replace a file via rename rather than
// in-place write, which would orphan a direct watch).
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fw, OnChange: onChange, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("config: reload of %s failed, keeping previous config: %v", w.path, err)
				continue
			}
			if w.OnChange != nil {
				w.OnChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
