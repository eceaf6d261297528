package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file for writes and invokes onReload with the
// freshly loaded config. Editors often replace files instead of writing in
// place, so the parent directory is watched and events are filtered by name.
// Returns a stop function.
func Watch(path string, onReload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(evt.Name) != filepath.Base(path) {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if cfg, err := Load(path); err == nil {
					onReload(cfg)
				}
			case <-watcher.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
