package core

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the configuration file whenever it is written and
// hands the new value to a callback. The host applies only the settings that
// can change at runtime: log level and frame pacing.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.Mutex
}

func WatchConfig(path string, onChange func(*Config)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors replace files on save, so watch the directory and filter by name.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	cw := &ConfigWatcher{
		path:     filepath.Clean(path),
		watcher:  w,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.loop()
	return cw, nil
}

func (cw *ConfigWatcher) loop() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogWarn("ignoring config change: %s", err.Error())
				continue
			}
			LogInfo("configuration reloaded from %s", cw.path)
			cw.onChange(cfg)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			LogError("config watcher: %s", err.Error())
		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.closed {
		return ErrWatcherAlreadyClose
	}
	cw.closed = true
	close(cw.done)
	err := cw.watcher.Close()
	cw.wg.Wait()
	return err
}
