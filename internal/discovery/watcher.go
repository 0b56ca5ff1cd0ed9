package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a live view of the instance registry via fsnotify.
type Watcher struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	callbacks []func(map[string]*Instance)

	instancesDir string
	watcher      *fsnotify.Watcher
}

func NewWatcher(instancesDir string) (*Watcher, error) {
	if err := os.MkdirAll(instancesDir, dirMode); err != nil {
		return nil, fmt.Errorf("create instances directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		instances:    make(map[string]*Instance),
		instancesDir: instancesDir,
		watcher:      fsWatcher,
	}

	if err := fsWatcher.Add(instancesDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch instances directory: %w", err)
	}

	if err := w.scan(); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("initial registry scan: %w", err)
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// Instances returns a copy of the current view.
func (w *Watcher) Instances() map[string]*Instance {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make(map[string]*Instance, len(w.instances))
	for k, v := range w.instances {
		result[k] = v
	}
	return result
}

// OnUpdate registers a callback invoked after every registry change.
func (w *Watcher) OnUpdate(callback func(map[string]*Instance)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.instancesDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isInstanceFile(entry.Name()) {
			continue
		}
		w.load(filepath.Join(w.instancesDir, entry.Name()))
	}
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isInstanceFile(filepath.Base(event.Name)) {
				continue
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				w.load(event.Name)
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				w.forget(event.Name)
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var instance Instance
	if err := json.Unmarshal(data, &instance); err != nil || instance.ID == "" {
		return
	}

	w.mu.Lock()
	w.instances[instance.ID] = &instance
	callbacks := w.callbacks
	w.mu.Unlock()

	w.notify(callbacks)
}

func (w *Watcher) forget(path string) {
	id := instanceIDFromFile(filepath.Base(path))
	if id == "" {
		return
	}

	w.mu.Lock()
	delete(w.instances, id)
	callbacks := w.callbacks
	w.mu.Unlock()

	w.notify(callbacks)
}

func (w *Watcher) notify(callbacks []func(map[string]*Instance)) {
	snapshot := w.Instances()
	for _, callback := range callbacks {
		callback(snapshot)
	}
}
