package bleve_indexer

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/noelzubin/compendium_search/search"
)

// settle coalesces bursts of file events into one reload.
const settle = 200 * time.Millisecond

// Watch reloads the store whenever the manifest or a database file changes and
// then calls onChange. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]bool{s.root: true, filepath.Join(s.root, worldDir): true}
	s.mu.RLock()
	for file := range s.sources {
		dirs[filepath.Dir(file)] = true
	}
	s.mu.RUnlock()
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Printf("not watching %s: %v", dir, err)
		}
	}

	var sched search.TimerScheduler
	var pending search.Handle
	reload := func() {
		if err := s.Reload(); err != nil {
			log.Printf("reloading %s: %v", s.root, err)
			return
		}
		onChange()
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Cancel()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if pending != nil {
				pending.Cancel()
			}
			pending = sched.Schedule(settle, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watching %s: %v", s.root, err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return name == manifestFile || filepath.Ext(name) == dbExt
}
