package host

import (
	"fmt"
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const SearchWorldPacksKey = "search_world_packs"

// Settings holds the runtime settings, persisted through viper.
type Settings struct {
	// mu guards v and the mirrored value; viper reloads a watched file on its
	// own goroutine.
	mu       sync.Mutex
	v        *viper.Viper
	last     bool
	onChange []func(searchWorldPacks bool)
}

func NewSettings(v *viper.Viper) *Settings {
	v.SetDefault(SearchWorldPacksKey, false)
	return &Settings{v: v, last: v.GetBool(SearchWorldPacksKey)}
}

// SearchWorldPacks is read on every filter pass.
func (s *Settings) SearchWorldPacks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SetSearchWorldPacks changes the setting and writes it to the config file
// when there is one.
func (s *Settings) SetSearchWorldPacks(on bool) error {
	s.mu.Lock()
	s.v.Set(SearchWorldPacksKey, on)
	var err error
	if s.v.ConfigFileUsed() != "" {
		err = s.v.WriteConfig()
	}
	fns := s.update(on)
	s.mu.Unlock()

	notify(fns, on)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// OnChange registers fn to be called after the setting changes.
func (s *Settings) OnChange(fn func(searchWorldPacks bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Watch picks up edits of the config file made while running.
func (s *Settings) Watch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("config changed: %s", e.Name)
		s.mu.Lock()
		cur := s.v.GetBool(SearchWorldPacksKey)
		fns := s.update(cur)
		s.mu.Unlock()
		notify(fns, cur)
	})
	s.v.WatchConfig()
}

// update mirrors cur and returns the callbacks to run, none when the value
// did not change. s.mu must be held.
func (s *Settings) update(cur bool) []func(bool) {
	if cur == s.last {
		return nil
	}
	s.last = cur
	return append([]func(bool){}, s.onChange...)
}

func notify(fns []func(bool), cur bool) {
	for _, fn := range fns {
		fn(cur)
	}
}
