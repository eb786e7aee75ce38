package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Viper keys backing ViperPreferences.
const (
	KeyLoop     = "playback.loop"
	KeyAutoPlay = "playback.auto_play"
)

// ViperPreferences stores preferences in a viper instance. Changes made
// through the setters are written back to the config file when one is in
// use; edits to the file from outside are picked up by viper's watcher.
type ViperPreferences struct {
	v *viper.Viper

	mu   sync.Mutex
	last Prefs
	subs subscribers
}

// NewViperPreferences wraps v. When v has a config file, it is watched for
// changes.
func NewViperPreferences(v *viper.Viper) *ViperPreferences {
	p := &ViperPreferences{v: v}
	p.last = p.snapshot()

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(p.onConfigChange)
		v.WatchConfig()
	}
	return p
}

func (p *ViperPreferences) Loop() bool {
	return p.v.GetBool(KeyLoop)
}

func (p *ViperPreferences) AutoPlay() bool {
	return p.v.GetBool(KeyAutoPlay)
}

func (p *ViperPreferences) SetLoop(v bool) error {
	return p.set(KeyLoop, v)
}

func (p *ViperPreferences) SetAutoPlay(v bool) error {
	return p.set(KeyAutoPlay, v)
}

func (p *ViperPreferences) Subscribe(fn func(Prefs)) func() {
	return p.subs.add(fn)
}

func (p *ViperPreferences) set(key string, value bool) error {
	p.v.Set(key, value)
	p.changed()

	if p.v.ConfigFileUsed() == "" {
		return nil
	}
	if err := p.v.WriteConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (p *ViperPreferences) onConfigChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	log.Debug("Config file changed", "file", e.Name, "op", e.Op)
	p.changed()
}

// changed notifies subscribers when the snapshot differs from the last one
// seen, so a write-back that triggers the watcher does not notify twice.
func (p *ViperPreferences) changed() {
	now := p.snapshot()

	p.mu.Lock()
	if now == p.last {
		p.mu.Unlock()
		return
	}
	p.last = now
	p.mu.Unlock()

	p.subs.notify(now)
}

func (p *ViperPreferences) snapshot() Prefs {
	return Prefs{Loop: p.Loop(), AutoPlay: p.AutoPlay()}
}
