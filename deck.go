package main

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/cache"
	"github.com/dgnsrekt/sampledeck/internal/library"
	"github.com/dgnsrekt/sampledeck/internal/playback"
	"github.com/dgnsrekt/sampledeck/ui"
)

// deck is the playback stack for one run.
type deck struct {
	cache    *cache.CacheManager
	contexts *audio.ContextManager
	engine   *audio.Engine
	player   *playback.Orchestrator
	library  library.Library
}

func newDeck(o options, v *viper.Viper) (*deck, error) {
	cacheCfg := cache.DefaultCacheConfig()
	cacheCfg.MemoryCapacity = o.MemoryCacheBytes
	cacheCfg.DiskCapacity = o.DiskCacheBytes
	cacheCfg.CompressionLevel = o.Compression

	// Local files are already on disk, so only remote samples get an L2 tier
	if o.Remote && o.DiskCache {
		dir, err := diskCacheDir(o.DiskCacheDir)
		if err != nil {
			return nil, err
		}
		cacheCfg.DiskPath = dir
	}

	blobs, err := cache.NewCacheManager(cacheCfg)
	if err != nil {
		return nil, err
	}

	var (
		lib     library.Library
		fetcher playback.Fetcher
	)
	if o.Remote {
		client := &http.Client{Timeout: o.RemoteTimeout}
		lib = library.NewRemoteLibrary(o.Source, client)
		fetcher = playback.NewHTTPFetcher(playback.HTTPFetcherConfig{
			BaseURL: o.Source,
			Client:  client,
			Timeout: o.RemoteTimeout,
			Rate:    o.RemoteRate,
			Burst:   2,
		})
	} else {
		local := library.NewLocalLibrary(o.Source)
		local.ShowAll = showAllFiles
		lib = local
		fetcher = playback.NewFileFetcher()
	}

	backend := audio.NewBackend(audio.BackendConfig{
		SampleRate: o.SampleRate,
		BufferSize: o.BufferSizeMS,
		Mock:       o.MockAudio,
	})
	contexts := audio.NewContextManager(backend)
	engine := audio.NewEngine(contexts, audio.NewDecoder(o.SampleRate), audio.EngineConfig{
		PeakBuckets: o.WaveformBuckets,
		OnEnded:     func() { log.Debug("Playback reached the end") },
	})

	prefs := playback.NewViperPreferences(v)
	player := playback.New(engine, blobs, fetcher, prefs, playback.Config{
		SettleDelay: o.SettleDelay,
	})

	log.Debug("Deck ready",
		"source", o.Source,
		"remote", o.Remote,
		"disk_cache", cacheCfg.DiskPath,
		"sample_rate", o.SampleRate)

	return &deck{
		cache:    blobs,
		contexts: contexts,
		engine:   engine,
		player:   player,
		library:  lib,
	}, nil
}

func (d *deck) deps() ui.Deps {
	return ui.Deps{
		Library: d.library,
		Player:  d.player,
		Buffers: d.engine,
		Audio:   d.contexts,
		Cache:   d.cache,
	}
}

// Close tears the stack down in reverse order.
func (d *deck) Close() {
	d.player.Close()
	d.engine.Close()
	if err := d.contexts.Close(); err != nil {
		log.Warn("Could not close audio context", "error", err)
	}
	if err := d.cache.Close(); err != nil {
		log.Warn("Could not close cache", "error", err)
	}
}

func diskCacheDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dir, err := gap.NewScope(gap.User, "sampledeck").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "samples"), nil
}
