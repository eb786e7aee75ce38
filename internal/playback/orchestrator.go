package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/cache"
	"github.com/dgnsrekt/sampledeck/internal/library"
)

// DefaultSettleDelay separates tearing down one session from starting the
// next.
const DefaultSettleDelay = 50 * time.Millisecond

// Player is the transport the orchestrator drives. *audio.Engine implements
// it.
type Player interface {
	Load(ctx context.Context, blob []byte) (*audio.Buffer, error)
	Play(ctx context.Context) error
	Stop()
	SetLooping(v bool)
	Seek(fraction float64) error
	Status() audio.Status
}

// BlobCache stores raw sample bytes. *cache.MemoryCache and
// *cache.CacheManager implement it.
type BlobCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// SampleState is the load state of one selected sample.
type SampleState int

const (
	// SampleLoading means the bytes are being fetched or decoded.
	SampleLoading SampleState = iota
	// SampleReady means the sample is decoded and loaded in the engine.
	SampleReady
	// SampleFailed means the fetch, decode or start failed; see Err.
	SampleFailed
)

func (s SampleState) String() string {
	switch s {
	case SampleLoading:
		return "loading"
	case SampleReady:
		return "ready"
	case SampleFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SampleStatus is the outcome of the latest selection of a sample.
type SampleStatus struct {
	SampleID string
	State    SampleState
	Err      error
}

// Status is a snapshot of the orchestrator.
type Status struct {
	Engine     audio.Status
	Sample     library.Sample
	HasSample  bool
	Selection  SampleStatus
	Prefs      Prefs
	Restarting bool
	Generation uint64
}

// Config configures an Orchestrator.
type Config struct {
	SettleDelay time.Duration
}

// Orchestrator coordinates the engine and the cache across selections.
type Orchestrator struct {
	engine  Player
	cache   BlobCache
	fetcher Fetcher
	prefs   Preferences
	config  Config
	metrics *Metrics

	generation Generation
	restart    Guard

	// transport orders generation bumps against autoplay and restart starts
	transport sync.Mutex
	// epoch is bumped by selections and user stops (guarded by transport).
	// A deferred start only runs if the epoch it captured is still current.
	epoch uint64
	// pending is the epoch of a selection waiting to auto-play, or 0
	pending uint64
	// loads keeps stale loads from replacing a newer one's buffer
	loads sync.Mutex

	mu          sync.Mutex
	current     library.Sample
	hasCurrent  bool
	statuses    map[string]SampleStatus
	cancelFetch context.CancelFunc

	unsubscribe func()
}

// New creates an orchestrator and mirrors the loop preference into engine.
func New(engine Player, blobs BlobCache, fetcher Fetcher, prefs Preferences, config Config) *Orchestrator {
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	o := &Orchestrator{
		engine:   engine,
		cache:    blobs,
		fetcher:  fetcher,
		prefs:    prefs,
		config:   config,
		metrics:  NewMetrics(),
		statuses: make(map[string]SampleStatus),
	}
	engine.SetLooping(prefs.Loop())
	o.unsubscribe = prefs.Subscribe(func(p Prefs) {
		engine.SetLooping(p.Loop)
	})
	return o
}

// Select makes sample the current selection. Playback of the previous
// sample stops immediately. The sample's bytes are fetched and decoded; with
// auto-play enabled it starts after the settle delay unless another
// selection arrived meanwhile. Failures are recorded on the sample and
// returned; results of superseded selections are dropped silently.
func (o *Orchestrator) Select(ctx context.Context, sample library.Sample) error {
	o.transport.Lock()
	gen := o.generation.Next()
	o.epoch++
	epoch := o.epoch
	if o.prefs.AutoPlay() {
		o.pending = epoch
	}
	o.engine.Stop()
	o.transport.Unlock()
	defer o.clearPending(epoch)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.cancelFetch != nil {
		o.cancelFetch()
	}
	o.cancelFetch = cancel
	o.current = sample
	o.hasCurrent = true
	o.statuses[sample.Key()] = SampleStatus{SampleID: sample.Key(), State: SampleLoading}
	o.mu.Unlock()

	log.Debug("Sample selected", "sample", sample.Filename, "generation", gen)

	err := o.selectGeneration(ctx, gen, epoch, sample)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale):
		o.dropLoading(sample, gen)
		return nil
	case !o.generation.IsCurrent(gen):
		// Cancellation caused by a newer selection
		o.dropLoading(sample, gen)
		return nil
	default:
		return err
	}
}

func (o *Orchestrator) selectGeneration(ctx context.Context, gen, epoch uint64, sample library.Sample) error {
	blob, err := o.fetch(ctx, sample)
	if err != nil {
		return o.fail(sample, gen, "fetch", err)
	}
	if !o.generation.IsCurrent(gen) {
		return ErrStale
	}

	if err := o.load(ctx, gen, blob); err != nil {
		if errors.Is(err, ErrStale) {
			return err
		}
		return o.fail(sample, gen, "decode", err)
	}
	o.setStatus(sample, gen, SampleStatus{SampleID: sample.Key(), State: SampleReady})

	if !o.prefs.AutoPlay() {
		return nil
	}
	if err := o.settle(ctx); err != nil {
		return err
	}

	o.transport.Lock()
	defer o.transport.Unlock()
	if !o.generation.IsCurrent(gen) {
		return ErrStale
	}
	if o.epoch != epoch {
		log.Debug("Auto-play cancelled by stop", "sample", sample.Filename)
		return nil
	}
	if err := o.engine.Play(ctx); err != nil {
		return o.fail(sample, gen, "play", err)
	}
	return nil
}

// fetch returns the sample's bytes from the cache, else the fetcher,
// inserting fetched bytes into the cache.
func (o *Orchestrator) fetch(ctx context.Context, sample library.Sample) ([]byte, error) {
	key := sample.Key()
	if blob, ok := o.cache.Get(key); ok {
		o.metrics.RecordCache(true)
		return blob, nil
	}
	o.metrics.RecordCache(false)

	start := time.Now()
	blob, err := o.fetcher.Fetch(ctx, sample)
	took := time.Since(start)
	if err != nil {
		return nil, err
	}
	o.metrics.Record(OpFetch, took)

	if err := o.cache.Put(key, blob); err != nil {
		if errors.Is(err, cache.ErrItemTooLarge) {
			log.Debug("Sample too large to cache, it will be fetched again",
				"sample", sample.Filename, "size", humanize.IBytes(uint64(len(blob))))
		} else {
			log.Warn("Cache insert failed", "sample", sample.Filename, "error", err)
		}
	}
	return blob, nil
}

func (o *Orchestrator) load(ctx context.Context, gen uint64, blob []byte) error {
	o.loads.Lock()
	defer o.loads.Unlock()

	if !o.generation.IsCurrent(gen) {
		return ErrStale
	}
	start := time.Now()
	_, err := o.engine.Load(ctx, blob)
	if errors.Is(err, audio.ErrSuperseded) || !o.generation.IsCurrent(gen) {
		return ErrStale
	}
	if err != nil {
		return err
	}
	o.metrics.Record(OpDecode, time.Since(start))
	return nil
}

func (o *Orchestrator) settle(ctx context.Context) error {
	if o.config.SettleDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.config.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart stops playback and plays the current buffer from the start after
// the settle delay. A restart requested while one is in flight is ignored.
func (o *Orchestrator) Restart(ctx context.Context) error {
	if !o.restart.TryEnter() {
		log.Debug("Restart already in progress")
		return nil
	}
	defer o.restart.Leave()

	if !o.engine.Status().State.HasBuffer() {
		return nil
	}
	o.transport.Lock()
	epoch := o.epoch
	o.engine.Stop()
	o.transport.Unlock()

	if err := o.settle(ctx); err != nil {
		return err
	}

	o.transport.Lock()
	defer o.transport.Unlock()
	if o.epoch != epoch {
		return nil
	}
	return o.engine.Play(ctx)
}

// TogglePlayback stops when playing or waiting to auto-play, and plays
// otherwise.
func (o *Orchestrator) TogglePlayback(ctx context.Context) error {
	o.transport.Lock()
	defer o.transport.Unlock()

	if o.engine.Status().Playing || (o.pending != 0 && o.pending == o.epoch) {
		o.stopLocked()
		return nil
	}
	return o.engine.Play(ctx)
}

// Stop stops playback and cancels a pending auto-play or restart.
func (o *Orchestrator) Stop() {
	o.transport.Lock()
	defer o.transport.Unlock()
	o.stopLocked()
}

// stopLocked must be called with transport held.
func (o *Orchestrator) stopLocked() {
	o.epoch++
	o.pending = 0
	o.engine.Stop()
}

func (o *Orchestrator) clearPending(epoch uint64) {
	o.transport.Lock()
	if o.pending == epoch {
		o.pending = 0
	}
	o.transport.Unlock()
}

// Seek moves playback to fraction.
func (o *Orchestrator) Seek(fraction float64) error {
	return o.engine.Seek(fraction)
}

// ToggleLoop flips the loop preference and returns the new value. The engine
// follows through the preference subscription.
func (o *Orchestrator) ToggleLoop() bool {
	v := !o.prefs.Loop()
	if err := o.prefs.SetLoop(v); err != nil {
		log.Warn("Failed to save loop preference", "error", err)
	}
	return v
}

// ToggleAutoPlay flips the auto-play preference and returns the new value.
func (o *Orchestrator) ToggleAutoPlay() bool {
	v := !o.prefs.AutoPlay()
	if err := o.prefs.SetAutoPlay(v); err != nil {
		log.Warn("Failed to save auto-play preference", "error", err)
	}
	return v
}

// SampleStatus returns the latest outcome for the sample with key.
func (o *Orchestrator) SampleStatus(key string) (SampleStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.statuses[key]
	return st, ok
}

// Status returns a snapshot.
func (o *Orchestrator) Status() Status {
	st := Status{
		Engine:     o.engine.Status(),
		Prefs:      Prefs{Loop: o.prefs.Loop(), AutoPlay: o.prefs.AutoPlay()},
		Restarting: o.restart.State() == GuardBusy,
		Generation: o.generation.Current(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.hasCurrent {
		st.Sample = o.current
		st.HasSample = true
		st.Selection = o.statuses[o.current.Key()]
	}
	return st
}

// Metrics returns the latency tracker.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Close stops playback and detaches from the preference store.
func (o *Orchestrator) Close() {
	o.unsubscribe()

	o.mu.Lock()
	if o.cancelFetch != nil {
		o.cancelFetch()
	}
	o.mu.Unlock()

	o.Stop()
	log.Debug("Orchestrator closed",
		"fetch", o.metrics.Stats(OpFetch),
		"decode", o.metrics.Stats(OpDecode))
}

// fail records err on the sample when gen is still current.
func (o *Orchestrator) fail(sample library.Sample, gen uint64, action string, err error) error {
	if !o.generation.IsCurrent(gen) {
		return ErrStale
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	perr := NewError(err, "playback", action, sample.Key())
	o.setStatus(sample, gen, SampleStatus{SampleID: sample.Key(), State: SampleFailed, Err: perr})
	log.Warn("Sample failed", "sample", sample.Filename, "action", action, "error", err)
	return perr
}

func (o *Orchestrator) setStatus(sample library.Sample, gen uint64, st SampleStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation.IsCurrent(gen) {
		o.statuses[sample.Key()] = st
	}
}

// dropLoading forgets a loading status left by a superseded selection.
func (o *Orchestrator) dropLoading(sample library.Sample, gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.statuses[sample.Key()]; ok && st.State == SampleLoading {
		if o.hasCurrent && o.current.Key() == sample.Key() && o.generation.IsCurrent(gen) {
			return
		}
		delete(o.statuses, sample.Key())
	}
}
