package settings

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
)

// DefaultDebounce is the quiet period writes are coalesced over before a
// flush to the store is attempted.
const DefaultDebounce = 300 * time.Millisecond

// Gateway reconciles an in-memory settings cache with a Store without losing
// data under rapid successive writes.
//
// Mutations merge into the cache immediately so reads observe them
// synchronously. Committing mutations schedule a debounced flush; a flush in
// flight is never duplicated and a payload whose flush failed is retried on
// the next scheduling opportunity instead of being dropped.
type Gateway struct {
	store    Store
	debounce time.Duration

	lock sync.Mutex
	cond *sync.Cond

	cache   *Settings
	loaded  bool
	loading chan struct{}

	timer    *time.Timer
	pending  *Settings
	flushing bool
}

func NewGateway(store Store, debounce time.Duration) *Gateway {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	g := &Gateway{
		store:    store,
		debounce: debounce,
		cache:    &Settings{PreferredQuality: QualityAuto},
	}
	g.cond = sync.NewCond(&g.lock)
	return g
}

// EnsureLoaded loads the settings from the store exactly once. Concurrent
// callers await the same in-flight load; later calls are no-ops. A failed
// load leaves the defaults in place and marks the gateway loaded, the error
// is returned for logging only.
func (g *Gateway) EnsureLoaded(ctx context.Context) error {
	g.lock.Lock()
	if g.loaded {
		g.lock.Unlock()
		return nil
	}
	if g.loading != nil {
		inflight := g.loading
		g.lock.Unlock()
		select {
		case <-inflight:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	inflight := make(chan struct{})
	g.loading = inflight
	g.lock.Unlock()

	loaded, err := g.store.Load(ctx)

	g.lock.Lock()
	if err == nil && loaded != nil {
		g.cache = loaded
	}
	if g.cache.PreferredQuality == "" {
		g.cache.PreferredQuality = QualityAuto
	}
	g.loaded = true
	g.loading = nil
	close(inflight)
	g.lock.Unlock()
	return err
}

// update merges a mutation into the cache and, if commit is set, schedules a
// debounced flush.
func (g *Gateway) update(commit bool, mutate func(*Settings)) {
	g.lock.Lock()
	defer g.lock.Unlock()
	mutate(g.cache)
	if commit {
		g.scheduleLocked()
	}
}

func (g *Gateway) scheduleLocked() {
	g.pending = g.cache.Clone()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	// While a flush is in flight the pending payload is picked up by the
	// flush-completion branch instead of a second timer.
	if g.flushing {
		return
	}
	g.timer = time.AfterFunc(g.debounce, g.flush)
}

func (g *Gateway) flush() {
	g.lock.Lock()
	g.timer = nil
	if g.pending == nil || g.flushing {
		g.lock.Unlock()
		return
	}
	payload := g.pending
	g.pending = nil
	g.flushing = true
	g.lock.Unlock()

	err := g.store.Save(context.Background(), payload)

	g.lock.Lock()
	g.flushing = false
	if err != nil {
		log.Warnf("Could not save settings, will retry: %v", err)
		if g.pending == nil {
			g.pending = payload
		}
	}
	if g.pending != nil && g.timer == nil {
		g.timer = time.AfterFunc(g.debounce, g.flush)
	}
	g.cond.Broadcast()
	g.lock.Unlock()
}

// Flush writes any pending payload to the store immediately, waiting for an
// in-flight flush to settle first. Intended for shutdown.
func (g *Gateway) Flush(ctx context.Context) error {
	g.lock.Lock()
	for g.flushing {
		g.cond.Wait()
	}
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if g.pending == nil {
		g.lock.Unlock()
		return nil
	}
	payload := g.pending
	g.pending = nil
	g.flushing = true
	g.lock.Unlock()

	err := g.store.Save(ctx, payload)

	g.lock.Lock()
	g.flushing = false
	if err != nil && g.pending == nil {
		g.pending = payload
	}
	g.cond.Broadcast()
	g.lock.Unlock()
	return err
}

// Reload replaces the cache with the store contents. Used when the backing
// file is modified externally. Skipped when local changes await a flush, the
// local state wins in that case.
func (g *Gateway) Reload(ctx context.Context) error {
	g.lock.Lock()
	dirty := g.pending != nil || g.flushing
	g.lock.Unlock()
	if dirty {
		return nil
	}

	loaded, err := g.store.Load(ctx)
	if err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()
	if g.pending != nil || g.flushing {
		return nil
	}
	if loaded.PreferredQuality == "" {
		loaded.PreferredQuality = QualityAuto
	}
	g.cache = loaded
	return nil
}

// PlayMode returns the persisted play mode name, defaulting to "order".
func (g *Gateway) PlayMode() string {
	g.lock.Lock()
	defer g.lock.Unlock()
	switch g.cache.PlayMode {
	case "order", "single", "shuffle":
		return g.cache.PlayMode
	default:
		return "order"
	}
}

func (g *Gateway) SetPlayMode(mode string) {
	g.update(true, func(s *Settings) { s.PlayMode = mode })
}

// Volume returns the persisted volume clamped to [0, 1], defaulting to 1.
func (g *Gateway) Volume() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.cache.Volume == nil {
		return 1
	}
	return clampVolume(*g.cache.Volume)
}

func (g *Gateway) SetVolume(volume float64) {
	volume = clampVolume(volume)
	g.update(true, func(s *Settings) { s.Volume = &volume })
}

func (g *Gateway) PreferredQuality() Quality {
	g.lock.Lock()
	defer g.lock.Unlock()
	return NamedQuality(string(g.cache.PreferredQuality))
}

func (g *Gateway) SetPreferredQuality(quality Quality) {
	g.update(true, func(s *Settings) { s.PreferredQuality = quality })
}

// SaveQueueSnapshot records the queue for the specified source. The mid of
// the active track is stored alongside the index so a restore can resolve by
// identity.
func (g *Gateway) SaveQueueSnapshot(sourceID string, playlist []library.Track, index int) {
	if sourceID == "" {
		return
	}
	snapshot := StoredQueue{
		Playlist:     append([]library.Track(nil), playlist...),
		CurrentIndex: index,
	}
	if index >= 0 && index < len(playlist) {
		snapshot.CurrentMid = playlist[index].Mid
	}
	g.update(true, func(s *Settings) {
		if s.ProviderQueues == nil {
			s.ProviderQueues = map[string]StoredQueue{}
		}
		s.ProviderQueues[sourceID] = snapshot
	})
}

// ClearQueueSnapshot empties the stored queue for the specified source.
func (g *Gateway) ClearQueueSnapshot(sourceID string) {
	g.SaveQueueSnapshot(sourceID, nil, -1)
}

// LoadQueueSnapshot returns the stored queue for the specified source. The
// zero StoredQueue with index -1 is returned when nothing was stored.
func (g *Gateway) LoadQueueSnapshot(sourceID string) StoredQueue {
	g.lock.Lock()
	defer g.lock.Unlock()
	stored, ok := g.cache.ProviderQueues[sourceID]
	if !ok {
		return StoredQueue{CurrentIndex: -1}
	}
	stored.Playlist = append([]library.Track(nil), stored.Playlist...)
	return stored
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
