package player

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
	"melodeck/src/settings"
	"melodeck/src/util"
)

// A URLResolver turns a track identity into a playable URL for the
// requested quality.
type URLResolver interface {
	ResolveURL(ctx context.Context, mid string, quality settings.Quality) (string, error)
}

// A LyricResolver fetches the lyric for a track. A nil *library.Lyric result
// without error means no lyric is available.
type LyricResolver interface {
	ResolveLyric(ctx context.Context, mid, name, artist string) (*library.Lyric, error)
}

// NeedMoreTracks is invoked when order-mode playback runs off the end of the
// queue. Returned tracks are spliced in right after the current index.
type NeedMoreTracks func(ctx context.Context) ([]library.Track, error)

// StateEvent signals that the playback state changed.
type StateEvent struct{}

// TimeEvent carries the periodic playback position sync.
type TimeEvent struct {
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Playing  bool          `json:"playing"`
}

// ErrorEvent surfaces a playback failure to presentation code.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Player composes the queue store, the shuffle session, the audio engine
// and the persistence gateway into the single surrounding state object
// exposed to presentation code.
type Player struct {
	util.Emitter

	store   *Store
	engine  AudioEngine
	gateway *settings.Gateway
	urls    URLResolver
	lyrics  LyricResolver

	lock     sync.Mutex
	shuffle  shuffleSession
	needMore NeedMoreTracks

	// playSeq guards against stale async completions: a resolution that
	// finishes after the user navigated elsewhere must not clobber the
	// newer state.
	playSeq uint64
	loading bool
	lastErr string
}

func New(engine AudioEngine, gateway *settings.Gateway, urls URLResolver, lyrics LyricResolver) *Player {
	pl := &Player{
		store:   NewStore(),
		engine:  engine,
		gateway: gateway,
		urls:    urls,
		lyrics:  lyrics,
	}
	// Single-slot registrations; this player instance is the one consumer.
	engine.OnEnded(pl.handleEnded)
	engine.OnError(pl.handleEngineError)
	return pl
}

// Store exposes the queue store for subscription and direct reads.
func (pl *Player) Store() *Store {
	return pl.store
}

// SetNeedMoreTracks registers the queue-backfill callback. Single slot, the
// last registration wins.
func (pl *Player) SetNeedMoreTracks(fn NeedMoreTracks) {
	pl.lock.Lock()
	defer pl.lock.Unlock()
	pl.needMore = fn
}

// Status is a snapshot of the full player state for presentation code.
type Status struct {
	State    State
	Playing  bool
	Loading  bool
	Position time.Duration
	Duration time.Duration
	Err      string
}

func (pl *Player) Status() Status {
	state := pl.store.State()

	duration := pl.engine.Duration()
	if duration == 0 && state.CurrentTrack != nil {
		// Engine metadata is not available yet, report the nominal track
		// duration instead.
		duration = state.CurrentTrack.Duration
	}

	pl.lock.Lock()
	loading, lastErr := pl.loading, pl.lastErr
	pl.lock.Unlock()

	return Status{
		State:    state,
		Playing:  pl.engine.Playing(),
		Loading:  loading,
		Position: pl.engine.Position(),
		Duration: duration,
		Err:      lastErr,
	}
}

// RestoreSession loads the persisted settings and restores the queue for
// the specified source, along with play mode and volume.
func (pl *Player) RestoreSession(ctx context.Context, sourceID string) error {
	if err := pl.gateway.EnsureLoaded(ctx); err != nil {
		log.Warnf("Could not load settings, continuing with defaults: %v", err)
	}

	pl.store.SetSourceID(sourceID)

	stored := pl.gateway.LoadQueueSnapshot(sourceID)
	playlist, index := stored.Resolve()
	if len(playlist) > 0 {
		if index < 0 {
			index = 0
		}
		track := playlist[index]
		pl.store.SetPlaylist(playlist)
		pl.store.SetCurrentIndex(index)
		pl.store.SetCurrentTrack(&track)
	} else {
		pl.store.SetPlaylist(nil)
		pl.store.SetCurrentIndex(-1)
		pl.store.SetCurrentTrack(nil)
	}

	pl.store.SetPlayMode(NamedPlayMode(pl.gateway.PlayMode()))

	volume := pl.gateway.Volume()
	pl.store.SetVolume(volume)
	pl.engine.SetVolume(volume)

	pl.store.Broadcast()
	pl.Emit(StateEvent{})
	return nil
}

// RunTimeSync periodically publishes the playback position as TimeEvents
// until the context is canceled. The poll is the only recurring background
// activity of the player.
func (pl *Player) RunTimeSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			status := pl.Status()
			pl.Emit(TimeEvent{
				Position: status.Position,
				Duration: status.Duration,
				Playing:  status.Playing,
			})
		case <-ctx.Done():
			return
		}
	}
}

// PreferredQuality returns the persisted stream quality preference.
func (pl *Player) PreferredQuality() settings.Quality {
	return pl.gateway.PreferredQuality()
}

// SetPreferredQuality persists the stream quality preference. It takes
// effect from the next track on, the active stream is not reloaded.
func (pl *Player) SetPreferredQuality(quality settings.Quality) {
	pl.gateway.SetPreferredQuality(quality)
}

// Close tears the audio engine down. Safe to call multiple times.
func (pl *Player) Close() {
	pl.engine.Cleanup()
}

// notifyState pushes the current state to store subscribers and event
// listeners.
func (pl *Player) notifyState() {
	pl.store.Broadcast()
	pl.Emit(StateEvent{})
}

// superseded reports whether a newer playback has started since seq.
func (pl *Player) superseded(seq uint64) bool {
	pl.lock.Lock()
	defer pl.lock.Unlock()
	return pl.playSeq != seq
}

// persistQueue snapshots the queue of the active source through the
// debounced gateway.
func (pl *Player) persistQueue() {
	state := pl.store.State()
	pl.gateway.SaveQueueSnapshot(state.SourceID, state.Playlist, state.CurrentIndex)
}
