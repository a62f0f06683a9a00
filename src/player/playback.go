package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
)

// playTrack makes the specified playlist entry the current track and hands
// it to the audio engine. The store mutation is visible to subscribers
// before the URL resolution starts; a resolution that completes after a
// newer playback superseded it is discarded.
func (pl *Player) playTrack(ctx context.Context, track library.Track, index int) error {
	pl.lock.Lock()
	pl.playSeq++
	seq := pl.playSeq
	pl.loading = true
	pl.lastErr = ""
	pl.lock.Unlock()

	current := track
	pl.store.SetCurrentTrack(&current)
	pl.store.SetCurrentIndex(index)
	pl.store.SetLyric(nil)
	pl.notifyState()

	// The engine and the lyric fetch outlive the originating request.
	playCtx := context.WithoutCancel(ctx)

	url, err := pl.urls.ResolveURL(ctx, track.Mid, pl.gateway.PreferredQuality())
	if pl.superseded(seq) {
		return nil
	}
	if err != nil {
		// A resolution failure leaves the queue position unchanged and
		// playback does not start.
		pl.failPlayback(fmt.Sprintf("no playable URL for %q", track.Name))
		return fmt.Errorf("resolve playback url for %q: %w", track.Mid, err)
	}

	err = pl.engine.LoadAndPlay(playCtx, url)
	if pl.superseded(seq) {
		return nil
	}
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			pl.setNotLoading()
			pl.handleEngineError(perr)
			return err
		}
		pl.failPlayback(fmt.Sprintf("could not play %q", track.Name))
		return err
	}

	pl.setNotLoading()
	pl.notifyState()

	if pl.lyrics != nil {
		go pl.fetchLyric(playCtx, seq, track)
	}
	return nil
}

// fetchLyric resolves the lyric asynchronously. Lyric failures never affect
// playback.
func (pl *Player) fetchLyric(ctx context.Context, seq uint64, track library.Track) {
	lyric, err := pl.lyrics.ResolveLyric(ctx, track.Mid, track.Name, track.Artist)
	if err != nil {
		log.WithField("mid", track.Mid).Debugf("Could not resolve lyric: %v", err)
		return
	}
	if lyric == nil || pl.superseded(seq) {
		return
	}
	pl.store.SetLyric(lyric)
	pl.notifyState()
}

func (pl *Player) setNotLoading() {
	pl.lock.Lock()
	pl.loading = false
	pl.lock.Unlock()
}

func (pl *Player) failPlayback(message string) {
	pl.lock.Lock()
	pl.loading = false
	pl.lastErr = message
	pl.lock.Unlock()
	pl.notifyState()
	pl.Emit(ErrorEvent{Message: message})
}

// TogglePlay pauses running playback or resumes paused playback. When the
// engine is idle but a current track is set, for example right after a
// session restore, the current track is started from the beginning.
func (pl *Player) TogglePlay(ctx context.Context) error {
	if pl.engine.Playing() {
		pl.engine.Pause()
		pl.notifyState()
		return nil
	}

	state := pl.store.State()
	if pl.engine.Duration() == 0 && pl.engine.Position() == 0 && state.CurrentTrack != nil {
		return pl.playTrack(ctx, *state.CurrentTrack, state.CurrentIndex)
	}

	if err := pl.engine.Resume(); err != nil {
		return err
	}
	pl.notifyState()
	return nil
}

// Seek moves the playback position, clamped to the track bounds.
func (pl *Player) Seek(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	if max := pl.engine.Duration(); max > 0 && d > max {
		d = max
	}
	return pl.engine.Seek(d)
}

// Stop halts playback and deactivates the current track. The playlist is
// kept.
func (pl *Player) Stop() {
	pl.engine.Stop()
	pl.lock.Lock()
	pl.loading = false
	pl.lastErr = ""
	pl.lock.Unlock()
	pl.store.SetCurrentTrack(nil)
	pl.store.SetCurrentIndex(-1)
	pl.store.SetLyric(nil)
	pl.notifyState()
}

// SetVolume applies a volume in [0, 1] to the engine, the state and the
// persisted settings.
func (pl *Player) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	pl.engine.SetVolume(volume)
	pl.store.SetVolume(volume)
	pl.gateway.SetVolume(volume)
	pl.notifyState()
}

// SetPlayMode switches the play mode. Leaving shuffle discards the shuffle
// session; it is rebuilt lazily when shuffle is entered again.
func (pl *Player) SetPlayMode(mode PlayMode) {
	pl.store.SetPlayMode(mode)
	pl.gateway.SetPlayMode(string(mode))
	if mode != PlayModeShuffle {
		pl.lock.Lock()
		pl.shuffle.reset()
		pl.lock.Unlock()
	}
	pl.notifyState()
}

// CyclePlayMode rotates order → single → shuffle and returns the new mode.
func (pl *Player) CyclePlayMode() PlayMode {
	mode := pl.store.State().PlayMode.Cycle()
	pl.SetPlayMode(mode)
	return mode
}

// ClearQueue stops playback, empties the playlist and deletes the persisted
// snapshot for the active source.
func (pl *Player) ClearQueue() {
	pl.engine.Stop()
	pl.lock.Lock()
	pl.shuffle.reset()
	pl.loading = false
	pl.lastErr = ""
	pl.lock.Unlock()

	state := pl.store.State()
	pl.store.SetPlaylist(nil)
	pl.store.SetCurrentIndex(-1)
	pl.store.SetCurrentTrack(nil)
	pl.store.SetLyric(nil)
	pl.gateway.ClearQueueSnapshot(state.SourceID)
	pl.notifyState()
}

// Reset restores the all-empty defaults, used on logout. Unlike ClearQueue
// the persisted snapshots are left alone.
func (pl *Player) Reset() {
	pl.engine.Stop()
	pl.lock.Lock()
	pl.shuffle.reset()
	pl.loading = false
	pl.lastErr = ""
	pl.lock.Unlock()
	pl.store.Reset()
	pl.notifyState()
}
