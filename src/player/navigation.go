package player

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
)

// Next advances playback. Single mode replays the current track, shuffle
// follows the non-repeating shuffle cycle and order mode walks the queue
// sequentially, asking the backfill callback for more tracks when it runs
// off the end.
func (pl *Player) Next(ctx context.Context) error {
	state := pl.store.State()
	if state.CurrentTrack == nil || len(state.Playlist) == 0 {
		return nil
	}

	switch state.PlayMode {
	case PlayModeSingle:
		return pl.playTrack(ctx, *state.CurrentTrack, state.CurrentIndex)

	case PlayModeShuffle:
		pl.lock.Lock()
		index, ok := pl.shuffle.next(state.CurrentIndex, len(state.Playlist))
		pl.lock.Unlock()
		if !ok {
			return nil
		}
		if err := pl.playTrack(ctx, state.Playlist[index], index); err != nil {
			return err
		}
		pl.persistQueue()
		return nil

	default:
		return pl.orderNext(ctx, state)
	}
}

func (pl *Player) orderNext(ctx context.Context, state State) error {
	next := state.CurrentIndex + 1
	if next < len(state.Playlist) {
		if err := pl.playTrack(ctx, state.Playlist[next], next); err != nil {
			return err
		}
		pl.persistQueue()
		return nil
	}

	pl.lock.Lock()
	needMore := pl.needMore
	pl.lock.Unlock()
	if needMore == nil {
		return nil
	}

	more, err := needMore(ctx)
	if err != nil {
		log.Warnf("Could not backfill the queue: %v", err)
		return nil
	}

	existing := map[string]struct{}{}
	for _, t := range state.Playlist {
		existing[t.Mid] = struct{}{}
	}
	playlist := append([]library.Track(nil), state.Playlist...)
	for _, t := range more {
		if _, ok := existing[t.Mid]; ok {
			continue
		}
		existing[t.Mid] = struct{}{}
		playlist = append(playlist, t)
	}
	if next >= len(playlist) {
		return nil
	}

	pl.store.SetPlaylist(playlist)
	if err := pl.playTrack(ctx, playlist[next], next); err != nil {
		return err
	}
	pl.persistQueue()
	return nil
}

// Prev steps playback back. Single mode replays the current track, shuffle
// walks the visit history and order mode steps to the preceding index. A
// no-op when there is nothing to step back to.
func (pl *Player) Prev(ctx context.Context) error {
	state := pl.store.State()
	if state.CurrentTrack == nil || len(state.Playlist) == 0 {
		return nil
	}

	switch state.PlayMode {
	case PlayModeSingle:
		return pl.playTrack(ctx, *state.CurrentTrack, state.CurrentIndex)

	case PlayModeShuffle:
		pl.lock.Lock()
		index, ok := pl.shuffle.prev(state.CurrentIndex)
		pl.lock.Unlock()
		if !ok || index < 0 || index >= len(state.Playlist) {
			return nil
		}
		if err := pl.playTrack(ctx, state.Playlist[index], index); err != nil {
			return err
		}
		pl.persistQueue()
		return nil

	default:
		prev := state.CurrentIndex - 1
		if prev < 0 {
			return nil
		}
		if err := pl.playTrack(ctx, state.Playlist[prev], prev); err != nil {
			return err
		}
		pl.persistQueue()
		return nil
	}
}

// PlayAtIndex starts playback of the specified queue entry. In shuffle mode
// the jump is recorded in the shuffle session so the target does not replay
// within the running cycle.
func (pl *Player) PlayAtIndex(ctx context.Context, index int) error {
	state := pl.store.State()
	if index < 0 || index >= len(state.Playlist) {
		return fmt.Errorf("play index %d out of range, queue holds %d tracks", index, len(state.Playlist))
	}

	if state.PlayMode == PlayModeShuffle {
		pl.lock.Lock()
		pl.shuffle.jumpTo(state.CurrentIndex, index, len(state.Playlist))
		pl.lock.Unlock()
	}

	if err := pl.playTrack(ctx, state.Playlist[index], index); err != nil {
		return err
	}
	pl.persistQueue()
	return nil
}

// shouldAutoContinue reports whether playback proceeds to another track
// after the current one finished. A single-track queue in order mode plays
// out and stays put.
func shouldAutoContinue(state State) bool {
	switch state.PlayMode {
	case PlayModeSingle, PlayModeShuffle:
		return len(state.Playlist) > 0
	default:
		return len(state.Playlist) > 1
	}
}

// handleEnded is the engine completion handler.
func (pl *Player) handleEnded() {
	state := pl.store.State()
	if !shouldAutoContinue(state) {
		pl.notifyState()
		return
	}
	if err := pl.Next(context.Background()); err != nil {
		log.Warnf("Could not advance after track end: %v", err)
	}
}

// handleEngineError is the engine failure handler. Faults attributable to
// the track itself skip to the next one, systemic faults halt playback and
// surface to presentation code.
func (pl *Player) handleEngineError(perr *Error) {
	log.WithField("kind", perr.Kind.Name()).Warnf("Playback failed: %v", perr)

	if !perr.Kind.AutoSkip() {
		pl.failPlayback(perr.Kind.Name())
		return
	}

	pl.setNotLoading()
	state := pl.store.State()
	if !shouldAutoContinue(state) {
		pl.failPlayback(perr.Kind.Name())
		return
	}

	pl.Emit(ErrorEvent{Message: perr.Kind.Name()})
	if err := pl.Next(context.Background()); err != nil {
		log.Warnf("Could not skip past failed track: %v", err)
	}
}
