package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"melodeck/src/library"
)

// ErrRemoveNotAllowed is returned when a removal targets the active track or
// a track that already played.
var ErrRemoveNotAllowed = errors.New("only tracks after the current one can be removed")

// PlayNow inserts the track immediately after the current position and
// starts playing it. Everything at or before the current index is kept,
// everything after it stays queued behind the inserted track. Another
// occurrence of the same track elsewhere in the queue is removed.
func (pl *Player) PlayNow(ctx context.Context, track library.Track) error {
	state := pl.store.State()

	if state.CurrentTrack == nil || state.CurrentIndex < 0 {
		pl.applyPlaylist(&state, []library.Track{track}, 0)
		pl.persistQueue()
		return pl.playTrack(ctx, track, 0)
	}

	if state.CurrentTrack.Mid == track.Mid {
		// Already the active track, replay it instead of duplicating it.
		return pl.playTrack(ctx, track, state.CurrentIndex)
	}

	var past, future []library.Track
	for idx, t := range state.Playlist {
		if t.Mid == track.Mid && idx != state.CurrentIndex {
			continue
		}
		if idx <= state.CurrentIndex {
			past = append(past, t)
		} else {
			future = append(future, t)
		}
	}

	playlist := make([]library.Track, 0, len(past)+1+len(future))
	playlist = append(playlist, past...)
	playlist = append(playlist, track)
	playlist = append(playlist, future...)
	index := len(past)

	pl.applyPlaylist(&state, playlist, index)
	pl.persistQueue()
	return pl.playTrack(ctx, track, index)
}

// PlayPlaylist inserts the batch after the current position and starts
// playback at the startIndex'th track of the batch. Tracks already present
// elsewhere in the queue are dropped from the incoming batch, not from the
// existing queue. When nothing new remains the player jumps to the existing
// occurrence of the selected track if there is one.
func (pl *Player) PlayPlaylist(ctx context.Context, tracks []library.Track, startIndex int) error {
	if len(tracks) == 0 {
		return nil
	}

	state := pl.store.State()

	if state.CurrentTrack == nil || state.CurrentIndex < 0 {
		batch := lo.UniqBy(tracks, func(t library.Track) string { return t.Mid })
		startIndex = clampIndex(startIndex, len(batch))
		pl.applyPlaylist(&state, batch, startIndex)
		pl.persistQueue()
		return pl.playTrack(ctx, batch[startIndex], startIndex)
	}

	seen := map[string]struct{}{state.Playlist[state.CurrentIndex].Mid: {}}
	cleaned := make([]library.Track, 0, len(state.Playlist))
	for idx, t := range state.Playlist {
		if idx != state.CurrentIndex {
			if _, ok := seen[t.Mid]; ok {
				continue
			}
			seen[t.Mid] = struct{}{}
		}
		cleaned = append(cleaned, t)
	}

	batch := make([]library.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.Mid]; ok {
			continue
		}
		seen[t.Mid] = struct{}{}
		batch = append(batch, t)
	}

	if len(batch) == 0 {
		// The whole batch is already queued. Jump to the selected track.
		target := tracks[clampIndex(startIndex, len(tracks))]
		_, index, found := lo.FindIndexOf(cleaned, func(t library.Track) bool { return t.Mid == target.Mid })
		if !found {
			return nil
		}
		pl.applyPlaylist(&state, cleaned, index)
		pl.persistQueue()
		return pl.playTrack(ctx, cleaned[index], index)
	}

	past := cleaned[:currentPosition(cleaned, state.Playlist[state.CurrentIndex].Mid)+1]
	future := cleaned[len(past):]
	startIndex = clampIndex(startIndex, len(batch))

	playlist := make([]library.Track, 0, len(cleaned)+len(batch))
	playlist = append(playlist, past...)
	playlist = append(playlist, batch...)
	playlist = append(playlist, future...)
	index := len(past) + startIndex

	pl.applyPlaylist(&state, playlist, index)
	pl.persistQueue()
	return pl.playTrack(ctx, playlist[index], index)
}

// AddToQueue appends tracks not yet in the queue to its end. When nothing
// was playing, playback starts at the first track of the queue.
func (pl *Player) AddToQueue(ctx context.Context, tracks []library.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	state := pl.store.State()

	existing := map[string]struct{}{}
	for _, t := range state.Playlist {
		existing[t.Mid] = struct{}{}
	}
	batch := lo.Filter(lo.UniqBy(tracks, func(t library.Track) string { return t.Mid }), func(t library.Track, _ int) bool {
		_, ok := existing[t.Mid]
		return !ok
	})
	if len(batch) == 0 {
		return nil
	}

	playlist := append(append([]library.Track(nil), state.Playlist...), batch...)
	pl.store.SetPlaylist(playlist)

	if state.PlayMode == PlayModeShuffle {
		indices := make([]int, len(batch))
		for i := range batch {
			indices[i] = len(state.Playlist) + i
		}
		pl.lock.Lock()
		pl.shuffle.handleAdd(indices)
		pl.lock.Unlock()
	}
	pl.persistQueue()

	if state.CurrentTrack == nil || state.CurrentIndex < 0 {
		// The session indices registered above already refer to the appended
		// playlist.
		state.Playlist = playlist
		pl.applyPlaylist(&state, playlist, 0)
		pl.persistQueue()
		return pl.playTrack(ctx, playlist[0], 0)
	}

	pl.notifyState()
	return nil
}

// RemoveFromQueue deletes the track at the specified index. Only future
// tracks may be removed, the active and past ones are kept.
func (pl *Player) RemoveFromQueue(index int) error {
	state := pl.store.State()

	if index <= state.CurrentIndex || index < 0 || index >= len(state.Playlist) {
		return fmt.Errorf("%w: index %d, current %d", ErrRemoveNotAllowed, index, state.CurrentIndex)
	}

	playlist := append([]library.Track(nil), state.Playlist[:index]...)
	playlist = append(playlist, state.Playlist[index+1:]...)

	if state.PlayMode == PlayModeShuffle {
		pl.lock.Lock()
		pl.shuffle.handleRemove(index)
		pl.shuffle.sync(state.CurrentIndex, len(playlist))
		pl.lock.Unlock()
	}

	pl.store.SetPlaylist(playlist)
	pl.persistQueue()
	pl.notifyState()
	return nil
}

// applyPlaylist installs a new playlist and cursor in one logical
// transaction and realigns the shuffle session. Session indices still refer
// to the outgoing playlist, so they are translated by looking each track up
// in the new one before the usual sync.
func (pl *Player) applyPlaylist(state *State, playlist []library.Track, index int) {
	if state.PlayMode == PlayModeShuffle {
		old := state.Playlist
		position := make(map[string]int, len(playlist))
		for i, t := range playlist {
			position[t.Mid] = i
		}
		pl.lock.Lock()
		pl.shuffle.remap(func(i int) (int, bool) {
			if i < 0 || i >= len(old) {
				return 0, false
			}
			n, ok := position[old[i].Mid]
			return n, ok
		})
		pl.shuffle.sync(index, len(playlist))
		pl.lock.Unlock()
	}
	pl.store.SetPlaylist(playlist)
	pl.store.SetCurrentIndex(index)
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index > length-1 {
		return length - 1
	}
	return index
}

func currentPosition(tracks []library.Track, mid string) int {
	for i, t := range tracks {
		if t.Mid == mid {
			return i
		}
	}
	return -1
}
