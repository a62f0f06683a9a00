package player

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
)

// PlayMode determines how the next and previous track are chosen.
type PlayMode string

const (
	// Sequential playlist order.
	PlayModeOrder PlayMode = "order"
	// Repeat the current track.
	PlayModeSingle PlayMode = "single"
	// Randomized traversal that visits every track once per cycle.
	PlayModeShuffle PlayMode = "shuffle"
)

// NamedPlayMode maps a string to a PlayMode, falling back to PlayModeOrder
// for unknown values.
func NamedPlayMode(str string) PlayMode {
	switch m := PlayMode(str); m {
	case PlayModeOrder, PlayModeSingle, PlayModeShuffle:
		return m
	default:
		return PlayModeOrder
	}
}

// Cycle returns the next mode in the order → single → shuffle rotation.
func (m PlayMode) Cycle() PlayMode {
	switch m {
	case PlayModeOrder:
		return PlayModeSingle
	case PlayModeSingle:
		return PlayModeShuffle
	default:
		return PlayModeOrder
	}
}

// State is the single shared playback state record.
//
// Invariant: whenever CurrentIndex != -1, Playlist[CurrentIndex] is the track
// most recently handed to the audio engine, or about to be. An emptied
// playlist always comes with CurrentIndex -1 and a nil CurrentTrack.
type State struct {
	CurrentTrack *library.Track
	Playlist     []library.Track
	CurrentIndex int
	PlayMode     PlayMode
	Volume       float64
	Lyric        *library.Lyric
	SourceID     string
}

// Store is the single source of truth for the playback state. Mutations go
// through the setters; Broadcast notifies subscribers after a batch of
// related mutations has been applied so no intermediate state is observable.
type Store struct {
	lock  sync.RWMutex
	state State

	subLock     sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

func NewStore() *Store {
	return &Store{
		state:       defaultState(),
		subscribers: map[int]func(){},
	}
}

func defaultState() State {
	return State{
		CurrentIndex: -1,
		PlayMode:     PlayModeOrder,
		Volume:       1,
	}
}

// State returns a snapshot. The contained playlist is a copy and may be
// retained by the caller.
func (s *Store) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	state := s.state
	state.Playlist = append([]library.Track(nil), s.state.Playlist...)
	return state
}

func (s *Store) SetCurrentTrack(track *library.Track) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.CurrentTrack = track
}

func (s *Store) SetPlaylist(playlist []library.Track) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Playlist = append([]library.Track(nil), playlist...)
}

// SetCurrentIndex updates the cursor. Callers validate bounds beforehand,
// the store does not.
func (s *Store) SetCurrentIndex(index int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.CurrentIndex = index
}

func (s *Store) SetPlayMode(mode PlayMode) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.PlayMode = mode
}

func (s *Store) SetVolume(volume float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Volume = volume
}

func (s *Store) SetLyric(lyric *library.Lyric) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Lyric = lyric
}

func (s *Store) SetSourceID(sourceID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.SourceID = sourceID
}

// Reset restores the all-empty defaults in one transaction.
func (s *Store) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = defaultState()
}

// Subscribe registers a callback invoked on every Broadcast. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.subLock.Lock()
	defer s.subLock.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.subLock.Lock()
		defer s.subLock.Unlock()
		delete(s.subscribers, id)
	}
}

// Broadcast invokes all subscribers synchronously. A panicking subscriber is
// logged and skipped so it cannot block the others.
func (s *Store) Broadcast() {
	s.subLock.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subLock.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warnf("Player state subscriber panicked: %v", r)
				}
			}()
			fn()
		}()
	}
}
