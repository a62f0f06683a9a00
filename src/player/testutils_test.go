package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"melodeck/src/library"
	"melodeck/src/settings"
)

// fakeEngine is an AudioEngine double that records loads and lets tests fire
// completion and error callbacks.
type fakeEngine struct {
	lock     sync.Mutex
	playing  bool
	loaded   string
	loads    []string
	position time.Duration
	duration time.Duration
	volume   float64
	loadErr  error
	onEnded  func()
	onError  func(err *Error)
}

func (e *fakeEngine) LoadAndPlay(ctx context.Context, url string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.loads = append(e.loads, url)
	if e.loadErr != nil {
		return e.loadErr
	}
	e.loaded = url
	e.playing = true
	e.position = 0
	return nil
}

func (e *fakeEngine) Pause() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.playing = false
}

func (e *fakeEngine) Resume() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.loaded == "" {
		return fmt.Errorf("no source loaded")
	}
	e.playing = true
	return nil
}

func (e *fakeEngine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.playing = false
	e.loaded = ""
	e.position = 0
	e.duration = 0
}

func (e *fakeEngine) Seek(d time.Duration) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.position = d
	return nil
}

func (e *fakeEngine) SetVolume(v float64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.volume = v
}

func (e *fakeEngine) Volume() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.volume
}

func (e *fakeEngine) Playing() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.playing
}

func (e *fakeEngine) Position() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.position
}

func (e *fakeEngine) Duration() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.duration
}

func (e *fakeEngine) OnEnded(fn func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.onEnded = fn
}

func (e *fakeEngine) OnError(fn func(err *Error)) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.onError = fn
}

func (e *fakeEngine) Cleanup() {
	e.Stop()
	e.lock.Lock()
	defer e.lock.Unlock()
	e.onEnded = nil
	e.onError = nil
}

func (e *fakeEngine) fireEnded() {
	e.lock.Lock()
	e.playing = false
	fn := e.onEnded
	e.lock.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *fakeEngine) fireError(kind ErrorKind) {
	e.lock.Lock()
	e.playing = false
	fn := e.onError
	e.lock.Unlock()
	if fn != nil {
		fn(&Error{Kind: kind})
	}
}

func (e *fakeEngine) loadCount() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.loads)
}

// fakeResolver maps mids to URLs and fails for mids it does not know.
type fakeResolver struct {
	lock sync.Mutex
	fail map[string]bool
}

func (r *fakeResolver) ResolveURL(ctx context.Context, mid string, quality settings.Quality) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.fail[mid] {
		return "", fmt.Errorf("no stream for %q", mid)
	}
	return "https://media.example.com/" + mid, nil
}

type memSettingsStore struct {
	lock  sync.Mutex
	saved *settings.Settings
}

func (m *memSettingsStore) Load(ctx context.Context) (*settings.Settings, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.saved == nil {
		return &settings.Settings{}, nil
	}
	return m.saved.Clone(), nil
}

func (m *memSettingsStore) Save(ctx context.Context, s *settings.Settings) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.saved = s.Clone()
	return nil
}

func newTestPlayer() (*Player, *fakeEngine) {
	engine := &fakeEngine{volume: 1}
	gateway := settings.NewGateway(&memSettingsStore{}, time.Millisecond)
	pl := New(engine, gateway, &fakeResolver{}, nil)
	pl.store.SetSourceID("test")
	return pl, engine
}

func tracks(mids ...string) []library.Track {
	out := make([]library.Track, len(mids))
	for i, mid := range mids {
		out[i] = library.Track{
			Mid:      mid,
			Name:     "Track " + mid,
			Artist:   "Artist",
			Duration: 3 * time.Minute,
		}
	}
	return out
}

func queueMids(pl *Player) []string {
	state := pl.store.State()
	mids := make([]string, len(state.Playlist))
	for i, t := range state.Playlist {
		mids[i] = t.Mid
	}
	return mids
}
