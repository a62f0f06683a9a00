package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"melodeck/src/player"
	"melodeck/src/settings"
)

type nullEngine struct {
	lock    sync.Mutex
	playing bool
	loaded  bool
	volume  float64
}

func (e *nullEngine) LoadAndPlay(ctx context.Context, url string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.loaded = true
	e.playing = true
	return nil
}

func (e *nullEngine) Pause() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.playing = false
}

func (e *nullEngine) Resume() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.playing = true
	return nil
}

func (e *nullEngine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.playing = false
	e.loaded = false
}

func (e *nullEngine) Seek(d time.Duration) error { return nil }

func (e *nullEngine) SetVolume(v float64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.volume = v
}

func (e *nullEngine) Volume() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.volume
}

func (e *nullEngine) Playing() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.playing
}

func (e *nullEngine) Position() time.Duration        { return 0 }
func (e *nullEngine) Duration() time.Duration        { return 0 }
func (e *nullEngine) OnEnded(fn func())              {}
func (e *nullEngine) OnError(fn func(*player.Error)) {}
func (e *nullEngine) Cleanup()                       {}

type staticResolver struct{}

func (staticResolver) ResolveURL(ctx context.Context, mid string, quality settings.Quality) (string, error) {
	return "https://media.example.com/" + mid, nil
}

type nullSettingsStore struct{}

func (nullSettingsStore) Load(ctx context.Context) (*settings.Settings, error) {
	return &settings.Settings{}, nil
}

func (nullSettingsStore) Save(ctx context.Context, s *settings.Settings) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *player.Player) {
	t.Helper()
	gateway := settings.NewGateway(nullSettingsStore{}, time.Millisecond)
	pl := player.New(&nullEngine{volume: 1}, gateway, staticResolver{}, nil)
	t.Cleanup(pl.Close)

	r := chi.NewRouter()
	InitRouter(r, pl)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, pl
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	res, err := http.Get(server.URL + "/player/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var body struct {
		CurrentIndex int     `json:"currentIndex"`
		PlayMode     string  `json:"playMode"`
		Volume       float64 `json:"volume"`
		Playing      bool    `json:"playing"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.CurrentIndex != -1 || body.PlayMode != "order" || body.Volume != 1 || body.Playing {
		t.Fatalf("unexpected initial status: %+v", body)
	}
}

func TestQueueAddAndStatus(t *testing.T) {
	server, pl := newTestServer(t)

	body := `{"tracks": [{"mid": "a", "name": "A"}, {"mid": "b", "name": "B"}]}`
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/player/queue/", strings.NewReader(body))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	state := pl.Store().State()
	if len(state.Playlist) != 2 || state.CurrentIndex != 0 {
		t.Fatalf("queue = %+v, want 2 tracks playing the first", state)
	}
}

func TestQueueRemoveRejectsCurrent(t *testing.T) {
	server, pl := newTestServer(t)

	body := `{"tracks": [{"mid": "a"}, {"mid": "b"}]}`
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/player/queue/", strings.NewReader(body))
	if res, err := http.DefaultClient.Do(req); err != nil {
		t.Fatal(err)
	} else {
		res.Body.Close()
	}

	req, _ = http.NewRequest(http.MethodDelete, server.URL+"/player/queue/?index=0", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("removing the active track returned %d, want 400", res.StatusCode)
	}
	if len(pl.Store().State().Playlist) != 2 {
		t.Fatalf("queue mutated by a rejected removal")
	}
}

func TestSetVolumeEndpoint(t *testing.T) {
	server, pl := newTestServer(t)

	res, err := http.Post(server.URL+"/player/volume", "application/json", strings.NewReader(`{"volume": 0.5}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	if got := pl.Store().State().Volume; got != 0.5 {
		t.Fatalf("volume = %v, want 0.5", got)
	}
}

func TestCycleModeEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	res, err := http.Post(server.URL+"/player/mode", "application/json", strings.NewReader(`{"cycle": true}`))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "single" {
		t.Fatalf("mode = %q, want single", body.Mode)
	}
}
