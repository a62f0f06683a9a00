package player

import (
	"testing"

	"melodeck/src/library"
)

func TestStoreDefaults(t *testing.T) {
	store := NewStore()
	state := store.State()
	if state.CurrentIndex != -1 || state.PlayMode != PlayModeOrder || state.Volume != 1 {
		t.Fatalf("unexpected defaults: %+v", state)
	}
	if state.CurrentTrack != nil || len(state.Playlist) != 0 {
		t.Fatalf("default state is not empty: %+v", state)
	}
}

func TestStoreResetRestoresDefaults(t *testing.T) {
	store := NewStore()
	track := library.Track{Mid: "a"}
	store.SetPlaylist([]library.Track{track})
	store.SetCurrentIndex(0)
	store.SetCurrentTrack(&track)
	store.SetPlayMode(PlayModeShuffle)
	store.SetVolume(0.3)

	store.Reset()

	state := store.State()
	if state.CurrentIndex != -1 || state.CurrentTrack != nil || len(state.Playlist) != 0 {
		t.Fatalf("reset did not empty the state: %+v", state)
	}
	if state.PlayMode != PlayModeOrder || state.Volume != 1 {
		t.Fatalf("reset did not restore defaults: %+v", state)
	}
}

func TestStoreSnapshotIsDetached(t *testing.T) {
	store := NewStore()
	store.SetPlaylist([]library.Track{{Mid: "a"}})

	state := store.State()
	state.Playlist[0].Mid = "mutated"

	if got := store.State().Playlist[0].Mid; got != "a" {
		t.Fatalf("snapshot mutation leaked into the store: %q", got)
	}
}

func TestBroadcastSurvivesPanickingSubscriber(t *testing.T) {
	store := NewStore()

	called := 0
	store.Subscribe(func() { panic("boom") })
	unsubscribe := store.Subscribe(func() { called++ })

	store.Broadcast()
	if called != 1 {
		t.Fatalf("healthy subscriber ran %d times, want 1", called)
	}

	unsubscribe()
	store.Broadcast()
	if called != 1 {
		t.Fatalf("unsubscribed callback still invoked")
	}
}

func TestPlayModeCycle(t *testing.T) {
	mode := PlayModeOrder
	want := []PlayMode{PlayModeSingle, PlayModeShuffle, PlayModeOrder}
	for _, w := range want {
		mode = mode.Cycle()
		if mode != w {
			t.Fatalf("cycle = %q, want %q", mode, w)
		}
	}
}

func TestNamedPlayMode(t *testing.T) {
	if got := NamedPlayMode("shuffle"); got != PlayModeShuffle {
		t.Fatalf("NamedPlayMode(shuffle) = %q", got)
	}
	if got := NamedPlayMode("bogus"); got != PlayModeOrder {
		t.Fatalf("NamedPlayMode(bogus) = %q, want order fallback", got)
	}
}
