package player

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestPlayNowOnEmptyQueue(t *testing.T) {
	pl, engine := newTestPlayer()
	defer pl.Close()

	if err := pl.PlayNow(context.Background(), tracks("a")[0]); err != nil {
		t.Fatal(err)
	}

	state := pl.store.State()
	if state.CurrentIndex != 0 || state.CurrentTrack == nil || state.CurrentTrack.Mid != "a" {
		t.Fatalf("unexpected state after PlayNow: index %d, track %v", state.CurrentIndex, state.CurrentTrack)
	}
	if !engine.Playing() {
		t.Fatalf("engine is not playing")
	}
}

func TestPlayNowInsertsAfterCurrent(t *testing.T) {
	pl, _ := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b", "c"), 1); err != nil {
		t.Fatal(err)
	}
	if err := pl.PlayNow(ctx, tracks("x")[0]); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "b", "x", "c"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	if state := pl.store.State(); state.CurrentIndex != 2 {
		t.Fatalf("current index = %d, want 2", state.CurrentIndex)
	}
}

func TestPlayNowDeduplicatesExistingOccurrence(t *testing.T) {
	pl, _ := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b", "c"), 0); err != nil {
		t.Fatal(err)
	}
	if err := pl.PlayNow(ctx, tracks("c")[0]); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "c", "b"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
}

func TestPlayNowCurrentTrackReplaysWithoutDuplicating(t *testing.T) {
	pl, engine := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b"), 0); err != nil {
		t.Fatal(err)
	}
	if err := pl.PlayNow(ctx, tracks("a")[0]); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "b"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	if engine.loadCount() != 2 {
		t.Fatalf("engine loads = %d, want 2", engine.loadCount())
	}
}

func TestPlayPlaylistInsertsBatchAfterCurrent(t *testing.T) {
	pl, _ := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b"), 0); err != nil {
		t.Fatal(err)
	}
	if err := pl.PlayPlaylist(ctx, tracks("x", "y"), 1); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "x", "y", "b"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	state := pl.store.State()
	if state.CurrentIndex != 2 || state.CurrentTrack.Mid != "y" {
		t.Fatalf("current = %d/%v, want 2/y", state.CurrentIndex, state.CurrentTrack)
	}
}

func TestPlayPlaylistFullyQueuedBatchJumpsToExisting(t *testing.T) {
	pl, engine := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b", "c"), 0); err != nil {
		t.Fatal(err)
	}
	if err := pl.PlayPlaylist(ctx, tracks("b", "c"), 1); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "b", "c"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	state := pl.store.State()
	if state.CurrentTrack.Mid != "c" {
		t.Fatalf("current track = %v, want c", state.CurrentTrack)
	}
	if engine.loadCount() != 2 {
		t.Fatalf("engine loads = %d, want 2", engine.loadCount())
	}
}

func TestAddToQueueAppendsWithoutInterrupting(t *testing.T) {
	pl, engine := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b"), 0); err != nil {
		t.Fatal(err)
	}
	if err := pl.AddToQueue(ctx, tracks("c", "b", "d")); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "b", "c", "d"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	if engine.loadCount() != 1 {
		t.Fatalf("engine loads = %d, want 1", engine.loadCount())
	}
}

func TestAddToQueueStartsPlaybackWhenIdle(t *testing.T) {
	pl, engine := newTestPlayer()
	defer pl.Close()

	if err := pl.AddToQueue(context.Background(), tracks("a", "b")); err != nil {
		t.Fatal(err)
	}

	state := pl.store.State()
	if state.CurrentIndex != 0 || state.CurrentTrack.Mid != "a" {
		t.Fatalf("current = %d/%v, want 0/a", state.CurrentIndex, state.CurrentTrack)
	}
	if !engine.Playing() {
		t.Fatalf("engine is not playing")
	}
}

func TestRemoveFromQueue(t *testing.T) {
	pl, _ := newTestPlayer()
	defer pl.Close()
	ctx := context.Background()

	if err := pl.PlayPlaylist(ctx, tracks("a", "b", "c"), 1); err != nil {
		t.Fatal(err)
	}

	if err := pl.RemoveFromQueue(2); err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b"}
	if got := queueMids(pl); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}

	for _, index := range []int{0, 1, 5, -1} {
		if err := pl.RemoveFromQueue(index); !errors.Is(err, ErrRemoveNotAllowed) {
			t.Fatalf("RemoveFromQueue(%d) = %v, want ErrRemoveNotAllowed", index, err)
		}
	}
}

func TestClearQueue(t *testing.T) {
	pl, engine := newTestPlayer()
	defer pl.Close()

	if err := pl.PlayPlaylist(context.Background(), tracks("a", "b"), 0); err != nil {
		t.Fatal(err)
	}
	pl.ClearQueue()

	state := pl.store.State()
	if len(state.Playlist) != 0 || state.CurrentIndex != -1 || state.CurrentTrack != nil {
		t.Fatalf("queue not cleared: %+v", state)
	}
	if engine.Playing() {
		t.Fatalf("engine still playing after clear")
	}
}
