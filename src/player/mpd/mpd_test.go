package mpd

import (
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"melodeck/src/player"
)

func TestClassifyMessage(t *testing.T) {
	testcases := []struct {
		message string
		want    player.ErrorKind
	}{
		{"No decoder plugin available for audio/aac", player.ErrorUnsupported},
		{"unknown uri scheme", player.ErrorUnsupported},
		{"Failed to decode ogg stream", player.ErrorDecode},
		{"corrupt frame header", player.ErrorDecode},
		{"Connection refused", player.ErrorNetwork},
		{"timeout while fetching", player.ErrorNetwork},
	}
	for _, testcase := range testcases {
		if got := classifyMessage(testcase.message); got != testcase.want {
			t.Errorf("classifyMessage(%q) = %v, want %v", testcase.message, got, testcase.want)
		}
	}
}

func TestSecondsAttr(t *testing.T) {
	status := mpd.Attrs{"elapsed": "12.5", "duration": "bogus"}
	if got := secondsAttr(status, "elapsed"); got != 12500*time.Millisecond {
		t.Errorf("elapsed = %v, want 12.5s", got)
	}
	if got := secondsAttr(status, "duration"); got != 0 {
		t.Errorf("unparsable duration = %v, want 0", got)
	}
	if got := secondsAttr(status, "missing"); got != 0 {
		t.Errorf("missing attr = %v, want 0", got)
	}
}
