package beep

import (
	"testing"
)

func TestNormalizeFormat(t *testing.T) {
	testcases := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://media.example.com/track.mp3", "", "mp3"},
		{"https://media.example.com/track?id=42", "audio/mpeg", "mp3"},
		{"https://media.example.com/track.FLAC", "", "flac"},
		{"https://media.example.com/track.oga", "", "ogg"},
		{"https://media.example.com/track", "audio/ogg; codecs=vorbis", "ogg"},
		{"https://media.example.com/track.wav", "application/octet-stream", "wav"},
		{"https://media.example.com/track.aac", "", ""},
	}
	for _, testcase := range testcases {
		if got := normalizeFormat(testcase.url, testcase.contentType); got != testcase.want {
			t.Errorf("normalizeFormat(%q, %q) = %q, want %q", testcase.url, testcase.contentType, got, testcase.want)
		}
	}
}

func TestDecoderForUnknownFormat(t *testing.T) {
	if _, err := decoderFor("https://media.example.com/track.aac", ""); err == nil {
		t.Fatalf("expected an error for an unsupported format")
	}
	if _, err := decoderFor("https://media.example.com/track.mp3", ""); err != nil {
		t.Fatalf("mp3 decoder lookup failed: %v", err)
	}
}

func TestLevelToGain(t *testing.T) {
	if got := levelToGain(1); got != 0 {
		t.Errorf("levelToGain(1) = %v, want 0", got)
	}
	if got := levelToGain(0.5); got != -1 {
		t.Errorf("levelToGain(0.5) = %v, want -1", got)
	}
}
