package player

import (
	"context"
	"fmt"
	"time"
)

// ErrorKind classifies a playback failure.
type ErrorKind int

const (
	// Playback was aborted by the user or the system.
	ErrorAborted ErrorKind = iota + 1
	// The audio could not be fetched. Network faults are systemic, skipping
	// to the next track would most likely fail the same way.
	ErrorNetwork
	// The audio data is corrupt.
	ErrorDecode
	// The source format is not supported.
	ErrorUnsupported
)

func (kind ErrorKind) Name() string {
	switch kind {
	case ErrorAborted:
		return "load aborted"
	case ErrorNetwork:
		return "network error"
	case ErrorDecode:
		return "decode error"
	case ErrorUnsupported:
		return "unsupported format"
	default:
		return "unknown error"
	}
}

// AutoSkip reports whether the player should advance past the failed track.
// Only faults attributable to the track itself qualify. Skipping on systemic
// faults would fast-forward through the entire queue during an outage.
func (kind ErrorKind) AutoSkip() bool {
	return kind == ErrorDecode || kind == ErrorUnsupported
}

// Error is a classified playback failure reported by an AudioEngine.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind.Name(), e.Cause)
	}
	return e.Kind.Name()
}

func (e *Error) Unwrap() error { return e.Cause }

// An AudioEngine owns exactly one playback element for the process lifetime.
//
// The ended and error handlers are single-slot registrations, the last
// registration wins. Only one navigation controller is ever active, so a
// handler list is deliberately not provided.
//
// Engines must suppress errors raised by a stale stop: clearing the source
// while tearing a stream down must not surface an error for the previous
// track.
type AudioEngine interface {
	// LoadAndPlay sets the source and begins playback. Failures that are
	// detected synchronously are returned as a classified *Error; failures
	// during playback reach the error handler instead.
	LoadAndPlay(ctx context.Context, url string) error

	Pause()
	Resume() error

	// Stop halts playback and clears the source.
	Stop()

	Seek(d time.Duration) error

	// SetVolume clamps v to [0, 1] before applying it. Setting the current
	// volume again is a no-op.
	SetVolume(v float64)
	Volume() float64

	Playing() bool
	Position() time.Duration

	// Duration of the loaded source, 0 while metadata is not yet available.
	Duration() time.Duration

	// OnEnded registers the handler invoked exactly once per completed
	// playback.
	OnEnded(fn func())

	// OnError registers the handler invoked with classified playback
	// failures.
	OnError(fn func(err *Error))

	// Cleanup detaches handlers, stops playback and releases the element.
	// Safe to call multiple times.
	Cleanup()
}
