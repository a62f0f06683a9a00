package beep

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	bp "github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	log "github.com/sirupsen/logrus"

	"melodeck/src/player"
)

// The speaker runs at a fixed rate, every source is resampled to it.
const sampleRate = bp.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	return speakerErr
}

// Engine plays audio on the local sound device. It downloads the source
// completely before decoding so seeking works on every format.
type Engine struct {
	client *http.Client

	lock     sync.Mutex
	streamer bp.StreamSeekCloser
	format   bp.Format
	ctrl     *bp.Ctrl
	volume   *effects.Volume
	level    float64
	loaded   bool

	// generation invalidates the completion callback of a superseded or
	// stopped stream so it cannot fire for the wrong track.
	generation uint64

	onEnded func()
	onError func(err *player.Error)
}

func NewEngine() (*Engine, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("init audio device: %w", err)
	}
	return &Engine{
		client: &http.Client{Timeout: 30 * time.Second},
		level:  1,
	}, nil
}

func (e *Engine) LoadAndPlay(ctx context.Context, rawURL string) error {
	body, contentType, err := e.fetch(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return &player.Error{Kind: player.ErrorAborted, Cause: ctx.Err()}
		}
		return &player.Error{Kind: player.ErrorNetwork, Cause: err}
	}

	decode, err := decoderFor(rawURL, contentType)
	if err != nil {
		return &player.Error{Kind: player.ErrorUnsupported, Cause: err}
	}
	streamer, format, err := decode(nopCloser{bytes.NewReader(body)})
	if err != nil {
		return &player.Error{Kind: player.ErrorDecode, Cause: err}
	}

	e.lock.Lock()
	e.stopLocked()
	e.generation++
	generation := e.generation
	e.streamer = streamer
	e.format = format
	e.loaded = true

	resampled := bp.Resample(4, format.SampleRate, sampleRate, streamer)
	e.ctrl = &bp.Ctrl{Streamer: resampled}
	e.volume = &effects.Volume{
		Streamer: e.ctrl,
		Base:     2,
		Volume:   levelToGain(e.level),
		Silent:   e.level == 0,
	}
	speaker.Play(bp.Seq(e.volume, bp.Callback(func() {
		// Runs on the speaker goroutine, dispatch to avoid a deadlock when
		// the handler starts the next track.
		go e.finished(generation)
	})))
	e.lock.Unlock()
	return nil
}

func (e *Engine) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	res, err := e.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch audio: http status %s", res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", err
	}
	return body, res.Header.Get("Content-Type"), nil
}

type decoder func(io.ReadCloser) (bp.StreamSeekCloser, bp.Format, error)

func decoderFor(rawURL, contentType string) (decoder, error) {
	switch normalizeFormat(rawURL, contentType) {
	case "mp3":
		return func(rc io.ReadCloser) (bp.StreamSeekCloser, bp.Format, error) {
			return mp3.Decode(rc)
		}, nil
	case "wav":
		return func(rc io.ReadCloser) (bp.StreamSeekCloser, bp.Format, error) {
			return wav.Decode(rc)
		}, nil
	case "flac":
		return func(rc io.ReadCloser) (bp.StreamSeekCloser, bp.Format, error) {
			return flac.Decode(rc)
		}, nil
	case "ogg":
		return func(rc io.ReadCloser) (bp.StreamSeekCloser, bp.Format, error) {
			return vorbis.Decode(rc)
		}, nil
	}
	return nil, fmt.Errorf("no decoder for %q (%s)", contentType, rawURL)
}

func normalizeFormat(rawURL, contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "audio/mpeg", "audio/mp3":
			return "mp3"
		case "audio/wav", "audio/x-wav", "audio/wave":
			return "wav"
		case "audio/flac", "audio/x-flac":
			return "flac"
		case "audio/ogg", "application/ogg", "audio/vorbis":
			return "ogg"
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".mp3":
		return "mp3"
	case ".wav":
		return "wav"
	case ".flac":
		return "flac"
	case ".ogg", ".oga":
		return "ogg"
	}
	return ""
}

// finished runs after the stream drained or was torn down. A stale stop
// bumps the generation first so only the active stream reports completion.
func (e *Engine) finished(generation uint64) {
	e.lock.Lock()
	if generation != e.generation {
		e.lock.Unlock()
		return
	}
	streamErr := error(nil)
	if e.streamer != nil {
		streamErr = e.streamer.Err()
	}
	e.stopLocked()
	onEnded, onError := e.onEnded, e.onError
	e.lock.Unlock()

	if streamErr != nil {
		log.Warnf("Audio stream failed: %v", streamErr)
		if onError != nil {
			onError(&player.Error{Kind: player.ErrorDecode, Cause: streamErr})
		}
		return
	}
	if onEnded != nil {
		onEnded()
	}
}

func (e *Engine) Pause() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.ctrl == nil {
		return
	}
	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
}

func (e *Engine) Resume() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.ctrl == nil {
		return fmt.Errorf("no source loaded")
	}
	speaker.Lock()
	e.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (e *Engine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.generation++
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.ctrl != nil {
		// Dropping the stream from the mixer also keeps its completion
		// callback from ever firing.
		speaker.Clear()
	}
	if e.streamer != nil {
		e.streamer.Close()
	}
	e.streamer = nil
	e.ctrl = nil
	e.volume = nil
	e.loaded = false
}

func (e *Engine) Seek(d time.Duration) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.streamer == nil {
		return nil
	}
	speaker.Lock()
	defer speaker.Unlock()
	return e.streamer.Seek(e.format.SampleRate.N(d))
}

func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if v == e.level {
		return
	}
	e.level = v
	if e.volume == nil {
		return
	}
	speaker.Lock()
	e.volume.Volume = levelToGain(v)
	e.volume.Silent = v == 0
	speaker.Unlock()
}

func (e *Engine) Volume() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.level
}

// levelToGain maps the linear [0, 1] level to the exponential gain the
// volume effect applies, so gain == Base^Volume == level.
func levelToGain(level float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Log2(level)
}

func (e *Engine) Playing() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.ctrl == nil {
		return false
	}
	speaker.Lock()
	paused := e.ctrl.Paused
	speaker.Unlock()
	return !paused
}

func (e *Engine) Position() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := e.streamer.Position()
	speaker.Unlock()
	return e.format.SampleRate.D(pos)
}

func (e *Engine) Duration() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.streamer == nil {
		return 0
	}
	return e.format.SampleRate.D(e.streamer.Len())
}

func (e *Engine) OnEnded(fn func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.onEnded = fn
}

func (e *Engine) OnError(fn func(err *player.Error)) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.onError = fn
}

func (e *Engine) Cleanup() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.generation++
	e.stopLocked()
	e.onEnded = nil
	e.onError = nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
