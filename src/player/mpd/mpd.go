package mpd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"melodeck/src/player"
)

// Engine delegates playback to an MPD daemon. The daemon's queue is used as
// a single-slot source, queue semantics live in the player on top.
//
// The idle watcher needs its own connection, sharing it with commands breaks
// the protocol. Commands dial a short-lived connection per call.
type Engine struct {
	addr, passwd string

	watcher *mpd.Watcher
	cancel  context.CancelFunc

	lock    sync.Mutex
	current string
	level   float64
	onEnded func()
	onError func(err *player.Error)
}

func NewEngine(host string, port int, passwd string) (*Engine, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	watcher, err := mpd.NewWatcher("tcp", addr, passwd, "player")
	if err != nil {
		return nil, fmt.Errorf("connect to mpd at %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		addr:    addr,
		passwd:  passwd,
		watcher: watcher,
		cancel:  cancel,
		level:   1,
	}
	go e.watchLoop(ctx)
	return e, nil
}

func (e *Engine) withMpd(fn func(client *mpd.Client) error) error {
	client, err := mpd.DialAuthenticated("tcp", e.addr, e.passwd)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (e *Engine) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case subsystem := <-e.watcher.Event:
			if subsystem == "player" {
				e.checkPlayerState()
			}
		case err := <-e.watcher.Error:
			log.Warnf("MPD watcher: %v", err)
			e.lock.Lock()
			active := e.current != ""
			fn := e.onError
			e.lock.Unlock()
			if active && fn != nil {
				fn(&player.Error{Kind: classifyMessage(err.Error()), Cause: err})
			}
		}
	}
}

// checkPlayerState fires the ended handler when the daemon ran out of
// audio on its own. A source cleared by Stop does not count, the current
// url is withdrawn before the command is issued.
func (e *Engine) checkPlayerState() {
	var status mpd.Attrs
	err := e.withMpd(func(client *mpd.Client) error {
		var err error
		status, err = client.Status()
		return err
	})
	if err != nil {
		log.Warnf("MPD status: %v", err)
		return
	}
	if status["state"] != "stop" {
		return
	}

	e.lock.Lock()
	ended := e.current != ""
	e.current = ""
	fn := e.onEnded
	e.lock.Unlock()

	if ended && fn != nil {
		fn()
	}
}

func (e *Engine) LoadAndPlay(ctx context.Context, url string) error {
	e.lock.Lock()
	e.current = ""
	level := e.level
	e.lock.Unlock()

	err := e.withMpd(func(client *mpd.Client) error {
		if err := client.Clear(); err != nil {
			return err
		}
		if err := client.Add(url); err != nil {
			return err
		}
		if err := client.SetVolume(int(level * 100)); err != nil {
			// Some daemons have no mixer configured. Playback still works.
			log.Debugf("MPD volume: %v", err)
		}
		return client.Play(0)
	})
	if err != nil {
		if ctx.Err() != nil {
			return &player.Error{Kind: player.ErrorAborted, Cause: ctx.Err()}
		}
		return &player.Error{Kind: classifyMessage(err.Error()), Cause: err}
	}

	e.lock.Lock()
	e.current = url
	e.lock.Unlock()
	return nil
}

// classifyMessage maps an MPD error string onto an ErrorKind. The protocol
// has no structured error codes, matching the message is all there is.
func classifyMessage(message string) player.ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "no decoder"), strings.Contains(lower, "unsupported"),
		strings.Contains(lower, "unknown uri scheme"):
		return player.ErrorUnsupported
	case strings.Contains(lower, "decode"), strings.Contains(lower, "corrupt"),
		strings.Contains(lower, "invalid"):
		return player.ErrorDecode
	default:
		return player.ErrorNetwork
	}
}

func (e *Engine) Pause() {
	if err := e.withMpd(func(client *mpd.Client) error {
		return client.Pause(true)
	}); err != nil {
		log.Warnf("MPD pause: %v", err)
	}
}

func (e *Engine) Resume() error {
	return e.withMpd(func(client *mpd.Client) error {
		return client.Pause(false)
	})
}

func (e *Engine) Stop() {
	e.lock.Lock()
	e.current = ""
	e.lock.Unlock()
	if err := e.withMpd(func(client *mpd.Client) error {
		if err := client.Stop(); err != nil {
			return err
		}
		return client.Clear()
	}); err != nil {
		log.Warnf("MPD stop: %v", err)
	}
}

func (e *Engine) Seek(d time.Duration) error {
	return e.withMpd(func(client *mpd.Client) error {
		return client.SeekCur(d, false)
	})
}

func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	e.lock.Lock()
	if v == e.level {
		e.lock.Unlock()
		return
	}
	e.level = v
	e.lock.Unlock()

	if err := e.withMpd(func(client *mpd.Client) error {
		return client.SetVolume(int(v * 100))
	}); err != nil {
		log.Warnf("MPD volume: %v", err)
	}
}

func (e *Engine) Volume() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.level
}

func (e *Engine) Playing() bool {
	return e.status()["state"] == "play"
}

func (e *Engine) Position() time.Duration {
	return secondsAttr(e.status(), "elapsed")
}

func (e *Engine) Duration() time.Duration {
	return secondsAttr(e.status(), "duration")
}

func (e *Engine) status() mpd.Attrs {
	var status mpd.Attrs
	if err := e.withMpd(func(client *mpd.Client) error {
		var err error
		status, err = client.Status()
		return err
	}); err != nil {
		log.Debugf("MPD status: %v", err)
		return mpd.Attrs{}
	}
	return status
}

func secondsAttr(status mpd.Attrs, key string) time.Duration {
	str, ok := status[key]
	if !ok {
		return 0
	}
	seconds, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
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
	e.cancel()
	if err := e.watcher.Close(); err != nil {
		log.Debugf("MPD watcher close: %v", err)
	}
	e.lock.Lock()
	e.onEnded = nil
	e.onError = nil
	e.current = ""
	e.lock.Unlock()
}
