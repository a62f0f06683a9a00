package settings

import (
	"melodeck/src/library"
)

// Quality is the preferred audio quality requested from the playback URL
// resolver.
type Quality string

const (
	QualityAuto     Quality = "auto"
	QualityHigh     Quality = "high"
	QualityBalanced Quality = "balanced"
	QualityCompat   Quality = "compat"
)

// NamedQuality maps a string to a Quality, falling back to QualityAuto for
// unknown values.
func NamedQuality(str string) Quality {
	switch q := Quality(str); q {
	case QualityHigh, QualityBalanced, QualityCompat, QualityAuto:
		return q
	default:
		return QualityAuto
	}
}

// StoredQueue is the persisted snapshot of a playback queue, keyed per
// source. CurrentMid, when present, takes precedence over CurrentIndex on
// restore: indices drift when a queue is fetched fresh, identity does not.
type StoredQueue struct {
	Playlist     []library.Track `json:"playlist"`
	CurrentIndex int             `json:"currentIndex"`
	CurrentMid   string          `json:"currentMid,omitempty"`
}

// Resolve returns the playlist along with the index of the active track,
// resolved primarily by matching CurrentMid and falling back to the stored
// index clamped to valid bounds.
func (sq StoredQueue) Resolve() ([]library.Track, int) {
	if sq.CurrentMid != "" {
		for i, track := range sq.Playlist {
			if track.Mid == sq.CurrentMid {
				return sq.Playlist, i
			}
		}
	}

	index := sq.CurrentIndex
	if index < -1 {
		index = -1
	}
	if max := len(sq.Playlist) - 1; index > max {
		index = max
	}
	return sq.Playlist, index
}

// Settings is the persisted frontend state shared by all sources.
type Settings struct {
	PlayMode         string                 `json:"playMode,omitempty"`
	Volume           *float64               `json:"volume,omitempty"`
	PreferredQuality Quality                `json:"preferredQuality,omitempty"`
	ProviderQueues   map[string]StoredQueue `json:"providerQueues,omitempty"`
}

// Clone returns a deep copy. The gateway hands copies to the store so a
// flush in flight never observes later cache mutations.
func (s *Settings) Clone() *Settings {
	c := *s
	if s.Volume != nil {
		v := *s.Volume
		c.Volume = &v
	}
	if s.ProviderQueues != nil {
		c.ProviderQueues = make(map[string]StoredQueue, len(s.ProviderQueues))
		for id, sq := range s.ProviderQueues {
			sq.Playlist = append([]library.Track(nil), sq.Playlist...)
			c.ProviderQueues[id] = sq
		}
	}
	return &c
}
