package library

import (
	"fmt"
	"time"
)

// Track holds all information associated with a single piece of music.
//
// Track identity is the Mid; two tracks with an equal Mid refer to the same
// logical track even when the display metadata differs.
type Track struct {
	Mid      string        `json:"mid"`
	Name     string        `json:"name,omitempty"`
	Artist   string        `json:"artist,omitempty"`
	Cover    string        `json:"cover,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (track Track) String() string {
	return fmt.Sprintf("%s - %s (%v)", track.Artist, track.Name, track.Duration)
}
