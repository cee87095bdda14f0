// Package playback provides the playback queue controller.
package playback

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// State represents the coarse playback state derived from a Snapshot.
type State int

const (
	StateIdle    State = iota // Nothing loaded
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
	StateEnded                // Queue exhausted under RepeatOff
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// RepeatMode defines what happens at the queue boundaries and on natural track completion.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop after the last track
	RepeatOne                   // Restart the current track on natural completion
	RepeatAll                   // Wrap around at both ends
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// ErrUnknownRepeatMode is returned by ParseRepeatMode.
var ErrUnknownRepeatMode = errors.New("unknown repeat mode")

// ParseRepeatMode converts "off", "one" or "all" (case-insensitive) to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return RepeatOff, nil
	case "one":
		return RepeatOne, nil
	case "all":
		return RepeatAll, nil
	default:
		return RepeatOff, errors.Wrapf(ErrUnknownRepeatMode, "%q", s)
	}
}

// Snapshot is a read-only copy of the controller's playback state.
type Snapshot struct {
	Entries  []track.Entry // Playlist in play order (shuffled order when Shuffle is set)
	Index    int           // Current index, -1 when nothing is loaded
	Current  *track.Entry  // Entry at Index, nil when nothing is loaded
	Shuffle  bool
	Repeat   RepeatMode
	Playing  bool
	Ended    bool
	Progress float64       // position/duration in [0, 1]
	Position time.Duration // Last position observed from the engine
}

// State derives the coarse playback state.
func (s Snapshot) State() State {
	switch {
	case s.Current == nil:
		return StateIdle
	case s.Ended:
		return StateEnded
	case s.Playing:
		return StatePlaying
	default:
		return StatePaused
	}
}
