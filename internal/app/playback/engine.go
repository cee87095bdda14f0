package playback

import (
	"time"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// Engine is the media engine that decodes and renders audio.
// The controller is the only order authority: engines must play entries in the
// order given to LoadPlaylist and never shuffle on their own.
//
// Engine methods must not block on the controller; events are delivered
// asynchronously through Events.
type Engine interface {
	// LoadPlaylist replaces the engine's list and positions it at index 0, paused.
	// It does not emit a transition.
	LoadPlaylist(entries []track.Entry)
	Play()
	Pause()
	// SeekToIndex moves to the start of the entry at index i.
	// A transition with ReasonSeek is emitted when the entry changes.
	SeekToIndex(i int)
	// CurrentPosition returns the position within the current entry.
	CurrentPosition() time.Duration
	// SetShuffleEnabled toggles engine-native shuffle. The controller always passes false.
	SetShuffleEnabled(enabled bool)
	// Events returns the engine event channel.
	Events() <-chan EngineEvent
}

// TransitionReason tells why the engine moved to another entry.
type TransitionReason int

const (
	ReasonSeek  TransitionReason = iota // Seek requested through SeekToIndex
	ReasonAuto                          // Natural end-of-track advance
	ReasonOther                         // Anything else
)

// String returns the string representation of the reason.
func (r TransitionReason) String() string {
	switch r {
	case ReasonSeek:
		return "seek"
	case ReasonAuto:
		return "auto"
	case ReasonOther:
		return "other"
	default:
		return "unknown"
	}
}

// EngineEventType represents an engine event type.
type EngineEventType int

const (
	EngineTransition     EngineEventType = iota // Engine switched to Entry
	EnginePlayingChanged                        // Playing flag changed
	EngineEnded                                 // Engine ran off the end of its list
)

// String returns the string representation of the engine event type.
func (t EngineEventType) String() string {
	switch t {
	case EngineTransition:
		return "transition"
	case EnginePlayingChanged:
		return "playing_changed"
	case EngineEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EngineEvent is emitted by the media engine. Consumed once, never stored.
type EngineEvent struct {
	Type    EngineEventType
	Entry   track.Entry      // Destination entry (EngineTransition)
	Reason  TransitionReason // EngineTransition only
	Playing bool             // EnginePlayingChanged only
}

// Transition builds a transition event.
func Transition(entry track.Entry, reason TransitionReason) EngineEvent {
	return EngineEvent{Type: EngineTransition, Entry: entry, Reason: reason}
}

// PlayingChanged builds a playing-changed event.
func PlayingChanged(playing bool) EngineEvent {
	return EngineEvent{Type: EnginePlayingChanged, Playing: playing}
}

// Ended builds an end-of-list event.
func Ended() EngineEvent {
	return EngineEvent{Type: EngineEnded}
}
