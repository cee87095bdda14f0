package playback

// EventType represents a controller event type.
type EventType int

const (
	EventQueueLoaded  EventType = iota // A new playlist was loaded (or cleared)
	EventTrackChanged                  // Current entry changed
	EventStateChanged                  // Playing flag changed
	EventModeChanged                   // Repeat or shuffle changed
	EventProgress                      // Position poll published a new progression
	EventQueueEnded                    // Queue exhausted under RepeatOff
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventQueueLoaded:
		return "queue_loaded"
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventProgress:
		return "progress"
	case EventQueueEnded:
		return "queue_ended"
	default:
		return "unknown"
	}
}

// Event represents a controller event delivered to subscribers.
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

const subscriberBufferSize = 32
