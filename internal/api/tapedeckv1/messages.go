// Package tapedeckv1 holds the PlayerService wire messages.
// Messages are plain structs carried by the JSON codec.
package tapedeckv1

import "time"

// Load sources.
const (
	SourceRandom   = "random"
	SourcePlaylist = "playlist"
	SourceAlbum    = "album"
	SourceMix      = "mix"
)

// Notification types.
const (
	NotificationInitialState = "initial_state"
	NotificationQueueLoaded  = "queue_loaded"
	NotificationTrackChanged = "track_changed"
	NotificationStateChanged = "state_changed"
	NotificationModeChanged  = "mode_changed"
	NotificationProgress     = "progress"
	NotificationQueueEnded   = "queue_ended"
)

// Track is a song as exposed to UI collaborators.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	AlbumID    string `json:"album_id,omitempty"`
	CoverArtID string `json:"cover_art_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Suffix     string `json:"suffix,omitempty"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// QueueEntry is one slot of the queue.
type QueueEntry struct {
	Key   string `json:"key"`
	Track Track  `json:"track"`
}

// PlayerState is a read-only copy of the playback state.
type PlayerState struct {
	State      string       `json:"state"`
	Entries    []QueueEntry `json:"entries,omitempty"`
	Index      int          `json:"index"`
	Current    *QueueEntry  `json:"current,omitempty"`
	Shuffle    bool         `json:"shuffle"`
	Repeat     string       `json:"repeat"`
	Playing    bool         `json:"playing"`
	Ended      bool         `json:"ended"`
	Progress   float64      `json:"progress"`
	PositionMs int64        `json:"position_ms"`
}

// Notification is pushed to Subscribe streams.
// Progress notifications omit the entry list.
type Notification struct {
	Type       string       `json:"type"`
	SequenceNo uint64       `json:"sequence_no"`
	Timestamp  time.Time    `json:"timestamp"`
	State      *PlayerState `json:"state,omitempty"`
}

// LoadRequest replaces the queue.
type LoadRequest struct {
	Source  string `json:"source"`
	ID      string `json:"id,omitempty"`   // Playlist or album ID
	Size    int    `json:"size,omitempty"` // random and mix only; 0 means the configured size
	Shuffle bool   `json:"shuffle"`
}

// LoadResponse reports the loaded queue.
type LoadResponse struct {
	Count    int            `json:"count"`
	Rejected map[string]int `json:"rejected,omitempty"` // mix only, per filter code
	State    *PlayerState   `json:"state"`
}

// Empty is used by procedures without parameters.
type Empty struct{}

// StateResponse carries the player state after an intent.
type StateResponse struct {
	State *PlayerState `json:"state"`
}

// JumpToRequest seeks to a queue index.
type JumpToRequest struct {
	Index int `json:"index"`
}

// SetRepeatRequest sets the repeat mode ("off", "one", "all").
type SetRepeatRequest struct {
	Mode string `json:"mode"`
}

// SetShuffleRequest turns shuffle on or off.
type SetShuffleRequest struct {
	Enabled bool `json:"enabled"`
}

// NowPlayingResponse describes the current entry.
type NowPlayingResponse struct {
	Entry      *QueueEntry `json:"entry,omitempty"`
	Playing    bool        `json:"playing"`
	Progress   float64     `json:"progress"`
	PositionMs int64       `json:"position_ms"`
}

// SubscribeRequest opens a notification stream.
type SubscribeRequest struct {
	// Progress notifications are skipped unless set.
	WithProgress bool `json:"with_progress"`
}
