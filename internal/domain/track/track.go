// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents a song as served by the streaming server.
type Track struct {
	ID         string        // Server song ID
	Title      string        // Track title
	Artist     string        // Main artist name
	Album      string        // Album name
	AlbumID    string        // Server album ID
	CoverArtID string        // Cover art ID (fetched via getCoverArt)
	Duration   time.Duration // Track duration
	Suffix     string        // File suffix reported by the server (mp3, flac, ...)
	BitRate    int           // Bit rate in kbps
	StreamURL  string        // Authenticated stream URL handed to the media engine
}

// Entry is one slot of a playback queue.
// The same Track can appear more than once in a queue; Key tells the slots apart.
type Entry struct {
	Key   string // Unique per queue slot
	Track Track
}

// DisplayName returns "Artist - Title", or just the title when the artist is unknown.
func (t *Track) DisplayName() string {
	if t.Artist == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// IsPlayable reports whether the engine can be handed this track.
func (t *Track) IsPlayable() bool {
	return t.ID != "" && t.StreamURL != ""
}

// Same reports whether two entries are the same queue slot.
func (e Entry) Same(other Entry) bool {
	return e.Key != "" && e.Key == other.Key
}
