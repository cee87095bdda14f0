package subsonic

import (
	"time"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// Playlist is a server-side playlist with its tracks.
type Playlist struct {
	ID     string
	Name   string
	Owner  string
	Tracks []track.Track
}

// Album is an album with its tracks.
type Album struct {
	ID     string
	Name   string
	Artist string
	Year   int
	Tracks []track.Track
}

// envelope is the JSON wrapper around every response.
type envelope struct {
	Response responseBody `json:"subsonic-response"`
}

type responseBody struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Error   *apiError `json:"error,omitempty"`

	RandomSongs *struct {
		Song []child `json:"song"`
	} `json:"randomSongs,omitempty"`

	Playlist *struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Owner string  `json:"owner"`
		Entry []child `json:"entry"`
	} `json:"playlist,omitempty"`

	Album *struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		Artist string  `json:"artist"`
		Year   int     `json:"year"`
		Song   []child `json:"song"`
	} `json:"album,omitempty"`

	SearchResult3 *struct {
		Song []child `json:"song"`
	} `json:"searchResult3,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// child is a song entry as returned by the server.
type child struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumID  string `json:"albumId"`
	CoverArt string `json:"coverArt"`
	Duration int    `json:"duration"` // seconds
	Suffix   string `json:"suffix"`
	BitRate  int    `json:"bitRate"`
	IsDir    bool   `json:"isDir"`
}

func (c *Client) toTracks(children []child) []track.Track {
	tracks := make([]track.Track, 0, len(children))
	for _, ch := range children {
		if ch.IsDir || ch.ID == "" {
			continue
		}
		tracks = append(tracks, track.Track{
			ID:         ch.ID,
			Title:      ch.Title,
			Artist:     ch.Artist,
			Album:      ch.Album,
			AlbumID:    ch.AlbumID,
			CoverArtID: ch.CoverArt,
			Duration:   time.Duration(ch.Duration) * time.Second,
			Suffix:     ch.Suffix,
			BitRate:    ch.BitRate,
			StreamURL:  c.StreamURL(ch.ID),
		})
	}
	return tracks
}
