package spotify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uri", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"url", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"url with share params", "https://open.spotify.com/playlist/abc123?si=xyz&utm_source=copy", "abc123"},
		{"localized url", "https://open.spotify.com/intl-ja/playlist/abc123/", "abc123"},
		{"bare id", "  abc123 ", "abc123"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPlaylistID(tt.input))
		})
	}
}

func TestExtractID_OtherKinds(t *testing.T) {
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractID("spotify:track:4uLU6hMCjMI75M1A2tKUQC", "track"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=1", "track"))
	// a playlist URL is not a track URL
	assert.Equal(t, "https://open.spotify.com/playlist/abc", extractID("https://open.spotify.com/playlist/abc", "track"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("Error 429: too many requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("502 Bad Gateway"), true},
		{errors.New("504 Gateway Timeout"), true},
		{errors.New("400 Bad Request"), false},
		{errors.New("404 not found"), false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestSongsFromPage(t *testing.T) {
	page := &spotify.PlaylistItemPage{
		Items: []spotify.PlaylistItem{
			{Track: spotify.PlaylistItemTrack{Track: &spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:       "t1",
					Name:     "Heroes",
					Artists:  []spotify.SimpleArtist{{Name: "David Bowie"}, {Name: "Brian Eno"}},
					Duration: 371000,
				},
				Album: spotify.SimpleAlbum{Name: "\"Heroes\""},
			}}},
			// podcast episode
			{Track: spotify.PlaylistItemTrack{}},
			{Track: spotify.PlaylistItemTrack{Track: &spotify.FullTrack{}}},
		},
	}

	songs := songsFromPage(page)
	assert.Equal(t, []Song{{
		ID:       "t1",
		Name:     "Heroes",
		Artist:   "David Bowie",
		Album:    "\"Heroes\"",
		Duration: 371 * time.Second,
	}}, songs)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "secret"})
	assert.Error(t, err)
}
