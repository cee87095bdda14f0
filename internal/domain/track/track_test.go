package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrack_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{
			name:     "artist and title",
			track:    Track{Title: "Bohemian Rhapsody", Artist: "Queen"},
			expected: "Queen - Bohemian Rhapsody",
		},
		{
			name:     "unknown artist",
			track:    Track{Title: "Untitled"},
			expected: "Untitled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.DisplayName())
		})
	}
}

func TestTrack_IsPlayable(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected bool
	}{
		{
			name: "id and stream url",
			track: Track{
				ID:        "song-1",
				Title:     "Test Song",
				Duration:  3 * time.Minute,
				StreamURL: "http://music.local/rest/stream?id=song-1",
			},
			expected: true,
		},
		{
			name:     "missing stream url",
			track:    Track{ID: "song-1"},
			expected: false,
		},
		{
			name:     "missing id",
			track:    Track{StreamURL: "http://music.local/rest/stream"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.IsPlayable())
		})
	}
}

func TestEntry_Same(t *testing.T) {
	song := Track{ID: "song-1"}
	a := Entry{Key: "k1", Track: song}
	b := Entry{Key: "k2", Track: song}

	assert.True(t, a.Same(a))
	assert.False(t, a.Same(b), "same song in different slots is a different entry")
	assert.False(t, Entry{}.Same(Entry{}), "entries without keys never match")
}
