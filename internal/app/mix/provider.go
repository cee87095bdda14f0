// Package mix provides instant mix candidate strategies.
package mix

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/lastfm"
	"github.com/osa030/tapedeck/internal/infra/spotify"
)

// Provider is the interface for mix candidate providers.
type Provider interface {
	// GetCandidates retrieves up to count candidates.
	// seeds: tracks the mix should follow (e.g., the current queue)
	// exclude: song IDs that must not be returned
	GetCandidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]track.Track, error)

	// Name returns the provider type name (used in config).
	Name() string
}

// Library is the streaming server as seen by the providers.
type Library interface {
	FetchRandomSongs(ctx context.Context, size int) ([]track.Track, error)
	SearchSong(ctx context.Context, title, artist string) (*track.Track, error)
}

// LastFmClient defines the Last.fm operations the lastfm provider needs.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.TrackRef, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TrackRef, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TrackRef, error)
}

// SpotifyClient defines the Spotify operations the spotify provider needs.
type SpotifyClient interface {
	CheckPlaylistExists(ctx context.Context, playlistURL string) error
	RandomPlaylistSongs(ctx context.Context, playlistURL string, count int) ([]spotify.Song, error)
}

func newRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func dedupeByID(tracks []track.Track) []track.Track {
	seen := make(map[string]bool, len(tracks))
	result := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if !seen[t.ID] {
			seen[t.ID] = true
			result = append(result, t)
		}
	}
	return result
}
