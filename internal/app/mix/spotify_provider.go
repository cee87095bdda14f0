package mix

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/spotify"
)

type SpotifyProviderConfig struct {
	PlaylistURL  string `mapstructure:"playlist_url" validate:"required"`
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	RefreshToken string `mapstructure:"refresh_token" validate:"required"`
	Market       string `mapstructure:"market" default:"US" validate:"len=2"`
	FetchSize    int    `mapstructure:"fetch_size" default:"50" validate:"gte=1,lte=100"`
}

// SpotifyProvider takes random songs from a Spotify playlist and keeps the
// ones the streaming server also has. Resolved songs not handed out yet are
// cached for the next mix.
type SpotifyProvider struct {
	spotify  SpotifyClient
	resolver *resolver
	config   *SpotifyProviderConfig

	mu    sync.Mutex
	cache []track.Track
}

// NewSpotifyProvider creates a SpotifyProvider from provider settings.
func NewSpotifyProvider(ctx context.Context, library Library, settings map[string]any) (*SpotifyProvider, error) {
	var cfg SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
		Market:       cfg.Market,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create spotify client")
	}
	return newSpotifyProvider(client, library, &cfg), nil
}

func newSpotifyProvider(client SpotifyClient, library Library, cfg *SpotifyProviderConfig) *SpotifyProvider {
	return &SpotifyProvider{
		spotify:  client,
		resolver: newResolver(library),
		config:   cfg,
	}
}

// Verify checks that the configured playlist is reachable.
func (p *SpotifyProvider) Verify(ctx context.Context) error {
	return p.spotify.CheckPlaylistExists(ctx, p.config.PlaylistURL)
}

// GetCandidates ignores seeds; the playlist is the mix.
func (p *SpotifyProvider) GetCandidates(ctx context.Context, count int, _ []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	p.mu.Lock()
	available := make([]track.Track, 0, len(p.cache))
	for _, t := range p.cache {
		if !exclude[t.ID] {
			available = append(available, t)
		}
	}
	p.mu.Unlock()

	if len(available) < count {
		songs, err := p.spotify.RandomPlaylistSongs(ctx, p.config.PlaylistURL, p.config.FetchSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get random songs from playlist")
		}

		misses := 0
		for _, s := range songs {
			found := p.resolver.resolve(ctx, s.Name, s.Artist)
			if found == nil {
				misses++
				continue
			}
			if !exclude[found.ID] {
				available = append(available, *found)
			}
		}
		available = dedupeByID(available)
		if misses > 0 {
			zlog.Debug().Msgf("spotify songs missing from library: %d/%d", misses, len(songs))
		}
	}

	n := count
	if n > len(available) {
		n = len(available)
	}
	result := available[:n]

	p.mu.Lock()
	p.cache = append([]track.Track(nil), available[n:]...)
	p.mu.Unlock()

	return result, nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}
