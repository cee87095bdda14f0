// Package spotify provides a read-only client for Spotify playlists.
package spotify

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Song is a Spotify track reduced to what is needed to find it on the streaming server.
type Song struct {
	ID       string
	Name     string
	Artist   string // First credited artist
	Album    string
	Duration time.Duration
}

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// Scopes returns the OAuth scopes the client needs.
func Scopes() []string {
	return []string{
		spotifyauth.ScopePlaylistReadPrivate,
		spotifyauth.ScopePlaylistReadCollaborative,
	}
}

// NewAuthenticator returns an authenticator for the client's scopes.
func NewAuthenticator(clientID, clientSecret, redirectURL string) *spotifyauth.Authenticator {
	opts := []spotifyauth.AuthenticatorOption{
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithScopes(Scopes()...),
	}
	if redirectURL != "" {
		opts = append(opts, spotifyauth.WithRedirectURL(redirectURL))
	}
	return spotifyauth.New(opts...)
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := NewAuthenticator(cfg.ClientID, cfg.ClientSecret, "")
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
		rng:        rand.New(rand.NewSource(cryptoSeed())),
	}, nil
}

// CheckPlaylistExists checks that a playlist is reachable without fetching all tracks.
func (c *Client) CheckPlaylistExists(ctx context.Context, playlistURL string) error {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return errors.New("invalid playlist URL")
	}

	_, err := c.playlistPage(ctx, playlistID, 1, 0)
	if err != nil {
		return errors.Wrap(err, "playlist does not exist or is not accessible")
	}
	return nil
}

// PlaylistSongs retrieves every track of a playlist.
func (c *Client) PlaylistSongs(ctx context.Context, playlistURL string) ([]Song, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var songs []Song
	const limit = 100
	for offset := 0; ; offset += limit {
		page, err := c.playlistPage(ctx, playlistID, limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}
		songs = append(songs, songsFromPage(page)...)
		if len(page.Items) < limit {
			break
		}
	}
	return songs, nil
}

// RandomPlaylistSongs returns up to count tracks from a random page of a playlist.
func (c *Client) RandomPlaylistSongs(ctx context.Context, playlistURL string, count int) ([]Song, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	first, err := c.playlistPage(ctx, playlistID, 1, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist info")
	}
	total := int(first.Total)
	if total == 0 {
		return []Song{}, nil
	}

	const limit = 100
	offset := 0
	if maxOffset := total - limit; maxOffset > 0 {
		c.rngMu.Lock()
		offset = c.rng.Intn(maxOffset + 1)
		c.rngMu.Unlock()
	}

	page, err := c.playlistPage(ctx, playlistID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist items")
	}

	songs := songsFromPage(page)
	if len(songs) > count {
		c.rngMu.Lock()
		c.rng.Shuffle(len(songs), func(i, j int) {
			songs[i], songs[j] = songs[j], songs[i]
		})
		c.rngMu.Unlock()
		songs = songs[:count]
	}
	return songs, nil
}

func (c *Client) playlistPage(ctx context.Context, playlistID string, limit, offset int) (*spotify.PlaylistItemPage, error) {
	var page *spotify.PlaylistItemPage
	err := c.retry(func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

func songsFromPage(page *spotify.PlaylistItemPage) []Song {
	songs := make([]Song, 0, len(page.Items))
	for _, item := range page.Items {
		// Episodes have no Track
		if item.Track.Track != nil && item.Track.Track.ID != "" {
			songs = append(songs, convertTrack(item.Track.Track))
		}
	}
	return songs
}

func convertTrack(t *spotify.FullTrack) Song {
	var artist string
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return Song{
		ID:       string(t.ID),
		Name:     t.Name,
		Artist:   artist,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is a rate limit or server error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, marker := range []string{"rate limit", "429", "500", "502", "503", "504"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractID handles "spotify:<kind>:ID", "https://open.spotify.com/[intl-xx/]<kind>/ID?..."
// and bare IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	marker := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, marker) {
		parts := strings.Split(input, marker)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
