// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Keyed by "similar:artist:track" and "tag:name"
	cache   map[string][]TrackRef
	cacheMu sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// TrackRef is a track as Last.fm names it.
type TrackRef struct {
	Name   string
	Artist string
	Match  float64 // Similarity score, track.getSimilar only
}

type trackList struct {
	Track []struct {
		Name   string          `json:"name"`
		Match  json.RawMessage `json:"match"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"track"`
}

type similarResponse struct {
	SimilarTracks trackList `json:"similartracks"`
}

type topTracksResponse struct {
	Tracks trackList `json:"tracks"`
}

type apiErrorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string][]TrackRef),
	}, nil
}

// GetSimilarTracks retrieves tracks similar to trackName by artistName.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]TrackRef, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	key := fmt.Sprintf("similar:%s:%s", artistName, trackName)
	if cached, ok := c.cached(key); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("method", "track.getSimilar")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("autocorrect", "1")

	var response similarResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}

	refs := response.SimilarTracks.refs()
	c.store(key, refs)
	return refs, nil
}

// GetTopTracks retrieves top tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tagName string, limit int) ([]TrackRef, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}

	key := "tag:" + tagName
	if cached, ok := c.cached(key); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("method", "tag.getTopTracks")
	params.Set("tag", tagName)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response topTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}

	refs := response.Tracks.refs()
	c.store(key, refs)
	return refs, nil
}

// GetChartTopTracks retrieves global top tracks. Charts change, so results are not cached.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TrackRef, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	params.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response topTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	return response.Tracks.refs(), nil
}

// get performs an API call and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func (c *Client) cached(key string) ([]TrackRef, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	refs, ok := c.cache[key]
	if ok {
		zlog.Debug().Msgf("last.fm cache hit: %s", key)
	}
	return refs, ok
}

func (c *Client) store(key string, refs []TrackRef) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = refs
}

func (l trackList) refs() []TrackRef {
	refs := make([]TrackRef, 0, len(l.Track))
	for _, t := range l.Track {
		refs = append(refs, TrackRef{
			Name:   t.Name,
			Artist: t.Artist.Name,
			Match:  parseMatch(t.Match),
		})
	}
	return refs
}

// parseMatch accepts the score both as a JSON number and as a string.
func parseMatch(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, _ = strconv.ParseFloat(s, 64)
	}
	return f
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
