// Package subsonic provides a client for Subsonic-compatible streaming servers.
package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/scheduler"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// ErrAPI is returned when the server answers with a failed status.
var ErrAPI = errors.New("subsonic API error")

// Submitter queues a request under a callback ID.
type Submitter interface {
	Submit(req scheduler.Request, id scheduler.CallbackID, onComplete scheduler.CompletionFunc) error
}

// Config represents Subsonic client configuration.
type Config struct {
	URL        string
	Username   string
	Password   string
	Client     string
	APIVersion string
}

// Client talks to the streaming server through the request scheduler.
type Client struct {
	baseURL    string
	username   string
	password   string
	clientName string
	apiVersion string
	submitter  Submitter
}

// New creates a new Subsonic client.
func New(cfg Config, submitter Submitter) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("subsonic URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("subsonic username and password are required")
	}
	if submitter == nil {
		return nil, errors.New("subsonic client needs a scheduler")
	}
	if cfg.Client == "" {
		cfg.Client = "tapedeck"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "1.16.1"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		clientName: cfg.Client,
		apiVersion: cfg.APIVersion,
		submitter:  submitter,
	}, nil
}

// Ping checks connectivity and credentials.
// Reference: http://www.subsonic.org/pages/api.jsp#ping
func (c *Client) Ping(id scheduler.CallbackID, done func(error)) error {
	return c.call("ping", nil, id, func(_ *responseBody, err error) {
		done(err)
	})
}

// GetRandomSongs fetches up to size random songs.
// Reference: http://www.subsonic.org/pages/api.jsp#getRandomSongs
func (c *Client) GetRandomSongs(size int, id scheduler.CallbackID, done func([]track.Track, error)) error {
	if size <= 0 {
		size = 10
	}
	if size > 500 {
		size = 500
	}
	params := url.Values{}
	params.Set("size", strconv.Itoa(size))

	return c.call("getRandomSongs", params, id, func(body *responseBody, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		if body.RandomSongs == nil {
			done([]track.Track{}, nil)
			return
		}
		done(c.toTracks(body.RandomSongs.Song), nil)
	})
}

// GetPlaylist fetches a playlist with its entries.
// Reference: http://www.subsonic.org/pages/api.jsp#getPlaylist
func (c *Client) GetPlaylist(playlistID string, id scheduler.CallbackID, done func(*Playlist, error)) error {
	if playlistID == "" {
		return errors.New("playlist ID is required")
	}
	params := url.Values{}
	params.Set("id", playlistID)

	return c.call("getPlaylist", params, id, func(body *responseBody, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		if body.Playlist == nil {
			done(nil, errors.Newf("playlist %s missing from response", playlistID))
			return
		}
		done(&Playlist{
			ID:     body.Playlist.ID,
			Name:   body.Playlist.Name,
			Owner:  body.Playlist.Owner,
			Tracks: c.toTracks(body.Playlist.Entry),
		}, nil)
	})
}

// GetAlbum fetches an album with its songs.
// Reference: http://www.subsonic.org/pages/api.jsp#getAlbum
func (c *Client) GetAlbum(albumID string, id scheduler.CallbackID, done func(*Album, error)) error {
	if albumID == "" {
		return errors.New("album ID is required")
	}
	params := url.Values{}
	params.Set("id", albumID)

	return c.call("getAlbum", params, id, func(body *responseBody, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		if body.Album == nil {
			done(nil, errors.Newf("album %s missing from response", albumID))
			return
		}
		done(&Album{
			ID:     body.Album.ID,
			Name:   body.Album.Name,
			Artist: body.Album.Artist,
			Year:   body.Album.Year,
			Tracks: c.toTracks(body.Album.Song),
		}, nil)
	})
}

// Search looks up songs matching query.
// Reference: http://www.subsonic.org/pages/api.jsp#search3
func (c *Client) Search(query string, count int, id scheduler.CallbackID, done func([]track.Track, error)) error {
	if query == "" {
		return errors.New("search query is required")
	}
	if count <= 0 {
		count = 20
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("songCount", strconv.Itoa(count))
	params.Set("albumCount", "0")
	params.Set("artistCount", "0")

	return c.call("search3", params, id, func(body *responseBody, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		if body.SearchResult3 == nil {
			done([]track.Track{}, nil)
			return
		}
		done(c.toTracks(body.SearchResult3.Song), nil)
	})
}

// FetchRandomSongs is the blocking form of GetRandomSongs.
func (c *Client) FetchRandomSongs(ctx context.Context, size int) ([]track.Track, error) {
	return wait(ctx, func(done func([]track.Track, error)) error {
		return c.GetRandomSongs(size, newCallbackID("random"), done)
	})
}

// FetchPlaylist is the blocking form of GetPlaylist.
func (c *Client) FetchPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	return wait(ctx, func(done func(*Playlist, error)) error {
		return c.GetPlaylist(playlistID, newCallbackID("playlist"), done)
	})
}

// FetchAlbum is the blocking form of GetAlbum.
func (c *Client) FetchAlbum(ctx context.Context, albumID string) (*Album, error) {
	return wait(ctx, func(done func(*Album, error)) error {
		return c.GetAlbum(albumID, newCallbackID("album"), done)
	})
}

// SearchSong returns the best match for title by artist, or nil when nothing matches.
func (c *Client) SearchSong(ctx context.Context, title, artist string) (*track.Track, error) {
	query := strings.TrimSpace(artist + " " + title)
	tracks, err := wait(ctx, func(done func([]track.Track, error)) error {
		return c.Search(query, 10, newCallbackID("search"), done)
	})
	if err != nil {
		return nil, err
	}

	for i := range tracks {
		if strings.EqualFold(tracks[i].Title, title) && (artist == "" || strings.EqualFold(tracks[i].Artist, artist)) {
			return &tracks[i], nil
		}
	}
	return nil, nil
}

// PingContext is the blocking form of Ping.
func (c *Client) PingContext(ctx context.Context) error {
	_, err := wait(ctx, func(done func(struct{}, error)) error {
		return c.Ping(newCallbackID("ping"), func(err error) { done(struct{}{}, err) })
	})
	return err
}

// StreamURL returns an authenticated stream URL for a song.
func (c *Client) StreamURL(songID string) string {
	params := c.authParams()
	params.Set("id", songID)
	return c.baseURL + "/rest/stream.view?" + params.Encode()
}

// call submits method and decodes the envelope before handing it to done.
func (c *Client) call(method string, params url.Values, id scheduler.CallbackID, done func(*responseBody, error)) error {
	query := c.authParams()
	for k, v := range params {
		query[k] = v
	}

	req := scheduler.Request{Path: "/rest/" + method + ".view", Query: query}
	err := c.submitter.Submit(req, id, func(resp scheduler.Response) {
		body, err := decode(resp)
		if err != nil {
			zlog.Warn().Msgf("subsonic %s failed: %v", method, err)
		}
		done(body, err)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to submit %s", method)
	}
	return nil
}

// authParams returns token authentication parameters with a fresh salt.
func (c *Client) authParams() url.Values {
	salt := newSalt()
	sum := md5.Sum([]byte(c.password + salt))

	params := url.Values{}
	params.Set("u", c.username)
	params.Set("t", hex.EncodeToString(sum[:]))
	params.Set("s", salt)
	params.Set("v", c.apiVersion)
	params.Set("c", c.clientName)
	params.Set("f", "json")
	return params
}

func decode(resp scheduler.Response) (*responseBody, error) {
	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected HTTP status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if env.Response.Status != "ok" {
		if env.Response.Error != nil {
			return nil, errors.Wrapf(ErrAPI, "code %d: %s", env.Response.Error.Code, env.Response.Error.Message)
		}
		return nil, errors.Wrapf(ErrAPI, "status %q", env.Response.Status)
	}
	return &env.Response, nil
}

// wait blocks until an async call completes or ctx is done.
func wait[T any](ctx context.Context, start func(done func(T, error)) error) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)

	if err := start(func(v T, err error) { ch <- result{v, err} }); err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func newCallbackID(kind string) scheduler.CallbackID {
	return scheduler.CallbackID(kind + ":" + uuid.New().String())
}

func newSalt() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()[:8]
	}
	return hex.EncodeToString(b)
}
