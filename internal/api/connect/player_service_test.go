package connect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tapedeckv1 "github.com/osa030/tapedeck/internal/api/tapedeckv1"
	"github.com/osa030/tapedeck/internal/api/tapedeckv1/tapedeckv1connect"
	"github.com/osa030/tapedeck/internal/app/engine"
	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/app/player"
	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/subsonic"
)

const testToken = "secret-token"

type fakeLibrary struct {
	songs []track.Track
}

func (l *fakeLibrary) FetchRandomSongs(_ context.Context, size int) ([]track.Track, error) {
	if size > len(l.songs) {
		size = len(l.songs)
	}
	return append([]track.Track(nil), l.songs[:size]...), nil
}

func (l *fakeLibrary) SearchSong(context.Context, string, string) (*track.Track, error) {
	return nil, nil
}

func (l *fakeLibrary) FetchPlaylist(context.Context, string) (*subsonic.Playlist, error) {
	return nil, errors.Wrap(subsonic.ErrAPI, "code 70: not found")
}

func (l *fakeLibrary) FetchAlbum(context.Context, string) (*subsonic.Album, error) {
	return &subsonic.Album{ID: "al", Name: "Album", Tracks: l.songs[:1]}, nil
}

func (l *fakeLibrary) PingContext(context.Context) error { return nil }

func makeSongs(n int) []track.Track {
	songs := make([]track.Track, n)
	for i := range songs {
		songs[i] = track.Track{
			ID:        fmt.Sprintf("song-%d", i),
			Title:     fmt.Sprintf("Song %d", i),
			Artist:    "Band",
			Duration:  4 * time.Minute,
			StreamURL: "http://music.local/stream",
		}
	}
	return songs
}

func newTestServer(t *testing.T) (*player.Service, tapedeckv1connect.PlayerServiceClient, string) {
	t.Helper()

	svc, err := player.New(player.Options{
		Engine:     engine.NewClock(engine.ClockOptions{Tick: 5 * time.Millisecond}),
		Controller: playback.NewController(playback.Config{PositionInterval: 10 * time.Millisecond, Seed: 1}),
		Library:    &fakeLibrary{songs: makeSongs(4)},
		MixSize:    4,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	path, handler := tapedeckv1connect.NewPlayerServiceHandler(
		NewPlayerService(svc),
		connect.WithInterceptors(NewAuthInterceptor(testToken)),
	)
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		svc.Close()
		server.Close()
	})

	client := tapedeckv1connect.NewPlayerServiceClient(
		server.Client(),
		server.URL,
		connect.WithInterceptors(NewTokenInterceptor(testToken)),
	)
	return svc, client, server.URL
}

func empty() *connect.Request[tapedeckv1.Empty] {
	return connect.NewRequest(&tapedeckv1.Empty{})
}

func TestPlayerService_Unauthenticated(t *testing.T) {
	_, _, url := newTestServer(t)
	ctx := context.Background()

	anonymous := tapedeckv1connect.NewPlayerServiceClient(http.DefaultClient, url)
	_, err := anonymous.GetStatus(ctx, empty())
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	wrong := tapedeckv1connect.NewPlayerServiceClient(http.DefaultClient, url,
		connect.WithInterceptors(NewTokenInterceptor("guess")))
	_, err = wrong.GetStatus(ctx, empty())
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	stream, err := anonymous.Subscribe(ctx, connect.NewRequest(&tapedeckv1.SubscribeRequest{}))
	if err != nil {
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		return
	}
	defer stream.Close()
	assert.False(t, stream.Receive())
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(stream.Err()))
}

func TestPlayerService_LoadAndControl(t *testing.T) {
	_, client, _ := newTestServer(t)
	ctx := context.Background()

	status, err := client.GetStatus(ctx, empty())
	require.NoError(t, err)
	assert.Equal(t, "idle", status.Msg.State.State)
	assert.Equal(t, -1, status.Msg.State.Index)

	_, err = client.NowPlaying(ctx, empty())
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	loaded, err := client.Load(ctx, connect.NewRequest(&tapedeckv1.LoadRequest{Source: tapedeckv1.SourceRandom}))
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Msg.Count)
	assert.Len(t, loaded.Msg.State.Entries, 4)
	assert.Equal(t, "playing", loaded.Msg.State.State)

	next, err := client.Next(ctx, empty())
	require.NoError(t, err)
	assert.Equal(t, 1, next.Msg.State.Index)
	assert.Equal(t, "song-1", next.Msg.State.Current.Track.ID)

	now, err := client.NowPlaying(ctx, empty())
	require.NoError(t, err)
	assert.Equal(t, "song-1", now.Msg.Entry.Track.ID)
	assert.Equal(t, int64(240000), now.Msg.Entry.Track.DurationMs)

	_, err = client.JumpTo(ctx, connect.NewRequest(&tapedeckv1.JumpToRequest{Index: 9}))
	assert.Equal(t, connect.CodeOutOfRange, connect.CodeOf(err))

	_, err = client.SetRepeat(ctx, connect.NewRequest(&tapedeckv1.SetRepeatRequest{Mode: "forever"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	repeat, err := client.SetRepeat(ctx, connect.NewRequest(&tapedeckv1.SetRepeatRequest{Mode: "all"}))
	require.NoError(t, err)
	assert.Equal(t, "all", repeat.Msg.State.Repeat)

	shuffled, err := client.SetShuffle(ctx, connect.NewRequest(&tapedeckv1.SetShuffleRequest{Enabled: true}))
	require.NoError(t, err)
	assert.True(t, shuffled.Msg.State.Shuffle)
	assert.Equal(t, "song-1", shuffled.Msg.State.Current.Track.ID)

	paused, err := client.Pause(ctx, empty())
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.Msg.State.State)

	played, err := client.Play(ctx, empty())
	require.NoError(t, err)
	assert.True(t, played.Msg.State.Playing)

	prev, err := client.Previous(ctx, empty())
	require.NoError(t, err)
	assert.NotEqual(t, "song-1", prev.Msg.State.Current.Track.ID)

	stopped, err := client.Stop(ctx, empty())
	require.NoError(t, err)
	assert.Equal(t, "idle", stopped.Msg.State.State)
}

func TestPlayerService_LoadErrors(t *testing.T) {
	_, client, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *tapedeckv1.LoadRequest
		code connect.Code
	}{
		{"unknown source", &tapedeckv1.LoadRequest{Source: "radio"}, connect.CodeInvalidArgument},
		{"playlist without id", &tapedeckv1.LoadRequest{Source: tapedeckv1.SourcePlaylist}, connect.CodeInvalidArgument},
		{"negative size", &tapedeckv1.LoadRequest{Source: tapedeckv1.SourceRandom, Size: -1}, connect.CodeInvalidArgument},
		{"server error", &tapedeckv1.LoadRequest{Source: tapedeckv1.SourcePlaylist, ID: "gone"}, connect.CodeFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Load(ctx, connect.NewRequest(tt.req))
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}

	album, err := client.Load(ctx, connect.NewRequest(&tapedeckv1.LoadRequest{Source: tapedeckv1.SourceAlbum, ID: "al"}))
	require.NoError(t, err)
	assert.Equal(t, 1, album.Msg.Count)
}

func TestPlayerService_Subscribe(t *testing.T) {
	svc, client, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Subscribe(ctx, connect.NewRequest(&tapedeckv1.SubscribeRequest{}))
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial state: %v", stream.Err())
	initial := stream.Msg()
	assert.Equal(t, tapedeckv1.NotificationInitialState, initial.Type)
	assert.Equal(t, "idle", initial.State.State)

	require.Eventually(t, func() bool {
		return svc.Notifications().SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, err = client.Load(ctx, connect.NewRequest(&tapedeckv1.LoadRequest{Source: tapedeckv1.SourceRandom, Size: 2}))
	require.NoError(t, err)

	require.True(t, stream.Receive())
	loaded := stream.Msg()
	assert.Equal(t, tapedeckv1.NotificationQueueLoaded, loaded.Type)
	assert.Greater(t, loaded.SequenceNo, initial.SequenceNo)
	assert.Len(t, loaded.State.Entries, 2)

	require.True(t, stream.Receive())
	assert.Equal(t, tapedeckv1.NotificationTrackChanged, stream.Msg().Type)
}
