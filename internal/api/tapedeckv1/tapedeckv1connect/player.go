// Package tapedeckv1connect wires PlayerService onto Connect handlers and clients.
package tapedeckv1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	tapedeckv1 "github.com/osa030/tapedeck/internal/api/tapedeckv1"
)

// PlayerServiceName is the fully-qualified name of the PlayerService service.
const PlayerServiceName = "tapedeck.v1.PlayerService"

// Procedure paths.
const (
	PlayerServiceLoadProcedure       = "/tapedeck.v1.PlayerService/Load"
	PlayerServicePlayProcedure       = "/tapedeck.v1.PlayerService/Play"
	PlayerServicePauseProcedure      = "/tapedeck.v1.PlayerService/Pause"
	PlayerServiceNextProcedure       = "/tapedeck.v1.PlayerService/Next"
	PlayerServicePreviousProcedure   = "/tapedeck.v1.PlayerService/Previous"
	PlayerServiceJumpToProcedure     = "/tapedeck.v1.PlayerService/JumpTo"
	PlayerServiceSetRepeatProcedure  = "/tapedeck.v1.PlayerService/SetRepeat"
	PlayerServiceSetShuffleProcedure = "/tapedeck.v1.PlayerService/SetShuffle"
	PlayerServiceStopProcedure       = "/tapedeck.v1.PlayerService/Stop"
	PlayerServiceGetStatusProcedure  = "/tapedeck.v1.PlayerService/GetStatus"
	PlayerServiceNowPlayingProcedure = "/tapedeck.v1.PlayerService/NowPlaying"
	PlayerServiceSubscribeProcedure  = "/tapedeck.v1.PlayerService/Subscribe"
)

type (
	empty = tapedeckv1.Empty
	state = tapedeckv1.StateResponse
)

// PlayerServiceHandler is implemented by the server.
type PlayerServiceHandler interface {
	Load(context.Context, *connect.Request[tapedeckv1.LoadRequest]) (*connect.Response[tapedeckv1.LoadResponse], error)
	Play(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	Pause(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	Next(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	Previous(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	JumpTo(context.Context, *connect.Request[tapedeckv1.JumpToRequest]) (*connect.Response[state], error)
	SetRepeat(context.Context, *connect.Request[tapedeckv1.SetRepeatRequest]) (*connect.Response[state], error)
	SetShuffle(context.Context, *connect.Request[tapedeckv1.SetShuffleRequest]) (*connect.Response[state], error)
	Stop(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	GetStatus(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	NowPlaying(context.Context, *connect.Request[empty]) (*connect.Response[tapedeckv1.NowPlayingResponse], error)
	Subscribe(context.Context, *connect.Request[tapedeckv1.SubscribeRequest], *connect.ServerStream[tapedeckv1.Notification]) error
}

// NewPlayerServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewPlayerServiceHandler(svc PlayerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(tapedeckv1.Codec{})}, opts...)

	handlers := map[string]http.Handler{
		PlayerServiceLoadProcedure:       connect.NewUnaryHandler(PlayerServiceLoadProcedure, svc.Load, opts...),
		PlayerServicePlayProcedure:       connect.NewUnaryHandler(PlayerServicePlayProcedure, svc.Play, opts...),
		PlayerServicePauseProcedure:      connect.NewUnaryHandler(PlayerServicePauseProcedure, svc.Pause, opts...),
		PlayerServiceNextProcedure:       connect.NewUnaryHandler(PlayerServiceNextProcedure, svc.Next, opts...),
		PlayerServicePreviousProcedure:   connect.NewUnaryHandler(PlayerServicePreviousProcedure, svc.Previous, opts...),
		PlayerServiceJumpToProcedure:     connect.NewUnaryHandler(PlayerServiceJumpToProcedure, svc.JumpTo, opts...),
		PlayerServiceSetRepeatProcedure:  connect.NewUnaryHandler(PlayerServiceSetRepeatProcedure, svc.SetRepeat, opts...),
		PlayerServiceSetShuffleProcedure: connect.NewUnaryHandler(PlayerServiceSetShuffleProcedure, svc.SetShuffle, opts...),
		PlayerServiceStopProcedure:       connect.NewUnaryHandler(PlayerServiceStopProcedure, svc.Stop, opts...),
		PlayerServiceGetStatusProcedure:  connect.NewUnaryHandler(PlayerServiceGetStatusProcedure, svc.GetStatus, opts...),
		PlayerServiceNowPlayingProcedure: connect.NewUnaryHandler(PlayerServiceNowPlayingProcedure, svc.NowPlaying, opts...),
		PlayerServiceSubscribeProcedure:  connect.NewServerStreamHandler(PlayerServiceSubscribeProcedure, svc.Subscribe, opts...),
	}

	return "/" + PlayerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// PlayerServiceClient is a client for PlayerService.
type PlayerServiceClient interface {
	Load(context.Context, *connect.Request[tapedeckv1.LoadRequest]) (*connect.Response[tapedeckv1.LoadResponse], error)
	Play(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	Pause(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	Next(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	Previous(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	JumpTo(context.Context, *connect.Request[tapedeckv1.JumpToRequest]) (*connect.Response[state], error)
	SetRepeat(context.Context, *connect.Request[tapedeckv1.SetRepeatRequest]) (*connect.Response[state], error)
	SetShuffle(context.Context, *connect.Request[tapedeckv1.SetShuffleRequest]) (*connect.Response[state], error)
	Stop(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	GetStatus(context.Context, *connect.Request[empty]) (*connect.Response[state], error)
	NowPlaying(context.Context, *connect.Request[empty]) (*connect.Response[tapedeckv1.NowPlayingResponse], error)
	Subscribe(context.Context, *connect.Request[tapedeckv1.SubscribeRequest]) (*connect.ServerStreamForClient[tapedeckv1.Notification], error)
}

type playerServiceClient struct {
	load       *connect.Client[tapedeckv1.LoadRequest, tapedeckv1.LoadResponse]
	play       *connect.Client[empty, state]
	pause      *connect.Client[empty, state]
	next       *connect.Client[empty, state]
	previous   *connect.Client[empty, state]
	jumpTo     *connect.Client[tapedeckv1.JumpToRequest, state]
	setRepeat  *connect.Client[tapedeckv1.SetRepeatRequest, state]
	setShuffle *connect.Client[tapedeckv1.SetShuffleRequest, state]
	stop       *connect.Client[empty, state]
	getStatus  *connect.Client[empty, state]
	nowPlaying *connect.Client[empty, tapedeckv1.NowPlayingResponse]
	subscribe  *connect.Client[tapedeckv1.SubscribeRequest, tapedeckv1.Notification]
}

// NewPlayerServiceClient constructs a client for PlayerService at baseURL.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(tapedeckv1.Codec{})}, opts...)

	return &playerServiceClient{
		load:       connect.NewClient[tapedeckv1.LoadRequest, tapedeckv1.LoadResponse](httpClient, baseURL+PlayerServiceLoadProcedure, opts...),
		play:       connect.NewClient[empty, state](httpClient, baseURL+PlayerServicePlayProcedure, opts...),
		pause:      connect.NewClient[empty, state](httpClient, baseURL+PlayerServicePauseProcedure, opts...),
		next:       connect.NewClient[empty, state](httpClient, baseURL+PlayerServiceNextProcedure, opts...),
		previous:   connect.NewClient[empty, state](httpClient, baseURL+PlayerServicePreviousProcedure, opts...),
		jumpTo:     connect.NewClient[tapedeckv1.JumpToRequest, state](httpClient, baseURL+PlayerServiceJumpToProcedure, opts...),
		setRepeat:  connect.NewClient[tapedeckv1.SetRepeatRequest, state](httpClient, baseURL+PlayerServiceSetRepeatProcedure, opts...),
		setShuffle: connect.NewClient[tapedeckv1.SetShuffleRequest, state](httpClient, baseURL+PlayerServiceSetShuffleProcedure, opts...),
		stop:       connect.NewClient[empty, state](httpClient, baseURL+PlayerServiceStopProcedure, opts...),
		getStatus:  connect.NewClient[empty, state](httpClient, baseURL+PlayerServiceGetStatusProcedure, opts...),
		nowPlaying: connect.NewClient[empty, tapedeckv1.NowPlayingResponse](httpClient, baseURL+PlayerServiceNowPlayingProcedure, opts...),
		subscribe:  connect.NewClient[tapedeckv1.SubscribeRequest, tapedeckv1.Notification](httpClient, baseURL+PlayerServiceSubscribeProcedure, opts...),
	}
}

func (c *playerServiceClient) Load(ctx context.Context, req *connect.Request[tapedeckv1.LoadRequest]) (*connect.Response[tapedeckv1.LoadResponse], error) {
	return c.load.CallUnary(ctx, req)
}

func (c *playerServiceClient) Play(ctx context.Context, req *connect.Request[empty]) (*connect.Response[state], error) {
	return c.play.CallUnary(ctx, req)
}

func (c *playerServiceClient) Pause(ctx context.Context, req *connect.Request[empty]) (*connect.Response[state], error) {
	return c.pause.CallUnary(ctx, req)
}

func (c *playerServiceClient) Next(ctx context.Context, req *connect.Request[empty]) (*connect.Response[state], error) {
	return c.next.CallUnary(ctx, req)
}

func (c *playerServiceClient) Previous(ctx context.Context, req *connect.Request[empty]) (*connect.Response[state], error) {
	return c.previous.CallUnary(ctx, req)
}

func (c *playerServiceClient) JumpTo(ctx context.Context, req *connect.Request[tapedeckv1.JumpToRequest]) (*connect.Response[state], error) {
	return c.jumpTo.CallUnary(ctx, req)
}

func (c *playerServiceClient) SetRepeat(ctx context.Context, req *connect.Request[tapedeckv1.SetRepeatRequest]) (*connect.Response[state], error) {
	return c.setRepeat.CallUnary(ctx, req)
}

func (c *playerServiceClient) SetShuffle(ctx context.Context, req *connect.Request[tapedeckv1.SetShuffleRequest]) (*connect.Response[state], error) {
	return c.setShuffle.CallUnary(ctx, req)
}

func (c *playerServiceClient) Stop(ctx context.Context, req *connect.Request[empty]) (*connect.Response[state], error) {
	return c.stop.CallUnary(ctx, req)
}

func (c *playerServiceClient) GetStatus(ctx context.Context, req *connect.Request[empty]) (*connect.Response[state], error) {
	return c.getStatus.CallUnary(ctx, req)
}

func (c *playerServiceClient) NowPlaying(ctx context.Context, req *connect.Request[empty]) (*connect.Response[tapedeckv1.NowPlayingResponse], error) {
	return c.nowPlaying.CallUnary(ctx, req)
}

func (c *playerServiceClient) Subscribe(ctx context.Context, req *connect.Request[tapedeckv1.SubscribeRequest]) (*connect.ServerStreamForClient[tapedeckv1.Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
