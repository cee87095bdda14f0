package connect

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	tapedeckv1 "github.com/osa030/tapedeck/internal/api/tapedeckv1"
	"github.com/osa030/tapedeck/internal/api/tapedeckv1/tapedeckv1connect"
	"github.com/osa030/tapedeck/internal/app/player"
)

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player *player.Service
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(p *player.Service) *PlayerService {
	return &PlayerService{player: p}
}

// Ensure PlayerService implements the interface.
var _ tapedeckv1connect.PlayerServiceHandler = (*PlayerService)(nil)

// Load replaces the queue from a library source.
func (s *PlayerService) Load(
	ctx context.Context,
	req *connect.Request[tapedeckv1.LoadRequest],
) (*connect.Response[tapedeckv1.LoadResponse], error) {
	msg := req.Msg
	if (msg.Source == tapedeckv1.SourcePlaylist || msg.Source == tapedeckv1.SourceAlbum) && msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("%s id is required", msg.Source))
	}
	if msg.Size < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("size must not be negative"))
	}

	result, err := s.player.Load(ctx, msg.Source, msg.ID, msg.Size, msg.Shuffle)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&tapedeckv1.LoadResponse{
		Count:    result.Count,
		Rejected: result.Rejected,
		State:    tapedeckv1.FromSnapshot(s.player.Status(), true),
	}), nil
}

// Play resumes playback.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.Play())
}

// Pause pauses playback.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.Pause())
}

// Next skips forward.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.Next())
}

// Previous skips back.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.Previous())
}

// JumpTo seeks to a queue index.
func (s *PlayerService) JumpTo(
	ctx context.Context,
	req *connect.Request[tapedeckv1.JumpToRequest],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.JumpTo(req.Msg.Index))
}

// SetRepeat sets the repeat mode.
func (s *PlayerService) SetRepeat(
	ctx context.Context,
	req *connect.Request[tapedeckv1.SetRepeatRequest],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.SetRepeat(req.Msg.Mode))
}

// SetShuffle turns shuffle on or off.
func (s *PlayerService) SetShuffle(
	ctx context.Context,
	req *connect.Request[tapedeckv1.SetShuffleRequest],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.SetShuffle(req.Msg.Enabled))
}

// Stop clears the queue.
func (s *PlayerService) Stop(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(s.player.Stop())
}

// GetStatus returns the full player state.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.StateResponse], error) {
	return s.stateAfter(nil)
}

// NowPlaying describes the current entry.
func (s *PlayerService) NowPlaying(
	ctx context.Context,
	req *connect.Request[tapedeckv1.Empty],
) (*connect.Response[tapedeckv1.NowPlayingResponse], error) {
	entry, snap, err := s.player.NowPlaying()
	if err != nil {
		return nil, toConnectError(err)
	}

	e := tapedeckv1.FromEntry(entry)
	return connect.NewResponse(&tapedeckv1.NowPlayingResponse{
		Entry:      &e,
		Playing:    snap.Playing,
		Progress:   snap.Progress,
		PositionMs: snap.Position.Milliseconds(),
	}), nil
}

// Subscribe streams notifications, starting with the current state.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[tapedeckv1.SubscribeRequest],
	stream *connect.ServerStream[tapedeckv1.Notification],
) error {
	manager := s.player.Notifications()

	initial := &tapedeckv1.Notification{
		Type:       tapedeckv1.NotificationInitialState,
		SequenceNo: manager.NextSequenceNo(),
		Timestamp:  time.Now(),
		State:      tapedeckv1.FromSnapshot(s.player.Status(), true),
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	subscriptionID := manager.Subscribe(stream, req.Msg.WithProgress)
	defer manager.Unsubscribe(subscriptionID)

	select {
	case <-ctx.Done():
	case <-s.player.Done():
	}
	return nil
}

func (s *PlayerService) stateAfter(err error) (*connect.Response[tapedeckv1.StateResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&tapedeckv1.StateResponse{
		State: tapedeckv1.FromSnapshot(s.player.Status(), true),
	}), nil
}
