package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/player"
	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/app/scheduler"
	"github.com/osa030/tapedeck/internal/infra/subsonic"
)

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, playback.ErrNotReady),
		errors.Is(err, playback.ErrControllerClosed),
		errors.Is(err, player.ErrServiceClosed),
		errors.Is(err, scheduler.ErrClosed):
		code = connect.CodeUnavailable
	case errors.Is(err, playback.ErrNoActiveTrack),
		errors.Is(err, playback.ErrEmptyPlaylist):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, playback.ErrIndexOutOfRange):
		code = connect.CodeOutOfRange
	case errors.Is(err, playback.ErrUnknownRepeatMode),
		errors.Is(err, player.ErrUnknownSource):
		code = connect.CodeInvalidArgument
	case errors.Is(err, scheduler.ErrAlreadyEnqueued):
		code = connect.CodeAlreadyExists
	case errors.Is(err, subsonic.ErrAPI):
		code = connect.CodeFailedPrecondition
	}

	if code == connect.CodeInternal {
		zlog.Error().Msgf("rpc failed: %+v", err)
	}
	return connect.NewError(code, err)
}
