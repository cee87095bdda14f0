// Package player provides the player service: the single owner of the
// playback controller and the components that feed it.
package player

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	tapedeckv1 "github.com/osa030/tapedeck/internal/api/tapedeckv1"
	"github.com/osa030/tapedeck/internal/app/filter"
	"github.com/osa030/tapedeck/internal/app/mix"
	"github.com/osa030/tapedeck/internal/app/notification"
	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/app/scheduler"
	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/config"
	"github.com/osa030/tapedeck/internal/infra/subsonic"
	"github.com/osa030/tapedeck/internal/infra/transport"
)

var (
	ErrServiceClosed = errors.New("player service closed")
	ErrUnknownSource = errors.New("unknown load source")
)

// Library is the streaming server as the service uses it.
type Library interface {
	mix.Library
	FetchPlaylist(ctx context.Context, playlistID string) (*subsonic.Playlist, error)
	FetchAlbum(ctx context.Context, albumID string) (*subsonic.Album, error)
	PingContext(ctx context.Context) error
}

// Options are the components a Service is assembled from.
type Options struct {
	Engine       playback.Engine
	Controller   *playback.Controller
	Library      Library
	Mix          *mix.ProviderChain
	Filters      *filter.Chain
	Notification *notification.Manager

	MixSize       int
	SeedCount     int
	StartShuffled bool

	// Released in reverse order by Close, after the controller.
	Closers []func()
}

// LoadResult reports what a load put in the queue.
type LoadResult struct {
	Count    int
	Rejected map[string]int // mix only, per filter code
}

// Service routes user intents to the controller and relays controller
// events to notification subscribers.
type Service struct {
	engine       playback.Engine
	controller   *playback.Controller
	library      Library
	mix          *mix.ProviderChain
	filters      *filter.Chain
	notification *notification.Manager

	mixSize       int
	seedCount     int
	startShuffled bool
	closers       []func()

	// Serializes loads so two loads cannot interleave their fetch and swap.
	loadMu sync.Mutex

	subID     string
	ctx       context.Context
	cancel    context.CancelFunc
	relayDone chan struct{}
	closeOnce sync.Once
}

// New assembles a Service, attaches the engine and starts the event relay.
func New(opts Options) (*Service, error) {
	if opts.Engine == nil || opts.Controller == nil || opts.Library == nil {
		return nil, errors.New("engine, controller and library are required")
	}
	if opts.Filters == nil {
		opts.Filters = filter.NewChain()
	}
	if opts.Notification == nil {
		opts.Notification = notification.NewManager(notification.DefaultSendTimeout)
	}
	if opts.Mix == nil {
		opts.Mix = mix.NewProviderChain([]mix.ProviderWithMetadata{
			{Provider: mix.NewRandomProvider(opts.Library), DisplayName: "Random"},
		})
	}
	if opts.MixSize <= 0 {
		opts.MixSize = 50
	}

	if err := opts.Controller.Attach(opts.Engine); err != nil {
		return nil, errors.Wrap(err, "failed to attach media engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		engine:        opts.Engine,
		controller:    opts.Controller,
		library:       opts.Library,
		mix:           opts.Mix,
		filters:       opts.Filters,
		notification:  opts.Notification,
		mixSize:       opts.MixSize,
		seedCount:     opts.SeedCount,
		startShuffled: opts.StartShuffled,
		closers:       opts.Closers,
		ctx:           ctx,
		cancel:        cancel,
		relayDone:     make(chan struct{}),
	}

	id, events := s.controller.Subscribe()
	s.subID = id
	go s.relay(events)

	return s, nil
}

// Build creates every component from configuration: HTTP transport, request
// scheduler, streaming server client, mix providers, filters and controller.
func Build(ctx context.Context, cfg *config.Config, engine playback.Engine) (*Service, error) {
	httpTransport, err := transport.New(transport.Config{
		BaseURL: cfg.Subsonic.URL,
		Timeout: cfg.SubsonicTimeout(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transport")
	}
	sched := scheduler.New(httpTransport, scheduler.Config{MaxConcurrent: cfg.Scheduler.MaxConcurrent})

	closers := []func(){httpTransport.Close, sched.Close}
	fail := func(err error) (*Service, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	library, err := subsonic.New(subsonic.Config{
		URL:        cfg.Subsonic.URL,
		Username:   cfg.Subsonic.Username,
		Password:   cfg.Subsonic.Password,
		Client:     cfg.Subsonic.Client,
		APIVersion: cfg.Subsonic.APIVersion,
	}, sched)
	if err != nil {
		return fail(errors.Wrap(err, "failed to create subsonic client"))
	}

	chain, err := mix.NewProviderChainFromConfig(ctx, cfg, library)
	if err != nil {
		return fail(errors.Wrap(err, "failed to create mix provider chain"))
	}

	filters, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		return fail(errors.Wrap(err, "failed to create filter chain"))
	}

	repeat, err := playback.ParseRepeatMode(cfg.Playback.Repeat)
	if err != nil {
		return fail(err)
	}
	controller := playback.NewController(playback.Config{
		PositionInterval: cfg.PositionInterval(),
		Repeat:           repeat,
	})

	return New(Options{
		Engine:        engine,
		Controller:    controller,
		Library:       library,
		Mix:           chain,
		Filters:       filters,
		Notification:  notification.NewManager(notification.DefaultSendTimeout),
		MixSize:       cfg.Mix.Size,
		SeedCount:     cfg.Mix.SeedCount,
		StartShuffled: cfg.Playback.StartShuffled,
		Closers:       closers,
	})
}

// Notifications returns the notification manager.
func (s *Service) Notifications() *notification.Manager {
	return s.notification
}

// Done is closed when the service shuts down.
func (s *Service) Done() <-chan struct{} {
	return s.ctx.Done()
}

// StartShuffled reports the configured default for loads.
func (s *Service) StartShuffled() bool {
	return s.startShuffled
}

// Ping checks that the streaming server answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.library.PingContext(ctx)
}

// Load dispatches a load request by source.
func (s *Service) Load(ctx context.Context, source, id string, size int, shuffled bool) (LoadResult, error) {
	switch source {
	case tapedeckv1.SourceRandom:
		return s.LoadRandom(ctx, size, shuffled)
	case tapedeckv1.SourcePlaylist:
		return s.LoadPlaylist(ctx, id, shuffled)
	case tapedeckv1.SourceAlbum:
		return s.LoadAlbum(ctx, id, shuffled)
	case tapedeckv1.SourceMix:
		return s.InstantMix(ctx, size, shuffled)
	default:
		return LoadResult{}, errors.Wrapf(ErrUnknownSource, "%q", source)
	}
}

// LoadRandom loads random songs from the library.
func (s *Service) LoadRandom(ctx context.Context, size int, shuffled bool) (LoadResult, error) {
	if size <= 0 {
		size = s.mixSize
	}
	return s.load(ctx, "random", shuffled, func(ctx context.Context) ([]track.Track, error) {
		return s.library.FetchRandomSongs(ctx, size)
	})
}

// LoadPlaylist loads a server playlist.
func (s *Service) LoadPlaylist(ctx context.Context, playlistID string, shuffled bool) (LoadResult, error) {
	return s.load(ctx, "playlist "+playlistID, shuffled, func(ctx context.Context) ([]track.Track, error) {
		pl, err := s.library.FetchPlaylist(ctx, playlistID)
		if err != nil {
			return nil, err
		}
		return pl.Tracks, nil
	})
}

// LoadAlbum loads an album.
func (s *Service) LoadAlbum(ctx context.Context, albumID string, shuffled bool) (LoadResult, error) {
	return s.load(ctx, "album "+albumID, shuffled, func(ctx context.Context) ([]track.Track, error) {
		album, err := s.library.FetchAlbum(ctx, albumID)
		if err != nil {
			return nil, err
		}
		return album.Tracks, nil
	})
}

// InstantMix replaces the queue with a mix seeded by the current queue,
// starting at the current entry. Candidates pass through the filter chain.
func (s *Service) InstantMix(ctx context.Context, size int, shuffled bool) (LoadResult, error) {
	if size <= 0 {
		size = s.mixSize
	}

	var rejected map[string]int
	result, err := s.load(ctx, "mix", shuffled, func(ctx context.Context) ([]track.Track, error) {
		seeds := s.seeds()
		exclude := make(map[string]bool, len(seeds))
		for _, t := range seeds {
			exclude[t.ID] = true
		}

		// Over-fetch so filters have room to reject.
		candidates, err := s.mix.GetCandidates(ctx, size*2, seeds, exclude)
		if err != nil {
			return nil, err
		}

		tracks := make([]track.Track, 0, size)
		if len(seeds) > 0 {
			tracks = append(tracks, seeds[0])
		}
		var selected []track.Track
		selected, rejected = s.filters.Apply(ctx, mix.Tracks(candidates), seeds, size-len(tracks))
		return append(tracks, selected...), nil
	})
	result.Rejected = rejected
	return result, err
}

// seeds returns the current entry followed by the entries after it, up to the seed count.
func (s *Service) seeds() []track.Track {
	snap := s.controller.Snapshot()
	if snap.Current == nil {
		return nil
	}
	n := s.seedCount
	if n <= 0 {
		n = 1
	}
	seeds := make([]track.Track, 0, n)
	for i := 0; i < len(snap.Entries) && len(seeds) < n; i++ {
		e := snap.Entries[(snap.Index+i)%len(snap.Entries)]
		seeds = append(seeds, e.Track)
	}
	return seeds
}

func (s *Service) load(ctx context.Context, what string, shuffled bool, fetch func(context.Context) ([]track.Track, error)) (LoadResult, error) {
	if s.ctx.Err() != nil {
		return LoadResult{}, ErrServiceClosed
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	tracks, err := fetch(ctx)
	if err != nil {
		return LoadResult{}, errors.Wrapf(err, "failed to load %s", what)
	}

	playable := tracks[:0:0]
	for _, t := range tracks {
		if t.IsPlayable() {
			playable = append(playable, t)
		}
	}
	if len(playable) == 0 {
		return LoadResult{}, errors.Wrapf(playback.ErrEmptyPlaylist, "nothing to play in %s", what)
	}

	if err := s.controller.Load(playable, shuffled); err != nil {
		return LoadResult{}, err
	}
	zlog.Info().Msgf("loaded %s: %d tracks", what, len(playable))
	return LoadResult{Count: len(playable)}, nil
}

// Play resumes playback.
func (s *Service) Play() error { return s.controller.Play() }

// Pause pauses playback.
func (s *Service) Pause() error { return s.controller.Pause() }

// Next skips forward.
func (s *Service) Next() error { return s.controller.Next() }

// Previous skips back.
func (s *Service) Previous() error { return s.controller.Previous() }

// JumpTo seeks to index i of the play order.
func (s *Service) JumpTo(i int) error { return s.controller.JumpTo(i) }

// Stop clears the queue.
func (s *Service) Stop() error { return s.controller.Stop() }

// SetShuffle toggles shuffle.
func (s *Service) SetShuffle(on bool) error { return s.controller.SetShuffle(on) }

// SetRepeat parses and applies a repeat mode name.
func (s *Service) SetRepeat(mode string) error {
	m, err := playback.ParseRepeatMode(mode)
	if err != nil {
		return err
	}
	s.controller.SetRepeatMode(m)
	return nil
}

// Status returns the playback state.
func (s *Service) Status() playback.Snapshot {
	return s.controller.Snapshot()
}

// NowPlaying returns the current entry together with the state it was read from.
func (s *Service) NowPlaying() (track.Entry, playback.Snapshot, error) {
	snap := s.controller.Snapshot()
	if snap.Current == nil {
		return track.Entry{}, snap, playback.ErrNoActiveTrack
	}
	return *snap.Current, snap, nil
}

// relay forwards controller events until the subscription is closed.
func (s *Service) relay(events <-chan playback.Event) {
	defer close(s.relayDone)
	for ev := range events {
		s.notification.Broadcast(tapedeckv1.NewNotification(ev))
	}
}

// Close shuts the service down in reverse order of construction.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.controller.Unsubscribe(s.subID)
		<-s.relayDone
		s.controller.Close()
		if c, ok := s.engine.(interface{ Close() }); ok {
			c.Close()
		}
		s.notification.Close()
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
		zlog.Info().Msg("player service closed")
	})
}
