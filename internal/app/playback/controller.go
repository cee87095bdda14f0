package playback

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/playlist"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// Errors
var (
	ErrNotReady         = errors.New("media engine not attached")
	ErrNoActiveTrack    = errors.New("no active track")
	ErrEmptyPlaylist    = errors.New("playlist is empty")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrAlreadyAttached  = errors.New("media engine already attached")
	ErrControllerClosed = errors.New("controller closed")
)

// DefaultPositionInterval is the position poll interval used when Config leaves it unset.
const DefaultPositionInterval = 500 * time.Millisecond

// maxPendingSeeks bounds the seeks awaiting their engine echo.
const maxPendingSeeks = 32

// Config holds controller configuration.
type Config struct {
	PositionInterval time.Duration // Sleep between position polls
	Repeat           RepeatMode    // Initial repeat mode
	Seed             int64         // Shuffle seed, 0 seeds from crypto/rand
}

// Controller owns the playback queue: ordering, shuffle, repeat, transition
// resolution and position tracking. The media engine only renders what the
// controller tells it to.
type Controller struct {
	mu sync.RWMutex

	engine   Engine
	original *playlist.Playlist // Load order
	order    *playlist.Playlist // Play order (original or a fixed permutation of it)
	index    int
	shuffle  bool
	repeat   RepeatMode
	playing  bool
	ended    bool

	// Keys of entries the controller seeked the engine to, oldest first.
	// The engine reports each as a ReasonSeek transition.
	pendingSeeks []string

	// Published by the position loop; read without the controller lock
	progress atomic.Uint64 // math.Float64bits
	position atomic.Int64  // time.Duration
	polling  atomic.Bool   // Position loop in flight

	rng    *rand.Rand
	config Config

	subsMu sync.RWMutex
	subs   map[string]chan Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a new playback controller. It is not ready until Attach is called.
func NewController(config Config) *Controller {
	if config.PositionInterval <= 0 {
		config.PositionInterval = DefaultPositionInterval
	}
	seed := config.Seed
	if seed == 0 {
		seed = cryptoSeed()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		index:  -1,
		repeat: config.Repeat,
		rng:    rand.New(rand.NewSource(seed)),
		config: config,
		subs:   make(map[string]chan Event),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Attach connects the media engine and starts consuming its events.
func (c *Controller) Attach(engine Engine) error {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.engine != nil {
		c.mu.Unlock()
		return ErrAlreadyAttached
	}
	c.engine = engine
	engine.SetShuffleEnabled(false)
	c.mu.Unlock()

	go c.eventLoop(engine.Events())
	zlog.Info().Msg("media engine attached")
	return nil
}

// Ready reports whether a media engine is attached.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine != nil
}

// Load replaces the playlist and starts playback at the first entry of the play order.
// An empty list clears the queue without starting playback.
func (c *Controller) Load(tracks []track.Track, startShuffled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}

	c.original = playlist.New(tracks)
	c.shuffle = startShuffled
	c.ended = false
	c.pendingSeeks = nil
	c.publishProgress(0, 0)

	if c.original.IsEmpty() {
		c.order = c.original
		c.index = -1
		c.playing = false
		c.engine.Pause()
		c.engine.LoadPlaylist(nil)
		c.emitLocked(EventQueueLoaded)
		return nil
	}

	if startShuffled {
		c.order = c.original.Shuffled(c.rng, "")
	} else {
		c.order = c.original
	}
	c.index = 0

	c.engine.SetShuffleEnabled(false)
	c.engine.LoadPlaylist(c.order.Entries())
	c.engine.Play()
	c.playing = true
	c.startPositionLoopLocked()

	zlog.Info().Msgf("playlist loaded: %d tracks (shuffle=%t)", c.order.Len(), startShuffled)
	c.emitLocked(EventQueueLoaded)
	c.emitLocked(EventTrackChanged)
	return nil
}

// Play resumes playback. Playing after the queue ended restarts the current entry.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}
	if c.order.IsEmpty() || (c.playing && !c.ended) {
		return nil
	}

	if c.ended {
		c.ended = false
		c.publishProgress(0, 0)
		c.engine.SeekToIndex(c.index)
	}
	c.engine.Play()
	c.playing = true
	c.startPositionLoopLocked()
	c.emitLocked(EventStateChanged)
	return nil
}

// Pause pauses playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}
	if !c.playing {
		return nil
	}

	c.engine.Pause()
	c.playing = false
	c.emitLocked(EventStateChanged)
	return nil
}

// Next moves one step forward according to the repeat mode.
// At the last entry without wrap-around the queue ends.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}
	if c.order.IsEmpty() {
		return nil
	}

	next, ok := forwardIndex(c.index, c.order.Len(), c.repeat)
	if !ok {
		c.markEndedLocked()
		return nil
	}
	c.seekLocked(next)
	return nil
}

// Previous moves one step back according to the repeat mode.
// At index 0 without wrap-around it does nothing.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}
	if c.order.IsEmpty() {
		return nil
	}

	prev, ok := backwardIndex(c.index, c.order.Len(), c.repeat)
	if !ok {
		return nil
	}
	c.seekLocked(prev)
	return nil
}

// JumpTo moves to the entry at index i of the play order.
func (c *Controller) JumpTo(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}
	if i < 0 || i >= c.order.Len() {
		return errors.Wrapf(ErrIndexOutOfRange, "jump to %d (len %d)", i, c.order.Len())
	}
	c.seekLocked(i)
	return nil
}

// SetRepeatMode changes the repeat mode. Takes effect on the next step.
func (c *Controller) SetRepeatMode(mode RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repeat == mode {
		return
	}
	c.repeat = mode
	zlog.Debug().Msgf("repeat mode: %s", mode)
	c.emitLocked(EventModeChanged)
}

// SetShuffle switches between load order and a fresh permutation.
// The current entry stays current in both directions, but the engine reloads
// its list, so the entry restarts from the beginning.
func (c *Controller) SetShuffle(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}
	if c.shuffle == on {
		return nil
	}
	c.shuffle = on

	current, ok := c.order.At(c.index)
	if !ok {
		c.emitLocked(EventModeChanged)
		return nil
	}

	if on {
		c.order = c.original.Shuffled(c.rng, current.Key)
	} else {
		c.order = c.original
	}
	c.index = c.order.IndexOf(current.Key)
	c.publishProgress(0, 0)

	c.engine.SetShuffleEnabled(false)
	c.engine.LoadPlaylist(c.order.Entries())
	// The reload puts the engine at index 0
	if c.index != 0 {
		c.expectSeekLocked(current.Key)
	}
	c.engine.SeekToIndex(c.index)
	if c.playing {
		c.engine.Play()
	}

	zlog.Debug().Msgf("shuffle=%t, current index %d", on, c.index)
	c.emitLocked(EventModeChanged)
	return nil
}

// Stop clears the playlist and pauses the engine.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return ErrNotReady
	}

	c.engine.Pause()
	c.engine.LoadPlaylist(nil)
	c.original = nil
	c.order = nil
	c.index = -1
	c.playing = false
	c.ended = false
	c.pendingSeeks = nil
	c.publishProgress(0, 0)

	zlog.Info().Msg("playback stopped")
	c.emitLocked(EventQueueLoaded)
	return nil
}

// CurrentTrack returns the current entry.
func (c *Controller) CurrentTrack() (track.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.order.At(c.index)
	if !ok {
		return track.Entry{}, ErrNoActiveTrack
	}
	return e, nil
}

// CurrentPosition returns the last position observed from the engine.
func (c *Controller) CurrentPosition() time.Duration {
	return time.Duration(c.position.Load())
}

// Progress returns the last published position/duration ratio.
func (c *Controller) Progress() float64 {
	return loadFloat(&c.progress)
}

// Snapshot returns a copy of the playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Entries:  c.order.Entries(),
		Index:    c.index,
		Shuffle:  c.shuffle,
		Repeat:   c.repeat,
		Playing:  c.playing,
		Ended:    c.ended,
		Progress: c.Progress(),
		Position: c.CurrentPosition(),
	}
	if e, ok := c.order.At(c.index); ok {
		s.Current = &e
	}
	return s
}

// HandleEngineEvent applies one engine event to the playback state.
func (c *Controller) HandleEngineEvent(ev EngineEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return
	}
	c.engine.SetShuffleEnabled(false)

	switch ev.Type {
	case EngineTransition:
		c.onTransitionLocked(ev.Entry, ev.Reason)
	case EnginePlayingChanged:
		c.onPlayingChangedLocked(ev.Playing)
	case EngineEnded:
		c.onEngineEndedLocked()
	}
}

// onTransitionLocked resolves an engine-driven transition. A seek the controller
// issued itself is acknowledged and dropped, since the index already moved.
// A destination equal to the current entry is a no-op.
// Otherwise the destination is compared with the entry one step forward: a match
// is a forward step, anything else is treated as a backward step. A multi-step
// seek issued directly on the engine is misclassified as backward.
func (c *Controller) onTransitionLocked(dest track.Entry, reason TransitionReason) {
	n := c.order.Len()
	if n == 0 {
		return
	}
	if reason == ReasonSeek && c.ackSeekLocked(dest.Key) {
		return
	}
	current, _ := c.order.At(c.index)
	if current.Same(dest) {
		return
	}

	if reason == ReasonAuto && c.repeat == RepeatOne {
		zlog.Debug().Msgf("repeat one: restarting %s", current.Track.DisplayName())
		c.engine.SeekToIndex(c.index)
		return
	}

	if fwd, ok := forwardIndex(c.index, n, c.repeat); ok {
		if e, _ := c.order.At(fwd); e.Same(dest) {
			c.index = fwd
			c.ended = false
			c.publishProgress(0, 0)
			c.emitLocked(EventTrackChanged)
			return
		}
	}

	bwd, ok := backwardIndex(c.index, n, c.repeat)
	if !ok {
		zlog.Warn().Msgf("transition to %s (%s) not resolvable from index %d", dest.Track.DisplayName(), reason, c.index)
		return
	}
	if e, _ := c.order.At(bwd); !e.Same(dest) {
		zlog.Warn().Msgf("transition to %s (%s) is not adjacent to index %d; treating as previous", dest.Track.DisplayName(), reason, c.index)
	}
	c.index = bwd
	c.ended = false
	c.publishProgress(0, 0)
	c.emitLocked(EventTrackChanged)
}

func (c *Controller) onPlayingChangedLocked(playing bool) {
	if c.playing == playing {
		return
	}
	c.playing = playing
	if playing {
		c.ended = false
		c.startPositionLoopLocked()
	}
	c.emitLocked(EventStateChanged)
}

// onEngineEndedLocked handles the engine running off the end of its list.
// Wrap-around is applied here because the engine never repeats on its own.
func (c *Controller) onEngineEndedLocked() {
	if c.order.IsEmpty() {
		return
	}
	switch c.repeat {
	case RepeatAll:
		c.seekLocked(0)
		c.engine.Play()
		c.playing = true
		c.startPositionLoopLocked()
	case RepeatOne:
		c.engine.SeekToIndex(c.index)
		c.engine.Play()
		c.playing = true
		c.startPositionLoopLocked()
	default:
		c.markEndedLocked()
	}
}

func (c *Controller) seekLocked(i int) {
	changed := i != c.index
	c.index = i
	c.ended = false
	c.publishProgress(0, 0)
	if changed {
		if e, ok := c.order.At(i); ok {
			c.expectSeekLocked(e.Key)
		}
	}
	c.engine.SeekToIndex(i)
	if changed {
		c.emitLocked(EventTrackChanged)
	}
}

// expectSeekLocked records a seek whose ReasonSeek echo is still to come.
func (c *Controller) expectSeekLocked(key string) {
	if len(c.pendingSeeks) == maxPendingSeeks {
		c.pendingSeeks = c.pendingSeeks[1:]
	}
	c.pendingSeeks = append(c.pendingSeeks, key)
}

// ackSeekLocked consumes the echo for key along with any older seeks whose
// echo never arrived. It reports false when no seek to key is pending.
func (c *Controller) ackSeekLocked(key string) bool {
	if key == "" {
		return false
	}
	for i, k := range c.pendingSeeks {
		if k == key {
			c.pendingSeeks = c.pendingSeeks[i+1:]
			return true
		}
	}
	return false
}

func (c *Controller) markEndedLocked() {
	if c.ended {
		return
	}
	c.ended = true
	c.playing = false
	c.engine.Pause()
	if e, ok := c.order.At(c.index); ok {
		c.publishProgress(1.0, e.Track.Duration)
	}
	zlog.Info().Msg("queue ended")
	c.emitLocked(EventQueueEnded)
}

// Subscribe registers a subscriber and returns its ID and event channel.
// Events are dropped for a subscriber whose buffer is full.
func (c *Controller) Subscribe() (string, <-chan Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)
	if c.ctx.Err() != nil {
		close(ch)
		return id, ch
	}
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Controller) Unsubscribe(id string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// emitLocked sends an event to every subscriber without blocking.
func (c *Controller) emitLocked(t EventType) {
	c.broadcast(Event{Type: t, Snapshot: c.snapshotLocked()})
}

func (c *Controller) broadcast(e Event) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for id, ch := range c.subs {
		select {
		case ch <- e:
		default:
			zlog.Debug().Msgf("subscriber %s is full, dropping %s", id, e.Type)
		}
	}
}

// Close stops the event loop and closes subscriber channels.
func (c *Controller) Close() {
	c.mu.Lock()
	attached := c.engine != nil
	c.cancel()
	c.mu.Unlock()

	if attached {
		<-c.done
	}

	c.subsMu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.subsMu.Unlock()
}

// eventLoop is the single consumer of engine events.
func (c *Controller) eventLoop(events <-chan EngineEvent) {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				zlog.Warn().Msg("engine event channel closed")
				return
			}
			c.HandleEngineEvent(ev)
		}
	}
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
