// Package engine provides media engines for the playback controller.
package engine

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// DefaultTick is the wall-clock resolution of track end timers.
const DefaultTick = 100 * time.Millisecond

// ClockOptions configures a Clock engine.
type ClockOptions struct {
	Tick time.Duration // Timer resolution, DefaultTick when zero
}

// Clock is a headless media engine. It renders nothing and only keeps
// wall-clock time for the current entry, advancing when a track's duration
// has elapsed.
//
// Commanded Play, Pause and LoadPlaylist do not echo PlayingChanged; only
// the stop at the end of the list is reported.
type Clock struct {
	mu sync.Mutex

	entries   []track.Entry
	index     int
	playing   bool
	offset    time.Duration // Position when playback last resumed
	resumedAt time.Time

	timerCancel func()
	generation  uint64 // Invalidates timers that fired after being replaced

	tick time.Duration

	// Events are queued without bound and pumped to out so that commands
	// never block on the consumer.
	pending []playback.EngineEvent
	notify  chan struct{}
	out     chan playback.EngineEvent

	ctx    context.Context
	cancel context.CancelFunc
}

var _ playback.Engine = (*Clock)(nil)

// NewClock creates a Clock engine and starts its event pump.
func NewClock(opts ClockOptions) *Clock {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Clock{
		tick:   opts.Tick,
		notify: make(chan struct{}, 1),
		out:    make(chan playback.EngineEvent),
		ctx:    ctx,
		cancel: cancel,
	}
	go c.pump()
	return c
}

// Events returns the engine event channel.
func (c *Clock) Events() <-chan playback.EngineEvent {
	return c.out
}

// LoadPlaylist replaces the entry list and positions it at index 0, paused.
func (c *Clock) LoadPlaylist(entries []track.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.entries = append([]track.Entry(nil), entries...)
	c.index = 0
	c.offset = 0
	c.playing = false
	zlog.Debug().Msgf("clock: loaded %d entries", len(entries))
}

// Play starts or resumes the current entry.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing || len(c.entries) == 0 {
		return
	}
	c.playing = true
	c.resumedAt = toWallTime(time.Now())
	c.armTimerLocked()
}

// Pause freezes the position of the current entry.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}
	c.offset = c.positionLocked()
	c.playing = false
	c.stopTimerLocked()
}

// SeekToIndex moves to the start of the entry at index i.
func (c *Clock) SeekToIndex(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.entries) {
		zlog.Warn().Msgf("clock: seek to %d out of range (len %d)", i, len(c.entries))
		return
	}
	changed := i != c.index
	c.index = i
	c.offset = 0
	c.resumedAt = toWallTime(time.Now())
	if c.playing {
		c.armTimerLocked()
	}
	if changed {
		c.emitLocked(playback.Transition(c.entries[i], playback.ReasonSeek))
	}
}

// CurrentPosition returns the elapsed time within the current entry.
func (c *Clock) CurrentPosition() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// SetShuffleEnabled is accepted for interface compatibility. The clock never shuffles.
func (c *Clock) SetShuffleEnabled(enabled bool) {
	if enabled {
		zlog.Warn().Msg("clock: native shuffle requested; ignoring")
	}
}

// Close stops timers and the event pump.
func (c *Clock) Close() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
	c.cancel()
}

func (c *Clock) positionLocked() time.Duration {
	if len(c.entries) == 0 {
		return 0
	}
	pos := c.offset
	if c.playing {
		pos += toWallTime(time.Now()).Sub(c.resumedAt)
	}
	if d := c.entries[c.index].Track.Duration; pos > d {
		pos = d
	}
	return pos
}

// onTrackEnd advances to the next entry or reports the end of the list.
func (c *Clock) onTrackEnd(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || !c.playing {
		return
	}
	c.timerCancel = nil

	if c.index+1 < len(c.entries) {
		c.index++
		c.offset = 0
		c.resumedAt = toWallTime(time.Now())
		c.armTimerLocked()
		c.emitLocked(playback.Transition(c.entries[c.index], playback.ReasonAuto))
		return
	}

	c.offset = c.entries[c.index].Track.Duration
	c.playing = false
	c.emitLocked(playback.PlayingChanged(false))
	c.emitLocked(playback.Ended())
}

func (c *Clock) armTimerLocked() {
	c.stopTimerLocked()
	remaining := c.entries[c.index].Track.Duration - c.positionLocked()
	generation := c.generation
	c.timerCancel = c.startWallClockTimer(remaining, func() {
		c.onTrackEnd(generation)
	})
}

func (c *Clock) stopTimerLocked() {
	c.generation++
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
}

// startWallClockTimer calls callback once duration has elapsed on the wall clock.
func (c *Clock) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(c.ctx)
	endTime := toWallTime(time.Now()).Add(duration)

	go func() {
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

func (c *Clock) emitLocked(ev playback.EngineEvent) {
	c.pending = append(c.pending, ev)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// pump delivers queued events in order.
func (c *Clock) pump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.notify:
		}

		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, ev := range batch {
			select {
			case c.out <- ev:
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// toWallTime returns the time with the monotonic clock reading stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
