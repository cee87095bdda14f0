package playback

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// startPositionLoopLocked starts the position loop unless one is already in flight.
func (c *Controller) startPositionLoopLocked() {
	if !c.polling.CompareAndSwap(false, true) {
		return
	}
	go c.positionLoop()
}

// positionLoop polls the engine position while playing. It only publishes
// progression and never touches the index.
func (c *Controller) positionLoop() {
	for {
		c.pollPosition()
		c.polling.Store(false)

		// Playback may have resumed between the last poll and releasing the flag.
		if !c.shouldPoll() || !c.polling.CompareAndSwap(false, true) {
			return
		}
	}
}

func (c *Controller) pollPosition() {
	ticker := time.NewTicker(c.config.PositionInterval)
	defer ticker.Stop()

	for {
		c.mu.RLock()
		engine := c.engine
		playing, ended := c.playing, c.ended
		current, hasCurrent := c.order.At(c.index)
		c.mu.RUnlock()

		if !hasCurrent {
			return
		}
		if ended {
			c.publishEnded()
			return
		}
		if !playing || engine == nil {
			return
		}

		pos := engine.CurrentPosition()
		if c.publishIfCurrent(current, pos) {
			c.broadcastProgress()
		}

		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// publishIfCurrent publishes pos unless the entry changed or playback stopped
// while the engine was being polled.
func (c *Controller) publishIfCurrent(polled track.Entry, pos time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	current, ok := c.order.At(c.index)
	if !ok || !current.Same(polled) || !c.playing || c.ended {
		return false
	}
	c.publishProgress(ratio(pos, polled.Track.Duration), pos)
	return true
}

func (c *Controller) publishEnded() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if current, ok := c.order.At(c.index); ok && c.ended {
		c.publishProgress(1.0, current.Track.Duration)
	}
}

func (c *Controller) shouldPoll() bool {
	if c.ctx.Err() != nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playing && !c.ended && !c.order.IsEmpty()
}

func (c *Controller) broadcastProgress() {
	c.mu.RLock()
	e := Event{Type: EventProgress, Snapshot: c.snapshotLocked()}
	c.mu.RUnlock()
	c.broadcast(e)
}

func (c *Controller) publishProgress(progress float64, position time.Duration) {
	c.progress.Store(math.Float64bits(progress))
	c.position.Store(int64(position))
}

func ratio(pos, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	r := float64(pos) / float64(duration)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

func loadFloat(v *atomic.Uint64) float64 {
	return math.Float64frombits(v.Load())
}
