package playback

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// fakeEngine records commands and never emits events on its own.
type fakeEngine struct {
	mu       sync.Mutex
	entries  []track.Entry
	index    int
	playing  bool
	shuffle  bool
	position time.Duration
	seeks    []int
	events   chan EngineEvent
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan EngineEvent, 16)}
}

func (f *fakeEngine) LoadPlaylist(entries []track.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
	f.index = 0
	f.position = 0
}

func (f *fakeEngine) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeEngine) SeekToIndex(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = i
	f.seeks = append(f.seeks, i)
}

func (f *fakeEngine) CurrentPosition() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeEngine) SetShuffleEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shuffle = enabled
}

func (f *fakeEngine) Events() <-chan EngineEvent { return f.events }

// brokenEngine panics whenever the controller touches it.
type brokenEngine struct {
	*fakeEngine
}

func (brokenEngine) SetShuffleEnabled(bool) { panic("engine gone") }

func (f *fakeEngine) state() (index int, playing bool, seeks []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index, f.playing, append([]int(nil), f.seeks...)
}

func makeTracks(ids ...string) []track.Track {
	tracks := make([]track.Track, len(ids))
	for i, id := range ids {
		tracks[i] = track.Track{
			ID:        id,
			Title:     "Song " + id,
			Artist:    "Artist",
			Duration:  3 * time.Minute,
			StreamURL: "http://example.invalid/rest/stream?id=" + id,
		}
	}
	return tracks
}

func newReadyController(t *testing.T, repeat RepeatMode) (*Controller, *fakeEngine) {
	t.Helper()
	c := NewController(Config{PositionInterval: 10 * time.Millisecond, Repeat: repeat, Seed: 7})
	e := newFakeEngine()
	require.NoError(t, c.Attach(e))
	t.Cleanup(c.Close)
	return c, e
}

func currentID(t *testing.T, c *Controller) string {
	t.Helper()
	e, err := c.CurrentTrack()
	require.NoError(t, err)
	return e.Track.ID
}

func TestController_NotReady(t *testing.T) {
	c := NewController(Config{})
	defer c.Close()

	tests := []struct {
		name string
		call func() error
	}{
		{"load", func() error { return c.Load(makeTracks("a"), false) }},
		{"play", c.Play},
		{"pause", c.Pause},
		{"next", c.Next},
		{"previous", c.Previous},
		{"jump", func() error { return c.JumpTo(0) }},
		{"shuffle", func() error { return c.SetShuffle(true) }},
		{"stop", c.Stop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrNotReady)
		})
	}
	assert.False(t, c.Ready())
}

func TestController_AttachTwice(t *testing.T) {
	c, _ := newReadyController(t, RepeatOff)
	assert.ErrorIs(t, c.Attach(newFakeEngine()), ErrAlreadyAttached)
	assert.True(t, c.Ready())
}

func TestController_NoActiveTrack(t *testing.T) {
	c, _ := newReadyController(t, RepeatOff)

	_, err := c.CurrentTrack()
	assert.True(t, errors.Is(err, ErrNoActiveTrack))

	require.NoError(t, c.Load(makeTracks("a"), false))
	require.NoError(t, c.Stop())
	_, err = c.CurrentTrack()
	assert.ErrorIs(t, err, ErrNoActiveTrack)
}

func TestController_LoadEmpty(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)

	require.NoError(t, c.Load(nil, false))

	s := c.Snapshot()
	assert.Equal(t, -1, s.Index)
	assert.Nil(t, s.Current)
	assert.False(t, s.Playing)
	assert.False(t, s.Ended)
	assert.Equal(t, StateIdle, s.State())

	_, playing, _ := e.state()
	assert.False(t, playing)

	// Navigation on an empty queue is a no-op
	assert.NoError(t, c.Next())
	assert.NoError(t, c.Previous())
	assert.ErrorIs(t, c.JumpTo(0), ErrIndexOutOfRange)
}

func TestController_LoadStartsPlayback(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)

	require.NoError(t, c.Load(makeTracks("a", "b", "c"), false))

	s := c.Snapshot()
	assert.Equal(t, 0, s.Index)
	assert.True(t, s.Playing)
	assert.False(t, s.Ended)
	assert.Len(t, s.Entries, 3)
	assert.Equal(t, StatePlaying, s.State())

	_, playing, _ := e.state()
	assert.True(t, playing)
	assert.False(t, e.shuffle)
}

func TestController_RepeatAllScenario(t *testing.T) {
	c, _ := newReadyController(t, RepeatAll)
	require.NoError(t, c.Load(makeTracks("A", "B", "C", "D"), false))

	require.NoError(t, c.Next())
	assert.Equal(t, "B", currentID(t, c))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Next())
	}
	assert.Equal(t, "A", currentID(t, c))
	assert.Equal(t, 0, c.Snapshot().Index)
}

func TestController_RepeatAllIsCyclic(t *testing.T) {
	for length := 1; length <= 5; length++ {
		for start := 0; start < length; start++ {
			t.Run(fmt.Sprintf("len=%d start=%d", length, start), func(t *testing.T) {
				ids := make([]string, length)
				for i := range ids {
					ids[i] = fmt.Sprintf("t%d", i)
				}
				c, _ := newReadyController(t, RepeatAll)
				require.NoError(t, c.Load(makeTracks(ids...), false))
				require.NoError(t, c.JumpTo(start))

				for i := 0; i < length; i++ {
					require.NoError(t, c.Next())
				}
				assert.Equal(t, start, c.Snapshot().Index)

				for i := 0; i < length; i++ {
					require.NoError(t, c.Previous())
				}
				assert.Equal(t, start, c.Snapshot().Index)
				assert.False(t, c.Snapshot().Ended)
			})
		}
	}
}

func TestController_RepeatOffBoundaries(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b", "c"), false))

	// previous at 0 does nothing
	require.NoError(t, c.Previous())
	s := c.Snapshot()
	assert.Equal(t, 0, s.Index)
	assert.False(t, s.Ended)
	_, _, seeks := e.state()
	assert.Empty(t, seeks)

	require.NoError(t, c.Next())
	require.NoError(t, c.Next())
	assert.Equal(t, 2, c.Snapshot().Index)

	// next at the last index ends the queue without moving
	require.NoError(t, c.Next())
	s = c.Snapshot()
	assert.Equal(t, 2, s.Index)
	assert.True(t, s.Ended)
	assert.False(t, s.Playing)
	assert.Equal(t, 1.0, s.Progress)
	assert.Equal(t, StateEnded, s.State())
	_, playing, _ := e.state()
	assert.False(t, playing)

	// play after ended restarts the current entry
	require.NoError(t, c.Play())
	s = c.Snapshot()
	assert.False(t, s.Ended)
	assert.True(t, s.Playing)
	assert.Equal(t, 2, s.Index)
}

func TestController_RepeatOneStepsLikeOff(t *testing.T) {
	c, _ := newReadyController(t, RepeatOne)
	require.NoError(t, c.Load(makeTracks("a", "b"), false))

	require.NoError(t, c.Next())
	assert.Equal(t, 1, c.Snapshot().Index)
	require.NoError(t, c.Next())
	assert.True(t, c.Snapshot().Ended)
	assert.Equal(t, 1, c.Snapshot().Index)
}

func TestController_ShuffleVisitsEveryTrackOnce(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	c, _ := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks(ids...), true))

	order := c.Snapshot().Entries
	visited := []string{currentID(t, c)}
	for i := 0; i < len(ids)-1; i++ {
		require.NoError(t, c.Next())
		visited = append(visited, currentID(t, c))
	}

	assert.ElementsMatch(t, ids, visited)
	for i, e := range order {
		assert.Equal(t, e.Track.ID, visited[i], "order fixed at load time")
	}
	assert.False(t, c.Snapshot().Ended)
}

func TestController_SetShuffleKeepsCurrent(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b", "c", "d", "e"), false))
	require.NoError(t, c.JumpTo(3))
	before, err := c.CurrentTrack()
	require.NoError(t, err)

	require.NoError(t, c.SetShuffle(true))
	s := c.Snapshot()
	require.NotNil(t, s.Current)
	assert.True(t, s.Shuffle)
	assert.Equal(t, before.Key, s.Current.Key)
	assert.Equal(t, 0, s.Index)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, trackIDs(s.Entries))

	require.NoError(t, c.SetShuffle(false))
	s = c.Snapshot()
	assert.False(t, s.Shuffle)
	assert.Equal(t, before.Key, s.Current.Key)
	assert.Equal(t, 3, s.Index)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, trackIDs(s.Entries))

	index, playing, _ := e.state()
	assert.Equal(t, 3, index)
	assert.True(t, playing)
}

func TestController_SetShuffleRestartsCurrent(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b", "c", "d"), false))
	require.NoError(t, c.JumpTo(2))
	e.mu.Lock()
	e.position = 90 * time.Second
	e.mu.Unlock()
	require.Eventually(t, func() bool {
		return c.CurrentPosition() == 90*time.Second
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.SetShuffle(true))

	assert.Eventually(t, func() bool {
		return c.CurrentPosition() == 0 && c.Progress() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "c", currentID(t, c))
	assert.True(t, c.Snapshot().Playing)
}

func TestController_TransitionClassification(t *testing.T) {
	tests := []struct {
		name     string
		repeat   RepeatMode
		start    int
		dest     int
		reason   TransitionReason
		expected int
	}{
		{"forward auto", RepeatOff, 1, 2, ReasonAuto, 2},
		{"forward seek", RepeatOff, 0, 1, ReasonSeek, 1},
		{"backward seek", RepeatOff, 2, 1, ReasonSeek, 1},
		{"forward wraps under all", RepeatAll, 3, 0, ReasonAuto, 0},
		{"backward wraps under all", RepeatAll, 0, 3, ReasonSeek, 3},
		{"multi-step jump is treated as previous", RepeatOff, 1, 3, ReasonSeek, 0},
		{"backward at 0 without wrap is ignored", RepeatOff, 0, 3, ReasonOther, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newReadyController(t, tt.repeat)
			require.NoError(t, c.Load(makeTracks("A", "B", "C", "D"), false))
			require.NoError(t, c.JumpTo(tt.start))

			dest := c.Snapshot().Entries[tt.dest]
			c.HandleEngineEvent(Transition(dest, tt.reason))

			assert.Equal(t, tt.expected, c.Snapshot().Index)
		})
	}
}

func TestController_TransitionToCurrentIsNoop(t *testing.T) {
	c, _ := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b", "c"), false))

	require.NoError(t, c.Next())
	s := c.Snapshot()
	// The engine confirms the seek the controller already accounted for.
	c.HandleEngineEvent(Transition(s.Entries[1], ReasonSeek))
	assert.Equal(t, 1, c.Snapshot().Index)
}

func TestController_SeekEchoesDoNotMoveIndex(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b", "c", "d", "e", "f", "g", "h"), false))
	require.NoError(t, c.JumpTo(2))
	entries := c.Snapshot().Entries

	// Echo for the jump to 2 arrives before the next commands
	c.HandleEngineEvent(Transition(entries[2], ReasonSeek))

	require.NoError(t, c.JumpTo(0))
	require.NoError(t, c.JumpTo(7))
	require.NoError(t, c.JumpTo(4))

	// The engine reports each seek after the controller already moved on
	for _, i := range []int{0, 7, 4} {
		c.HandleEngineEvent(Transition(entries[i], ReasonSeek))
		assert.Equal(t, 4, c.Snapshot().Index, "echo of seek to %d", i)
	}

	assert.Equal(t, "e", currentID(t, c))
	index, _, _ := e.state()
	assert.Equal(t, 4, index)

	// A seek the controller did not issue still goes through classification
	c.HandleEngineEvent(Transition(entries[5], ReasonSeek))
	assert.Equal(t, 5, c.Snapshot().Index)
}

func TestController_SeekEchoAfterLostEcho(t *testing.T) {
	c, _ := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b", "c", "d"), false))
	entries := c.Snapshot().Entries

	require.NoError(t, c.Next())
	require.NoError(t, c.JumpTo(3))

	// The echo for index 1 never comes; the one for 3 settles both
	c.HandleEngineEvent(Transition(entries[3], ReasonSeek))
	assert.Equal(t, 3, c.Snapshot().Index)

	c.HandleEngineEvent(Transition(entries[1], ReasonSeek))
	assert.Equal(t, 2, c.Snapshot().Index, "an unexpected seek is classified, not acknowledged")
}

func TestController_DuplicateSongsResolvedByKey(t *testing.T) {
	c, _ := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "a", "a"), false))

	entries := c.Snapshot().Entries
	c.HandleEngineEvent(Transition(entries[1], ReasonAuto))
	assert.Equal(t, 1, c.Snapshot().Index)
	c.HandleEngineEvent(Transition(entries[2], ReasonAuto))
	assert.Equal(t, 2, c.Snapshot().Index)
}

func TestController_RepeatOneRestartsOnAuto(t *testing.T) {
	c, e := newReadyController(t, RepeatOne)
	require.NoError(t, c.Load(makeTracks("a", "b", "c"), false))

	entries := c.Snapshot().Entries
	c.HandleEngineEvent(Transition(entries[1], ReasonAuto))

	assert.Equal(t, 0, c.Snapshot().Index)
	index, _, seeks := e.state()
	assert.Equal(t, 0, index)
	assert.Equal(t, []int{0}, seeks)
}

func TestController_EngineEnded(t *testing.T) {
	tests := []struct {
		name          string
		repeat        RepeatMode
		expectedIndex int
		expectedEnded bool
	}{
		{"off ends the queue", RepeatOff, 2, true},
		{"one restarts the last entry", RepeatOne, 2, false},
		{"all wraps to the start", RepeatAll, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, e := newReadyController(t, tt.repeat)
			require.NoError(t, c.Load(makeTracks("a", "b", "c"), false))
			require.NoError(t, c.JumpTo(2))

			c.HandleEngineEvent(PlayingChanged(false))
			c.HandleEngineEvent(Ended())

			s := c.Snapshot()
			assert.Equal(t, tt.expectedIndex, s.Index)
			assert.Equal(t, tt.expectedEnded, s.Ended)
			assert.Equal(t, !tt.expectedEnded, s.Playing)

			index, playing, _ := e.state()
			assert.Equal(t, tt.expectedIndex, index)
			assert.Equal(t, !tt.expectedEnded, playing)
		})
	}
}

func TestController_PlayPauseIdempotent(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a"), false))

	require.NoError(t, c.Pause())
	require.NoError(t, c.Pause())
	assert.False(t, c.Snapshot().Playing)
	_, playing, _ := e.state()
	assert.False(t, playing)

	require.NoError(t, c.Play())
	require.NoError(t, c.Play())
	assert.True(t, c.Snapshot().Playing)
}

func TestController_EventLoopConsumesEngineEvents(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	require.NoError(t, c.Load(makeTracks("a", "b"), false))
	entries := c.Snapshot().Entries

	e.events <- Transition(entries[1], ReasonAuto)

	assert.Eventually(t, func() bool {
		return c.Snapshot().Index == 1
	}, time.Second, 5*time.Millisecond)
}

func TestController_EventLoopPropagatesPanics(t *testing.T) {
	c := NewController(Config{})
	c.engine = brokenEngine{newFakeEngine()}

	events := make(chan EngineEvent, 1)
	events <- Ended()

	assert.Panics(t, func() { c.eventLoop(events) })
	// The loop still signals done so Close returns
	c.Close()
}

func TestController_PositionLoop(t *testing.T) {
	c, e := newReadyController(t, RepeatOff)
	e.mu.Lock()
	e.position = 90 * time.Second
	e.mu.Unlock()

	require.NoError(t, c.Load(makeTracks("a"), false))

	assert.Eventually(t, func() bool {
		return c.CurrentPosition() == 90*time.Second
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 0.5, c.Progress(), 0.001)

	require.NoError(t, c.Pause())
	assert.Eventually(t, func() bool {
		return !c.polling.Load()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Snapshot().Index)
}

func TestController_Subscribe(t *testing.T) {
	c, _ := newReadyController(t, RepeatOff)
	id, ch := c.Subscribe()

	c.SetRepeatMode(RepeatAll)

	select {
	case ev := <-ch:
		assert.Equal(t, EventModeChanged, ev.Type)
		assert.Equal(t, RepeatAll, ev.Snapshot.Repeat)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	c.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		input    string
		expected RepeatMode
		wantErr  bool
	}{
		{"off", RepeatOff, false},
		{"", RepeatOff, false},
		{"ONE", RepeatOne, false},
		{" all ", RepeatAll, false},
		{"shuffle", RepeatOff, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseRepeatMode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRepeatMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
			assert.Equal(t, mode, mustParse(t, mode.String()))
		})
	}
}

func mustParse(t *testing.T, s string) RepeatMode {
	t.Helper()
	m, err := ParseRepeatMode(s)
	require.NoError(t, err)
	return m
}

func trackIDs(entries []track.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Track.ID
	}
	return ids
}
