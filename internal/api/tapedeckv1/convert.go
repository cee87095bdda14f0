package tapedeckv1

import (
	"time"

	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/domain/track"
)

// FromTrack converts a domain track. The stream URL carries credentials and is not exposed.
func FromTrack(t track.Track) Track {
	return Track{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		AlbumID:    t.AlbumID,
		CoverArtID: t.CoverArtID,
		DurationMs: t.Duration.Milliseconds(),
		Suffix:     t.Suffix,
		BitRate:    t.BitRate,
	}
}

// FromEntry converts a queue entry.
func FromEntry(e track.Entry) QueueEntry {
	return QueueEntry{Key: e.Key, Track: FromTrack(e.Track)}
}

// FromSnapshot converts a controller snapshot. withEntries controls whether
// the entry list is included.
func FromSnapshot(s playback.Snapshot, withEntries bool) *PlayerState {
	state := &PlayerState{
		State:      s.State().String(),
		Index:      s.Index,
		Shuffle:    s.Shuffle,
		Repeat:     s.Repeat.String(),
		Playing:    s.Playing,
		Ended:      s.Ended,
		Progress:   s.Progress,
		PositionMs: s.Position.Milliseconds(),
	}
	if s.Current != nil {
		cur := FromEntry(*s.Current)
		state.Current = &cur
	}
	if withEntries {
		state.Entries = make([]QueueEntry, len(s.Entries))
		for i, e := range s.Entries {
			state.Entries[i] = FromEntry(e)
		}
	}
	return state
}

// NotificationType maps a controller event type.
func NotificationType(t playback.EventType) string {
	switch t {
	case playback.EventQueueLoaded:
		return NotificationQueueLoaded
	case playback.EventTrackChanged:
		return NotificationTrackChanged
	case playback.EventStateChanged:
		return NotificationStateChanged
	case playback.EventModeChanged:
		return NotificationModeChanged
	case playback.EventProgress:
		return NotificationProgress
	case playback.EventQueueEnded:
		return NotificationQueueEnded
	default:
		return t.String()
	}
}

// NewNotification builds a notification for a controller event.
// The sequence number is assigned when the notification is broadcast.
func NewNotification(ev playback.Event) *Notification {
	withEntries := ev.Type == playback.EventQueueLoaded || ev.Type == playback.EventModeChanged
	return &Notification{
		Type:      NotificationType(ev.Type),
		Timestamp: time.Now(),
		State:     FromSnapshot(ev.Snapshot, withEntries),
	}
}

// Duration converts milliseconds back to a duration.
func Duration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
