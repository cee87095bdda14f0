// Package playlist provides the Playlist domain entity.
package playlist

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// Playlist is an ordered, immutable list of queue entries.
// A new load replaces the whole Playlist; entries are never edited in place.
type Playlist struct {
	entries []track.Entry
}

// New creates a Playlist from tracks, assigning each slot a unique key.
func New(tracks []track.Track) *Playlist {
	entries := make([]track.Entry, len(tracks))
	for i, t := range tracks {
		entries[i] = track.Entry{
			Key:   uuid.New().String(),
			Track: t,
		}
	}
	return &Playlist{entries: entries}
}

// FromEntries creates a Playlist that keeps the given entries and their keys.
func FromEntries(entries []track.Entry) *Playlist {
	cp := make([]track.Entry, len(entries))
	copy(cp, entries)
	return &Playlist{entries: cp}
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// IsEmpty returns true if the playlist has no entries.
func (p *Playlist) IsEmpty() bool {
	return p.Len() == 0
}

// At returns the entry at index i. ok is false when i is out of range.
func (p *Playlist) At(i int) (track.Entry, bool) {
	if i < 0 || i >= p.Len() {
		return track.Entry{}, false
	}
	return p.entries[i], true
}

// IndexOf returns the index of the entry with the given key, or -1.
func (p *Playlist) IndexOf(key string) int {
	for i := 0; i < p.Len(); i++ {
		if p.entries[i].Key == key {
			return i
		}
	}
	return -1
}

// Entries returns a copy of the entries.
func (p *Playlist) Entries() []track.Entry {
	result := make([]track.Entry, p.Len())
	if p != nil {
		copy(result, p.entries)
	}
	return result
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, p.Len())
	for i := 0; i < p.Len(); i++ {
		ids[i] = p.entries[i].Track.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for i := 0; i < p.Len(); i++ {
		total += p.entries[i].Track.Duration
	}
	return total
}

// Shuffled returns a new Playlist holding the same entries in a random order.
// If first is a key present in the playlist, that entry is moved to index 0
// so the currently playing slot keeps playing after a reshuffle.
func (p *Playlist) Shuffled(rng *rand.Rand, first string) *Playlist {
	shuffled := p.Entries()
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if first != "" {
		for i := range shuffled {
			if shuffled[i].Key == first {
				shuffled[0], shuffled[i] = shuffled[i], shuffled[0]
				break
			}
		}
	}

	return &Playlist{entries: shuffled}
}
