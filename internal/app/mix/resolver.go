package mix

import (
	"context"
	"strings"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// resolver maps externally named tracks to songs on the streaming server.
// Misses are cached too so a song the library lacks is searched once.
type resolver struct {
	library Library

	mu    sync.RWMutex
	cache map[string]*track.Track
}

func newResolver(library Library) *resolver {
	return &resolver{
		library: library,
		cache:   make(map[string]*track.Track),
	}
}

func (r *resolver) resolve(ctx context.Context, title, artist string) *track.Track {
	key := strings.ToLower(artist) + ":" + strings.ToLower(title)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	found, err := r.library.SearchSong(ctx, title, artist)
	if err != nil {
		// Not cached: the next mix may succeed.
		zlog.Debug().Msgf("library search failed: %s - %s: %v", artist, title, err)
		return nil
	}

	r.mu.Lock()
	r.cache[key] = found
	r.mu.Unlock()
	return found
}

func (r *resolver) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
