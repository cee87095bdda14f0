package mix

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// RandomProvider draws candidates from the streaming server's random songs.
type RandomProvider struct {
	library Library
}

// NewRandomProvider creates a new RandomProvider.
func NewRandomProvider(library Library) *RandomProvider {
	return &RandomProvider{library: library}
}

// GetCandidates ignores seeds. It over-fetches so excluded songs can be dropped.
func (p *RandomProvider) GetCandidates(ctx context.Context, count int, _ []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	songs, err := p.library.FetchRandomSongs(ctx, count+len(exclude))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get random songs")
	}

	result := make([]track.Track, 0, count)
	for _, t := range dedupeByID(songs) {
		if exclude[t.ID] {
			continue
		}
		result = append(result, t)
		if len(result) == count {
			break
		}
	}
	return result, nil
}

// Name returns the provider name.
func (p *RandomProvider) Name() string {
	return "random"
}
