package mix

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// CandidateWithSource represents a candidate with the provider it came from.
type CandidateWithSource struct {
	Track       track.Track
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain asks every provider in order and pools the candidates.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// GetCandidates retrieves candidates from all providers.
// Songs returned by one provider are excluded from the following ones.
// It fails only when every provider failed.
func (c *ProviderChain) GetCandidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]CandidateWithSource, error) {
	var all []CandidateWithSource
	seen := make(map[string]bool, len(exclude))
	for k, v := range exclude {
		seen[k] = v
	}

	var failures []error
	for i, pm := range c.providers {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "mix cancelled")
		}
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.GetCandidates(ctx, count, seeds, seen)
		if err != nil {
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			failures = append(failures, errors.Wrapf(err, "provider %s", pm.DisplayName))
			continue
		}

		added := 0
		for _, t := range candidates {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			all = append(all, CandidateWithSource{Track: t, DisplayName: pm.DisplayName})
			added++
		}
		zlog.Info().Msgf("provider returned candidates: provider=%s count=%d total_so_far=%d",
			pm.DisplayName, added, len(all))
	}

	if len(failures) > 0 && len(failures) == len(c.providers) {
		return nil, errors.Wrap(failures[0], "all providers failed to return candidates")
	}
	return all, nil
}

// Providers returns the chained providers.
func (c *ProviderChain) Providers() []ProviderWithMetadata {
	return c.providers
}

// Tracks strips the source information.
func Tracks(candidates []CandidateWithSource) []track.Track {
	result := make([]track.Track, len(candidates))
	for i, c := range candidates {
		result[i] = c.Track
	}
	return result
}
