package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain of the enabled registered filters, in name order.
// Unknown filter names in the config are rejected.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	for name := range filters {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}

	chain := NewChain()
	for _, name := range RegisteredNames() {
		fc, ok := filters[name]
		if !ok || !fc.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(fc.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter enabled: %s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the candidate.
func (c *Chain) Execute(ctx context.Context, candidate track.Track, selected []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, candidate, selected)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply selects up to limit candidates in order, checking each against the
// tracks in base plus the ones selected so far. limit <= 0 means no limit.
// The second return value counts rejections per code.
func (c *Chain) Apply(ctx context.Context, candidates, base []track.Track, limit int) ([]track.Track, map[string]int) {
	selected := make([]track.Track, 0, len(candidates))
	seen := make([]track.Track, len(base), len(base)+len(candidates))
	copy(seen, base)
	rejected := make(map[string]int)

	for _, candidate := range candidates {
		if limit > 0 && len(selected) >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		result := c.Execute(ctx, candidate, seen)
		if !result.Accepted {
			rejected[result.Code]++
			zlog.Debug().Msgf("candidate rejected (%s): %s", result.Code, candidate.DisplayName())
			continue
		}
		selected = append(selected, candidate)
		seen = append(seen, candidate)
	}
	return selected, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
