package mix

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
// Without configured providers the chain falls back to the library's random songs.
func NewProviderChainFromConfig(ctx context.Context, cfg *config.Config, library Library) (*ProviderChain, error) {
	if library == nil {
		return nil, errors.New("library is required")
	}
	if len(cfg.Mix.Providers) == 0 {
		zlog.Info().Msg("no mix providers configured, using random songs")
		return NewProviderChain([]ProviderWithMetadata{
			{Provider: NewRandomProvider(library), DisplayName: "Random"},
		}), nil
	}

	providers := make([]ProviderWithMetadata, 0, len(cfg.Mix.Providers))
	for i, pcfg := range cfg.Mix.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating mix provider: index=%d type=%s", i+1, pcfg.Type)

		switch pcfg.Type {
		case config.ProviderRandom:
			provider = NewRandomProvider(library)
		case config.ProviderLastFm:
			provider, err = NewLastFmProvider(library, pcfg.Settings)
		case config.ProviderSpotify:
			provider, err = NewSpotifyProvider(ctx, library, pcfg.Settings)
		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})
		zlog.Info().Msgf("registered mix provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}
