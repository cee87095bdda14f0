package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinMinutes float64 `mapstructure:"min_minutes" default:"1" validate:"gte=0"`
	MaxMinutes float64 `mapstructure:"max_minutes" validate:"gte=0"` // 0 means no limit
}

// DurationLimitFilter rejects tracks outside a duration window.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks shorter than min_minutes or longer than max_minutes"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var cfg DurationLimitConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	if cfg.MaxMinutes > 0 && cfg.MinMinutes > cfg.MaxMinutes {
		return errors.New("min_minutes cannot be greater than max_minutes")
	}

	f.config = &cfg
	zlog.Debug().Msgf("duration limit filter config: %+v", cfg)
	return nil
}

func (f *DurationLimitFilter) Check(_ context.Context, candidate track.Track, _ []track.Track) Result {
	if f.config == nil {
		return Accept()
	}

	minutes := candidate.Duration.Minutes()
	if minutes < f.config.MinMinutes {
		return Reject("duration_limit_exceeded")
	}
	if f.config.MaxMinutes > 0 && minutes > f.config.MaxMinutes {
		return Reject("duration_limit_exceeded")
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
