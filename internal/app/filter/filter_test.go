package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/config"
)

func song(id, title, artist string, minutes float64) track.Track {
	return track.Track{
		ID:       id,
		Title:    title,
		Artist:   artist,
		Duration: time.Duration(minutes * float64(time.Minute)),
	}
}

func TestDuplicateTrackFilter_Check(t *testing.T) {
	selected := []track.Track{
		song("s1", "Bohemian Rhapsody", "Queen", 6),
		song("s2", "Heroes", "David Bowie", 6),
	}

	tests := []struct {
		name         string
		candidate    track.Track
		wantAccepted bool
	}{
		{"exact id", song("s1", "Anything", "Anyone", 3), false},
		{"year remaster", song("x1", "Bohemian Rhapsody - 2011 Remaster", "Queen", 6), false},
		{"bracket remaster", song("x2", "Heroes [Remastered]", "david bowie", 6), false},
		{"radio edit", song("x3", "Heroes (Single Edit)", "David Bowie", 3.5), false},
		{"cover by other artist", song("x4", "Heroes", "Peter Gabriel", 5), true},
		{"unknown artist", song("x5", "Heroes", "", 5), true},
		{"different song", song("x6", "Under Pressure", "Queen", 4), true},
	}

	f := NewDuplicateTrackFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), tt.candidate, selected)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "duplicate_track", result.Code)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"Bohemian Rhapsody - 2011 Remaster": "bohemian rhapsody",
		"Heroes (Remastered 2017)":          "heroes",
		"Song (Radio Edit)":                 "song",
		"Song - Single Version":             "song",
		"Song - Live at Wembley":            "song",
		"Live Forever":                      "live forever",
		"  Spaced   Out  ":                  "spaced out",
	}
	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, normalizeTitle(input))
		})
	}
}

func TestDurationLimitFilter(t *testing.T) {
	tests := []struct {
		name         string
		settings     map[string]any
		minutes      float64
		wantAccepted bool
	}{
		{"default min rejects short", nil, 0.5, false},
		{"default has no max", nil, 30, true},
		{"within window", map[string]any{"min_minutes": 2, "max_minutes": 8}, 5, true},
		{"over max", map[string]any{"max_minutes": 8}, 9, false},
		{"string values", map[string]any{"min_minutes": "0.1", "max_minutes": "3"}, 0.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			require.NoError(t, f.ValidateConfig(tt.settings))
			result := f.Check(context.Background(), song("x", "t", "a", tt.minutes), nil)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
		})
	}
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	f := NewDurationLimitFilter()
	assert.Error(t, f.ValidateConfig(map[string]any{"min_minutes": 10, "max_minutes": 5}))
	assert.Error(t, f.ValidateConfig(map[string]any{"max_minutes": -1}))
	assert.Error(t, f.ValidateConfig(map[string]any{"max_minutes": "long"}))

	unconfigured := NewDurationLimitFilter()
	assert.True(t, unconfigured.Check(context.Background(), song("x", "t", "a", 0.1), nil).Accepted)
}

func TestChain_Apply(t *testing.T) {
	chain := NewChain()
	chain.Add(NewDuplicateTrackFilter())
	limit := NewDurationLimitFilter()
	require.NoError(t, limit.ValidateConfig(map[string]any{"min_minutes": 1}))
	chain.Add(limit)

	base := []track.Track{song("q1", "Atmosphere", "Joy Division", 4)}
	candidates := []track.Track{
		song("c1", "Atmosphere", "Joy Division", 4),
		song("c2", "Decades", "Joy Division", 6),
		song("c3", "Decades (Remastered)", "Joy Division", 6),
		song("c4", "Interlude", "Joy Division", 0.3),
		song("c5", "Ceremony", "New Order", 4),
		song("c6", "Temptation", "New Order", 7),
	}

	selected, rejected := chain.Apply(context.Background(), candidates, base, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, "c2", selected[0].ID)
	assert.Equal(t, "c5", selected[1].ID)
	assert.Equal(t, map[string]int{"duplicate_track": 2, "duration_limit_exceeded": 1}, rejected)

	all, _ := chain.Apply(context.Background(), candidates, nil, 0)
	assert.Len(t, all, 4)
}

func TestNewChainFromConfig(t *testing.T) {
	chain, err := NewChainFromConfig(map[string]config.FilterConfig{
		"duplicate_track_filter": {Enabled: true},
		"duration_limit_filter":  {Enabled: false},
	})
	require.NoError(t, err)
	require.Len(t, chain.Filters(), 1)
	assert.Equal(t, "duplicate_track_filter", chain.Filters()[0].Name())

	_, err = NewChainFromConfig(map[string]config.FilterConfig{"market_filter": {Enabled: true}})
	assert.Error(t, err)

	_, err = NewChainFromConfig(map[string]config.FilterConfig{
		"duration_limit_filter": {Enabled: true, Settings: map[string]any{"min_minutes": 9, "max_minutes": 1}},
	})
	assert.Error(t, err)

	empty, err := NewChainFromConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Filters())
}

func TestRegisteredNames(t *testing.T) {
	assert.Equal(t, []string{"duplicate_track_filter", "duration_limit_filter"}, RegisteredNames())
	for name, factory := range GetRegistered() {
		f := factory()
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.Description())
		assert.NotEmpty(t, f.ReturnCodes())
	}
}
