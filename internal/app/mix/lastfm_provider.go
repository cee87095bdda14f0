package mix

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/domain/track"
	"github.com/osa030/tapedeck/internal/infra/lastfm"
)

type LastFmProviderConfig struct {
	APIKey         string  `mapstructure:"api_key" validate:"required"`
	SeedTrackCount int     `mapstructure:"seed_track_count" default:"3" validate:"gte=1"`
	SimilarLimit   int     `mapstructure:"similar_limit" default:"20" validate:"gte=1,lte=100"`
	Tag            string  `mapstructure:"tag"`
	TagWeight      float64 `mapstructure:"tag_weight" default:"0.4" validate:"gte=0,lte=1"`
	SimilarWeight  float64 `mapstructure:"similar_weight" default:"0.6" validate:"gte=0,lte=1"`
}

// LastFmProvider builds a radio from Last.fm similar tracks of the seeds,
// blended with a tag's top tracks when a tag is configured.
// Without seeds it falls back to the global chart.
type LastFmProvider struct {
	lastfm   LastFmClient
	resolver *resolver
	config   *LastFmProviderConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

type scoredTrack struct {
	Track track.Track
	Score float64
}

// NewLastFmProvider creates a LastFmProvider from provider settings.
func NewLastFmProvider(library Library, settings map[string]any) (*LastFmProvider, error) {
	cfg, err := decodeLastFmConfig(settings)
	if err != nil {
		return nil, err
	}
	client, err := lastfm.New(lastfm.Config{APIKey: cfg.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return newLastFmProvider(client, library, cfg), nil
}

func newLastFmProvider(client LastFmClient, library Library, cfg *LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{
		lastfm:   client,
		resolver: newResolver(library),
		config:   cfg,
		rng:      newRand(),
	}
}

func decodeLastFmConfig(settings map[string]any) (*LastFmProviderConfig, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var cfg LastFmProviderConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if cfg.Tag == "" {
		cfg.TagWeight = 0
	}
	return &cfg, nil
}

// GetCandidates retrieves candidates using hybrid scoring.
func (p *LastFmProvider) GetCandidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	seeds = usableSeeds(seeds, p.config.SeedTrackCount)
	if len(seeds) == 0 {
		return p.chartCandidates(ctx, count, exclude)
	}

	similar := p.similarCandidates(ctx, seeds, exclude)
	var tagged []track.Track
	if p.config.Tag != "" {
		tagged = p.tagCandidates(ctx, exclude)
	}

	scored := p.scoreAndMerge(similar, tagged)
	if len(scored) == 0 {
		return []track.Track{}, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Pick randomly from the top N*2 for variety.
	poolSize := count * 2
	if poolSize > len(scored) {
		poolSize = len(scored)
	}
	pool := scored[:poolSize]
	p.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	result := make([]track.Track, 0, count)
	for i := 0; i < count && i < len(pool); i++ {
		result = append(result, pool[i].Track)
	}
	return result, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// usableSeeds keeps seeds with an artist, distinct by artist and title, up to limit.
func usableSeeds(seeds []track.Track, limit int) []track.Track {
	result := make([]track.Track, 0, limit)
	seen := make(map[string]bool)
	for _, s := range seeds {
		if s.Artist == "" || s.Title == "" {
			continue
		}
		key := s.Artist + ":" + s.Title
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, s)
		if len(result) == limit {
			break
		}
	}
	return result
}

// similarMatch pairs a resolved track with its Last.fm similarity.
type similarMatch struct {
	Track track.Track
	Match float64
}

func (p *LastFmProvider) similarCandidates(ctx context.Context, seeds []track.Track, exclude map[string]bool) []similarMatch {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		matches []similarMatch
	)

	for _, seed := range seeds {
		wg.Add(1)
		go func(s track.Track) {
			defer wg.Done()
			refs, err := p.lastfm.GetSimilarTracks(ctx, s.Title, s.Artist, p.config.SimilarLimit)
			if err != nil {
				zlog.Warn().Msgf("last.fm similar tracks failed: seed=%s error=%v", s.DisplayName(), err)
				return
			}
			for _, ref := range refs {
				found := p.resolver.resolve(ctx, ref.Name, ref.Artist)
				if found == nil || exclude[found.ID] {
					continue
				}
				mu.Lock()
				matches = append(matches, similarMatch{Track: *found, Match: ref.Match})
				mu.Unlock()
			}
		}(seed)
	}
	wg.Wait()

	return matches
}

func (p *LastFmProvider) tagCandidates(ctx context.Context, exclude map[string]bool) []track.Track {
	refs, err := p.lastfm.GetTopTracks(ctx, p.config.Tag, 50)
	if err != nil {
		zlog.Warn().Msgf("last.fm tag top tracks failed: tag=%s error=%v", p.config.Tag, err)
		return nil
	}

	var candidates []track.Track
	for _, ref := range refs {
		found := p.resolver.resolve(ctx, ref.Name, ref.Artist)
		if found != nil && !exclude[found.ID] {
			candidates = append(candidates, *found)
		}
	}
	return dedupeByID(candidates)
}

// scoreAndMerge scores similar tracks by weighted match and adds the tag weight
// to tracks that also carry the tag. A track similar to several seeds keeps its best match.
func (p *LastFmProvider) scoreAndMerge(similar []similarMatch, tagged []track.Track) []scoredTrack {
	scores := make(map[string]*scoredTrack)
	order := make([]string, 0, len(similar)+len(tagged))

	for _, m := range similar {
		score := p.config.SimilarWeight * m.Match
		if existing, ok := scores[m.Track.ID]; ok {
			if score > existing.Score {
				existing.Score = score
			}
			continue
		}
		scores[m.Track.ID] = &scoredTrack{Track: m.Track, Score: score}
		order = append(order, m.Track.ID)
	}

	for _, t := range tagged {
		if existing, ok := scores[t.ID]; ok {
			existing.Score += p.config.TagWeight
			continue
		}
		scores[t.ID] = &scoredTrack{Track: t, Score: p.config.TagWeight}
		order = append(order, t.ID)
	}

	result := make([]scoredTrack, 0, len(order))
	for _, id := range order {
		result = append(result, *scores[id])
	}
	return result
}

// chartCandidates is used when there are no seeds, e.g. a mix on an empty queue.
func (p *LastFmProvider) chartCandidates(ctx context.Context, count int, exclude map[string]bool) ([]track.Track, error) {
	refs, err := p.lastfm.GetChartTopTracks(ctx, 50)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chart top tracks")
	}

	p.shuffle(len(refs), func(i, j int) {
		refs[i], refs[j] = refs[j], refs[i]
	})

	var candidates []track.Track
	for _, ref := range refs {
		found := p.resolver.resolve(ctx, ref.Name, ref.Artist)
		if found != nil && !exclude[found.ID] {
			candidates = append(candidates, *found)
		}
		if len(candidates) >= count*2 {
			break
		}
	}

	candidates = dedupeByID(candidates)
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates, nil
}

func (p *LastFmProvider) shuffle(n int, swap func(i, j int)) {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	p.rng.Shuffle(n, swap)
}
