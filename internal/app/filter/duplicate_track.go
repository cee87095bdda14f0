package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/tapedeck/internal/domain/track"
)

// DuplicateTrackFilter rejects candidates already selected.
// Detects:
// - Exact song ID matches
// - Remasters and alternate edits (normalized title + same artist)
// Covers (same title, different artist) are allowed.
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects songs already in the mix, including remasters and edits by the same artist. Covers are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig accepts any settings; the filter has none.
func (f *DuplicateTrackFilter) ValidateConfig(map[string]any) error {
	return nil
}

// Check checks if the candidate duplicates a selected track.
func (f *DuplicateTrackFilter) Check(_ context.Context, candidate track.Track, selected []track.Track) Result {
	name := normalizeTitle(candidate.Title)
	for _, s := range selected {
		if s.ID == candidate.ID {
			return Reject("duplicate_track")
		}
		if normalizeTitle(s.Title) == name && isSameArtist(s, candidate) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`), // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),    // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),
		regexp.MustCompile(`\s*-\s*live\b.*$`), // "- Live at Wembley"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),
		regexp.MustCompile(`\s*-?\s*single\s+version`),
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTitle strips remaster and version decorations.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, p := range remasterPatterns {
		normalized = p.ReplaceAllString(normalized, "")
	}
	for _, p := range versionPatterns {
		normalized = p.ReplaceAllString(normalized, "")
	}
	normalized = spaces.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return strings.TrimRight(normalized, " -")
}

func isSameArtist(a, b track.Track) bool {
	if a.Artist == "" || b.Artist == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(a.Artist), strings.TrimSpace(b.Artist))
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
