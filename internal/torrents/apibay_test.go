package torrents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amaumene/gostreamer/internal/models"
)

func TestMatchesEpisode(t *testing.T) {
	tests := []struct {
		name    string
		release string
		season  int
		episode int
		want    bool
	}{
		{"exact episode", "Show.Name.S02E05.1080p.WEB.x264", 2, 5, true},
		{"season pack", "Show.Name.S02.1080p.WEB.x264", 2, 5, true},
		{"complete series tag", "Show Name Complete Series 1080p", 2, 5, true},
		{"no season or episode marker", "Show Name 1080p WEB x264", 2, 5, true},
		{"wrong season", "Show.Name.S03E05.1080p.WEB.x264", 2, 5, false},
		{"wrong episode", "Show.Name.S02E07.1080p.WEB.x264", 2, 5, false},
		{"wrong season pack", "Show.Name.S04.1080p.WEB.x264", 2, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesEpisode(tt.release, tt.season, tt.episode))
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		mediaType string
		season    int
		episode   int
		want      string
	}{
		{"movie keeps plain title", " Inception ", models.ContentTypeMovie, 0, 0, "Inception"},
		{"series with episode", "Show Name", models.ContentTypeSeries, 2, 5, "Show Name S02E05"},
		{"series season only", "Show Name", models.ContentTypeSeries, 2, 0, "Show Name S02"},
		{"series without season", "Show Name", models.ContentTypeSeries, 0, 0, "Show Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSearchQuery(tt.query, tt.mediaType, tt.season, tt.episode))
		})
	}
}

func TestConvertFiltersSentinelsAndMismatches(t *testing.T) {
	a := &Apibay{}

	results := a.convert([]apibayTorrent{
		{ID: "0", Name: "No results returned", InfoHash: "0000000000000000000000000000000000000000"},
		{ID: "1", Name: "Show.Name.S02E05.1080p.WEB.x264", InfoHash: "AAAA0000000000000000000000000000000000AA", Seeders: "42", Size: "1000"},
		{ID: "2", Name: "Show.Name.S03E01.1080p.WEB.x264", InfoHash: "BBBB0000000000000000000000000000000000BB", Seeders: "99", Size: "1000"},
	}, models.ContentTypeSeries, 2, 5)

	if assert.Len(t, results, 1) {
		assert.Equal(t, "Show.Name.S02E05.1080p.WEB.x264", results[0].Title)
		assert.Equal(t, "aaaa0000000000000000000000000000000000aa", results[0].InfoHash)
		assert.Equal(t, 42, results[0].Seeders)
		assert.Equal(t, providerApibay, results[0].Source)
	}
}
