package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/internal/models"
)

const testMappingTTL = 720 * time.Hour

func TestResolveFreshMappingSkipsProvider(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, db.UpsertMapping(&database.StreamMapping{
		IMDBId:      "tt0111161",
		ProviderURL: "https://provider.example/movie/100",
		ContentType: models.ContentTypeMovie,
		CreatedAt:   time.Now(),
	}))
	p := newFakeProvider()

	r := NewTitleResolver(p, db, testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt0111161", models.ContentTypeMovie, models.TitleInfo{Title: "The Shawshank Redemption"})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/movie/100", got)
	assert.Zero(t, p.searchCalls)
}

func TestResolveExpiredMappingSearchesAgain(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, db.UpsertMapping(&database.StreamMapping{
		IMDBId:      "tt0111161",
		ProviderURL: "https://provider.example/movie/stale",
		ContentType: models.ContentTypeMovie,
		CreatedAt:   time.Now().Add(-2 * testMappingTTL),
	}))
	p := newFakeProvider()
	p.searchResults["The Shawshank Redemption"] = []models.Candidate{
		{Title: "The Shawshank Redemption", URL: "https://provider.example/movie/fresh", Type: models.ContentTypeMovie},
	}

	r := NewTitleResolver(p, db, testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt0111161", models.ContentTypeMovie, models.TitleInfo{Title: "The Shawshank Redemption"})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/movie/fresh", got)
	assert.Positive(t, p.searchCalls)
}

func TestResolveRejectsDissimilarTitles(t *testing.T) {
	p := newFakeProvider()
	p.searchResults["Oldboy"] = []models.Candidate{
		{Title: "Completely Unrelated Documentary", URL: "https://provider.example/movie/7", Type: models.ContentTypeMovie},
	}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	_, err := r.Resolve(context.Background(), "tt0364569", models.ContentTypeMovie, models.TitleInfo{Title: "Oldboy"})

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestResolveAcceptsCloseSpelling(t *testing.T) {
	p := newFakeProvider()
	p.searchResults["Blade Runner 2049"] = []models.Candidate{
		{Title: "Blade Runner: 2049", URL: "https://provider.example/movie/2049", Type: models.ContentTypeMovie},
	}
	db := newFakeDB()

	r := NewTitleResolver(p, db, testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt1856101", models.ContentTypeMovie, models.TitleInfo{Title: "Blade Runner 2049"})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/movie/2049", got)

	mapping, err := db.GetMapping("tt1856101")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, models.ContentTypeMovie, mapping.ContentType)
}

func TestResolveAnimeRejectsNonAnimeWhenAnimePresent(t *testing.T) {
	p := newFakeProvider()
	p.searchResults["Mushoku Tensei"] = []models.Candidate{
		{Title: "Mushoku Tensei", URL: "https://provider.example/series/1", Type: models.ContentTypeSeries},
		{Title: "Mushoku Tensei", URL: "https://provider.example/anime/1", Type: models.ContentTypeAnime},
	}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt13293588", models.ContentTypeSeries, models.TitleInfo{Title: "Mushoku Tensei", IsAnime: true})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/anime/1", got)
}

func TestResolveNonAnimeRejectsAnimeCandidates(t *testing.T) {
	p := newFakeProvider()
	p.searchResults["Monster"] = []models.Candidate{
		{Title: "Monster", URL: "https://provider.example/anime/9", Type: models.ContentTypeAnime},
	}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	_, err := r.Resolve(context.Background(), "tt0340855", models.ContentTypeMovie, models.TitleInfo{Title: "Monster"})

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestResolveYearGate(t *testing.T) {
	p := newFakeProvider()
	p.searchResults["Dune"] = []models.Candidate{
		{Title: "Dune", URL: "https://provider.example/movie/1984", Type: models.ContentTypeMovie, Year: 1984},
		{Title: "Dune", URL: "https://provider.example/movie/2021", Type: models.ContentTypeMovie, Year: 2021},
	}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt1160419", models.ContentTypeMovie, models.TitleInfo{Title: "Dune", Year: 2021})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/movie/2021", got)
}

func TestResolveBackfillsMissingYearFromDetails(t *testing.T) {
	p := newFakeProvider()
	p.searchResults["Dune"] = []models.Candidate{
		{Title: "Dune", URL: "https://provider.example/movie/1984", Type: models.ContentTypeMovie},
	}
	p.details["https://provider.example/movie/1984"] = &models.TitleDetails{Title: "Dune", Year: 1984}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	_, err := r.Resolve(context.Background(), "tt1160419", models.ContentTypeMovie, models.TitleInfo{Title: "Dune", Year: 2021})

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestResolveFallsBackToSubtitleAfterColon(t *testing.T) {
	p := newFakeProvider()
	// Full title finds nothing; the part after the colon does.
	p.searchResults["The Galactic Chronicle"] = []models.Candidate{
		{Title: "The Galactic Chronicle", URL: "https://provider.example/series/42", Type: models.ContentTypeSeries},
	}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt9999999", models.ContentTypeSeries,
		models.TitleInfo{Title: "Saga of Stars: The Galactic Chronicle"})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/series/42", got)
}

func TestResolveShortTitleAcceptsStylizedSpelling(t *testing.T) {
	p := newFakeProvider()
	// Punctuation-separated spelling: edit distance and containment both
	// miss it, the loose subsequence match catches it.
	p.searchResults["Dragon"] = []models.Candidate{
		{Title: "D.R.A.G.O.N", URL: "https://provider.example/movie/77", Type: models.ContentTypeMovie},
	}

	r := NewTitleResolver(p, newFakeDB(), testMappingTTL)
	got, err := r.Resolve(context.Background(), "tt7777777", models.ContentTypeMovie, models.TitleInfo{Title: "Dragon"})

	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/movie/77", got)
}

func TestBuildAttemptsOrder(t *testing.T) {
	attempts := buildAttempts(models.ContentTypeSeries, models.TitleInfo{
		Title:          "Shingeki no Kyojin: Final",
		AlternateTitle: "Attack on Titan",
		IsAnime:        true,
	})

	require.NotEmpty(t, attempts)
	assert.Equal(t, searchAttempt{"Shingeki no Kyojin: Final", models.ContentTypeAnime}, attempts[0])
	assert.Equal(t, searchAttempt{"Shingeki no Kyojin: Final", models.ContentTypeSeries}, attempts[1])
	assert.Equal(t, searchAttempt{"Attack on Titan", models.ContentTypeAnime}, attempts[2])
	assert.Equal(t, searchAttempt{"Attack on Titan", models.ContentTypeSeries}, attempts[3])
	// Colon split comes last: subtitle first, then the leading part.
	assert.Equal(t, searchAttempt{"Final", models.ContentTypeAnime}, attempts[4])
	assert.Equal(t, searchAttempt{"Shingeki no Kyojin", models.ContentTypeAnime}, attempts[5])
}

func TestBuildAttemptsKeepsShortSubtitle(t *testing.T) {
	attempts := buildAttempts(models.ContentTypeMovie, models.TitleInfo{Title: "Dragon Ball: Z"})

	assert.Contains(t, attempts, searchAttempt{"Z", models.ContentTypeMovie})
	assert.Contains(t, attempts, searchAttempt{"Dragon Ball", models.ContentTypeMovie})
}

func TestContainsNativeScript(t *testing.T) {
	assert.True(t, containsNativeScript("進撃の巨人"))
	assert.False(t, containsNativeScript("Attack on Titan"))
}
