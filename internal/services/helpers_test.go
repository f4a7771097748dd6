package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/models"
)

// fakeProvider is an in-memory provider.Client recording its traffic.
type fakeProvider struct {
	mu sync.Mutex

	searchResults map[string][]models.Candidate // keyed by query
	details       map[string]*models.TitleDetails
	episodes      map[string][]models.Episode
	servers       []models.Server

	searchCalls  int
	detailCalls  int
	episodeCalls []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		searchResults: make(map[string][]models.Candidate),
		details:       make(map[string]*models.TitleDetails),
		episodes:      make(map[string][]models.Episode),
	}
}

func (f *fakeProvider) Search(_ context.Context, query, _ string) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.searchResults[query], nil
}

func (f *fakeProvider) GetDetails(_ context.Context, pageURL string) (*models.TitleDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if d, ok := f.details[pageURL]; ok {
		return d, nil
	}
	return &models.TitleDetails{}, nil
}

func (f *fakeProvider) GetSeasonEpisodes(_ context.Context, seasonURL string) ([]models.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.episodeCalls = append(f.episodeCalls, seasonURL)
	return f.episodes[seasonURL], nil
}

func (f *fakeProvider) GetServers(_ context.Context, _, _ string) ([]models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.servers, nil
}

// fakeDB is an in-memory database.Database.
type fakeDB struct {
	mu           sync.Mutex
	mappings     map[string]*database.StreamMapping
	countUpdates []map[int]int
}

func newFakeDB() *fakeDB {
	return &fakeDB{mappings: make(map[string]*database.StreamMapping)}
}

func (f *fakeDB) GetMapping(imdbID string) (*database.StreamMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.mappings[imdbID]; ok {
		clone := *m
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeDB) UpsertMapping(mapping *database.StreamMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings[mapping.IMDBId] = mapping
	return nil
}

func (f *fakeDB) UpdateSeasonCounts(imdbID string, counts map[int]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countUpdates = append(f.countUpdates, counts)
	if m, ok := f.mappings[imdbID]; ok {
		if m.Metadata.SeasonCounts == nil {
			m.Metadata.SeasonCounts = make(map[int]int)
		}
		for season, count := range counts {
			m.Metadata.SeasonCounts[season] = count
		}
	}
	return nil
}

func (f *fakeDB) DeleteMapping(imdbID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mappings, imdbID)
	return nil
}

func (f *fakeDB) Close() error { return nil }

// fakeIndexer returns canned raw sources or a canned error.
type fakeIndexer struct {
	results []models.RawSource
	err     error
}

func (f *fakeIndexer) Search(context.Context, string, string, int, int) ([]models.RawSource, error) {
	return f.results, f.err
}

// fakeEmbed resolves embed URLs from a fixed table.
type fakeEmbed struct {
	urls map[string]string
}

func (f *fakeEmbed) Extract(_ context.Context, embedURL, _ string) (string, error) {
	return f.urls[embedURL], nil
}

// fakeSwarm records destroy calls.
type fakeSwarm struct {
	destroyed []string
}

func (f *fakeSwarm) Destroy(infoHash string) {
	f.destroyed = append(f.destroyed, infoHash)
}

// seasonFixture builds a season whose episodes are numbered 1..count.
func seasonFixture(number, count int) (models.Season, []models.Episode) {
	season := models.Season{
		Number: number,
		Label:  "Season",
		URL:    seasonURL(number),
	}
	episodes := make([]models.Episode, 0, count)
	for i := 1; i <= count; i++ {
		episodes = append(episodes, models.Episode{
			Number: i,
			URL:    episodeURL(number, i),
		})
	}
	return season, episodes
}

func seasonURL(number int) string {
	return fmt.Sprintf("https://provider.example/season/%d", number)
}

func episodeURL(season, episode int) string {
	return fmt.Sprintf("https://provider.example/season/%d/episode/%d", season, episode)
}
