package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/ranker"
)

func newTestOrchestrator(p *fakeProvider, db *fakeDB, indexer TorrentIndexer, embed *fakeEmbed, sw *fakeSwarm) *Orchestrator {
	if indexer == nil {
		indexer = &fakeIndexer{}
	}
	if embed == nil {
		embed = &fakeEmbed{urls: map[string]string{}}
	}
	if sw == nil {
		sw = &fakeSwarm{}
	}
	resolver := NewTitleResolver(p, db, testMappingTTL)
	locator := NewEpisodeLocator(p, db)
	return NewOrchestrator(resolver, locator, p, embed, indexer, ranker.New(), sw)
}

func TestResolveStreamMovieWithFreshMapping(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, db.UpsertMapping(&database.StreamMapping{
		IMDBId:      "tt0111161",
		ProviderURL: "https://provider.example/movie/100",
		ContentType: models.ContentTypeMovie,
		CreatedAt:   time.Now(),
	}))

	p := newFakeProvider()
	p.servers = []models.Server{
		{Index: 0, EmbedURL: "https://embed.example/a"},
		{Index: 1, EmbedURL: "https://embed.example/b"},
	}
	embed := &fakeEmbed{urls: map[string]string{
		"https://embed.example/b": "https://cdn.example/video.m3u8",
	}}

	o := newTestOrchestrator(p, db, nil, embed, nil)

	progress := make(chan ProgressEvent, 32)
	link, err := o.ResolveStream(context.Background(), "tt0111161", models.ContentTypeMovie, 0, 0,
		models.TitleInfo{Title: "The Shawshank Redemption"}, progress)

	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "https://cdn.example/video.m3u8", link.StreamURL)
	assert.Equal(t, 1, link.ServerIndex)
	assert.Equal(t, "https://provider.example/movie/100", link.Headers["Referer"])

	// Fresh mapping means zero provider searches.
	assert.Zero(t, p.searchCalls)

	close(progress)
	var stages []string
	for ev := range progress {
		stages = append(stages, ev.Stage)
	}
	assert.Contains(t, stages, "resolve")
	assert.Contains(t, stages, "stream")
}

func TestResolveStreamSeriesLocatesEpisode(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, db.UpsertMapping(&database.StreamMapping{
		IMDBId:      "tt0000001",
		ProviderURL: seriesPageURL,
		ContentType: models.ContentTypeSeries,
		CreatedAt:   time.Now(),
	}))

	p := threeSeasonProvider()
	p.servers = []models.Server{{Index: 0, EmbedURL: "https://embed.example/ep"}}
	embed := &fakeEmbed{urls: map[string]string{
		"https://embed.example/ep": "https://cdn.example/ep.m3u8",
	}}

	o := newTestOrchestrator(p, db, nil, embed, nil)
	link, err := o.ResolveStream(context.Background(), "tt0000001", models.ContentTypeSeries, 2, 7,
		models.TitleInfo{Title: "Long Runner"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/ep.m3u8", link.StreamURL)
	assert.Equal(t, episodeURL(2, 7), link.Headers["Referer"])
}

func TestResolveStreamNoServerYieldsNotFound(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, db.UpsertMapping(&database.StreamMapping{
		IMDBId:      "tt0111161",
		ProviderURL: "https://provider.example/movie/100",
		ContentType: models.ContentTypeMovie,
		CreatedAt:   time.Now(),
	}))
	p := newFakeProvider()
	p.servers = []models.Server{{Index: 0, EmbedURL: "https://embed.example/dead"}}

	o := newTestOrchestrator(p, db, nil, nil, nil)
	_, err := o.ResolveStream(context.Background(), "tt0111161", models.ContentTypeMovie, 0, 0,
		models.TitleInfo{Title: "The Shawshank Redemption"}, nil)

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestResolveStreamCancelledCallerStopsEvents(t *testing.T) {
	db := newFakeDB()
	p := newFakeProvider()

	o := newTestOrchestrator(p, db, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no consumer: only cancellation lets emit return.
	progress := make(chan ProgressEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.ResolveStream(ctx, "tt0111161", models.ContentTypeMovie, 0, 0,
			models.TitleInfo{Title: "The Shawshank Redemption"}, progress)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ResolveStream blocked on an abandoned progress channel")
	}
}

func TestListSourcesAlwaysIncludesEmbed(t *testing.T) {
	o := newTestOrchestrator(newFakeProvider(), newFakeDB(),
		&fakeIndexer{err: assert.AnError}, nil, nil)

	sources, err := o.ListSources(context.Background(), "tt0111161", models.ContentTypeMovie, 0, 0,
		models.TitleInfo{Title: "The Shawshank Redemption", Year: 1994})

	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, models.DeliveryHLS, sources[0].DeliveryType)
	assert.True(t, strings.HasPrefix(sources[0].PlaybackURL, "/api/stream/"))
}

func TestListSourcesRanksTorrents(t *testing.T) {
	indexer := &fakeIndexer{results: []models.RawSource{
		{Title: "Movie 2021 2160p HEVC EAC3 MKV", InfoHash: strings.Repeat("a", 40), Seeders: 50},
		{Title: "Movie 2021 1080p x264 AAC MP4", InfoHash: strings.Repeat("b", 40), Seeders: 50},
	}}

	o := newTestOrchestrator(newFakeProvider(), newFakeDB(), indexer, nil, nil)
	sources, err := o.ListSources(context.Background(), "tt0111161", models.ContentTypeMovie, 0, 0,
		models.TitleInfo{Title: "Movie", Year: 2021})

	require.NoError(t, err)
	require.Len(t, sources, 3)
	// Embed leads, then the browser-friendly release outranks the 4K HEVC one.
	assert.Equal(t, models.DeliveryHLS, sources[0].DeliveryType)
	assert.Equal(t, strings.Repeat("b", 40), sources[1].ID)
	assert.Equal(t, "/api/play/"+strings.Repeat("b", 40), sources[1].PlaybackURL)
	assert.Equal(t, strings.Repeat("a", 40), sources[2].ID)
}

func TestListSourcesSeriesEmbedID(t *testing.T) {
	o := newTestOrchestrator(newFakeProvider(), newFakeDB(), nil, nil, nil)

	sources, err := o.ListSources(context.Background(), "tt0000001", models.ContentTypeSeries, 2, 7,
		models.TitleInfo{Title: "Long Runner"})

	require.NoError(t, err)
	require.NotEmpty(t, sources)
	assert.Equal(t, "/api/stream/tt0000001:2:7", sources[0].PlaybackURL)
}

func TestCleanupStreamForwardsToSwarm(t *testing.T) {
	sw := &fakeSwarm{}
	o := newTestOrchestrator(newFakeProvider(), newFakeDB(), nil, nil, sw)

	o.CleanupStream(strings.Repeat("c", 40))
	o.CleanupStream("unknown-or-garbage")

	assert.Equal(t, []string{strings.Repeat("c", 40), "unknown-or-garbage"}, sw.destroyed)
}

func TestContentIDFromURL(t *testing.T) {
	assert.Equal(t, "12345", contentIDFromURL("https://provider.example/watch/title-12345"))
	assert.Equal(t, "987", contentIDFromURL("https://provider.example/episode/987/"))
	assert.Equal(t, "https://provider.example/watch/title", contentIDFromURL("https://provider.example/watch/title"))
}
