package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/provider"
	"github.com/amaumene/gostreamer/internal/ranker"
	"github.com/amaumene/gostreamer/pkg/logger"
)

var contentIDPattern = regexp.MustCompile(`(\d+)/?$`)

// ProgressEvent is one line of human-readable resolution progress,
// delivered over the caller's subscription channel.
type ProgressEvent struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// TorrentIndexer supplies raw torrent candidates for ranking.
type TorrentIndexer interface {
	Search(ctx context.Context, query, mediaType string, season, episode int) ([]models.RawSource, error)
}

// SwarmController is the slice of the swarm manager the orchestrator needs.
type SwarmController interface {
	Destroy(infoHash string)
}

// Orchestrator composes resolver, locator, provider, embed extraction,
// indexer, and ranker into the exposed resolution operations.
type Orchestrator struct {
	resolver *TitleResolver
	locator  *EpisodeLocator
	provider provider.Client
	embed    provider.EmbedResolver
	indexer  TorrentIndexer
	ranker   *ranker.Ranker
	swarm    SwarmController
	logger   logger.Logger
}

func NewOrchestrator(
	resolver *TitleResolver,
	locator *EpisodeLocator,
	providerClient provider.Client,
	embed provider.EmbedResolver,
	indexer TorrentIndexer,
	rk *ranker.Ranker,
	swarmCtl SwarmController,
) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		locator:  locator,
		provider: providerClient,
		embed:    embed,
		indexer:  indexer,
		ranker:   rk,
		swarm:    swarmCtl,
		logger:   logger.New(),
	}
}

// ResolveStream resolves a playable stream link for the title, emitting
// progress events on the given channel. A nil channel disables progress.
// Cancelling ctx stops event delivery; completed provider fetches stay
// cached for future callers.
func (o *Orchestrator) ResolveStream(ctx context.Context, imdbID, contentType string, season, episode int, info models.TitleInfo, progress chan<- ProgressEvent) (*models.StreamLink, error) {
	o.emit(ctx, progress, "resolve", "matching %q against provider", info.Title)

	providerURL, err := o.resolver.Resolve(ctx, imdbID, contentType, info)
	if err != nil {
		o.emit(ctx, progress, "resolve", "no provider match for %q", info.Title)
		return nil, err
	}
	o.emit(ctx, progress, "resolve", "matched provider page %s", providerURL)

	pageURL := providerURL
	if contentType == models.ContentTypeSeries {
		o.emit(ctx, progress, "locate", "locating S%02dE%02d", season, episode)
		pageURL, err = o.locator.Locate(ctx, imdbID, providerURL, season, episode, info.IsAnime)
		if err != nil {
			o.emit(ctx, progress, "locate", "episode not found")
			return nil, err
		}
		o.emit(ctx, progress, "locate", "found episode page %s", pageURL)
	}

	servers, err := o.provider.GetServers(ctx, contentIDFromURL(pageURL), pageURL)
	if err != nil {
		return nil, errors.NewProviderError("failed to list embed servers", err)
	}
	o.emit(ctx, progress, "servers", "%d embed servers available", len(servers))

	for _, server := range servers {
		videoURL, err := o.embed.Extract(ctx, server.EmbedURL, pageURL)
		if err != nil {
			o.logger.Warnf("[Orchestrator] embed extraction failed for server %d: %v", server.Index, err)
			continue
		}
		if videoURL == "" {
			continue
		}

		o.emit(ctx, progress, "stream", "stream ready from server %d", server.Index)
		return &models.StreamLink{
			StreamURL: videoURL,
			Headers: map[string]string{
				"Referer":    pageURL,
				"User-Agent": constants.BrowserUserAgent,
			},
			ServerIndex: server.Index,
		}, nil
	}

	o.emit(ctx, progress, "stream", "no server yielded a playable stream")
	return nil, errors.NewNotFoundError("no playable stream for " + imdbID)
}

// ListSources returns the ranked source list for a title. The embed
// pseudo-source leads the list even when the indexer yields nothing.
func (o *Orchestrator) ListSources(ctx context.Context, imdbID, contentType string, season, episode int, info models.TitleInfo) ([]models.StreamSource, error) {
	query := info.Title
	if contentType == models.ContentTypeMovie && info.Year > 0 {
		query = fmt.Sprintf("%s %d", info.Title, info.Year)
	}

	raw, err := o.indexer.Search(ctx, query, contentType, season, episode)
	if err != nil {
		// Indexer trouble never hides the embed source.
		o.logger.Warnf("[Orchestrator] indexer search failed for %q: %v", query, err)
		raw = nil
	}

	ranked := o.ranker.Rank(raw)
	for i := range ranked {
		ranked[i].PlaybackURL = "/api/play/" + ranked[i].ID
	}

	return o.ranker.Assemble(embedSource(imdbID, contentType, season, episode), ranked), nil
}

// CleanupStream destroys the swarm session for a hash. Idempotent and safe
// on unknown or malformed hashes.
func (o *Orchestrator) CleanupStream(infoHash string) {
	o.swarm.Destroy(infoHash)
}

func (o *Orchestrator) emit(ctx context.Context, progress chan<- ProgressEvent, stage, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	o.logger.Infof("[Orchestrator] %s: %s", stage, message)

	if progress == nil {
		return
	}
	select {
	case progress <- ProgressEvent{Stage: stage, Message: message, At: time.Now()}:
	case <-ctx.Done():
	}
}

// embedSource is the always-available pseudo-source, resolved lazily when
// the user selects it.
func embedSource(imdbID, contentType string, season, episode int) models.StreamSource {
	streamID := imdbID
	if contentType == models.ContentTypeSeries {
		streamID = fmt.Sprintf("%s:%d:%d", imdbID, season, episode)
	}

	return models.StreamSource{
		ID:           "embed-" + streamID,
		ProviderName: "embed",
		DeliveryType: models.DeliveryHLS,
		PlaybackURL:  "/api/stream/" + streamID,
		QualityLabel: "auto",
	}
}

// contentIDFromURL pulls the trailing numeric id the provider's AJAX
// endpoints key on. Falls back to the full URL when absent.
func contentIDFromURL(pageURL string) string {
	if m := contentIDPattern.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	return pageURL
}
