// Package torrents fetches raw torrent candidates from public indexers.
package torrents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cehbz/torrentname"

	"github.com/amaumene/gostreamer/internal/cache"
	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/pkg/httputil"
	"github.com/amaumene/gostreamer/pkg/logger"
	"github.com/amaumene/gostreamer/pkg/ratelimiter"
)

const (
	apibayAPIBase        = "https://apibay.org"
	apibaySearchEndpoint = "/q.php"
	apibayVideoCategory  = "video"

	providerApibay = "apibay"
)

// apibayTorrent is one entry of the indexer's JSON response.
type apibayTorrent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	InfoHash string `json:"info_hash"`
	Seeders  string `json:"seeders"`
	Size     string `json:"size"`
	Category string `json:"category"`
}

// Apibay is an indexer client returning raw candidates for the ranker.
type Apibay struct {
	httpClient  *http.Client
	rateLimiter *ratelimiter.TokenBucket
	cache       *cache.LRUCache
	logger      logger.Logger
}

func NewApibay(memCache *cache.LRUCache) *Apibay {
	return &Apibay{
		httpClient:  httputil.NewDefaultHTTPClient(),
		rateLimiter: ratelimiter.NewTokenBucket(constants.ApibayRateLimit, constants.ApibayRateBurst),
		cache:       memCache,
		logger:      logger.New(),
	}
}

// Search queries the indexer and returns candidates filtered down to the
// requested season/episode for series. Complete-season and complete-series
// packs are kept; they still contain the episode.
func (a *Apibay) Search(ctx context.Context, query, mediaType string, season, episode int) ([]models.RawSource, error) {
	searchQuery := buildSearchQuery(query, mediaType, season, episode)

	cacheKey := fmt.Sprintf("apibay_%s_%s_%d_%d", mediaType, searchQuery, season, episode)
	if cached, found := a.cache.Get(cacheKey); found {
		if results, ok := cached.([]models.RawSource); ok {
			a.logger.Debugf("[Apibay] cache hit for query: %s", searchQuery)
			return results, nil
		}
	}

	a.rateLimiter.Wait()

	apiURL := fmt.Sprintf("%s%s?q=%s&cat=%s",
		apibayAPIBase, apibaySearchEndpoint, url.QueryEscape(searchQuery), apibayVideoCategory)
	a.logger.Infof("[Apibay] searching torrents - query: %s", searchQuery)

	torrents, err := a.fetch(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	results := a.convert(torrents, mediaType, season, episode)
	a.logger.Infof("[Apibay] found %d candidates for query: %s", len(results), searchQuery)

	a.cache.Set(cacheKey, results)
	return results, nil
}

func (a *Apibay) fetch(ctx context.Context, apiURL string) ([]apibayTorrent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apibay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apibay API error: status %d", resp.StatusCode)
	}

	var torrents []apibayTorrent
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, fmt.Errorf("failed to decode apibay response: %w", err)
	}

	return torrents, nil
}

// convert filters out indexer no-result sentinels and, for series, releases
// that name a different season or episode.
func (a *Apibay) convert(torrents []apibayTorrent, mediaType string, season, episode int) []models.RawSource {
	results := make([]models.RawSource, 0, len(torrents))

	for _, t := range torrents {
		if t.ID == "0" || strings.EqualFold(t.Name, "No results returned") {
			continue
		}
		if mediaType == models.ContentTypeSeries && !matchesEpisode(t.Name, season, episode) {
			continue
		}

		seeders, _ := strconv.Atoi(t.Seeders)
		size, _ := strconv.ParseInt(t.Size, 10, 64)

		results = append(results, models.RawSource{
			Title:    t.Name,
			InfoHash: strings.ToLower(t.InfoHash),
			Seeders:  seeders,
			Size:     size,
			Source:   providerApibay,
		})
	}

	return results
}

// matchesEpisode keeps releases naming the requested episode, a full pack of
// the requested season, or a complete-series pack.
func matchesEpisode(name string, season, episode int) bool {
	parsed := torrentname.Parse(name)
	if parsed == nil {
		return false
	}
	// A release with no season or episode marker at all is treated as a
	// complete-series pack, like an explicit "complete" tag.
	if parsed.IsComplete || (parsed.Season == 0 && parsed.Episode == 0) {
		return true
	}
	if parsed.Season != season {
		return false
	}
	// Season pack (no episode marker) still contains the episode.
	return parsed.Episode == 0 || parsed.Episode == episode
}

func buildSearchQuery(query, mediaType string, season, episode int) string {
	title := strings.TrimSpace(query)
	if mediaType == models.ContentTypeSeries && season > 0 {
		if episode > 0 {
			return fmt.Sprintf("%s S%02dE%02d", title, season, episode)
		}
		return fmt.Sprintf("%s S%02d", title, season)
	}
	return title
}
