package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amaumene/gostreamer/internal/cache"
	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/pkg/httputil"
	"github.com/amaumene/gostreamer/pkg/logger"
	"github.com/amaumene/gostreamer/pkg/ratelimiter"
)

const (
	searchEndpoint  = "/search"
	serversEndpoint = "/ajax/episode/servers"
)

var (
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	numberPattern = regexp.MustCompile(`\d+`)
)

// HTTPClient implements Client against the provider's HTML pages and AJAX
// endpoints. Search and detail fetches are rate limited and cached.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimiter.TokenBucket
	cache       *cache.LRUCache
	logger      logger.Logger
}

// NewHTTPClient creates a provider client for the given base URL.
func NewHTTPClient(baseURL string, memCache *cache.LRUCache) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httputil.NewHTTPClient(constants.ProviderFetchTimeout),
		rateLimiter: ratelimiter.NewTokenBucket(constants.ProviderRateLimit, constants.ProviderRateBurst),
		cache:       memCache,
		logger:      logger.New(),
	}
}

// Search queries the provider's search page and parses the result cards.
func (c *HTTPClient) Search(ctx context.Context, query, typeHint string) ([]models.Candidate, error) {
	cacheKey := fmt.Sprintf("provider_search_%s_%s", typeHint, query)
	if cached, found := c.cache.Get(cacheKey); found {
		if candidates, ok := cached.([]models.Candidate); ok {
			c.logger.Debugf("[Provider] cache hit for search: %s (%s)", query, typeHint)
			return candidates, nil
		}
	}

	searchURL := fmt.Sprintf("%s%s?keyword=%s&type=%s",
		c.baseURL, searchEndpoint, url.QueryEscape(query), url.QueryEscape(typeHint))

	doc, err := c.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("search failed for %q: %w", query, err)
	}

	var candidates []models.Candidate
	doc.Find(".film-card").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.film-name")
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		candidate := models.Candidate{
			Title:  strings.TrimSpace(link.Text()),
			URL:    c.absoluteURL(href),
			Type:   strings.ToLower(strings.TrimSpace(card.Find(".film-type").Text())),
			Poster: card.Find("img.film-poster").AttrOr("data-src", ""),
		}
		if yearText := card.Find(".film-year").Text(); yearText != "" {
			if m := yearPattern.FindString(yearText); m != "" {
				candidate.Year, _ = strconv.Atoi(m)
			}
		}

		candidates = append(candidates, candidate)
	})

	c.logger.Debugf("[Provider] search %q (%s) returned %d candidates", query, typeHint, len(candidates))
	c.cache.Set(cacheKey, candidates)
	return candidates, nil
}

// GetDetails parses a title's detail page: confirmed title, year, seasons.
func (c *HTTPClient) GetDetails(ctx context.Context, pageURL string) (*models.TitleDetails, error) {
	cacheKey := "provider_details_" + pageURL
	if cached, found := c.cache.Get(cacheKey); found {
		if details, ok := cached.(*models.TitleDetails); ok {
			return details, nil
		}
	}

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("detail fetch failed for %s: %w", pageURL, err)
	}

	details := &models.TitleDetails{
		Title: strings.TrimSpace(doc.Find("h1.film-title").Text()),
	}
	if m := yearPattern.FindString(doc.Find(".film-stats .released").Text()); m != "" {
		details.Year, _ = strconv.Atoi(m)
	}

	doc.Find(".season-list a.season-item").Each(func(i int, item *goquery.Selection) {
		season := models.Season{
			Label: strings.TrimSpace(item.Text()),
			URL:   c.absoluteURL(item.AttrOr("href", "")),
		}
		if numStr, ok := item.Attr("data-season"); ok {
			season.Number, _ = strconv.Atoi(numStr)
		} else if m := numberPattern.FindString(season.Label); m != "" {
			season.Number, _ = strconv.Atoi(m)
		}
		details.Seasons = append(details.Seasons, season)
	})

	c.cache.Set(cacheKey, details)
	return details, nil
}

// GetSeasonEpisodes parses one season's episode list.
func (c *HTTPClient) GetSeasonEpisodes(ctx context.Context, seasonURL string) ([]models.Episode, error) {
	cacheKey := "provider_episodes_" + seasonURL
	if cached, found := c.cache.Get(cacheKey); found {
		if episodes, ok := cached.([]models.Episode); ok {
			return episodes, nil
		}
	}

	doc, err := c.fetchDocument(ctx, seasonURL)
	if err != nil {
		return nil, fmt.Errorf("episode fetch failed for %s: %w", seasonURL, err)
	}

	var episodes []models.Episode
	doc.Find(".episode-list a.episode-item").Each(func(_ int, item *goquery.Selection) {
		episode := models.Episode{
			Number:        models.EpisodeNumberUnknown,
			DisplayNumber: strings.TrimSpace(item.Find(".episode-number").Text()),
			Title:         strings.TrimSpace(item.Find(".episode-title").Text()),
			URL:           c.absoluteURL(item.AttrOr("href", "")),
		}
		if numStr, ok := item.Attr("data-number"); ok {
			if n, err := strconv.Atoi(numStr); err == nil {
				episode.Number = n
			}
		} else if m := numberPattern.FindString(episode.DisplayNumber); m != "" {
			episode.Number, _ = strconv.Atoi(m)
		}
		lowerTitle := strings.ToLower(episode.Title)
		episode.IsSpecial = strings.Contains(lowerTitle, "special") || strings.Contains(lowerTitle, "ova")

		episodes = append(episodes, episode)
	})

	c.cache.Set(cacheKey, episodes)
	return episodes, nil
}

type serversResponse struct {
	Servers []struct {
		Index    int    `json:"index"`
		EmbedURL string `json:"embedUrl"`
	} `json:"servers"`
}

// GetServers lists embed servers for a content id via the AJAX endpoint.
// The provider requires the originating page as Referer.
func (c *HTTPClient) GetServers(ctx context.Context, contentID, referer string) ([]models.Server, error) {
	c.rateLimiter.Wait()

	serversURL := fmt.Sprintf("%s%s?id=%s", c.baseURL, serversEndpoint, url.QueryEscape(contentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serversURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server fetch failed for %s: %w", contentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server fetch for %s: status %d", contentID, resp.StatusCode)
	}

	var parsed serversResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode server list for %s: %w", contentID, err)
	}

	servers := make([]models.Server, 0, len(parsed.Servers))
	for _, s := range parsed.Servers {
		servers = append(servers, models.Server{Index: s.Index, EmbedURL: s.EmbedURL})
	}
	return servers, nil
}

func (c *HTTPClient) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	c.rateLimiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (c *HTTPClient) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return c.baseURL + "/" + strings.TrimLeft(href, "/")
}
