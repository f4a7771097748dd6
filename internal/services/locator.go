package services

import (
	"context"
	"sort"
	"sync"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/provider"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// EpisodeLocator finds the provider page for one episode, handling
// absolute-numbering catalogs and sentinel "final/part" seasons. Learned
// per-season episode counts are persisted into the mapping metadata so
// repeat lookups take the fast path.
type EpisodeLocator struct {
	provider provider.Client
	db       database.Database
	logger   logger.Logger
}

func NewEpisodeLocator(p provider.Client, db database.Database) *EpisodeLocator {
	return &EpisodeLocator{
		provider: p,
		db:       db,
		logger:   logger.New(),
	}
}

// Locate returns the percent-decoded URL of the requested episode.
func (l *EpisodeLocator) Locate(ctx context.Context, imdbID, providerURL string, season, episode int, isAnime bool) (string, error) {
	details, err := l.provider.GetDetails(ctx, providerURL)
	if err != nil {
		return "", errors.NewProviderError("failed to load season list", err)
	}

	candidates := candidateSeasons(details.Seasons, season, isAnime)
	if len(candidates) == 0 {
		return "", errors.NewNotFoundError("no matching season on provider page")
	}

	if counts := l.cachedCounts(imdbID, candidates); counts != nil {
		if episodeURL, ok := l.locateFast(ctx, candidates, counts, episode); ok {
			return episodeURL, nil
		}
		l.logger.Debugf("[Locator] season-count cache stale for %s, falling back", imdbID)
	}

	return l.locateSlow(ctx, imdbID, candidates, episode)
}

// candidateSeasons selects the seasons to search, in walk order.
//
// Anime requested as season 1 on a multi-season provider page is treated as
// one continuous timeline: upstream catalogs collapse long-running shows
// into a single season while the provider splits them by cour or arc.
// Sentinel seasons (number >= 100, "final"/"part" ranges) are appended for
// anime and late seasons.
func candidateSeasons(seasons []models.Season, season int, isAnime bool) []models.Season {
	var candidates []models.Season

	if isAnime && season == 1 && len(seasons) > 1 {
		candidates = append(candidates, seasons...)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Number < candidates[j].Number
		})
		return candidates
	}

	for _, s := range seasons {
		if s.Number == season {
			candidates = append(candidates, s)
		}
	}

	if isAnime || season >= 4 {
		var sentinels []models.Season
		for _, s := range seasons {
			if s.Number >= constants.SentinelSeasonNumber && !containsSeason(candidates, s.Number) {
				sentinels = append(sentinels, s)
			}
		}
		sort.SliceStable(sentinels, func(i, j int) bool {
			return sentinels[i].Number < sentinels[j].Number
		})
		candidates = append(candidates, sentinels...)
	}

	return candidates
}

func containsSeason(seasons []models.Season, number int) bool {
	for _, s := range seasons {
		if s.Number == number {
			return true
		}
	}
	return false
}

// cachedCounts returns the mapping's season-count cache when it covers
// every candidate season, nil otherwise.
func (l *EpisodeLocator) cachedCounts(imdbID string, candidates []models.Season) map[int]int {
	mapping, err := l.db.GetMapping(imdbID)
	if err != nil || mapping == nil || len(mapping.Metadata.SeasonCounts) == 0 {
		return nil
	}

	counts := mapping.Metadata.SeasonCounts
	for _, s := range candidates {
		if _, ok := counts[s.Number]; !ok {
			return nil
		}
	}
	return counts
}

// locateFast walks the cached counts to find the owning season, then fetches
// only that season's episode list.
func (l *EpisodeLocator) locateFast(ctx context.Context, candidates []models.Season, counts map[int]int, episode int) (string, bool) {
	remaining := episode
	for _, s := range candidates {
		count := counts[s.Number]
		if count == 0 {
			// Zero-episode seasons never consume the counter.
			continue
		}
		if remaining > count {
			remaining -= count
			continue
		}

		episodes, err := l.provider.GetSeasonEpisodes(ctx, s.URL)
		if err != nil {
			l.logger.Warnf("[Locator] episode fetch failed for %s: %v", s.URL, err)
			return "", false
		}
		if remaining > len(episodes) {
			// Cached count disagrees with the live list.
			return "", false
		}
		episodeURL := pickEpisode(episodes, remaining)
		return episodeURL, episodeURL != ""
	}

	return "", false
}

// locateSlow resolves without a usable count cache. Many candidate seasons
// are scanned concurrently in bounded batches and the learned counts
// persisted; few are walked sequentially.
func (l *EpisodeLocator) locateSlow(ctx context.Context, imdbID string, candidates []models.Season, episode int) (string, error) {
	if len(candidates) > constants.SequentialSeasonLimit {
		return l.locateBatched(ctx, imdbID, candidates, episode)
	}
	return l.locateSequential(ctx, candidates, episode)
}

func (l *EpisodeLocator) locateBatched(ctx context.Context, imdbID string, candidates []models.Season, episode int) (string, error) {
	lists := l.fetchAllSeasons(ctx, candidates)

	counts := make(map[int]int, len(candidates))
	for i, s := range candidates {
		counts[s.Number] = len(lists[i])
	}
	if err := l.db.UpdateSeasonCounts(imdbID, counts); err != nil {
		l.logger.Warnf("[Locator] failed to persist season counts for %s: %v", imdbID, err)
	}

	remaining := episode
	for _, episodes := range lists {
		if len(episodes) == 0 {
			continue
		}
		if remaining > len(episodes) {
			remaining -= len(episodes)
			continue
		}
		if episodeURL := pickEpisode(episodes, remaining); episodeURL != "" {
			return episodeURL, nil
		}
		return "", errors.NewNotFoundError("episode missing from its season listing")
	}

	return "", errors.NewNotFoundError("episode index past the last season")
}

func (l *EpisodeLocator) locateSequential(ctx context.Context, candidates []models.Season, episode int) (string, error) {
	remaining := episode
	for _, s := range candidates {
		episodes, err := l.provider.GetSeasonEpisodes(ctx, s.URL)
		if err != nil {
			l.logger.Warnf("[Locator] episode fetch failed for %s: %v", s.URL, err)
			continue
		}
		if len(episodes) == 0 {
			continue
		}

		// A literal episode-number match wins immediately.
		if match := findByNumber(episodes, episode); match != "" {
			return decodeURL(match), nil
		}

		if len(candidates) > 1 {
			// Relative index across the candidate seasons.
			if remaining > len(episodes) {
				remaining -= len(episodes)
				continue
			}
			if episodeURL := pickEpisode(episodes, remaining); episodeURL != "" {
				return episodeURL, nil
			}
			continue
		}

		if episode >= 1 && episode <= len(episodes) {
			return decodeURL(episodes[episode-1].URL), nil
		}
	}

	return "", errors.NewNotFoundError("episode not found in any candidate season")
}

// fetchAllSeasons loads every candidate's episode list with bounded
// parallel fan-out. A failed season yields an empty list.
func (l *EpisodeLocator) fetchAllSeasons(ctx context.Context, candidates []models.Season) [][]models.Episode {
	lists := make([][]models.Episode, len(candidates))

	for start := 0; start < len(candidates); start += constants.SeasonFetchBatchSize {
		end := min(start+constants.SeasonFetchBatchSize, len(candidates))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				episodes, err := l.provider.GetSeasonEpisodes(ctx, candidates[i].URL)
				if err != nil {
					l.logger.Warnf("[Locator] episode fetch failed for %s: %v", candidates[i].URL, err)
					return
				}
				lists[i] = episodes
			}(i)
		}
		wg.Wait()
	}

	return lists
}

// pickEpisode matches by literal episode number first, then positionally.
func pickEpisode(episodes []models.Episode, number int) string {
	if match := findByNumber(episodes, number); match != "" {
		return decodeURL(match)
	}
	if number >= 1 && number <= len(episodes) {
		return decodeURL(episodes[number-1].URL)
	}
	return ""
}

func findByNumber(episodes []models.Episode, number int) string {
	for _, ep := range episodes {
		if ep.Number == number {
			return ep.URL
		}
	}
	return ""
}
