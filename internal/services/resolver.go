package services

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/provider"
	"github.com/amaumene/gostreamer/internal/similarity"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// Titles this short are gated by reciprocal containment instead of edit
// distance, which is too coarse for them.
const shortTitleRunes = 10

// TitleResolver finds and confirms the provider page for a catalog title.
// Confirmed matches are persisted in the mapping store; a fresh mapping
// answers later lookups with no provider traffic.
type TitleResolver struct {
	provider   provider.Client
	db         database.Database
	mappingTTL time.Duration
	logger     logger.Logger
}

func NewTitleResolver(p provider.Client, db database.Database, mappingTTL time.Duration) *TitleResolver {
	return &TitleResolver{
		provider:   p,
		db:         db,
		mappingTTL: mappingTTL,
		logger:     logger.New(),
	}
}

// searchAttempt is one entry of the ordered fallback ladder.
type searchAttempt struct {
	query    string
	typeHint string
}

// Resolve returns the provider URL for imdbID. contentType is movie|series.
func (r *TitleResolver) Resolve(ctx context.Context, imdbID, contentType string, info models.TitleInfo) (string, error) {
	if mapping, err := r.db.GetMapping(imdbID); err != nil {
		r.logger.Warnf("[Resolver] mapping lookup failed for %s: %v", imdbID, err)
	} else if mapping != nil {
		if time.Since(mapping.CreatedAt) < r.mappingTTL {
			r.logger.Debugf("[Resolver] mapping cache hit for %s", imdbID)
			return mapping.ProviderURL, nil
		}
		r.logger.Debugf("[Resolver] mapping for %s expired, re-resolving", imdbID)
	}

	for _, attempt := range buildAttempts(contentType, info) {
		candidates, err := r.provider.Search(ctx, attempt.query, attempt.typeHint)
		if err != nil {
			// Transient search failures move on to the next strategy.
			r.logger.Warnf("[Resolver] search %q (%s) failed: %v", attempt.query, attempt.typeHint, err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		accepted := r.acceptCandidate(ctx, candidates, attempt.query, info)
		if accepted == nil {
			continue
		}

		providerURL := decodeURL(accepted.URL)
		r.persistMapping(ctx, imdbID, contentType, providerURL, accepted)
		return providerURL, nil
	}

	return "", errors.NewNotFoundError("no provider match for " + info.Title)
}

// buildAttempts produces the ordered fallback ladder: primary title with the
// inferred type, then series for anime, alternate and original titles, and
// finally the parts of a separator-split title.
func buildAttempts(contentType string, info models.TitleInfo) []searchAttempt {
	primaryType := contentType
	if info.IsAnime {
		primaryType = models.ContentTypeAnime
	}

	attempts := []searchAttempt{{info.Title, primaryType}}

	if info.IsAnime {
		attempts = append(attempts, searchAttempt{info.Title, models.ContentTypeSeries})
	}

	if info.IsAnime && info.AlternateTitle != "" && info.AlternateTitle != info.Title {
		attempts = append(attempts,
			searchAttempt{info.AlternateTitle, models.ContentTypeAnime},
			searchAttempt{info.AlternateTitle, models.ContentTypeSeries},
		)
	}

	if info.OriginalTitle != "" && info.OriginalTitle != info.Title {
		if !info.IsAnime || containsNativeScript(info.OriginalTitle) {
			attempts = append(attempts, searchAttempt{info.OriginalTitle, primaryType})
		}
	}

	if idx := strings.Index(info.Title, ":"); idx > 0 {
		leading := strings.TrimSpace(info.Title[:idx])
		trailing := strings.TrimSpace(info.Title[idx+1:])
		// The subtitle after the separator is usually the more
		// discriminative query, so it is tried regardless of length.
		if trailing != "" {
			attempts = append(attempts, searchAttempt{trailing, primaryType})
		}
		if len(leading) > 3 {
			attempts = append(attempts, searchAttempt{leading, primaryType})
		}
	}

	return attempts
}

// acceptCandidate applies the type, year, and similarity gates to a result
// set and returns the first candidate passing all of them.
func (r *TitleResolver) acceptCandidate(ctx context.Context, candidates []models.Candidate, query string, info models.TitleInfo) *models.Candidate {
	animeInSet := false
	for _, c := range candidates {
		if c.Type == models.ContentTypeAnime {
			animeInSet = true
			break
		}
	}

	for i := range candidates {
		c := &candidates[i]

		// Anime requests reject non-anime candidates whenever the set has
		// anime ones; non-anime requests always reject anime candidates.
		if info.IsAnime && animeInSet && c.Type != models.ContentTypeAnime {
			continue
		}
		if !info.IsAnime && c.Type == models.ContentTypeAnime {
			continue
		}

		if !r.titleMatches(c.Title, query, info) {
			continue
		}

		if !r.yearMatches(ctx, c, info) {
			continue
		}

		r.logger.Infof("[Resolver] accepted %q (%s) for %q", c.Title, c.Type, info.Title)
		return c
	}

	return nil
}

// titleMatches is the similarity gate: edit-distance score against the
// requested or alternate title, substring containment of the active query,
// or, for short titles, reciprocal containment or a loose subsequence
// match (catches stylized provider spellings edit distance misses).
func (r *TitleResolver) titleMatches(candidateTitle, query string, info models.TitleInfo) bool {
	if similarity.Score(candidateTitle, info.Title) >= constants.SimilarityThreshold {
		return true
	}
	if info.AlternateTitle != "" && similarity.Score(candidateTitle, info.AlternateTitle) >= constants.SimilarityThreshold {
		return true
	}
	if len([]rune(similarity.Normalize(query))) >= constants.MinContainmentQueryLen &&
		similarity.Contains(candidateTitle, query) {
		return true
	}
	if len([]rune(similarity.Normalize(info.Title))) <= shortTitleRunes {
		if similarity.ReciprocalContains(candidateTitle, info.Title) {
			return true
		}
		if similarity.FuzzyMatch(info.Title, candidateTitle) {
			return true
		}
	}
	return false
}

// yearMatches checks |requestedYear - candidateYear| <= tolerance. A likely
// match missing its year gets one detail fetch to backfill it; the fetch is
// skipped for implausible candidates to save provider bandwidth.
func (r *TitleResolver) yearMatches(ctx context.Context, c *models.Candidate, info models.TitleInfo) bool {
	if info.Year == 0 {
		return true
	}

	if c.Year == 0 {
		details, err := r.provider.GetDetails(ctx, c.URL)
		if err != nil {
			r.logger.Warnf("[Resolver] year backfill failed for %s: %v", c.URL, err)
			return true // unknown year is not a rejection
		}
		c.Year = details.Year
	}

	if c.Year == 0 {
		return true
	}
	diff := info.Year - c.Year
	if diff < 0 {
		diff = -diff
	}
	return diff <= constants.YearTolerance
}

// persistMapping stores the confirmed match with whatever metadata the
// detail page offers. Failures are logged; the resolution still succeeds.
func (r *TitleResolver) persistMapping(ctx context.Context, imdbID, contentType, providerURL string, c *models.Candidate) {
	metadata := database.MappingMetadata{Year: c.Year}
	if details, err := r.provider.GetDetails(ctx, providerURL); err == nil {
		if details.Year > 0 {
			metadata.Year = details.Year
		}
		metadata.SeasonsCount = len(details.Seasons)
	} else {
		r.logger.Warnf("[Resolver] metadata fetch failed for %s: %v", providerURL, err)
	}

	mapping := &database.StreamMapping{
		IMDBId:      imdbID,
		ProviderURL: providerURL,
		ContentType: contentType,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	if err := r.db.UpsertMapping(mapping); err != nil {
		r.logger.Warnf("[Resolver] failed to persist mapping for %s: %v", imdbID, err)
	}
}

// decodeURL percent-decodes a provider URL, falling back to the raw form.
func decodeURL(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// containsNativeScript reports whether the title carries CJK characters,
// the qualifying scripts for original-title retries on anime.
func containsNativeScript(title string) bool {
	for _, r := range title {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}
