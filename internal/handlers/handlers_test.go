package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/ranker"
	"github.com/amaumene/gostreamer/internal/services"
)

type stubProvider struct{}

func (stubProvider) Search(context.Context, string, string) ([]models.Candidate, error) {
	return nil, nil
}

func (stubProvider) GetDetails(context.Context, string) (*models.TitleDetails, error) {
	return &models.TitleDetails{}, nil
}

func (stubProvider) GetSeasonEpisodes(context.Context, string) ([]models.Episode, error) {
	return nil, nil
}

func (stubProvider) GetServers(context.Context, string, string) ([]models.Server, error) {
	return nil, nil
}

type stubEmbed struct{}

func (stubEmbed) Extract(context.Context, string, string) (string, error) { return "", nil }

type stubIndexer struct{}

func (stubIndexer) Search(context.Context, string, string, int, int) ([]models.RawSource, error) {
	return nil, nil
}

type stubSwarm struct {
	destroyed []string
}

func (s *stubSwarm) Destroy(infoHash string) {
	s.destroyed = append(s.destroyed, infoHash)
}

type stubDB struct {
	deleted []string
}

func (s *stubDB) GetMapping(string) (*database.StreamMapping, error) { return nil, nil }
func (s *stubDB) UpsertMapping(*database.StreamMapping) error        { return nil }
func (s *stubDB) UpdateSeasonCounts(string, map[int]int) error       { return nil }
func (s *stubDB) Close() error                                       { return nil }

func (s *stubDB) DeleteMapping(imdbID string) error {
	s.deleted = append(s.deleted, imdbID)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubSwarm, *stubDB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := &stubDB{}
	sw := &stubSwarm{}
	resolver := services.NewTitleResolver(stubProvider{}, db, 720*time.Hour)
	locator := services.NewEpisodeLocator(stubProvider{}, db)
	orchestrator := services.NewOrchestrator(resolver, locator, stubProvider{}, stubEmbed{}, stubIndexer{}, ranker.New(), sw)

	h := New(orchestrator, nil, db)
	r := gin.New()
	h.RegisterRoutes(r)
	return r, sw, db
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestResolveStreamRejectsBadID(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, id := range []string{"1234", "tt", "ttabc", "tt123:0:1", "tt123:1", "tt123:1:2:3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/"+id+"?title=x", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "id %q", id)
	}
}

func TestResolveStreamRequiresTitle(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/tt0111161", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveStreamEmitsErrorEventOnNoMatch(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/tt0111161?title=Nothing", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), "stream unavailable")
}

func TestListSourcesRejectsBadType(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources/documentary/tt0111161?title=x", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSourcesReturnsEmbedWithNoTorrents(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources/movie/tt0111161?title=Example&year=1994", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sources []models.StreamSource `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, models.DeliveryHLS, body.Sources[0].DeliveryType)
}

func TestCleanupStreamAlwaysSucceeds(t *testing.T) {
	r, sw, _ := newTestRouter(t)

	hash := strings.Repeat("a", 40)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cleanup/"+hash, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{hash}, sw.destroyed)
}

func TestDeleteMapping(t *testing.T) {
	r, _, db := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/mappings/tt0111161", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"tt0111161"}, db.deleted)
}

func TestDeleteMappingRejectsBadID(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/mappings/not-an-id", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseStreamID(t *testing.T) {
	tests := []struct {
		id          string
		wantIMDB    string
		wantSeason  int
		wantEpisode int
		wantOK      bool
	}{
		{"tt0111161", "tt0111161", 0, 0, true},
		{"tt0944947:3:9", "tt0944947", 3, 9, true},
		{"tt0944947:0:9", "", 0, 0, false},
		{"0944947", "", 0, 0, false},
		{"", "", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			imdbID, season, episode, ok := parseStreamID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIMDB, imdbID)
			assert.Equal(t, tt.wantSeason, season)
			assert.Equal(t, tt.wantEpisode, episode)
		})
	}
}
