// Package handlers exposes the resolution pipeline over HTTP: stream
// resolution with live progress events, ranked source listings, torrent
// playback, and session/mapping lifecycle endpoints.
package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/services"
	"github.com/amaumene/gostreamer/internal/swarm"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// Stream ids are "tt1234567" for movies or "tt1234567:2:7" for episodes.
var (
	streamIDPattern = regexp.MustCompile(`^(tt\d+)(?::(\d+):(\d+))?$`)
	imdbIDPattern   = regexp.MustCompile(`^tt\d+$`)
)

// Handler holds the services the HTTP layer dispatches into.
type Handler struct {
	orchestrator *services.Orchestrator
	swarm        *swarm.Manager
	db           database.Database
	logger       logger.Logger
}

func New(orchestrator *services.Orchestrator, swarmManager *swarm.Manager, db database.Database) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		swarm:        swarmManager,
		db:           db,
		logger:       logger.New(),
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/stream/:id", h.ResolveStream)
		api.GET("/sources/:type/:id", h.ListSources)
		api.GET("/play/:infoHash", h.PlayTorrent)
		api.POST("/cleanup/:infoHash", h.CleanupStream)
		api.DELETE("/mappings/:imdbId", h.DeleteMapping)
	}
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": constants.ServiceName,
		"version": constants.ServiceVersion,
	})
}

// ResolveStream resolves a stream and delivers progress as server-sent
// events, ending with a "stream" event carrying the playable link or an
// "error" event.
func (h *Handler) ResolveStream(c *gin.Context) {
	imdbID, season, episode, ok := parseStreamID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream id"})
		return
	}

	info, ok := titleInfoFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title query parameter is required"})
		return
	}

	contentType := models.ContentTypeMovie
	if season > 0 {
		contentType = models.ContentTypeSeries
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout)
	defer cancel()

	progress := make(chan services.ProgressEvent, 16)
	type outcome struct {
		link *models.StreamLink
		err  error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		link, err := h.orchestrator.ResolveStream(ctx, imdbID, contentType, season, episode, info, progress)
		resultCh <- outcome{link, err}
		close(progress)
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	for ev := range progress {
		c.SSEvent("progress", ev)
		c.Writer.Flush()
	}

	result := <-resultCh
	if result.err != nil {
		h.logger.Warnf("[HTTP] resolution failed for %s: %v", imdbID, result.err)
		c.SSEvent("error", gin.H{"message": "stream unavailable"})
		c.Writer.Flush()
		return
	}

	c.SSEvent("stream", result.link)
	c.Writer.Flush()
}

// ListSources returns the ranked source list for a title.
func (h *Handler) ListSources(c *gin.Context) {
	contentType := c.Param("type")
	if contentType != models.ContentTypeMovie && contentType != models.ContentTypeSeries && contentType != models.ContentTypeAnime {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be movie, series, or anime"})
		return
	}

	imdbID, season, episode, ok := parseStreamID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream id"})
		return
	}

	info, ok := titleInfoFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title query parameter is required"})
		return
	}
	if contentType == models.ContentTypeAnime {
		info.IsAnime = true
		contentType = models.ContentTypeSeries
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.RequestTimeout)
	defer cancel()

	sources, err := h.orchestrator.ListSources(ctx, imdbID, contentType, season, episode, info)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// PlayTorrent acquires the swarm file for a hash and serves it with range
// support so a player can seek.
func (h *Handler) PlayTorrent(c *gin.Context) {
	fileIndex := -1
	if idxStr := c.Query("fileIndex"); idxStr != "" {
		if idx, err := strconv.Atoi(idxStr); err == nil {
			fileIndex = idx
		}
	}

	handle, err := h.swarm.AcquireFile(c.Request.Context(), c.Param("infoHash"), fileIndex)
	if err != nil {
		h.respondError(c, err)
		return
	}

	reader := handle.NewReader()
	defer reader.Close()
	reader.SetReadahead(constants.PlaybackPriorityBytes)

	http.ServeContent(c.Writer, c.Request, handle.Name, time.Time{}, reader)
}

// CleanupStream destroys the swarm session for a hash. Always succeeds.
func (h *Handler) CleanupStream(c *gin.Context) {
	h.orchestrator.CleanupStream(c.Param("infoHash"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteMapping invalidates the stored provider mapping for a title, the
// manual recovery path when a provider restructures its URLs.
func (h *Handler) DeleteMapping(c *gin.Context) {
	imdbID := c.Param("imdbId")
	if !imdbIDPattern.MatchString(imdbID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid imdb id"})
		return
	}

	if err := h.db.DeleteMapping(imdbID); err != nil {
		h.logger.Errorf("[HTTP] failed to delete mapping %s: %v", imdbID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete mapping"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var se *errors.StreamError
	if stderrors.As(err, &se) {
		switch se.Type {
		case errors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case errors.ErrorTypeInvalidID:
			status = http.StatusBadRequest
		case errors.ErrorTypeTimeout:
			status = http.StatusGatewayTimeout
		case errors.ErrorTypeSwarmUnavailable:
			status = http.StatusBadGateway
		}
	}

	h.logger.Warnf("[HTTP] request failed: %v", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseStreamID splits "tt123:2:7" into its id, season, and episode parts.
// Season and episode are 0 for movie ids.
func parseStreamID(id string) (imdbID string, season, episode int, ok bool) {
	m := streamIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, 0, false
	}
	imdbID = m[1]
	if m[2] != "" {
		season, _ = strconv.Atoi(m[2])
		episode, _ = strconv.Atoi(m[3])
		if season == 0 || episode == 0 {
			return "", 0, 0, false
		}
	}
	return imdbID, season, episode, true
}

// titleInfoFromQuery builds the request's title info. The title itself is
// required; everything else is optional.
func titleInfoFromQuery(c *gin.Context) (models.TitleInfo, bool) {
	info := models.TitleInfo{
		Title:          c.Query("title"),
		AlternateTitle: c.Query("alternateTitle"),
		OriginalTitle:  c.Query("originalTitle"),
		IsAnime:        c.Query("anime") == "true",
	}
	if info.Title == "" {
		return info, false
	}
	if yearStr := c.Query("year"); yearStr != "" {
		info.Year, _ = strconv.Atoi(yearStr)
	}
	return info, true
}
