// Package provider defines the content-provider client boundary and its
// HTTP implementation. The provider hosts watchable pages for titles; this
// package only knows how to search it and walk its season/episode structure.
package provider

import (
	"context"

	"github.com/amaumene/gostreamer/internal/models"
)

// Client is the read-only interface to the external content provider.
type Client interface {
	// Search returns candidate pages for a query. typeHint is one of
	// movie|series|anime and narrows the provider-side search.
	Search(ctx context.Context, query, typeHint string) ([]models.Candidate, error)

	// GetDetails fetches the extended detail page for a candidate URL:
	// confirmed title, release year, and the season list for series.
	GetDetails(ctx context.Context, pageURL string) (*models.TitleDetails, error)

	// GetSeasonEpisodes fetches the episode list for one season.
	GetSeasonEpisodes(ctx context.Context, seasonURL string) ([]models.Episode, error)

	// GetServers lists the embed servers for an episode or movie page.
	GetServers(ctx context.Context, contentID, referer string) ([]models.Server, error)
}

// EmbedResolver extracts a direct video URL from an embed page.
// A nil URL with nil error means the page yielded nothing extractable.
type EmbedResolver interface {
	Extract(ctx context.Context, embedURL, referer string) (string, error)
}
