// Package database provides the stream-mapping store using BoltDB.
package database

import "time"

// MappingMetadata holds provider-side structure learned during resolution.
// SeasonCounts is the per-season episode count cache used by the episode
// locator fast path.
type MappingMetadata struct {
	Year         int
	SeasonsCount int
	SeasonCounts map[int]int // season number -> episode count
}

// StreamMapping associates an IMDb id with its confirmed provider page.
// It is an advisory cache: rebuildable on lookup failure, updated (never
// deleted) when season counts are learned.
type StreamMapping struct {
	IMDBId      string
	ProviderURL string
	ContentType string // "movie" or "series"
	Metadata    MappingMetadata
	CreatedAt   time.Time
}

// Database defines the interface for mapping persistence operations.
type Database interface {
	// GetMapping retrieves a mapping by IMDb id. Returns (nil, nil) when absent.
	GetMapping(imdbID string) (*StreamMapping, error)
	// UpsertMapping stores or replaces the mapping for its IMDb id
	UpsertMapping(mapping *StreamMapping) error
	// UpdateSeasonCounts merges learned season counts into an existing mapping
	UpdateSeasonCounts(imdbID string, counts map[int]int) error
	// DeleteMapping removes a mapping; absent ids are not an error
	DeleteMapping(imdbID string) error
	// Close closes the database connection
	Close() error
}
