package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/timshannon/bolthold"
	bolt "go.etcd.io/bbolt"
)

const (
	// Default database file permissions
	dbFileMode = 0600
	dbDirMode  = 0755

	// Default database filename
	defaultDBFile = "data.db"
)

// BoltDB implements the Database interface using BoltDB.
type BoltDB struct {
	store *bolthold.Store
}

// BoltStreamMapping is the BoltDB-specific structure for mapping storage.
type BoltStreamMapping struct {
	IMDBId       string `boltholdKey:"IMDBId"`
	ProviderURL  string
	ContentType  string
	Year         int
	SeasonsCount int
	SeasonCounts map[int]int
	CreatedAt    time.Time
}

// NewBolt creates a new BoltDB database instance.
// If dbPath is empty, uses the default database file in current directory.
func NewBolt(dbPath string) (*BoltDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", defaultDBFile)
	}

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, dbDirMode); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Bounded lock wait so a second process fails fast instead of hanging
	// on the database file lock.
	store, err := bolthold.Open(dbPath, dbFileMode, &bolthold.Options{
		Options: &bolt.Options{Timeout: 5 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	return &BoltDB{store: store}, nil
}

// Close closes the database connection.
func (db *BoltDB) Close() error {
	return db.store.Close()
}

// GetMapping retrieves a mapping by IMDb id.
// Returns nil if not found, without error.
func (db *BoltDB) GetMapping(imdbID string) (*StreamMapping, error) {
	var stored BoltStreamMapping
	err := db.store.Get(imdbID, &stored)
	if err == bolthold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	return convertToMapping(&stored), nil
}

func convertToMapping(stored *BoltStreamMapping) *StreamMapping {
	return &StreamMapping{
		IMDBId:      stored.IMDBId,
		ProviderURL: stored.ProviderURL,
		ContentType: stored.ContentType,
		Metadata: MappingMetadata{
			Year:         stored.Year,
			SeasonsCount: stored.SeasonsCount,
			SeasonCounts: stored.SeasonCounts,
		},
		CreatedAt: stored.CreatedAt,
	}
}

// UpsertMapping stores or replaces the mapping for its IMDb id.
// Concurrent resolutions of the same id race into the same idempotent write.
func (db *BoltDB) UpsertMapping(mapping *StreamMapping) error {
	stored := &BoltStreamMapping{
		IMDBId:       mapping.IMDBId,
		ProviderURL:  mapping.ProviderURL,
		ContentType:  mapping.ContentType,
		Year:         mapping.Metadata.Year,
		SeasonsCount: mapping.Metadata.SeasonsCount,
		SeasonCounts: mapping.Metadata.SeasonCounts,
		CreatedAt:    time.Now(),
	}

	if err := db.store.Upsert(mapping.IMDBId, stored); err != nil {
		return fmt.Errorf("failed to store mapping: %w", err)
	}

	return nil
}

// UpdateSeasonCounts merges learned season counts into an existing mapping.
// Missing mappings are ignored; the next resolution will recreate them.
func (db *BoltDB) UpdateSeasonCounts(imdbID string, counts map[int]int) error {
	var stored BoltStreamMapping
	err := db.store.Get(imdbID, &stored)
	if err == bolthold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get mapping for season counts: %w", err)
	}

	if stored.SeasonCounts == nil {
		stored.SeasonCounts = make(map[int]int, len(counts))
	}
	for season, count := range counts {
		stored.SeasonCounts[season] = count
	}

	if err := db.store.Upsert(imdbID, &stored); err != nil {
		return fmt.Errorf("failed to update season counts: %w", err)
	}

	return nil
}

// DeleteMapping removes a mapping by IMDb id.
// Returns nil if the mapping doesn't exist.
func (db *BoltDB) DeleteMapping(imdbID string) error {
	err := db.store.Delete(imdbID, BoltStreamMapping{})
	if err == bolthold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}

	return nil
}
