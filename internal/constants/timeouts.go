// Package constants defines timeout values and retry limits used throughout the application.
package constants

import "time"

// Timeout constants for various operations
const (
	// Request timeout for an entire stream resolution request
	RequestTimeout = 60 * time.Second

	// Timeout for a single provider search or page fetch
	ProviderFetchTimeout = 15 * time.Second

	// How long to wait for torrent metadata before retrying
	SwarmMetadataTimeout = 60 * time.Second

	// Destroy-and-re-add attempts after a metadata timeout
	SwarmMetadataRetries = 2

	// Idle time after which an unused swarm session is destroyed
	SwarmIdleTimeout = 15 * time.Minute
)

// Limits for concurrent and resident resources.
const (
	// Maximum resident swarm sessions; least-recently-accessed are evicted first
	MaxActiveSessions = 6

	// Bounded batch size when scanning provider seasons concurrently
	SeasonFetchBatchSize = 5

	// Season count above which the locator scans all seasons concurrently
	SequentialSeasonLimit = 3

	// Byte range given high piece priority so playback can start early
	PlaybackPriorityBytes = 5 * 1024 * 1024
)
