// Package constants defines application-wide constants and default values.
package constants

const (
	// Service metadata
	ServiceName    = "GoStreamer"
	ServiceVersion = "1.0.0"

	// Default configuration values
	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	// Cache settings
	DefaultCacheSize = 5000
	DefaultCacheTTL  = 24 // hours

	// Mapping store settings
	DefaultMappingTTL = 720 // hours; expired mappings are treated as a miss, never deleted

	// Rate limiting for provider calls
	ProviderRateLimit = 20 // requests per second
	ProviderRateBurst = 5  // burst capacity
	ApibayRateLimit   = 5
	ApibayRateBurst   = 2

	// User agent sent to the provider and embed hosts
	BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Title matching thresholds.
const (
	// Minimum normalized edit-distance similarity for a candidate to be accepted
	SimilarityThreshold = 0.70

	// Minimum query length for the substring-containment acceptance rule
	MinContainmentQueryLen = 4

	// Maximum |requestedYear - candidateYear| for a year match
	YearTolerance = 1

	// Season numbers at or above this value are "final/part" sentinel seasons
	SentinelSeasonNumber = 100
)

// Source ranking limits.
const (
	// Maximum torrent-derived sources in the final list
	MaxRankedSources = 10

	// Minimum audio-compatible sources in the final list
	MinCompatibleSources = 3

	// Minimum dual-audio compatible sources when any dual-audio candidate exists
	MinDualAudioSources = 2
)

// Trackers appended to every magnet URI the swarm manager builds.
var TrackerList = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.stealth.si:80/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://open.demonii.com:1337/announce",
	"http://tracker.opentrackr.org:1337/announce",
	"https://tracker.opentrackr.org:443/announce",
}
