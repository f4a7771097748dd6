// Package models defines the domain types shared across services.
package models

// ContentType distinguishes provider pages for movies and series.
const (
	ContentTypeMovie  = "movie"
	ContentTypeSeries = "series"
	ContentTypeAnime  = "anime"
)

// TitleInfo carries everything known about the requested title before
// the provider is consulted.
type TitleInfo struct {
	Title          string
	AlternateTitle string // native-script or localized title, if any
	OriginalTitle  string
	Year           int
	IsAnime        bool
}

// Candidate is a single provider search hit.
type Candidate struct {
	Title  string
	URL    string
	Type   string // movie | series | anime
	Year   int    // 0 when the search listing omits it
	Poster string
}

// TitleDetails is the provider's extended detail page for a title.
type TitleDetails struct {
	Title   string
	Year    int
	Seasons []Season
}

// Season is one provider season entry. Episodes is populated lazily.
type Season struct {
	Number   int // >= 100 denotes a "final/part" sentinel season
	Label    string
	URL      string
	Episodes []Episode
}

// EpisodeNumberUnknown marks episodes whose display number could not be parsed.
const EpisodeNumberUnknown = -1

// Episode is one playable episode page.
type Episode struct {
	Number        int
	DisplayNumber string
	Title         string
	URL           string
	IsSpecial     bool
}

// Server is an embed server attached to an episode or movie page.
type Server struct {
	Index            int
	EmbedURL         string
	ResolvedVideoURL string
}

// StreamLink is the final resolved playback target.
type StreamLink struct {
	StreamURL   string            `json:"streamUrl"`
	Headers     map[string]string `json:"headers,omitempty"`
	ServerIndex int               `json:"serverIndex"`
}

// Delivery types for StreamSource.
const (
	DeliveryHLS = "hls"
	DeliveryMP4 = "mp4"
	DeliveryP2P = "p2p"
)

// Audio modes for StreamSource.
const (
	AudioModeSingle = "single"
	AudioModeDual   = "dual"
	AudioModeMulti  = "multi"
)

// StreamSource is one entry of the final ranked source list.
type StreamSource struct {
	ID             string   `json:"id"`
	ProviderName   string   `json:"provider"`
	DeliveryType   string   `json:"deliveryType"`
	PlaybackURL    string   `json:"playbackUrl"`
	QualityLabel   string   `json:"quality,omitempty"`
	Seeds          int      `json:"seeds,omitempty"`
	SizeLabel      string   `json:"size,omitempty"`
	VideoCodec     string   `json:"videoCodec,omitempty"`
	AudioCodec     string   `json:"audioCodec,omitempty"`
	AudioLanguages []string `json:"audioLanguages,omitempty"`
	AudioMode      string   `json:"audioMode,omitempty"`

	// Derived at ranking time, not persisted.
	CompatibilityScore float64 `json:"-"`
}

// RawSource is an unparsed torrent candidate as returned by an indexer.
type RawSource struct {
	Title    string
	InfoHash string
	Seeders  int
	Size     int64 // bytes, 0 when the indexer only reports a label
	Source   string
}
