// Package releaseinfo parses structured attributes out of free-text release
// metadata (torrent names and indexer descriptions). It is pure: no I/O, no
// shared state, one token grammar per attribute.
package releaseinfo

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Resolution tiers.
const (
	Resolution4K    = "4K"
	Resolution1080p = "1080p"
	Resolution720p  = "720p"
	Resolution480p  = "480p"
)

// Containers.
const (
	ContainerMP4 = "mp4"
	ContainerMKV = "mkv"
)

// Video codecs.
const (
	VideoH264 = "h264"
	VideoHEVC = "hevc"
	VideoAV1  = "av1"
)

// Audio codecs, plus AudioMulti for dual/multi-audio releases that name no
// explicit codec.
const (
	AudioAAC    = "aac"
	AudioOpus   = "opus"
	AudioEAC3   = "eac3"
	AudioAC3    = "ac3"
	AudioDTS    = "dts"
	AudioTrueHD = "truehd"
	AudioMulti  = "multi"
)

// Info is the parsed attribute set for one release.
type Info struct {
	Seeders        int
	SizeLabel      string
	Resolution     string
	Container      string
	VideoCodec     string
	AudioCodec     string
	AudioLanguages []string
	DualAudio      bool
	MultiAudio     bool
	MultiChannel   bool
	MultiSubs      bool
	TenBit         bool
	HDR            bool
}

var (
	grammarOnce sync.Once

	seederPatterns []*regexp.Regexp
	sizePattern    *regexp.Regexp

	resolutionTokens map[string]*regexp.Regexp
	containerTokens  map[string]*regexp.Regexp
	videoTokens      map[string]*regexp.Regexp
	audioTokens      map[string]*regexp.Regexp

	languageTokens map[string]*regexp.Regexp

	dualAudioPattern    *regexp.Regexp
	multiAudioPattern   *regexp.Regexp
	bareMultiPattern    *regexp.Regexp
	multiChannelPattern *regexp.Regexp
	multiSubsPattern    *regexp.Regexp
	tenBitPattern       *regexp.Regexp
	hdrPattern          *regexp.Regexp
)

// audioPriority is the codec pick order when several tokens are present.
var audioPriority = []string{AudioAAC, AudioOpus, AudioEAC3, AudioAC3, AudioDTS, AudioTrueHD}

func initGrammar() {
	grammarOnce.Do(func() {
		seederPatterns = []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bseeders?\s*[:=]?\s*(\d+)`),
			regexp.MustCompile(`(?i)\bseeds?\s*[:=]?\s*(\d+)`),
			regexp.MustCompile(`👤\s*(\d+)`),
			regexp.MustCompile(`(?i)\bS\s*:\s*(\d+)\b`),
		}

		sizePattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(TB|GiB|GB|MiB|MB)\b`)

		resolutionTokens = map[string]*regexp.Regexp{
			Resolution4K:    regexp.MustCompile(`(?i)\b(?:2160p|4k|uhd)\b`),
			Resolution1080p: regexp.MustCompile(`(?i)\b(?:1080p|fhd|fullhd)\b`),
			Resolution720p:  regexp.MustCompile(`(?i)\b720p\b`),
			Resolution480p:  regexp.MustCompile(`(?i)\b(?:480p|576p)\b`),
		}

		containerTokens = map[string]*regexp.Regexp{
			ContainerMP4: regexp.MustCompile(`(?i)\bmp4\b`),
			ContainerMKV: regexp.MustCompile(`(?i)\bmkv\b`),
		}

		videoTokens = map[string]*regexp.Regexp{
			VideoH264: regexp.MustCompile(`(?i)\b(?:h\.?264|x264|avc)\b`),
			VideoHEVC: regexp.MustCompile(`(?i)\b(?:h\.?265|x265|hevc)\b`),
			VideoAV1:  regexp.MustCompile(`(?i)\bav1\b`),
		}

		// eac3 variants must not also light up the plain ac3 token.
		audioTokens = map[string]*regexp.Regexp{
			AudioAAC:    regexp.MustCompile(`(?i)\baac(?:2\.0|\d)?\b`),
			AudioOpus:   regexp.MustCompile(`(?i)\bopus\b`),
			AudioEAC3:   regexp.MustCompile(`(?i)(?:\be-?ac-?3\b|\bddp|\bdd\+|\beac3\b)`),
			AudioAC3:    regexp.MustCompile(`(?i)(?:\b|[^-eE])(?:ac-?3|dd5\.1|dd2\.0)\b`),
			AudioDTS:    regexp.MustCompile(`(?i)\bdts(?:-?hd)?(?:\s?ma)?\b`),
			AudioTrueHD: regexp.MustCompile(`(?i)\btrue-?hd\b`),
		}

		languageTokens = map[string]*regexp.Regexp{
			"English":    regexp.MustCompile(`(?i)\b(?:english|eng)\b|🇬🇧|🇺🇸`),
			"Japanese":   regexp.MustCompile(`(?i)\b(?:japanese|jpn|jap)\b|🇯🇵`),
			"Hindi":      regexp.MustCompile(`(?i)\b(?:hindi|hin)\b|🇮🇳`),
			"Tamil":      regexp.MustCompile(`(?i)\b(?:tamil|tam)\b`),
			"Telugu":     regexp.MustCompile(`(?i)\b(?:telugu|tel)\b`),
			"Spanish":    regexp.MustCompile(`(?i)\b(?:spanish|castellano|spa|esp)\b|🇪🇸`),
			"French":     regexp.MustCompile(`(?i)\b(?:french|vostfr|fre|vf)\b|🇫🇷`),
			"German":     regexp.MustCompile(`(?i)\b(?:german|ger|deu)\b|🇩🇪`),
			"Italian":    regexp.MustCompile(`(?i)\b(?:italian|ita)\b|🇮🇹`),
			"Korean":     regexp.MustCompile(`(?i)\b(?:korean|kor)\b|🇰🇷`),
			"Chinese":    regexp.MustCompile(`(?i)\b(?:chinese|mandarin|chi)\b|🇨🇳`),
			"Russian":    regexp.MustCompile(`(?i)\b(?:russian|rus)\b|🇷🇺`),
			"Portuguese": regexp.MustCompile(`(?i)\b(?:portuguese|por)\b|🇧🇷|🇵🇹`),
		}

		dualAudioPattern = regexp.MustCompile(`(?i)\bdual(?:[\s.-]?audio)?\b`)
		multiAudioPattern = regexp.MustCompile(`(?i)\bmulti[\s.-]?(?:audio|lang(?:uage)?s?)\b`)
		bareMultiPattern = regexp.MustCompile(`(?i)\bmulti\b`)
		multiChannelPattern = regexp.MustCompile(`(?i)(?:[57]\.1\b|\b[68]ch\b)`)
		multiSubsPattern = regexp.MustCompile(`(?i)\b(?:multi[\s.-]?subs?|msubs?|multisub)\b`)
		tenBitPattern = regexp.MustCompile(`(?i)\b(?:10-?bit|hi10p?)\b`)
		hdrPattern = regexp.MustCompile(`(?i)\b(?:hdr10\+?|hdr|dolby[\s.-]?vision|dovi|dv)\b`)
	})
}

// Parse extracts release attributes from the title text.
func Parse(title string) Info {
	return ParseWithDescription(title, "")
}

// ParseWithDescription extracts release attributes from title plus any
// indexer description text (seeder counts and sizes usually live there).
func ParseWithDescription(title, description string) Info {
	initGrammar()

	text := title
	if description != "" {
		text = title + "\n" + description
	}

	info := Info{
		Seeders:    parseSeeders(text),
		SizeLabel:  parseSize(text),
		Resolution: firstToken(text, resolutionTokens, []string{Resolution4K, Resolution1080p, Resolution720p, Resolution480p}),
		Container:  firstToken(text, containerTokens, []string{ContainerMP4, ContainerMKV}),
		VideoCodec: firstToken(text, videoTokens, []string{VideoAV1, VideoHEVC, VideoH264}),
	}

	info.DualAudio = dualAudioPattern.MatchString(text)
	info.MultiSubs = multiSubsPattern.MatchString(text)
	// A bare "MULTI" means multi-audio only when it isn't part of a
	// subtitle-pack token.
	info.MultiAudio = multiAudioPattern.MatchString(text) ||
		bareMultiPattern.MatchString(multiSubsPattern.ReplaceAllString(text, ""))
	info.MultiChannel = multiChannelPattern.MatchString(text)
	info.TenBit = tenBitPattern.MatchString(text)
	info.HDR = hdrPattern.MatchString(text)

	info.AudioCodec = parseAudioCodec(text, info.DualAudio || info.MultiAudio)
	info.AudioLanguages = parseLanguages(text)

	return info
}

func parseSeeders(text string) int {
	for _, p := range seederPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}

func parseSize(text string) string {
	m := sizePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	unit := strings.ToUpper(m[2])
	// Binary units collapse to their decimal labels for display.
	unit = strings.Replace(unit, "IB", "B", 1)
	return m[1] + " " + unit
}

// parseAudioCodec picks the highest-priority codec token present. Releases
// flagged dual/multi-audio with no explicit codec token fall back to the
// ambiguous AudioMulti marker.
func parseAudioCodec(text string, multiIndicated bool) string {
	for _, codec := range audioPriority {
		if audioTokens[codec].MatchString(text) {
			return codec
		}
	}
	if multiIndicated {
		return AudioMulti
	}
	return ""
}

func parseLanguages(text string) []string {
	langs := lo.Filter(lo.Keys(languageTokens), func(name string, _ int) bool {
		return languageTokens[name].MatchString(text)
	})
	if len(langs) == 0 {
		return nil
	}
	// Key order is random; keep output stable for callers.
	sort.Strings(langs)
	return langs
}

func firstToken(text string, tokens map[string]*regexp.Regexp, order []string) string {
	for _, name := range order {
		if tokens[name].MatchString(text) {
			return name
		}
	}
	return ""
}
