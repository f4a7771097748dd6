// Package ranker scores raw torrent candidates for browser playability and
// assembles the final ordered source list.
package ranker

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/models"
	"github.com/amaumene/gostreamer/internal/releaseinfo"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// Score weights. Positive favors attributes the browser media pipeline plays
// without transcoding, negative penalizes ones that commonly fail or stall.
const (
	bonusH264    = 500
	bonusNonHEVC = 200
	penaltyAV1   = 400

	bonusMP4 = 150
	bonusMKV = 50

	bonus1080p = 300
	bonus720p  = 150
	bonus480p  = 50
	penalty4K  = 200

	bonusNativeAudio        = 400
	penaltyHeavyAudio       = 600 // EAC3 / DTS / TrueHD: commonly silent in browsers
	penaltyAC3              = 250
	penaltyMultiChannelRisk = 150 // multichannel without a browser-native codec

	bonusDualConfirmed = 120 // dual/multi audio with a browser-native codec
	bonusDualUnknown   = 60  // valuable but risky when the codec is unknown

	bonusMultiSubs = 30

	penaltyHDRNonH264 = 100
)

// Ranker turns raw indexer hits into scored, ordered stream sources.
type Ranker struct {
	logger logger.Logger
}

func New() *Ranker {
	return &Ranker{logger: logger.New()}
}

// Score computes the additive compatibility score for one parsed release.
// Higher means more likely to play in a standard browser media pipeline.
func Score(info releaseinfo.Info) float64 {
	score := float64(info.Seeders)

	switch info.VideoCodec {
	case releaseinfo.VideoH264:
		score += bonusH264 + bonusNonHEVC
	case releaseinfo.VideoHEVC:
		// no bonus
	case releaseinfo.VideoAV1:
		score += bonusNonHEVC - penaltyAV1
	default:
		score += bonusNonHEVC
	}

	switch info.Container {
	case releaseinfo.ContainerMP4:
		score += bonusMP4
	case releaseinfo.ContainerMKV:
		score += bonusMKV
	}

	switch info.Resolution {
	case releaseinfo.Resolution1080p:
		score += bonus1080p
	case releaseinfo.Resolution720p:
		score += bonus720p
	case releaseinfo.Resolution480p:
		score += bonus480p
	case releaseinfo.Resolution4K:
		score -= penalty4K
	}

	native := isNativeAudio(info.AudioCodec)
	switch info.AudioCodec {
	case releaseinfo.AudioAAC, releaseinfo.AudioOpus:
		score += bonusNativeAudio
	case releaseinfo.AudioEAC3, releaseinfo.AudioDTS, releaseinfo.AudioTrueHD:
		score -= penaltyHeavyAudio
	case releaseinfo.AudioAC3:
		score -= penaltyAC3
	}
	if info.MultiChannel && !native {
		score -= penaltyMultiChannelRisk
	}

	if info.DualAudio || info.MultiAudio {
		if native {
			score += bonusDualConfirmed
		} else if info.AudioCodec == "" || info.AudioCodec == releaseinfo.AudioMulti {
			score += bonusDualUnknown
		}
	}

	if info.MultiSubs {
		score += bonusMultiSubs
	}

	if (info.TenBit || info.HDR) && info.VideoCodec != releaseinfo.VideoH264 {
		score -= penaltyHDRNonH264
	}

	return score
}

func isNativeAudio(codec string) bool {
	return codec == releaseinfo.AudioAAC || codec == releaseinfo.AudioOpus
}

// Rank parses and scores raw candidates, returning stream sources sorted by
// descending score, ties broken by seeder count.
func (r *Ranker) Rank(raw []models.RawSource) []models.StreamSource {
	sources := make([]models.StreamSource, 0, len(raw))

	for _, candidate := range raw {
		info := releaseinfo.Parse(candidate.Title)
		if info.Seeders == 0 {
			info.Seeders = candidate.Seeders
		}

		source := models.StreamSource{
			ID:                 candidate.InfoHash,
			ProviderName:       candidate.Source,
			DeliveryType:       models.DeliveryP2P,
			QualityLabel:       info.Resolution,
			Seeds:              info.Seeders,
			SizeLabel:          sizeLabel(info, candidate),
			VideoCodec:         info.VideoCodec,
			AudioCodec:         info.AudioCodec,
			AudioLanguages:     info.AudioLanguages,
			AudioMode:          audioMode(info),
			CompatibilityScore: Score(info),
		}
		sources = append(sources, source)
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].CompatibilityScore != sources[j].CompatibilityScore {
			return sources[i].CompatibilityScore > sources[j].CompatibilityScore
		}
		return sources[i].Seeds > sources[j].Seeds
	})

	return sources
}

// Assemble builds the final bounded list: the always-available embed
// pseudo-source first, then the top torrent sources, with floors for
// audio-compatible and dual-audio candidates backfilled from the full
// ranked list in rank order.
func (r *Ranker) Assemble(embed models.StreamSource, ranked []models.StreamSource) []models.StreamSource {
	top := ranked
	if len(top) > constants.MaxRankedSources {
		top = top[:constants.MaxRankedSources]
	}

	selected := make([]models.StreamSource, len(top))
	copy(selected, top)

	dualFloorActive := lo.SomeBy(ranked, isDualSource)

	selected = backfill(selected, ranked, constants.MinCompatibleSources, isCompatibleSource)
	if dualFloorActive {
		selected = backfill(selected, ranked, constants.MinDualAudioSources, isDualCompatibleSource)
	}

	// Backfilling may have grown the list past the cap; evict the
	// lowest-ranked entries that no floor depends on.
	selected = truncateToCap(selected, constants.MaxRankedSources, dualFloorActive)

	r.logger.Debugf("[Ranker] assembled %d torrent sources (of %d ranked)", len(selected), len(ranked))

	result := make([]models.StreamSource, 0, len(selected)+1)
	result = append(result, embed)
	result = append(result, selected...)
	return result
}

func backfill(selected, ranked []models.StreamSource, floor int, match func(models.StreamSource) bool) []models.StreamSource {
	have := lo.CountBy(selected, match)

	for _, s := range ranked {
		if have >= floor {
			break
		}
		if !match(s) || containsSource(selected, s.ID) {
			continue
		}
		selected = insertByRank(selected, ranked, s)
		have++
	}

	return selected
}

// truncateToCap removes entries from the low-ranked end until the list fits
// the cap, skipping entries a minimum floor still depends on. Rank order of
// the survivors is unchanged.
func truncateToCap(selected []models.StreamSource, limit int, dualFloorActive bool) []models.StreamSource {
	compatible := lo.CountBy(selected, isCompatibleSource)
	dual := lo.CountBy(selected, isDualCompatibleSource)

	for len(selected) > limit {
		removed := false
		for i := len(selected) - 1; i >= 0; i-- {
			s := selected[i]
			if isCompatibleSource(s) && compatible <= constants.MinCompatibleSources {
				continue
			}
			if dualFloorActive && isDualCompatibleSource(s) && dual <= constants.MinDualAudioSources {
				continue
			}
			if isCompatibleSource(s) {
				compatible--
			}
			if isDualCompatibleSource(s) {
				dual--
			}
			selected = append(selected[:i], selected[i+1:]...)
			removed = true
			break
		}
		if !removed {
			// Every entry serves a floor; drop the lowest-ranked anyway.
			selected = selected[:len(selected)-1]
		}
	}

	return selected
}

func isDualCompatibleSource(s models.StreamSource) bool {
	return isDualSource(s) && isCompatibleSource(s)
}

// insertByRank inserts source into selected at the position matching its
// place in the full ranked list, so backfilled entries keep rank order.
func insertByRank(selected, ranked []models.StreamSource, source models.StreamSource) []models.StreamSource {
	rank := rankIndex(ranked, source.ID)
	pos := len(selected)
	for i, s := range selected {
		if rankIndex(ranked, s.ID) > rank {
			pos = i
			break
		}
	}

	selected = append(selected, models.StreamSource{})
	copy(selected[pos+1:], selected[pos:])
	selected[pos] = source
	return selected
}

func rankIndex(ranked []models.StreamSource, id string) int {
	if _, i, ok := lo.FindIndexOf(ranked, func(s models.StreamSource) bool { return s.ID == id }); ok {
		return i
	}
	return len(ranked)
}

func containsSource(sources []models.StreamSource, id string) bool {
	return lo.ContainsBy(sources, func(s models.StreamSource) bool { return s.ID == id })
}

func isCompatibleSource(s models.StreamSource) bool {
	return s.AudioCodec == releaseinfo.AudioAAC || s.AudioCodec == releaseinfo.AudioOpus
}

func isDualSource(s models.StreamSource) bool {
	return s.AudioMode == models.AudioModeDual || s.AudioMode == models.AudioModeMulti
}

func audioMode(info releaseinfo.Info) string {
	switch {
	case info.MultiAudio:
		return models.AudioModeMulti
	case info.DualAudio:
		return models.AudioModeDual
	default:
		return models.AudioModeSingle
	}
}

func sizeLabel(info releaseinfo.Info, candidate models.RawSource) string {
	if info.SizeLabel != "" {
		return info.SizeLabel
	}
	if candidate.Size > 0 {
		return formatBytes(candidate.Size)
	}
	return ""
}

func formatBytes(n int64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if n >= gb {
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	}
	return fmt.Sprintf("%.0f MB", float64(n)/mb)
}
