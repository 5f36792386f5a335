// Package formats turns the raw format list of a video into the ordered list
// offered to clients.
package formats

import (
	"sort"

	"github.com/nijaru/ytdl-web/models"
)

// AudioOnlyQuality is the quality shown for formats without a video track.
const AudioOnlyQuality = "Audio only"

// MaxAudioFormats caps the audio-only tail of a classified list.
const MaxAudioFormats = 3

// QualityLadder lists the recognised resolutions, lowest first.
var QualityLadder = []string{"144p", "240p", "360p", "480p", "720p", "1080p", "1440p", "2160p"}

// Rank is the ladder position of quality, or -1 when it is not on the ladder.
func Rank(quality string) int {
	for i, q := range QualityLadder {
		if q == quality {
			return i
		}
	}
	return -1
}

// Classify returns the combined (video+audio) formats ordered best first,
// followed by at most MaxAudioFormats audio-only formats in input order.
// Video-only formats are dropped. An itag seen twice keeps its first entry.
func Classify(raw []models.FormatDescriptor) []models.ClassifiedFormat {
	seen := make(map[int]struct{}, len(raw))
	combined := make([]models.ClassifiedFormat, 0, len(raw))
	audio := make([]models.ClassifiedFormat, 0, MaxAudioFormats)

	for _, f := range raw {
		if _, dup := seen[f.Itag]; dup {
			continue
		}

		switch {
		case f.HasVideo && f.HasAudio:
			seen[f.Itag] = struct{}{}
			combined = append(combined, models.ClassifiedFormat{
				Quality:   combinedQuality(f),
				Itag:      f.Itag,
				Container: f.Container,
				URL:       f.URL,
			})
		case !f.HasVideo && f.HasAudio && len(audio) < MaxAudioFormats:
			seen[f.Itag] = struct{}{}
			audio = append(audio, models.ClassifiedFormat{
				Quality:   AudioOnlyQuality,
				Itag:      f.Itag,
				Container: f.Container,
				URL:       f.URL,
				AudioOnly: true,
			})
		}
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return Rank(combined[i].Quality) > Rank(combined[j].Quality)
	})

	return append(combined, audio...)
}

func combinedQuality(f models.FormatDescriptor) string {
	if f.QualityLabel != "" {
		return f.QualityLabel
	}
	return f.Quality
}
