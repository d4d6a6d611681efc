package transcript

import "fmt"

// Band is a display bucket for recognition confidence.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Confidence thresholds used for display banding.
const (
	HighConfidence   = 0.9
	MediumConfidence = 0.7
)

// BandFor buckets a confidence score.
func BandFor(confidence float64) Band {
	switch {
	case confidence >= HighConfidence:
		return BandHigh
	case confidence >= MediumConfidence:
		return BandMedium
	default:
		return BandLow
	}
}

// FormatTimestamp renders milliseconds as M:SS.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatSRTTimestamp renders milliseconds as HH:MM:SS,mmm.
func FormatSRTTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}
