package transcript

import (
	"math"
	"sort"
	"strings"
)

type Rating string

const (
	RatingHigh    Rating = "high"
	RatingMedium  Rating = "medium"
	RatingLow     Rating = "low"
	RatingUnknown Rating = "unknown"
)

// LowConfidenceLogprob marks segments the recogniser was unsure about.
const LowConfidenceLogprob = -1.0

type QualityDetails struct {
	AvgLogprob  float64 `json:"avg_logprob"`
	NumSegments int     `json:"num_segments"`
}

type Quality struct {
	AvgConfidence       float64         `json:"avg_confidence"`
	AvgCompressionRatio float64         `json:"avg_compression_ratio"`
	SpeechPercentage    float64         `json:"speech_percentage"`
	Rating              Rating          `json:"quality_rating"`
	Warnings            []string        `json:"warnings"`
	Details             *QualityDetails `json:"details,omitempty"`
}

// AssessQuality summarises recogniser confidence over all segments.
func AssessQuality(segs []Segment) Quality {
	if len(segs) == 0 {
		return Quality{Rating: RatingUnknown, Warnings: []string{"No segments available"}}
	}

	logprob := mean(segs, func(s Segment) *float64 { return s.AvgLogprob })
	compression := mean(segs, func(s Segment) *float64 { return s.CompressionRatio })
	noSpeech := mean(segs, func(s Segment) *float64 { return s.NoSpeechProb })

	confidence := math.Max(0, math.Min(100, (logprob+1.5)*66.67))
	speech := (1 - noSpeech) * 100

	warnings := []string{}
	if confidence < 50 {
		warnings = append(warnings, "Low transcription confidence - audio may be unclear")
	}
	if compression > 2.5 {
		warnings = append(warnings, "High compression ratio - transcript may contain repetitions")
	}
	if speech < 70 {
		warnings = append(warnings, "Low speech detection - audio may contain long silences or background noise")
	}

	rating := RatingLow
	switch {
	case confidence >= 80 && speech >= 85 && compression < 2.0:
		rating = RatingHigh
	case confidence >= 60 && speech >= 70:
		rating = RatingMedium
	}

	return Quality{
		AvgConfidence:       round(confidence, 1),
		AvgCompressionRatio: round(compression, 2),
		SpeechPercentage:    round(speech, 1),
		Rating:              rating,
		Warnings:            warnings,
		Details:             &QualityDetails{AvgLogprob: round(logprob, 3), NumSegments: len(segs)},
	}
}

// LowConfidence returns up to limit segments whose average log probability
// is below LowConfidenceLogprob, in transcript order.
func LowConfidence(segs []Segment, limit int) []Segment {
	var out []Segment
	for _, s := range segs {
		if len(out) == limit {
			break
		}
		if s.AvgLogprob != nil && *s.AvgLogprob < LowConfidenceLogprob {
			out = append(out, s)
		}
	}
	return out
}

// Highlights ranks segments by low-confidence word count, then by length.
func Highlights(segs []Segment, topK int) []Segment {
	type scored struct {
		score float64
		seg   Segment
	}
	ranked := make([]scored, 0, len(segs))
	for _, s := range segs {
		low := 0
		for _, w := range s.Words {
			if w.Confidence < 0.8 {
				low++
			}
		}
		ranked = append(ranked, scored{score: float64(low) + float64(len(strings.Fields(s.Text)))/100, seg: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]Segment, 0, topK)
	for i := 0; i < len(ranked) && i < topK; i++ {
		out = append(out, ranked[i].seg)
	}
	return out
}

func mean(segs []Segment, field func(Segment) *float64) float64 {
	sum, n := 0.0, 0
	for _, s := range segs {
		if v := field(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
