package emotion

import (
	"strings"
	"time"
)

type Emotion string

const (
	Neutral   Emotion = "neutral"
	Happy     Emotion = "happy"
	Sad       Emotion = "sad"
	Angry     Emotion = "angry"
	Fearful   Emotion = "fearful"
	Disgusted Emotion = "disgusted"
	Surprised Emotion = "surprised"
	Calm      Emotion = "calm"
)

// FallbackConfidence is attached to observations synthesized when the
// classifier cannot be reached.
const FallbackConfidence = 0.1

var aliases = map[string]Emotion{
	"neutral":   Neutral,
	"happy":     Happy,
	"happiness": Happy,
	"joy":       Happy,
	"sad":       Sad,
	"sadness":   Sad,
	"angry":     Angry,
	"anger":     Angry,
	"fear":      Fearful,
	"fearful":   Fearful,
	"disgust":   Disgusted,
	"disgusted": Disgusted,
	"surprise":  Surprised,
	"surprised": Surprised,
	"calm":      Calm,
}

// Normalize maps a classifier label onto a known Emotion.
func Normalize(label string) (Emotion, bool) {
	e, ok := aliases[strings.ToLower(strings.TrimSpace(label))]
	return e, ok
}

type Observation struct {
	Emotion    Emotion   `json:"emotion"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observedAt"`
	// Fallback marks observations synthesized without a classifier answer.
	Fallback bool `json:"fallback,omitempty"`
	// Probabilities is the per-label distribution when the classifier reports one.
	Probabilities map[Emotion]float64 `json:"probabilities,omitempty"`
}

func FallbackObservation(now time.Time) Observation {
	return Observation{
		Emotion:    Neutral,
		Confidence: FallbackConfidence,
		ObservedAt: now,
		Fallback:   true,
	}
}
