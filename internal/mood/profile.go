// Package mood keeps the rolling emotion history of the user and the
// personality summary derived from it.
package mood

import (
	"math"
	"time"

	"moodvox/internal/emotion"
	"moodvox/pkg/ring"
)

const (
	HistoryLimit = 50
	// Window is how many recent observations the personality is derived from.
	Window = 10

	// DecayPerHour is the exponential decay rate applied to the intensity of
	// the last observation.
	DecayPerHour = 0.25
)

type Stability string

const (
	StabilityUnknown  Stability = "unknown"
	StabilityStable   Stability = "stable"
	StabilityModerate Stability = "moderate"
	StabilityVariable Stability = "variable"
)

type Personality struct {
	DominantMood       emotion.Emotion `json:"dominantMood"`
	MoodVariability    int             `json:"moodVariability"`
	EmotionalStability Stability       `json:"emotionalStability"`
	LastUpdated        time.Time       `json:"lastUpdated"`
}

// Snapshot is a copy of the profile safe to hand to readers.
type Snapshot struct {
	CurrentMood emotion.Emotion       `json:"currentMood"`
	Intensity   float64               `json:"intensity"`
	History     []emotion.Observation `json:"history"`
	Personality Personality           `json:"personality"`
}

// Profile is not safe for concurrent use; the orchestrator serializes access.
type Profile struct {
	history     *ring.Buffer[emotion.Observation]
	personality Personality
}

func NewProfile() *Profile {
	p := &Profile{history: ring.New[emotion.Observation](HistoryLimit)}
	p.personality = neutralPersonality()
	return p
}

func neutralPersonality() Personality {
	return Personality{
		DominantMood:       emotion.Neutral,
		EmotionalStability: StabilityUnknown,
	}
}

// Record appends obs, evicting the oldest entry past HistoryLimit, and
// recomputes the personality.
func (p *Profile) Record(obs emotion.Observation) {
	p.history.Push(obs)
	p.personality = derive(p.history.Last(Window), obs.ObservedAt)
}

func (p *Profile) Current() emotion.Emotion {
	last, ok := p.history.Newest()
	if !ok {
		return emotion.Neutral
	}
	return last.Emotion
}

// Intensity is the confidence of the latest observation decayed by the
// hours elapsed since it was made.
func (p *Profile) Intensity(now time.Time) float64 {
	last, ok := p.history.Newest()
	if !ok {
		return 0
	}
	hours := now.Sub(last.ObservedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return last.Confidence * math.Exp(-DecayPerHour*hours)
}

func (p *Profile) Recent(n int) []emotion.Observation {
	return p.history.Last(n)
}

func (p *Profile) Len() int { return p.history.Len() }

func (p *Profile) Personality() Personality { return p.personality }

func (p *Profile) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		CurrentMood: p.Current(),
		Intensity:   p.Intensity(now),
		History:     p.history.Snapshot(),
		Personality: p.personality,
	}
}

func (p *Profile) Reset() {
	p.history.Reset()
	p.personality = neutralPersonality()
}

func derive(recent []emotion.Observation, at time.Time) Personality {
	if len(recent) == 0 {
		return neutralPersonality()
	}

	return Personality{
		DominantMood:       Dominant(recent),
		MoodVariability:    distinct(recent),
		EmotionalStability: StabilityOf(recent),
		LastUpdated:        at,
	}
}

// Dominant returns the most frequent emotion; ties go to the emotion seen
// first.
func Dominant(obs []emotion.Observation) emotion.Emotion {
	if len(obs) == 0 {
		return emotion.Neutral
	}

	counts := make(map[emotion.Emotion]int)
	order := make([]emotion.Emotion, 0, len(obs))
	for _, o := range obs {
		if counts[o.Emotion] == 0 {
			order = append(order, o.Emotion)
		}
		counts[o.Emotion]++
	}

	best := order[0]
	for _, e := range order[1:] {
		if counts[e] > counts[best] {
			best = e
		}
	}
	return best
}

// StabilityOf scores how often adjacent observations change emotion.
func StabilityOf(obs []emotion.Observation) Stability {
	if len(obs) < 3 {
		return StabilityUnknown
	}

	changes := 0
	for i := 1; i < len(obs); i++ {
		if obs[i].Emotion != obs[i-1].Emotion {
			changes++
		}
	}

	score := 1 - float64(changes)/float64(len(obs)-1)
	switch {
	case score > 0.7:
		return StabilityStable
	case score > 0.4:
		return StabilityModerate
	default:
		return StabilityVariable
	}
}

func distinct(obs []emotion.Observation) int {
	seen := make(map[emotion.Emotion]struct{}, len(obs))
	for _, o := range obs {
		seen[o.Emotion] = struct{}{}
	}
	return len(seen)
}
