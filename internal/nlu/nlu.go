// Package nlu turns transcribed text into one of a fixed set of intents.
package nlu

import (
	"strings"

	"moodvox/internal/emotion"
)

type Kind string

const (
	MoodCheck  Kind = "mood_check"
	Journal    Kind = "journal"
	PlantCare  Kind = "plant_care"
	Meditation Kind = "meditation"
	Chat       Kind = "chat"
)

// Intent is a parsed voice command. Mood is set for journal, meditation and
// chat; Message only for chat.
type Intent struct {
	Kind    Kind            `json:"intent"`
	Mood    emotion.Emotion `json:"mood,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Params returns the parameter shape fixed for the intent's kind.
func (i Intent) Params() map[string]string {
	switch i.Kind {
	case Journal, Meditation:
		return map[string]string{"mood": string(i.Mood)}
	case Chat:
		return map[string]string{"message": i.Message, "mood": string(i.Mood)}
	default:
		return map[string]string{}
	}
}

type Rule struct {
	Kind     Kind
	Triggers []string
	WithMood bool
}

// DefaultRules is evaluated top to bottom; the first rule with a matching
// trigger wins.
var DefaultRules = []Rule{
	{Kind: MoodCheck, Triggers: []string{"how am i feeling", "how do i feel", "my mood", "mood check", "check my mood"}},
	{Kind: Journal, Triggers: []string{"journal", "write", "diary", "note down"}, WithMood: true},
	{Kind: PlantCare, Triggers: []string{"plant", "water"}},
	{Kind: Meditation, Triggers: []string{"meditate", "meditation", "breathing", "breathe", "calm down"}, WithMood: true},
}

type Parser struct {
	rules []Rule
}

func NewParser(rules []Rule) *Parser {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Parser{rules: rules}
}

// Parse never fails: text that matches no rule becomes a chat intent.
func (p *Parser) Parse(text string, mood emotion.Emotion) Intent {
	lower := strings.ToLower(text)
	for _, r := range p.rules {
		for _, trig := range r.Triggers {
			if !strings.Contains(lower, trig) {
				continue
			}
			in := Intent{Kind: r.Kind}
			if r.WithMood {
				in.Mood = mood
			}
			return in
		}
	}
	return Intent{Kind: Chat, Mood: mood, Message: strings.TrimSpace(text)}
}

// Parse uses DefaultRules.
func Parse(text string, mood emotion.Emotion) Intent {
	return defaultParser.Parse(text, mood)
}

var defaultParser = NewParser(DefaultRules)
