// Package conversation keeps the turn log and assembles what is sent to
// the chat collaborator.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"moodvox/internal/emotion"
	"moodvox/internal/fault"
	"moodvox/internal/mood"
	"moodvox/pkg/ring"
)

const (
	LogLimit      = 100
	ContextWindow = 10
	RecentMoods   = 5
)

// MoodContext is the mood part of an outbound payload, also kept on each
// turn as its context snapshot.
type MoodContext struct {
	UserMood    emotion.Emotion       `json:"userMood"`
	Intensity   float64               `json:"moodIntensity"`
	RecentMoods []emotion.Observation `json:"recentMoods"`
	Personality mood.Personality      `json:"personality"`
}

type Turn struct {
	ID              string          `json:"id"`
	UserText        string          `json:"userText"`
	AssistantText   string          `json:"assistantText"`
	Timestamp       time.Time       `json:"timestamp"`
	MoodAtTime      emotion.Emotion `json:"moodAtTime"`
	ContextSnapshot MoodContext     `json:"contextSnapshot"`
}

type Outbound struct {
	Message string `json:"message"`
	MoodContext
	RecentTurns []Turn `json:"recentTurns"`
}

// Context couples the bounded turn log with the mood profile it reads from.
// Like the profile it is owned by the orchestrator.
type Context struct {
	turns   *ring.Buffer[Turn]
	profile *mood.Profile
	now     func() time.Time
}

func NewContext(profile *mood.Profile) *Context {
	return &Context{
		turns:   ring.New[Turn](LogLimit),
		profile: profile,
		now:     time.Now,
	}
}

// BuildOutbound assembles the payload for message without changing state.
func (c *Context) BuildOutbound(message string) Outbound {
	return Outbound{
		Message:     message,
		MoodContext: c.moodContext(),
		RecentTurns: c.turns.Last(ContextWindow),
	}
}

func (c *Context) moodContext() MoodContext {
	return MoodContext{
		UserMood:    c.profile.Current(),
		Intensity:   c.profile.Intensity(c.now()),
		RecentMoods: c.profile.Recent(RecentMoods),
		Personality: c.profile.Personality(),
	}
}

// NewTurn stamps a completed exchange with an id, time and the mood
// context it was answered in.
func (c *Context) NewTurn(out Outbound, assistantText string) Turn {
	return Turn{
		ID:              uuid.NewString(),
		UserText:        out.Message,
		AssistantText:   assistantText,
		Timestamp:       c.now(),
		MoodAtTime:      out.UserMood,
		ContextSnapshot: out.MoodContext,
	}
}

// Record appends a finished turn. Turns without assistant text are refused
// so readers never observe a half exchange.
func (c *Context) Record(t Turn) error {
	if strings.TrimSpace(t.AssistantText) == "" {
		return fault.New(fault.BadInput, "conversation.record", "turn has no assistant text")
	}
	c.turns.Push(t)
	return nil
}

func (c *Context) History() []Turn { return c.turns.Snapshot() }

func (c *Context) Len() int { return c.turns.Len() }

func (c *Context) Clear() { c.turns.Reset() }
