package conversation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"moodvox/internal/emotion"
	"moodvox/internal/fault"
	"moodvox/internal/mood"
)

func newTestContext() (*Context, *mood.Profile) {
	p := mood.NewProfile()
	c := NewContext(p)
	now := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, p
}

func record(t *testing.T, c *Context, i int) {
	t.Helper()
	out := c.BuildOutbound(fmt.Sprintf("user %d", i))
	if err := c.Record(c.NewTurn(out, fmt.Sprintf("assistant %d", i))); err != nil {
		t.Fatalf("record %d: %v", i, err)
	}
}

func TestBuildOutboundWindows(t *testing.T) {
	c, p := newTestContext()
	for i, e := range []emotion.Emotion{emotion.Sad, emotion.Sad, emotion.Calm, emotion.Happy, emotion.Happy, emotion.Happy, emotion.Angry} {
		p.Record(emotion.Observation{Emotion: e, Confidence: 0.7, ObservedAt: c.now().Add(time.Duration(i) * time.Second)})
	}
	for i := 0; i < 15; i++ {
		record(t, c, i)
	}

	out := c.BuildOutbound("hello")
	if out.Message != "hello" {
		t.Fatalf("message=%q", out.Message)
	}
	if out.UserMood != emotion.Angry {
		t.Fatalf("userMood=%q", out.UserMood)
	}
	if len(out.RecentMoods) != RecentMoods || out.RecentMoods[0].Emotion != emotion.Calm {
		t.Fatalf("recentMoods=%+v", out.RecentMoods)
	}
	if len(out.RecentTurns) != ContextWindow {
		t.Fatalf("recentTurns=%d", len(out.RecentTurns))
	}
	if out.RecentTurns[0].UserText != "user 5" || out.RecentTurns[9].UserText != "user 14" {
		t.Fatalf("window=%q..%q", out.RecentTurns[0].UserText, out.RecentTurns[9].UserText)
	}
	if out.Personality.DominantMood != emotion.Happy {
		t.Fatalf("personality=%+v", out.Personality)
	}
}

func TestBuildOutboundIsPure(t *testing.T) {
	c, _ := newTestContext()
	record(t, c, 1)

	before := c.Len()
	_ = c.BuildOutbound("a")
	_ = c.BuildOutbound("b")
	if c.Len() != before {
		t.Fatalf("BuildOutbound must not mutate the log")
	}
}

func TestLogIsBoundedIndependentlyOfWindow(t *testing.T) {
	c, _ := newTestContext()
	for i := 0; i < LogLimit+20; i++ {
		record(t, c, i)
	}

	h := c.History()
	if len(h) != LogLimit {
		t.Fatalf("log len=%d", len(h))
	}
	if h[0].UserText != "user 20" {
		t.Fatalf("oldest=%q, expected oldest-first eviction", h[0].UserText)
	}
}

func TestRecordRejectsEmptyAssistantText(t *testing.T) {
	c, _ := newTestContext()
	err := c.Record(c.NewTurn(c.BuildOutbound("hi"), "  "))
	if !errors.Is(err, fault.ErrBadInput) {
		t.Fatalf("expected BadInput, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("partial turn recorded")
	}
}

func TestTurnCarriesMoodSnapshot(t *testing.T) {
	c, p := newTestContext()
	p.Record(emotion.Observation{Emotion: emotion.Sad, Confidence: 0.6, ObservedAt: c.now()})

	turn := c.NewTurn(c.BuildOutbound("rough day"), "I'm sorry to hear that.")
	p.Record(emotion.Observation{Emotion: emotion.Happy, Confidence: 0.9, ObservedAt: c.now()})

	if turn.MoodAtTime != emotion.Sad || turn.ContextSnapshot.UserMood != emotion.Sad {
		t.Fatalf("turn mood=%q snapshot=%q", turn.MoodAtTime, turn.ContextSnapshot.UserMood)
	}
	if turn.ID == "" || turn.Timestamp.IsZero() {
		t.Fatalf("turn=%+v", turn)
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestContext()
	record(t, c, 0)
	c.Clear()
	if len(c.History()) != 0 {
		t.Fatalf("history not cleared")
	}
}
