package main

import (
	"strings"
	"testing"

	"moodvox/internal/assistant"
	"moodvox/internal/chat"
	"moodvox/internal/conversation"
	"moodvox/internal/emotion"
	"moodvox/internal/ipc"
	"moodvox/internal/mood"
	"moodvox/internal/nlu"
)

func TestRenderMood(t *testing.T) {
	resp := ipc.Reply("", mood.Snapshot{
		CurrentMood: emotion.Happy,
		Intensity:   0.8,
		Personality: mood.Personality{DominantMood: emotion.Happy, EmotionalStability: mood.StabilityStable, MoodVariability: 1},
	})
	out, err := render(ipc.CmdMood, resp, false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"happy", "0.80", "stable"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderVoiceTurn(t *testing.T) {
	intent := nlu.Intent{Kind: nlu.Chat, Message: "hi"}
	resp := ipc.Reply("ok", assistant.VoiceResult{
		Observation: emotion.Observation{Emotion: emotion.Calm, Confidence: 0.5},
		Transcript:  "hi",
		Intent:      &intent,
		Chat: &assistant.ChatResult{
			Message:      "Hello!",
			Suggestions:  []string{"Breathing exercise"},
			MoodInsights: &chat.MoodInsights{Summary: "Relaxed"},
		},
	})
	out, err := render(ipc.CmdTrigger, resp, false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"calm", "heard: hi", "chat", "Hello!", "Breathing exercise", "Relaxed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistoryAndFailures(t *testing.T) {
	out, err := render(ipc.CmdHistory, ipc.Reply("", []conversation.Turn{}), false)
	if err != nil || !strings.Contains(out, "No conversation yet.") {
		t.Fatalf("out=%q err=%v", out, err)
	}

	out, err = render(ipc.CmdSay, ipc.Fail("No microphone found."), false)
	if err != nil || !strings.Contains(out, "No microphone found.") {
		t.Fatalf("out=%q err=%v", out, err)
	}

	out, err = render(ipc.CmdStart, ipc.Reply("Listening...", nil), false)
	if err != nil || !strings.Contains(out, "Listening...") {
		t.Fatalf("out=%q err=%v", out, err)
	}

	out, err = render(ipc.CmdClear, ipc.Reply("done", nil), true)
	if err != nil || !strings.Contains(out, `"ok": true`) {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestJoinArgs(t *testing.T) {
	if got := joinArgs([]string{"rough", "day "}); got != "rough day" {
		t.Fatalf("got %q", got)
	}
}
