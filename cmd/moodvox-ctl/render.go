package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"moodvox/internal/assistant"
	"moodvox/internal/conversation"
	"moodvox/internal/ipc"
	"moodvox/internal/mood"
)

// errSilent exits non-zero after the failure was already printed.
var errSilent = errors.New("request failed")

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	moodStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))
)

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func render(cmd string, resp ipc.Response, raw bool) (string, error) {
	if raw {
		b, err := json.MarshalIndent(resp, "", "  ")
		return string(b), err
	}
	if !resp.OK {
		return errorStyle.Render(resp.Message), nil
	}

	switch cmd {
	case ipc.CmdMood:
		var snap mood.Snapshot
		if err := json.Unmarshal(resp.Data, &snap); err != nil {
			return "", fmt.Errorf("decode mood: %w", err)
		}
		return renderMood(snap), nil

	case ipc.CmdHistory:
		var turns []conversation.Turn
		if err := json.Unmarshal(resp.Data, &turns); err != nil {
			return "", fmt.Errorf("decode history: %w", err)
		}
		return renderHistory(turns), nil

	case ipc.CmdSay:
		var res assistant.ChatResult
		if err := json.Unmarshal(resp.Data, &res); err != nil {
			return "", fmt.Errorf("decode reply: %w", err)
		}
		return renderChat(res), nil

	case ipc.CmdStop, ipc.CmdTrigger, ipc.CmdAnalyze:
		if len(resp.Data) == 0 {
			return replyStyle.Render(resp.Message), nil
		}
		var res assistant.VoiceResult
		if err := json.Unmarshal(resp.Data, &res); err != nil {
			return "", fmt.Errorf("decode voice turn: %w", err)
		}
		return renderVoice(res), nil
	}

	return replyStyle.Render(resp.Message), nil
}

func renderMood(s mood.Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Mood profile") + "\n")
	fmt.Fprintf(&b, "%s %s %s\n", labelStyle.Render("current:"), moodStyle.Render(string(s.CurrentMood)),
		labelStyle.Render(fmt.Sprintf("(intensity %.2f)", s.Intensity)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("dominant:"), string(s.Personality.DominantMood))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("stability:"), string(s.Personality.EmotionalStability))
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("variability:"), s.Personality.MoodVariability)
	fmt.Fprintf(&b, "%s %d", labelStyle.Render("observations:"), len(s.History))
	return b.String()
}

func renderHistory(turns []conversation.Turn) string {
	if len(turns) == 0 {
		return labelStyle.Render("No conversation yet.")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Conversation (%d turns)", len(turns))))
	for _, t := range turns {
		fmt.Fprintf(&b, "\n%s %s\n", labelStyle.Render(t.Timestamp.Format("15:04")+" you ["+string(t.MoodAtTime)+"]:"), t.UserText)
		fmt.Fprintf(&b, "%s %s", labelStyle.Render("      sprout:"), replyStyle.Render(t.AssistantText))
	}
	return b.String()
}

func renderChat(r assistant.ChatResult) string {
	var b strings.Builder
	b.WriteString(replyStyle.Render(r.Message))
	for _, s := range r.Suggestions {
		b.WriteString("\n  " + suggestionStyle.Render("• "+s))
	}
	if r.MoodInsights != nil && r.MoodInsights.Summary != "" {
		b.WriteString("\n" + labelStyle.Render("insight: "+r.MoodInsights.Summary))
	}
	return b.String()
}

func renderVoice(r assistant.VoiceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", labelStyle.Render("mood:"), moodStyle.Render(string(r.Observation.Emotion)),
		labelStyle.Render(fmt.Sprintf("(%.2f)", r.Observation.Confidence)))
	for _, n := range r.Notices {
		b.WriteString("\n" + errorStyle.Render(n))
	}
	if r.Transcript != "" {
		b.WriteString("\n" + labelStyle.Render("heard: ") + r.Transcript)
	}
	if r.Intent != nil {
		b.WriteString("\n" + labelStyle.Render("intent: ") + string(r.Intent.Kind))
	}
	if r.Chat != nil {
		b.WriteString("\n" + renderChat(*r.Chat))
	}
	return b.String()
}
