// Package chat talks to the chat-completion collaborator. Every failure is
// returned as a *fault.Error; nothing panics past Send.
package chat

import (
	"context"
	"strings"

	"moodvox/internal/conversation"
)

type MoodInsights struct {
	Summary string   `json:"summary"`
	Trend   string   `json:"trend,omitempty"`
	Tips    []string `json:"tips,omitempty"`
}

type Reply struct {
	Message      string        `json:"message"`
	Suggestions  []string      `json:"suggestions"`
	MoodInsights *MoodInsights `json:"moodInsights,omitempty"`
}

type Client interface {
	Send(ctx context.Context, out conversation.Outbound) (Reply, error)
}

func cleanSuggestions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
