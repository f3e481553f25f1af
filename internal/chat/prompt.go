package chat

import (
	"fmt"
	"strings"

	"moodvox/internal/conversation"
)

const systemPrompt = `
You are Sprout, the companion inside a wellness app where the user keeps a
journal, tracks tasks and looks after a virtual plant.

RULES:
1. Be warm, brief and concrete. Two to four sentences.
2. Never diagnose. If the user mentions self-harm, urge them to contact local
   emergency services or a crisis line.
3. Adapt your tone to the mood context below, but do not recite it.
4. Suggestions are short activities available in the app: journaling, a
   breathing exercise, meditation, watering the plant, a mood check.
5. Output ONLY JSON matching the schema. No markdown.
`

// SystemPrompt renders the fixed instructions followed by the user's mood
// context.
func SystemPrompt(mc conversation.MoodContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemPrompt))
	b.WriteString("\n\n### Mood context\n")
	b.WriteString(fmt.Sprintf("current_mood: %s (intensity %.2f)\n", mc.UserMood, mc.Intensity))
	b.WriteString(fmt.Sprintf("dominant_mood: %s\n", mc.Personality.DominantMood))
	b.WriteString(fmt.Sprintf("emotional_stability: %s\n", mc.Personality.EmotionalStability))
	b.WriteString(fmt.Sprintf("mood_variability: %d\n", mc.Personality.MoodVariability))

	if len(mc.RecentMoods) > 0 {
		moods := make([]string, 0, len(mc.RecentMoods))
		for _, o := range mc.RecentMoods {
			moods = append(moods, fmt.Sprintf("%s@%.2f", o.Emotion, o.Confidence))
		}
		b.WriteString("recent_moods: " + strings.Join(moods, ", ") + "\n")
	}

	return strings.TrimSpace(b.String())
}
