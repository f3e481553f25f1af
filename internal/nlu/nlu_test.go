package nlu

import (
	"math/rand"
	"testing"

	"moodvox/internal/emotion"
)

func TestParseRules(t *testing.T) {
	cases := []struct {
		text string
		want Kind
	}{
		{"How am I feeling lately?", MoodCheck},
		{"do a MOOD CHECK", MoodCheck},
		{"I want to journal about today", Journal},
		{"let me write something", Journal},
		{"did I water the plant", PlantCare},
		{"help me breathe", Meditation},
		{"I'd like to meditate", Meditation},
		{"what's the weather like", Chat},
		{"", Chat},
	}

	for _, tc := range cases {
		got := Parse(tc.text, emotion.Happy)
		if got.Kind != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.text, got.Kind, tc.want)
		}
	}
}

func TestParseJournalCarriesMood(t *testing.T) {
	got := Parse("I want to journal about today", emotion.Sad)
	if got.Kind != Journal || got.Mood != emotion.Sad {
		t.Fatalf("got %+v", got)
	}
	if got.Params()["mood"] != "sad" {
		t.Fatalf("params=%v", got.Params())
	}
}

func TestParseRuleOrder(t *testing.T) {
	// journal is evaluated before plant care
	got := Parse("write about watering my plant", emotion.Neutral)
	if got.Kind != Journal {
		t.Fatalf("expected journal, got %s", got.Kind)
	}
	// mood check is evaluated before meditation
	got = Parse("mood check then breathe", emotion.Neutral)
	if got.Kind != MoodCheck {
		t.Fatalf("expected mood_check, got %s", got.Kind)
	}
}

func TestParseChatFallback(t *testing.T) {
	got := Parse("  tell me a joke  ", emotion.Angry)
	if got.Kind != Chat || got.Message != "tell me a joke" || got.Mood != emotion.Angry {
		t.Fatalf("got %+v", got)
	}
	p := got.Params()
	if p["message"] != "tell me a joke" || p["mood"] != "angry" {
		t.Fatalf("params=%v", p)
	}
	if len(Parse("water", emotion.Angry).Params()) != 0 {
		t.Fatalf("plant care carries no params")
	}
}

func TestParseIsTotal(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyz ÄÖü!?.\t\n")
	kinds := map[Kind]bool{MoodCheck: true, Journal: true, PlantCare: true, Meditation: true, Chat: true}

	for i := 0; i < 500; i++ {
		n := r.Intn(40)
		buf := make([]rune, n)
		for j := range buf {
			buf[j] = alphabet[r.Intn(len(alphabet))]
		}
		got := Parse(string(buf), emotion.Neutral)
		if !kinds[got.Kind] {
			t.Fatalf("Parse(%q) produced unknown kind %q", string(buf), got.Kind)
		}
	}
}

func TestCustomRules(t *testing.T) {
	p := NewParser([]Rule{{Kind: PlantCare, Triggers: []string{"journal"}}})
	if got := p.Parse("journal", emotion.Neutral); got.Kind != PlantCare {
		t.Fatalf("custom rules ignored: %+v", got)
	}
	if got := NewParser(nil).Parse("journal", emotion.Neutral); got.Kind != Journal {
		t.Fatalf("nil rules should fall back to defaults: %+v", got)
	}
}
