package whisper

import "testing"

func TestJoinSegments(t *testing.T) {
	got := joinSegments([]Segment{
		{Text: " hello ", Prob: 0.9},
		{Text: "", Prob: 0.5},
		{Text: "world", Prob: 0.7},
	}, "en")
	if got.Text != "hello world" {
		t.Fatalf("text=%q", got.Text)
	}
	if got.Confidence < 0.69 || got.Confidence > 0.71 {
		t.Fatalf("confidence=%v", got.Confidence)
	}
	if got.Language != "en" {
		t.Fatalf("language=%q", got.Language)
	}
}
