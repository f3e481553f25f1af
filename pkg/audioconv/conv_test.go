package audioconv

import (
	"math"
	"testing"
)

func TestEncodeWAVThenDecodeBytes(t *testing.T) {
	pcm := make([]int16, TargetRate/4)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(float64(i)/8))
	}

	wavBytes, err := EncodeWAV(pcm, TargetRate)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(wavBytes[:4]) != "RIFF" || string(wavBytes[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE header: %q", wavBytes[:12])
	}
	if min := 44 + 2*len(pcm); len(wavBytes) < min {
		t.Fatalf("size=%d, want at least %d", len(wavBytes), min)
	}

	got, err := DecodeBytes(wavBytes, "audio/wav", Options{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(pcm))
	}
}

func TestDecodeBytesSniffsUnknownMIME(t *testing.T) {
	wavBytes, err := EncodeWAV([]int16{1, 2, 3, 4}, TargetRate)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeBytes(wavBytes, "application/octet-stream", Options{MaxSamples: 2})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MaxSamples not applied: %d", len(got))
	}
}

func TestDecodeBytesRejectsGarbage(t *testing.T) {
	if _, err := DecodeBytes([]byte("definitely not audio"), "", Options{}); err == nil {
		t.Fatalf("expected error for unknown container")
	}
	if _, err := DecodeBytes(nil, "audio/wav", Options{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestEncodeWAVRejectsEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, TargetRate); err == nil {
		t.Fatalf("expected error for empty pcm")
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	got := FloatToPCM16([]float32{-2, -1, 0, 1, 2})
	want := []int16{-32767, -32767, 0, 32767, 32767}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleLinearLength(t *testing.T) {
	in := make([]float32, 48000)
	out := resampleLinear(in, 48000, TargetRate)
	if len(out) != TargetRate {
		t.Fatalf("len=%d", len(out))
	}
}
