// Package stt holds the speech-to-text backends: a local whisper.cpp model
// and a remote HTTP service.
package stt

import (
	"io"
	"strings"
)

// Audio is an encoded clip to transcribe; internal/audio.Artifact satisfies it.
type Audio interface {
	Filename() string
	MIME() string
	Reader() io.Reader
	Bytes() []byte
}

type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// Empty reports whether there is nothing worth parsing.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

const opTranscribe = "transcribe"
