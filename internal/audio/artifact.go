package audio

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

// Artifact is a finalized recording. Its bytes are never handed out by
// reference.
type Artifact struct {
	id     string
	data   []byte
	format Format
}

func NewArtifact(data []byte, format Format) Artifact {
	return Artifact{
		id:     uuid.NewString(),
		data:   bytes.Clone(data),
		format: format,
	}
}

func (a Artifact) ID() string { return a.id }

func (a Artifact) MIME() string { return a.format.MIME }

func (a Artifact) Extension() string { return a.format.Extension }

func (a Artifact) Size() int { return len(a.data) }

// Filename is the upload name collaborators use to sniff the container.
func (a Artifact) Filename() string {
	return "recording." + a.format.Extension
}

func (a Artifact) Bytes() []byte { return bytes.Clone(a.data) }

func (a Artifact) Reader() io.Reader { return bytes.NewReader(a.data) }
