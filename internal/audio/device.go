package audio

import (
	"context"
	"time"
)

// Constraints describe the raw input the classifier expects. Echo
// cancellation, noise suppression and gain control must stay off.
type Constraints struct {
	SampleRate       int
	Channels         int
	FramesPerBuffer  int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 320, // 20ms
	}
}

// Processed reports whether any signal processing was requested.
func (c Constraints) Processed() bool {
	return c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl
}

// Microphone opens input streams. Open may block while the host asks the
// user for permission.
type Microphone interface {
	Open(ctx context.Context, c Constraints) (InputStream, error)
}

// InputStream yields mono float32 frames. The returned slice is only valid
// until the next Read.
type InputStream interface {
	Read() ([]float32, error)
	Close() error
}

// Attenuator lowers other applications while the user is speaking.
type Attenuator interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}
