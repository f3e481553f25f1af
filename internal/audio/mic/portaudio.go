// Package mic captures from the default input device through PortAudio.
package mic

import (
	"context"
	"errors"
	"strings"

	"github.com/gordonklaus/portaudio"

	"moodvox/internal/audio"
	"moodvox/internal/fault"
)

// PortAudio opens the default input device. Init must be called before
// the first Open and Close after the last stream is released.
type PortAudio struct{}

var _ audio.Microphone = (*PortAudio)(nil)

func NewPortAudio() *PortAudio { return &PortAudio{} }

func (m *PortAudio) Init() error {
	return portaudio.Initialize()
}

func (m *PortAudio) Close() {
	portaudio.Terminate()
}

func (m *PortAudio) Open(_ context.Context, c audio.Constraints) (audio.InputStream, error) {
	if c.Channels <= 0 {
		c.Channels = 1
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return nil, fault.From(fault.DeviceUnavailable, "mic.open", err)
	}

	buf := make([]float32, c.FramesPerBuffer*c.Channels)

	stream, err := portaudio.OpenDefaultStream(
		c.Channels, // in
		0,          // no out
		float64(c.SampleRate),
		c.FramesPerBuffer,
		buf,
	)
	if err != nil {
		return nil, mapPortAudioError("mic.open", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, mapPortAudioError("mic.start", err)
	}

	return &portAudioStream{stream: stream, buf: buf, channels: c.Channels}, nil
}

func mapPortAudioError(op string, err error) error {
	var pe portaudio.Error
	if errors.As(err, &pe) {
		switch pe {
		case portaudio.InvalidDevice, portaudio.DeviceUnavailable:
			return fault.From(fault.DeviceUnavailable, op, err)
		case portaudio.InvalidSampleRate, portaudio.SampleFormatNotSupported, portaudio.InvalidChannelCount:
			return fault.From(fault.FormatUnsupported, op, err)
		}
	}

	// ALSA/Pulse report a refused capture as a host error text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "not permitted") {
		return fault.From(fault.PermissionDenied, op, err)
	}

	return fault.From(fault.DeviceUnavailable, op, err)
}

type portAudioStream struct {
	stream   *portaudio.Stream
	buf      []float32
	channels int
}

func (s *portAudioStream) Read() ([]float32, error) {
	if err := s.stream.Read(); err != nil {
		// overflow only means we were late, the buffer still holds samples
		if errors.Is(err, portaudio.InputOverflowed) {
			return s.mono(), nil
		}
		return nil, err
	}
	return s.mono(), nil
}

func (s *portAudioStream) mono() []float32 {
	if s.channels <= 1 {
		return s.buf
	}
	n := len(s.buf) / s.channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < s.channels; c++ {
			sum += s.buf[i*s.channels+c]
		}
		out[i] = sum / float32(s.channels)
	}
	return out
}

func (s *portAudioStream) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}
