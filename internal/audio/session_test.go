package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"moodvox/internal/fault"
)

type fakeMic struct {
	frames  [][]float32
	openErr error
	opened  int
	stream  *fakeStream
}

func (m *fakeMic) Open(_ context.Context, c Constraints) (InputStream, error) {
	m.opened++
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.stream = &fakeStream{frames: m.frames, drained: make(chan struct{})}
	return m.stream, nil
}

type fakeStream struct {
	mu      sync.Mutex
	frames  [][]float32
	closed  bool
	drained chan struct{}
	once    sync.Once
}

func (s *fakeStream) Read() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		s.once.Do(func() { close(s.drained) })
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func frames(n, size int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		f := make([]float32, size)
		for j := range f {
			f[j] = 0.25
		}
		out[i] = f
	}
	return out
}

func TestSessionProducesChunkedWAVArtifact(t *testing.T) {
	// 26 frames of 20ms: two full 250ms chunks plus a 20ms remainder
	mic := &fakeMic{frames: frames(26, 320)}
	s := NewSession(mic, DefaultSessionConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != StateRecording {
		t.Fatalf("state=%v", s.State())
	}
	<-mic.stream.drained

	a, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if a.MIME() != "audio/wav" || a.Filename() != "recording.wav" {
		t.Fatalf("unexpected format %q %q", a.MIME(), a.Filename())
	}
	if a.Size() < 44+2*26*320 {
		t.Fatalf("artifact too small: %d", a.Size())
	}
	if a.ID() == "" {
		t.Fatalf("artifact must carry an id")
	}

	st := s.LastStats()
	if st.Chunks != 3 || st.Samples != 26*320 {
		t.Fatalf("stats=%+v", st)
	}
	if !mic.stream.isClosed() {
		t.Fatalf("microphone stream must be closed after stop")
	}
	if s.State() != StateIdle {
		t.Fatalf("state=%v after stop", s.State())
	}
}

func TestSessionEmptyRecordingReleasesDevice(t *testing.T) {
	mic := &fakeMic{}
	s := NewSession(mic, DefaultSessionConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-mic.stream.drained

	_, err := s.Stop(context.Background())
	if !errors.Is(err, fault.ErrEmptyRecording) {
		t.Fatalf("expected EmptyRecording, got %v", err)
	}
	if !mic.stream.isClosed() {
		t.Fatalf("microphone stream must be closed on empty recording")
	}
	if s.State() != StateIdle {
		t.Fatalf("state=%v", s.State())
	}
}

func TestSessionStartWhileRecording(t *testing.T) {
	mic := &fakeMic{frames: frames(1, 320)}
	s := NewSession(mic, DefaultSessionConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := s.Start(context.Background())
	if !errors.Is(err, fault.ErrAlreadyRecording) {
		t.Fatalf("expected AlreadyRecording, got %v", err)
	}
	if mic.opened != 1 {
		t.Fatalf("second start must not reopen the device, opened=%d", mic.opened)
	}

	<-mic.stream.drained
	if _, err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSessionStopWhenIdle(t *testing.T) {
	s := NewSession(&fakeMic{}, DefaultSessionConfig())
	if _, err := s.Stop(context.Background()); !errors.Is(err, fault.ErrNotRecording) {
		t.Fatalf("expected NotRecording, got %v", err)
	}
}

func TestSessionOpenErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want *fault.Error
	}{
		{"permission", fault.New(fault.PermissionDenied, "mic.open", "denied"), fault.ErrPermissionDenied},
		{"no device", fault.New(fault.DeviceUnavailable, "mic.open", "none"), fault.ErrDeviceUnavailable},
		{"untyped", errors.New("alsa exploded"), fault.ErrDeviceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession(&fakeMic{openErr: tc.err}, DefaultSessionConfig())
			err := s.Start(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want.Kind, err)
			}
			if s.State() != StateIdle {
				t.Fatalf("state=%v after failed start", s.State())
			}
		})
	}
}

func TestSessionFormatUnsupported(t *testing.T) {
	mic := &fakeMic{}
	cfg := DefaultSessionConfig()
	cfg.Formats = []Format{FormatWebmOpus, FormatOggOpus}
	s := NewSession(mic, cfg)

	if err := s.Start(context.Background()); !errors.Is(err, fault.ErrFormatUnsupported) {
		t.Fatalf("expected FormatUnsupported, got %v", err)
	}
	if mic.opened != 0 {
		t.Fatalf("device must not be opened without a format")
	}
}

func TestSessionRejectsProcessedInput(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Constraints.EchoCancellation = true
	s := NewSession(&fakeMic{}, cfg)

	if err := s.Start(context.Background()); !errors.Is(err, fault.ErrFormatUnsupported) {
		t.Fatalf("expected FormatUnsupported, got %v", err)
	}
}

type fakeAttenuator struct {
	ducked, unducked int
}

func (f *fakeAttenuator) DuckOthers(context.Context, float64, time.Duration) error {
	f.ducked++
	return nil
}

func (f *fakeAttenuator) UnduckOthers(context.Context, time.Duration) error {
	f.unducked++
	return nil
}

func TestSessionDucksWhileRecording(t *testing.T) {
	mic := &fakeMic{}
	att := &fakeAttenuator{}
	s := NewSession(mic, DefaultSessionConfig())
	s.SetAttenuator(att)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-mic.stream.drained
	_, _ = s.Stop(context.Background())

	if att.ducked != 1 || att.unducked != 1 {
		t.Fatalf("ducked=%d unducked=%d", att.ducked, att.unducked)
	}
}

func TestNegotiatePicksFirstSupported(t *testing.T) {
	got, err := Negotiate(PreferredFormats, func(f Format) bool {
		return f == FormatOggOpus || f == FormatWAV
	})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if got != FormatOggOpus {
		t.Fatalf("got %v, want ogg/opus", got)
	}

	got, err = Negotiate(PreferredFormats, HasEncoder)
	if err != nil || got != FormatWAV {
		t.Fatalf("got %v %v, want wav", got, err)
	}
}
