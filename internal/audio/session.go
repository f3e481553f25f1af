package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"math"
	"sync"
	"time"

	"moodvox/internal/fault"
	"moodvox/pkg/audioconv"
)

type State uint8

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

type SessionConfig struct {
	Constraints   Constraints
	ChunkInterval time.Duration
	MaxDuration   time.Duration
	Formats       []Format

	DuckFactor   float64
	DuckDuration time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Constraints:   DefaultConstraints(),
		ChunkInterval: 250 * time.Millisecond,
		MaxDuration:   60 * time.Second,
		Formats:       PreferredFormats,
		DuckFactor:    0.3,
		DuckDuration:  200 * time.Millisecond,
	}
}

// Stats describe the last finalized recording.
type Stats struct {
	Chunks   int
	Samples  int
	Duration time.Duration
	PeakRMS  float64
}

// Session owns one recording at a time: it holds the microphone stream,
// slices incoming samples into fixed chunks and concatenates them on Stop.
type Session struct {
	mic  Microphone
	cfg  SessionConfig
	duck Attenuator

	mu      sync.Mutex
	state   State
	format  Format
	stream  InputStream
	stop    chan struct{}
	done    chan struct{}
	chunks  [][]int16
	pending []int16
	peak    float64
	readErr error
	last    Stats
}

func NewSession(mic Microphone, cfg SessionConfig) *Session {
	def := DefaultSessionConfig()
	if cfg.Constraints.SampleRate <= 0 {
		cfg.Constraints = def.Constraints
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = def.ChunkInterval
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = def.Formats
	}
	if cfg.DuckFactor <= 0 {
		cfg.DuckFactor = def.DuckFactor
	}

	return &Session{mic: mic, cfg: cfg}
}

// SetAttenuator enables ducking of other audio streams while recording.
func (s *Session) SetAttenuator(a Attenuator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duck = a
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) chunkSamples() int {
	n := int(float64(s.cfg.Constraints.SampleRate) * s.cfg.ChunkInterval.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}

// Start acquires the microphone and begins chunked capture.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fault.New(fault.AlreadyRecording, "capture.start", "session is "+s.state.String())
	}

	if s.cfg.Constraints.Processed() {
		return fault.New(fault.FormatUnsupported, "capture.start", "input processing must be disabled")
	}

	format, err := Negotiate(s.cfg.Formats, HasEncoder)
	if err != nil {
		return err
	}

	stream, err := s.mic.Open(ctx, s.cfg.Constraints)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			return fe
		}
		return fault.From(fault.DeviceUnavailable, "capture.start", err)
	}

	s.format = format
	s.stream = stream
	s.chunks = nil
	s.pending = nil
	s.peak = 0
	s.readErr = nil
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.state = StateRecording

	go s.capture(stream, s.stop, s.done)

	if s.duck != nil {
		if err := s.duck.DuckOthers(ctx, s.cfg.DuckFactor, s.cfg.DuckDuration); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
	}

	log.Debug("Recording started", "format", format.MIME, "rate", s.cfg.Constraints.SampleRate)
	return nil
}

func (s *Session) capture(stream InputStream, stop, done chan struct{}) {
	defer close(done)

	var deadline time.Time
	if s.cfg.MaxDuration > 0 {
		deadline = time.Now().Add(s.cfg.MaxDuration)
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Warn("Recording hit max duration, dropping further input", "max", s.cfg.MaxDuration)
			return
		}

		frame, err := stream.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("Microphone read failed", "err", err)
			}
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}

		s.accumulate(stop, frame)
	}
}

func (s *Session) accumulate(owner chan struct{}, frame []float32) {
	if len(frame) == 0 {
		return
	}

	rms := frameRMS(frame)
	pcm := audioconv.FloatToPCM16(frame)

	s.mu.Lock()
	defer s.mu.Unlock()

	// a reader abandoned by Stop must not leak into the next recording
	if s.stop != owner {
		return
	}

	if rms > s.peak {
		s.peak = rms
	}

	size := s.chunkSamples()
	s.pending = append(s.pending, pcm...)
	for len(s.pending) >= size {
		chunk := make([]int16, size)
		copy(chunk, s.pending[:size])
		s.chunks = append(s.chunks, chunk)
		s.pending = s.pending[size:]
	}
}

// Stop ends capture and returns the finalized artifact. The microphone
// stream is closed on every path, including EmptyRecording.
func (s *Session) Stop(ctx context.Context) (Artifact, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		state := s.state
		s.mu.Unlock()
		return Artifact{}, fault.New(fault.NotRecording, "capture.stop", "session is "+state.String())
	}
	s.state = StateFinalizing
	stream, stop, done := s.stream, s.stop, s.done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.stream = nil
		s.chunks = nil
		s.pending = nil
		s.state = StateIdle
		s.mu.Unlock()
	}()

	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("Capture reader did not exit before deadline, closing stream anyway")
	}

	if err := stream.Close(); err != nil {
		log.Warn("Failed to release microphone", "err", err)
	}

	s.mu.Lock()
	duck := s.duck
	s.mu.Unlock()
	if duck != nil {
		if err := duck.UnduckOthers(context.WithoutCancel(ctx), s.cfg.DuckDuration); err != nil {
			log.Warn("Failed to restore other streams", "err", err)
		}
	}

	s.mu.Lock()
	if len(s.pending) > 0 {
		s.chunks = append(s.chunks, s.pending)
		s.pending = nil
	}
	chunks := s.chunks
	format := s.format
	peak := s.peak
	readErr := s.readErr
	s.mu.Unlock()

	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	rate := s.cfg.Constraints.SampleRate
	stats := Stats{
		Chunks:   len(chunks),
		Samples:  total,
		Duration: time.Duration(float64(total) / float64(rate) * float64(time.Second)),
		PeakRMS:  peak,
	}
	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	if total == 0 {
		detail := "no audio captured"
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			detail = fmt.Sprintf("no audio captured: %v", readErr)
		}
		return Artifact{}, fault.New(fault.EmptyRecording, "capture.stop", detail)
	}

	pcm := make([]int16, 0, total)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	encode, ok := Encoders[format.MIME]
	if !ok {
		return Artifact{}, fault.New(fault.FormatUnsupported, "capture.stop", "no encoder for "+format.MIME)
	}
	data, err := encode(pcm, rate)
	if err != nil {
		return Artifact{}, fault.From(fault.FormatUnsupported, "capture.stop", err)
	}

	log.Info("Recorded", "chunks", stats.Chunks, "duration", stats.Duration, "peak", stats.PeakRMS, "bytes", len(data))
	return NewArtifact(data, format), nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
