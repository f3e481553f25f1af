// Package whisper runs a local whisper.cpp model as a speech-to-text backend.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	wcpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"moodvox/internal/fault"
	"moodvox/pkg/audioconv"
	"moodvox/pkg/stt"
)

type Options struct {
	Language      string // "auto", "en", ...
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string
	BeamSize      int     // 0 = greedy
	Temperature   float32 // 0 = default
	MaxSeconds    int     // clip audio longer than this; 0 = no limit
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
	// Mean token probability.
	Prob float64
}

const opTranscribe = "transcribe"

// Model wraps a loaded ggml model. A model context is not safe for
// concurrent use, so calls are serialized.
type Model struct {
	mu    sync.Mutex
	model wcpp.Model
	opt   Options
}

func New(modelPath string, opt Options) (*Model, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := wcpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Model{model: m, opt: opt}, nil
}

func (w *Model) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

// Transcribe decodes the clip to 16 kHz mono and runs the model on it.
func (w *Model) Transcribe(ctx context.Context, a stt.Audio) (stt.Transcript, error) {
	var maxSamples int
	if w.opt.MaxSeconds > 0 {
		maxSamples = w.opt.MaxSeconds * audioconv.TargetRate
	}
	pcm, err := audioconv.DecodeBytes(a.Bytes(), a.MIME(), audioconv.Options{MaxSamples: maxSamples})
	if err != nil {
		return stt.Transcript{}, fault.From(fault.BadInput, opTranscribe, err)
	}

	segs, lang, err := w.TranscribePCM(ctx, pcm)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stt.Transcript{}, fault.New(fault.ServiceUnavailable, opTranscribe, "transcription interrupted")
		}
		return stt.Transcript{}, fault.From(fault.ServiceUnavailable, opTranscribe, err)
	}

	return joinSegments(segs, lang), nil
}

// TranscribePCM takes mono 16 kHz float32 samples in [-1, 1].
func (w *Model) TranscribePCM(ctx context.Context, pcm16k []float32) ([]Segment, string, error) {
	if w.model == nil {
		return nil, "", errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return nil, "", errors.New("no audio samples provided")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, "", fmt.Errorf("new context: %w", err)
	}

	opt := w.opt
	if opt.Language == "" {
		opt.Language = "auto"
	}
	if err := wctx.SetLanguage(opt.Language); err != nil {
		return nil, "", fmt.Errorf("set language: %w", err)
	}

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.BeamSize > 0 {
		wctx.SetBeamSize(opt.BeamSize)
	}
	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}
	if opt.Temperature != 0 {
		wctx.SetTemperature(opt.Temperature)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return nil, "", fmt.Errorf("process: %w", err)
	}

	var segs []Segment
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("next segment: %w", err)
		}

		var p float64
		for _, tok := range s.Tokens {
			p += float64(tok.P)
		}
		if len(s.Tokens) > 0 {
			p /= float64(len(s.Tokens))
		}

		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
			Prob:     p,
		})
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}
	return segs, lang, nil
}

func joinSegments(segs []Segment, lang string) stt.Transcript {
	parts := make([]string, 0, len(segs))
	var conf float64
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
		conf += s.Prob
	}
	if len(segs) > 0 {
		conf /= float64(len(segs))
	}
	return stt.Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: conf,
		Language:   lang,
	}
}
