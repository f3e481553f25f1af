package assistant

import (
	"context"

	"moodvox/internal/audio"
	"moodvox/internal/fault"
	"moodvox/pkg/audioconv"
)

// ProcessAudioFile decodes a wav, mp3 or ogg file into a WAV artifact and
// runs a voice turn on it.
func (a *Assistant) ProcessAudioFile(ctx context.Context, path string) (VoiceResult, error) {
	maxSamples := int(a.cfg.MaxFileDuration.Seconds() * audioconv.TargetRate)

	pcm, err := audioconv.DecodeFile(ctx, path, audioconv.Options{MaxSamples: maxSamples})
	if err != nil {
		return VoiceResult{}, fault.From(fault.BadInput, "decode file", err)
	}
	if len(pcm) == 0 {
		return VoiceResult{}, fault.New(fault.EmptyRecording, "decode file", path+" has no samples")
	}

	data, err := audioconv.EncodeWAV(audioconv.FloatToPCM16(pcm), audioconv.TargetRate)
	if err != nil {
		return VoiceResult{}, fault.From(fault.BadInput, "encode wav", err)
	}

	return a.ProcessVoiceTurn(ctx, audio.NewArtifact(data, audio.FormatWAV))
}
