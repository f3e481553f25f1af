// Package assistant composes capture, classification, transcription,
// intent parsing and chat into the operations the UI layer calls.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"moodvox/internal/audio"
	"moodvox/internal/chat"
	"moodvox/internal/conversation"
	"moodvox/internal/emotion"
	"moodvox/internal/fault"
	"moodvox/internal/mood"
	"moodvox/internal/nlu"
	"moodvox/pkg/stt"
)

const FallbackMessage = "I'm having trouble connecting right now, but I'm still here with you. How are you feeling?"

type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (audio.Artifact, error)
	State() audio.State
}

type Classifier interface {
	Classify(ctx context.Context, a audio.Artifact) (emotion.Observation, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, a stt.Audio) (stt.Transcript, error)
}

// Notifier surfaces things to the person at the machine.
type Notifier interface {
	Cue()
	Toast(message string)
}

// Publisher fans events out to other processes. Publish must be safe for
// concurrent use and must not block.
type Publisher interface {
	Publish(kind string, payload any)
}

const (
	EventRecording = "recording"
	EventMood      = "mood"
	EventIntent    = "intent"
	EventReply     = "reply"
)

type Config struct {
	Retry RetryPolicy
	// Smallest artifact sent to any collaborator; defaults to
	// emotion.DefaultMinBytes.
	MinArtifactBytes int
	// Longest clip ProcessAudioFile decodes.
	MaxFileDuration time.Duration
}

type Deps struct {
	Recorder    Recorder // optional: without it only files and text are processed
	Classifier  Classifier
	Chat        chat.Client
	Transcriber Transcriber // optional
	Parser      *nlu.Parser // optional, nlu.DefaultRules
	Notifier    Notifier    // optional
	Publisher   Publisher   // optional
}

type ChatResult struct {
	Message      string             `json:"message"`
	Suggestions  []string           `json:"suggestions"`
	MoodInsights *chat.MoodInsights `json:"moodInsights,omitempty"`
	Fallback     bool               `json:"fallback,omitempty"`
}

type VoiceResult struct {
	Observation emotion.Observation `json:"observation"`
	Transcript  string              `json:"transcript,omitempty"`
	Intent      *nlu.Intent         `json:"intent,omitempty"`
	Chat        *ChatResult         `json:"chat,omitempty"`
	// Notices are user-facing messages for steps that degraded.
	Notices []string `json:"notices,omitempty"`
}

// Assistant owns the mood profile and the conversation context. Every
// public method touching them runs under mu, so operations never
// interleave. ctl serializes recorder control and is always taken before
// mu. Cues and toasts are produced with mu released.
type Assistant struct {
	ctl sync.Mutex
	mu  sync.Mutex

	cfg     Config
	rec     Recorder
	cls     Classifier
	chat    chat.Client
	stt     Transcriber
	parser  *nlu.Parser
	notify  Notifier
	publish Publisher

	profile *mood.Profile
	conv    *conversation.Context
	now     func() time.Time
}

func New(cfg Config, d Deps) (*Assistant, error) {
	if d.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if d.Chat == nil {
		return nil, errors.New("chat client is required")
	}
	if d.Parser == nil {
		d.Parser = nlu.NewParser(nlu.DefaultRules)
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if cfg.MinArtifactBytes <= 0 {
		cfg.MinArtifactBytes = emotion.DefaultMinBytes
	}
	if cfg.MaxFileDuration <= 0 {
		cfg.MaxFileDuration = 60 * time.Second
	}

	profile := mood.NewProfile()
	return &Assistant{
		cfg:     cfg,
		rec:     d.Recorder,
		cls:     d.Classifier,
		chat:    d.Chat,
		stt:     d.Transcriber,
		parser:  d.Parser,
		notify:  d.Notifier,
		publish: d.Publisher,
		profile: profile,
		conv:    conversation.NewContext(profile),
		now:     time.Now,
	}, nil
}

func (a *Assistant) Recording() bool {
	if a.rec == nil {
		return false
	}
	return a.rec.State() == audio.StateRecording
}

func (a *Assistant) StartRecording(ctx context.Context) error {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	return a.fail(a.startCtl(ctx))
}

// startCtl plays the cue while the microphone is still closed so it never
// ends up in the recording.
func (a *Assistant) startCtl(ctx context.Context) error {
	if a.rec == nil {
		return fault.New(fault.DeviceUnavailable, "start", "no recorder configured")
	}
	if st := a.rec.State(); st != audio.StateIdle {
		return fault.New(fault.AlreadyRecording, "start", "recorder is "+st.String())
	}

	a.notify.Cue()
	if err := a.rec.Start(ctx); err != nil {
		return err
	}

	a.publish.Publish(EventRecording, map[string]string{"state": "started"})
	log.Info("Recording started")
	return nil
}

func (a *Assistant) StopRecording(ctx context.Context) (audio.Artifact, error) {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	art, err := a.stopCtl(ctx)
	return art, a.fail(err)
}

// StopAndProcess finishes the recording and runs a voice turn on it.
func (a *Assistant) StopAndProcess(ctx context.Context) (VoiceResult, error) {
	a.ctl.Lock()
	defer a.ctl.Unlock()
	return a.stopAndProcessCtl(ctx)
}

// Toggle starts a recording when idle, otherwise stops it and runs a voice
// turn. started reports which of the two happened.
func (a *Assistant) Toggle(ctx context.Context) (started bool, res VoiceResult, err error) {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	if a.Recording() {
		res, err = a.stopAndProcessCtl(ctx)
		return false, res, err
	}
	if err := a.fail(a.startCtl(ctx)); err != nil {
		return false, VoiceResult{}, err
	}
	return true, VoiceResult{}, nil
}

func (a *Assistant) stopAndProcessCtl(ctx context.Context) (VoiceResult, error) {
	art, err := a.stopCtl(ctx)
	if err != nil {
		return VoiceResult{}, a.fail(err)
	}
	return a.ProcessVoiceTurn(ctx, art)
}

func (a *Assistant) stopCtl(ctx context.Context) (audio.Artifact, error) {
	if a.rec == nil {
		return audio.Artifact{}, fault.New(fault.NotRecording, "stop", "no recorder configured")
	}

	art, err := a.rec.Stop(ctx)
	a.publish.Publish(EventRecording, map[string]string{"state": "stopped"})
	if err != nil {
		return audio.Artifact{}, err
	}

	log.Info("Recording finished", "bytes", art.Size(), "mime", art.MIME())
	return art, nil
}

// SendTextMessage answers text in the current mood context. When the chat
// service fails the fixed fallback message is returned and no turn is
// recorded. The only error is BadInput for blank text.
func (a *Assistant) SendTextMessage(ctx context.Context, text string) (ChatResult, error) {
	if strings.TrimSpace(text) == "" {
		return ChatResult{}, fault.New(fault.BadInput, "send", "message is empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sendLocked(ctx, text), nil
}

func (a *Assistant) sendLocked(ctx context.Context, text string) ChatResult {
	out := a.conv.BuildOutbound(strings.TrimSpace(text))

	reply, err := retry(ctx, a.cfg.Retry, func(ctx context.Context) (chat.Reply, error) {
		return a.chat.Send(ctx, out)
	})
	if err != nil {
		log.Warn("Chat unavailable, answering with fallback", "err", err)
		return ChatResult{Message: FallbackMessage, Suggestions: []string{}, Fallback: true}
	}

	if err := a.conv.Record(a.conv.NewTurn(out, reply.Message)); err != nil {
		log.Error("Failed to record turn", "err", err)
	}

	res := ChatResult{
		Message:      reply.Message,
		Suggestions:  reply.Suggestions,
		MoodInsights: reply.MoodInsights,
	}
	a.publish.Publish(EventReply, res)
	return res
}

// ProcessVoiceTurn classifies the clip and records the mood before anything
// else. With a transcriber configured the transcript is parsed, and chat
// intents are answered through SendTextMessage. Only BadInput aborts the turn.
func (a *Assistant) ProcessVoiceTurn(ctx context.Context, art audio.Artifact) (VoiceResult, error) {
	a.mu.Lock()
	res, err := a.voiceTurnLocked(ctx, art)
	a.mu.Unlock()
	return res, a.fail(err)
}

type transcription struct {
	t   stt.Transcript
	err error
}

func (a *Assistant) voiceTurnLocked(ctx context.Context, art audio.Artifact) (VoiceResult, error) {
	if art.Size() == 0 {
		return VoiceResult{}, fault.New(fault.EmptyRecording, "voice turn", "artifact is empty")
	}
	if art.Size() < a.cfg.MinArtifactBytes {
		return VoiceResult{}, fault.New(fault.BadInput, "voice turn",
			fmt.Sprintf("recording too short to analyze: %d bytes (min %d)", art.Size(), a.cfg.MinArtifactBytes))
	}

	// The transcription never outlives the turn.
	var transcribed chan transcription
	abandon := func() {}
	if a.stt != nil {
		sttCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		transcribed = make(chan transcription, 1)
		abandon = func() {
			cancel()
			<-transcribed
		}
		go func() {
			t, err := retry(sttCtx, a.cfg.Retry, func(ctx context.Context) (stt.Transcript, error) {
				return a.stt.Transcribe(ctx, art)
			})
			transcribed <- transcription{t: t, err: err}
		}()
	}

	var res VoiceResult

	obs, err := retry(ctx, a.cfg.Retry, func(ctx context.Context) (emotion.Observation, error) {
		return a.cls.Classify(ctx, art)
	})
	switch {
	case err == nil:
	case errors.Is(err, fault.ErrBadInput):
		abandon()
		return VoiceResult{}, err
	default:
		log.Warn("Classifier unavailable, using neutral mood", "err", err)
		obs = emotion.FallbackObservation(a.now())
		res.Notices = append(res.Notices, fault.UserMessage(err))
	}

	a.profile.Record(obs)
	res.Observation = obs
	a.publish.Publish(EventMood, a.profile.Snapshot(a.now()))
	log.Info("Mood recorded", "emotion", obs.Emotion, "confidence", obs.Confidence, "fallback", obs.Fallback)

	if transcribed == nil {
		return res, nil
	}

	tr := <-transcribed
	if tr.err != nil {
		log.Warn("Transcription failed", "err", tr.err)
		res.Notices = append(res.Notices, fault.UserMessage(tr.err))
		return res, nil
	}
	if tr.t.Empty() {
		log.Info("Empty transcript, nothing to parse")
		return res, nil
	}

	res.Transcript = tr.t.Text
	intent := a.parser.Parse(tr.t.Text, a.profile.Current())
	res.Intent = &intent
	a.publish.Publish(EventIntent, intent)
	log.Info("Intent parsed", "intent", intent.Kind)

	if intent.Kind == nlu.Chat {
		cr := a.sendLocked(ctx, intent.Message)
		res.Chat = &cr
	}
	return res, nil
}

func (a *Assistant) MoodProfile() mood.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile.Snapshot(a.now())
}

func (a *Assistant) ConversationHistory() []conversation.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.History()
}

func (a *Assistant) ClearConversationHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conv.Clear()
	log.Info("Conversation history cleared")
}

func (a *Assistant) ResetMoodProfile() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile.Reset()
	log.Info("Mood profile reset")
}

// fail shows the user-facing message for err and returns it unchanged. It
// must not be called with mu held.
func (a *Assistant) fail(err error) error {
	if err == nil {
		return nil
	}
	msg := fault.UserMessage(err)
	log.Error("Assistant operation failed", "err", err)
	a.notify.Toast(msg)
	return err
}

type nopNotifier struct{}

func (nopNotifier) Cue()         {}
func (nopNotifier) Toast(string) {}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
