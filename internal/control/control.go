// Package control maps control socket requests onto assistant operations.
package control

import (
	"context"
	log "log/slog"

	"moodvox/internal/assistant"
	"moodvox/internal/fault"
	"moodvox/internal/ipc"
)

// Speaker voices a reply; nil disables speech.
type Speaker func(text, voice string) error

type Handler struct {
	asst  *assistant.Assistant
	say   Speaker
	voice string
}

func NewHandler(asst *assistant.Assistant, say Speaker, voice string) *Handler {
	return &Handler{asst: asst, say: say, voice: voice}
}

func (h *Handler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Cmd {
	case ipc.CmdStart:
		if err := h.asst.StartRecording(ctx); err != nil {
			return ipc.Fail(fault.UserMessage(err))
		}
		return ipc.Reply("Listening...", nil)

	case ipc.CmdStop:
		return h.voiceTurn(h.asst.StopAndProcess(ctx))

	case ipc.CmdTrigger:
		started, res, err := h.asst.Toggle(ctx)
		if started {
			return ipc.Reply("Listening...", nil)
		}
		return h.voiceTurn(res, err)

	case ipc.CmdSay:
		res, err := h.asst.SendTextMessage(ctx, req.Text)
		if err != nil {
			return ipc.Fail(fault.UserMessage(err))
		}
		h.speakOut(res.Message)
		return ipc.Reply(res.Message, res)

	case ipc.CmdAnalyze:
		return h.voiceTurn(h.asst.ProcessAudioFile(ctx, req.Path))

	case ipc.CmdMood:
		return ipc.Reply("", h.asst.MoodProfile())

	case ipc.CmdHistory:
		return ipc.Reply("", h.asst.ConversationHistory())

	case ipc.CmdClear:
		h.asst.ClearConversationHistory()
		return ipc.Reply("Conversation history cleared.", nil)

	case ipc.CmdReset:
		h.asst.ResetMoodProfile()
		return ipc.Reply("Mood profile reset.", nil)

	default:
		log.Warn("Unknown command", "cmd", req.Cmd)
		return ipc.Fail("unknown command " + req.Cmd)
	}
}

func (h *Handler) voiceTurn(res assistant.VoiceResult, err error) ipc.Response {
	if err != nil {
		return ipc.Fail(fault.UserMessage(err))
	}

	msg := "Mood: " + string(res.Observation.Emotion)
	if res.Chat != nil {
		msg = res.Chat.Message
		h.speakOut(msg)
	} else if res.Intent != nil {
		msg = "Intent: " + string(res.Intent.Kind)
	}
	return ipc.Reply(msg, res)
}

func (h *Handler) speakOut(text string) {
	if h.say == nil {
		return
	}
	if err := h.say(text, h.voice); err != nil {
		log.Error("Failed to voice out", "err", err)
	}
}
