// Package fault holds the error taxonomy shared by the capture session,
// the collaborator clients and the orchestrator.
package fault

import (
	"errors"
	"strings"
)

type Kind uint8

const (
	Unknown Kind = iota
	PermissionDenied
	DeviceUnavailable
	FormatUnsupported
	EmptyRecording
	ServiceUnavailable
	BadInput
	MalformedResponse
	AlreadyRecording
	NotRecording
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	PermissionDenied:   "permission_denied",
	DeviceUnavailable:  "device_unavailable",
	FormatUnsupported:  "format_unsupported",
	EmptyRecording:     "empty_recording",
	ServiceUnavailable: "service_unavailable",
	BadInput:           "bad_input",
	MalformedResponse:  "malformed_response",
	AlreadyRecording:   "already_recording",
	NotRecording:       "not_recording",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the only error type that crosses a collaborator boundary.
// Detail keeps the text of the underlying cause without wrapping it.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
}

var (
	ErrPermissionDenied   = &Error{Kind: PermissionDenied}
	ErrDeviceUnavailable  = &Error{Kind: DeviceUnavailable}
	ErrFormatUnsupported  = &Error{Kind: FormatUnsupported}
	ErrEmptyRecording     = &Error{Kind: EmptyRecording}
	ErrServiceUnavailable = &Error{Kind: ServiceUnavailable}
	ErrBadInput           = &Error{Kind: BadInput}
	ErrMalformedResponse  = &Error{Kind: MalformedResponse}
	ErrAlreadyRecording   = &Error{Kind: AlreadyRecording}
	ErrNotRecording       = &Error{Kind: NotRecording}
)

func New(kind Kind, op string, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// From converts cause into a typed error of the given kind, keeping only its text.
func From(kind Kind, op string, cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return New(kind, op, detail)
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, e.Kind.String())
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, ": ")
}

// Is matches any *Error with the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// IsUnavailable reports whether err is an outcome the orchestrator answers
// with a fallback rather than surfacing it.
func IsUnavailable(err error) bool {
	switch KindOf(err) {
	case ServiceUnavailable, MalformedResponse:
		return true
	}
	return false
}

var userMessages = map[Kind]string{
	PermissionDenied:   "Microphone access was denied. Allow microphone access and try again.",
	DeviceUnavailable:  "No microphone found. Connect a microphone and try again.",
	FormatUnsupported:  "This device cannot record in a supported audio format.",
	EmptyRecording:     "Nothing was recorded. Hold the button a little longer and speak.",
	ServiceUnavailable: "Service temporarily unavailable, using fallback.",
	BadInput:           "The recording could not be analyzed. Please record again.",
	MalformedResponse:  "The service sent an unexpected answer, using fallback.",
	AlreadyRecording:   "A recording is already in progress.",
	NotRecording:       "There is no recording in progress.",
}

// UserMessage returns a short actionable message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return "Something went wrong: " + err.Error()
}
