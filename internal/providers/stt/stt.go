package stt

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is one recognition hypothesis. Interim results (IsFinal false) are
// replaced by later ones; final results are stable and may be accumulated.
type Result struct {
	Transcript string
	IsFinal    bool
	Confidence float64 // 0..1, 0 when the backend reports none for interims
	Timestamp  time.Time
}

// Kind classifies recognition failures so callers can pick a recovery
// strategy without knowing the backend.
type Kind string

const (
	// KindNetwork covers transient transport failures; retryable with backoff.
	KindNetwork Kind = "network"
	// KindNoSpeech means the session ended without hearing anything. Not an error
	// condition for continuous capture; callers silently re-arm.
	KindNoSpeech Kind = "no-speech"
	// KindPermissionDenied means audio capture was refused. Terminal.
	KindPermissionDenied Kind = "permission-denied"
	// KindAudioCapture means no usable input device/stream. Terminal.
	KindAudioCapture Kind = "audio-capture"
	// KindUnavailable means the recognition service itself is down. Terminal.
	KindUnavailable Kind = "service-unavailable"
	// KindAborted means the session was closed deliberately.
	KindAborted Kind = "aborted"
	KindUnknown Kind = "unknown"
)

// Error is a classified recognition failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stt: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("stt: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Retryable reports whether a failure of this kind should go through the
// backoff policy rather than being surfaced as terminal.
func (k Kind) Retryable() bool { return k == KindNetwork }

// Config describes one recognition session.
type Config struct {
	Language       string // BCP-47, ex: "en-US"
	InterimResults bool
	SampleRateHz   int32 // PCM16LE mono input rate
}

// Recognizer opens recognition sessions over a caller-supplied audio feed.
// Sessions are inherently time-bounded by the backend; when one ends the
// caller decides whether to open another.
type Recognizer interface {
	Start(ctx context.Context, cfg Config) (Session, error)
	Close() error
}

// Session is one bounded recognition stream. Results is closed when the
// session ends for any reason; Err reports why, if abnormal.
type Session interface {
	// Write feeds PCM16LE mono audio at the configured sample rate.
	Write(pcm []byte) error
	Results() <-chan Result
	// Err is valid after Results has been closed.
	Err() error
	Close() error
}
