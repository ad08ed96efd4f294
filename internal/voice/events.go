package voice

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/providers/stt"
)

type EventType string

const (
	// EventTranscription carries an interim recognition result.
	EventTranscription EventType = "transcription"
	// EventFinalTranscription carries a finalized recognition segment.
	EventFinalTranscription EventType = "final_transcription"
	EventSpeechStart        EventType = "speech_start"
	EventSpeechEnd          EventType = "speech_end"
	// EventSilenceDetected is the end-of-turn signal: sustained silence after
	// accumulated speech. Transcript holds the full turn text.
	EventSilenceDetected EventType = "silence_detected"
	EventError           EventType = "error"
	EventStateChange     EventType = "state_change"
)

// Event is what subscribers receive. Fields are populated per type:
// Result for transcription events, Transcript for silence detection,
// State for state changes, Err (+Terminal) for errors.
type Event struct {
	Type       EventType
	Result     *stt.Result
	Transcript string
	State      State
	Err        error
	Terminal   bool
}

// bus is a minimal publish/subscribe channel. Subscriber panics are isolated
// so one bad callback cannot break delivery to the rest.
type bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
	log  *logrus.Entry
}

func newBus(log *logrus.Entry) *bus {
	return &bus{subs: make(map[int]func(Event)), log: log}
}

func (b *bus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.deliver(fn, ev)
	}
}

func (b *bus) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.WithField("event", ev.Type).WithField("panic", r).
				Error("event subscriber panicked")
		}
	}()
	fn(ev)
}
