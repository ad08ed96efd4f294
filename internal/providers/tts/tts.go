package tts

import (
	"context"
	"time"
)

// Options control voice delivery. Zero values mean backend defaults.
type Options struct {
	Voice  string
	Rate   float64 // speaking rate multiplier, 1.0 = normal
	Pitch  float64 // semitones offset
	Volume float64 // gain in dB
}

// Audio is one synthesized utterance ready for playback.
type Audio struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}

// Synthesizer renders text to audio. Implementations do not play anything;
// delivery is the caller's concern.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts Options) (Audio, error)
	Close() error
}
