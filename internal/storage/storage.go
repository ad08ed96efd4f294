package storage

import (
	"context"
	"time"
)

// RecordingStore archives the candidate's answer audio so completed
// interviews can be replayed during review.
type RecordingStore interface {
	// SaveAnswer stores one turn's raw PCM16LE audio and returns the object
	// name it was stored under.
	SaveAnswer(ctx context.Context, sessionID string, turnIndex int, sampleRateHz int, pcm []byte) (string, error)
	// SignedGetURL returns a time-limited playback URL for a stored object.
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
