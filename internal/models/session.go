package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionRecord is the persisted form of an interview session. The embedded
// InterviewSession is written by the protocol machine as the session
// progresses; the surrounding fields belong to the API layer.
type SessionRecord struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID string             `bson:"user_id" json:"user_id"` // uuid from Supabase Auth

	Session InterviewSession `bson:"session" json:"session"`

	// ReviewPasscodeHash, when set, gates non-owner access to the completed
	// conversation. bcrypt hash, never returned to clients.
	ReviewPasscodeHash string `bson:"review_passcode_hash,omitempty" json:"-"`

	FinalFeedback *FinalFeedback `bson:"final_feedback,omitempty" json:"final_feedback,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}
