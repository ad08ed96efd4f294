package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ConversationLog is the Postgres projection of a ConversationTurn, written
// as turns are appended so completed sessions can be reviewed without
// loading the full Mongo document.
type ConversationLog struct {
	ID         string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID     string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SessionID  string `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	Role       string `gorm:"column:role;type:text" json:"role"` // "interviewer" | "candidate"
	Content    string `gorm:"column:content;type:text" json:"content"`
	QuestionID string `gorm:"column:question_id;type:text" json:"question_id"`

	// Embedding is optional and stays NULL when absent. A non-pointer field
	// would write the zero Vector, which a vector(768) column rejects.
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding,omitempty"`
	Timestamp time.Time        `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`

	// Evaluation holds the AnswerEvaluation JSON for candidate turns.
	Evaluation datatypes.JSON `gorm:"column:evaluation;type:jsonb" json:"evaluation"`
}

func (ConversationLog) TableName() string { return "conversation_logs" }
