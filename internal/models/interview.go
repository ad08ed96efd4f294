package models

import "time"

type QuestionType string

const (
	QuestionTechnical    QuestionType = "technical"
	QuestionBehavioral   QuestionType = "behavioral"
	QuestionScenario     QuestionType = "scenario"
	QuestionFollowUp     QuestionType = "follow-up"
	QuestionDSAProblem   QuestionType = "dsa-problem"
	QuestionSystemDesign QuestionType = "system-design"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ExperienceLevel is the candidate-facing difficulty selector chosen at
// session start. It maps onto per-question Difficulty values.
type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelAdvanced     ExperienceLevel = "advanced"
)

// QuestionDifficulty maps an experience level to the difficulty assigned to
// the questions drawn for that session.
func (l ExperienceLevel) QuestionDifficulty() Difficulty {
	switch l {
	case LevelBeginner:
		return DifficultyEasy
	case LevelAdvanced:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// InterviewQuestion is immutable once generated. A follow-up carries
// ParentQuestionID linking it to the question it probes.
type InterviewQuestion struct {
	ID                string       `bson:"id" json:"id"`
	Question          string       `bson:"question" json:"question"`
	Type              QuestionType `bson:"type" json:"type"`
	Difficulty        Difficulty   `bson:"difficulty" json:"difficulty"`
	Topic             string       `bson:"topic" json:"topic"`
	ExpectedKeyPoints []string     `bson:"expected_key_points,omitempty" json:"expected_key_points,omitempty"`
	ParentQuestionID  string       `bson:"parent_question_id,omitempty" json:"parent_question_id,omitempty"`
}

func (q InterviewQuestion) IsFollowUp() bool { return q.ParentQuestionID != "" }

type EvalConfidence string

const (
	ConfidenceLow    EvalConfidence = "low"
	ConfidenceMedium EvalConfidence = "medium"
	ConfidenceHigh   EvalConfidence = "high"
)

// AnswerEvaluation is produced once per candidate answer and attached to the
// conversation turn that generated it. Sub-scores and OverallScore are always
// clamped to [0,100] regardless of where the evaluation came from.
type AnswerEvaluation struct {
	Clarity            int `bson:"clarity" json:"clarity"`
	Completeness       int `bson:"completeness" json:"completeness"`
	TechnicalAccuracy  int `bson:"technical_accuracy" json:"technical_accuracy"`
	CommunicationSkill int `bson:"communication_skill" json:"communication_skill"`
	Depth              int `bson:"depth" json:"depth"`

	OverallScore int            `bson:"overall_score" json:"overall_score"`
	Confidence   EvalConfidence `bson:"confidence" json:"confidence"`

	NeedsFollowUp  bool   `bson:"needs_follow_up" json:"needs_follow_up"`
	FollowUpReason string `bson:"follow_up_reason,omitempty" json:"follow_up_reason,omitempty"`

	StrongPoints     []string `bson:"strong_points,omitempty" json:"strong_points,omitempty"`
	WeakPoints       []string `bson:"weak_points,omitempty" json:"weak_points,omitempty"`
	MissingConcepts  []string `bson:"missing_concepts,omitempty" json:"missing_concepts,omitempty"`
	KeyPointsCovered []string `bson:"key_points_covered,omitempty" json:"key_points_covered,omitempty"`

	Feedback string `bson:"feedback,omitempty" json:"feedback,omitempty"`
}

type TurnRole string

const (
	RoleInterviewer TurnRole = "interviewer"
	RoleCandidate   TurnRole = "candidate"
)

// ConversationTurn is one utterance in the append-only session log. The log
// is the source of truth for evaluator context and final-feedback generation.
type ConversationTurn struct {
	Role       TurnRole          `bson:"role" json:"role"`
	Content    string            `bson:"content" json:"content"`
	Timestamp  time.Time         `bson:"timestamp" json:"timestamp"`
	QuestionID string            `bson:"question_id,omitempty" json:"question_id,omitempty"`
	Evaluation *AnswerEvaluation `bson:"evaluation,omitempty" json:"evaluation,omitempty"`
}

type SessionStatus string

const (
	StatusPreparing SessionStatus = "preparing"
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
)

// InterviewSession is the aggregate root for one interview. Exactly one
// session is live per protocol-machine instance; it is mutated only by that
// machine's own operations.
type InterviewSession struct {
	ID          string          `bson:"session_id" json:"session_id"`
	Role        string          `bson:"role" json:"role"`
	Difficulty  ExperienceLevel `bson:"difficulty" json:"difficulty"`
	CustomTopic string          `bson:"custom_topic,omitempty" json:"custom_topic,omitempty"`

	Questions    []InterviewQuestion `bson:"questions" json:"questions"`
	Conversation []ConversationTurn  `bson:"conversation" json:"conversation"`

	CurrentQuestionIndex int `bson:"current_question_index" json:"current_question_index"`
	FollowUpCount        int `bson:"follow_up_count" json:"follow_up_count"`
	MaxFollowUps         int `bson:"max_follow_ups" json:"max_follow_ups"`

	StartTime time.Time     `bson:"start_time" json:"start_time"`
	Status    SessionStatus `bson:"status" json:"status"`
}

type Recommendation string

const (
	RecommendStrongHire Recommendation = "strong-hire"
	RecommendHire       Recommendation = "hire"
	RecommendMaybe      Recommendation = "maybe"
	RecommendNoHire     Recommendation = "no-hire"
)

// FinalFeedback is the aggregate assessment produced when a session ends.
type FinalFeedback struct {
	OverallScore   int            `bson:"overall_score" json:"overall_score"`
	Strengths      []string       `bson:"strengths" json:"strengths"`
	Improvements   []string       `bson:"improvements" json:"improvements"`
	DetailedReview string         `bson:"detailed_review" json:"detailed_review"`
	Recommendation Recommendation `bson:"recommendation" json:"recommendation"`
}
