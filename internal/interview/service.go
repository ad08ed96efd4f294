package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/cache"
	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/providers/llm"
	"github.com/pathprep/pathprep/internal/utils"
)

// Config tunes the protocol machine. Zero values take documented defaults.
type Config struct {
	QuestionCount int // fixed sequence length, default 8
	MaxFollowUps  int // per parent question, default 2
	ContextTurns  int // history window sent to the evaluator, default 6
	CacheTTL      time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuestionCount == 0 {
		c.QuestionCount = 8
	}
	if c.MaxFollowUps == 0 {
		c.MaxFollowUps = 2
	}
	if c.ContextTurns == 0 {
		c.ContextTurns = 6
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 12 * time.Hour
	}
	return c
}

// NextQuestion is what GetNextQuestion hands back while the sequence has
// questions left.
type NextQuestion struct {
	Question   models.InterviewQuestion
	IsFollowUp bool
}

// Service is the interview protocol state machine. It owns exactly one live
// InterviewSession at a time and is the only thing allowed to mutate it.
// None of SubmitAnswer, GetNextQuestion, or GenerateFinalFeedback ever
// propagate completion-service failures: each degrades to a documented
// fallback.
type Service struct {
	llm   llm.Provider
	cache cache.Cache // optional, reuses AI-supplemented questions
	log   *logrus.Entry
	cfg   Config

	mu      sync.Mutex
	sess    *models.InterviewSession
	current *models.InterviewQuestion // question awaiting an answer
}

func NewService(p llm.Provider, c cache.Cache, log *logrus.Logger, cfg Config) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		llm:   p,
		cache: c,
		log:   log.WithField("component", "interview"),
		cfg:   cfg.withDefaults(),
	}
}

// StartSession builds the fixed-length question sequence for role/level and
// records the opening question as conversation turn 0. The returned session
// is live and in active status.
func (s *Service) StartSession(ctx context.Context, role string, level models.ExperienceLevel, customTopic string) (*models.InterviewSession, error) {
	const op = "interview.StartSession"

	if role == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "role is required", nil)
	}
	if level == "" {
		level = models.LevelIntermediate
	}

	s.mu.Lock()
	if s.sess != nil && s.sess.Status != models.StatusCompleted {
		s.mu.Unlock()
		return nil, utils.E(utils.CodeConflict, op, "a session is already active", nil)
	}
	s.mu.Unlock()

	questions := s.buildSequence(ctx, role, level, customTopic)

	now := time.Now().UTC()
	sess := &models.InterviewSession{
		ID:                   uuid.NewString(),
		Role:                 role,
		Difficulty:           level,
		CustomTopic:          customTopic,
		Questions:            questions,
		CurrentQuestionIndex: 0,
		FollowUpCount:        0,
		MaxFollowUps:         s.cfg.MaxFollowUps,
		StartTime:            now,
		Status:               models.StatusActive,
	}
	opening := questions[0]
	sess.Conversation = append(sess.Conversation, models.ConversationTurn{
		Role:       models.RoleInterviewer,
		Content:    opening.Question,
		Timestamp:  now,
		QuestionID: opening.ID,
	})

	s.mu.Lock()
	s.sess = sess
	s.current = &opening
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"role":       role,
		"level":      level,
	}).Info("interview session started")
	return sess, nil
}

// Session returns the live session, or nil.
func (s *Service) Session() *models.InterviewSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// CurrentQuestion returns the question awaiting an answer.
func (s *Service) CurrentQuestion() *models.InterviewQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	q := *s.current
	return &q
}

// SubmitAnswer evaluates the candidate's answer to the current question and
// appends it to the conversation log. It always returns a usable
// evaluation; completion-service failures degrade to the heuristic scorer.
func (s *Service) SubmitAnswer(ctx context.Context, answer string) *models.AnswerEvaluation {
	s.mu.Lock()
	if s.sess == nil || s.current == nil {
		s.mu.Unlock()
		return fallbackEvaluation(models.InterviewQuestion{}, answer)
	}
	q := *s.current
	history := lastTurns(s.sess.Conversation, s.cfg.ContextTurns)
	s.mu.Unlock()

	ev := s.Evaluate(ctx, q, answer, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil || s.sess.Status == models.StatusCompleted {
		// Session ended while the evaluation was in flight; the result is
		// returned but not recorded.
		return ev
	}
	s.sess.Conversation = append(s.sess.Conversation, models.ConversationTurn{
		Role:       models.RoleCandidate,
		Content:    answer,
		Timestamp:  time.Now().UTC(),
		QuestionID: q.ID,
		Evaluation: ev,
	})
	return ev
}

// Evaluate grades one answer against the rubric. Exported for callers that
// manage conversation history themselves (the feedback worker, tests).
func (s *Service) Evaluate(ctx context.Context, q models.InterviewQuestion, answer string, history []models.ConversationTurn) *models.AnswerEvaluation {
	raw, err := s.llm.Complete(ctx, buildEvaluationPrompt(q, answer, history))
	if err != nil {
		s.log.WithError(err).Warn("evaluation call failed, using heuristic scorer")
		return fallbackEvaluation(q, answer)
	}
	ev, err := decodeEvaluation(raw)
	if err != nil {
		s.log.WithError(err).Warn("evaluation response unparseable, using heuristic scorer")
		return fallbackEvaluation(q, answer)
	}
	return ev
}

// GetNextQuestion decides what the interviewer says next: a bounded
// follow-up when the evaluation asks for one, otherwise the next scheduled
// question. It returns nil once the sequence is exhausted, marking the
// session completed.
func (s *Service) GetNextQuestion(ctx context.Context, answer string, ev *models.AnswerEvaluation) *NextQuestion {
	s.mu.Lock()
	if s.sess == nil || s.sess.Status == models.StatusCompleted {
		s.mu.Unlock()
		return nil
	}

	wantFollowUp := ev != nil && ev.NeedsFollowUp && answer != "" &&
		s.sess.FollowUpCount < s.sess.MaxFollowUps

	if wantFollowUp {
		parent := *s.current
		s.mu.Unlock()

		q := s.makeFollowUp(ctx, parent, answer, ev)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sess == nil || s.sess.Status == models.StatusCompleted {
			return nil
		}
		s.sess.FollowUpCount++
		s.current = &q
		s.sess.Conversation = append(s.sess.Conversation, models.ConversationTurn{
			Role:       models.RoleInterviewer,
			Content:    q.Question,
			Timestamp:  time.Now().UTC(),
			QuestionID: q.ID,
		})
		return &NextQuestion{Question: q, IsFollowUp: true}
	}

	defer s.mu.Unlock()

	// Advancing to a genuinely new question always resets the follow-up
	// budget.
	s.sess.FollowUpCount = 0
	s.sess.CurrentQuestionIndex++
	if s.sess.CurrentQuestionIndex >= len(s.sess.Questions) {
		s.sess.Status = models.StatusCompleted
		s.current = nil
		return nil
	}

	q := s.sess.Questions[s.sess.CurrentQuestionIndex]
	s.current = &q
	s.sess.Conversation = append(s.sess.Conversation, models.ConversationTurn{
		Role:       models.RoleInterviewer,
		Content:    q.Question,
		Timestamp:  time.Now().UTC(),
		QuestionID: q.ID,
	})
	return &NextQuestion{Question: q, IsFollowUp: false}
}

// makeFollowUp asks the completion service for a targeted probe, with a
// deterministic template as fallback.
func (s *Service) makeFollowUp(ctx context.Context, parent models.InterviewQuestion, answer string, ev *models.AnswerEvaluation) models.InterviewQuestion {
	text := ""
	raw, err := s.llm.Complete(ctx, buildFollowUpPrompt(parent, answer, ev))
	if err != nil {
		s.log.WithError(err).Warn("follow-up generation failed, using template")
	} else {
		text = strings.Trim(strings.TrimSpace(StripFences(raw)), `"`)
	}
	if text == "" {
		if len(ev.MissingConcepts) > 0 {
			text = fmt.Sprintf("Could you go deeper on %s in the context of that question?", ev.MissingConcepts[0])
		} else {
			text = "Could you expand on your answer with more detail or a concrete example?"
		}
	}

	// Follow-ups probe the question currently on the table, so the parent
	// link points at it even when that question is itself a follow-up.
	return models.InterviewQuestion{
		ID:               uuid.NewString(),
		Question:         text,
		Type:             models.QuestionFollowUp,
		Difficulty:       parent.Difficulty,
		Topic:            parent.Topic,
		ParentQuestionID: parent.ID,
	}
}

// GenerateFinalFeedback aggregates every recorded evaluation into the final
// assessment. Returns nil when nothing was evaluated; degrades to a
// deterministic local summary when the completion service fails.
func (s *Service) GenerateFinalFeedback(ctx context.Context) *models.FinalFeedback {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	return FinalFeedbackFor(ctx, s.llm, sess, s.log)
}

// FinalFeedbackFor computes final feedback for any session value. Shared
// with the feedback worker, which operates on persisted sessions.
func FinalFeedbackFor(ctx context.Context, p llm.Provider, sess *models.InterviewSession, log *logrus.Entry) *models.FinalFeedback {
	var sum, n int
	for _, t := range sess.Conversation {
		if t.Evaluation != nil {
			sum += t.Evaluation.OverallScore
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := clampScore((sum + n/2) / n)

	raw, err := p.Complete(ctx, buildFinalFeedbackPrompt(sess, mean))
	if err == nil {
		if payload, derr := decodeFinalFeedback(raw); derr == nil {
			return &models.FinalFeedback{
				OverallScore:   mean,
				Strengths:      payload.Strengths,
				Improvements:   payload.Improvements,
				DetailedReview: payload.DetailedReview,
				Recommendation: models.Recommendation(payload.Recommendation),
			}
		} else if log != nil {
			log.WithError(derr).Warn("final feedback response unparseable, using local summary")
		}
	} else if log != nil {
		log.WithError(err).Warn("final feedback call failed, using local summary")
	}

	return fallbackFinalFeedback(sess, mean, n)
}

// EndSession marks the session completed. Idempotent; the conversation log
// stays readable afterwards.
func (s *Service) EndSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		s.sess.Status = models.StatusCompleted
	}
	s.current = nil
}

// buildSequence draws the 8-question sequence: bank first, then the
// completion service for slots the bank cannot fill, generic templates
// last.
func (s *Service) buildSequence(ctx context.Context, role string, level models.ExperienceLevel, topic string) []models.InterviewQuestion {
	types := typeSequence(role)
	if len(types) > s.cfg.QuestionCount {
		types = types[:s.cfg.QuestionCount]
	}
	diff := level.QuestionDifficulty()
	pool := bankFor(role)[diff]
	used := make([]bool, len(pool))

	out := make([]models.InterviewQuestion, len(types))
	var missing []int

	pick := func(want models.QuestionType, exact bool) (bankQuestion, bool) {
		for i, bq := range pool {
			if used[i] {
				continue
			}
			if exact && bq.Type != want {
				continue
			}
			used[i] = true
			return bq, true
		}
		return bankQuestion{}, false
	}

	for i, want := range types {
		bq, ok := pick(want, true)
		if !ok {
			bq, ok = pick(want, false)
		}
		if !ok {
			missing = append(missing, i)
			continue
		}
		out[i] = models.InterviewQuestion{
			ID:                uuid.NewString(),
			Question:          bq.Text,
			Type:              bq.Type,
			Difficulty:        diff,
			Topic:             bq.Topic,
			ExpectedKeyPoints: bq.KeyPoints,
		}
	}

	if len(missing) > 0 {
		s.fillFromAI(ctx, role, level, topic, types, missing, out)
	}
	return out
}

// fillFromAI asks the completion service to synthesize questions for the
// unfilled slots, consulting the cache first.
func (s *Service) fillFromAI(ctx context.Context, role string, level models.ExperienceLevel, topic string, types []models.QuestionType, missing []int, out []models.InterviewQuestion) {
	wantTypes := make([]models.QuestionType, len(missing))
	for i, idx := range missing {
		wantTypes[i] = types[idx]
	}

	var generated []models.InterviewQuestion
	key := fmt.Sprintf("interview:questions:%s:%s:%s", role, level, topic)
	if s.cache != nil {
		if hit, err := s.cache.GetJSON(ctx, key, &generated); err != nil || !hit {
			generated = nil
		}
	}

	if len(generated) < len(missing) {
		var existing []string
		for _, q := range out {
			if q.Question != "" {
				existing = append(existing, q.Question)
			}
		}
		raw, err := s.llm.Complete(ctx, buildSupplementPrompt(role, level, topic, wantTypes, existing))
		if err == nil {
			if qs, derr := decodeQuestions(raw); derr == nil {
				generated = qs
				if s.cache != nil {
					_ = s.cache.SetJSON(ctx, key, qs, s.cfg.CacheTTL)
				}
			} else {
				s.log.WithError(derr).Warn("supplement response unparseable, using generic questions")
			}
		} else {
			s.log.WithError(err).Warn("question supplementation failed, using generic questions")
		}
	}

	diff := level.QuestionDifficulty()
	for i, idx := range missing {
		var bq bankQuestion
		if i < len(generated) {
			g := generated[i]
			bq = bankQuestion{Text: g.Question, Type: g.Type, Topic: g.Topic, KeyPoints: g.ExpectedKeyPoints}
			if bq.Type == "" {
				bq.Type = wantTypes[i]
			}
		} else {
			bq = genericQuestion(role, level, wantTypes[i])
		}
		out[idx] = models.InterviewQuestion{
			ID:                uuid.NewString(),
			Question:          bq.Text,
			Type:              bq.Type,
			Difficulty:        diff,
			Topic:             bq.Topic,
			ExpectedKeyPoints: bq.KeyPoints,
		}
	}
}

func lastTurns(turns []models.ConversationTurn, n int) []models.ConversationTurn {
	if len(turns) <= n {
		return append([]models.ConversationTurn(nil), turns...)
	}
	return append([]models.ConversationTurn(nil), turns[len(turns)-n:]...)
}
