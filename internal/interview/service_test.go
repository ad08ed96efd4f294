package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/models"
)

// fakeLLM scripts completion responses; an empty script means every call
// fails.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeLLM) Close() error { return nil }

func newTestService(p *fakeLLM) *Service {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return NewService(p, nil, l, Config{})
}

func startTestSession(t *testing.T, svc *Service, role string, level models.ExperienceLevel) *models.InterviewSession {
	t.Helper()
	sess, err := svc.StartSession(context.Background(), role, level, "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return sess
}

func TestStartSessionBuildsFullSequence(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	sess := startTestSession(t, svc, "frontend-developer", models.LevelBeginner)

	if len(sess.Questions) != 8 {
		t.Fatalf("question count = %d, want 8", len(sess.Questions))
	}
	for i, q := range sess.Questions {
		if q.ID == "" || q.Question == "" {
			t.Fatalf("question %d incomplete: %+v", i, q)
		}
		if q.Difficulty != models.DifficultyEasy {
			t.Fatalf("question %d difficulty = %q, want easy for beginner", i, q.Difficulty)
		}
	}
	if sess.Status != models.StatusActive {
		t.Fatalf("status = %q, want active", sess.Status)
	}
	if sess.MaxFollowUps != 2 {
		t.Fatalf("max follow-ups = %d, want 2", sess.MaxFollowUps)
	}

	// The opening question is already on the record as turn zero.
	if len(sess.Conversation) != 1 || sess.Conversation[0].Role != models.RoleInterviewer {
		t.Fatalf("expected interviewer turn 0, got %+v", sess.Conversation)
	}
	if sess.Conversation[0].Content != sess.Questions[0].Question {
		t.Fatal("turn 0 should carry the first question")
	}
}

func TestStartSessionUsesGenericFillWhenBankAndAIRunDry(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	// No dedicated bank for this role; general pool has fewer hard questions
	// than slots, so generic templates must fill the rest.
	sess := startTestSession(t, svc, "embedded-engineer", models.LevelAdvanced)

	if len(sess.Questions) != 8 {
		t.Fatalf("question count = %d, want 8", len(sess.Questions))
	}
	for i, q := range sess.Questions {
		if q.Question == "" {
			t.Fatalf("slot %d left empty", i)
		}
	}
}

func TestStartSessionRejectsSecondLiveSession(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	if _, err := svc.StartSession(context.Background(), "dsa", models.LevelBeginner, ""); err == nil {
		t.Fatal("expected error starting a second session on one machine")
	}
}

func TestSubmitAnswerFallsBackWhenLLMFails(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	ev := svc.SubmitAnswer(context.Background(), "We added an index and a redis cache to fix the latency.")
	if ev == nil {
		t.Fatal("SubmitAnswer must always return an evaluation")
	}
	if ev.Confidence != models.ConfidenceLow {
		t.Fatalf("confidence = %q, want low for heuristic scoring", ev.Confidence)
	}

	sess := svc.Session()
	last := sess.Conversation[len(sess.Conversation)-1]
	if last.Role != models.RoleCandidate || last.Evaluation == nil {
		t.Fatalf("candidate turn not recorded: %+v", last)
	}
}

func TestSubmitAnswerUsesParsedEvaluation(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"```json\n{\"clarity\":80,\"completeness\":70,\"technical_accuracy\":90,\"communication_skill\":75,\"depth\":60,\"confidence\":\"high\",\"needs_follow_up\":false}\n```",
	}}
	svc := newTestService(llm)
	startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	ev := svc.SubmitAnswer(context.Background(), "A detailed answer.")
	if ev.Confidence != models.ConfidenceHigh {
		t.Fatalf("confidence = %q, want high from the parsed evaluation", ev.Confidence)
	}
	// 0.35*90 + 0.25*70 + 0.15*80 + 0.15*60 + 0.10*75 = 77.5 -> 78
	if ev.OverallScore != 78 {
		t.Fatalf("overall = %d, want 78", ev.OverallScore)
	}
}

func TestFollowUpsAreBoundedAndResetOnAdvance(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	sess := startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	needy := &models.AnswerEvaluation{NeedsFollowUp: true, FollowUpReason: "too thin"}

	// First two requests yield follow-ups.
	for i := 1; i <= 2; i++ {
		nq := svc.GetNextQuestion(context.Background(), "short answer", needy)
		if nq == nil || !nq.IsFollowUp {
			t.Fatalf("request %d: expected a follow-up, got %+v", i, nq)
		}
		if nq.Question.ParentQuestionID == "" {
			t.Fatal("follow-up must link to its parent")
		}
		if sess.FollowUpCount != i {
			t.Fatalf("follow-up count = %d, want %d", sess.FollowUpCount, i)
		}
	}

	// Third request exceeds the bound and advances instead.
	nq := svc.GetNextQuestion(context.Background(), "short answer", needy)
	if nq == nil || nq.IsFollowUp {
		t.Fatalf("expected advance past follow-up bound, got %+v", nq)
	}
	if sess.FollowUpCount != 0 {
		t.Fatalf("follow-up count = %d after advance, want 0", sess.FollowUpCount)
	}
	if sess.CurrentQuestionIndex != 1 {
		t.Fatalf("index = %d, want 1", sess.CurrentQuestionIndex)
	}
}

func TestNoFollowUpWithoutAnswerText(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	needy := &models.AnswerEvaluation{NeedsFollowUp: true}
	nq := svc.GetNextQuestion(context.Background(), "", needy)
	if nq == nil || nq.IsFollowUp {
		t.Fatalf("empty answer must advance, got %+v", nq)
	}
}

func TestSequenceCompletesAfterExactAdvances(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	sess := startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	total := len(sess.Questions)
	for i := 1; i < total; i++ {
		nq := svc.GetNextQuestion(context.Background(), "an answer", nil)
		if nq == nil {
			t.Fatalf("advance %d returned nil before the sequence ended", i)
		}
		if nq.Question.Question != sess.Questions[i].Question {
			t.Fatalf("advance %d returned wrong question", i)
		}
	}

	if nq := svc.GetNextQuestion(context.Background(), "an answer", nil); nq != nil {
		t.Fatalf("expected nil past the last question, got %+v", nq)
	}
	if sess.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", sess.Status)
	}

	// Completed sessions stay completed and keep returning nil.
	if nq := svc.GetNextQuestion(context.Background(), "an answer", nil); nq != nil {
		t.Fatal("completed session must not produce more questions")
	}
}

func TestGenerateFinalFeedbackNilWithoutEvaluations(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	if fb := svc.GenerateFinalFeedback(context.Background()); fb != nil {
		t.Fatalf("expected nil feedback with no answers, got %+v", fb)
	}
}

func TestGenerateFinalFeedbackFallsBackDeterministically(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	svc.SubmitAnswer(context.Background(), "We added an index and a redis cache to fix the latency for good.")
	svc.EndSession()

	fb := svc.GenerateFinalFeedback(context.Background())
	if fb == nil {
		t.Fatal("expected fallback feedback")
	}
	fb2 := svc.GenerateFinalFeedback(context.Background())
	if fb.OverallScore != fb2.OverallScore || fb.Recommendation != fb2.Recommendation {
		t.Fatal("fallback final feedback must be deterministic")
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	svc := newTestService(&fakeLLM{err: errors.New("offline")})
	sess := startTestSession(t, svc, "backend-developer", models.LevelIntermediate)

	svc.EndSession()
	svc.EndSession()
	if sess.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", sess.Status)
	}
	if svc.CurrentQuestion() != nil {
		t.Fatal("completed session has no current question")
	}
}
