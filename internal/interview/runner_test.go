package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/providers/tts"
	"github.com/pathprep/pathprep/internal/voice"
)

type fakeEngine struct {
	mu       sync.Mutex
	handler  func(voice.Event)
	spoken   []string
	stopped  bool
	cleaned  bool
	drainVal string
}

func (f *fakeEngine) Initialize() bool { return true }

func (f *fakeEngine) On(fn func(voice.Event)) func() {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
	return func() {}
}

func (f *fakeEngine) StartContinuousMode(ctx context.Context) error { return nil }

func (f *fakeEngine) StopContinuousMode() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeEngine) StopListening() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.drainVal
	f.drainVal = ""
	return v
}

func (f *fakeEngine) SetProcessing(on bool) {}

func (f *fakeEngine) SpeakNaturally(ctx context.Context, text string, opts tts.Options) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
}

func (f *fakeEngine) Cleanup() {
	f.mu.Lock()
	f.cleaned = true
	f.mu.Unlock()
}

func (f *fakeEngine) emit(ev voice.Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (f *fakeEngine) spokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

func (f *fakeEngine) spokenAt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.spoken) {
		return ""
	}
	return f.spoken[i]
}

// Long enough and technical enough that the heuristic evaluator does not
// request a follow-up.
const solidAnswer = "We used an index and a cache to reduce latency, and for example in a " +
	"previous project this approach cut query times in half across the whole database tier."

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition never met")
	}
}

func newRunnerFixture(t *testing.T, hooks Hooks) (*Runner, *fakeEngine, *Service) {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	svc := NewService(&fakeLLM{err: errors.New("offline")}, nil, l, Config{QuestionCount: 2})
	if _, err := svc.StartSession(context.Background(), "backend-developer", models.LevelIntermediate, ""); err != nil {
		t.Fatalf("start session: %v", err)
	}

	eng := &fakeEngine{}
	return NewRunner(eng, svc, hooks, l), eng, svc
}

func TestRunnerSpeaksOpeningQuestion(t *testing.T) {
	r, eng, svc := newRunnerFixture(t, Hooks{})
	defer r.Stop()

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if eng.spokenCount() != 1 {
		t.Fatalf("spoke %d times, want the opening question", eng.spokenCount())
	}
	if eng.spokenAt(0) != svc.Session().Questions[0].Question {
		t.Fatalf("spoke %q, want the first question", eng.spokenAt(0))
	}
}

func TestRunnerProcessesTurnOnSilence(t *testing.T) {
	var mu sync.Mutex
	var evals []*models.AnswerEvaluation
	var questions []models.InterviewQuestion

	r, eng, svc := newRunnerFixture(t, Hooks{
		OnEvaluation: func(ev *models.AnswerEvaluation) {
			mu.Lock()
			evals = append(evals, ev)
			mu.Unlock()
		},
		OnQuestion: func(q models.InterviewQuestion, follow bool) {
			mu.Lock()
			questions = append(questions, q)
			mu.Unlock()
		},
	})
	defer r.Stop()

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	eng.emit(voice.Event{Type: voice.EventSilenceDetected, Transcript: solidAnswer})

	waitUntil(t, time.Second, func() bool { return eng.spokenCount() == 2 })

	mu.Lock()
	defer mu.Unlock()
	if len(evals) != 1 {
		t.Fatalf("got %d evaluations, want 1", len(evals))
	}
	if len(questions) != 1 {
		t.Fatalf("got %d question callbacks, want 1", len(questions))
	}
	if eng.spokenAt(1) != questions[0].Question {
		t.Fatal("spoken text does not match the announced question")
	}

	sess := svc.Session()
	// turn 0: opening question, turn 1: answer, turn 2: next question
	if len(sess.Conversation) != 3 {
		t.Fatalf("conversation has %d turns, want 3", len(sess.Conversation))
	}
	if sess.Conversation[1].Role != models.RoleCandidate || sess.Conversation[1].Evaluation == nil {
		t.Fatal("candidate turn missing its evaluation")
	}
}

func TestRunnerCompletesAtSequenceEnd(t *testing.T) {
	var mu sync.Mutex
	var completed int
	var feedback *models.FinalFeedback

	r, eng, _ := newRunnerFixture(t, Hooks{
		OnComplete: func(fb *models.FinalFeedback) {
			mu.Lock()
			completed++
			feedback = fb
			mu.Unlock()
		},
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two questions: answer both turns.
	eng.emit(voice.Event{Type: voice.EventSilenceDetected, Transcript: solidAnswer})
	waitUntil(t, time.Second, func() bool { return eng.spokenCount() == 2 })

	eng.emit(voice.Event{Type: voice.EventSilenceDetected, Transcript: solidAnswer})
	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return completed == 1
	})

	mu.Lock()
	if feedback == nil {
		mu.Unlock()
		t.Fatal("expected final feedback from the heuristic path")
	}
	mu.Unlock()

	eng.mu.Lock()
	stopped, cleaned := eng.stopped, eng.cleaned
	eng.mu.Unlock()
	if !stopped || !cleaned {
		t.Fatalf("engine not torn down: stopped=%v cleaned=%v", stopped, cleaned)
	}

	// Stop after completion must not fire OnComplete again.
	r.Stop()
	mu.Lock()
	if completed != 1 {
		mu.Unlock()
		t.Fatalf("OnComplete fired %d times, want 1", completed)
	}
	mu.Unlock()
}
