package interview

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/providers/tts"
	"github.com/pathprep/pathprep/internal/utils"
	"github.com/pathprep/pathprep/internal/voice"
)

// VoiceEngine is the slice of the voice engine the runner drives. Satisfied
// by *voice.Engine.
type VoiceEngine interface {
	Initialize() bool
	On(fn func(voice.Event)) func()
	StartContinuousMode(ctx context.Context) error
	StopContinuousMode()
	StopListening() string
	SetProcessing(on bool)
	SpeakNaturally(ctx context.Context, text string, opts tts.Options)
	Cleanup()
}

// Hooks let the transport layer observe the interview as it unfolds. All
// fields are optional.
type Hooks struct {
	// OnEvent forwards every raw engine event (transcriptions, state
	// changes, errors).
	OnEvent func(voice.Event)
	// OnTurn fires when a turn is appended to the conversation.
	OnTurn func(models.ConversationTurn)
	// OnEvaluation fires after each answer is scored.
	OnEvaluation func(*models.AnswerEvaluation)
	// OnQuestion fires when the interviewer moves to the next question.
	OnQuestion func(models.InterviewQuestion, bool)
	// OnComplete fires once, when the sequence is exhausted or the runner
	// is stopped. Feedback may be nil if nothing was answered.
	OnComplete func(*models.FinalFeedback)
}

// Runner wires one voice engine to one interview session: it listens for
// end-of-turn silence, submits the transcript for evaluation, and speaks
// whatever the protocol machine says comes next.
type Runner struct {
	engine VoiceEngine
	svc    *Service
	hooks  Hooks
	log    *logrus.Entry

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	busy        bool
	done        bool
}

func NewRunner(engine VoiceEngine, svc *Service, hooks Hooks, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		engine: engine,
		svc:    svc,
		hooks:  hooks,
		log:    log.WithField("component", "runner"),
	}
}

// Start begins the interview: speaks the opening question, then enters
// continuous listening. The session must already be started on the service.
func (r *Runner) Start(ctx context.Context) error {
	const op = "Runner.Start"

	sess := r.svc.Session()
	if sess == nil {
		return utils.E(utils.CodeConflict, op, "no session started", nil)
	}
	if !r.engine.Initialize() {
		return utils.E(utils.CodeUnavailable, op, "voice engine could not initialize", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.ctx = ctx
	r.cancel = cancel
	r.unsubscribe = r.engine.On(r.handleEvent)
	r.mu.Unlock()

	if q := r.svc.CurrentQuestion(); q != nil {
		r.emitTurn(models.ConversationTurn{
			Role:       models.RoleInterviewer,
			Content:    q.Question,
			QuestionID: q.ID,
		})
		r.engine.SpeakNaturally(ctx, q.Question, tts.Options{})
	}
	return r.engine.StartContinuousMode(ctx)
}

// Stop ends the interview early. The final feedback hook still fires so the
// caller gets whatever was assessable.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	unsub := r.unsubscribe
	cancel := r.cancel
	ctx := r.ctx
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	r.engine.StopContinuousMode()
	r.svc.EndSession()
	r.engine.Cleanup()
	if cancel != nil {
		defer cancel()
	}

	if r.hooks.OnComplete != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		r.hooks.OnComplete(r.svc.GenerateFinalFeedback(ctx))
	}
}

func (r *Runner) handleEvent(ev voice.Event) {
	if r.hooks.OnEvent != nil {
		r.hooks.OnEvent(ev)
	}
	if ev.Type != voice.EventSilenceDetected {
		return
	}

	r.mu.Lock()
	if r.busy || r.done {
		r.mu.Unlock()
		return
	}
	r.busy = true
	ctx := r.ctx
	r.mu.Unlock()

	// The engine's silence timer fires on its own goroutine; the turn is
	// processed off it so event delivery never blocks on the evaluator.
	go r.processTurn(ctx, ev.Transcript)
}

func (r *Runner) processTurn(ctx context.Context, transcript string) {
	defer func() {
		r.mu.Lock()
		r.busy = false
		r.mu.Unlock()
	}()

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return
	}

	r.engine.SetProcessing(true)
	// StopListening drains the engine's accumulated turn, including any
	// residue the recognizer finalized after the silence event fired.
	if full := strings.TrimSpace(r.engine.StopListening()); full != "" {
		transcript = full
	}

	q := r.svc.CurrentQuestion()
	ev := r.svc.SubmitAnswer(ctx, transcript)

	turn := models.ConversationTurn{
		Role:       models.RoleCandidate,
		Content:    transcript,
		Evaluation: ev,
	}
	if q != nil {
		turn.QuestionID = q.ID
	}
	r.emitTurn(turn)
	if r.hooks.OnEvaluation != nil {
		r.hooks.OnEvaluation(ev)
	}

	next := r.svc.GetNextQuestion(ctx, transcript, ev)
	r.engine.SetProcessing(false)

	if next == nil {
		r.finish(ctx)
		return
	}

	r.emitTurn(models.ConversationTurn{
		Role:       models.RoleInterviewer,
		Content:    next.Question.Question,
		QuestionID: next.Question.ID,
	})
	if r.hooks.OnQuestion != nil {
		r.hooks.OnQuestion(next.Question, next.IsFollowUp)
	}
	r.engine.SpeakNaturally(ctx, next.Question.Question, tts.Options{})
}

func (r *Runner) finish(ctx context.Context) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	unsub := r.unsubscribe
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	r.engine.StopContinuousMode()
	r.engine.Cleanup()

	if r.hooks.OnComplete != nil {
		r.hooks.OnComplete(r.svc.GenerateFinalFeedback(ctx))
	}
	r.log.WithField("session_id", r.svc.Session().ID).Info("interview completed")
}

func (r *Runner) emitTurn(t models.ConversationTurn) {
	if r.hooks.OnTurn != nil {
		r.hooks.OnTurn(t)
	}
}
