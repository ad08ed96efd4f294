package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/providers/stt"
	"github.com/pathprep/pathprep/internal/providers/tts"
)

// CaptureDevice is the caller's microphone. Open is called at most once per
// engine lifetime; the returned channel delivers PCM16LE mono chunks until
// the device goes away.
type CaptureDevice interface {
	Open(ctx context.Context) (<-chan []byte, error)
}

// Player delivers synthesized audio to the listener and returns once
// playback has actually finished on their end.
type Player interface {
	Play(ctx context.Context, audio tts.Audio) error
}

// Config tunes the turn-taking behavior. Zero values take documented
// defaults.
type Config struct {
	Language       string
	InterimResults bool
	SampleRateHz   int32

	// SilenceThreshold is how long recognition must stay quiet, with
	// accumulated speech present, before the turn is considered over.
	SilenceThreshold time.Duration
	// SettleDelay keeps capture muted briefly after speech output ends so the
	// engine does not hear the tail of its own voice.
	SettleDelay time.Duration
	// SentencePause is the gap between sentence chunks in SpeakNaturally.
	SentencePause time.Duration
	// RestartDelay is the pause before re-arming capture after a recognition
	// session ends normally.
	RestartDelay time.Duration

	// Retry bounds network-error restarts.
	Retry Policy
	// Guard bounds restart frequency regardless of cause.
	Guard GuardPolicy
}

func (c Config) withDefaults() Config {
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.SampleRateHz == 0 {
		c.SampleRateHz = 16000
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = 2200 * time.Millisecond
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 300 * time.Millisecond
	}
	if c.SentencePause == 0 {
		c.SentencePause = 200 * time.Millisecond
	}
	if c.RestartDelay == 0 {
		c.RestartDelay = 250 * time.Millisecond
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
	}
	if c.Guard.Max == 0 {
		c.Guard = GuardPolicy{Max: 5, Window: 2 * time.Second}
	}
	return c
}

// Engine presents one conversational audio channel: continuous listening
// with silence-based end-of-turn detection, and speech output, with the two
// never running concurrently. Construct with NewEngine, call Initialize,
// then drive it; Cleanup releases everything. One engine, one conversation.
type Engine struct {
	cfg    Config
	rec    stt.Recognizer
	synth  tts.Synthesizer
	player Player
	device CaptureDevice
	log    *logrus.Entry

	bus   *bus
	retry *Retry
	guard *RestartGuard

	mu           sync.Mutex
	mode         Mode
	audioLevel   int
	lastErr      string
	initialized  bool
	textOnly     bool // no synthesizer: events still fire, nothing is played
	continuous   bool
	autoRestart  bool
	paused       bool
	stopping     bool
	closed       bool
	runCtx       context.Context
	capture      <-chan []byte
	sess         stt.Session
	finals       []string
	interim      string
	silenceTimer *time.Timer
	silenceFired bool
	restartTimer *time.Timer

	speakMu     sync.Mutex // serializes utterances
	cancelMu    sync.Mutex
	speakCancel context.CancelFunc
}

func NewEngine(cfg Config, rec stt.Recognizer, synth tts.Synthesizer, player Player, device CaptureDevice, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	entry := log.WithField("component", "voice-engine")
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		rec:    rec,
		synth:  synth,
		player: player,
		device: device,
		log:    entry,
		bus:    newBus(entry),
		retry:  &Retry{Policy: cfg.Retry},
		guard:  NewRestartGuard(cfg.Guard),
		mode:   ModeIdle,
	}
}

// Initialize probes capabilities. It returns false when recognition is
// unsupported; a missing synthesizer only degrades to text-only output.
func (e *Engine) Initialize() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec == nil || e.device == nil {
		return false
	}
	e.textOnly = e.synth == nil
	if e.textOnly {
		e.log.Warn("no synthesizer available, running text-only")
	}
	e.initialized = true
	return true
}

// On subscribes to engine events; the returned function unsubscribes.
func (e *Engine) On(fn func(Event)) func() { return e.bus.subscribe(fn) }

// State returns a snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{Mode: e.mode, AudioLevel: e.audioLevel, Error: e.lastErr}
}

// StartContinuousMode keeps re-arming capture after every recognition
// session ends, simulating an always-listening assistant.
func (e *Engine) StartContinuousMode(ctx context.Context) error {
	e.mu.Lock()
	if !e.initialized || e.closed {
		e.mu.Unlock()
		return fmt.Errorf("voice: engine not initialized")
	}
	e.continuous = true
	e.autoRestart = true
	e.runCtx = ctx
	e.mu.Unlock()

	e.retry.Reset()
	e.guard.Reset()

	if err := e.openCapture(ctx); err != nil {
		return err
	}
	return e.startSession(ctx)
}

// StopContinuousMode exits continuous mode and tears down any active
// recognition session. Safe to call at any point, repeatedly.
func (e *Engine) StopContinuousMode() {
	e.mu.Lock()
	e.continuous = false
	e.autoRestart = false
	e.stopping = e.sess != nil
	sess := e.sess
	if e.restartTimer != nil {
		e.restartTimer.Stop()
	}
	if e.silenceTimer != nil {
		e.silenceTimer.Stop()
	}
	changed := e.mode == ModeListening || e.mode == ModeProcessing
	if changed {
		e.mode = ModeIdle
	}
	e.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
	if changed {
		e.publishState()
	}
}

// StartListening opens a single-shot capture session (no auto re-arm).
func (e *Engine) StartListening(ctx context.Context) error {
	e.mu.Lock()
	if !e.initialized || e.closed {
		e.mu.Unlock()
		return fmt.Errorf("voice: engine not initialized")
	}
	e.runCtx = ctx
	e.paused = false
	e.mu.Unlock()

	if err := e.openCapture(ctx); err != nil {
		return err
	}
	return e.startSession(ctx)
}

// StopListening returns the accumulated transcript and clears recognition
// state.
func (e *Engine) StopListening() string {
	e.mu.Lock()
	t := e.transcriptLocked()
	e.finals = nil
	e.interim = ""
	e.stopping = e.sess != nil
	sess := e.sess
	if e.silenceTimer != nil {
		e.silenceTimer.Stop()
	}
	changed := e.mode == ModeListening
	if changed {
		e.mode = ModeIdle
	}
	e.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
	if changed {
		e.publishState()
	}
	return t
}

// PauseListening suspends capture without leaving continuous mode.
func (e *Engine) PauseListening() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// ResumeListening is a no-op unless continuous mode is still active.
func (e *Engine) ResumeListening() {
	e.mu.Lock()
	if !e.continuous {
		e.mu.Unlock()
		return
	}
	e.paused = false
	needSession := e.sess == nil && e.autoRestart && e.mode != ModeSpeaking
	ctx := e.runCtx
	e.mu.Unlock()

	if needSession && ctx != nil {
		_ = e.startSession(ctx)
	}
}

// SetProcessing flips the processing gate used by callers to block
// resubmission while an answer evaluation is in flight.
func (e *Engine) SetProcessing(on bool) {
	e.mu.Lock()
	changed := false
	if on && e.mode != ModeSpeaking {
		changed = e.mode != ModeProcessing
		e.mode = ModeProcessing
	} else if !on && e.mode == ModeProcessing {
		if e.sess != nil && !e.paused {
			e.mode = ModeListening
		} else {
			e.mode = ModeIdle
		}
		changed = true
	}
	e.mu.Unlock()
	if changed {
		e.publishState()
	}
}

// Speak voices text as a single utterance. It cancels any in-flight
// utterance, mutes capture for the duration, and always completes —
// synthesis or playback failures are logged and swallowed so the
// conversation never stalls on audio output.
func (e *Engine) Speak(ctx context.Context, text string, opts tts.Options) {
	e.speak(ctx, []string{text}, opts)
}

// SpeakNaturally splits text into sentences and voices them with a short
// pause in between, emulating natural cadence. Same completion guarantee as
// Speak.
func (e *Engine) SpeakNaturally(ctx context.Context, text string, opts tts.Options) {
	e.speak(ctx, SplitSentences(text), opts)
}

func (e *Engine) speak(ctx context.Context, chunks []string, opts tts.Options) {
	if len(chunks) == 0 {
		return
	}

	// Supersede whatever is being said right now.
	e.cancelMu.Lock()
	if e.speakCancel != nil {
		e.speakCancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	e.speakCancel = cancel
	e.cancelMu.Unlock()
	defer cancel()

	e.speakMu.Lock()
	defer e.speakMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.mode = ModeSpeaking
	e.mu.Unlock()
	e.publishState()
	e.bus.publish(Event{Type: EventSpeechStart})

	for i, chunk := range chunks {
		if sctx.Err() != nil {
			break
		}
		e.voiceChunk(sctx, chunk, opts)
		if i < len(chunks)-1 {
			sleepCtx(sctx, e.cfg.SentencePause)
		}
	}

	e.bus.publish(Event{Type: EventSpeechEnd})

	e.mu.Lock()
	if e.mode == ModeSpeaking {
		if e.sess != nil {
			e.mode = ModeListening
		} else {
			e.mode = ModeIdle
		}
	}
	e.mu.Unlock()
	e.publishState()

	// Let the room settle before hearing again.
	sleepCtx(context.Background(), e.cfg.SettleDelay)

	// Speaking mutes capture for the utterance only. ResumeListening clears
	// the mute in continuous mode; outside it the mute is cleared here.
	e.mu.Lock()
	if !e.continuous {
		e.paused = false
	}
	e.mu.Unlock()
	e.ResumeListening()
}

func (e *Engine) voiceChunk(ctx context.Context, text string, opts tts.Options) {
	e.mu.Lock()
	synth := e.synth
	player := e.player
	e.mu.Unlock()

	if synth == nil {
		return // text-only mode: events fired, nothing to play
	}
	audio, err := synth.Synthesize(ctx, text, opts)
	if err != nil {
		e.log.WithError(err).Warn("synthesis failed, skipping chunk")
		return
	}
	if player == nil {
		sleepCtx(ctx, audio.Duration)
		return
	}
	if err := player.Play(ctx, audio); err != nil {
		e.log.WithError(err).Warn("playback failed")
	}
}

// Cleanup tears the engine down. The engine is unusable afterwards.
func (e *Engine) Cleanup() {
	e.cancelMu.Lock()
	if e.speakCancel != nil {
		e.speakCancel()
	}
	e.cancelMu.Unlock()

	e.mu.Lock()
	e.closed = true
	e.continuous = false
	e.autoRestart = false
	sess := e.sess
	e.sess = nil
	if e.silenceTimer != nil {
		e.silenceTimer.Stop()
	}
	if e.restartTimer != nil {
		e.restartTimer.Stop()
	}
	e.mode = ModeIdle
	e.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
}

// --- capture plumbing ---

func (e *Engine) openCapture(ctx context.Context) error {
	e.mu.Lock()
	if e.capture != nil {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	ch, err := e.device.Open(ctx)
	if err != nil {
		err = stt.E(stt.KindPermissionDenied, "microphone access denied", err)
		e.fail(err, true)
		return err
	}

	e.mu.Lock()
	e.capture = ch
	e.mu.Unlock()

	go e.captureLoop(ch)
	return nil
}

func (e *Engine) captureLoop(ch <-chan []byte) {
	for pcm := range ch {
		lvl := levelOf(pcm)

		e.mu.Lock()
		e.audioLevel = lvl
		sess := e.sess
		feed := sess != nil && !e.paused && e.mode == ModeListening
		e.mu.Unlock()

		if feed {
			if err := sess.Write(pcm); err != nil {
				e.log.WithError(err).Debug("dropping audio chunk")
			}
		}
	}

	e.mu.Lock()
	closed := e.closed
	e.audioLevel = 0
	e.mu.Unlock()
	if !closed {
		e.fail(stt.E(stt.KindAudioCapture, "audio capture ended", nil), true)
	}
}

// --- recognition sessions ---

func (e *Engine) startSession(ctx context.Context) error {
	e.mu.Lock()
	if e.closed || e.sess != nil || e.mode == ModeSpeaking {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	sess, err := e.rec.Start(ctx, stt.Config{
		Language:       e.cfg.Language,
		InterimResults: e.cfg.InterimResults,
		SampleRateHz:   e.cfg.SampleRateHz,
	})
	if err != nil {
		e.recoverOrFail(err)
		return err
	}

	e.mu.Lock()
	e.sess = sess
	e.silenceFired = false
	changed := e.mode == ModeIdle
	if changed {
		e.mode = ModeListening
	}
	e.mu.Unlock()
	if changed {
		e.publishState()
	}

	go e.resultLoop(sess)
	return nil
}

func (e *Engine) resultLoop(sess stt.Session) {
	for r := range sess.Results() {
		e.handleResult(sess, r)
	}
	e.handleSessionEnd(sess, sess.Err())
}

func (e *Engine) handleResult(sess stt.Session, r stt.Result) {
	e.mu.Lock()
	if e.sess != sess || e.closed {
		e.mu.Unlock()
		return
	}
	if r.IsFinal {
		e.finals = append(e.finals, strings.TrimSpace(r.Transcript))
		e.interim = ""
	} else {
		e.interim = r.Transcript
	}
	// Any recognition activity re-arms the silence timer.
	e.silenceFired = false
	if e.silenceTimer != nil {
		e.silenceTimer.Stop()
	}
	e.silenceTimer = time.AfterFunc(e.cfg.SilenceThreshold, e.fireSilence)
	e.retry.Reset()
	e.mu.Unlock()

	res := r
	typ := EventTranscription
	if r.IsFinal {
		typ = EventFinalTranscription
	}
	e.bus.publish(Event{Type: typ, Result: &res})
}

func (e *Engine) fireSilence() {
	e.mu.Lock()
	if e.silenceFired || e.closed {
		e.mu.Unlock()
		return
	}
	t := e.transcriptLocked()
	if t == "" {
		e.mu.Unlock()
		return
	}
	e.silenceFired = true
	e.mu.Unlock()

	e.bus.publish(Event{Type: EventSilenceDetected, Transcript: t})
}

func (e *Engine) transcriptLocked() string {
	parts := make([]string, 0, len(e.finals)+1)
	parts = append(parts, e.finals...)
	if s := strings.TrimSpace(e.interim); s != "" {
		parts = append(parts, s)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (e *Engine) handleSessionEnd(sess stt.Session, err error) {
	e.mu.Lock()
	if e.sess != sess {
		e.mu.Unlock()
		return
	}
	e.sess = nil
	wasStopping := e.stopping
	e.stopping = false
	closed := e.closed
	changed := e.mode == ModeListening
	if changed {
		e.mode = ModeIdle
	}
	e.mu.Unlock()

	if changed {
		e.publishState()
	}
	if closed || wasStopping {
		return
	}

	kind := stt.KindNoSpeech
	if err != nil {
		kind = stt.KindOf(err)
	}

	switch {
	case kind == stt.KindAborted:
		return
	case kind == stt.KindNoSpeech || kind == stt.KindUnknown:
		// Not a failure: silently re-arm (bounded by the restart guard).
		e.scheduleRestart(e.cfg.RestartDelay)
	case kind.Retryable():
		delay, ok := e.retry.Next()
		if !ok {
			e.disableAndFail(stt.E(stt.KindNetwork,
				"network unavailable: recognition retries exhausted, check your connection", err))
			return
		}
		e.log.WithError(err).WithField("retry_in", delay.String()).
			Warn("transient recognition error, retrying")
		e.scheduleRestart(delay)
	default:
		// permission-denied, audio-capture, service-unavailable
		e.disableAndFail(err)
	}
}

func (e *Engine) scheduleRestart(delay time.Duration) {
	e.mu.Lock()
	if e.closed || !e.continuous || !e.autoRestart {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if !e.guard.Allow(time.Now()) {
		e.disableAndFail(stt.E(stt.KindAudioCapture,
			"recognition restarting too rapidly, giving up", nil))
		return
	}

	e.mu.Lock()
	if e.restartTimer != nil {
		e.restartTimer.Stop()
	}
	e.restartTimer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		ok := !e.closed && e.continuous && e.autoRestart && e.mode != ModeSpeaking
		ctx := e.runCtx
		e.mu.Unlock()
		if ok && ctx != nil {
			_ = e.startSession(ctx)
		}
	})
	e.mu.Unlock()
}

// recoverOrFail routes a session-open failure through the same policy as a
// mid-session failure.
func (e *Engine) recoverOrFail(err error) {
	kind := stt.KindOf(err)
	if kind.Retryable() {
		if delay, ok := e.retry.Next(); ok {
			e.log.WithError(err).Warn("recognition start failed, retrying")
			e.scheduleRestart(delay)
			return
		}
		e.disableAndFail(stt.E(stt.KindNetwork,
			"network unavailable: recognition retries exhausted, check your connection", err))
		return
	}
	e.disableAndFail(err)
}

// disableAndFail turns off auto-restart and surfaces a terminal error.
func (e *Engine) disableAndFail(err error) {
	e.mu.Lock()
	e.autoRestart = false
	e.mu.Unlock()
	e.fail(err, true)
}

func (e *Engine) fail(err error, terminal bool) {
	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()
	e.log.WithError(err).Error("voice engine error")
	e.bus.publish(Event{Type: EventError, Err: err, Terminal: terminal})
}

func (e *Engine) publishState() {
	e.bus.publish(Event{Type: EventStateChange, State: e.State()})
}

// --- helpers ---

// levelOf maps PCM16LE RMS energy onto a 0-100 meter.
func levelOf(pcm []byte) int {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(n))
	lvl := int(rms / 327.68)
	if lvl > 100 {
		lvl = 100
	}
	return lvl
}

// SplitSentences breaks text on sentence punctuation, retaining it.
func SplitSentences(text string) []string {
	txt := strings.TrimSpace(text)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			if c := strings.TrimSpace(b.String()); c != "" {
				chunks = append(chunks, c)
			}
			b.Reset()
		case '\n', '\r':
			if c := strings.TrimSpace(b.String()); c != "" {
				chunks = append(chunks, c)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if c := strings.TrimSpace(b.String()); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
