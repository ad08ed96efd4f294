package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/interview"
	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/providers/stt"
	"github.com/pathprep/pathprep/internal/providers/tts"
	"github.com/pathprep/pathprep/internal/services"
	"github.com/pathprep/pathprep/internal/storage"
	"github.com/pathprep/pathprep/internal/utils"
	"github.com/pathprep/pathprep/internal/voice"
)

// WSHandler attaches the voice channel to a started session. The socket
// carries candidate audio up and engine events plus synthesized speech down.
type WSHandler struct {
	sessions services.SessionService
	convos   services.ConversationService
	live     *LiveSessions
	redis    *redis.Client

	rec        stt.Recognizer
	synth      tts.Synthesizer
	recordings storage.RecordingStore // optional answer archive
	engineCfg  voice.Config
	logger     *logrus.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(
	sessions services.SessionService,
	convos services.ConversationService,
	live *LiveSessions,
	rdb *redis.Client,
	rec stt.Recognizer,
	synth tts.Synthesizer,
	recordings storage.RecordingStore,
	engineCfg voice.Config,
	logger *logrus.Logger,
) *WSHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &WSHandler{
		sessions:   sessions,
		convos:     convos,
		live:       live,
		redis:      rdb,
		rec:        rec,
		synth:      synth,
		recordings: recordings,
		engineCfg:  engineCfg,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type        string `json:"type"`
	AudioBase64 string `json:"audio_base64,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// wsCaptureDevice feeds PCM decoded from audio_chunk messages to the
// engine.
type wsCaptureDevice struct {
	ch chan []byte
}

func (d *wsCaptureDevice) Open(ctx context.Context) (<-chan []byte, error) {
	return d.ch, nil
}

// answerRecorder buffers the candidate's raw PCM for the turn in progress
// so it can be archived once the turn completes.
type answerRecorder struct {
	mu  sync.Mutex
	buf []byte
}

func (r *answerRecorder) append(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, pcm...)
}

func (r *answerRecorder) drain() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.buf
	r.buf = nil
	return out
}

// wsPlayer ships synthesized audio to the client and blocks until the
// client acknowledges playback, so the engine's speaking state tracks what
// the listener actually hears.
type wsPlayer struct {
	wc   *wsConn
	acks chan struct{}
}

func (p *wsPlayer) Play(ctx context.Context, audio tts.Audio) error {
	msg := map[string]any{
		"type":         "speak",
		"audio_base64": base64.StdEncoding.EncodeToString(audio.Data),
		"mime":         audio.MIME,
		"duration_ms":  audio.Duration.Milliseconds(),
	}
	if err := p.wc.writeJSON(msg); err != nil {
		return err
	}

	// Grace period on top of the audio length in case the ack is lost.
	timeout := audio.Duration + 10*time.Second
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-p.acks:
		return nil
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	rec, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.SessionWS", "forbidden", nil))
		return
	}

	machine, ok := h.live.Get(sessionID)
	if !ok {
		writeError(c, utils.E(utils.CodeNotFound, "WSHandler.SessionWS", "session is not live on this node", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := h.logger.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID})

	device := &wsCaptureDevice{ch: make(chan []byte, 32)}
	player := &wsPlayer{wc: wc, acks: make(chan struct{}, 1)}
	recorder := &answerRecorder{}
	engine := voice.NewEngine(h.engineCfg, h.rec, h.synth, player, device, h.logger)

	sampleRate := int(h.engineCfg.SampleRateHz)
	if sampleRate == 0 {
		sampleRate = 16000
	}
	turnIndex := 0

	var completed bool
	var completedMu sync.Mutex

	runner := interview.NewRunner(engine, machine, interview.Hooks{
		OnEvent: func(ev voice.Event) { h.forwardEvent(wc, ev) },
		OnTurn: func(turn models.ConversationTurn) {
			if _, err := h.convos.Append(ctx, userID, sessionID, turn, nil); err != nil {
				log.WithError(err).Warn("failed to persist turn")
			}
			if live := machine.Session(); live != nil {
				if err := h.sessions.SaveProgress(ctx, live); err != nil {
					log.WithError(err).Warn("failed to save session progress")
				}
			}
			turnIndex++
			if turn.Role == models.RoleCandidate && h.recordings != nil {
				if pcm := recorder.drain(); len(pcm) > 0 {
					idx := turnIndex
					go func() {
						if _, err := h.recordings.SaveAnswer(ctx, sessionID, idx, sampleRate, pcm); err != nil {
							log.WithError(err).Warn("failed to archive answer recording")
						}
					}()
				}
			}
		},
		OnEvaluation: func(ev *models.AnswerEvaluation) {
			_ = wc.writeJSON(map[string]any{"type": "evaluation", "evaluation": ev})
		},
		OnQuestion: func(q models.InterviewQuestion, followUp bool) {
			_ = wc.writeJSON(map[string]any{"type": "question", "question": q, "is_follow_up": followUp})
		},
		OnComplete: func(fb *models.FinalFeedback) {
			completedMu.Lock()
			if completed {
				completedMu.Unlock()
				return
			}
			completed = true
			completedMu.Unlock()

			h.live.Remove(sessionID)
			if _, err := h.sessions.End(ctx, sessionID); err != nil {
				log.WithError(err).Warn("failed to end session")
			}
			_ = wc.writeJSON(map[string]any{"type": "completed", "session_id": sessionID})
			cancel()
		},
	}, h.logger)

	// Forward worker notifications (feedback_ready) for this session.
	statusCh := "session:" + sessionID + ":status"
	pubsub := h.redis.Subscribe(ctx, statusCh)
	defer pubsub.Close()
	go func() {
		for {
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			_ = wc.writeText([]byte(m.Payload))
		}
	}()

	// Reader must be running before the runner speaks the first question,
	// since speaking blocks on the playback ack.
	readDone := make(chan struct{})
	go h.readLoop(ctx, conn, wc, device, player, recorder, engine, runner, readDone)

	if err := h.sessions.SetStatus(ctx, sessionID, models.StatusActive); err != nil {
		log.WithError(err).Warn("failed to mark session active")
	}
	if err := runner.Start(ctx); err != nil {
		_ = wc.writeJSON(map[string]any{"type": "error", "message": "failed to start interview"})
		log.WithError(err).Error("runner start failed")
		return
	}
	log.Info("voice channel attached")

	select {
	case <-readDone:
	case <-ctx.Done():
	}
	runner.Stop()
}

func (h *WSHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	wc *wsConn,
	device *wsCaptureDevice,
	player *wsPlayer,
	recorder *answerRecorder,
	engine *voice.Engine,
	runner *interview.Runner,
	done chan<- struct{},
) {
	defer close(done)
	defer close(device.ch)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
			continue
		}

		switch msg.Type {
		case "audio_chunk":
			pcm, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
			if err != nil || len(pcm) == 0 {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid audio_base64"}`))
				continue
			}
			recorder.append(pcm)
			select {
			case device.ch <- pcm:
			case <-ctx.Done():
				return
			default:
				// Engine is not draining (speaking or processing); drop
				// rather than stall the socket.
			}

		case "playback_done":
			select {
			case player.acks <- struct{}{}:
			default:
			}

		case "pause":
			engine.PauseListening()

		case "resume":
			engine.ResumeListening()

		case "end_session":
			runner.Stop()
			return

		default:
			_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
		}
	}
}

func (h *WSHandler) forwardEvent(wc *wsConn, ev voice.Event) {
	switch ev.Type {
	case voice.EventTranscription, voice.EventFinalTranscription:
		if ev.Result == nil {
			return
		}
		_ = wc.writeJSON(map[string]any{
			"type":     "transcription",
			"text":     ev.Result.Transcript,
			"is_final": ev.Result.IsFinal,
		})
	case voice.EventSilenceDetected:
		_ = wc.writeJSON(map[string]any{
			"type":       "silence_detected",
			"transcript": ev.Transcript,
		})
	case voice.EventStateChange:
		_ = wc.writeJSON(map[string]any{
			"type":        "state",
			"mode":        ev.State.Mode,
			"audio_level": ev.State.AudioLevel,
		})
	case voice.EventError:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		_ = wc.writeJSON(map[string]any{
			"type":     "error",
			"message":  msg,
			"terminal": ev.Terminal,
		})
	}
}
