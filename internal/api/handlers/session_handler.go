package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pathprep/pathprep/internal/interview"
	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/services"
	"github.com/pathprep/pathprep/internal/utils"
)

// InterviewFactory builds a fresh protocol machine per session.
type InterviewFactory func() *interview.Service

type SessionHandler struct {
	svc        services.SessionService
	newMachine InterviewFactory
	live       *LiveSessions
}

func NewSessionHandler(svc services.SessionService, factory InterviewFactory, live *LiveSessions) *SessionHandler {
	return &SessionHandler{svc: svc, newMachine: factory, live: live}
}

type StartSessionRequest struct {
	Role           string `json:"role" binding:"required"` // e.g. frontend-developer
	Level          string `json:"level"`                   // beginner|intermediate|advanced
	CustomTopic    string `json:"custom_topic"`
	ReviewPasscode string `json:"review_passcode"`
}

type StartSessionResponse struct {
	SessionID     string                 `json:"session_id"`
	Status        models.SessionStatus   `json:"status"`
	QuestionCount int                    `json:"question_count"`
	FirstQuestion string                 `json:"first_question"`
	Level         models.ExperienceLevel `json:"level"`
	CreatedAt     string                 `json:"created_at"`
}

// Start builds the question sequence and registers the session. The voice
// channel is attached separately over /ws/session/:session_id.
func (h *SessionHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Start", "invalid request body", err))
		return
	}

	machine := h.newMachine()
	sess, err := machine.StartSession(c.Request.Context(), req.Role, models.ExperienceLevel(req.Level), req.CustomTopic)
	if err != nil {
		writeError(c, err)
		return
	}

	// Persisted as preparing until the voice channel attaches.
	snap := *sess
	snap.Status = models.StatusPreparing
	rec, err := h.svc.Start(c.Request.Context(), userID, &snap, req.ReviewPasscode)
	if err != nil {
		writeError(c, err)
		return
	}
	h.live.Put(sess.ID, machine)

	c.JSON(http.StatusOK, StartSessionResponse{
		SessionID:     sess.ID,
		Status:        models.StatusPreparing,
		QuestionCount: len(sess.Questions),
		FirstQuestion: sess.Questions[0].Question,
		Level:         sess.Difficulty,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	rec, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Get", "forbidden", nil))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	recs, err := h.svc.ListByUser(c.Request.Context(), userID, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": recs})
}

func (h *SessionHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	rec, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.End", "forbidden", nil))
		return
	}

	// Drain the in-memory machine first so its conversation state is the
	// one that gets assessed.
	if machine, ok := h.live.Get(sessionID); ok {
		machine.EndSession()
		if live := machine.Session(); live != nil {
			rec.Session = *live
		}
		h.live.Remove(sessionID)
	}

	ended, err := h.svc.End(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ended)
}

// Feedback returns the final assessment once the feedback worker has
// produced it.
func (h *SessionHandler) Feedback(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	rec, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Feedback", "forbidden", nil))
		return
	}
	if rec.FinalFeedback == nil {
		writeError(c, utils.E(utils.CodeNotFound, "SessionHandler.Feedback", "feedback not ready", nil))
		return
	}

	c.JSON(http.StatusOK, rec.FinalFeedback)
}
