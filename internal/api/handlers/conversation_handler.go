package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pathprep/pathprep/internal/services"
)

type ConversationHandler struct {
	sessions services.SessionService
	convos   services.ConversationService
}

func NewConversationHandler(sessions services.SessionService, convos services.ConversationService) *ConversationHandler {
	return &ConversationHandler{sessions: sessions, convos: convos}
}

// ListBySession returns the persisted transcript. Owners always pass; other
// users need the session's review passcode (query param "passcode").
func (h *ConversationHandler) ListBySession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if _, err := h.sessions.AuthorizeReview(c.Request.Context(), sessionID, userID, c.Query("passcode")); err != nil {
		writeError(c, err)
		return
	}

	limit := 100
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.convos.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":    sessionID,
		"conversations": rows,
	})
}
