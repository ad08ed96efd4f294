package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/pathprep/pathprep/internal/models"
	pgrepo "github.com/pathprep/pathprep/internal/repositories/postgres"
	"github.com/pathprep/pathprep/internal/utils"
)

type ConversationService interface {
	// Append projects one conversation turn into Postgres. The embedding is
	// optional; candidate-turn evaluations are stored as JSON.
	Append(ctx context.Context, userID, sessionID string, turn models.ConversationTurn, embedding []float32) (*models.ConversationLog, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
}

func NewConversationService(convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{convos: convos}
}

func (s *conversationService) Append(ctx context.Context, userID, sessionID string, turn models.ConversationTurn, embedding []float32) (*models.ConversationLog, error) {
	const op = "ConversationService.Append"

	if userID == "" || sessionID == "" || turn.Role == "" || turn.Content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id, session_id, role, and content are required", nil)
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	row := &models.ConversationLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		Role:       string(turn.Role),
		Content:    turn.Content,
		QuestionID: turn.QuestionID,
		Timestamp:  ts,
	}

	if turn.Evaluation != nil {
		b, err := json.Marshal(turn.Evaluation)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to encode evaluation", err)
		}
		row.Evaluation = datatypes.JSON(b)
	}
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		row.Embedding = &v
	}

	if err := s.convos.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert conversation log", err)
	}
	return row, nil
}

func (s *conversationService) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error) {
	const op = "ConversationService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	rows, err := s.convos.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversation", err)
	}
	return rows, nil
}
