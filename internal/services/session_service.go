package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pathprep/pathprep/internal/models"
	mongorepo "github.com/pathprep/pathprep/internal/repositories/mongo"
	"github.com/pathprep/pathprep/internal/utils"
)

// FeedbackStream is where ended sessions are queued for the feedback worker.
const FeedbackStream = "feedback:stream"

type SessionService interface {
	// Start persists a freshly built interview session. An optional review
	// passcode lets the owner share the completed conversation.
	Start(ctx context.Context, userID string, sess *models.InterviewSession, reviewPasscode string) (*models.SessionRecord, error)
	Get(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error)
	// SaveProgress overwrites the embedded interview state after a turn.
	SaveProgress(ctx context.Context, sess *models.InterviewSession) error
	// End marks the session ended and queues it for final-feedback
	// generation. Idempotent.
	End(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) error
	// AuthorizeReview grants access to a session's conversation: the owner
	// always passes, anyone else needs the review passcode.
	AuthorizeReview(ctx context.Context, sessionID, userID, passcode string) (*models.SessionRecord, error)
}

type sessionService struct {
	sessions mongorepo.SessionRepository
	rdb      *redis.Client
}

func NewSessionService(sessions mongorepo.SessionRepository, rdb *redis.Client) SessionService {
	return &sessionService{sessions: sessions, rdb: rdb}
}

func (s *sessionService) Start(ctx context.Context, userID string, sess *models.InterviewSession, reviewPasscode string) (*models.SessionRecord, error) {
	const op = "SessionService.Start"

	if userID == "" || sess == nil || sess.ID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session are required", nil)
	}

	rec := &models.SessionRecord{
		UserID:    userID,
		Session:   *sess,
		CreatedAt: time.Now().UTC(),
	}
	if reviewPasscode != "" {
		hash, err := utils.HashPassword(reviewPasscode)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to hash review passcode", err)
		}
		rec.ReviewPasscodeHash = hash
	}

	if err := s.sessions.Create(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return rec, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	rec, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return rec, nil
}

func (s *sessionService) ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error) {
	const op = "SessionService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	recs, err := s.sessions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	return recs, nil
}

func (s *sessionService) SaveProgress(ctx context.Context, sess *models.InterviewSession) error {
	const op = "SessionService.SaveProgress"

	if sess == nil || sess.ID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session is required", nil)
	}
	if err := s.sessions.ReplaceSession(ctx, sess.ID, sess); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save session progress", err)
	}
	return nil
}

func (s *sessionService) End(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	const op = "SessionService.End"

	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if rec.EndedAt != nil {
		return rec, nil
	}
	dur := int64(now.Sub(rec.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, dur); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}

	if s.rdb != nil {
		err := s.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: FeedbackStream,
			Values: map[string]any{
				"session_id": sessionID,
				"user_id":    rec.UserID,
			},
		}).Err()
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to queue feedback job", err)
		}
	}

	rec.Session.Status = models.StatusCompleted
	rec.EndedAt = &now
	rec.DurationSeconds = dur
	return rec, nil
}

func (s *sessionService) SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) error {
	const op = "SessionService.SetStatus"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	return nil
}

func (s *sessionService) AuthorizeReview(ctx context.Context, sessionID, userID, passcode string) (*models.SessionRecord, error) {
	const op = "SessionService.AuthorizeReview"

	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.UserID == userID {
		return rec, nil
	}
	if rec.ReviewPasscodeHash == "" {
		return nil, utils.E(utils.CodeForbidden, op, "session is not shared", nil)
	}
	if err := utils.CheckPassword(rec.ReviewPasscodeHash, passcode); err != nil {
		return nil, utils.E(utils.CodeForbidden, op, "invalid review passcode", nil)
	}
	return rec, nil
}
