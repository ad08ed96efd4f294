package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/utils"
)

type SessionRepository interface {
	Create(ctx context.Context, rec *models.SessionRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error)
	// ReplaceSession overwrites the embedded interview state. Called after
	// every turn so a dropped connection loses at most the in-flight turn.
	ReplaceSession(ctx context.Context, sessionID string, sess *models.InterviewSession) error
	SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) error
	End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error
	SetFinalFeedback(ctx context.Context, sessionID string, fb *models.FinalFeedback) error
	SetReviewPasscodeHash(ctx context.Context, sessionID, hash string) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, rec *models.SessionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, rec)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	err := r.col.FindOne(ctx, bson.M{"session.session_id": sessionID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &rec, err
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []models.SessionRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sessionRepo) ReplaceSession(ctx context.Context, sessionID string, sess *models.InterviewSession) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session.session_id": sessionID},
		bson.M{"$set": bson.M{"session": sess}},
	)
	return err
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session.session_id": sessionID},
		bson.M{"$set": bson.M{"session.status": status}},
	)
	return err
}

func (r *sessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session.session_id": sessionID},
		bson.M{"$set": bson.M{
			"session.status":   models.StatusCompleted,
			"ended_at":         endedAt.UTC(),
			"duration_seconds": durationSeconds,
		}},
	)
	return err
}

func (r *sessionRepo) SetFinalFeedback(ctx context.Context, sessionID string, fb *models.FinalFeedback) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session.session_id": sessionID},
		bson.M{"$set": bson.M{"final_feedback": fb}},
	)
	return err
}

func (r *sessionRepo) SetReviewPasscodeHash(ctx context.Context, sessionID, hash string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session.session_id": sessionID},
		bson.M{"$set": bson.M{"review_passcode_hash": hash}},
	)
	return err
}
