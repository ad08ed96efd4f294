package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/utils"
)

type FeedbackRepo interface {
	// Upsert keyed on session_id; the worker may retry a delivery.
	Upsert(ctx context.Context, row *models.FeedbackResult) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.FeedbackResult, error)
}

type feedbackRepo struct {
	db *gorm.DB
}

func NewFeedbackRepo(db *gorm.DB) FeedbackRepo {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Upsert(ctx context.Context, row *models.FeedbackResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

func (r *feedbackRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.FeedbackResult, error) {
	var row models.FeedbackResult
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
