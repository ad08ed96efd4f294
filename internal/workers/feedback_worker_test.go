package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/utils"
)

type fakeSessionRepo struct {
	rec    *models.SessionRecord
	getErr error

	setCalls int
	setErr   error
}

func (f *fakeSessionRepo) Create(ctx context.Context, rec *models.SessionRecord) error { return nil }

func (f *fakeSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rec, nil
}

func (f *fakeSessionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error) {
	return nil, nil
}

func (f *fakeSessionRepo) ReplaceSession(ctx context.Context, sessionID string, sess *models.InterviewSession) error {
	return nil
}

func (f *fakeSessionRepo) SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) error {
	return nil
}

func (f *fakeSessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	return nil
}

func (f *fakeSessionRepo) SetFinalFeedback(ctx context.Context, sessionID string, fb *models.FinalFeedback) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.rec.FinalFeedback = fb
	return nil
}

func (f *fakeSessionRepo) SetReviewPasscodeHash(ctx context.Context, sessionID, hash string) error {
	return nil
}

type fakeFeedbackRepo struct {
	upserts   []*models.FeedbackResult
	upsertErr error
}

func (f *fakeFeedbackRepo) Upsert(ctx context.Context, row *models.FeedbackResult) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, row)
	return nil
}

func (f *fakeFeedbackRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.FeedbackResult, error) {
	return nil, utils.ErrNotFound
}

type fakeCompleter struct{ err error }

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return "", f.err
}

func (f *fakeCompleter) Close() error { return nil }

func evaluatedRecord() *models.SessionRecord {
	return &models.SessionRecord{
		UserID: "user-1",
		Session: models.InterviewSession{
			ID:   "sess-1",
			Role: "backend-developer",
			Conversation: []models.ConversationTurn{
				{Role: models.RoleInterviewer, Content: "How would you scale reads?"},
				{
					Role:       models.RoleCandidate,
					Content:    "I would add replicas and a cache.",
					Evaluation: &models.AnswerEvaluation{OverallScore: 80},
				},
			},
		},
	}
}

func feedbackJob() redis.XMessage {
	return redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"session_id": "sess-1", "user_id": "user-1"},
	}
}

func newTestPool(sessions *fakeSessionRepo, feedback *fakeFeedbackRepo) *FeedbackWorkerPool {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &FeedbackWorkerPool{
		Sessions: sessions,
		Feedback: feedback,
		LLM:      &fakeCompleter{err: errors.New("offline")},
		Logger:   log,
	}
}

func TestHandleMsgGeneratesAndPersistsFeedback(t *testing.T) {
	sessions := &fakeSessionRepo{rec: evaluatedRecord()}
	feedback := &fakeFeedbackRepo{}
	p := newTestPool(sessions, feedback)

	if err := p.handleMsg(context.Background(), feedbackJob()); err != nil {
		t.Fatalf("handleMsg: %v", err)
	}
	if sessions.setCalls != 1 {
		t.Fatalf("final feedback written %d times, want 1", sessions.setCalls)
	}
	if len(feedback.upserts) != 1 {
		t.Fatalf("upserted %d rows, want 1", len(feedback.upserts))
	}
	if got := feedback.upserts[0].OverallScore; got != 80 {
		t.Fatalf("overall score = %d, want 80", got)
	}
}

func TestHandleMsgLeavesJobPendingWhenPersistFails(t *testing.T) {
	sessions := &fakeSessionRepo{
		rec:    evaluatedRecord(),
		setErr: errors.New("mongo write timeout"),
	}
	p := newTestPool(sessions, &fakeFeedbackRepo{})

	if err := p.handleMsg(context.Background(), feedbackJob()); err == nil {
		t.Fatal("persist failure must surface so the message is not acknowledged")
	}
}

func TestHandleMsgLeavesJobPendingWhenUpsertFails(t *testing.T) {
	sessions := &fakeSessionRepo{rec: evaluatedRecord()}
	feedback := &fakeFeedbackRepo{upsertErr: errors.New("postgres down")}
	p := newTestPool(sessions, feedback)

	if err := p.handleMsg(context.Background(), feedbackJob()); err == nil {
		t.Fatal("upsert failure must surface so the message is not acknowledged")
	}
}

func TestHandleMsgRedeliveryResumesAfterPartialWrite(t *testing.T) {
	// First delivery wrote Mongo but the Postgres upsert failed. The retry
	// must reuse the stored feedback and finish the upsert, not regenerate.
	rec := evaluatedRecord()
	rec.FinalFeedback = &models.FinalFeedback{
		OverallScore:   80,
		Recommendation: models.RecommendHire,
	}
	sessions := &fakeSessionRepo{rec: rec}
	feedback := &fakeFeedbackRepo{}
	p := newTestPool(sessions, feedback)

	if err := p.handleMsg(context.Background(), feedbackJob()); err != nil {
		t.Fatalf("handleMsg: %v", err)
	}
	if sessions.setCalls != 0 {
		t.Fatalf("feedback regenerated on redelivery: %d writes", sessions.setCalls)
	}
	if len(feedback.upserts) != 1 {
		t.Fatalf("upserted %d rows, want 1", len(feedback.upserts))
	}
}

func TestHandleMsgDropsUnknownSession(t *testing.T) {
	sessions := &fakeSessionRepo{getErr: utils.ErrNotFound}
	p := newTestPool(sessions, &fakeFeedbackRepo{})

	if err := p.handleMsg(context.Background(), feedbackJob()); err != nil {
		t.Fatalf("unknown session must be dropped, not retried: %v", err)
	}
}

func TestHandleMsgRetriesTransientLookupFailure(t *testing.T) {
	sessions := &fakeSessionRepo{getErr: errors.New("mongo unreachable")}
	p := newTestPool(sessions, &fakeFeedbackRepo{})

	if err := p.handleMsg(context.Background(), feedbackJob()); err == nil {
		t.Fatal("transient lookup failure must surface so the message is not acknowledged")
	}
}
