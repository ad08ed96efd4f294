package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/utils"
)

type fakeConversationRepo struct {
	inserted  []*models.ConversationLog
	insertErr error
}

func (f *fakeConversationRepo) Insert(ctx context.Context, row *models.ConversationLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, row)
	return nil
}

func (f *fakeConversationRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error) {
	var rows []models.ConversationLog
	for _, r := range f.inserted {
		if r.SessionID == sessionID {
			rows = append(rows, *r)
		}
	}
	return rows, nil
}

func (f *fakeConversationRepo) LatestN(ctx context.Context, userID string, n int) ([]models.ConversationLog, error) {
	return nil, nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id string) (*models.ConversationLog, error) {
	return nil, utils.ErrNotFound
}

func TestAppendWithoutEmbeddingLeavesColumnNull(t *testing.T) {
	repo := &fakeConversationRepo{}
	svc := NewConversationService(repo)

	turn := models.ConversationTurn{
		Role:       models.RoleCandidate,
		Content:    "I would shard the table by tenant id.",
		QuestionID: "q-1",
	}
	row, err := svc.Append(context.Background(), "user-1", "sess-1", turn, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if row.Embedding != nil {
		t.Fatalf("embedding = %v, want nil", row.Embedding)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(repo.inserted))
	}
	if repo.inserted[0].Embedding != nil {
		t.Fatal("persisted row carries a non-nil embedding")
	}
	if row.ID == "" || row.Timestamp.IsZero() {
		t.Fatal("append must assign id and timestamp")
	}
}

func TestAppendStoresEmbeddingAndEvaluation(t *testing.T) {
	repo := &fakeConversationRepo{}
	svc := NewConversationService(repo)

	turn := models.ConversationTurn{
		Role:    models.RoleCandidate,
		Content: "I would add a read-through cache.",
		Evaluation: &models.AnswerEvaluation{OverallScore: 71, Confidence: models.ConfidenceHigh},
	}
	vec := make([]float32, 768)
	vec[0] = 0.5

	row, err := svc.Append(context.Background(), "user-1", "sess-1", turn, vec)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if row.Embedding == nil {
		t.Fatal("embedding missing on persisted row")
	}
	if got := len(row.Embedding.Slice()); got != 768 {
		t.Fatalf("embedding has %d dimensions, want 768", got)
	}

	var ev models.AnswerEvaluation
	if err := json.Unmarshal(row.Evaluation, &ev); err != nil {
		t.Fatalf("evaluation column is not valid JSON: %v", err)
	}
	if ev.OverallScore != 71 {
		t.Fatalf("evaluation overall = %d, want 71", ev.OverallScore)
	}
}

func TestAppendRejectsIncompleteTurns(t *testing.T) {
	svc := NewConversationService(&fakeConversationRepo{})

	_, err := svc.Append(context.Background(), "", "sess-1", models.ConversationTurn{
		Role:    models.RoleCandidate,
		Content: "answer",
	}, nil)
	if err == nil {
		t.Fatal("expected error for missing user id")
	}
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("error = %v, want invalid argument code", err)
	}
}
