package interview

import (
	"reflect"
	"testing"
	"time"

	"github.com/pathprep/pathprep/internal/models"
)

func TestFallbackScoresBriefVagueAnswerLow(t *testing.T) {
	q := models.InterviewQuestion{Question: "Explain database indexing.", Topic: "databases"}
	ev := fallbackEvaluation(q, "I guess it just makes things faster somehow, not sure.")

	if ev.OverallScore >= 60 {
		t.Fatalf("overall = %d, want below 60 for a 10-word non-technical answer", ev.OverallScore)
	}
	if !ev.NeedsFollowUp {
		t.Fatal("brief answer should request a follow-up")
	}
	if ev.Confidence != models.ConfidenceLow {
		t.Fatalf("confidence = %q, want low", ev.Confidence)
	}
	if ev.Feedback == "" {
		t.Fatal("fallback must still produce feedback text")
	}
}

func TestFallbackRewardsTechnicalVocabularyAndExamples(t *testing.T) {
	q := models.InterviewQuestion{
		Question:          "How would you speed up a slow query?",
		ExpectedKeyPoints: []string{"index", "cache"},
	}
	answer := "First I would check whether the query uses an index, because a missing index " +
		"forces a full table scan. For example, in a previous project we added a composite index " +
		"and introduced a redis cache in front of the database, which cut p99 latency dramatically. " +
		"I would also look at the schema and consider normalization trade-offs before sharding."

	ev := fallbackEvaluation(q, answer)

	if ev.OverallScore < 60 {
		t.Fatalf("overall = %d, want at least 60 for a detailed technical answer", ev.OverallScore)
	}
	if ev.NeedsFollowUp {
		t.Fatal("detailed technical answer should not force a follow-up")
	}
	if len(ev.KeyPointsCovered) != 2 {
		t.Fatalf("key points covered = %v, want both", ev.KeyPointsCovered)
	}
	if len(ev.StrongPoints) == 0 {
		t.Fatal("expected strong points for technical vocabulary")
	}
}

func TestFallbackScoresAreClamped(t *testing.T) {
	// A very long, term-dense answer must still land inside [0,100].
	answer := ""
	for i := 0; i < 30; i++ {
		answer += "algorithm cache database latency sharding replication queue graph recursion mutex. "
	}
	ev := fallbackEvaluation(models.InterviewQuestion{}, answer)

	for name, v := range map[string]int{
		"clarity":            ev.Clarity,
		"completeness":       ev.Completeness,
		"technical_accuracy": ev.TechnicalAccuracy,
		"communication":      ev.CommunicationSkill,
		"depth":              ev.Depth,
		"overall":            ev.OverallScore,
	} {
		if v < 0 || v > 100 {
			t.Fatalf("%s = %d, outside [0,100]", name, v)
		}
	}
}

func sessionWithScores(scores ...int) *models.InterviewSession {
	sess := &models.InterviewSession{
		ID: "s1", Role: "backend-developer", StartTime: time.Now(),
	}
	for _, sc := range scores {
		sess.Conversation = append(sess.Conversation, models.ConversationTurn{
			Role:    models.RoleCandidate,
			Content: "answer",
			Evaluation: &models.AnswerEvaluation{
				OverallScore: sc,
				StrongPoints: []string{"clear structure"},
				WeakPoints:   []string{"light on trade-offs"},
			},
		})
	}
	return sess
}

func TestFallbackFinalFeedbackIsDeterministic(t *testing.T) {
	sess := sessionWithScores(72, 68, 80)

	a := fallbackFinalFeedback(sess, 73, 3)
	b := fallbackFinalFeedback(sess, 73, 3)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("fallback final feedback must be deterministic for the same session")
	}
	if a.OverallScore != 73 {
		t.Fatalf("overall = %d, want the supplied mean", a.OverallScore)
	}
	if a.Recommendation != models.RecommendHire {
		t.Fatalf("recommendation = %q, want hire for mean 73", a.Recommendation)
	}
	// Qualitative lists are deduplicated, not repeated per turn.
	if len(a.Strengths) != 1 || len(a.Improvements) != 1 {
		t.Fatalf("expected deduplicated lists, got %v / %v", a.Strengths, a.Improvements)
	}
}

func TestFallbackFinalFeedbackBands(t *testing.T) {
	cases := []struct {
		mean int
		want models.Recommendation
	}{
		{90, models.RecommendStrongHire},
		{85, models.RecommendStrongHire},
		{70, models.RecommendHire},
		{55, models.RecommendMaybe},
		{30, models.RecommendNoHire},
	}
	for _, c := range cases {
		fb := fallbackFinalFeedback(sessionWithScores(c.mean), c.mean, 1)
		if fb.Recommendation != c.want {
			t.Fatalf("mean %d: recommendation = %q, want %q", c.mean, fb.Recommendation, c.want)
		}
	}
}
