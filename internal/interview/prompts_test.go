package interview

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pathprep/pathprep/internal/models"
)

func TestTruncateBacksUpToRuneBoundary(t *testing.T) {
	// 200 three-byte runes: 600 bytes, and byte 400 falls mid-rune.
	long := strings.Repeat("日", 200)

	got := truncate(long, 400)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got[:20])
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatal("truncated text missing ellipsis")
	}
	if want := strings.Repeat("日", 133) + "…"; got != want {
		t.Fatalf("truncated to %d bytes, want cut after 133 runes", len(got))
	}

	if got := truncate("short", 400); got != "short" {
		t.Fatalf("short text altered: %q", got)
	}
}

func TestFinalFeedbackPromptStaysValidUTF8(t *testing.T) {
	sess := &models.InterviewSession{
		Role:       "backend-developer",
		Difficulty: models.LevelIntermediate,
		Conversation: []models.ConversationTurn{
			{Role: models.RoleInterviewer, Content: "Walk me through your caching strategy."},
			{Role: models.RoleCandidate, Content: strings.Repeat("キャッシュ", 120)},
		},
	}

	p := buildFinalFeedbackPrompt(sess, 72)
	if !utf8.ValidString(p) {
		t.Fatal("prompt contains invalid UTF-8 after transcript truncation")
	}
	if !strings.Contains(p, "…") {
		t.Fatal("long answer was not truncated")
	}
}
