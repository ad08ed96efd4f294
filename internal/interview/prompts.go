package interview

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pathprep/pathprep/internal/models"
)

const scoringRubric = `Score each dimension 0-100 using these bands:
- 90-100: fully accurate and thorough, interview-ready
- 70-89: mostly correct with minor gaps
- 50-69: some correct points, some incorrect or missing
- 30-49: substantial misunderstandings or very thin coverage
- 0-29: incorrect, off-topic, or no meaningful content`

// buildEvaluationPrompt asks the completion service to grade one answer
// against the rubric, with recent conversation for context.
func buildEvaluationPrompt(q models.InterviewQuestion, answer string, history []models.ConversationTurn) string {
	var b strings.Builder

	b.WriteString("You are a senior technical interviewer grading a spoken answer.\n\n")
	fmt.Fprintf(&b, "QUESTION (%s, %s, topic: %s):\n%s\n\n", q.Type, q.Difficulty, q.Topic, q.Question)

	if len(q.ExpectedKeyPoints) > 0 {
		b.WriteString("KEY POINTS A STRONG ANSWER COVERS:\n")
		for _, kp := range q.ExpectedKeyPoints {
			fmt.Fprintf(&b, "- %s\n", kp)
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("RECENT CONVERSATION:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(t.Role)), t.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "CANDIDATE ANSWER:\n%s\n\n", answer)
	b.WriteString(scoringRubric)
	b.WriteString(`

Respond with ONLY a JSON object:
{
  "clarity": 0-100,
  "completeness": 0-100,
  "technical_accuracy": 0-100,
  "communication_skill": 0-100,
  "depth": 0-100,
  "confidence": "low"|"medium"|"high",
  "needs_follow_up": true|false,
  "follow_up_reason": "...",
  "strong_points": ["..."],
  "weak_points": ["..."],
  "missing_concepts": ["..."],
  "key_points_covered": ["..."],
  "feedback": "2-3 sentences of direct feedback"
}`)

	return b.String()
}

// buildFollowUpPrompt seeds a targeted follow-up from the evaluation's gaps.
func buildFollowUpPrompt(parent models.InterviewQuestion, answer string, ev *models.AnswerEvaluation) string {
	var b strings.Builder

	b.WriteString("You are a technical interviewer. The candidate's answer left gaps; ask ONE short targeted follow-up question that probes exactly those gaps.\n\n")
	fmt.Fprintf(&b, "ORIGINAL QUESTION:\n%s\n\n", parent.Question)
	fmt.Fprintf(&b, "CANDIDATE ANSWER:\n%s\n\n", answer)
	if ev.FollowUpReason != "" {
		fmt.Fprintf(&b, "WHY A FOLLOW-UP IS NEEDED: %s\n", ev.FollowUpReason)
	}
	if len(ev.MissingConcepts) > 0 {
		fmt.Fprintf(&b, "MISSING CONCEPTS: %s\n", strings.Join(ev.MissingConcepts, ", "))
	}
	b.WriteString("\nRespond with ONLY the follow-up question text, no preamble.")

	return b.String()
}

// buildSupplementPrompt asks for extra unique questions when the static bank
// runs dry for a role.
func buildSupplementPrompt(role string, level models.ExperienceLevel, topic string, types []models.QuestionType, existing []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d unique interview questions for a %s candidate at %s level.\n", len(types), role, level)
	if topic != "" {
		fmt.Fprintf(&b, "Focus area requested by the candidate: %s.\n", topic)
	}
	b.WriteString("Question types in order: ")
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(t))
	}
	b.WriteString("\n")

	if len(existing) > 0 {
		b.WriteString("\nDo NOT repeat any of these already-used questions:\n")
		for _, q := range existing {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	fmt.Fprintf(&b, `
Respond with ONLY a JSON array:
[{"question": "...", "type": "...", "difficulty": "%s", "topic": "...", "expected_key_points": ["..."]}]`,
		level.QuestionDifficulty())

	return b.String()
}

// buildFinalFeedbackPrompt condenses the session for a qualitative verdict.
func buildFinalFeedbackPrompt(sess *models.InterviewSession, meanScore int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are reviewing a completed %s interview at %s level. The locally computed mean answer score is %d/100.\n\n", sess.Role, sess.Difficulty, meanScore)

	b.WriteString("TRANSCRIPT WITH PER-ANSWER SCORES:\n")
	for _, t := range sess.Conversation {
		line := truncate(t.Content, 400)
		if t.Evaluation != nil {
			fmt.Fprintf(&b, "[%s] (score %d) %s\n", strings.ToUpper(string(t.Role)), t.Evaluation.OverallScore, line)
		} else {
			fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(t.Role)), line)
		}
	}

	b.WriteString(`
Respond with ONLY a JSON object:
{
  "strengths": ["..."],
  "improvements": ["..."],
  "detailed_review": "one paragraph",
  "recommendation": "strong-hire"|"hire"|"maybe"|"no-hire"
}`)

	return b.String()
}

// truncate caps s at max bytes, backing up to a rune boundary so the cut
// never leaves invalid UTF-8 in the prompt.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
