package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pathprep/pathprep/internal/models"
)

// StripFences removes markdown code fences the completion service tends to
// wrap JSON payloads in (```json ... ```).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Sub-score weights for the overall blend.
const (
	weightTechnicalAccuracy  = 0.35
	weightCompleteness       = 0.25
	weightClarity            = 0.15
	weightDepth              = 0.15
	weightCommunicationSkill = 0.10
)

// overallScore computes the fixed weighted blend over already-clamped
// sub-scores.
func overallScore(ev *models.AnswerEvaluation) int {
	w := weightTechnicalAccuracy*float64(ev.TechnicalAccuracy) +
		weightCompleteness*float64(ev.Completeness) +
		weightClarity*float64(ev.Clarity) +
		weightDepth*float64(ev.Depth) +
		weightCommunicationSkill*float64(ev.CommunicationSkill)
	return clampScore(int(w + 0.5))
}

// decodeEvaluation parses the completion service's evaluation JSON,
// clamping every score into [0,100] and recomputing the overall blend.
func decodeEvaluation(raw string) (*models.AnswerEvaluation, error) {
	var ev models.AnswerEvaluation
	if err := json.Unmarshal([]byte(StripFences(raw)), &ev); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}

	ev.Clarity = clampScore(ev.Clarity)
	ev.Completeness = clampScore(ev.Completeness)
	ev.TechnicalAccuracy = clampScore(ev.TechnicalAccuracy)
	ev.CommunicationSkill = clampScore(ev.CommunicationSkill)
	ev.Depth = clampScore(ev.Depth)
	ev.OverallScore = overallScore(&ev)

	switch ev.Confidence {
	case models.ConfidenceLow, models.ConfidenceMedium, models.ConfidenceHigh:
	default:
		ev.Confidence = models.ConfidenceMedium
	}
	return &ev, nil
}

// decodeQuestions parses a generated question list.
func decodeQuestions(raw string) ([]models.InterviewQuestion, error) {
	var qs []models.InterviewQuestion
	if err := json.Unmarshal([]byte(StripFences(raw)), &qs); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	out := qs[:0]
	for _, q := range qs {
		if strings.TrimSpace(q.Question) != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

type finalFeedbackPayload struct {
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	DetailedReview string   `json:"detailed_review"`
	Recommendation string   `json:"recommendation"`
}

func decodeFinalFeedback(raw string) (*finalFeedbackPayload, error) {
	var p finalFeedbackPayload
	if err := json.Unmarshal([]byte(StripFences(raw)), &p); err != nil {
		return nil, fmt.Errorf("decode final feedback: %w", err)
	}
	switch models.Recommendation(p.Recommendation) {
	case models.RecommendStrongHire, models.RecommendHire, models.RecommendMaybe, models.RecommendNoHire:
	default:
		p.Recommendation = string(models.RecommendMaybe)
	}
	return &p, nil
}
