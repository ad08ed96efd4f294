package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pathprep/pathprep/internal/interview"
	"github.com/pathprep/pathprep/internal/models"
	"github.com/pathprep/pathprep/internal/providers/llm"
	mongorepo "github.com/pathprep/pathprep/internal/repositories/mongo"
	pgrepo "github.com/pathprep/pathprep/internal/repositories/postgres"
	"github.com/pathprep/pathprep/internal/services"
	"github.com/pathprep/pathprep/internal/utils"
)

// FeedbackWorkerPool consumes ended sessions off the feedback stream and
// generates their final assessment out of band, so ending a session never
// waits on the completion service.
type FeedbackWorkerPool struct {
	Redis      *redis.Client
	Sessions   mongorepo.SessionRepository
	Feedback   pgrepo.FeedbackRepo
	LLM        llm.Provider
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *FeedbackWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Sessions == nil || p.LLM == nil {
		return errors.New("FeedbackWorkerPool missing dependency: Redis/Sessions/LLM must be set")
	}
	if p.Stream == "" {
		p.Stream = services.FeedbackStream
	}
	if p.Group == "" {
		p.Group = "feedback-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *FeedbackWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    5,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				if err := p.handleMsg(ctx, msg); err != nil {
					// Unacked: the message stays pending and is redelivered.
					continue
				}
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

// handleMsg processes one feedback job. A nil return means the message may
// be acknowledged; an error leaves it pending so another consumer retries
// it. Malformed, unknown-session, and already-handled jobs return nil since
// redelivery cannot help them.
func (p *FeedbackWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) error {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	userID := getStr("user_id")
	if sessionID == "" {
		return nil
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
	})
	statusCh := "session:" + sessionID + ":status"

	rec, err := p.Sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			log.Warn("session not found, dropping feedback job")
			return nil
		}
		log.WithError(err).Warn("session lookup failed, leaving job for retry")
		return err
	}

	// On redelivery the Mongo write may have already happened; reuse it and
	// retry only the remaining steps.
	generated := false
	fb := rec.FinalFeedback
	if fb == nil {
		fb = interview.FinalFeedbackFor(ctx, p.LLM, &rec.Session, log)
		if fb == nil {
			// Nothing was answered; there is nothing to assess.
			p.publish(ctx, statusCh, map[string]any{
				"type":       "feedback_skipped",
				"session_id": sessionID,
				"reason":     "no evaluated answers",
			})
			return nil
		}
		if err := p.Sessions.SetFinalFeedback(ctx, sessionID, fb); err != nil {
			log.WithError(err).Error("failed to persist final feedback, leaving job for retry")
			return err
		}
		generated = true
	}

	if p.Feedback != nil {
		row := &models.FeedbackResult{
			ID:             uuid.NewString(),
			UserID:         userID,
			SessionID:      sessionID,
			Role:           rec.Session.Role,
			OverallScore:   fb.OverallScore,
			Strengths:      fb.Strengths,
			Improvements:   fb.Improvements,
			DetailedReview: fb.DetailedReview,
			Recommendation: string(fb.Recommendation),
			CreatedAt:      time.Now().UTC(),
		}
		if err := p.Feedback.Upsert(ctx, row); err != nil {
			log.WithError(err).Error("failed to upsert feedback row, leaving job for retry")
			return err
		}
	}

	// Published on retries too: a job that failed after the Mongo write never
	// got this far, so the listener is still waiting.
	p.publish(ctx, statusCh, map[string]any{
		"type":           "feedback_ready",
		"session_id":     sessionID,
		"overall_score":  fb.OverallScore,
		"recommendation": fb.Recommendation,
	})
	if generated {
		log.WithField("overall_score", fb.OverallScore).Info("final feedback generated")
	}
	return nil
}

func (p *FeedbackWorkerPool) publish(ctx context.Context, channel string, payload map[string]any) {
	if p.Redis == nil {
		return
	}
	b, _ := json.Marshal(payload)
	_ = p.Redis.Publish(ctx, channel, string(b)).Err()
}
