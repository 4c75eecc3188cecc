package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotificationSender delivers assignment offers to experts. Delivery is
// fire-and-forget: a failed send is logged and never blocks the assignment.
type NotificationSender interface {
	AssignmentOffered(ctx context.Context, expertID, questionID uint, deadline time.Time)
}

type assignmentEvent struct {
	Source     string    `json:"source"`
	ExpertID   uint      `json:"expert_id"`
	QuestionID uint      `json:"question_id"`
	Deadline   time.Time `json:"deadline"`
	SentAt     time.Time `json:"sent_at"`
}

type notificationSender struct {
	nats        *nats.Conn
	natsSubject string
	redis       *redis.Client
	redisChan   string
	logger      zerolog.Logger
	nodeID      string
}

// NewNotificationSender constructs a sender publishing to NATS with an
// optional Redis pubsub mirror. Either connection may be nil.
func NewNotificationSender(natsConn *nats.Conn, redisClient *redis.Client, channelBase string, logger zerolog.Logger) NotificationSender {
	return &notificationSender{
		nats:        natsConn,
		natsSubject: channelBase + ".assignments",
		redis:       redisClient,
		redisChan:   channelBase + ":assignments",
		logger:      logger.With().Str("component", "notification_sender").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (s *notificationSender) AssignmentOffered(ctx context.Context, expertID, questionID uint, deadline time.Time) {
	event := assignmentEvent{
		Source:     s.nodeID,
		ExpertID:   expertID,
		QuestionID: questionID,
		Deadline:   deadline,
		SentAt:     time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode assignment event")
		return
	}

	if s.nats != nil {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Uint("expert_id", expertID).Msg("failed to publish assignment to nats")
		}
	}

	if s.redis != nil {
		if err := s.redis.Publish(ctx, s.redisChan, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("expert_id", expertID).Msg("failed to publish assignment to redis")
		}
	}
}
