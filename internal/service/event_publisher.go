package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event types published by the API.
const (
	EventDecisionLogged   = "decision.logged"
	EventSessionCompleted = "session.completed"
)

// EventPublisher fans domain events out to Redis pub/sub and NATS.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, userID string, payload interface{})
}

type domainEvent struct {
	Source  string      `json:"source"`
	Type    string      `json:"type"`
	UserID  string      `json:"user_id"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type eventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
}

// NewEventPublisher builds a publisher. Either transport may be nil; with
// neither configured Publish is a no-op.
func NewEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &eventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_publisher").Logger(),
		nodeID:       uuid.NewString(),
	}
}

func (p *eventPublisher) Publish(ctx context.Context, eventType, userID string, payload interface{}) {
	if (p.redis == nil || p.redisChannel == "") && (p.nats == nil || p.natsSubject == "") {
		return
	}

	data, err := json.Marshal(domainEvent{
		Source:  p.nodeID,
		Type:    eventType,
		UserID:  userID,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, data).Err(); err != nil {
			p.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject+"."+eventType, data); err != nil {
			p.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event to nats")
		}
	}
}
