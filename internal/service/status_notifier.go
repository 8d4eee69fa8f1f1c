package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const statusKeyPrefix = "evalio"

// StatusEvent is the payload published on every submission status transition.
type StatusEvent struct {
	SubmissionID uint      `json:"submission_id"`
	Status       string    `json:"status"`
	NodeID       string    `json:"node_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// StatusNotifier fans out submission status transitions. Redis holds the
// latest status under a TTL key and carries a pub/sub channel for polling
// frontends; NATS carries the same event for downstream consumers. Both
// backends are optional and a nil notifier is safe to call.
type StatusNotifier struct {
	redis   *redis.Client
	nats    *nats.Conn
	channel string
	ttl     time.Duration
	nodeID  string
	logger  zerolog.Logger
}

// NewStatusNotifier wires the available backends. Either client may be nil;
// notification then degrades to the backends that are present.
func NewStatusNotifier(redisClient *redis.Client, natsConn *nats.Conn, channel string, ttl time.Duration, logger zerolog.Logger) *StatusNotifier {
	if channel == "" {
		channel = "evalio.submissions.status"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &StatusNotifier{
		redis:   redisClient,
		nats:    natsConn,
		channel: channel,
		ttl:     ttl,
		nodeID:  uuid.NewString(),
		logger:  logger.With().Str("component", "status_notifier").Logger(),
	}
}

// StatusChanged records and broadcasts a submission status transition. Event
// delivery is best effort; a broken backend must never fail an evaluation.
func (n *StatusNotifier) StatusChanged(ctx context.Context, submissionID uint, status string) {
	if n == nil {
		return
	}

	event := StatusEvent{
		SubmissionID: submissionID,
		Status:       status,
		NodeID:       n.nodeID,
		OccurredAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to marshal status event")
		return
	}

	if n.redis != nil {
		key := statusKey(submissionID)
		if err := n.redis.Set(ctx, key, status, n.ttl).Err(); err != nil {
			n.logger.Warn().Err(err).Str("key", key).Msg("failed to cache submission status")
		}
		if err := n.redis.Publish(ctx, n.channel, payload).Err(); err != nil {
			n.logger.Warn().Err(err).Str("channel", n.channel).Msg("failed to publish status event to redis")
		}
	}

	if n.nats != nil {
		if err := n.nats.Publish(n.channel, payload); err != nil {
			n.logger.Warn().Err(err).Str("subject", n.channel).Msg("failed to publish status event to nats")
		}
	}
}

// CachedStatus returns the last broadcast status for a submission, or empty
// when no cache entry exists or Redis is unavailable.
func (n *StatusNotifier) CachedStatus(ctx context.Context, submissionID uint) string {
	if n == nil || n.redis == nil {
		return ""
	}

	status, err := n.redis.Get(ctx, statusKey(submissionID)).Result()
	if err != nil {
		return ""
	}

	return status
}

func statusKey(submissionID uint) string {
	return fmt.Sprintf("%s:submission:%d:status", statusKeyPrefix, submissionID)
}
