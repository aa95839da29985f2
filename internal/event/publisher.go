// Package event publishes domain events to Kafka for downstream consumers
// (notification fan-out, analytics). Publishing is fire-and-forget: the
// database is the source of truth and a dead broker must not fail requests.
package event

import (
	"context"
	"log/slog"

	"github.com/Agamista0/ava-support-backend/pkg/kafka"
	"github.com/Agamista0/ava-support-backend/pkg/logger"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// Topics this service produces to.
const (
	TopicSecurityEvents = "ava.security-events"
	TopicBillingEvents  = "ava.billing-events"
)

const eventSource = "ava-support-backend"

// Publisher wraps the Kafka producer with the service's event envelopes.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates an event publisher.
func NewPublisher(producer *kafka.Producer, log *slog.Logger) *Publisher {
	return &Publisher{producer: producer, logger: log}
}

// PublishSecurity emits a security event keyed by user id. Events without a
// user id are keyed by event type so they still land in a stable partition.
func (p *Publisher) PublishSecurity(ctx context.Context, e *domain.SecurityEvent) {
	aggregateID := e.UserID
	if aggregateID == "" {
		aggregateID = e.EventType
	}

	evt, err := kafka.NewEvent(e.EventType, aggregateID, "user", eventSource, e)
	if err != nil {
		p.logger.Error("failed to build security event", slog.Any("error", err))
		return
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.producer.Publish(ctx, TopicSecurityEvents, evt); err != nil {
		p.logger.Error("failed to publish security event",
			slog.String("event_type", e.EventType), slog.Any("error", err))
	}
}

// PublishBilling emits a billing event keyed by user id.
func (p *Publisher) PublishBilling(ctx context.Context, eventType, userID string, data any) {
	evt, err := kafka.NewEvent(eventType, userID, "subscription", eventSource, data)
	if err != nil {
		p.logger.Error("failed to build billing event", slog.Any("error", err))
		return
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.producer.Publish(ctx, TopicBillingEvents, evt); err != nil {
		p.logger.Error("failed to publish billing event",
			slog.String("event_type", eventType), slog.Any("error", err))
	}
}
