package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/assetdesk/stock-ledger-service/pkg/kafka"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

const eventSource = "stock-ledger-service"

// KafkaEventPublisher publishes domain events to the stock events topic.
// Low stock alerts additionally go to the notification topic, where
// downstream consumers drive user-facing alerting.
type KafkaEventPublisher struct {
	producer *kafka.CircuitBreakerProducer
	logger   *logging.Logger
}

// NewKafkaEventPublisher creates a new Kafka-backed event publisher
func NewKafkaEventPublisher(producer *kafka.CircuitBreakerProducer, logger *logging.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		logger:   logger,
	}
}

// Publish sends one domain event
func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	return p.PublishAll(ctx, []domain.DomainEvent{event})
}

// PublishAll sends domain events in one batch per topic
func (p *KafkaEventPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	stockEnvelopes := make([]*kafka.Envelope, 0, len(events))
	alertEnvelopes := make([]*kafka.Envelope, 0)

	for _, event := range events {
		envelope := toEnvelope(event)
		stockEnvelopes = append(stockEnvelopes, envelope)
		if _, ok := event.(*domain.LowStockAlertEvent); ok {
			alertEnvelopes = append(alertEnvelopes, envelope)
		}
	}

	start := time.Now()
	if err := p.producer.PublishBatch(ctx, kafka.Topics.StockEvents, stockEnvelopes); err != nil {
		p.logger.KafkaPublish(ctx, kafka.Topics.StockEvents, "batch", false, time.Since(start))
		return err
	}
	p.logger.KafkaPublish(ctx, kafka.Topics.StockEvents, "batch", true, time.Since(start))

	if len(alertEnvelopes) > 0 {
		if err := p.producer.PublishBatch(ctx, kafka.Topics.NotificationEvents, alertEnvelopes); err != nil {
			return err
		}
	}
	return nil
}

// NotifyLowStock delivers one low stock alert to the notification topic
func (p *KafkaEventPublisher) NotifyLowStock(ctx context.Context, alert domain.LowStockAlertEvent) error {
	return p.producer.PublishEvent(ctx, kafka.Topics.NotificationEvents, toEnvelope(&alert))
}

func toEnvelope(event domain.DomainEvent) *kafka.Envelope {
	return &kafka.Envelope{
		ID:      uuid.New().String(),
		Type:    event.EventType(),
		Source:  eventSource,
		Subject: subjectOf(event),
		Time:    event.OccurredAt(),
		Data:    event,
	}
}

// subjectOf keys the message by item ID so one item's events stay in order
func subjectOf(event domain.DomainEvent) string {
	switch e := event.(type) {
	case *domain.ItemCreatedEvent:
		return e.ItemID
	case *domain.StockAddedEvent:
		return e.ItemID
	case *domain.StockIssuedEvent:
		return e.ItemID
	case *domain.StockReturnedEvent:
		return e.ItemID
	case *domain.StockConsumedEvent:
		return e.ItemID
	case *domain.StockMovedEvent:
		return e.ItemID
	case *domain.AllocationEditedEvent:
		return e.ItemID
	case *domain.LowStockAlertEvent:
		return e.ItemID
	default:
		return event.EventType()
	}
}
