package kafka

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/assetdesk/stock-ledger-service/pkg/logging"
)

// CircuitBreakerProducer wraps Producer with circuit breaker protection, so
// a dead broker degrades publishing instead of stalling every request.
type CircuitBreakerProducer struct {
	producer *Producer
	breaker  *gobreaker.CircuitBreaker
	logger   *logging.Logger
}

// NewCircuitBreakerProducer creates a circuit breaker protected Kafka producer
func NewCircuitBreakerProducer(producer *Producer, logger *logging.Logger) *CircuitBreakerProducer {
	settings := gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && counts.TotalFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			}
		},
	}

	return &CircuitBreakerProducer{
		producer: producer,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

// PublishEvent publishes one envelope with circuit breaker protection
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, envelope *Envelope) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.PublishEvent(ctx, topic, envelope)
	})
	return err
}

// PublishBatch publishes multiple envelopes with circuit breaker protection
func (p *CircuitBreakerProducer) PublishBatch(ctx context.Context, topic string, envelopes []*Envelope) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.PublishBatch(ctx, topic, envelopes)
	})
	return err
}

// State returns the current breaker state
func (p *CircuitBreakerProducer) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the underlying producer
func (p *CircuitBreakerProducer) Close() error {
	return p.producer.Close()
}
