// Package events publishes order lifecycle events to Kafka. Publication is
// strictly fire-and-forget: a broker outage is logged and never surfaces
// into the checkout path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"

	"storefront/internal/checkout"
)

// OrderPlacedEvent is the wire shape of a confirmed order announcement.
type OrderPlacedEvent struct {
	OrderID     string          `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Publisher writes order events to one topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher connects a Kafka producer for the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &Publisher{
		client: client,
		topic:  topic,
		logger: logger,
		now:    time.Now,
	}, nil
}

// OrderPlaced implements checkout.EventSink. Delivery is asynchronous and
// failures are only logged.
func (p *Publisher) OrderPlaced(ctx context.Context, confirmation checkout.Confirmation, payload checkout.OrderPayload) {
	evt := OrderPlacedEvent{
		OrderID:     confirmation.OrderID,
		TotalAmount: payload.TotalAmount,
		ItemCount:   len(payload.Items),
		OccurredAt:  p.now(),
	}

	value, err := json.Marshal(evt)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode order event", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(confirmation.OrderID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("publish order event", "order_id", evt.OrderID, "error", err)
		}
	})
}

// Close flushes pending records and releases the producer.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("flush order events on close", "error", err)
	}
	p.client.Close()
}
