package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *broker.KafkaProducer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StockEventPublisher sends stock events keyed by owner, so every event of
// one product or variant lands on the same partition in order.
type StockEventPublisher struct {
	writer MessageWriter
}

func NewStockEventPublisher(writer MessageWriter) *StockEventPublisher {
	return &StockEventPublisher{writer: writer}
}

func (p *StockEventPublisher) PublishStockEvent(ctx context.Context, event *model.StockEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stock event: %w", err)
	}

	owner := model.OwnerRef{Kind: event.OwnerKind, ID: event.OwnerID}
	msg := kafka.Message{
		Key:   []byte(owner.Key()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}
	return nil
}
