package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCompleted = "OrderCompleted"
	EventOrderCancelled = "OrderCancelled"

	systemActor = "system"
	maxAttempts = 3
)

var errEmptyOrder = errors.New("order has no lines")

// MessageReader is satisfied by *broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type InventoryListener struct {
	consumer MessageReader
	uc       inventory.UseCase
	tx       inventory.Transactor
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, tx inventory.Transactor, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		tx:       tx,
		logger:   logger,
		backoff:  time.Second,
	}
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				l.sleep(ctx)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID    string             `json:"id"`
	Items []OrderItemPayload `json:"items"`
}

// OrderItemPayload names its stock owner either directly with
// owner_kind/owner_id or through the catalog's product_id/variant_id.
type OrderItemPayload struct {
	OwnerKind model.OwnerKind `json:"owner_kind,omitempty"`
	OwnerID   string          `json:"owner_id,omitempty"`
	ProductID string          `json:"product_id"`
	VariantID *string         `json:"variant_id"`
	Quantity  int64           `json:"quantity"`
}

// Owner is the explicit owner when given, else the variant when the line
// names one, else the product.
func (i OrderItemPayload) Owner() model.OwnerRef {
	if i.OwnerKind != "" || i.OwnerID != "" {
		return model.OwnerRef{Kind: i.OwnerKind, ID: i.OwnerID}
	}
	if i.VariantID != nil && *i.VariantID != "" {
		return model.Variant(*i.VariantID)
	}
	return model.Product(i.ProductID)
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	var apply func(context.Context, *OrderPayload) error
	switch event.EventType {
	case EventOrderCreated:
		apply = l.reserveOrder
	case EventOrderCompleted:
		apply = l.completeOrder
	case EventOrderCancelled:
		apply = l.cancelOrder
	default:
		return
	}

	l.logger.Info("Processing order event",
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.Payload.ID),
	)

	if err := l.handle(ctx, &event.Payload, apply); err != nil {
		l.logger.Error("Failed to apply order event",
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.Payload.ID),
			zap.Error(err),
		)
	}
}

// handle runs apply for the whole order in one transaction, retrying while
// the ledger reports a transient failure.
func (l *InventoryListener) handle(ctx context.Context, order *OrderPayload, apply func(context.Context, *OrderPayload) error) error {
	if len(order.Items) == 0 {
		return errEmptyOrder
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return apply(ctx, order)
		})
		if err == nil || !inventory.IsRetryable(err) {
			return err
		}
		l.logger.Warn("Retrying order event",
			zap.String("order_id", order.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !l.sleep(ctx) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, err)
}

// reserveOrder holds stock for every line. One short line rejects the order.
func (l *InventoryListener) reserveOrder(ctx context.Context, order *OrderPayload) error {
	for _, item := range order.Items {
		if _, err := l.uc.Reserve(ctx, item.Owner(), item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// completeOrder turns the held quantity into a sale.
func (l *InventoryListener) completeOrder(ctx context.Context, order *OrderPayload) error {
	for _, item := range order.Items {
		owner := item.Owner()
		_, err := l.uc.AdjustQuantity(ctx, &dto.AdjustQuantityInput{
			Owner:   owner,
			Delta:   -item.Quantity,
			Reason:  model.ReasonSale,
			Notes:   "order " + order.ID,
			ActorID: systemActor,
		})
		if err != nil {
			return err
		}
		if _, err := l.uc.Release(ctx, owner, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (l *InventoryListener) cancelOrder(ctx context.Context, order *OrderPayload) error {
	for _, item := range order.Items {
		if _, err := l.uc.Release(ctx, item.Owner(), item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (l *InventoryListener) sleep(ctx context.Context) bool {
	t := time.NewTimer(l.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
