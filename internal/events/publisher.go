package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/voltmart/checkout/internal/domain/order"
)

const producerName = "checkout-api"

// KafkaPublisher implements order.Publisher over a kafka-go writer.
// Writes are asynchronous; delivery failures are logged, never surfaced to
// the request that placed the order.
type KafkaPublisher struct {
	w  *kafka.Writer
	lg *zap.Logger
}

var _ order.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string, lg *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
	}
	w.Completion = func(messages []kafka.Message, err error) {
		if err != nil {
			lg.Error("order event delivery failed",
				zap.Int("messages", len(messages)),
				zap.Error(err),
			)
		}
	}
	return &KafkaPublisher{w: w, lg: lg}
}

// OrderPlaced publishes an OrderPlaced envelope keyed by order ID.
func (p *KafkaPublisher) OrderPlaced(ctx context.Context, o *order.Order) {
	lines := make([]LineItem, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = LineItem{
			ProductID: l.ProductID,
			ColorID:   l.ColorID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
		}
	}

	payload, err := json.Marshal(OrderPlacedPayload{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Lines:      lines,
		Total:      o.Total.String(),
		PlacedAt:   o.PlacedAt,
	})
	if err != nil {
		p.lg.Error("marshal order event payload", zap.Error(err))
		return
	}

	value, err := json.Marshal(Envelope{
		EventID:       uuid.New().String(),
		EventType:     EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: o.ID,
		Payload:       payload,
	})
	if err != nil {
		p.lg.Error("marshal order event envelope", zap.Error(err))
		return
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(EventOrderPlaced)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	})
	if err != nil {
		p.lg.Error("enqueue order event", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// Close flushes buffered messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// NoopPublisher drops all events. Used when no brokers are configured.
type NoopPublisher struct{}

var _ order.Publisher = NoopPublisher{}

// OrderPlaced does nothing.
func (NoopPublisher) OrderPlaced(context.Context, *order.Order) {}
