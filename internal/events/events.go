// Package events publishes order lifecycle events to Kafka for downstream
// notification and shipping systems.
package events

import (
	"encoding/json"
	"time"
)

// EventOrderPlaced is the event type emitted when an order commits.
const EventOrderPlaced = "OrderPlaced"

// Envelope is the versioned wrapper shared by all published events.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// LineItem is one order line in an event payload.
type LineItem struct {
	ProductID string `json:"product_id"`
	ColorID   string `json:"color_id,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// OrderPlacedPayload describes a committed order.
type OrderPlacedPayload struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	Lines      []LineItem `json:"lines"`
	Total      string     `json:"total"`
	PlacedAt   time.Time  `json:"placed_at"`
}
