// Package events defines the order events emitted by checkout and the order
// lifecycle, and the Publisher contract the transports implement.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Type names an order event.
type Type string

const (
	OrderSubmitted      Type = "order.submitted"
	OrderStatusChanged  Type = "order.status_changed"
	OrderPaymentChanged Type = "order.payment_changed"
)

// Event is the payload published for every order state change.
type Event struct {
	Type          Type      `json:"type"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Total         int64     `json:"total,omitempty"` // paise
	ItemCount     int       `json:"item_count,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers order events to a transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Encode renders the event as the JSON message body.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// Decode parses a message body produced by Encode.
func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" || e.OrderID == "" {
		return Event{}, fmt.Errorf("decode event: missing type or order_id")
	}
	return e, nil
}

// Nop drops every event. Used when no transport is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
