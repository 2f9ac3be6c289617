package main

import (
	"context"

	"github.com/imrishuroy/lbvp-storefront/internal/events"
)

// Recorder turns an order event into metrics.
type Recorder interface {
	Record(ctx context.Context, e events.Event) error
}
