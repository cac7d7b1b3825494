package bid

import (
	"context"
	"time"
)

// Source queries one portal for a keyword and returns the records inside window.
// A nil error with an empty slice means "no new bids"; an error wrapping
// *SourceError means the portal could not be queried.
type Source interface {
	Name() string
	Search(ctx context.Context, keyword string, window Window) ([]Record, error)
}

// Notifier delivers a text message. It never returns an error; failures are
// reported through the Delivery value.
type Notifier interface {
	Send(ctx context.Context, text string) Delivery
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}
