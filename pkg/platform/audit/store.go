package audit

import (
	"context"
	"time"
)

// Store persists audit events. Append-only: implementations expose no update
// or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	// ListByClinician returns events for a clinician in append order. Used by
	// reporting and by tests asserting on the trail.
	ListByClinician(ctx context.Context, clinicianID string) ([]Event, error)
}

// Sink is the narrow port domain services record through. A Store is a Sink;
// so is the channel feeding the background worker.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// StoreSink adapts a Store into a Sink, stamping the timestamp when the
// caller left it zero.
type StoreSink struct {
	Store Store
	Now   func() time.Time
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{Store: store, Now: time.Now}
}

func (s *StoreSink) Record(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.Now()
	}
	return s.Store.Append(ctx, event)
}
