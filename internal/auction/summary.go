package auction

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftbay/auction-service/internal/store"
)

// Summary holds per-user auction counters for dashboard surfaces. Won
// and lost are derived from the authoritative winner field, never
// recomputed from raw bid comparisons.
type Summary struct {
	ActiveBids int `json:"active_bids"`
	Won        int `json:"won"`
	Lost       int `json:"lost"`

	RequestedPending  int `json:"requested_pending"`
	RequestedApproved int `json:"requested_approved"`
	RequestedRejected int `json:"requested_rejected"`
	RequestedClosed   int `json:"requested_closed"`
}

// Summarize computes a user's auction summary across the records they
// requested and the records they bid on.
func (m *Manager) Summarize(ctx context.Context, email string) (*Summary, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Summarize",
		trace.WithAttributes(attribute.String("user", email)),
	)
	defer span.End()

	s := &Summary{}

	requested, err := m.records.ListByRequester(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing requested records: %w", err)
	}
	for _, r := range requested {
		switch r.Status {
		case store.StatusPending:
			s.RequestedPending++
		case store.StatusApproved:
			s.RequestedApproved++
		case store.StatusRejected:
			s.RequestedRejected++
		case store.StatusClosed:
			s.RequestedClosed++
		}
	}

	participated, err := m.records.ListByBidder(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing participated records: %w", err)
	}
	now := m.clock.Now().UTC()
	for _, r := range participated {
		switch {
		case r.Status == store.StatusClosed && r.Winner == email:
			s.Won++
		case r.Status == store.StatusClosed:
			s.Lost++
		case r.Status == store.StatusApproved && now.Before(r.Deadline):
			// Expired records awaiting settlement are in neither bucket:
			// they are no longer biddable and have no winner yet.
			s.ActiveBids++
		}
	}

	return s, nil
}
