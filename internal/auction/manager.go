package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftbay/auction-service/internal/clock"
	"github.com/craftbay/auction-service/internal/event"
	"github.com/craftbay/auction-service/internal/store"
)

// Manager coordinates the auction lifecycle: submission, moderation,
// bidding, closing and invoice assembly. All mutations go through the
// record repository's atomic compare-and-commit operations, so Manager
// is safe for concurrent use by many callers.
type Manager struct {
	records store.RecordRepository
	events  event.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	clock   clock.Clock

	// maxBidRetries bounds the optimistic commit loop in PlaceBid.
	maxBidRetries int
}

// NewManager creates a new auction Manager.
func NewManager(records store.RecordRepository, events event.Store, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock, maxBidRetries int) *Manager {
	if maxBidRetries < 1 {
		maxBidRetries = 1
	}
	return &Manager{
		records:       records,
		events:        events,
		logger:        logger,
		tracer:        tp.Tracer("github.com/craftbay/auction-service/internal/auction"),
		clock:         clk,
		maxBidRetries: maxBidRetries,
	}
}

// SubmitRequest validates a proposal and creates its pending record.
func (m *Manager) SubmitRequest(ctx context.Context, p Proposal, requester store.Identity) (*store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SubmitRequest",
		trace.WithAttributes(
			attribute.String("requester", requester.Email),
			attribute.String("title", p.Title),
		),
	)
	defer span.End()

	now := m.clock.Now().UTC()
	if err := p.Validate(now); err != nil {
		return nil, err
	}
	if requester.Email == "" {
		return nil, &ValidationError{Field: "requester", Reason: "required"}
	}

	rec := p.record(uuid.NewString(), requester, now)
	if err := m.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating auction record: %w", err)
	}

	data, _ := json.Marshal(event.SubmittedData{
		Title:          rec.Title,
		RequesterEmail: requester.Email,
		RequesterRole:  string(requester.Role),
		BaseAmount:     rec.BaseAmount.String(),
		MinIncrement:   rec.MinIncrement.String(),
		Deadline:       rec.Deadline.UTC().Format(time.RFC3339),
	})
	m.appendEvent(ctx, event.Event{
		AggregateID: rec.ID,
		Type:        event.AuctionSubmitted,
		Data:        data,
		Version:     rec.Version,
	})

	m.logger.InfoContext(ctx, "auction request submitted",
		slog.String("record_id", rec.ID),
		slog.String("requester", requester.Email),
		slog.String("base_amount", rec.BaseAmount.String()),
	)
	return rec, nil
}

// ListRequests returns all records created by the requester, any status,
// in creation order.
func (m *Manager) ListRequests(ctx context.Context, requesterEmail string) ([]store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListRequests")
	defer span.End()

	recs, err := m.records.ListByRequester(ctx, requesterEmail)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return recs, nil
}

// ListPendingForModeration returns all records awaiting moderation.
func (m *Manager) ListPendingForModeration(ctx context.Context) ([]store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListPendingForModeration")
	defer span.End()

	recs, err := m.records.ListByStatus(ctx, store.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending records: %w", err)
	}
	return recs, nil
}

// ListActive returns approved records still open for bidding.
func (m *Manager) ListActive(ctx context.Context) ([]store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListActive")
	defer span.End()

	recs, err := m.records.ListActive(ctx, m.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("listing active records: %w", err)
	}
	return recs, nil
}

// Approve transitions a pending record to approved. Moderation is
// one-shot: approving a record that is no longer pending returns
// ErrInvalidState rather than silently succeeding.
func (m *Manager) Approve(ctx context.Context, id string) error {
	return m.moderate(ctx, id, store.StatusApproved, event.AuctionApproved)
}

// Reject transitions a pending record to rejected. One-shot like Approve.
func (m *Manager) Reject(ctx context.Context, id string) error {
	return m.moderate(ctx, id, store.StatusRejected, event.AuctionRejected)
}

func (m *Manager) moderate(ctx context.Context, id string, to store.Status, evt event.Type) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Moderate",
		trace.WithAttributes(
			attribute.String("record_id", id),
			attribute.String("status", string(to)),
		),
	)
	defer span.End()

	err := m.records.SetStatus(ctx, id, store.StatusPending, to)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrStatusConflict):
		return ErrInvalidState
	case err != nil:
		return fmt.Errorf("moderating record %s: %w", id, err)
	}

	data, _ := json.Marshal(event.ModeratedData{Status: string(to)})
	m.appendEvent(ctx, event.Event{
		AggregateID: id,
		Type:        evt,
		Data:        data,
		// Moderation is always the first mutation, taking the record
		// from version 1 to 2.
		Version: 2,
	})

	m.logger.InfoContext(ctx, "auction request moderated",
		slog.String("record_id", id),
		slog.String("status", string(to)),
	)
	return nil
}

// PlaceBid validates and commits a bid against the record's current
// state. The commit is an optimistic read-validate-commit cycle: on a
// version conflict the bid is revalidated against the fresh state and
// retried up to the configured bound. No bid is ever partially applied.
func (m *Manager) PlaceBid(ctx context.Context, id, bidder string, amount decimal.Decimal) (*store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.PlaceBid",
		trace.WithAttributes(
			attribute.String("record_id", id),
			attribute.String("bidder", bidder),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	if bidder == "" {
		return nil, &ValidationError{Field: "bidder", Reason: "required"}
	}

	for attempt := 0; attempt <= m.maxBidRetries; attempt++ {
		rec, err := m.records.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("reading record %s: %w", id, err)
		}

		now := m.clock.Now().UTC()
		if rec.Status != store.StatusApproved || !now.Before(rec.Deadline) {
			return nil, ErrAuctionNotOpen
		}
		if rec.Requester.Email == bidder {
			return nil, ErrSelfBid
		}

		floor := rec.CurrentAmount.Add(rec.MinIncrement)
		if amount.LessThan(floor) {
			return nil, fmt.Errorf("%w: minimum next bid is %s", ErrBidTooLow, floor)
		}

		bid := store.Bid{Bidder: bidder, Amount: amount, PlacedAt: now}
		err = m.records.AppendBid(ctx, id, rec.Version, bid)
		if errors.Is(err, store.ErrVersionConflict) || errors.Is(err, store.ErrStatusConflict) {
			// Another bid committed first, or the close beat us to the
			// record; revalidate against the fresh state instead of
			// failing the caller. A raced close surfaces as
			// ErrAuctionNotOpen on the re-read.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("committing bid on %s: %w", id, err)
		}

		data, _ := json.Marshal(event.BidPlacedData{
			Bidder: bidder,
			Amount: amount.String(),
		})
		m.appendEvent(ctx, event.Event{
			AggregateID: id,
			Type:        event.AuctionBidPlaced,
			Data:        data,
			Version:     rec.Version + 1,
		})

		m.logger.InfoContext(ctx, "bid placed",
			slog.String("record_id", id),
			slog.String("bidder", bidder),
			slog.String("amount", amount.String()),
			slog.Int("attempt", attempt+1),
		)
		return m.records.Get(ctx, id)
	}

	// Retry budget spent. The caller should re-fetch and bid again from
	// the fresh state.
	return nil, fmt.Errorf("%w: lost %d commit races", ErrBidTooLow, m.maxBidRetries+1)
}

// GetRecord returns a record by id.
func (m *Manager) GetRecord(ctx context.Context, id string) (*store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.GetRecord")
	defer span.End()

	rec, err := m.records.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return rec, nil
}

// ListParticipated returns records in which the bidder has at least one
// accepted bid.
func (m *Manager) ListParticipated(ctx context.Context, bidderEmail string) ([]store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListParticipated")
	defer span.End()

	recs, err := m.records.ListByBidder(ctx, bidderEmail)
	if err != nil {
		return nil, fmt.Errorf("listing participated records: %w", err)
	}
	return recs, nil
}

// EvaluateClosable determines the terminal outcome of a record whose
// deadline has passed. Before the deadline (or for records that never
// reached approval) it is a read-only no-op. It is idempotent: once a
// record is closed, further calls return the same winner without
// mutating anything. Closing uses the same version guard as bidding, so
// it can never interleave with an in-flight bid commit.
func (m *Manager) EvaluateClosable(ctx context.Context, id string) (*store.Record, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.EvaluateClosable",
		trace.WithAttributes(attribute.String("record_id", id)),
	)
	defer span.End()

	for attempt := 0; attempt <= m.maxBidRetries; attempt++ {
		rec, err := m.records.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("reading record %s: %w", id, err)
		}

		// Closed already, or never opened: nothing to evaluate.
		if rec.Status != store.StatusApproved {
			return rec, nil
		}
		// Not yet closable; not an error.
		if m.clock.Now().UTC().Before(rec.Deadline) {
			return rec, nil
		}

		closedAt := m.clock.Now().UTC()
		winner := rec.HighestBidder
		err = m.records.Close(ctx, id, rec.Version, winner, closedAt)
		if errors.Is(err, store.ErrVersionConflict) {
			// A bid validated just before the deadline committed between
			// our read and the close; re-derive the winner from the
			// fresh history.
			continue
		}
		if errors.Is(err, store.ErrStatusConflict) {
			// Another evaluator closed it first; converge on its result.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("closing record %s: %w", id, err)
		}

		data, _ := json.Marshal(event.ClosedData{
			Winner: winner,
			Amount: rec.CurrentAmount.String(),
		})
		m.appendEvent(ctx, event.Event{
			AggregateID: id,
			Type:        event.AuctionClosed,
			Data:        data,
			Version:     rec.Version + 1,
		})

		m.logger.InfoContext(ctx, "auction closed",
			slog.String("record_id", id),
			slog.String("winner", winner),
			slog.Int("bids", len(rec.Bids)),
		)
		return m.records.Get(ctx, id)
	}

	// Only reachable under sustained bid/close races; the next sweep or
	// read converges it.
	return m.records.Get(ctx, id)
}

// SweepClosable closes every approved record whose deadline has passed.
// It returns the number of records closed. The sweep and the lazy
// per-read evaluation converge to the same winners, since both derive
// the outcome from the committed bid history alone.
func (m *Manager) SweepClosable(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SweepClosable")
	defer span.End()

	expired, err := m.records.ListExpired(ctx, m.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("listing expired records: %w", err)
	}

	closed := 0
	for _, rec := range expired {
		res, evalErr := m.EvaluateClosable(ctx, rec.ID)
		if evalErr != nil {
			m.logger.WarnContext(ctx, "failed to close expired record",
				slog.String("record_id", rec.ID),
				slog.Any("error", evalErr),
			)
			continue
		}
		if res.Status == store.StatusClosed {
			closed++
		}
	}
	return closed, nil
}

// appendEvent records an audit event, best effort. Audit failures never
// fail the operation that produced them.
func (m *Manager) appendEvent(ctx context.Context, e event.Event) {
	if err := m.events.Append(ctx, e); err != nil {
		m.logger.ErrorContext(ctx, "failed to append audit event",
			slog.String("record_id", e.AggregateID),
			slog.String("type", string(e.Type)),
			slog.Any("error", err),
		)
	}
}
