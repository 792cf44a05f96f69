// Package memory provides an in-process store driver. It backs tests and
// single-node development deployments, and implements the same
// version-guarded commit semantics as the postgres driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/craftbay/auction-service/internal/clock"
	"github.com/craftbay/auction-service/internal/config"
	"github.com/craftbay/auction-service/internal/event"
	"github.com/craftbay/auction-service/internal/store"
)

// closerFunc adapts a func() error into an io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func init() {
	store.Register("memory", openMemory)
}

// openMemory is the store.Driver for the "memory" backend.
func openMemory(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	s := NewRecordStore()
	return &store.Repositories{
		Records: s,
		Events:  NewEventStore(clk),
		Closer:  closerFunc(func() error { return nil }),
		Ping:    func(ctx context.Context) error { return nil },
	}, nil
}

// RecordStore implements store.RecordRepository with a mutex-guarded map.
type RecordStore struct {
	mu      sync.Mutex
	records map[string]*store.Record
	order   []string // ids in creation order
}

// NewRecordStore returns an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*store.Record)}
}

func cloneRecord(r *store.Record) *store.Record {
	c := *r
	c.Bids = make([]store.Bid, len(r.Bids))
	copy(c.Bids, r.Bids)
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

func (s *RecordStore) Create(_ context.Context, r *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = cloneRecord(r)
	s.order = append(s.order, r.ID)
	return nil
}

func (s *RecordStore) Get(_ context.Context, id string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRecord(r), nil
}

// list returns clones of records matching keep, in creation order.
func (s *RecordStore) list(keep func(*store.Record) bool) []store.Record {
	out := make([]store.Record, 0)
	for _, id := range s.order {
		r := s.records[id]
		if keep(r) {
			out = append(out, *cloneRecord(r))
		}
	}
	return out
}

func (s *RecordStore) ListByRequester(_ context.Context, email string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *store.Record) bool { return r.Requester.Email == email }), nil
}

func (s *RecordStore) ListByStatus(_ context.Context, status store.Status) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *store.Record) bool { return r.Status == status }), nil
}

func (s *RecordStore) ListActive(_ context.Context, now time.Time) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *store.Record) bool {
		return r.Status == store.StatusApproved && now.Before(r.Deadline)
	}), nil
}

func (s *RecordStore) ListExpired(_ context.Context, now time.Time) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *store.Record) bool {
		return r.Status == store.StatusApproved && !now.Before(r.Deadline)
	}), nil
}

func (s *RecordStore) ListByBidder(_ context.Context, email string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *store.Record) bool {
		for _, b := range r.Bids {
			if b.Bidder == email {
				return true
			}
		}
		return false
	}), nil
}

func (s *RecordStore) SetStatus(_ context.Context, id string, from, to store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status != from {
		return store.ErrStatusConflict
	}
	r.Status = to
	r.Version++
	return nil
}

func (s *RecordStore) AppendBid(_ context.Context, id string, expectedVersion int64, bid store.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status != store.StatusApproved {
		return store.ErrStatusConflict
	}
	if r.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	r.Bids = append(r.Bids, bid)
	r.CurrentAmount = bid.Amount
	r.HighestBidder = bid.Bidder
	r.Version++
	return nil
}

func (s *RecordStore) Close(_ context.Context, id string, expectedVersion int64, winner string, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status != store.StatusApproved {
		return store.ErrStatusConflict
	}
	if r.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	r.Status = store.StatusClosed
	r.Winner = winner
	r.ClosedAt = &closedAt
	r.Version++
	return nil
}

// EventStore implements event.Store in memory.
type EventStore struct {
	mu     sync.Mutex
	events []event.Event
	clock  clock.Clock
}

// NewEventStore returns an empty EventStore.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now().UTC()
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}
