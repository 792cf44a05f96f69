package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftbay/auction-service/internal/store"
	"github.com/craftbay/auction-service/internal/store/postgres"
)

func seedRecord(t *testing.T, repo *postgres.RecordRepo, status store.Status) *store.Record {
	t.Helper()
	rec := &store.Record{
		ID:            uuid.NewString(),
		Status:        status,
		Title:         "walnut desk",
		Description:   "mid-century writing desk",
		Category:      "furniture",
		Condition:     "good",
		BaseAmount:    decimal.NewFromInt(100),
		MinIncrement:  decimal.NewFromInt(10),
		Deadline:      time.Now().UTC().Add(24 * time.Hour),
		Requester:     store.Identity{Email: "seller@example.com", Role: store.RoleSeller},
		CurrentAmount: decimal.NewFromInt(100),
		Version:       1,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("creating record: %v", err)
	}
	return rec
}

func TestRecordRepo_CreateGet(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()

	rec := seedRecord(t, repo, store.StatusPending)

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("getting record: %v", err)
	}
	if got.Title != rec.Title || got.Status != store.StatusPending {
		t.Errorf("got %q/%s, want %q/%s", got.Title, got.Status, rec.Title, store.StatusPending)
	}
	if !got.BaseAmount.Equal(rec.BaseAmount) {
		t.Errorf("base amount = %s, want %s", got.BaseAmount, rec.BaseAmount)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if got.Requester.Email != "seller@example.com" || got.Requester.Role != store.RoleSeller {
		t.Errorf("requester = %+v", got.Requester)
	}
	if len(got.Bids) != 0 {
		t.Errorf("expected no bids, got %d", len(got.Bids))
	}
}

func TestRecordRepo_GetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)

	_, err := repo.Get(context.Background(), uuid.NewString())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRepo_SetStatus(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()

	rec := seedRecord(t, repo, store.StatusPending)

	if err := repo.SetStatus(ctx, rec.ID, store.StatusPending, store.StatusApproved); err != nil {
		t.Fatalf("approving: %v", err)
	}

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("getting record: %v", err)
	}
	if got.Status != store.StatusApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}

	// A second moderation attempt finds the record no longer pending.
	err = repo.SetStatus(ctx, rec.ID, store.StatusPending, store.StatusRejected)
	if !errors.Is(err, store.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	err = repo.SetStatus(ctx, uuid.NewString(), store.StatusPending, store.StatusApproved)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordRepo_AppendBid(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()

	rec := seedRecord(t, repo, store.StatusApproved)

	bid := store.Bid{
		Bidder:   "buyer@example.com",
		Amount:   decimal.NewFromInt(110),
		PlacedAt: time.Now().UTC(),
	}
	if err := repo.AppendBid(ctx, rec.ID, 1, bid); err != nil {
		t.Fatalf("appending bid: %v", err)
	}

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("getting record: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if !got.CurrentAmount.Equal(bid.Amount) {
		t.Errorf("current amount = %s, want %s", got.CurrentAmount, bid.Amount)
	}
	if got.HighestBidder != bid.Bidder {
		t.Errorf("highest bidder = %q, want %q", got.HighestBidder, bid.Bidder)
	}
	if len(got.Bids) != 1 || !got.Bids[0].Amount.Equal(bid.Amount) {
		t.Errorf("bids = %+v", got.Bids)
	}

	// A stale version loses the race.
	err = repo.AppendBid(ctx, rec.ID, 1, store.Bid{
		Bidder:   "other@example.com",
		Amount:   decimal.NewFromInt(120),
		PlacedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestRecordRepo_AppendBidWrongStatus(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()

	rec := seedRecord(t, repo, store.StatusPending)

	err := repo.AppendBid(ctx, rec.ID, 1, store.Bid{
		Bidder:   "buyer@example.com",
		Amount:   decimal.NewFromInt(110),
		PlacedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestRecordRepo_Close(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()

	rec := seedRecord(t, repo, store.StatusApproved)
	closedAt := time.Now().UTC()

	if err := repo.Close(ctx, rec.ID, 1, "buyer@example.com", closedAt); err != nil {
		t.Fatalf("closing: %v", err)
	}

	got, err := repo.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("getting record: %v", err)
	}
	if got.Status != store.StatusClosed {
		t.Errorf("status = %s, want closed", got.Status)
	}
	if got.Winner != "buyer@example.com" {
		t.Errorf("winner = %q", got.Winner)
	}
	if got.ClosedAt == nil {
		t.Error("closed_at not set")
	}

	// Closing twice finds the record no longer approved.
	err = repo.Close(ctx, rec.ID, got.Version, "buyer@example.com", closedAt)
	if !errors.Is(err, store.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestRecordRepo_Lists(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	open := seedRecord(t, repo, store.StatusApproved)
	pending := seedRecord(t, repo, store.StatusPending)

	expired := seedRecord(t, repo, store.StatusApproved)
	if _, err := db.ExecContext(ctx,
		`UPDATE auction_records SET deadline = $1 WHERE id = $2`,
		now.Add(-time.Hour), expired.ID,
	); err != nil {
		t.Fatalf("backdating deadline: %v", err)
	}

	active, err := repo.ListActive(ctx, now)
	if err != nil {
		t.Fatalf("listing active: %v", err)
	}
	if len(active) != 1 || active[0].ID != open.ID {
		t.Errorf("active = %v", ids(active))
	}

	closable, err := repo.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("listing expired: %v", err)
	}
	if len(closable) != 1 || closable[0].ID != expired.ID {
		t.Errorf("expired = %v", ids(closable))
	}

	byStatus, err := repo.ListByStatus(ctx, store.StatusPending)
	if err != nil {
		t.Fatalf("listing by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != pending.ID {
		t.Errorf("pending = %v", ids(byStatus))
	}

	byRequester, err := repo.ListByRequester(ctx, "seller@example.com")
	if err != nil {
		t.Fatalf("listing by requester: %v", err)
	}
	if len(byRequester) != 3 {
		t.Errorf("by requester = %d records, want 3", len(byRequester))
	}
}

func TestRecordRepo_ListByBidder(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewRecordRepo(db)
	ctx := context.Background()

	rec := seedRecord(t, repo, store.StatusApproved)
	seedRecord(t, repo, store.StatusApproved) // never bid on, must not appear

	for i, amount := range []int64{110, 120} {
		err := repo.AppendBid(ctx, rec.ID, int64(i+1), store.Bid{
			Bidder:   "buyer@example.com",
			Amount:   decimal.NewFromInt(amount),
			PlacedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("appending bid %d: %v", i, err)
		}
	}

	got, err := repo.ListByBidder(ctx, "buyer@example.com")
	if err != nil {
		t.Fatalf("listing by bidder: %v", err)
	}
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Errorf("by bidder = %v, want only %s", ids(got), rec.ID)
	}
	if len(got[0].Bids) != 2 {
		t.Errorf("bids = %d, want 2", len(got[0].Bids))
	}

	none, err := repo.ListByBidder(ctx, "stranger@example.com")
	if err != nil {
		t.Fatalf("listing by bidder: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no records, got %v", ids(none))
	}
}

func ids(records []store.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
