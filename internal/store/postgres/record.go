package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/craftbay/auction-service/internal/store"
)

// recordColumns lists auction_records columns in the order recordRow
// expects. Kept explicit so schema additions fail loudly in tests
// instead of silently scanning into the wrong field.
const recordColumns = `id, status, title, description, category, condition, dimensions, material,
	image_ref, base_amount, min_increment, deadline, requester_email, requester_role,
	current_amount, highest_bidder, winner, version, created_at, closed_at`

// recordRow is the flat scan target for auction_records.
type recordRow struct {
	ID             string          `db:"id"`
	Status         string          `db:"status"`
	Title          string          `db:"title"`
	Description    string          `db:"description"`
	Category       string          `db:"category"`
	Condition      string          `db:"condition"`
	Dimensions     string          `db:"dimensions"`
	Material       string          `db:"material"`
	ImageRef       string          `db:"image_ref"`
	BaseAmount     decimal.Decimal `db:"base_amount"`
	MinIncrement   decimal.Decimal `db:"min_increment"`
	Deadline       time.Time       `db:"deadline"`
	RequesterEmail string          `db:"requester_email"`
	RequesterRole  string          `db:"requester_role"`
	CurrentAmount  decimal.Decimal `db:"current_amount"`
	HighestBidder  string          `db:"highest_bidder"`
	Winner         string          `db:"winner"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	ClosedAt       *time.Time      `db:"closed_at"`
}

func (row *recordRow) record() store.Record {
	return store.Record{
		ID:            row.ID,
		Status:        store.Status(row.Status),
		Title:         row.Title,
		Description:   row.Description,
		Category:      row.Category,
		Condition:     row.Condition,
		Dimensions:    row.Dimensions,
		Material:      row.Material,
		ImageRef:      row.ImageRef,
		BaseAmount:    row.BaseAmount,
		MinIncrement:  row.MinIncrement,
		Deadline:      row.Deadline,
		Requester:     store.Identity{Email: row.RequesterEmail, Role: store.Role(row.RequesterRole)},
		CurrentAmount: row.CurrentAmount,
		HighestBidder: row.HighestBidder,
		Winner:        row.Winner,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		ClosedAt:      row.ClosedAt,
	}
}

// RecordRepo implements store.RecordRepository with sqlx.
type RecordRepo struct {
	db *sqlx.DB
}

// NewRecordRepo returns a new RecordRepo.
func NewRecordRepo(db *sqlx.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) Create(ctx context.Context, rec *store.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auction_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		rec.ID, rec.Status, rec.Title, rec.Description, rec.Category, rec.Condition,
		rec.Dimensions, rec.Material, rec.ImageRef, rec.BaseAmount, rec.MinIncrement,
		rec.Deadline, rec.Requester.Email, rec.Requester.Role, rec.CurrentAmount,
		rec.HighestBidder, rec.Winner, rec.Version, rec.CreatedAt, rec.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

func (r *RecordRepo) Get(ctx context.Context, id string) (*store.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+recordColumns+` FROM auction_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	rec := row.record()
	if err := r.loadBids(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecordRepo) ListByRequester(ctx context.Context, email string) ([]store.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM auction_records
		 WHERE requester_email = $1 ORDER BY created_at ASC`, email)
}

func (r *RecordRepo) ListByStatus(ctx context.Context, status store.Status) ([]store.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM auction_records
		 WHERE status = $1 ORDER BY created_at ASC`, status)
}

func (r *RecordRepo) ListActive(ctx context.Context, now time.Time) ([]store.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM auction_records
		 WHERE status = 'approved' AND deadline > $1 ORDER BY created_at ASC`, now)
}

func (r *RecordRepo) ListExpired(ctx context.Context, now time.Time) ([]store.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM auction_records
		 WHERE status = 'approved' AND deadline <= $1 ORDER BY created_at ASC`, now)
}

func (r *RecordRepo) ListByBidder(ctx context.Context, email string) ([]store.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM auction_records
		 WHERE id IN (SELECT record_id FROM record_bids WHERE bidder_email = $1)
		 ORDER BY created_at ASC`, email)
}

func (r *RecordRepo) SetStatus(ctx context.Context, id string, from, to store.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auction_records SET status = $1, version = version + 1
		 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, store.ErrStatusConflict)
	}
	return nil
}

func (r *RecordRepo) AppendBid(ctx context.Context, id string, expectedVersion int64, bid store.Bid) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The version guard makes the whole read-validate-commit cycle
	// optimistic: any interleaved bid or close bumps the version and
	// this update matches zero rows.
	result, err := tx.ExecContext(ctx,
		`UPDATE auction_records
		 SET current_amount = $1, highest_bidder = $2, version = version + 1
		 WHERE id = $3 AND version = $4 AND status = 'approved'`,
		bid.Amount, bid.Bidder, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("committing bid: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, store.ErrVersionConflict)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO record_bids (record_id, bidder_email, amount, placed_at)
		 VALUES ($1, $2, $3, $4)`,
		id, bid.Bidder, bid.Amount, bid.PlacedAt,
	); err != nil {
		return fmt.Errorf("inserting bid: %w", err)
	}

	return tx.Commit()
}

func (r *RecordRepo) Close(ctx context.Context, id string, expectedVersion int64, winner string, closedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auction_records
		 SET status = 'closed', winner = $1, closed_at = $2, version = version + 1
		 WHERE id = $3 AND version = $4 AND status = 'approved'`,
		winner, closedAt, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("closing record: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, store.ErrVersionConflict)
	}
	return nil
}

// missReason disambiguates a zero-row conditional update: the record is
// missing, in the wrong status, or at a different version.
func (r *RecordRepo) missReason(ctx context.Context, id string, conflict error) error {
	var status string
	err := r.db.GetContext(ctx, &status,
		`SELECT status FROM auction_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking record: %w", err)
	}
	if conflict == store.ErrVersionConflict && status != string(store.StatusApproved) {
		return store.ErrStatusConflict
	}
	return conflict
}

func (r *RecordRepo) list(ctx context.Context, query string, args ...any) ([]store.Record, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	records := make([]store.Record, 0, len(rows))
	for i := range rows {
		rec := rows[i].record()
		if err := r.loadBids(ctx, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *RecordRepo) loadBids(ctx context.Context, rec *store.Record) error {
	err := r.db.SelectContext(ctx, &rec.Bids,
		`SELECT bidder_email, amount, placed_at FROM record_bids
		 WHERE record_id = $1 ORDER BY id ASC`, rec.ID)
	if err != nil {
		return fmt.Errorf("loading bids: %w", err)
	}
	return nil
}
