package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Errors returned by record repositories. The manager translates these
// into its caller-facing taxonomy.
var (
	// ErrNotFound means no record exists with the given id.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means a conditional write lost a race: the
	// record's version moved past the expected value between read and
	// commit. Callers re-read and retry.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrStatusConflict means a status transition found the record in a
	// different status than required (e.g. approving a non-pending record).
	ErrStatusConflict = errors.New("record status conflict")
)

// Status is the lifecycle state of an auction record. Transitions are
// monotonic: pending → approved|rejected, approved → closed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusClosed   Status = "closed"
)

// Role is the kind of account a requester holds. Roles are issued by the
// external identity collaborator; the ledger only records them.
type Role string

const (
	RoleUser       Role = "user"
	RoleInstructor Role = "instructor"
	RoleSeller     Role = "seller"
)

// Identity is an opaque principal supplied by the auth collaborator.
type Identity struct {
	Email string `json:"email" db:"email"`
	Role  Role   `json:"role" db:"role"`
}

// Bid is a single accepted bid. The bids slice on a record is append-only
// and its order is commit order.
type Bid struct {
	Bidder   string          `json:"bidder" db:"bidder_email"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	PlacedAt time.Time       `json:"placed_at" db:"placed_at"`
}

// Record is one proposed item together with its full bidding history.
type Record struct {
	ID     string `json:"id" db:"id"`
	Status Status `json:"status" db:"status"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
	Condition   string `json:"condition" db:"condition"`
	Dimensions  string `json:"dimensions,omitempty" db:"dimensions"`
	Material    string `json:"material,omitempty" db:"material"`
	ImageRef    string `json:"image_ref,omitempty" db:"image_ref"`

	BaseAmount   decimal.Decimal `json:"base_amount" db:"base_amount"`
	MinIncrement decimal.Decimal `json:"min_increment" db:"min_increment"`
	Deadline     time.Time       `json:"deadline" db:"deadline"`

	Requester Identity `json:"requester"`

	CurrentAmount decimal.Decimal `json:"current_amount" db:"current_amount"`
	HighestBidder string          `json:"highest_bidder,omitempty" db:"highest_bidder"`
	Bids          []Bid           `json:"bids"`

	// Winner is set exactly once, when the record transitions to closed.
	// Empty on a closed record means the auction ended with no bids.
	Winner string `json:"winner,omitempty" db:"winner"`

	// Version guards every mutation. A conditional write succeeds only if
	// the stored version still equals the version the caller read.
	Version int64 `json:"version" db:"version"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// HighestBid returns the last accepted bid, or nil if there are none.
func (r *Record) HighestBid() *Bid {
	if len(r.Bids) == 0 {
		return nil
	}
	return &r.Bids[len(r.Bids)-1]
}

// RecordRepository defines auction record persistence. Every mutating
// operation is a single atomic compare-and-commit against one record.
type RecordRepository interface {
	// Create persists a new record. The caller assigns the id.
	Create(ctx context.Context, r *Record) error

	// Get returns a record with its full bid history.
	Get(ctx context.Context, id string) (*Record, error)

	// ListByRequester returns records created by the identity, in
	// creation order, any status.
	ListByRequester(ctx context.Context, email string) ([]Record, error)

	// ListByStatus returns records in the given status, creation order.
	ListByStatus(ctx context.Context, status Status) ([]Record, error)

	// ListActive returns approved records whose deadline is after now.
	ListActive(ctx context.Context, now time.Time) ([]Record, error)

	// ListExpired returns approved records whose deadline is at or
	// before now, i.e. candidates for closing.
	ListExpired(ctx context.Context, now time.Time) ([]Record, error)

	// ListByBidder returns records in which the bidder appears in the
	// bid history.
	ListByBidder(ctx context.Context, email string) ([]Record, error)

	// SetStatus atomically transitions a record from one status to
	// another. Returns ErrStatusConflict if the record is not in "from",
	// so one-shot moderation surfaces double submissions instead of
	// silently succeeding.
	SetStatus(ctx context.Context, id string, from, to Status) error

	// AppendBid commits a bid: appends it to the history and updates
	// current_amount, highest_bidder and version in one atomic step,
	// guarded by expectedVersion. Returns ErrVersionConflict if another
	// writer committed first.
	AppendBid(ctx context.Context, id string, expectedVersion int64, bid Bid) error

	// Close transitions an approved record to closed and fixes the
	// winner, guarded by expectedVersion so a close can never interleave
	// with an in-flight bid commit.
	Close(ctx context.Context, id string, expectedVersion int64, winner string, closedAt time.Time) error
}
