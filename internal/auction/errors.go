package auction

import (
	"errors"
	"fmt"
)

// Errors returned by auction operations. All are scoped to a single
// operation on a single record; none is fatal to the process.
var (
	// ErrNotFound means no record exists with the given id.
	ErrNotFound = errors.New("auction record not found")
	// ErrInvalidState means the record's status forbids the operation,
	// e.g. moderating a non-pending record or invoicing an open one.
	ErrInvalidState = errors.New("operation not allowed in current record status")
	// ErrAuctionNotOpen means a bid was attempted outside the
	// approved-and-before-deadline window.
	ErrAuctionNotOpen = errors.New("auction is not open for bidding")
	// ErrBidTooLow means the amount fails the current-amount-plus-increment
	// rule, including after the optimistic retry budget is spent.
	ErrBidTooLow = errors.New("bid is below the required minimum")
	// ErrSelfBid means the requester tried to bid on their own item.
	ErrSelfBid = errors.New("cannot bid on your own auction")
)

// ValidationError reports a malformed or out-of-range proposal field.
// Field names the offending input so callers can highlight it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
