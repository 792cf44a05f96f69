package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	AuctionSubmitted Type = "auction.submitted"
	AuctionApproved  Type = "auction.approved"
	AuctionRejected  Type = "auction.rejected"
	AuctionBidPlaced Type = "auction.bid_placed"
	AuctionClosed    Type = "auction.closed"
)

// Event is a single entry in the append-only audit log. The aggregate is
// always an auction record; Version mirrors the record version that
// produced the event, so the log reflects true commit order.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int64           `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// SubmittedData is the payload for AuctionSubmitted events.
type SubmittedData struct {
	Title          string `json:"title"`
	RequesterEmail string `json:"requester_email"`
	RequesterRole  string `json:"requester_role"`
	BaseAmount     string `json:"base_amount"`
	MinIncrement   string `json:"min_increment"`
	Deadline       string `json:"deadline"`
}

// ModeratedData is the payload for AuctionApproved and AuctionRejected.
type ModeratedData struct {
	Status string `json:"status"`
}

// BidPlacedData is the payload for AuctionBidPlaced events.
type BidPlacedData struct {
	Bidder string `json:"bidder"`
	Amount string `json:"amount"`
}

// ClosedData is the payload for AuctionClosed events. Winner is empty
// when the auction closed with no bids.
type ClosedData struct {
	Winner string `json:"winner,omitempty"`
	Amount string `json:"amount,omitempty"`
}
