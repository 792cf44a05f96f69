package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftbay/auction-service/internal/store"
)

// InvoiceData is the immutable snapshot of a won auction that an
// external document renderer turns into a PDF. Assembling it performs
// no mutation.
type InvoiceData struct {
	Number      string          `json:"number"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Condition   string          `json:"condition"`
	Winner      string          `json:"winner"`
	Requester   store.Identity  `json:"requester"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	AuctionDate time.Time       `json:"auction_date"`
	EndDate     time.Time       `json:"end_date"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// AssembleInvoiceData builds the invoice snapshot for a closed, won
// record. Unclosed records and no-winner closes return ErrInvalidState.
func (m *Manager) AssembleInvoiceData(ctx context.Context, id string) (*InvoiceData, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.AssembleInvoiceData",
		trace.WithAttributes(attribute.String("record_id", id)),
	)
	defer span.End()

	rec, err := m.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != store.StatusClosed || rec.Winner == "" {
		return nil, ErrInvalidState
	}

	var closedAt time.Time
	if rec.ClosedAt != nil {
		closedAt = *rec.ClosedAt
	}

	return &InvoiceData{
		Number:      invoiceNumber(rec.ID),
		Title:       rec.Title,
		Description: rec.Description,
		Category:    rec.Category,
		Condition:   rec.Condition,
		Winner:      rec.Winner,
		Requester:   rec.Requester,
		FinalAmount: rec.CurrentAmount,
		AuctionDate: rec.CreatedAt,
		EndDate:     rec.Deadline,
		ClosedAt:    closedAt,
	}, nil
}

// invoiceNumber derives a short human-readable invoice reference from
// the record id.
func invoiceNumber(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("AUC-%s", id)
}
