package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/craftbay/auction-service/internal/store"
)

// Proposal is the input to SubmitRequest: one item offered for auction,
// pending moderation.
type Proposal struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Condition    string          `json:"condition"`
	Dimensions   string          `json:"dimensions,omitempty"`
	Material     string          `json:"material,omitempty"`
	ImageRef     string          `json:"image_ref,omitempty"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	MinIncrement decimal.Decimal `json:"min_increment"`
	Deadline     time.Time       `json:"deadline"`
}

// Validate checks the proposal against the submission rules. now is the
// submission time; the deadline must be strictly after it.
func (p Proposal) Validate(now time.Time) error {
	if p.Title == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if p.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if p.Category == "" {
		return &ValidationError{Field: "category", Reason: "required"}
	}
	if !p.BaseAmount.IsPositive() {
		return &ValidationError{Field: "base_amount", Reason: "must be positive"}
	}
	if !p.MinIncrement.IsPositive() {
		return &ValidationError{Field: "min_increment", Reason: "must be positive"}
	}
	if p.Deadline.IsZero() {
		return &ValidationError{Field: "deadline", Reason: "required"}
	}
	if !p.Deadline.After(now) {
		return &ValidationError{Field: "deadline", Reason: "must be in the future"}
	}
	return nil
}

// record builds the initial pending record for a validated proposal.
func (p Proposal) record(id string, requester store.Identity, now time.Time) *store.Record {
	return &store.Record{
		ID:            id,
		Status:        store.StatusPending,
		Title:         p.Title,
		Description:   p.Description,
		Category:      p.Category,
		Condition:     p.Condition,
		Dimensions:    p.Dimensions,
		Material:      p.Material,
		ImageRef:      p.ImageRef,
		BaseAmount:    p.BaseAmount,
		MinIncrement:  p.MinIncrement,
		Deadline:      p.Deadline,
		Requester:     requester,
		CurrentAmount: p.BaseAmount,
		Version:       1,
		CreatedAt:     now,
	}
}
