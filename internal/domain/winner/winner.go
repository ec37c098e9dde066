package winner

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Winner binds a resolved lot to its winning bid
type Winner struct {
	ID         uuid.UUID       `json:"id"`
	LotID      uuid.UUID       `json:"lot_id"`
	BidID      uuid.UUID       `json:"bid_id"`
	BidderID   uuid.UUID       `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	AssignedAt time.Time       `json:"assigned_at"`
	// PaymentID is owned by the payment subsystem.
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}

// SameOutcome reports whether two winner records describe the same result
func (w *Winner) SameOutcome(other *Winner) bool {
	return w.LotID == other.LotID && w.BidID == other.BidID && w.Amount.Equal(other.Amount)
}
