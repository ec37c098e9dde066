package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotEndResult is the outcome of resolving a lot
type LotEndResult struct {
	AuctionID uuid.UUID        `json:"auction_id"`
	LotID     uuid.UUID        `json:"lot_id"`
	Outcome   string           `json:"outcome"`
	WinnerID  *uuid.UUID       `json:"winner_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// AdvanceResult describes what an advance did to an auction
type AdvanceResult struct {
	AuctionID    uuid.UUID       `json:"auction_id"`
	Ended        *LotEndResult   `json:"ended,omitempty"`
	NextLotID    *uuid.UUID      `json:"next_lot_id,omitempty"`
	AuctionEnded bool            `json:"auction_ended"`
	TotalSales   decimal.Decimal `json:"total_sales"`
}
