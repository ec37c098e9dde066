package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type distinguishes how a bid entered the ledger
type Type string

const (
	TypePreBid   Type = "pre_bid"
	TypeRegular  Type = "regular"
	TypeProxyBid Type = "proxy_bid"
	TypeAutoBid  Type = "auto_bid"
)

// Status represents the status of a bid
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusRetracted Status = "retracted"
)

// Bid is one row of a lot's ledger
type Bid struct {
	ID             uuid.UUID        `json:"id"`
	LotID          uuid.UUID        `json:"lot_id"`
	BidderID       uuid.UUID        `json:"bidder_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Type           Type             `json:"bid_type"`
	IsPreBid       bool             `json:"is_pre_bid"`
	IsProxy        bool             `json:"is_proxy"`
	ProxyMax       *decimal.Decimal `json:"proxy_max,omitempty"`
	ValidUntil     *time.Time       `json:"valid_until,omitempty"`
	ParentBidID    *uuid.UUID       `json:"parent_bid_id,omitempty"`
	SequenceNumber int              `json:"sequence_number"`
	Status         Status           `json:"status"`
	PlacedAt       time.Time        `json:"placed_at"`
	// PriorityAt orders equal amounts; auto-bids inherit it from their proxy.
	PriorityAt time.Time `json:"priority_at"`
}

// New builds a placed bid of the given type
func New(lotID, bidderID uuid.UUID, amount decimal.Decimal, kind Type, now time.Time) *Bid {
	return &Bid{
		ID:         uuid.New(),
		LotID:      lotID,
		BidderID:   bidderID,
		Amount:     amount,
		Type:       kind,
		IsPreBid:   kind == TypePreBid,
		IsProxy:    kind == TypeProxyBid,
		Status:     StatusPlaced,
		PlacedAt:   now,
		PriorityAt: now,
	}
}

// NewAutoBid spawns an auto-bid on behalf of a proxy
func NewAutoBid(parent *Bid, amount decimal.Decimal, sequence int, now time.Time) *Bid {
	parentID := parent.ID
	return &Bid{
		ID:             uuid.New(),
		LotID:          parent.LotID,
		BidderID:       parent.BidderID,
		Amount:         amount,
		Type:           TypeAutoBid,
		ParentBidID:    &parentID,
		SequenceNumber: sequence,
		Status:         StatusPlaced,
		PlacedAt:       now,
		PriorityAt:     parent.PriorityAt,
	}
}

// IsLive reports whether the bid was placed during the running session
func (b *Bid) IsLive() bool {
	return b.Type == TypeRegular || b.Type == TypeProxyBid || b.Type == TypeAutoBid
}

// IsPlaced returns true if the bid has not been retracted
func (b *Bid) IsPlaced() bool {
	return b.Status == StatusPlaced
}

// CanCascade reports whether a proxy bid may still spawn auto-bids at now
func (b *Bid) CanCascade(now time.Time) bool {
	if b.Type != TypeProxyBid || !b.IsPlaced() || b.ProxyMax == nil {
		return false
	}
	return b.ValidUntil == nil || now.Before(*b.ValidUntil)
}

// Retract flips a placed bid to retracted
func (b *Bid) Retract() bool {
	if b.Status == StatusRetracted {
		return false
	}
	b.Status = StatusRetracted
	return true
}

// Outranks reports whether b beats other in ledger order:
// higher amount first, then earlier priority, then lower sequence.
func (b *Bid) Outranks(other *Bid) bool {
	if other == nil {
		return true
	}
	if c := b.Amount.Cmp(other.Amount); c != 0 {
		return c > 0
	}
	if !b.PriorityAt.Equal(other.PriorityAt) {
		return b.PriorityAt.Before(other.PriorityAt)
	}
	return b.SequenceNumber < other.SequenceNumber
}
