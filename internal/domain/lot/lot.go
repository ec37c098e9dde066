package lot

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WinnerStatus tracks a lot from registration to hand-over
type WinnerStatus string

const (
	WinnerStatusPending   WinnerStatus = "pending"
	WinnerStatusActive    WinnerStatus = "active"
	WinnerStatusWon       WinnerStatus = "won"
	WinnerStatusUnsold    WinnerStatus = "unsold"
	WinnerStatusConfirmed WinnerStatus = "confirmed"
	WinnerStatusCompleted WinnerStatus = "completed"
)

// Lot is a single vehicle offered within an auction
type Lot struct {
	ID              uuid.UUID        `json:"id"`
	AuctionID       uuid.UUID        `json:"auction_id"`
	VehicleID       uuid.UUID        `json:"vehicle_id"`
	LotNumber       string           `json:"lot_number"`
	ItemNumber      int              `json:"item_number"`
	MinPreBid       decimal.Decimal  `json:"min_pre_bid"`
	ReservePrice    *decimal.Decimal `json:"reserve_price,omitempty"`
	CurrentPrice    decimal.Decimal  `json:"current_price"`
	IsActive        bool             `json:"is_active"`
	ActiveStartTime *time.Time       `json:"active_start_time,omitempty"`
	LastBidTime     *time.Time       `json:"last_bid_time,omitempty"`
	BidCount        int              `json:"bid_count"`
	WinnerStatus    WinnerStatus     `json:"winner_status"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsPending returns true if the lot has not been activated yet
func (l *Lot) IsPending() bool {
	return l.WinnerStatus == WinnerStatusPending
}

// IsResolved returns true once the lot has an outcome
func (l *Lot) IsResolved() bool {
	switch l.WinnerStatus {
	case WinnerStatusWon, WinnerStatusUnsold, WinnerStatusConfirmed, WinnerStatusCompleted:
		return true
	}
	return false
}

// Prepare seeds the opening price from the highest pre-bid, or minPreBid when there is none
func (l *Lot) Prepare(highestPreBid *decimal.Decimal) {
	seed := l.MinPreBid
	if highestPreBid != nil && highestPreBid.GreaterThan(seed) {
		seed = *highestPreBid
	}
	l.RaisePrice(seed)
}

// Activate makes the lot the live lot and starts its countdown
func (l *Lot) Activate(now time.Time) {
	l.IsActive = true
	l.ActiveStartTime = &now
	l.LastBidTime = nil
	l.WinnerStatus = WinnerStatusActive
	l.UpdatedAt = now
}

// Withdraw returns a lot that was opened but never announced to pending.
// The seeded price is kept.
func (l *Lot) Withdraw(now time.Time) {
	l.IsActive = false
	l.ActiveStartTime = nil
	l.LastBidTime = nil
	l.WinnerStatus = WinnerStatusPending
	l.UpdatedAt = now
}

// Deactivate closes bidding with the given outcome
func (l *Lot) Deactivate(outcome WinnerStatus, now time.Time) {
	l.IsActive = false
	l.WinnerStatus = outcome
	l.UpdatedAt = now
}

// RaisePrice moves the current price up; it never moves down
func (l *Lot) RaisePrice(price decimal.Decimal) bool {
	if price.LessThanOrEqual(l.CurrentPrice) {
		return false
	}
	l.CurrentPrice = price
	return true
}

// RecordBid registers an accepted bid and, for live bids, restarts the countdown
func (l *Lot) RecordBid(amount decimal.Decimal, live bool, now time.Time) {
	l.BidCount++
	l.UpdatedAt = now
	if !live {
		return
	}
	l.RaisePrice(amount)
	l.LastBidTime = &now
}

// ReserveMet reports whether amount satisfies the reserve price
func (l *Lot) ReserveMet(amount decimal.Decimal) bool {
	return l.ReservePrice == nil || amount.GreaterThanOrEqual(*l.ReservePrice)
}

// TimerReference is the instant the countdown is measured from
func (l *Lot) TimerReference() *time.Time {
	if l.LastBidTime != nil {
		return l.LastBidTime
	}
	return l.ActiveStartTime
}

// Remaining returns the time left on the countdown, floored at zero
func (l *Lot) Remaining(timer time.Duration, now time.Time) time.Duration {
	ref := l.TimerReference()
	if ref == nil {
		return timer
	}
	left := timer - now.Sub(*ref)
	if left < 0 {
		return 0
	}
	return left
}

// Expired is the pure expiry predicate: now - reference >= timer
func (l *Lot) Expired(timer time.Duration, now time.Time) bool {
	ref := l.TimerReference()
	if !l.IsActive || ref == nil {
		return false
	}
	return now.Sub(*ref) >= timer
}

// Deadline is the instant the countdown reaches zero
func (l *Lot) Deadline(timer time.Duration) *time.Time {
	ref := l.TimerReference()
	if ref == nil {
		return nil
	}
	deadline := ref.Add(timer)
	return &deadline
}
