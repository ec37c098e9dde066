package auction

import (
	"time"

	"vehicle-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current status of an auction
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Auction is a time-boxed session presenting lots one at a time
type Auction struct {
	ID                  uuid.UUID       `json:"id"`
	Title               string          `json:"title"`
	Status              Status          `json:"status"`
	StartTime           *time.Time      `json:"start_time,omitempty"`
	EndTime             *time.Time      `json:"end_time,omitempty"`
	TimerSeconds        int             `json:"timer_seconds"`
	MinBidIncrement     decimal.Decimal `json:"min_bid_increment"`
	CurrentLotLabel     *string         `json:"current_lot_label,omitempty"`
	CurrentLotStartTime *time.Time      `json:"current_lot_start_time,omitempty"`
	ExtendedCount       int             `json:"extended_count"`
	CancelReason        string          `json:"cancel_reason,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsRunning returns true if the auction is currently running
func (a *Auction) IsRunning() bool {
	return a.Status == StatusRunning
}

// IsTerminal returns true once the auction has ended or been cancelled
func (a *Auction) IsTerminal() bool {
	return a.Status == StatusEnded || a.Status == StatusCancelled
}

// AcceptsPreBids is true before the session runs
func (a *Auction) AcceptsPreBids() bool {
	return a.Status == StatusDraft || a.Status == StatusScheduled
}

// Timer is the countdown length of every lot
func (a *Auction) Timer() time.Duration {
	return time.Duration(a.TimerSeconds) * time.Second
}

// Schedule sets the session window and moves a draft to scheduled
func (a *Auction) Schedule(start, end, now time.Time) error {
	if a.Status != StatusDraft && a.Status != StatusScheduled {
		return shared.ErrAuctionNotDraft
	}
	if !start.After(now) {
		return shared.ErrInvalidStartTime
	}
	if !start.Before(end) {
		return shared.ErrInvalidEndTime
	}
	a.StartTime = &start
	a.EndTime = &end
	a.Status = StatusScheduled
	a.UpdatedAt = now
	return nil
}

// CanStart reports whether an explicit start is allowed. A draft qualifies
// only when its window is already valid.
func (a *Auction) CanStart() bool {
	switch a.Status {
	case StatusScheduled:
		return true
	case StatusDraft:
		return a.StartTime != nil && a.EndTime != nil && a.StartTime.Before(*a.EndTime)
	}
	return false
}

// Start moves the auction to running with lotLabel as the current lot
func (a *Auction) Start(lotLabel string, now time.Time) error {
	if !a.CanStart() {
		if a.IsTerminal() {
			return shared.ErrAuctionTerminal
		}
		return shared.ErrAuctionNotStartable
	}
	a.Status = StatusRunning
	a.PointAt(lotLabel, now)
	return nil
}

// PointAt moves the current lot pointer
func (a *Auction) PointAt(lotLabel string, now time.Time) {
	label := lotLabel
	a.CurrentLotLabel = &label
	a.CurrentLotStartTime = &now
	a.UpdatedAt = now
}

// End finishes a running auction and clears the lot pointer
func (a *Auction) End(now time.Time) error {
	if !a.IsRunning() {
		return shared.ErrAuctionNotRunning
	}
	a.Status = StatusEnded
	a.clearPointer()
	a.UpdatedAt = now
	return nil
}

// Extend pushes the end time out while running
func (a *Auction) Extend(minutes int, reason string, now time.Time) error {
	if !a.IsRunning() {
		return shared.ErrAuctionNotRunning
	}
	if minutes <= 0 {
		return shared.ErrExtensionMinutes
	}
	if reason == "" {
		return shared.ErrExtensionReason
	}
	end := now
	if a.EndTime != nil {
		end = *a.EndTime
	}
	end = end.Add(time.Duration(minutes) * time.Minute)
	a.EndTime = &end
	a.ExtendedCount++
	a.UpdatedAt = now
	return nil
}

// Cancel stops the auction from any non-terminal state
func (a *Auction) Cancel(reason string, now time.Time) error {
	if a.IsTerminal() {
		return shared.ErrAuctionTerminal
	}
	if reason == "" {
		return shared.ErrCancelReason
	}
	a.Status = StatusCancelled
	a.CancelReason = reason
	a.clearPointer()
	a.UpdatedAt = now
	return nil
}

func (a *Auction) clearPointer() {
	a.CurrentLotLabel = nil
	a.CurrentLotStartTime = nil
}
