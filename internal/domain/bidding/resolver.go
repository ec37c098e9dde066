package bidding

import (
	"time"

	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/domain/winner"

	"github.com/google/uuid"
)

// Resolution is the outcome of closing a lot
type Resolution struct {
	Outcome   lot.WinnerStatus
	Candidate *bid.Bid
	Winner    *winner.Winner
}

// Resolve picks the binding bid for l: the highest placed live bid, kept only
// if it meets the reserve. Without bids, or below reserve, the lot is unsold.
func Resolve(l *lot.Lot, bids []*bid.Bid, now time.Time) Resolution {
	candidate := HighestLive(bids)
	if candidate == nil {
		return Resolution{Outcome: lot.WinnerStatusUnsold}
	}
	if !l.ReserveMet(candidate.Amount) {
		return Resolution{Outcome: lot.WinnerStatusUnsold, Candidate: candidate}
	}
	return Resolution{
		Outcome:   lot.WinnerStatusWon,
		Candidate: candidate,
		Winner: &winner.Winner{
			ID:         uuid.New(),
			LotID:      l.ID,
			BidID:      candidate.ID,
			BidderID:   candidate.BidderID,
			Amount:     candidate.Amount,
			AssignedAt: now,
		},
	}
}

// Reconcile checks a fresh resolution against a winner already on record.
// A matching record is returned so the caller reuses it; a different one is fatal.
func Reconcile(existing *winner.Winner, res Resolution) (*winner.Winner, error) {
	if existing == nil {
		return res.Winner, nil
	}
	if res.Winner == nil || !existing.SameOutcome(res.Winner) {
		return nil, shared.ErrWinnerMismatch
	}
	return existing, nil
}
