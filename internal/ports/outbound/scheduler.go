package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExpiryScheduler tracks when each running auction's current lot runs out.
// One deadline per auction; scheduling again replaces it.
type ExpiryScheduler interface {
	ScheduleLotExpiry(ctx context.Context, auctionID uuid.UUID, deadline time.Time) error
	Unschedule(ctx context.Context, auctionID uuid.UUID) error
}

// Metrics records engine activity
type Metrics interface {
	BidAccepted(kind string)
	BidRejected(rule string)
	AutoBidsEmitted(count int)
	CascadeDuration(d time.Duration)
	LotEnded(outcome string)
}
