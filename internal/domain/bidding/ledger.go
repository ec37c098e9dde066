package bidding

import (
	"sort"
	"time"

	"vehicle-auction-service/internal/domain/bid"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Highest returns the top placed bid accepted by keep, or nil
func Highest(bids []*bid.Bid, keep func(*bid.Bid) bool) *bid.Bid {
	var top *bid.Bid
	for _, b := range bids {
		if !b.IsPlaced() || (keep != nil && !keep(b)) {
			continue
		}
		if b.Outranks(top) {
			top = b
		}
	}
	return top
}

// HighestLive is the binding candidate: pre-bids never bind
func HighestLive(bids []*bid.Bid) *bid.Bid {
	return Highest(bids, func(b *bid.Bid) bool { return b.IsLive() })
}

// HighestPreBidAmount returns the best pre-bid amount, or nil without pre-bids
func HighestPreBidAmount(bids []*bid.Bid) *decimal.Decimal {
	top := Highest(bids, func(b *bid.Bid) bool { return b.IsPreBid })
	if top == nil {
		return nil
	}
	amount := top.Amount
	return &amount
}

// CountBidderSince counts a bidder's own placements at or after since.
// Auto-bids are generated by the engine and do not count.
func CountBidderSince(bids []*bid.Bid, bidderID uuid.UUID, since time.Time) int {
	count := 0
	for _, b := range bids {
		if b.BidderID != bidderID || b.Type == bid.TypeAutoBid {
			continue
		}
		if !b.PlacedAt.Before(since) {
			count++
		}
	}
	return count
}

// StandingProxies returns the proxies still able to cascade at now, oldest first
func StandingProxies(bids []*bid.Bid, now time.Time) []*bid.Bid {
	var proxies []*bid.Bid
	for _, b := range bids {
		if b.CanCascade(now) {
			proxies = append(proxies, b)
		}
	}
	sort.SliceStable(proxies, func(i, j int) bool {
		return proxies[i].PriorityAt.Before(proxies[j].PriorityAt)
	})
	return proxies
}
