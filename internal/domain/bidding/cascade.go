package bidding

import (
	"time"

	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// MaxCascadePasses bounds the fixed-point loop. Every pass either raises the
// price or hands an equal price to an earlier proxy, so real cascades stop
// long before this.
const MaxCascadePasses = 10000

// CascadeInput is the lot state right after a live bid was accepted
type CascadeInput struct {
	Price        decimal.Decimal
	Leader       *bid.Bid
	Proxies      []*bid.Bid
	Calculator   Calculator
	NextSequence int
	Now          time.Time
}

// CascadeResult lists the auto-bids emitted, in order
type CascadeResult struct {
	AutoBids []*bid.Bid
	Price    decimal.Decimal
	Leader   *bid.Bid
	Passes   int
}

// Cascade advances standing proxies until none can improve on the leader.
// A proxy bids min(proxyMax, price + increment). It takes the lead when that
// beats the price, or matches it while the proxy predates the leading bid.
// Each proxy emits at most one auto-bid per pass.
func Cascade(in CascadeInput) (CascadeResult, error) {
	result := CascadeResult{Price: in.Price, Leader: in.Leader}
	sequence := in.NextSequence

	for result.Passes < MaxCascadePasses {
		result.Passes++
		emitted := false

		for _, proxy := range in.Proxies {
			if !proxy.CanCascade(in.Now) {
				continue
			}
			if result.Leader != nil && result.Leader.BidderID == proxy.BidderID {
				continue
			}

			next := decimal.Min(*proxy.ProxyMax, result.Price.Add(in.Calculator.Increment(result.Price)))
			if !takesLead(proxy, next, result.Price, result.Leader) {
				continue
			}

			auto := bid.NewAutoBid(proxy, next, sequence, in.Now)
			sequence++
			result.AutoBids = append(result.AutoBids, auto)
			result.Price = next
			result.Leader = auto
			emitted = true
		}

		if !emitted {
			return result, nil
		}
	}

	return result, shared.ErrCascadeRunaway
}

func takesLead(proxy *bid.Bid, next, price decimal.Decimal, leader *bid.Bid) bool {
	if next.GreaterThan(price) {
		return true
	}
	return next.Equal(price) && leader != nil && proxy.PriorityAt.Before(leader.PriorityAt)
}
