package bidding

import (
	"fmt"
	"time"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/lot"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rule names a single admissibility check
type Rule string

const (
	RuleLotExists      Rule = "lot_exists"
	RuleBidType        Rule = "bid_type"
	RulePreBidWindow   Rule = "pre_bid_window"
	RuleAuctionRunning Rule = "auction_running"
	RuleLotActive      Rule = "lot_active"
	RuleLotExpired     Rule = "lot_expired"
	RuleAmountPositive Rule = "amount_positive"
	RuleAmountScale    Rule = "amount_scale"
	RuleMinimumAmount  Rule = "minimum_amount"
	RuleProxyMax       Rule = "proxy_max"
	RuleProxyCeiling   Rule = "proxy_ceiling"
	RuleProxyValidity  Rule = "proxy_validity"
	RuleRateLimit      Rule = "rate_limit"
)

// Violation is one failed rule with a message a client can show
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// Proposal is a bid a caller wants to place
type Proposal struct {
	BidderID uuid.UUID
	Kind     bid.Type
	Amount   decimal.Decimal
	ProxyMax *decimal.Decimal
	// ValidUntil bounds how long a proxy keeps answering; nil means the whole lot.
	ValidUntil *time.Time
}

// MoneyScale is the number of decimal places an amount may carry
const MoneyScale = 2

// State is everything the validator needs to know about the target lot
type State struct {
	Auction *auction.Auction
	Lot     *lot.Lot
	// HighestPreBid is the reference price for pre-bids.
	HighestPreBid *decimal.Decimal
	// RecentBids is the bidder's own count on this lot inside the rate window.
	RecentBids int
	// Expired is true once the active lot's countdown has run out.
	Expired bool
	Now     time.Time
}

// Policy holds the tunable limits
type Policy struct {
	ProxyCeiling decimal.Decimal
	RateLimit    int
	RateWindow   time.Duration
}

// Result is the structured verdict; never collapse it to a bool at the boundary
type Result struct {
	Valid      bool            `json:"valid"`
	Violations []Violation     `json:"violations,omitempty"`
	Minimum    decimal.Decimal `json:"minimum"`
	Suggested  decimal.Decimal `json:"suggested"`
}

// Rules returns the violated rule names
func (r Result) Rules() []Rule {
	rules := make([]Rule, 0, len(r.Violations))
	for _, v := range r.Violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

// Has reports whether rule was violated
func (r Result) Has(rule Rule) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Validator checks proposals against lot state
type Validator struct {
	Calculator Calculator
	Policy     Policy
}

// ReferencePrice is the price a proposal of kind must beat
func ReferencePrice(kind bid.Type, state State) decimal.Decimal {
	if kind == bid.TypePreBid {
		if state.HighestPreBid != nil {
			return *state.HighestPreBid
		}
		return decimal.Zero
	}
	return state.Lot.CurrentPrice
}

// Validate runs the checks in order: lot, window, minimum, proxy, rate.
func (v Validator) Validate(p Proposal, state State) Result {
	if state.Lot == nil || state.Auction == nil {
		return Result{Violations: []Violation{{Rule: RuleLotExists, Message: "lot does not exist"}}}
	}

	var violations []Violation
	add := func(rule Rule, format string, args ...interface{}) {
		violations = append(violations, Violation{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	switch p.Kind {
	case bid.TypePreBid:
		if !state.Auction.AcceptsPreBids() {
			add(RulePreBidWindow, "pre-bids are closed once the auction is %s", state.Auction.Status)
		}
	case bid.TypeRegular, bid.TypeProxyBid:
		if !state.Auction.IsRunning() {
			add(RuleAuctionRunning, "auction is %s", state.Auction.Status)
		} else if !state.Lot.IsActive || state.Auction.CurrentLotLabel == nil || *state.Auction.CurrentLotLabel != state.Lot.LotNumber {
			add(RuleLotActive, "lot %s is not the active lot", state.Lot.LotNumber)
		} else if state.Expired {
			add(RuleLotExpired, "lot %s has closed", state.Lot.LotNumber)
		}
	default:
		add(RuleBidType, "bid type %q cannot be placed directly", p.Kind)
	}

	minimum := v.Calculator.MinimumBid(ReferencePrice(p.Kind, state), state.Lot.MinPreBid)

	if !p.Amount.IsPositive() {
		add(RuleAmountPositive, "amount must be greater than 0")
	} else if p.Amount.LessThan(minimum) {
		add(RuleMinimumAmount, "amount %s is below the minimum %s", p.Amount, minimum)
	}

	if !fitsScale(p.Amount) || (p.ProxyMax != nil && !fitsScale(*p.ProxyMax)) {
		add(RuleAmountScale, "amounts may carry at most %d decimal places", MoneyScale)
	}

	if p.Kind == bid.TypeProxyBid {
		switch {
		case p.ProxyMax == nil || !p.ProxyMax.GreaterThan(p.Amount):
			add(RuleProxyMax, "proxy maximum must exceed the bid amount")
		case v.Policy.ProxyCeiling.IsPositive() && p.ProxyMax.GreaterThan(v.Policy.ProxyCeiling):
			add(RuleProxyCeiling, "proxy maximum exceeds the ceiling %s", v.Policy.ProxyCeiling)
		}
		if p.ValidUntil != nil && !p.ValidUntil.After(state.Now) {
			add(RuleProxyValidity, "proxy validity must end in the future")
		}
	}

	if v.Policy.RateLimit > 0 && state.RecentBids >= v.Policy.RateLimit {
		add(RuleRateLimit, "no more than %d bids per %s on one lot", v.Policy.RateLimit, v.Policy.RateWindow)
	}

	return Result{
		Valid:      len(violations) == 0,
		Violations: violations,
		Minimum:    minimum,
		Suggested:  minimum.Ceil(),
	}
}

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}
