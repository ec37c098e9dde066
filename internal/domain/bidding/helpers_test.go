package bidding

import (
	"time"

	"vehicle-auction-service/internal/domain/bid"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	lotID = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	t0    = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
)

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func moneyPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func liveBid(bidder uuid.UUID, amount int64, at time.Time) *bid.Bid {
	return bid.New(lotID, bidder, money(amount), bid.TypeRegular, at)
}

func proxyBid(bidder uuid.UUID, amount, max int64, at time.Time) *bid.Bid {
	b := bid.New(lotID, bidder, money(amount), bid.TypeProxyBid, at)
	b.ProxyMax = moneyPtr(max)
	return b
}

func preBid(bidder uuid.UUID, amount int64, at time.Time) *bid.Bid {
	return bid.New(lotID, bidder, money(amount), bid.TypePreBid, at)
}
