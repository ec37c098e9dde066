package lot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var activation = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestLot_PrepareSeedsFromMinPreBid(t *testing.T) {
	l := &Lot{MinPreBid: decimal.NewFromInt(1500)}
	l.Prepare(nil)
	assert.Equal(t, "1500", l.CurrentPrice.String())
}

func TestLot_PrepareSeedsFromHighestPreBid(t *testing.T) {
	l := &Lot{MinPreBid: decimal.NewFromInt(1500)}
	highest := decimal.NewFromInt(2100)
	l.Prepare(&highest)
	assert.Equal(t, "2100", l.CurrentPrice.String())
}

func TestLot_PriceIsMonotonic(t *testing.T) {
	l := &Lot{CurrentPrice: decimal.NewFromInt(900)}

	assert.False(t, l.RaisePrice(decimal.NewFromInt(800)))
	assert.Equal(t, "900", l.CurrentPrice.String())
	assert.True(t, l.RaisePrice(decimal.NewFromInt(1000)))
	assert.Equal(t, "1000", l.CurrentPrice.String())
}

func TestLot_TimerResetsOnBid(t *testing.T) {
	timer := 10 * time.Second
	l := &Lot{}
	l.Activate(activation)

	assert.Equal(t, 2*time.Second, l.Remaining(timer, activation.Add(8*time.Second)))

	l.RecordBid(decimal.NewFromInt(700), true, activation.Add(8*time.Second))

	assert.Equal(t, timer, l.Remaining(timer, activation.Add(8*time.Second)))
	assert.False(t, l.Expired(timer, activation.Add(17*time.Second)))
	assert.True(t, l.Expired(timer, activation.Add(18*time.Second)))
	assert.Equal(t, activation.Add(18*time.Second), *l.Deadline(timer))
}

func TestLot_RemainingFloorsAtZero(t *testing.T) {
	l := &Lot{}
	l.Activate(activation)

	assert.Equal(t, time.Duration(0), l.Remaining(10*time.Second, activation.Add(time.Minute)))
	assert.True(t, l.Expired(10*time.Second, activation.Add(10*time.Second)))
}

func TestLot_PreBidDoesNotTouchTimerOrPrice(t *testing.T) {
	l := &Lot{CurrentPrice: decimal.Zero}
	l.RecordBid(decimal.NewFromInt(2000), false, activation)

	assert.Equal(t, 1, l.BidCount)
	assert.Nil(t, l.LastBidTime)
	assert.True(t, l.CurrentPrice.IsZero())
}

func TestLot_InactiveLotNeverExpires(t *testing.T) {
	l := &Lot{}
	assert.False(t, l.Expired(time.Second, activation))

	l.Activate(activation)
	l.Deactivate(WinnerStatusUnsold, activation)
	assert.False(t, l.Expired(time.Second, activation.Add(time.Hour)))
	assert.True(t, l.IsResolved())
}

func TestLot_ReserveMet(t *testing.T) {
	reserve := decimal.NewFromInt(5000)
	l := &Lot{ReservePrice: &reserve}

	assert.False(t, l.ReserveMet(decimal.NewFromInt(4000)))
	assert.True(t, l.ReserveMet(decimal.NewFromInt(5000)))
	assert.True(t, (&Lot{}).ReserveMet(decimal.NewFromInt(1)))
}
