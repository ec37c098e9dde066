package app

import (
	"testing"
	"time"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/ports/inbound"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAuction_Defaults(t *testing.T) {
	h := newHarness(t, defaultPolicy())

	a, err := h.auctions.CreateAuction(h.ctx, inbound.CreateAuctionRequest{Title: "Sale"})
	require.NoError(t, err)
	assert.Equal(t, auction.StatusDraft, a.Status)
	assert.Equal(t, 10, a.TimerSeconds)

	_, err = h.auctions.CreateAuction(h.ctx, inbound.CreateAuctionRequest{Title: "Sale", TimerSeconds: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidTimer)
	assert.ErrorIs(t, err, shared.ErrValidationFailed)
}

func TestAddLot_Rules(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1")

	_, err := h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
		AuctionID: a.ID, VehicleID: lots[0].VehicleID, LotNumber: "L1", MinPreBid: money(500),
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateLotNumber)

	_, err = h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
		AuctionID: a.ID, VehicleID: lots[0].VehicleID, LotNumber: "L2", MinPreBid: money(500), ReservePrice: moneyPtr(400),
	})
	assert.ErrorIs(t, err, shared.ErrReserveMisconfigured)

	_, err = h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
		AuctionID: a.ID, VehicleID: uuid.New(), LotNumber: "L2", MinPreBid: money(500),
	})
	assert.ErrorIs(t, err, shared.ErrVehicleNotFound)

	_, err = h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)
	_, err = h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
		AuctionID: a.ID, VehicleID: lots[0].VehicleID, LotNumber: "L9", MinPreBid: money(500),
	})
	assert.ErrorIs(t, err, shared.ErrAuctionLocked)
}

func TestStartAuction_ActivatesFirstLot(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2")

	started, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusRunning, started.Status)
	require.NotNil(t, started.CurrentLotLabel)
	assert.Equal(t, "L1", *started.CurrentLotLabel)

	first := h.lot(t, lots[0].ID)
	assert.True(t, first.IsActive)
	assert.Equal(t, lot.WinnerStatusActive, first.WinnerStatus)
	assert.Equal(t, "500", first.CurrentPrice.String())
	assert.False(t, h.lot(t, lots[1].ID).IsActive)

	deadline, ok := h.scheduler.deadline(a.ID)
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Second), deadline)
	assert.Len(t, h.broadcaster.ofType(outbound.EventTypeLotActivated), 1)

	_, err = h.auctions.StartAuction(h.ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrAuctionNotStartable)
}

func TestStartAuction_WithoutLots(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, _ := h.newAuction(t)

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrAuctionHasNoLots)
	assert.Equal(t, auction.StatusScheduled, h.auction(t, a.ID).Status)
}

func TestStartAuction_DraftWithoutWindow(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, err := h.auctions.CreateAuction(h.ctx, inbound.CreateAuctionRequest{Title: "Sale"})
	require.NoError(t, err)

	_, err = h.auctions.StartAuction(h.ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrAuctionNotStartable)
}

func TestAdvanceLot_WalksEveryLotThenEnds(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2", "L3")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := h.auctions.AdvanceLot(h.ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, result.AuctionEnded)
		require.NotNil(t, result.NextLotID)
		assert.Equal(t, lots[i+1].ID, *result.NextLotID)
		assert.Equal(t, string(lot.WinnerStatusUnsold), result.Ended.Outcome)
	}

	result, err := h.auctions.AdvanceLot(h.ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, result.AuctionEnded)
	assert.Nil(t, result.NextLotID)
	assert.True(t, result.TotalSales.IsZero())

	ended := h.auction(t, a.ID)
	assert.Equal(t, auction.StatusEnded, ended.Status)
	assert.Nil(t, ended.CurrentLotLabel)
	for _, l := range lots {
		stored := h.lot(t, l.ID)
		assert.False(t, stored.IsActive)
		assert.True(t, stored.IsResolved())
	}

	_, ok := h.scheduler.deadline(a.ID)
	assert.False(t, ok)
	assert.Len(t, h.broadcaster.ofType(outbound.EventTypeAuctionEnded), 1)
	assert.Len(t, h.broadcaster.ofType(outbound.EventTypeLotEnded), 3)

	_, err = h.auctions.AdvanceLot(h.ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrAuctionNotRunning)
}

func TestAdvanceLot_ResolvesWinnersAgainstReserve(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, err := h.auctions.CreateAuction(h.ctx, inbound.CreateAuctionRequest{Title: "Reserve sale"})
	require.NoError(t, err)
	_, err = h.auctions.ScheduleAuction(h.ctx, inbound.ScheduleAuctionRequest{
		AuctionID: a.ID,
		StartTime: t0.Add(time.Hour).Format(time.RFC3339),
		EndTime:   t0.Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	vehicle := &shared.Vehicle{ID: uuid.New(), VIN: "VIN1"}
	require.NoError(t, h.store.Vehicles().Create(h.ctx, vehicle))
	short, err := h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
		AuctionID: a.ID, VehicleID: vehicle.ID, LotNumber: "L1", MinPreBid: money(500), ReservePrice: moneyPtr(5000),
	})
	require.NoError(t, err)
	met, err := h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
		AuctionID: a.ID, VehicleID: vehicle.ID, LotNumber: "L2", MinPreBid: money(500), ReservePrice: moneyPtr(5000),
	})
	require.NoError(t, err)

	alice := h.newBidder(t, "alice")
	_, err = h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)

	require.True(t, h.place(t, short.ID, alice, bid.TypeRegular, 4000).Accepted)
	result, err := h.auctions.AdvanceLot(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lot.WinnerStatusUnsold), result.Ended.Outcome)
	assert.Nil(t, result.Ended.WinnerID)

	w, err := h.bids.GetWinner(h.ctx, short.ID)
	require.NoError(t, err)
	assert.Nil(t, w)

	require.True(t, h.place(t, met.ID, alice, bid.TypeRegular, 5000).Accepted)
	result, err = h.auctions.AdvanceLot(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lot.WinnerStatusWon), result.Ended.Outcome)
	require.NotNil(t, result.Ended.WinnerID)
	assert.Equal(t, alice, *result.Ended.WinnerID)
	assert.True(t, result.AuctionEnded)
	assert.Equal(t, "5000", result.TotalSales.String())

	w, err = h.bids.GetWinner(h.ctx, met.ID)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, alice, w.BidderID)
	assert.Equal(t, "5000", w.Amount.String())
}

func TestAdvanceIfExpired_FollowsTimerResets(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2")
	alice := h.newBidder(t, "alice")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)

	h.clock.Advance(8 * time.Second)
	require.True(t, h.place(t, lots[0].ID, alice, bid.TypeRegular, 600).Accepted)

	state, err := h.bids.GetLotState(h.ctx, lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, state.RemainingSeconds)

	deadline, ok := h.scheduler.deadline(a.ID)
	require.True(t, ok)
	assert.Equal(t, t0.Add(18*time.Second), deadline)

	h.clock.Advance(4 * time.Second)
	result, err := h.auctions.AdvanceIfExpired(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, h.lot(t, lots[0].ID).IsActive)

	h.clock.Advance(6 * time.Second)
	result, err = h.auctions.AdvanceIfExpired(h.ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, string(lot.WinnerStatusWon), result.Ended.Outcome)
	require.NotNil(t, result.NextLotID)
	assert.Equal(t, lots[1].ID, *result.NextLotID)
}

func TestAdvanceIfExpired_IgnoresStoppedAuctions(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, _ := h.newAuction(t, "L1")

	result, err := h.auctions.AdvanceIfExpired(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSwitchLot_JumpsToPendingLot(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2", "L3")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)

	result, err := h.auctions.SwitchLot(h.ctx, a.ID, lots[2].ID)
	require.NoError(t, err)
	require.NotNil(t, result.NextLotID)
	assert.Equal(t, lots[2].ID, *result.NextLotID)
	assert.Equal(t, "L3", *h.auction(t, a.ID).CurrentLotLabel)
	assert.True(t, h.lot(t, lots[1].ID).IsPending())

	_, err = h.auctions.SwitchLot(h.ctx, a.ID, lots[0].ID)
	assert.ErrorIs(t, err, shared.ErrLotNotPending)

	result, err = h.auctions.AdvanceLot(h.ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result.NextLotID)
	assert.Equal(t, lots[1].ID, *result.NextLotID)
}

func TestExtendAuction(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, _ := h.newAuction(t, "L1")

	_, err := h.auctions.ExtendAuction(h.ctx, inbound.ExtendAuctionRequest{AuctionID: a.ID, Minutes: 15, Reason: "late arrivals"})
	assert.ErrorIs(t, err, shared.ErrAuctionNotRunning)

	_, err = h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)

	_, err = h.auctions.ExtendAuction(h.ctx, inbound.ExtendAuctionRequest{AuctionID: a.ID, Minutes: 15})
	assert.ErrorIs(t, err, shared.ErrExtensionReason)

	extended, err := h.auctions.ExtendAuction(h.ctx, inbound.ExtendAuctionRequest{AuctionID: a.ID, Minutes: 15, Reason: "late arrivals"})
	require.NoError(t, err)
	assert.Equal(t, 1, extended.ExtendedCount)
	assert.Equal(t, t0.Add(5*time.Hour+15*time.Minute), *extended.EndTime)
	assert.Len(t, h.broadcaster.ofType(outbound.EventTypeAuctionExtended), 1)
}

func TestCancelAuction_ClosesActiveLotWithoutWinner(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2")
	alice := h.newBidder(t, "alice")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)
	require.True(t, h.place(t, lots[0].ID, alice, bid.TypeRegular, 600).Accepted)

	_, err = h.auctions.CancelAuction(h.ctx, a.ID, "")
	assert.ErrorIs(t, err, shared.ErrCancelReason)

	cancelled, err := h.auctions.CancelAuction(h.ctx, a.ID, "venue closed")
	require.NoError(t, err)
	assert.Equal(t, auction.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.CurrentLotLabel)

	first := h.lot(t, lots[0].ID)
	assert.False(t, first.IsActive)
	assert.Equal(t, lot.WinnerStatusUnsold, first.WinnerStatus)

	w, err := h.bids.GetWinner(h.ctx, lots[0].ID)
	require.NoError(t, err)
	assert.Nil(t, w)

	_, ok := h.scheduler.deadline(a.ID)
	assert.False(t, ok)

	_, err = h.auctions.CancelAuction(h.ctx, a.ID, "again")
	assert.ErrorIs(t, err, shared.ErrAuctionTerminal)
}

func TestListLots_InRunningOrder(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, _ := h.newAuction(t, "L1", "L2", "L3")

	lots, err := h.auctions.ListLots(h.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, lots, 3)
	for i, l := range lots {
		assert.Equal(t, i+1, l.ItemNumber)
	}

	_, err = h.auctions.ListLots(h.ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStartAuction_RetryAfterFailedUpdateReusesOpenLot(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2")

	h.auctionRepo.failUpdates(1)
	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.Error(t, err)
	assert.Equal(t, auction.StatusScheduled, h.auction(t, a.ID).Status)
	assert.True(t, h.lot(t, lots[0].ID).IsActive)

	started, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, started.CurrentLotLabel)
	assert.Equal(t, "L1", *started.CurrentLotLabel)

	stored, err := h.auctions.ListLots(h.ctx, a.ID)
	require.NoError(t, err)
	open := 0
	for _, l := range stored {
		if l.IsActive {
			open++
		}
	}
	assert.Equal(t, 1, open)
	assert.False(t, h.lot(t, lots[1].ID).IsActive)
}

func TestAdvanceLot_RetryAfterFailedUpdateKeepsOneWinner(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2", "L3")
	alice := h.newBidder(t, "alice")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)
	require.True(t, h.place(t, lots[0].ID, alice, bid.TypeRegular, 600).Accepted)

	h.auctionRepo.failUpdates(1)
	_, err = h.auctions.AdvanceLot(h.ctx, a.ID)
	require.Error(t, err)
	assert.Equal(t, "L1", *h.auction(t, a.ID).CurrentLotLabel)
	assert.Equal(t, lot.WinnerStatusWon, h.lot(t, lots[0].ID).WinnerStatus)
	assert.True(t, h.lot(t, lots[1].ID).IsActive)

	first, err := h.bids.GetWinner(h.ctx, lots[0].ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	result, err := h.auctions.AdvanceLot(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lot.WinnerStatusWon), result.Ended.Outcome)
	require.NotNil(t, result.Ended.WinnerID)
	assert.Equal(t, alice, *result.Ended.WinnerID)
	assert.Equal(t, "600", result.Ended.Amount.String())
	require.NotNil(t, result.NextLotID)
	assert.Equal(t, lots[1].ID, *result.NextLotID)
	assert.Equal(t, "L2", *h.auction(t, a.ID).CurrentLotLabel)
	assert.True(t, h.lot(t, lots[1].ID).IsActive)
	assert.False(t, h.lot(t, lots[2].ID).IsActive)

	again, err := h.bids.GetWinner(h.ctx, lots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	total, err := h.store.Winners().TotalSales(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "600", total.String())
	assert.Len(t, h.broadcaster.ofType(outbound.EventTypeLotEnded), 1)
}

func TestSwitchLot_WithdrawsLotLeftOpenByFailedAdvance(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2", "L3")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)

	h.auctionRepo.failUpdates(1)
	_, err = h.auctions.AdvanceLot(h.ctx, a.ID)
	require.Error(t, err)
	require.True(t, h.lot(t, lots[1].ID).IsActive)

	result, err := h.auctions.SwitchLot(h.ctx, a.ID, lots[2].ID)
	require.NoError(t, err)
	require.NotNil(t, result.NextLotID)
	assert.Equal(t, lots[2].ID, *result.NextLotID)
	assert.Equal(t, "L3", *h.auction(t, a.ID).CurrentLotLabel)

	withdrawn := h.lot(t, lots[1].ID)
	assert.False(t, withdrawn.IsActive)
	assert.True(t, withdrawn.IsPending())
	assert.Nil(t, withdrawn.ActiveStartTime)

	result, err = h.auctions.AdvanceLot(h.ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result.NextLotID)
	assert.Equal(t, lots[1].ID, *result.NextLotID)
}

func TestEndCurrentLot_ResolvedLotReportsStoredOutcome(t *testing.T) {
	h := newHarness(t, defaultPolicy())
	a, lots := h.newAuction(t, "L1", "L2")
	alice := h.newBidder(t, "alice")

	_, err := h.auctions.StartAuction(h.ctx, a.ID)
	require.NoError(t, err)
	require.True(t, h.place(t, lots[0].ID, alice, bid.TypeRegular, 700).Accepted)

	current := h.auction(t, a.ID)
	now := h.clock.Now()
	first, err := h.auctions.endCurrentLot(h.ctx, current, now, false)
	require.NoError(t, err)
	require.NotNil(t, first.WinnerID)

	h.clock.Advance(time.Minute)
	second, err := h.auctions.endCurrentLot(h.ctx, current, h.clock.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, first.Outcome, second.Outcome)
	require.NotNil(t, second.WinnerID)
	assert.Equal(t, *first.WinnerID, *second.WinnerID)
	assert.Equal(t, first.Amount.String(), second.Amount.String())

	total, err := h.store.Winners().TotalSales(h.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "700", total.String())
	assert.Len(t, h.broadcaster.ofType(outbound.EventTypeLotEnded), 1)
}

func TestRegisterVehicle(t *testing.T) {
	h := newHarness(t, defaultPolicy())

	_, err := h.auctions.RegisterVehicle(h.ctx, inbound.RegisterVehicleRequest{Make: "Volvo"})
	assert.ErrorIs(t, err, shared.ErrVINRequired)

	v, err := h.auctions.RegisterVehicle(h.ctx, inbound.RegisterVehicleRequest{VIN: "YV1DZ8256C2271234", Make: "Volvo", Model: "XC60", Year: 2012})
	require.NoError(t, err)
	assert.Equal(t, t0, v.CreatedAt)

	stored, err := h.store.Vehicles().GetByID(h.ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "XC60", stored.Model)
}
