package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vehicle-auction-service/internal/adapters/memory"
	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/bidding"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/ports/inbound"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *recordingBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *recordingBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (b *recordingBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return true
}

func (b *recordingBroadcaster) ofType(eventType outbound.EventType) []outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []outbound.Event
	for _, e := range b.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type recordingScheduler struct {
	mu        sync.Mutex
	deadlines map[uuid.UUID]time.Time
}

func (s *recordingScheduler) ScheduleLotExpiry(ctx context.Context, auctionID uuid.UUID, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[auctionID] = deadline
	return nil
}

func (s *recordingScheduler) Unschedule(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadlines, auctionID)
	return nil
}

func (s *recordingScheduler) deadline(auctionID uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadlines[auctionID]
	return d, ok
}

// flakyAuctionRepo fails the next n updates, then behaves like the store
type flakyAuctionRepo struct {
	outbound.AuctionRepository
	mu       sync.Mutex
	failNext int
}

func (r *flakyAuctionRepo) Update(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	if r.failNext > 0 {
		r.failNext--
		r.mu.Unlock()
		return errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.AuctionRepository.Update(ctx, a)
}

func (r *flakyAuctionRepo) failUpdates(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
}

type harness struct {
	ctx         context.Context
	store       *memory.Store
	clock       *fakeClock
	broadcaster *recordingBroadcaster
	scheduler   *recordingScheduler
	auctionRepo *flakyAuctionRepo
	auctions    *AuctionService
	bids        *BidService
}

func newHarness(t *testing.T, policy bidding.Policy) *harness {
	t.Helper()

	h := &harness{
		ctx:         context.Background(),
		store:       memory.NewStore(),
		clock:       &fakeClock{now: t0},
		broadcaster: &recordingBroadcaster{},
		scheduler:   &recordingScheduler{deadlines: make(map[uuid.UUID]time.Time)},
	}
	h.auctionRepo = &flakyAuctionRepo{AuctionRepository: h.store.Auctions()}
	locks := NewLockRegistry()

	h.auctions = NewAuctionService(AuctionServiceParams{
		AuctionRepo:         h.auctionRepo,
		LotRepo:             h.store.Lots(),
		BidRepo:             h.store.Bids(),
		WinnerRepo:          h.store.Winners(),
		VehicleRepo:         h.store.Vehicles(),
		Locks:               locks,
		Scheduler:           h.scheduler,
		Broadcaster:         h.broadcaster,
		DefaultTimerSeconds: 10,
		Clock:               h.clock.Now,
		Logger:              zerolog.Nop(),
	})

	bids, err := NewBidService(BidServiceParams{
		BidRepo:     h.store.Bids(),
		LotRepo:     h.store.Lots(),
		AuctionRepo: h.auctionRepo,
		WinnerRepo:  h.store.Winners(),
		BidderRepo:  h.store.Bidders(),
		Locks:       locks,
		Scheduler:   h.scheduler,
		Broadcaster: h.broadcaster,
		Policy:      policy,
		Clock:       h.clock.Now,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	h.bids = bids
	return h
}

func defaultPolicy() bidding.Policy {
	return bidding.Policy{ProxyCeiling: decimal.NewFromInt(100000)}
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func moneyPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// newAuction creates a scheduled auction with one lot per label, minPreBid 500
func (h *harness) newAuction(t *testing.T, labels ...string) (*auction.Auction, []*lot.Lot) {
	t.Helper()

	a, err := h.auctions.CreateAuction(h.ctx, inbound.CreateAuctionRequest{Title: "Tuesday fleet sale"})
	require.NoError(t, err)

	a, err = h.auctions.ScheduleAuction(h.ctx, inbound.ScheduleAuctionRequest{
		AuctionID: a.ID,
		StartTime: t0.Add(time.Hour).Format(time.RFC3339),
		EndTime:   t0.Add(5 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	var lots []*lot.Lot
	for i, label := range labels {
		vehicle := &shared.Vehicle{ID: uuid.New(), VIN: "VIN" + label, Make: "Volvo", Model: "V90", Year: 2021 + i}
		require.NoError(t, h.store.Vehicles().Create(h.ctx, vehicle))

		l, err := h.auctions.AddLot(h.ctx, inbound.AddLotRequest{
			AuctionID: a.ID,
			VehicleID: vehicle.ID,
			LotNumber: label,
			MinPreBid: money(500),
		})
		require.NoError(t, err)
		lots = append(lots, l)
	}
	return a, lots
}

func (h *harness) newBidder(t *testing.T, name string) uuid.UUID {
	t.Helper()
	b := &shared.Bidder{ID: uuid.New(), Name: name}
	require.NoError(t, h.store.Bidders().Create(h.ctx, b))
	return b.ID
}

func (h *harness) place(t *testing.T, lotID, bidderID uuid.UUID, kind bid.Type, amount int64) *inbound.BidResult {
	t.Helper()
	result, err := h.bids.PlaceBid(h.ctx, inbound.PlaceBidRequest{
		LotID:    lotID,
		BidderID: bidderID,
		Amount:   money(amount),
		Kind:     kind,
	})
	require.NoError(t, err)
	return result
}

func (h *harness) placeProxy(t *testing.T, lotID, bidderID uuid.UUID, amount, max int64) *inbound.BidResult {
	t.Helper()
	result, err := h.bids.PlaceBid(h.ctx, inbound.PlaceBidRequest{
		LotID:    lotID,
		BidderID: bidderID,
		Amount:   money(amount),
		Kind:     bid.TypeProxyBid,
		ProxyMax: moneyPtr(max),
	})
	require.NoError(t, err)
	return result
}

func (h *harness) lot(t *testing.T, id uuid.UUID) *lot.Lot {
	t.Helper()
	l, err := h.store.Lots().GetByID(h.ctx, id)
	require.NoError(t, err)
	return l
}

func (h *harness) auction(t *testing.T, id uuid.UUID) *auction.Auction {
	t.Helper()
	a, err := h.store.Auctions().GetByID(h.ctx, id)
	require.NoError(t, err)
	return a
}
