package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/bidding"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/domain/winner"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps every aggregate in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type Store struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]auction.Auction
	lots     map[uuid.UUID]lot.Lot
	bids     map[uuid.UUID][]bid.Bid
	bidIndex map[uuid.UUID]uuid.UUID
	winners  map[uuid.UUID]winner.Winner
	vehicles map[uuid.UUID]shared.Vehicle
	bidders  map[uuid.UUID]shared.Bidder
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]auction.Auction),
		lots:     make(map[uuid.UUID]lot.Lot),
		bids:     make(map[uuid.UUID][]bid.Bid),
		bidIndex: make(map[uuid.UUID]uuid.UUID),
		winners:  make(map[uuid.UUID]winner.Winner),
		vehicles: make(map[uuid.UUID]shared.Vehicle),
		bidders:  make(map[uuid.UUID]shared.Bidder),
	}
}

// AuctionRepository is the in-memory auction store
type AuctionRepository struct{ store *Store }

// LotRepository is the in-memory lot store
type LotRepository struct{ store *Store }

// BidRepository is the in-memory bid ledger
type BidRepository struct{ store *Store }

// WinnerRepository is the in-memory winner store
type WinnerRepository struct{ store *Store }

// VehicleRepository is the in-memory vehicle catalog
type VehicleRepository struct{ store *Store }

// BidderRepository is the in-memory bidder directory
type BidderRepository struct{ store *Store }

func (s *Store) Auctions() *AuctionRepository { return &AuctionRepository{store: s} }
func (s *Store) Lots() *LotRepository         { return &LotRepository{store: s} }
func (s *Store) Bids() *BidRepository         { return &BidRepository{store: s} }
func (s *Store) Winners() *WinnerRepository   { return &WinnerRepository{store: s} }
func (s *Store) Vehicles() *VehicleRepository { return &VehicleRepository{store: s} }
func (s *Store) Bidders() *BidderRepository   { return &BidderRepository{store: s} }

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a.Version = 1
	r.store.auctions[a.ID] = *a
	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored, ok := r.store.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return &stored, nil
}

// List retrieves auctions newest first
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var auctions []*auction.Auction
	for _, stored := range r.store.auctions {
		if status != nil && stored.Status != *status {
			continue
		}
		copied := stored
		auctions = append(auctions, &copied)
	}
	sort.Slice(auctions, func(i, j int) bool {
		return auctions[i].CreatedAt.After(auctions[j].CreatedAt)
	})

	offset := (page - 1) * pageSize
	if offset >= len(auctions) {
		return []*auction.Auction{}, nil
	}
	end := offset + pageSize
	if end > len(auctions) {
		end = len(auctions)
	}
	return auctions[offset:end], nil
}

// Update writes the auction when its version matches
func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.auctions[a.ID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if stored.Version != a.Version {
		return shared.ErrStaleVersion
	}
	a.Version++
	r.store.auctions[a.ID] = *a
	return nil
}

// Create creates a new lot
func (r *LotRepository) Create(ctx context.Context, l *lot.Lot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	l.Version = 1
	r.store.lots[l.ID] = *l
	return nil
}

// GetByID retrieves a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id uuid.UUID) (*lot.Lot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored, ok := r.store.lots[id]
	if !ok {
		return nil, shared.ErrLotNotFound
	}
	return &stored, nil
}

// GetByAuctionID returns an auction's lots ordered by item number
func (r *LotRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*lot.Lot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	lots := []*lot.Lot{}
	for _, stored := range r.store.lots {
		if stored.AuctionID != auctionID {
			continue
		}
		copied := stored
		lots = append(lots, &copied)
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].ItemNumber != lots[j].ItemNumber {
			return lots[i].ItemNumber < lots[j].ItemNumber
		}
		return lots[i].LotNumber < lots[j].LotNumber
	})
	return lots, nil
}

// GetByLotNumber retrieves a lot by its label within an auction
func (r *LotRepository) GetByLotNumber(ctx context.Context, auctionID uuid.UUID, lotNumber string) (*lot.Lot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, stored := range r.store.lots {
		if stored.AuctionID == auctionID && stored.LotNumber == lotNumber {
			copied := stored
			return &copied, nil
		}
	}
	return nil, shared.ErrLotNotFound
}

// Update writes the lot when its version matches
func (r *LotRepository) Update(ctx context.Context, l *lot.Lot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.putLot(l)
}

func (s *Store) putLot(l *lot.Lot) error {
	stored, ok := s.lots[l.ID]
	if !ok {
		return shared.ErrLotNotFound
	}
	if stored.Version != l.Version {
		return shared.ErrStaleVersion
	}
	l.Version++
	s.lots[l.ID] = *l
	return nil
}

// Append inserts bids and writes the lot together
func (r *BidRepository) Append(ctx context.Context, l *lot.Lot, bids []*bid.Bid) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, b := range bids {
		if b.LotID != l.ID {
			return shared.ErrInvalidRequest
		}
	}
	if err := r.store.putLot(l); err != nil {
		return err
	}
	for _, b := range bids {
		r.store.bids[l.ID] = append(r.store.bids[l.ID], *b)
		r.store.bidIndex[b.ID] = l.ID
	}
	return nil
}

// GetByID retrieves a bid by ID
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	lotID, ok := r.store.bidIndex[id]
	if !ok {
		return nil, shared.ErrBidNotFound
	}
	for _, stored := range r.store.bids[lotID] {
		if stored.ID == id {
			copied := stored
			return &copied, nil
		}
	}
	return nil, shared.ErrBidNotFound
}

// GetByLotID returns the lot's ledger in placement order
func (r *BidRepository) GetByLotID(ctx context.Context, lotID uuid.UUID) ([]*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.ledger(lotID, nil), nil
}

func (s *Store) ledger(lotID uuid.UUID, keep func(*bid.Bid) bool) []*bid.Bid {
	bids := []*bid.Bid{}
	for _, stored := range s.bids[lotID] {
		copied := stored
		if keep != nil && !keep(&copied) {
			continue
		}
		bids = append(bids, &copied)
	}
	return bids
}

// GetHighestBid returns the top placed pre-bid or live bid
func (r *BidRepository) GetHighestBid(ctx context.Context, lotID uuid.UUID, preBids bool) (*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	top := bidding.Highest(r.store.ledger(lotID, nil), func(b *bid.Bid) bool {
		if preBids {
			return b.IsPreBid
		}
		return b.IsLive()
	})
	if top == nil {
		return nil, shared.ErrNoBidsFound
	}
	return top, nil
}

// GetBidsSince returns bids placed at or after since
func (r *BidRepository) GetBidsSince(ctx context.Context, lotID uuid.UUID, since time.Time) ([]*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.ledger(lotID, func(b *bid.Bid) bool { return !b.PlacedAt.Before(since) }), nil
}

// GetByBidder returns one bidder's bids on a lot
func (r *BidRepository) GetByBidder(ctx context.Context, lotID, bidderID uuid.UUID) ([]*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.ledger(lotID, func(b *bid.Bid) bool { return b.BidderID == bidderID }), nil
}

// CountBidderSince counts a bidder's own placements since the given instant
func (r *BidRepository) CountBidderSince(ctx context.Context, lotID, bidderID uuid.UUID, since time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return bidding.CountBidderSince(r.store.ledger(lotID, nil), bidderID, since), nil
}

// GetStandingProxies returns proxies still able to cascade, oldest first
func (r *BidRepository) GetStandingProxies(ctx context.Context, lotID uuid.UUID, now time.Time) ([]*bid.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return bidding.StandingProxies(r.store.ledger(lotID, nil), now), nil
}

// UpdateStatus persists a bid status transition
func (r *BidRepository) UpdateStatus(ctx context.Context, b *bid.Bid) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lotID, ok := r.store.bidIndex[b.ID]
	if !ok {
		return shared.ErrBidNotFound
	}
	ledger := r.store.bids[lotID]
	for i := range ledger {
		if ledger[i].ID == b.ID {
			ledger[i].Status = b.Status
			return nil
		}
	}
	return shared.ErrBidNotFound
}

// Create stores w unless the lot already has a winner
func (r *WinnerRepository) Create(ctx context.Context, w *winner.Winner) (*winner.Winner, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if stored, ok := r.store.winners[w.LotID]; ok {
		return &stored, nil
	}
	r.store.winners[w.LotID] = *w
	stored := *w
	return &stored, nil
}

// GetByLotID retrieves the winner of a lot
func (r *WinnerRepository) GetByLotID(ctx context.Context, lotID uuid.UUID) (*winner.Winner, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored, ok := r.store.winners[lotID]
	if !ok {
		return nil, shared.ErrWinnerNotFound
	}
	return &stored, nil
}

// TotalSales sums winning amounts for an auction
func (r *WinnerRepository) TotalSales(ctx context.Context, auctionID uuid.UUID) (decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	total := decimal.Zero
	for lotID, w := range r.store.winners {
		if l, ok := r.store.lots[lotID]; ok && l.AuctionID == auctionID {
			total = total.Add(w.Amount)
		}
	}
	return total, nil
}

// Create registers a vehicle
func (r *VehicleRepository) Create(ctx context.Context, v *shared.Vehicle) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.vehicles[v.ID] = *v
	return nil
}

// GetByID retrieves a vehicle by ID
func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Vehicle, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored, ok := r.store.vehicles[id]
	if !ok {
		return nil, shared.ErrVehicleNotFound
	}
	return &stored, nil
}

// Create registers a bidder
func (r *BidderRepository) Create(ctx context.Context, b *shared.Bidder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.bidders[b.ID] = *b
	return nil
}

// GetByID retrieves a bidder by ID
func (r *BidderRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Bidder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored, ok := r.store.bidders[id]
	if !ok {
		return nil, shared.ErrBidderNotFound
	}
	return &stored, nil
}
