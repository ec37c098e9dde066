package outbound

import (
	"context"
	"time"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/domain/winner"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create creates a new auction
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves a list of auctions with optional filters
	List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error)

	// Update writes the auction if its version is unchanged and bumps the version
	Update(ctx context.Context, auction *auction.Auction) error
}

// LotRepository defines the interface for lot data operations
type LotRepository interface {
	Create(ctx context.Context, lot *lot.Lot) error
	GetByID(ctx context.Context, id uuid.UUID) (*lot.Lot, error)

	// GetByAuctionID returns the auction's lots ordered by item number
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*lot.Lot, error)

	GetByLotNumber(ctx context.Context, auctionID uuid.UUID, lotNumber string) (*lot.Lot, error)

	// Update writes the lot if its version is unchanged and bumps the version
	Update(ctx context.Context, lot *lot.Lot) error
}

// BidRepository is the append-only bid ledger
type BidRepository interface {
	// Append inserts bids and writes the owning lot in one atomic step,
	// optimistic on the lot version
	Append(ctx context.Context, lot *lot.Lot, bids []*bid.Bid) error

	GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error)

	// GetByLotID returns the ledger in placement order
	GetByLotID(ctx context.Context, lotID uuid.UUID) ([]*bid.Bid, error)

	// GetHighestBid returns the top placed pre-bid or live bid; ErrNoBidsFound when there is none
	GetHighestBid(ctx context.Context, lotID uuid.UUID, preBids bool) (*bid.Bid, error)

	GetBidsSince(ctx context.Context, lotID uuid.UUID, since time.Time) ([]*bid.Bid, error)
	GetByBidder(ctx context.Context, lotID, bidderID uuid.UUID) ([]*bid.Bid, error)

	// CountBidderSince counts the bidder's own placements, auto-bids excluded
	CountBidderSince(ctx context.Context, lotID, bidderID uuid.UUID, since time.Time) (int, error)

	// GetStandingProxies returns placed, unexpired proxy bids, oldest first
	GetStandingProxies(ctx context.Context, lotID uuid.UUID, now time.Time) ([]*bid.Bid, error)

	// UpdateStatus persists a status transition
	UpdateStatus(ctx context.Context, bid *bid.Bid) error
}

// WinnerRepository stores resolved winners, at most one per lot
type WinnerRepository interface {
	// Create stores w unless the lot already has a winner and returns the stored record
	Create(ctx context.Context, w *winner.Winner) (*winner.Winner, error)

	// GetByLotID returns ErrWinnerNotFound when the lot has no winner
	GetByLotID(ctx context.Context, lotID uuid.UUID) (*winner.Winner, error)

	// TotalSales sums winning amounts across an auction's lots
	TotalSales(ctx context.Context, auctionID uuid.UUID) (decimal.Decimal, error)
}

// VehicleRepository defines the interface for vehicle catalog lookups
type VehicleRepository interface {
	Create(ctx context.Context, vehicle *shared.Vehicle) error
	GetByID(ctx context.Context, id uuid.UUID) (*shared.Vehicle, error)
}

// BidderRepository defines the interface for bidder lookups
type BidderRepository interface {
	// GetByID retrieves a bidder by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.Bidder, error)

	// Create creates a new bidder
	Create(ctx context.Context, bidder *shared.Bidder) error
}
