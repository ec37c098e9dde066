package inbound

import (
	"context"
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

// AuctionService defines the interface for auction lifecycle operations
type AuctionService interface {
	// CreateAuction creates a new draft auction
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// ScheduleAuction sets the session window
	ScheduleAuction(ctx context.Context, req ScheduleAuctionRequest) (*auction.Auction, error)

	// RegisterVehicle adds a vehicle to the catalog lots draw from
	RegisterVehicle(ctx context.Context, req RegisterVehicleRequest) (*shared.Vehicle, error)

	// AddLot registers a vehicle lot on a draft or scheduled auction
	AddLot(ctx context.Context, req AddLotRequest) (*lot.Lot, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// ListAuctions retrieves a list of auctions
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*auction.Auction, error)

	// ListLots returns the auction's lots in running order
	ListLots(ctx context.Context, auctionID uuid.UUID) ([]*lot.Lot, error)

	// StartAuction runs the auction and activates its first lot
	StartAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// AdvanceLot resolves the current lot and activates the next one
	AdvanceLot(ctx context.Context, auctionID uuid.UUID) (*shared.AdvanceResult, error)

	// SwitchLot resolves the current lot and activates the given pending lot
	SwitchLot(ctx context.Context, auctionID, lotID uuid.UUID) (*shared.AdvanceResult, error)

	// AdvanceIfExpired advances only when the current lot's countdown ran out.
	// A nil result means nothing was due.
	AdvanceIfExpired(ctx context.Context, auctionID uuid.UUID) (*shared.AdvanceResult, error)

	// ExtendAuction pushes the end time out
	ExtendAuction(ctx context.Context, req ExtendAuctionRequest) (*auction.Auction, error)

	// CancelAuction stops the auction without resolving winners
	CancelAuction(ctx context.Context, auctionID uuid.UUID, reason string) (*auction.Auction, error)
}

// BidService defines the interface for bid and lot operations
type BidService interface {
	// RegisterBidder records a bidder so it can place bids
	RegisterBidder(ctx context.Context, req RegisterBidderRequest) (*shared.Bidder, error)

	// PlaceBid validates and records a bid, then runs the proxy cascade
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*BidResult, error)

	// RetractBid withdraws a bid before its lot opens
	RetractBid(ctx context.Context, bidID, bidderID uuid.UUID) (*bid.Bid, error)

	// GetBids retrieves the ledger for a lot
	GetBids(ctx context.Context, lotID uuid.UUID) ([]*bid.Bid, error)

	// GetLotState returns the live view of a lot
	GetLotState(ctx context.Context, lotID uuid.UUID) (*LotState, error)

	// GetWinner returns the lot's winner, or nil when it has none
	GetWinner(ctx context.Context, lotID uuid.UUID) (*winner.Winner, error)

	// ConfirmWinner moves a won lot to confirmed
	ConfirmWinner(ctx context.Context, lotID uuid.UUID) (*lot.Lot, error)

	// CompleteWinner moves a confirmed lot to completed
	CompleteWinner(ctx context.Context, lotID uuid.UUID) (*lot.Lot, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	Title           string          `json:"title"`
	TimerSeconds    int             `json:"timer_seconds"`
	MinBidIncrement decimal.Decimal `json:"min_bid_increment"`
}

// request to schedule an auction
type ScheduleAuctionRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// request to register a vehicle
type RegisterVehicleRequest struct {
	VIN   string `json:"vin"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// request to register a bidder; a nil ID gets a fresh one
type RegisterBidderRequest struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// request to add a lot
type AddLotRequest struct {
	AuctionID    uuid.UUID        `json:"auction_id"`
	VehicleID    uuid.UUID        `json:"vehicle_id"`
	LotNumber    string           `json:"lot_number"`
	ItemNumber   int              `json:"item_number"`
	MinPreBid    decimal.Decimal  `json:"min_pre_bid"`
	ReservePrice *decimal.Decimal `json:"reserve_price,omitempty"`
}

// request to extend an auction
type ExtendAuctionRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Minutes   int       `json:"minutes"`
	Reason    string    `json:"reason"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to place a bid
type PlaceBidRequest struct {
	LotID      uuid.UUID        `json:"lot_id"`
	BidderID   uuid.UUID        `json:"bidder_id"`
	ClientID   string           `json:"client_id"`
	Amount     decimal.Decimal  `json:"amount"`
	Kind       bid.Type         `json:"bid_type"`
	ProxyMax   *decimal.Decimal `json:"proxy_max,omitempty"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"`
}

// BidResult is the verdict on a placement. Rejections carry violations, not errors.
type BidResult struct {
	Accepted    bool                `json:"accepted"`
	Bid         *bid.Bid            `json:"bid,omitempty"`
	AutoBids    []*bid.Bid          `json:"auto_bids,omitempty"`
	IsHighest   bool                `json:"is_highest"`
	Violations  []bidding.Violation `json:"violations,omitempty"`
	NextMinimum decimal.Decimal     `json:"next_minimum"`
	Suggested   decimal.Decimal     `json:"suggested"`
}

// LotState is the live view of a lot
type LotState struct {
	LotID            uuid.UUID        `json:"lot_id"`
	AuctionID        uuid.UUID        `json:"auction_id"`
	LotNumber        string           `json:"lot_number"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	IsActive         bool             `json:"is_active"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Expired          bool             `json:"expired"`
	BidCount         int              `json:"bid_count"`
	HighestBidderID  *uuid.UUID       `json:"highest_bidder_id,omitempty"`
	ReserveMet       bool             `json:"reserve_met"`
	NextMinimum      decimal.Decimal  `json:"next_minimum"`
	HighestPreBid    *decimal.Decimal `json:"highest_pre_bid,omitempty"`
	WinnerStatus     lot.WinnerStatus `json:"winner_status"`
}
