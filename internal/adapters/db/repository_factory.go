package db

import (
	"vehicle-auction-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// Repositories groups every repository for dependency injection
type Repositories struct {
	Auctions outbound.AuctionRepository
	Lots     outbound.LotRepository
	Bids     outbound.BidRepository
	Winners  outbound.WinnerRepository
	Vehicles outbound.VehicleRepository
	Bidders  outbound.BidderRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAllRepositories returns all repositories in a struct for easy dependency injection
func (f *RepositoryFactory) GetAllRepositories() Repositories {
	return Repositories{
		Auctions: NewAuctionRepository(f.conn),
		Lots:     NewLotRepository(f.conn),
		Bids:     NewBidRepository(f.conn),
		Winners:  NewWinnerRepository(f.conn),
		Vehicles: NewVehicleRepository(f.conn),
		Bidders:  NewBidderRepository(f.conn),
	}
}
