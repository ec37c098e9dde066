package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const lotColumns = `id, auction_id, vehicle_id, lot_number, item_number, min_pre_bid, reserve_price,
	current_price, is_active, active_start_time, last_bid_time, bid_count, winner_status, version, created_at, updated_at`

// execer is the part of *sql.DB and *sql.Tx that lot writes need
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// LotRepository implements the lot repository interface
type LotRepository struct {
	conn *Connection
}

// NewLotRepository creates a new lot repository
func NewLotRepository(conn *Connection) *LotRepository {
	return &LotRepository{conn: conn}
}

func scanLot(row rowScanner) (*lot.Lot, error) {
	var l lot.Lot
	err := row.Scan(
		&l.ID,
		&l.AuctionID,
		&l.VehicleID,
		&l.LotNumber,
		&l.ItemNumber,
		&l.MinPreBid,
		&l.ReservePrice,
		&l.CurrentPrice,
		&l.IsActive,
		&l.ActiveStartTime,
		&l.LastBidTime,
		&l.BidCount,
		&l.WinnerStatus,
		&l.Version,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create creates a new lot
func (r *LotRepository) Create(ctx context.Context, l *lot.Lot) error {
	query := `
		INSERT INTO lots (` + lotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $15)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		l.ID,
		l.AuctionID,
		l.VehicleID,
		l.LotNumber,
		l.ItemNumber,
		l.MinPreBid,
		l.ReservePrice,
		l.CurrentPrice,
		l.IsActive,
		l.ActiveStartTime,
		l.LastBidTime,
		l.BidCount,
		l.WinnerStatus,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lot: %w", err)
	}

	l.Version = 1
	return nil
}

// GetByID retrieves a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id uuid.UUID) (*lot.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`

	l, err := scanLot(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrLotNotFound
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return l, nil
}

// GetByAuctionID returns the auction's lots ordered by item number
func (r *LotRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*lot.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE auction_id = $1 ORDER BY item_number ASC, lot_number ASC`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lots: %w", err)
	}
	defer rows.Close()

	lots := []*lot.Lot{}
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}
	return lots, nil
}

// GetByLotNumber retrieves a lot by its label within an auction
func (r *LotRepository) GetByLotNumber(ctx context.Context, auctionID uuid.UUID, lotNumber string) (*lot.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE auction_id = $1 AND lot_number = $2`

	l, err := scanLot(r.conn.GetDB().QueryRowContext(ctx, query, auctionID, lotNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrLotNotFound
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return l, nil
}

// Update writes the lot only if its version is unchanged
func (r *LotRepository) Update(ctx context.Context, l *lot.Lot) error {
	return updateLot(ctx, r.conn.GetDB(), l)
}

func updateLot(ctx context.Context, db execer, l *lot.Lot) error {
	query := `
		UPDATE lots
		SET min_pre_bid = $3, reserve_price = $4, current_price = $5, is_active = $6,
		    active_start_time = $7, last_bid_time = $8, bid_count = $9, winner_status = $10,
		    updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := db.ExecContext(ctx, query,
		l.ID,
		l.Version,
		l.MinPreBid,
		l.ReservePrice,
		l.CurrentPrice,
		l.IsActive,
		l.ActiveStartTime,
		l.LastBidTime,
		l.BidCount,
		l.WinnerStatus,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Either the lot is gone or another writer got there first
	if rowsAffected == 0 {
		return shared.ErrStaleVersion
	}

	l.Version++
	return nil
}
