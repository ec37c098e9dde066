package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const auctionColumns = `id, title, status, start_time, end_time, timer_seconds, min_bid_increment,
	current_lot_label, current_lot_start_time, extended_count, cancel_reason, version, created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Status,
		&a.StartTime,
		&a.EndTime,
		&a.TimerSeconds,
		&a.MinBidIncrement,
		&a.CurrentLotLabel,
		&a.CurrentLotStartTime,
		&a.ExtendedCount,
		&a.CancelReason,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.Title,
		a.Status,
		a.StartTime,
		a.EndTime,
		a.TimerSeconds,
		a.MinBidIncrement,
		a.CurrentLotLabel,
		a.CurrentLotStartTime,
		a.ExtendedCount,
		a.CancelReason,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	a.Version = 1
	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// List retrieves a list of auctions with optional filters
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	baseQuery := `SELECT ` + auctionColumns + ` FROM auctions `

	var whereClause string
	var args []interface{}
	argCount := 1

	if status != nil {
		whereClause = "WHERE status = $1"
		args = append(args, *status)
		argCount++
	}

	// Add pagination
	limitClause := fmt.Sprintf("LIMIT $%d", argCount)
	offsetClause := fmt.Sprintf("OFFSET $%d", argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	query := baseQuery + whereClause + " ORDER BY created_at DESC " + limitClause + " " + offsetClause

	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	auctions := []*auction.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

// Update writes the auction only if nobody bumped its version in between
func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET title = $3, status = $4, start_time = $5, end_time = $6, timer_seconds = $7,
		    min_bid_increment = $8, current_lot_label = $9, current_lot_start_time = $10,
		    extended_count = $11, cancel_reason = $12, updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.Version,
		a.Title,
		a.Status,
		a.StartTime,
		a.EndTime,
		a.TimerSeconds,
		a.MinBidIncrement,
		a.CurrentLotLabel,
		a.CurrentLotStartTime,
		a.ExtendedCount,
		a.CancelReason,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, a.ID); err != nil {
			return err
		}
		return shared.ErrStaleVersion
	}

	a.Version++
	return nil
}
