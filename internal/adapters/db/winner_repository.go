package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/domain/winner"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const winnerColumns = `id, lot_id, bid_id, bidder_id, amount, assigned_at, payment_id`

// WinnerRepository implements the winner repository interface
type WinnerRepository struct {
	conn *Connection
}

// NewWinnerRepository creates a new winner repository
func NewWinnerRepository(conn *Connection) *WinnerRepository {
	return &WinnerRepository{conn: conn}
}

// Create inserts the winner; the unique lot_id keeps the first record
func (r *WinnerRepository) Create(ctx context.Context, w *winner.Winner) (*winner.Winner, error) {
	query := `
		INSERT INTO winners (` + winnerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lot_id) DO NOTHING
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		w.ID,
		w.LotID,
		w.BidID,
		w.BidderID,
		w.Amount,
		w.AssignedAt,
		w.PaymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create winner: %w", err)
	}

	return r.GetByLotID(ctx, w.LotID)
}

// GetByLotID retrieves the winner of a lot
func (r *WinnerRepository) GetByLotID(ctx context.Context, lotID uuid.UUID) (*winner.Winner, error) {
	query := `SELECT ` + winnerColumns + ` FROM winners WHERE lot_id = $1`

	var w winner.Winner
	err := r.conn.GetDB().QueryRowContext(ctx, query, lotID).Scan(
		&w.ID,
		&w.LotID,
		&w.BidID,
		&w.BidderID,
		&w.Amount,
		&w.AssignedAt,
		&w.PaymentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}
	return &w, nil
}

// TotalSales sums winning amounts over an auction's lots
func (r *WinnerRepository) TotalSales(ctx context.Context, auctionID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(w.amount), 0)
		FROM winners w
		JOIN lots l ON l.id = w.lot_id
		WHERE l.auction_id = $1
	`

	var total decimal.Decimal
	if err := r.conn.GetDB().QueryRowContext(ctx, query, auctionID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to total sales: %w", err)
	}
	return total, nil
}
