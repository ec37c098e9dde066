package db

import (
	"context"
	"database/sql"
	"fmt"

	"vehicle-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// BidderRepository implements the bidder repository interface
type BidderRepository struct {
	conn *Connection
}

// NewBidderRepository creates a new bidder repository
func NewBidderRepository(conn *Connection) *BidderRepository {
	return &BidderRepository{conn: conn}
}

// GetByID retrieves a bidder by ID
func (r *BidderRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Bidder, error) {
	query := `
		SELECT id, name
		FROM bidders
		WHERE id = $1
	`

	var bidder shared.Bidder
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&bidder.ID,
		&bidder.Name,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrBidderNotFound
		}
		return nil, fmt.Errorf("failed to get bidder: %w", err)
	}

	return &bidder, nil
}

// Create creates a bidder or renames an existing one
func (r *BidderRepository) Create(ctx context.Context, bidder *shared.Bidder) error {
	query := `
		INSERT INTO bidders (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		bidder.ID,
		bidder.Name,
	)

	if err != nil {
		return fmt.Errorf("failed to create bidder: %w", err)
	}

	return nil
}
