package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const bidColumns = `id, lot_id, bidder_id, amount, bid_type, is_pre_bid, is_proxy, proxy_max, valid_until,
	parent_bid_id, sequence_number, status, placed_at, priority_at`

// Ledger ranking: amount, then first-in-time, then cascade order
const bidRanking = `amount DESC, priority_at ASC, sequence_number ASC`

// BidRepository implements the bid repository interface
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

func scanBid(row rowScanner) (*bid.Bid, error) {
	var b bid.Bid
	err := row.Scan(
		&b.ID,
		&b.LotID,
		&b.BidderID,
		&b.Amount,
		&b.Type,
		&b.IsPreBid,
		&b.IsProxy,
		&b.ProxyMax,
		&b.ValidUntil,
		&b.ParentBidID,
		&b.SequenceNumber,
		&b.Status,
		&b.PlacedAt,
		&b.PriorityAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BidRepository) queryBids(ctx context.Context, query string, args ...interface{}) ([]*bid.Bid, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	bids := []*bid.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return bids, nil
}

/*
Append records an accepted placement using optimistic concurrency control.
 1. Inserting the placed bid and any auto-bids it triggered
 2. Writing the lot's price, counter and timer only if its version is unchanged
 3. Rolling everything back if another transaction modified the lot concurrently
*/
func (r *BidRepository) Append(ctx context.Context, l *lot.Lot, bids []*bid.Bid) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO bids (` + bidColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

		for _, b := range bids {
			_, err := tx.ExecContext(ctx, query,
				b.ID,
				b.LotID,
				b.BidderID,
				b.Amount,
				b.Type,
				b.IsPreBid,
				b.IsProxy,
				b.ProxyMax,
				b.ValidUntil,
				b.ParentBidID,
				b.SequenceNumber,
				b.Status,
				b.PlacedAt,
				b.PriorityAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert bid: %w", err)
			}
		}

		return updateLot(ctx, tx, l)
	})
}

// GetByID retrieves a bid by ID
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return b, nil
}

// GetByLotID retrieves the ledger of a lot in placement order
func (r *BidRepository) GetByLotID(ctx context.Context, lotID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE lot_id = $1 ORDER BY position ASC`
	return r.queryBids(ctx, query, lotID)
}

// GetHighestBid retrieves the top placed pre-bid or live bid of a lot
func (r *BidRepository) GetHighestBid(ctx context.Context, lotID uuid.UUID, preBids bool) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE lot_id = $1 AND status = $2 AND is_pre_bid = $3
		ORDER BY ` + bidRanking + `
		LIMIT 1`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, lotID, bid.StatusPlaced, preBids))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return b, nil
}

// GetBidsSince retrieves bids placed at or after since
func (r *BidRepository) GetBidsSince(ctx context.Context, lotID uuid.UUID, since time.Time) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE lot_id = $1 AND placed_at >= $2 ORDER BY position ASC`
	return r.queryBids(ctx, query, lotID, since)
}

// GetByBidder retrieves one bidder's bids on a lot
func (r *BidRepository) GetByBidder(ctx context.Context, lotID, bidderID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE lot_id = $1 AND bidder_id = $2 ORDER BY position ASC`
	return r.queryBids(ctx, query, lotID, bidderID)
}

// CountBidderSince counts a bidder's own placements, auto-bids excluded
func (r *BidRepository) CountBidderSince(ctx context.Context, lotID, bidderID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bids
		WHERE lot_id = $1 AND bidder_id = $2 AND placed_at >= $3 AND bid_type <> $4
	`

	var count int
	err := r.conn.GetDB().QueryRowContext(ctx, query, lotID, bidderID, since, bid.TypeAutoBid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

// GetStandingProxies retrieves placed, unexpired proxy bids oldest first
func (r *BidRepository) GetStandingProxies(ctx context.Context, lotID uuid.UUID, now time.Time) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE lot_id = $1 AND bid_type = $2 AND status = $3 AND proxy_max IS NOT NULL
		  AND (valid_until IS NULL OR valid_until > $4)
		ORDER BY priority_at ASC, position ASC`
	return r.queryBids(ctx, query, lotID, bid.TypeProxyBid, bid.StatusPlaced, now)
}

// UpdateStatus persists a bid status transition
func (r *BidRepository) UpdateStatus(ctx context.Context, b *bid.Bid) error {
	query := `UPDATE bids SET status = $2 WHERE id = $1`

	result, err := r.conn.GetDB().ExecContext(ctx, query, b.ID, b.Status)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrBidNotFound
	}
	return nil
}
