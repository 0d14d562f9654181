package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-settlement/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) TopBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, placed_at
        FROM bids
        WHERE auction_id = ?
        ORDER BY amount DESC, placed_at ASC, id ASC
        LIMIT 1
    `

	var bid domain.Bid
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.ID, &bid.AuctionID, &bid.UserID, &bid.Amount, &bid.PlacedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("top bid for auction %s: %w", auctionID, domain.ErrNoBids)
	}
	if err != nil {
		return nil, fmt.Errorf("top bid for auction %s: %w", auctionID, err)
	}

	return &bid, nil
}
