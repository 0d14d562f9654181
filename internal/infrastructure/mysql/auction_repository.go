package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-settlement/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

const auctionColumns = `a.id, a.name, a.slug, a.images, a.shop_id, a.product_id, a.status, a.end_time,
        a.reserve_price, a.starting_bid, a.current_bid, a.winner_id, a.final_bid, a.ended_at,
        a.created_at, a.updated_at`

type MySQLAuctionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction   domain.Auction
		images    []byte
		productID sql.NullString
		winnerID  sql.NullString
		status    string
		endedAt   sql.NullTime
	)

	err := row.Scan(
		&auction.ID, &auction.Name, &auction.Slug, &images, &auction.ShopID, &productID,
		&status, &auction.EndTime, &auction.ReservePrice, &auction.StartingBid, &auction.CurrentBid,
		&winnerID, &auction.FinalBid, &endedAt, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &auction.Images); err != nil {
			return nil, fmt.Errorf("decode images of auction %s: %w", auction.ID, err)
		}
	}
	auction.Status = domain.AuctionStatus(status)
	auction.ProductID = productID.String
	auction.WinnerID = winnerID.String
	if endedAt.Valid {
		t := endedAt.Time
		auction.EndedAt = &t
	}
	return &auction, nil
}

func (r *MySQLAuctionRepository) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions a WHERE a.id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) FindDueAuctions(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions a
        WHERE a.status = ? AND a.end_time <= ?
        ORDER BY a.end_time ASC, a.id ASC
        LIMIT ?
    `
	return r.queryAuctions(ctx, query, string(domain.AuctionLive), now, limit)
}

// ClaimForClosing is a compare-and-set on status; exactly one caller sees a
// changed row.
func (r *MySQLAuctionRepository) ClaimForClosing(ctx context.Context, auctionID string, endedAt time.Time) (bool, error) {
	query := `UPDATE auctions SET status = ?, ended_at = ?, updated_at = ? WHERE id = ? AND status = ?`

	res, err := r.db.ExecContext(ctx, query,
		string(domain.AuctionEnded), endedAt, r.now(), auctionID, string(domain.AuctionLive))
	if err != nil {
		return false, fmt.Errorf("claim auction %s: %w", auctionID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim auction %s: %w", auctionID, err)
	}
	return n == 1, nil
}

func (r *MySQLAuctionRepository) RecordWinner(ctx context.Context, auctionID, winnerID string, finalBid decimal.Decimal) error {
	query := `
        UPDATE auctions SET winner_id = ?, final_bid = ?, updated_at = ?
        WHERE id = ? AND status = ? AND winner_id IS NULL AND final_bid IS NULL
    `
	res, err := r.db.ExecContext(ctx, query, winnerID, finalBid, r.now(), auctionID, string(domain.AuctionEnded))
	if err != nil {
		return fmt.Errorf("record winner for auction %s: %w", auctionID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("record winner for auction %s: %w", auctionID, err)
	} else if n == 1 {
		return nil
	}

	// nothing changed: find out whether this is a replay or a conflict
	var (
		status   string
		existing sql.NullString
		bid      decimal.NullDecimal
	)
	err = r.db.QueryRowContext(ctx, `SELECT status, winner_id, final_bid FROM auctions WHERE id = ?`, auctionID).
		Scan(&status, &existing, &bid)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record winner for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("record winner for auction %s: %w", auctionID, err)
	}

	if domain.AuctionStatus(status) != domain.AuctionEnded {
		return fmt.Errorf("record winner for auction %s: auction is %s, not ended", auctionID, status)
	}
	if existing.String == winnerID && bid.Valid && bid.Decimal.Equal(finalBid) {
		return nil
	}
	return fmt.Errorf("record winner for auction %s: %w", auctionID, domain.ErrWinnerConflict)
}

func (r *MySQLAuctionRepository) FindEndedUnsettled(ctx context.Context, since time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions a
        LEFT JOIN won_auctions w ON w.auction_id = a.id
        WHERE a.status = ? AND a.ended_at >= ? AND w.auction_id IS NULL
        ORDER BY a.ended_at ASC, a.id ASC
        LIMIT ?
    `
	return r.queryAuctions(ctx, query, string(domain.AuctionEnded), since, limit)
}
