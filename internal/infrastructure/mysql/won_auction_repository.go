package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-settlement/internal/domain"
)

const wonColumns = `auction_id, user_id, shop_id, product_id, final_bid, auction_name, auction_slug,
        auction_image, won_at, order_created, order_id, inventory_adjusted`

type MySQLWonAuctionRepository struct {
	db *sql.DB
}

func NewMySQLWonAuctionRepository(db *sql.DB) *MySQLWonAuctionRepository {
	return &MySQLWonAuctionRepository{db: db}
}

func scanWonRecord(row rowScanner) (*domain.WonAuctionRecord, error) {
	var (
		rec       domain.WonAuctionRecord
		productID sql.NullString
		orderID   sql.NullString
	)
	err := row.Scan(&rec.AuctionID, &rec.UserID, &rec.ShopID, &productID, &rec.FinalBid,
		&rec.AuctionName, &rec.AuctionSlug, &rec.AuctionImage, &rec.WonAt,
		&rec.OrderCreated, &orderID, &rec.InventoryAdjusted)
	if err != nil {
		return nil, err
	}
	rec.ProductID = productID.String
	rec.OrderID = orderID.String
	return &rec, nil
}

// CreateWonRecord relies on the primary key on auction_id for insert-if-absent.
func (r *MySQLWonAuctionRepository) CreateWonRecord(ctx context.Context, rec *domain.WonAuctionRecord) (bool, error) {
	query := `INSERT INTO won_auctions (` + wonColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.AuctionID, rec.UserID, rec.ShopID, nullString(rec.ProductID), rec.FinalBid,
		rec.AuctionName, rec.AuctionSlug, rec.AuctionImage, rec.WonAt,
		rec.OrderCreated, nullString(rec.OrderID), rec.InventoryAdjusted)
	if isDuplicate(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create won record for auction %s: %w", rec.AuctionID, err)
	}
	return true, nil
}

func (r *MySQLWonAuctionRepository) GetWonRecord(ctx context.Context, auctionID string) (*domain.WonAuctionRecord, error) {
	query := `SELECT ` + wonColumns + ` FROM won_auctions WHERE auction_id = ?`

	rec, err := scanWonRecord(r.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("won record for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("won record for auction %s: %w", auctionID, err)
	}
	return rec, nil
}

func (r *MySQLWonAuctionRepository) MarkOrderCreated(ctx context.Context, auctionID, orderID string) error {
	query := `UPDATE won_auctions SET order_created = TRUE, order_id = ? WHERE auction_id = ?`
	if _, err := r.db.ExecContext(ctx, query, orderID, auctionID); err != nil {
		return fmt.Errorf("mark order created for auction %s: %w", auctionID, err)
	}
	return nil
}

func (r *MySQLWonAuctionRepository) ListIncompleteWonRecords(ctx context.Context, limit int) ([]*domain.WonAuctionRecord, error) {
	query := `
        SELECT ` + wonColumns + `
        FROM won_auctions
        WHERE order_created = FALSE OR (product_id IS NOT NULL AND inventory_adjusted = FALSE)
        ORDER BY won_at ASC, auction_id ASC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list incomplete won records: %w", err)
	}
	defer rows.Close()

	var records []*domain.WonAuctionRecord
	for rows.Next() {
		rec, err := scanWonRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
