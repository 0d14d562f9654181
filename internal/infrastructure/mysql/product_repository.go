package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-settlement/internal/domain"
)

type MySQLProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLProductRepository(db *sql.DB) *MySQLProductRepository {
	return &MySQLProductRepository{db: db, now: time.Now}
}

// AdjustStock runs fn with the product row locked (SELECT ... FOR UPDATE) so
// concurrent adjustments serialise.
func (r *MySQLProductRepository) AdjustStock(ctx context.Context, productID string, fn func(p *domain.Product) error) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("adjust stock for product %s: %w", productID, err)
	}
	defer tx.Rollback()

	p, err := r.adjustStockTx(ctx, tx, productID, fn)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("adjust stock for product %s: %w", productID, err)
	}
	return p, nil
}

// AdjustInventoryOnce flips won_auctions.inventory_adjusted and updates the
// product in one transaction. The conditional update holds the won record's
// row lock, so a concurrent caller blocks and then matches no row.
func (r *MySQLProductRepository) AdjustInventoryOnce(ctx context.Context, auctionID, productID string,
	fn func(p *domain.Product) error) (*domain.Product, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("adjust inventory for auction %s: %w", auctionID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE won_auctions SET inventory_adjusted = TRUE WHERE auction_id = ? AND inventory_adjusted = FALSE`,
		auctionID)
	if err != nil {
		return nil, false, fmt.Errorf("adjust inventory for auction %s: %w", auctionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("adjust inventory for auction %s: %w", auctionID, err)
	}
	if n == 0 {
		return nil, false, nil
	}

	p, err := r.adjustStockTx(ctx, tx, productID, fn)
	if errors.Is(err, domain.ErrNotFound) {
		if cerr := tx.Commit(); cerr != nil {
			return nil, false, fmt.Errorf("adjust inventory for auction %s: %w", auctionID, cerr)
		}
		return nil, true, err
	}
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("adjust inventory for auction %s: %w", auctionID, err)
	}
	return p, true, nil
}

func (r *MySQLProductRepository) adjustStockTx(ctx context.Context, tx *sql.Tx, productID string,
	fn func(p *domain.Product) error) (*domain.Product, error) {
	var (
		p      domain.Product
		status string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, stock, status, updated_at FROM products WHERE id = ? FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Stock, &status, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adjust stock for product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("adjust stock for product %s: %w", productID, err)
	}
	p.Status = domain.ProductStatus(status)

	if err := fn(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = r.now()

	_, err = tx.ExecContext(ctx, `UPDATE products SET stock = ?, status = ?, updated_at = ? WHERE id = ?`,
		p.Stock, string(p.Status), p.UpdatedAt, p.ID)
	if err != nil {
		return nil, fmt.Errorf("adjust stock for product %s: %w", productID, err)
	}
	return &p, nil
}
