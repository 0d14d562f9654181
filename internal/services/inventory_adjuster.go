package services

import (
	"context"
	"errors"
	"fmt"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

type InventoryAdjuster struct {
	products domain.ProductRepository
	log      logger.Logger
}

func NewInventoryAdjuster(products domain.ProductRepository, log logger.Logger) *InventoryAdjuster {
	return &InventoryAdjuster{
		products: products,
		log:      log,
	}
}

// Decrement takes one unit of stock for the product sold in an auction, at
// most once per auction. Stock never goes below zero and a product that
// reaches zero is marked out of stock. A nil error means the auction's
// inventory step is done, whether by this call or an earlier one.
func (ia *InventoryAdjuster) Decrement(ctx context.Context, auctionID, productID string) error {
	p, applied, err := ia.products.AdjustInventoryOnce(ctx, auctionID, productID, decrementStock)
	if errors.Is(err, domain.ErrNotFound) {
		ia.log.Warn("Linked product not found, skipping inventory adjustment",
			"auction_id", auctionID, "product_id", productID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("decrement stock for product %s: %w", productID, err)
	}
	if !applied {
		ia.log.Debug("Inventory already adjusted", "auction_id", auctionID, "product_id", productID)
		return nil
	}

	ia.log.Info("Inventory adjusted", "auction_id", auctionID, "product_id", productID,
		"stock", p.Stock, "status", p.Status)
	return nil
}

func decrementStock(p *domain.Product) error {
	if p.Stock > 0 {
		p.Stock--
	}
	if p.Stock == 0 {
		p.Status = domain.ProductOutOfStock
	}
	return nil
}
