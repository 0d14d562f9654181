package services

import (
	"context"
	"testing"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soldStore(t *testing.T, stock int) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(domain.Product{ID: "p1", Stock: stock, Status: domain.ProductActive})
	_, err := store.CreateWonRecord(context.Background(), &domain.WonAuctionRecord{
		AuctionID: "a1", UserID: "u1", ProductID: "p1", WonAt: baseTime,
	})
	require.NoError(t, err)
	return store
}

func TestInventoryAdjuster_Decrement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stock      int
		wantStock  int
		wantStatus domain.ProductStatus
	}{
		{name: "last unit", stock: 1, wantStock: 0, wantStatus: domain.ProductOutOfStock},
		{name: "already empty", stock: 0, wantStock: 0, wantStatus: domain.ProductOutOfStock},
		{name: "plenty left", stock: 5, wantStock: 4, wantStatus: domain.ProductActive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := soldStore(t, tc.stock)

			ia := NewInventoryAdjuster(store, logger.NewNop())
			require.NoError(t, ia.Decrement(context.Background(), "a1", "p1"))

			p, ok := store.GetProduct("p1")
			require.True(t, ok)
			assert.Equal(t, tc.wantStock, p.Stock)
			assert.Equal(t, tc.wantStatus, p.Status)
		})
	}
}

func TestInventoryAdjuster_OncePerAuction(t *testing.T) {
	t.Parallel()

	store := soldStore(t, 5)
	ia := NewInventoryAdjuster(store, logger.NewNop())
	require.NoError(t, ia.Decrement(context.Background(), "a1", "p1"))
	require.NoError(t, ia.Decrement(context.Background(), "a1", "p1"))

	p, ok := store.GetProduct("p1")
	require.True(t, ok)
	assert.Equal(t, 4, p.Stock)
}

func TestInventoryAdjuster_MissingProduct(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	_, err := store.CreateWonRecord(context.Background(), &domain.WonAuctionRecord{
		AuctionID: "a1", UserID: "u1", ProductID: "does-not-exist", WonAt: baseTime,
	})
	require.NoError(t, err)

	ia := NewInventoryAdjuster(store, logger.NewNop())
	assert.NoError(t, ia.Decrement(context.Background(), "a1", "does-not-exist"))

	rec, err := store.GetWonRecord(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, rec.InventoryAdjusted)
}
