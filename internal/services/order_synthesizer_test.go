package services

import (
	"regexp"
	"testing"
	"time"

	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSynthesizer_Totals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   string
		wantTax   string
		wantTotal string
	}{
		{amount: "1000", wantTax: "180", wantTotal: "1180"},
		{amount: "999.50", wantTax: "180", wantTotal: "1179.5"},
		{amount: "25", wantTax: "5", wantTotal: "30"}, // 4.5 rounds away from zero
		{amount: "2", wantTax: "0", wantTotal: "2"},
	}

	s := NewOrderSynthesizer()
	auction := &domain.Auction{ID: "a1", ShopID: "shop-1", Name: "Lamp"}
	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			bid := &domain.Bid{UserID: "u1", Amount: decimal.RequireFromString(tc.amount)}
			order := s.Synthesize(auction, bid, nil, nil)

			assert.True(t, order.Subtotal.Equal(bid.Amount), "subtotal %s", order.Subtotal)
			assert.True(t, order.Tax.Equal(decimal.RequireFromString(tc.wantTax)), "tax %s", order.Tax)
			assert.True(t, order.Total.Equal(decimal.RequireFromString(tc.wantTotal)), "total %s", order.Total)
			assert.True(t, order.ShippingFee.IsZero())
		})
	}
}

func TestOrderSynthesizer_Snapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewOrderSynthesizer(
		WithSynthesizerClock(func() time.Time { return now }),
		WithOrderIDFunc(func(at time.Time) string { return "ORD-FIXED" }),
	)

	auction := &domain.Auction{
		ID:        "a1",
		Name:      "Lamp",
		Slug:      "lamp",
		Images:    []string{"lamp-1.jpg", "lamp-2.jpg"},
		ShopID:    "shop-1",
		ProductID: "p1",
	}
	bid := &domain.Bid{UserID: "u1", Amount: decimal.NewFromInt(1000)}
	winner := &domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	addr := &domain.Address{ID: "addr-1", UserID: "u1", City: "Izmir", IsDefault: true}

	order := s.Synthesize(auction, bid, winner, addr)

	assert.Equal(t, "ORD-FIXED", order.ID)
	assert.Equal(t, "a1", order.AuctionID)
	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, "shop-1", order.ShopID)
	assert.Equal(t, "Ada", order.BuyerName)
	assert.Equal(t, "ada@example.com", order.BuyerEmail)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.Equal(t, domain.OrderSourceAuction, order.Source)
	assert.Equal(t, now, order.CreatedAt)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "auction", item.Type)
	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, "lamp-1.jpg", item.Image)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, item.Price.Equal(bid.Amount))

	require.NotNil(t, order.ShippingAddress)
	require.NotNil(t, order.BillingAddress)
	assert.Equal(t, "Izmir", order.ShippingAddress.City)

	// the snapshot must not alias the caller's address
	addr.City = "Bursa"
	assert.Equal(t, "Izmir", order.ShippingAddress.City)
}

func TestOrderSynthesizer_DefaultID(t *testing.T) {
	t.Parallel()

	order := NewOrderSynthesizer().Synthesize(&domain.Auction{ID: "a1"},
		&domain.Bid{UserID: "u1", Amount: decimal.NewFromInt(10)}, nil, nil)

	assert.Regexp(t, regexp.MustCompile(`^ORD-\d+-[0-9A-F]{8}$`), order.ID)
	assert.Nil(t, order.ShippingAddress)
	assert.Empty(t, order.BuyerEmail)
}
