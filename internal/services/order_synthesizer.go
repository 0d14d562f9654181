package services

import (
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/utils"

	"github.com/shopspring/decimal"
)

// TaxRate applied to the hammer price of auction orders.
var TaxRate = decimal.RequireFromString("0.18")

type OrderSynthesizer struct {
	newID func(at time.Time) string
	now   func() time.Time
}

type SynthesizerOption func(*OrderSynthesizer)

func WithOrderIDFunc(fn func(at time.Time) string) SynthesizerOption {
	return func(s *OrderSynthesizer) { s.newID = fn }
}

func WithSynthesizerClock(now func() time.Time) SynthesizerOption {
	return func(s *OrderSynthesizer) { s.now = now }
}

func NewOrderSynthesizer(opts ...SynthesizerOption) *OrderSynthesizer {
	s := &OrderSynthesizer{
		newID: func(at time.Time) string { return utils.GenerateIDAt("ord", at) },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds the pending order for a won auction. winner and shipping
// may be nil; the order then carries no buyer contact or address snapshot.
func (s *OrderSynthesizer) Synthesize(auction *domain.Auction, bid *domain.Bid, winner *domain.User, shipping *domain.Address) *domain.Order {
	now := s.now()
	subtotal := bid.Amount
	tax := subtotal.Mul(TaxRate).Round(0)

	order := &domain.Order{
		ID:        s.newID(now),
		AuctionID: auction.ID,
		UserID:    bid.UserID,
		ShopID:    auction.ShopID,
		Items: []domain.OrderItem{{
			Type:      string(domain.OrderSourceAuction),
			AuctionID: auction.ID,
			ProductID: auction.ProductID,
			ShopID:    auction.ShopID,
			Name:      auction.Name,
			Slug:      auction.Slug,
			Image:     auction.PrimaryImage(),
			Quantity:  1,
			Price:     bid.Amount,
		}},
		Subtotal:      subtotal,
		Tax:           tax,
		ShippingFee:   decimal.Zero,
		Total:         subtotal.Add(tax),
		PaymentStatus: domain.PaymentPending,
		Status:        domain.OrderPending,
		Source:        domain.OrderSourceAuction,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if winner != nil {
		order.BuyerName = winner.Name
		order.BuyerEmail = winner.Email
	}
	if shipping != nil {
		ship := *shipping
		bill := *shipping
		order.ShippingAddress = &ship
		order.BillingAddress = &bill
	}

	return order
}
