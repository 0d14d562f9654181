package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID           string
	Name         string
	Slug         string
	Images       []string
	ShopID       string
	ProductID    string // empty when the auction is not linked to a catalog product
	Status       AuctionStatus
	EndTime      time.Time
	ReservePrice decimal.NullDecimal
	StartingBid  decimal.Decimal
	CurrentBid   decimal.Decimal
	WinnerID     string
	FinalBid     decimal.NullDecimal
	EndedAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasWinner reports whether a sale was recorded. Status alone does not
// distinguish won auctions from no-bid or reserve-not-met closures.
func (a *Auction) HasWinner() bool {
	return a.WinnerID != "" && a.FinalBid.Valid
}

func (a *Auction) PrimaryImage() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0]
}

type AuctionStatus string

const (
	AuctionLive  AuctionStatus = "live"
	AuctionEnded AuctionStatus = "ended"
)

func (s AuctionStatus) String() string {
	return string(s)
}

var validNext = map[AuctionStatus]map[AuctionStatus]bool{
	AuctionLive:  {AuctionEnded: true},
	AuctionEnded: {},
}

// CanTransition encodes the auction state machine: live -> ended, nothing else.
func CanTransition(from, to AuctionStatus) bool {
	return validNext[from][to]
}

type Bid struct {
	ID        string
	AuctionID string
	UserID    string
	Amount    decimal.Decimal
	PlacedAt  time.Time
}

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
)

type OrderSource string

const (
	OrderSourceAuction OrderSource = "auction"
)

type OrderItem struct {
	Type      string          `json:"type"`
	AuctionID string          `json:"auction_id"`
	ProductID string          `json:"product_id,omitempty"`
	ShopID    string          `json:"shop_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID              string
	AuctionID       string
	UserID          string
	ShopID          string
	BuyerName       string
	BuyerEmail      string
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	ShippingFee     decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress *Address // nil when the winner had no default address on file
	BillingAddress  *Address
	PaymentStatus   PaymentStatus
	Status          OrderStatus
	Source          OrderSource
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type WonAuctionRecord struct {
	AuctionID         string
	UserID            string
	ShopID            string
	ProductID         string
	FinalBid          decimal.Decimal
	AuctionName       string
	AuctionSlug       string
	AuctionImage      string
	WonAt             time.Time
	OrderCreated      bool
	OrderID           string
	InventoryAdjusted bool
}

// Complete reports whether every settlement side effect has been applied.
func (r *WonAuctionRecord) Complete() bool {
	return r.OrderCreated && (r.ProductID == "" || r.InventoryAdjusted)
}

type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

type Product struct {
	ID        string
	Name      string
	Stock     int
	Status    ProductStatus
	UpdatedAt time.Time
}

type User struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type Address struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}
