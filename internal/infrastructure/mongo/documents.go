package mongo

import (
	"time"

	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is stored as Decimal128 so comparisons and sorts happen numerically
// on the server.

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		panic(err) // unreachable for amounts in money range
	}
	return v
}

func toNullDecimal128(d decimal.NullDecimal) *primitive.Decimal128 {
	if !d.Valid {
		return nil
	}
	v := toDecimal128(d.Decimal)
	return &v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fromNullDecimal128(v *primitive.Decimal128) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(fromDecimal128(*v))
}

type auctionDoc struct {
	ID           string                `bson:"_id"`
	Name         string                `bson:"name"`
	Slug         string                `bson:"slug"`
	Images       []string              `bson:"images,omitempty"`
	ShopID       string                `bson:"shop_id"`
	ProductID    string                `bson:"product_id,omitempty"`
	Status       string                `bson:"status"`
	EndTime      time.Time             `bson:"end_time"`
	ReservePrice *primitive.Decimal128 `bson:"reserve_price,omitempty"`
	StartingBid  primitive.Decimal128  `bson:"starting_bid"`
	CurrentBid   primitive.Decimal128  `bson:"current_bid"`
	WinnerID     string                `bson:"winner_id,omitempty"`
	FinalBid     *primitive.Decimal128 `bson:"final_bid,omitempty"`
	EndedAt      *time.Time            `bson:"ended_at,omitempty"`
	CreatedAt    time.Time             `bson:"created_at"`
	UpdatedAt    time.Time             `bson:"updated_at"`
}

func newAuctionDoc(a *domain.Auction) auctionDoc {
	return auctionDoc{
		ID:           a.ID,
		Name:         a.Name,
		Slug:         a.Slug,
		Images:       a.Images,
		ShopID:       a.ShopID,
		ProductID:    a.ProductID,
		Status:       string(a.Status),
		EndTime:      a.EndTime,
		ReservePrice: toNullDecimal128(a.ReservePrice),
		StartingBid:  toDecimal128(a.StartingBid),
		CurrentBid:   toDecimal128(a.CurrentBid),
		WinnerID:     a.WinnerID,
		FinalBid:     toNullDecimal128(a.FinalBid),
		EndedAt:      a.EndedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d auctionDoc) toDomain() *domain.Auction {
	return &domain.Auction{
		ID:           d.ID,
		Name:         d.Name,
		Slug:         d.Slug,
		Images:       d.Images,
		ShopID:       d.ShopID,
		ProductID:    d.ProductID,
		Status:       domain.AuctionStatus(d.Status),
		EndTime:      d.EndTime,
		ReservePrice: fromNullDecimal128(d.ReservePrice),
		StartingBid:  fromDecimal128(d.StartingBid),
		CurrentBid:   fromDecimal128(d.CurrentBid),
		WinnerID:     d.WinnerID,
		FinalBid:     fromNullDecimal128(d.FinalBid),
		EndedAt:      d.EndedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type bidDoc struct {
	ID        string               `bson:"_id"`
	AuctionID string               `bson:"auction_id"`
	UserID    string               `bson:"user_id"`
	Amount    primitive.Decimal128 `bson:"amount"`
	PlacedAt  time.Time            `bson:"placed_at"`
}

func (d bidDoc) toDomain() *domain.Bid {
	return &domain.Bid{
		ID:        d.ID,
		AuctionID: d.AuctionID,
		UserID:    d.UserID,
		Amount:    fromDecimal128(d.Amount),
		PlacedAt:  d.PlacedAt,
	}
}

type orderItemDoc struct {
	Type      string               `bson:"type"`
	AuctionID string               `bson:"auction_id"`
	ProductID string               `bson:"product_id,omitempty"`
	ShopID    string               `bson:"shop_id"`
	Name      string               `bson:"name"`
	Slug      string               `bson:"slug"`
	Image     string               `bson:"image,omitempty"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

type addressDoc struct {
	ID         string `bson:"_id"`
	UserID     string `bson:"user_id"`
	FullName   string `bson:"full_name"`
	Phone      string `bson:"phone,omitempty"`
	Line1      string `bson:"line1"`
	Line2      string `bson:"line2,omitempty"`
	City       string `bson:"city"`
	State      string `bson:"state,omitempty"`
	PostalCode string `bson:"postal_code,omitempty"`
	Country    string `bson:"country"`
	IsDefault  bool   `bson:"is_default"`
}

func newAddressDoc(a *domain.Address) *addressDoc {
	if a == nil {
		return nil
	}
	d := addressDoc(*a)
	return &d
}

func (d *addressDoc) toDomain() *domain.Address {
	if d == nil {
		return nil
	}
	a := domain.Address(*d)
	return &a
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	AuctionID       string               `bson:"auction_id"`
	UserID          string               `bson:"user_id"`
	ShopID          string               `bson:"shop_id"`
	BuyerName       string               `bson:"buyer_name"`
	BuyerEmail      string               `bson:"buyer_email"`
	Items           []orderItemDoc       `bson:"items"`
	Subtotal        primitive.Decimal128 `bson:"subtotal"`
	Tax             primitive.Decimal128 `bson:"tax"`
	ShippingFee     primitive.Decimal128 `bson:"shipping_fee"`
	Total           primitive.Decimal128 `bson:"total"`
	ShippingAddress *addressDoc          `bson:"shipping_address,omitempty"`
	BillingAddress  *addressDoc          `bson:"billing_address,omitempty"`
	PaymentStatus   string               `bson:"payment_status"`
	Status          string               `bson:"status"`
	Source          string               `bson:"source"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func newOrderDoc(o *domain.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDoc{
			Type:      it.Type,
			AuctionID: it.AuctionID,
			ProductID: it.ProductID,
			ShopID:    it.ShopID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Quantity:  it.Quantity,
			Price:     toDecimal128(it.Price),
		})
	}
	return orderDoc{
		ID:              o.ID,
		AuctionID:       o.AuctionID,
		UserID:          o.UserID,
		ShopID:          o.ShopID,
		BuyerName:       o.BuyerName,
		BuyerEmail:      o.BuyerEmail,
		Items:           items,
		Subtotal:        toDecimal128(o.Subtotal),
		Tax:             toDecimal128(o.Tax),
		ShippingFee:     toDecimal128(o.ShippingFee),
		Total:           toDecimal128(o.Total),
		ShippingAddress: newAddressDoc(o.ShippingAddress),
		BillingAddress:  newAddressDoc(o.BillingAddress),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		Source:          string(o.Source),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() *domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.OrderItem{
			Type:      it.Type,
			AuctionID: it.AuctionID,
			ProductID: it.ProductID,
			ShopID:    it.ShopID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Quantity:  it.Quantity,
			Price:     fromDecimal128(it.Price),
		})
	}
	return &domain.Order{
		ID:              d.ID,
		AuctionID:       d.AuctionID,
		UserID:          d.UserID,
		ShopID:          d.ShopID,
		BuyerName:       d.BuyerName,
		BuyerEmail:      d.BuyerEmail,
		Items:           items,
		Subtotal:        fromDecimal128(d.Subtotal),
		Tax:             fromDecimal128(d.Tax),
		ShippingFee:     fromDecimal128(d.ShippingFee),
		Total:           fromDecimal128(d.Total),
		ShippingAddress: d.ShippingAddress.toDomain(),
		BillingAddress:  d.BillingAddress.toDomain(),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		Status:          domain.OrderStatus(d.Status),
		Source:          domain.OrderSource(d.Source),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type wonAuctionDoc struct {
	AuctionID         string               `bson:"_id"`
	UserID            string               `bson:"user_id"`
	ShopID            string               `bson:"shop_id"`
	ProductID         string               `bson:"product_id,omitempty"`
	FinalBid          primitive.Decimal128 `bson:"final_bid"`
	AuctionName       string               `bson:"auction_name"`
	AuctionSlug       string               `bson:"auction_slug"`
	AuctionImage      string               `bson:"auction_image"`
	WonAt             time.Time            `bson:"won_at"`
	OrderCreated      bool                 `bson:"order_created"`
	OrderID           string               `bson:"order_id,omitempty"`
	InventoryAdjusted bool                 `bson:"inventory_adjusted"`
}

func newWonAuctionDoc(r *domain.WonAuctionRecord) wonAuctionDoc {
	return wonAuctionDoc{
		AuctionID:         r.AuctionID,
		UserID:            r.UserID,
		ShopID:            r.ShopID,
		ProductID:         r.ProductID,
		FinalBid:          toDecimal128(r.FinalBid),
		AuctionName:       r.AuctionName,
		AuctionSlug:       r.AuctionSlug,
		AuctionImage:      r.AuctionImage,
		WonAt:             r.WonAt,
		OrderCreated:      r.OrderCreated,
		OrderID:           r.OrderID,
		InventoryAdjusted: r.InventoryAdjusted,
	}
}

func (d wonAuctionDoc) toDomain() *domain.WonAuctionRecord {
	return &domain.WonAuctionRecord{
		AuctionID:         d.AuctionID,
		UserID:            d.UserID,
		ShopID:            d.ShopID,
		ProductID:         d.ProductID,
		FinalBid:          fromDecimal128(d.FinalBid),
		AuctionName:       d.AuctionName,
		AuctionSlug:       d.AuctionSlug,
		AuctionImage:      d.AuctionImage,
		WonAt:             d.WonAt,
		OrderCreated:      d.OrderCreated,
		OrderID:           d.OrderID,
		InventoryAdjusted: d.InventoryAdjusted,
	}
}

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Stock     int       `bson:"stock"`
	Status    string    `bson:"status"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type userDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone,omitempty"`
}
