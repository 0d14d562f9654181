package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"auction-settlement/internal/domain"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	shipping, err := marshalAddress(order.ShippingAddress)
	if err != nil {
		return err
	}
	billing, err := marshalAddress(order.BillingAddress)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO orders (id, auction_id, user_id, shop_id, buyer_name, buyer_email, items,
            subtotal, tax, shipping_fee, total, shipping_address, billing_address,
            payment_status, status, source, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, query,
		order.ID, order.AuctionID, order.UserID, order.ShopID, order.BuyerName, order.BuyerEmail, items,
		order.Subtotal, order.Tax, order.ShippingFee, order.Total, shipping, billing,
		string(order.PaymentStatus), string(order.Status), string(order.Source), order.CreatedAt, order.UpdatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("create order for auction %s: %w", order.AuctionID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create order for auction %s: %w", order.AuctionID, err)
	}
	return nil
}

func (r *MySQLOrderRepository) GetOrderByAuction(ctx context.Context, auctionID string) (*domain.Order, error) {
	query := `
        SELECT id, auction_id, user_id, shop_id, buyer_name, buyer_email, items,
            subtotal, tax, shipping_fee, total, shipping_address, billing_address,
            payment_status, status, source, created_at, updated_at
        FROM orders WHERE auction_id = ?
    `

	var (
		order                              domain.Order
		items, shipping, billing           []byte
		paymentStatus, status, orderSource string
	)
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&order.ID, &order.AuctionID, &order.UserID, &order.ShopID, &order.BuyerName, &order.BuyerEmail, &items,
		&order.Subtotal, &order.Tax, &order.ShippingFee, &order.Total, &shipping, &billing,
		&paymentStatus, &status, &orderSource, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("order for auction %s: %w", auctionID, err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", order.ID, err)
	}
	if order.ShippingAddress, err = unmarshalAddress(shipping); err != nil {
		return nil, err
	}
	if order.BillingAddress, err = unmarshalAddress(billing); err != nil {
		return nil, err
	}
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.Status = domain.OrderStatus(status)
	order.Source = domain.OrderSource(orderSource)
	return &order, nil
}

func marshalAddress(a *domain.Address) (interface{}, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode address %s: %w", a.ID, err)
	}
	return b, nil
}

func unmarshalAddress(b []byte) (*domain.Address, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var a domain.Address
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	return &a, nil
}
