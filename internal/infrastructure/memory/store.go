package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is a concurrency-safe in-memory implementation of domain.StorageGateway.
// Every read returns a copy so callers never alias stored state.
type Store struct {
	mu              sync.RWMutex
	auctions        map[string]domain.Auction
	bids            map[string][]domain.Bid // key: auctionID
	orders          map[string]domain.Order // key: orderID
	ordersByAuction map[string]string       // key: auctionID -> orderID
	won             map[string]domain.WonAuctionRecord
	products        map[string]domain.Product
	users           map[string]domain.User
	addresses       map[string][]domain.Address // key: userID
	now             func() time.Time
}

var _ domain.StorageGateway = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		auctions:        make(map[string]domain.Auction),
		bids:            make(map[string][]domain.Bid),
		orders:          make(map[string]domain.Order),
		ordersByAuction: make(map[string]string),
		won:             make(map[string]domain.WonAuctionRecord),
		products:        make(map[string]domain.Product),
		users:           make(map[string]domain.User),
		addresses:       make(map[string][]domain.Address),
		now:             time.Now,
	}
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return cloneAuction(a), nil
}

func (s *Store) FindDueAuctions(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.AuctionLive && !a.EndTime.After(now) {
			due = append(due, cloneAuction(a))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].EndTime.Equal(due[j].EndTime) {
			return due[i].EndTime.Before(due[j].EndTime)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ClaimForClosing(ctx context.Context, auctionID string, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return false, fmt.Errorf("claim auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if !domain.CanTransition(a.Status, domain.AuctionEnded) {
		return false, nil
	}

	a.Status = domain.AuctionEnded
	ended := endedAt
	a.EndedAt = &ended
	a.UpdatedAt = s.now()
	s.auctions[auctionID] = a
	return true, nil
}

func (s *Store) RecordWinner(ctx context.Context, auctionID, winnerID string, finalBid decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("record winner for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if a.Status != domain.AuctionEnded {
		return fmt.Errorf("record winner for auction %s: auction is %s, not ended", auctionID, a.Status)
	}

	if a.WinnerID != "" || a.FinalBid.Valid {
		if a.WinnerID == winnerID && a.FinalBid.Valid && a.FinalBid.Decimal.Equal(finalBid) {
			return nil
		}
		return fmt.Errorf("record winner for auction %s: %w", auctionID, domain.ErrWinnerConflict)
	}

	a.WinnerID = winnerID
	a.FinalBid = decimal.NewNullDecimal(finalBid)
	a.UpdatedAt = s.now()
	s.auctions[auctionID] = a
	return nil
}

func (s *Store) FindEndedUnsettled(ctx context.Context, since time.Time, limit int) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Auction
	for _, a := range s.auctions {
		if a.Status != domain.AuctionEnded || a.EndedAt == nil || a.EndedAt.Before(since) {
			continue
		}
		if _, settled := s.won[a.ID]; settled {
			continue
		}
		out = append(out, cloneAuction(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndedAt.Equal(*out[j].EndedAt) {
			return out[i].EndedAt.Before(*out[j].EndedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TopBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.bids[auctionID]
	bids := make([]*domain.Bid, 0, len(stored))
	for i := range stored {
		b := stored[i]
		bids = append(bids, &b)
	}

	top := domain.PickWinningBid(bids)
	if top == nil {
		return nil, fmt.Errorf("top bid for auction %s: %w", auctionID, domain.ErrNoBids)
	}
	return top, nil
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByAuction[order.AuctionID]; exists {
		return fmt.Errorf("create order for auction %s: %w", order.AuctionID, domain.ErrAlreadyExists)
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("create order %s: %w", order.ID, domain.ErrAlreadyExists)
	}

	s.orders[order.ID] = cloneOrder(*order)
	s.ordersByAuction[order.AuctionID] = order.ID
	return nil
}

func (s *Store) GetOrderByAuction(ctx context.Context, auctionID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ordersByAuction[auctionID]
	if !ok {
		return nil, fmt.Errorf("order for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	o := cloneOrder(s.orders[id])
	return &o, nil
}

func (s *Store) CreateWonRecord(ctx context.Context, record *domain.WonAuctionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.won[record.AuctionID]; exists {
		return false, nil
	}
	s.won[record.AuctionID] = *record
	return true, nil
}

func (s *Store) GetWonRecord(ctx context.Context, auctionID string) (*domain.WonAuctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.won[auctionID]
	if !ok {
		return nil, fmt.Errorf("won record for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return &r, nil
}

func (s *Store) MarkOrderCreated(ctx context.Context, auctionID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.won[auctionID]
	if !ok {
		return fmt.Errorf("mark order created for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	r.OrderCreated = true
	r.OrderID = orderID
	s.won[auctionID] = r
	return nil
}

func (s *Store) ListIncompleteWonRecords(ctx context.Context, limit int) ([]*domain.WonAuctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.WonAuctionRecord
	for _, r := range s.won {
		if r.Complete() {
			continue
		}
		rec := r
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WonAt.Equal(out[j].WonAt) {
			return out[i].WonAt.Before(out[j].WonAt)
		}
		return out[i].AuctionID < out[j].AuctionID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID string, fn func(p *domain.Product) error) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustStockLocked(productID, fn)
}

func (s *Store) AdjustInventoryOnce(ctx context.Context, auctionID, productID string,
	fn func(p *domain.Product) error) (*domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.won[auctionID]
	if !ok || r.InventoryAdjusted {
		return nil, false, nil
	}

	p, err := s.adjustStockLocked(productID, fn)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	r.InventoryAdjusted = true
	s.won[auctionID] = r
	return p, true, err
}

// adjustStockLocked expects s.mu to be held.
func (s *Store) adjustStockLocked(productID string, fn func(p *domain.Product) error) (*domain.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("adjust stock for product %s: %w", productID, domain.ErrNotFound)
	}
	if err := fn(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	s.products[productID] = p

	out := p
	return &out, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) GetDefaultAddress(ctx context.Context, userID string) (*domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, addr := range s.addresses[userID] {
		if addr.IsDefault {
			a := addr
			return &a, nil
		}
	}
	return nil, fmt.Errorf("default address for user %s: %w", userID, domain.ErrNotFound)
}
