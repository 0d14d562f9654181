package memory

import (
	"sort"

	"auction-settlement/internal/domain"
)

// The methods below load fixtures and inspect state. They back the memory
// storage driver's demo data and the tests; the closing engine never calls them.

func (s *Store) AddAuction(a domain.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = *cloneAuction(a)
}

func (s *Store) AddBid(b domain.Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[b.AuctionID] = append(s.bids[b.AuctionID], b)
}

func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddAddress(a domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.UserID] = append(s.addresses[a.UserID], a)
}

func (s *Store) GetProduct(productID string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return p, ok
}

// Orders returns every stored order sorted by auction id.
func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuctionID < out[j].AuctionID })
	return out
}

func (s *Store) WonRecords() []domain.WonAuctionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WonAuctionRecord, 0, len(s.won))
	for _, r := range s.won {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuctionID < out[j].AuctionID })
	return out
}

func cloneAuction(a domain.Auction) *domain.Auction {
	out := a
	if a.Images != nil {
		out.Images = append([]string(nil), a.Images...)
	}
	if a.EndedAt != nil {
		ended := *a.EndedAt
		out.EndedAt = &ended
	}
	return &out
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		out.ShippingAddress = &addr
	}
	if o.BillingAddress != nil {
		addr := *o.BillingAddress
		out.BillingAddress = &addr
	}
	return out
}
