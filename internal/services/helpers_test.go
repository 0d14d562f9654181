package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errStore = errors.New("orders table unavailable")
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []*domain.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n *domain.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) kinds(auctionID string) []domain.NotificationKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.NotificationKind
	for _, n := range d.sent {
		if n.AuctionID == auctionID {
			out = append(out, n.Kind)
		}
	}
	return out
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type recordingMetrics struct {
	mu              sync.Mutex
	scanned         int
	scanFailures    int
	closed          map[domain.OutcomeKind]int
	failed          map[string]int
	inconsistencies map[string]int
	repaired        map[string]int
	notifyFailures  map[domain.NotificationKind]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		closed:          make(map[domain.OutcomeKind]int),
		failed:          make(map[string]int),
		inconsistencies: make(map[string]int),
		repaired:        make(map[string]int),
		notifyFailures:  make(map[domain.NotificationKind]int),
	}
}

func (m *recordingMetrics) AuctionsScanned(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanned += n
}

func (m *recordingMetrics) ScanFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanFailures++
}

func (m *recordingMetrics) AuctionClosed(outcome domain.OutcomeKind, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[outcome]++
}

func (m *recordingMetrics) ClosureFailed(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[stage]++
}

func (m *recordingMetrics) Inconsistency(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inconsistencies[kind]++
}

func (m *recordingMetrics) Repaired(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repaired[kind]++
}

func (m *recordingMetrics) NotificationFailed(kind domain.NotificationKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyFailures[kind]++
}

// failingOrders makes order creation fail for selected auctions.
type failingOrders struct {
	domain.StorageGateway
	mu      sync.Mutex
	failFor map[string]bool
}

func (f *failingOrders) CreateOrder(ctx context.Context, order *domain.Order) error {
	f.mu.Lock()
	fail := f.failFor[order.AuctionID]
	f.mu.Unlock()
	if fail {
		return errStore
	}
	return f.StorageGateway.CreateOrder(ctx, order)
}

func (f *failingOrders) heal(auctionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failFor, auctionID)
}

// racingReconcilers fails inventory adjustment until healed, then holds every
// won record read at a rendezvous so concurrent settlers see the same state.
type racingReconcilers struct {
	domain.StorageGateway
	failing    atomic.Bool
	rendezvous *rendezvous
}

func (g *racingReconcilers) AdjustInventoryOnce(ctx context.Context, auctionID, productID string,
	fn func(p *domain.Product) error) (*domain.Product, bool, error) {
	if g.failing.Load() {
		return nil, false, errStore
	}
	return g.StorageGateway.AdjustInventoryOnce(ctx, auctionID, productID, fn)
}

func (g *racingReconcilers) GetWonRecord(ctx context.Context, auctionID string) (*domain.WonAuctionRecord, error) {
	rec, err := g.StorageGateway.GetWonRecord(ctx, auctionID)
	g.rendezvous.wait()
	return rec, err
}

// rendezvous releases its waiters once n of them have arrived, or after a
// second so a lone caller cannot hang a test.
type rendezvous struct {
	mu   sync.Mutex
	n    int
	done chan struct{}
}

func newRendezvous(n int) *rendezvous {
	return &rendezvous{n: n, done: make(chan struct{})}
}

func (r *rendezvous) wait() {
	r.mu.Lock()
	r.n--
	if r.n == 0 {
		close(r.done)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(time.Second):
	}
}

type fixture struct {
	store      *memory.Store
	gateway    domain.StorageGateway
	dispatcher *recordingDispatcher
	metrics    *recordingMetrics
	closer     *ClosingCoordinator
}

func newFixture(gateway func(*memory.Store) domain.StorageGateway) *fixture {
	store := memory.NewStore()
	var gw domain.StorageGateway = store
	if gateway != nil {
		gw = gateway(store)
	}

	f := &fixture{
		store:      store,
		gateway:    gw,
		dispatcher: &recordingDispatcher{},
		metrics:    newRecordingMetrics(),
	}
	f.closer = newCoordinator(gw, f.dispatcher, f.metrics)
	return f
}

func newCoordinator(gw domain.StorageGateway, d domain.NotificationDispatcher, m domain.ClosureMetrics) *ClosingCoordinator {
	log := logger.NewNop()
	c := NewClosingCoordinator(
		gw,
		NewWinnerResolver(),
		NewOrderSynthesizer(WithSynthesizerClock(func() time.Time { return baseTime })),
		NewInventoryAdjuster(gw, log),
		d,
		m,
		log,
	)
	c.SetClock(func() time.Time { return baseTime })
	return c
}

type auctionOpt func(*domain.Auction)

func withReserve(amount int64) auctionOpt {
	return func(a *domain.Auction) { a.ReservePrice = decimal.NewNullDecimal(decimal.NewFromInt(amount)) }
}

func withProduct(id string) auctionOpt {
	return func(a *domain.Auction) { a.ProductID = id }
}

func (f *fixture) addAuction(id string, opts ...auctionOpt) *domain.Auction {
	a := domain.Auction{
		ID:          id,
		Name:        "Vintage watch " + id,
		Slug:        "vintage-watch-" + id,
		Images:      []string{"https://cdn.example.com/" + id + ".jpg"},
		ShopID:      "shop-1",
		Status:      domain.AuctionLive,
		EndTime:     baseTime.Add(-time.Minute),
		StartingBid: decimal.NewFromInt(100),
	}
	for _, opt := range opts {
		opt(&a)
	}
	f.store.AddAuction(a)
	return &a
}

func (f *fixture) addBid(auctionID, id, userID string, amount int64, at time.Time) {
	f.store.AddBid(domain.Bid{
		ID:        id,
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    decimal.NewFromInt(amount),
		PlacedAt:  at,
	})
}

func (f *fixture) addBuyer(userID string) {
	f.store.AddUser(domain.User{ID: userID, Name: "Buyer " + userID, Email: userID + "@example.com"})
	f.store.AddAddress(domain.Address{
		ID:        "addr-" + userID,
		UserID:    userID,
		FullName:  "Buyer " + userID,
		Line1:     "12 Market St",
		City:      "Istanbul",
		Country:   "TR",
		IsDefault: true,
	})
}
