package domain

//go:generate mockgen -destination=mocks/notification_dispatcher.go -package=mocks auction-settlement/internal/domain NotificationDispatcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository interfaces. Together they form the storage gateway the closing
// engine runs against; each backend implements all of them.
type AuctionRepository interface {
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	// FindDueAuctions returns live auctions whose end time is at or before now,
	// oldest first.
	FindDueAuctions(ctx context.Context, now time.Time, limit int) ([]*Auction, error)
	// ClaimForClosing atomically moves a live auction to ended. It returns
	// false when the auction was not live, i.e. another closer owns it.
	ClaimForClosing(ctx context.Context, auctionID string, endedAt time.Time) (bool, error)
	// RecordWinner sets winner_id/final_bid on an ended auction that has none.
	// Re-recording the same values is a no-op; different values yield
	// ErrWinnerConflict.
	RecordWinner(ctx context.Context, auctionID, winnerID string, finalBid decimal.Decimal) error
	// FindEndedUnsettled returns auctions ended at or after since that have no
	// won-auction record.
	FindEndedUnsettled(ctx context.Context, since time.Time, limit int) ([]*Auction, error)
}

type BidRepository interface {
	// TopBid returns the highest bid, ties broken by earliest placement.
	// ErrNoBids when the auction has none.
	TopBid(ctx context.Context, auctionID string) (*Bid, error)
}

type OrderRepository interface {
	// CreateOrder fails with ErrAlreadyExists if the auction already has an order.
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByAuction(ctx context.Context, auctionID string) (*Order, error)
}

type WonAuctionRepository interface {
	// CreateWonRecord inserts the record unless one exists for the auction.
	// It reports whether this call created it.
	CreateWonRecord(ctx context.Context, record *WonAuctionRecord) (bool, error)
	GetWonRecord(ctx context.Context, auctionID string) (*WonAuctionRecord, error)
	MarkOrderCreated(ctx context.Context, auctionID, orderID string) error
	// ListIncompleteWonRecords returns records with a pending order or
	// inventory side effect.
	ListIncompleteWonRecords(ctx context.Context, limit int) ([]*WonAuctionRecord, error)
}

type ProductRepository interface {
	// AdjustStock loads the product under a lock (or optimistic retry), lets
	// fn mutate it, then persists Stock and Status. ErrNotFound if missing.
	AdjustStock(ctx context.Context, productID string, fn func(p *Product) error) (*Product, error)
	// AdjustInventoryOnce sets the won record's inventory flag and applies fn
	// to the product as one step, at most once per auction. It returns false
	// and leaves stock alone when the flag is already set. A missing product
	// still sets the flag and yields ErrNotFound.
	AdjustInventoryOnce(ctx context.Context, auctionID, productID string, fn func(p *Product) error) (*Product, bool, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}

type AddressRepository interface {
	// GetDefaultAddress returns ErrNotFound when the user has no default address.
	GetDefaultAddress(ctx context.Context, userID string) (*Address, error)
}

type StorageGateway interface {
	AuctionRepository
	BidRepository
	OrderRepository
	WonAuctionRepository
	ProductRepository
	UserRepository
	AddressRepository
}

// Notification interfaces
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *Notification) error
}

type NotificationConsumer interface {
	Consume(ctx context.Context, handler NotificationHandler) error
}

type NotificationHandler func(n *Notification) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Inconsistency kinds reported by the closing engine and the reconciler.
const (
	InconsistencyUnresolved      = "ended_unresolved"
	InconsistencyUnsettled       = "ended_without_won_record"
	InconsistencyOrderMissing    = "won_without_order"
	InconsistencyInventoryMissed = "won_without_inventory_adjustment"
)

// ClosureMetrics receives the operational signals of closing cycles.
type ClosureMetrics interface {
	AuctionsScanned(n int)
	ScanFailed()
	AuctionClosed(outcome OutcomeKind, took time.Duration)
	ClosureFailed(stage string, took time.Duration)
	Inconsistency(kind string)
	Repaired(kind string)
	NotificationFailed(kind NotificationKind)
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	RecipientID() string
	ID() string
}

type ConnectionManager interface {
	RegisterConnection(conn WebSocketConnection) error
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForRecipient(recipientID string) []WebSocketConnection
	NotifyRecipient(recipientID string, message interface{}) (int, error)
	CloseAll() error
}
