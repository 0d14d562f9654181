package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Closure stages, used as the metrics label and in ClosureError.
const (
	StageClaim   = "claim"
	StageResolve = "resolve"
	StageSettle  = "settle"
)

// ClosureError reports a closure that got past the claim (or failed on it)
// and then broke. The auction stays ended; the reconciler finishes the work.
type ClosureError struct {
	Stage     string
	AuctionID string
	Err       error
}

func (e *ClosureError) Error() string {
	return fmt.Sprintf("close auction %s: %s: %v", e.AuctionID, e.Stage, e.Err)
}

func (e *ClosureError) Unwrap() error {
	return e.Err
}

// Settlement describes how far the win-path side effects got.
type Settlement struct {
	Recorded          bool // a won-auction record exists
	RecordCreated     bool // this call created it
	OrderCreated      bool
	OrderID           string
	InventoryAdjusted bool
}

// pendingKind names the first side effect still missing.
func (s *Settlement) pendingKind() string {
	switch {
	case s == nil || !s.Recorded:
		return domain.InconsistencyUnsettled
	case !s.OrderCreated:
		return domain.InconsistencyOrderMissing
	default:
		return domain.InconsistencyInventoryMissed
	}
}

type ClosingCoordinator struct {
	store       domain.StorageGateway
	resolver    *WinnerResolver
	synthesizer *OrderSynthesizer
	inventory   *InventoryAdjuster
	dispatcher  domain.NotificationDispatcher
	metrics     domain.ClosureMetrics
	log         logger.Logger
	now         func() time.Time
}

func NewClosingCoordinator(
	store domain.StorageGateway,
	resolver *WinnerResolver,
	synthesizer *OrderSynthesizer,
	inventory *InventoryAdjuster,
	dispatcher domain.NotificationDispatcher,
	metrics domain.ClosureMetrics,
	log logger.Logger,
) *ClosingCoordinator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ClosingCoordinator{
		store:       store,
		resolver:    resolver,
		synthesizer: synthesizer,
		inventory:   inventory,
		dispatcher:  dispatcher,
		metrics:     metrics,
		log:         log,
		now:         time.Now,
	}
}

// SetClock replaces the coordinator's time source.
func (c *ClosingCoordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Close runs one auction end to end: claim, resolve, settle, notify.
// Losing the claim is not an error.
func (c *ClosingCoordinator) Close(ctx context.Context, auction *domain.Auction) (*domain.ClosureResult, error) {
	start := time.Now()
	log := c.log.With("auction_id", auction.ID)

	claimed, err := c.store.ClaimForClosing(ctx, auction.ID, c.now())
	if err != nil {
		c.metrics.ClosureFailed(StageClaim, time.Since(start))
		return nil, &ClosureError{Stage: StageClaim, AuctionID: auction.ID, Err: err}
	}
	if !claimed {
		log.Debug("Auction already claimed by another closer")
		c.metrics.AuctionClosed(domain.OutcomeClaimLost, time.Since(start))
		return &domain.ClosureResult{AuctionID: auction.ID, Outcome: domain.OutcomeClaimLost}, nil
	}

	outcome, err := c.resolve(ctx, auction)
	if err != nil {
		log.Error("Auction ended but could not be resolved", "error", err)
		c.metrics.Inconsistency(domain.InconsistencyUnresolved)
		c.metrics.ClosureFailed(StageResolve, time.Since(start))
		return nil, &ClosureError{Stage: StageResolve, AuctionID: auction.ID, Err: err}
	}

	result := &domain.ClosureResult{AuctionID: auction.ID, Outcome: outcome.Kind}
	if outcome.WinningBid != nil {
		result.HighestBidderID = outcome.WinningBid.UserID
		result.HighestBid = decimal.NewNullDecimal(outcome.WinningBid.Amount)
	}

	if outcome.Kind == domain.OutcomeWon {
		settlement, err := c.Settle(ctx, auction, outcome.WinningBid)
		if settlement != nil && settlement.RecordCreated {
			// the win is durable, so the parties hear about it even if the
			// order or stock update is left for the reconciler
			c.notify(ctx, auction, outcome)
		}
		if err != nil {
			kind := settlement.pendingKind()
			log.Error("Auction won but settlement is incomplete", "kind", kind, "error", err)
			c.metrics.Inconsistency(kind)
			c.metrics.ClosureFailed(StageSettle, time.Since(start))
			return nil, &ClosureError{Stage: StageSettle, AuctionID: auction.ID, Err: err}
		}

		result.WinnerID = outcome.WinningBid.UserID
		result.OrderID = settlement.OrderID
	} else {
		c.notify(ctx, auction, outcome)
	}

	c.metrics.AuctionClosed(outcome.Kind, time.Since(start))
	log.Info("Auction closed",
		"outcome", outcome.Kind,
		"winner_id", result.WinnerID,
		"highest_bidder_id", result.HighestBidderID,
		"order_id", result.OrderID,
	)
	return result, nil
}

func (c *ClosingCoordinator) resolve(ctx context.Context, auction *domain.Auction) (domain.Outcome, error) {
	var bids []*domain.Bid

	top, err := c.store.TopBid(ctx, auction.ID)
	switch {
	case errors.Is(err, domain.ErrNoBids):
	case err != nil:
		return domain.Outcome{}, fmt.Errorf("load top bid: %w", err)
	default:
		bids = append(bids, top)
	}

	return c.resolver.Resolve(bids, auction.ReservePrice), nil
}

// Settle applies the win-path side effects for an ended auction. Every step
// is keyed by auction id, so calling it again after a partial failure only
// performs what is still missing.
func (c *ClosingCoordinator) Settle(ctx context.Context, auction *domain.Auction, bid *domain.Bid) (*Settlement, error) {
	if err := c.store.RecordWinner(ctx, auction.ID, bid.UserID, bid.Amount); err != nil {
		return &Settlement{}, fmt.Errorf("record winner: %w", err)
	}

	winner, err := c.store.GetUser(ctx, bid.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		c.log.Warn("Winning bidder has no user profile", "auction_id", auction.ID, "user_id", bid.UserID)
		winner = nil
	} else if err != nil {
		return &Settlement{}, fmt.Errorf("load winner: %w", err)
	}

	address, err := c.store.GetDefaultAddress(ctx, bid.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		address = nil
	} else if err != nil {
		return &Settlement{}, fmt.Errorf("load winner address: %w", err)
	}

	record := &domain.WonAuctionRecord{
		AuctionID:    auction.ID,
		UserID:       bid.UserID,
		ShopID:       auction.ShopID,
		ProductID:    auction.ProductID,
		FinalBid:     bid.Amount,
		AuctionName:  auction.Name,
		AuctionSlug:  auction.Slug,
		AuctionImage: auction.PrimaryImage(),
		WonAt:        c.now(),
	}

	created, err := c.store.CreateWonRecord(ctx, record)
	if err != nil {
		return &Settlement{}, fmt.Errorf("create won record: %w", err)
	}
	if !created {
		record, err = c.store.GetWonRecord(ctx, auction.ID)
		if err != nil {
			return &Settlement{}, fmt.Errorf("load won record: %w", err)
		}
	}

	s := &Settlement{
		Recorded:          true,
		RecordCreated:     created,
		OrderCreated:      record.OrderCreated,
		OrderID:           record.OrderID,
		InventoryAdjusted: record.InventoryAdjusted,
	}

	var g errgroup.Group

	if !record.OrderCreated {
		g.Go(func() error {
			orderID, err := c.ensureOrder(ctx, auction, bid, winner, address)
			if err != nil {
				return err
			}
			s.OrderCreated = true
			s.OrderID = orderID
			return nil
		})
	}

	if record.ProductID != "" && !record.InventoryAdjusted {
		g.Go(func() error {
			if err := c.inventory.Decrement(ctx, auction.ID, record.ProductID); err != nil {
				return err
			}
			s.InventoryAdjusted = true
			return nil
		})
	}

	return s, g.Wait()
}

// ensureOrder returns the auction's order, creating it on first call.
func (c *ClosingCoordinator) ensureOrder(ctx context.Context, auction *domain.Auction, bid *domain.Bid,
	winner *domain.User, address *domain.Address) (string, error) {
	order, err := c.store.GetOrderByAuction(ctx, auction.ID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		order = c.synthesizer.Synthesize(auction, bid, winner, address)
		if err := c.store.CreateOrder(ctx, order); err != nil {
			if !errors.Is(err, domain.ErrAlreadyExists) {
				return "", fmt.Errorf("create order: %w", err)
			}
			existing, getErr := c.store.GetOrderByAuction(ctx, auction.ID)
			if getErr != nil {
				return "", fmt.Errorf("create order: %w", err)
			}
			order = existing
		}
	default:
		return "", fmt.Errorf("load order: %w", err)
	}

	if err := c.store.MarkOrderCreated(ctx, auction.ID, order.ID); err != nil {
		return "", fmt.Errorf("mark order created: %w", err)
	}
	return order.ID, nil
}

func (c *ClosingCoordinator) notify(ctx context.Context, auction *domain.Auction, outcome domain.Outcome) {
	switch outcome.Kind {
	case domain.OutcomeWon:
		amount := decimal.NewNullDecimal(outcome.WinningBid.Amount)
		c.send(ctx, auction, domain.NotifyWinner, domain.RoleBuyer, outcome.WinningBid.UserID, amount)
		c.send(ctx, auction, domain.NotifySellerSold, domain.RoleSeller, auction.ShopID, amount)
	case domain.OutcomeNoBids:
		c.send(ctx, auction, domain.NotifySellerNoBids, domain.RoleSeller, auction.ShopID, decimal.NullDecimal{})
	case domain.OutcomeReserveNotMet:
		amount := decimal.NewNullDecimal(outcome.WinningBid.Amount)
		c.send(ctx, auction, domain.NotifySellerReserveNotMet, domain.RoleSeller, auction.ShopID, amount)
		c.send(ctx, auction, domain.NotifyBidderReserveNotMet, domain.RoleBuyer, outcome.WinningBid.UserID, amount)
	}
}

// send dispatches one notification. Failures are logged and counted only.
func (c *ClosingCoordinator) send(ctx context.Context, auction *domain.Auction, kind domain.NotificationKind,
	role domain.RecipientRole, recipientID string, amount decimal.NullDecimal) {
	n := &domain.Notification{
		ID:            uuid.NewString(),
		Kind:          kind,
		RecipientRole: role,
		RecipientID:   recipientID,
		AuctionID:     auction.ID,
		AuctionName:   auction.Name,
		Amount:        amount,
		CreatedAt:     c.now(),
	}

	if err := c.dispatcher.Dispatch(ctx, n); err != nil {
		c.log.Error("Failed to dispatch notification",
			"auction_id", auction.ID, "kind", kind, "recipient_id", recipientID, "error", err)
		c.metrics.NotificationFailed(kind)
	}
}

type nopMetrics struct{}

func (nopMetrics) AuctionsScanned(int) {}
func (nopMetrics) ScanFailed() {}
func (nopMetrics) AuctionClosed(domain.OutcomeKind, time.Duration) {}
func (nopMetrics) ClosureFailed(string, time.Duration) {}
func (nopMetrics) Inconsistency(string) {}
func (nopMetrics) Repaired(string) {}
func (nopMetrics) NotificationFailed(domain.NotificationKind) {}
