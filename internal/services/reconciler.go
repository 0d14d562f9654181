package services

import (
	"context"
	"fmt"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

type ReconcilerOptions struct {
	Lookback  time.Duration
	BatchSize int
	// Grace skips closures younger than this so a closure still in flight is
	// not settled twice. Use at least the per-auction timeout.
	Grace time.Duration
}

type ReconcileReport struct {
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Found      map[string]int `json:"found"`
	Repaired   int            `json:"repaired"`
	Failed     int            `json:"failed"`
}

// Reconciler repairs closures that ended without finishing settlement.
type Reconciler struct {
	store       domain.StorageGateway
	coordinator *ClosingCoordinator
	opts        ReconcilerOptions
	metrics     domain.ClosureMetrics
	log         logger.Logger
}

func NewReconciler(store domain.StorageGateway, coordinator *ClosingCoordinator, opts ReconcilerOptions,
	metrics domain.ClosureMetrics, log logger.Logger) *Reconciler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Reconciler{
		store:       store,
		coordinator: coordinator,
		opts:        opts,
		metrics:     metrics,
		log:         log,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{StartedAt: now, Found: make(map[string]int)}
	cutoff := now.Add(-r.opts.Grace)

	if err := r.settleUnresolved(ctx, now, cutoff, report); err != nil {
		return nil, err
	}
	if err := r.completeWonRecords(ctx, cutoff, report); err != nil {
		return nil, err
	}

	report.DurationMS = time.Since(start).Milliseconds()
	if len(report.Found) > 0 {
		r.log.Info("Reconciliation finished",
			"found", report.Found,
			"repaired", report.Repaired,
			"failed", report.Failed,
			"duration_ms", report.DurationMS)
	}
	return report, nil
}

// settleUnresolved handles ended auctions that qualify for a winner but have
// no won-auction record.
func (r *Reconciler) settleUnresolved(ctx context.Context, now, cutoff time.Time, report *ReconcileReport) error {
	auctions, err := r.store.FindEndedUnsettled(ctx, now.Add(-r.opts.Lookback), r.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("find unsettled auctions: %w", err)
	}

	for _, auction := range auctions {
		if auction.EndedAt != nil && auction.EndedAt.After(cutoff) {
			continue
		}

		outcome, err := r.coordinator.resolve(ctx, auction)
		if err != nil {
			r.log.Error("Failed to resolve ended auction", "auction_id", auction.ID, "error", err)
			report.Failed++
			continue
		}
		// no bids and reserve not met leave nothing to settle
		if outcome.Kind != domain.OutcomeWon {
			continue
		}

		r.found(report, auction.ID, domain.InconsistencyUnsettled)
		settlement, err := r.coordinator.Settle(ctx, auction, outcome.WinningBid)
		if settlement != nil && settlement.RecordCreated {
			r.coordinator.notify(ctx, auction, outcome)
		}
		r.finish(report, auction.ID, domain.InconsistencyUnsettled, err)
	}
	return nil
}

// completeWonRecords reruns the pending side effects of won auctions.
func (r *Reconciler) completeWonRecords(ctx context.Context, cutoff time.Time, report *ReconcileReport) error {
	records, err := r.store.ListIncompleteWonRecords(ctx, r.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list incomplete won records: %w", err)
	}

	for _, rec := range records {
		if rec.WonAt.After(cutoff) {
			continue
		}

		kind := domain.InconsistencyOrderMissing
		if rec.OrderCreated {
			kind = domain.InconsistencyInventoryMissed
		}
		r.found(report, rec.AuctionID, kind)

		auction, err := r.store.GetAuction(ctx, rec.AuctionID)
		if err != nil {
			r.finish(report, rec.AuctionID, kind, fmt.Errorf("load auction: %w", err))
			continue
		}

		bid := &domain.Bid{AuctionID: rec.AuctionID, UserID: rec.UserID, Amount: rec.FinalBid}
		_, err = r.coordinator.Settle(ctx, auction, bid)
		r.finish(report, rec.AuctionID, kind, err)
	}
	return nil
}

func (r *Reconciler) found(report *ReconcileReport, auctionID, kind string) {
	report.Found[kind]++
	r.metrics.Inconsistency(kind)
	r.log.Warn("Inconsistent closure found", "auction_id", auctionID, "kind", kind)
}

func (r *Reconciler) finish(report *ReconcileReport, auctionID, kind string, err error) {
	if err != nil {
		r.log.Error("Failed to repair closure", "auction_id", auctionID, "kind", kind, "error", err)
		report.Failed++
		return
	}
	r.metrics.Repaired(kind)
	report.Repaired++
	r.log.Info("Closure repaired", "auction_id", auctionID, "kind", kind)
}
