package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

var ErrSchedulerRunning = errors.New("scheduler already running")

type SchedulerOptions struct {
	ClosingSchedule   string
	ReconcileSchedule string // empty disables the reconciliation job
	Workers           int
	AuctionTimeout    time.Duration
	InstanceID        string
}

type CycleFailure struct {
	AuctionID string `json:"auction_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// CycleReport aggregates one scan-and-close cycle.
type CycleReport struct {
	StartedAt  time.Time                  `json:"started_at"`
	DurationMS int64                      `json:"duration_ms"`
	Scanned    int                        `json:"scanned"`
	Outcomes   map[domain.OutcomeKind]int `json:"outcomes"`
	Failed     int                        `json:"failed"`
	Results    []*domain.ClosureResult    `json:"results"`
	Failures   []CycleFailure             `json:"failures,omitempty"`
}

type CronAuctionScheduler struct {
	cron           *cron.Cron
	scanner        *AuctionScanner
	coordinator    *ClosingCoordinator
	reconciler     *Reconciler
	leaderElection domain.LeaderElection
	opts           SchedulerOptions
	log            logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewCronAuctionScheduler wires the periodic jobs. leaderElection and
// reconciler may be nil; without a leader election every instance runs ticks,
// which is safe because closures are claimed atomically.
func NewCronAuctionScheduler(scanner *AuctionScanner, coordinator *ClosingCoordinator, reconciler *Reconciler,
	leaderElection domain.LeaderElection, opts SchedulerOptions, log logger.Logger) *CronAuctionScheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &CronAuctionScheduler{
		cron:           newCron(log),
		scanner:        scanner,
		coordinator:    coordinator,
		reconciler:     reconciler,
		leaderElection: leaderElection,
		opts:           opts,
		log:            log,
	}
}

func newCron(log logger.Logger) *cron.Cron {
	cl := logger.Cron(log)
	return cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}

// Start registers the jobs on a fresh cron so a stopped scheduler can be
// started again without duplicating entries.
func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}

	s.log.Info("Starting auction scheduler",
		"closing_schedule", s.opts.ClosingSchedule,
		"reconcile_schedule", s.opts.ReconcileSchedule,
		"workers", s.opts.Workers)

	c := newCron(s.log)
	jobCtx, cancel := context.WithCancel(ctx)

	_, err := c.AddFunc(s.opts.ClosingSchedule, func() {
		s.runJob(jobCtx, "closing", func(ctx context.Context) error {
			_, err := s.RunOnce(ctx, time.Now())
			return err
		})
	})
	if err != nil {
		cancel()
		return err
	}

	if s.reconciler != nil && s.opts.ReconcileSchedule != "" {
		_, err := c.AddFunc(s.opts.ReconcileSchedule, func() {
			s.runJob(jobCtx, "reconcile", func(ctx context.Context) error {
				_, err := s.reconciler.Reconcile(ctx, time.Now())
				return err
			})
		})
		if err != nil {
			cancel()
			return err
		}
	}

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.cron.Start()
	return nil
}

// Stop waits for in-flight jobs to finish and releases leadership.
func (s *CronAuctionScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	s.cancel()
	s.running = false

	if s.leaderElection != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.leaderElection.ReleaseLeadership(ctx, s.opts.InstanceID); err != nil {
			s.log.Warn("Failed to release leadership", "error", err)
		}
	}
	return nil
}

func (s *CronAuctionScheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	if !s.shouldRun(ctx) {
		s.log.Debug("Not the leader, skipping job", "job", name)
		return
	}

	if err := fn(ctx); err != nil {
		s.log.Error("Scheduled job failed", "job", name, "error", err)
	}
}

// shouldRun reports whether this instance may run a tick. If the election
// backend is unreachable the tick runs anyway; the claim keeps it safe.
func (s *CronAuctionScheduler) shouldRun(ctx context.Context) bool {
	if s.leaderElection == nil {
		return true
	}

	isLeader, err := s.leaderElection.IsLeader(ctx, s.opts.InstanceID)
	if err == nil && !isLeader {
		isLeader, err = s.leaderElection.BecomeLeader(ctx, s.opts.InstanceID)
	}
	if err != nil {
		s.log.Warn("Leader election unavailable, running tick anyway", "error", err)
		return true
	}
	return isLeader
}

// RunOnce scans for due auctions and closes them with bounded concurrency.
// A failing closure never affects the others; only a scan failure is
// returned.
func (s *CronAuctionScheduler) RunOnce(ctx context.Context, now time.Time) (*CycleReport, error) {
	start := time.Now()
	report := &CycleReport{
		StartedAt: now,
		Outcomes:  make(map[domain.OutcomeKind]int),
	}

	due, err := s.scanner.FindDue(ctx, now)
	if err != nil {
		s.log.Error("Failed to scan for due auctions", "error", err)
		return nil, err
	}
	report.Scanned = len(due)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Workers)

	for _, auction := range due {
		auction := auction
		g.Go(func() error {
			result, err := s.closeOne(ctx, auction)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Failures = append(report.Failures, failureOf(auction.ID, err))
				return nil
			}
			report.Outcomes[result.Outcome]++
			report.Results = append(report.Results, result)
			return nil
		})
	}
	_ = g.Wait()

	report.DurationMS = time.Since(start).Milliseconds()
	if report.Scanned > 0 {
		s.log.Info("Closing cycle finished",
			"scanned", report.Scanned,
			"failed", report.Failed,
			"outcomes", report.Outcomes,
			"duration_ms", report.DurationMS)
	}
	return report, nil
}

func (s *CronAuctionScheduler) closeOne(ctx context.Context, auction *domain.Auction) (*domain.ClosureResult, error) {
	if s.opts.AuctionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AuctionTimeout)
		defer cancel()
	}

	result, err := s.coordinator.Close(ctx, auction)
	if err != nil {
		s.log.Error("Failed to close auction", "auction_id", auction.ID, "error", err)
	}
	return result, err
}

func failureOf(auctionID string, err error) CycleFailure {
	f := CycleFailure{AuctionID: auctionID, Error: err.Error()}
	var ce *ClosureError
	if errors.As(err, &ce) {
		f.Stage = ce.Stage
	}
	return f
}
