package services

import (
	"context"
	"fmt"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// AuctionScanner finds live auctions whose bidding window has elapsed. It
// never mutates anything.
type AuctionScanner struct {
	auctions  domain.AuctionRepository
	batchSize int
	metrics   domain.ClosureMetrics
	log       logger.Logger
}

func NewAuctionScanner(auctions domain.AuctionRepository, batchSize int, metrics domain.ClosureMetrics,
	log logger.Logger) *AuctionScanner {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &AuctionScanner{
		auctions:  auctions,
		batchSize: batchSize,
		metrics:   metrics,
		log:       log,
	}
}

func (s *AuctionScanner) FindDue(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	due, err := s.auctions.FindDueAuctions(ctx, now, s.batchSize)
	if err != nil {
		s.metrics.ScanFailed()
		return nil, fmt.Errorf("scan due auctions: %w", err)
	}

	s.metrics.AuctionsScanned(len(due))
	if len(due) > 0 {
		s.log.Info("Found auctions due for closing", "count", len(due), "batch_size", s.batchSize)
	}
	return due, nil
}
