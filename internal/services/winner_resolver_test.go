package services

import (
	"testing"
	"time"

	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWinnerResolver_Resolve(t *testing.T) {
	t.Parallel()

	t1 := baseTime.Add(-10 * time.Minute)
	t2 := baseTime.Add(-5 * time.Minute)
	bid := func(id, user string, amount int64, at time.Time) *domain.Bid {
		return &domain.Bid{ID: id, UserID: user, Amount: decimal.NewFromInt(amount), PlacedAt: at}
	}
	reserve := func(amount int64) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.NewFromInt(amount))
	}

	tests := []struct {
		name      string
		bids      []*domain.Bid
		reserve   decimal.NullDecimal
		wantKind  domain.OutcomeKind
		wantBidID string
	}{
		{name: "no bids", wantKind: domain.OutcomeNoBids},
		{name: "no bids with reserve", reserve: reserve(100), wantKind: domain.OutcomeNoBids},
		{name: "below reserve", bids: []*domain.Bid{bid("b1", "u1", 800, t1)}, reserve: reserve(1000),
			wantKind: domain.OutcomeReserveNotMet, wantBidID: "b1"},
		{name: "equal to reserve", bids: []*domain.Bid{bid("b1", "u1", 1000, t1)}, reserve: reserve(1000),
			wantKind: domain.OutcomeWon, wantBidID: "b1"},
		{name: "no reserve", bids: []*domain.Bid{bid("b1", "u1", 1, t1)},
			wantKind: domain.OutcomeWon, wantBidID: "b1"},
		{name: "tie goes to earliest", bids: []*domain.Bid{bid("b2", "u2", 500, t2), bid("b1", "u1", 500, t1)},
			wantKind: domain.OutcomeWon, wantBidID: "b1"},
	}

	r := NewWinnerResolver()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.bids, tc.reserve)
			assert.Equal(t, tc.wantKind, got.Kind)
			if tc.wantBidID == "" {
				assert.Nil(t, got.WinningBid)
				return
			}
			if assert.NotNil(t, got.WinningBid) {
				assert.Equal(t, tc.wantBidID, got.WinningBid.ID)
			}
		})
	}
}
