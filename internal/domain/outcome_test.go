package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func bidAt(id, user string, amount int64, at time.Time) *Bid {
	return &Bid{ID: id, AuctionID: "a1", UserID: user, Amount: decimal.NewFromInt(amount), PlacedAt: at}
}

func TestPickWinningBid(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	tests := []struct {
		name   string
		bids   []*Bid
		wantID string
	}{
		{name: "empty", bids: nil, wantID: ""},
		{name: "nil_entries_skipped", bids: []*Bid{nil, bidAt("b1", "u1", 10, t0)}, wantID: "b1"},
		{name: "highest_amount", bids: []*Bid{bidAt("b1", "u1", 400, t0), bidAt("b2", "u2", 500, t1)}, wantID: "b2"},
		{name: "tie_earliest_wins", bids: []*Bid{bidAt("b2", "u2", 500, t1), bidAt("b1", "u1", 500, t0)}, wantID: "b1"},
		{name: "tie_same_instant_lowest_id", bids: []*Bid{bidAt("b9", "u2", 500, t0), bidAt("b3", "u1", 500, t0)}, wantID: "b3"},
		{name: "decimal_scale_irrelevant", bids: []*Bid{
			{ID: "b1", Amount: decimal.RequireFromString("500.00"), PlacedAt: t1},
			{ID: "b2", Amount: decimal.RequireFromString("500"), PlacedAt: t0},
		}, wantID: "b2"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := PickWinningBid(tc.bids)
			if tc.wantID == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tc.wantID, got.ID)
		})
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	require.True(t, CanTransition(AuctionLive, AuctionEnded))
	require.False(t, CanTransition(AuctionEnded, AuctionLive))
	require.False(t, CanTransition(AuctionEnded, AuctionEnded))
	require.False(t, CanTransition(AuctionLive, AuctionLive))
}

func TestAuction_HasWinner(t *testing.T) {
	t.Parallel()

	a := &Auction{Status: AuctionEnded}
	require.False(t, a.HasWinner())

	a.WinnerID = "u1"
	require.False(t, a.HasWinner(), "winner without final bid is not a sale")

	a.FinalBid = decimal.NewNullDecimal(decimal.NewFromInt(10))
	require.True(t, a.HasWinner())
}

func TestWonAuctionRecord_Complete(t *testing.T) {
	t.Parallel()

	r := &WonAuctionRecord{OrderCreated: true}
	require.True(t, r.Complete())

	r.ProductID = "p1"
	require.False(t, r.Complete())

	r.InventoryAdjusted = true
	require.True(t, r.Complete())
}
