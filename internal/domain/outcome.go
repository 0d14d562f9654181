package domain

import (
	"github.com/shopspring/decimal"
)

type OutcomeKind string

const (
	OutcomeNoBids        OutcomeKind = "no_bids"
	OutcomeReserveNotMet OutcomeKind = "reserve_not_met"
	OutcomeWon           OutcomeKind = "won"
	// OutcomeClaimLost means another closer claimed the auction first.
	OutcomeClaimLost OutcomeKind = "claim_lost"
)

// Outcome is the winner resolution verdict. WinningBid is nil for NoBids and
// carries the highest bid for both ReserveNotMet and Won.
type Outcome struct {
	Kind       OutcomeKind
	WinningBid *Bid
}

// ClosureResult summarises one closure. HighestBidderID and HighestBid are
// set for both won and reserve-not-met auctions; WinnerID only for won ones.
type ClosureResult struct {
	AuctionID       string              `json:"auction_id"`
	Outcome         OutcomeKind         `json:"outcome"`
	WinnerID        string              `json:"winner_id,omitempty"`
	HighestBidderID string              `json:"highest_bidder_id,omitempty"`
	HighestBid      decimal.NullDecimal `json:"highest_bid"`
	OrderID         string              `json:"order_id,omitempty"`
}

// Outranks reports whether a beats b: higher amount first, then the earlier
// placement, then the lower id so equal timestamps still give a total order.
func Outranks(a, b *Bid) bool {
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c > 0
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.ID < b.ID
}

// PickWinningBid returns the best bid or nil for an empty slice.
func PickWinningBid(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if b == nil {
			continue
		}
		if best == nil || Outranks(b, best) {
			best = b
		}
	}
	return best
}
