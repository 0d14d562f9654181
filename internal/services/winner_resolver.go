package services

import (
	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
)

type WinnerResolver struct{}

func NewWinnerResolver() *WinnerResolver {
	return &WinnerResolver{}
}

// Resolve picks the winning bid and applies the reserve. A bid equal to the
// reserve meets it.
func (r *WinnerResolver) Resolve(bids []*domain.Bid, reserve decimal.NullDecimal) domain.Outcome {
	top := domain.PickWinningBid(bids)
	if top == nil {
		return domain.Outcome{Kind: domain.OutcomeNoBids}
	}

	if reserve.Valid && top.Amount.LessThan(reserve.Decimal) {
		return domain.Outcome{Kind: domain.OutcomeReserveNotMet, WinningBid: top}
	}

	return domain.Outcome{Kind: domain.OutcomeWon, WinningBid: top}
}
