package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type NotificationKind string

const (
	NotifyWinner              NotificationKind = "winner"
	NotifySellerSold          NotificationKind = "seller_sold"
	NotifySellerNoBids        NotificationKind = "seller_no_bids"
	NotifySellerReserveNotMet NotificationKind = "seller_reserve_not_met"
	NotifyBidderReserveNotMet NotificationKind = "bidder_reserve_not_met"
)

type RecipientRole string

const (
	RoleBuyer  RecipientRole = "buyer"
	RoleSeller RecipientRole = "seller"
)

type Notification struct {
	ID            string              `json:"id"`
	Kind          NotificationKind    `json:"kind"`
	RecipientRole RecipientRole       `json:"recipient_role"`
	RecipientID   string              `json:"recipient_id"`
	AuctionID     string              `json:"auction_id"`
	AuctionName   string              `json:"auction_name"`
	Amount        decimal.NullDecimal `json:"amount"`
	CreatedAt     time.Time           `json:"created_at"`
}
