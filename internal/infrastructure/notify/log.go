package notify

import (
	"context"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// LogDispatcher writes notifications to the log instead of a queue. Used by
// the memory storage driver and local runs without Redis or RabbitMQ.
type LogDispatcher struct {
	log logger.Logger
}

func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n *domain.Notification) error {
	amount := ""
	if n.Amount.Valid {
		amount = n.Amount.Decimal.StringFixed(2)
	}
	d.log.Info("Notification",
		"notification_id", n.ID,
		"kind", n.Kind,
		"recipient_role", n.RecipientRole,
		"recipient_id", n.RecipientID,
		"auction_id", n.AuctionID,
		"amount", amount)
	return nil
}
