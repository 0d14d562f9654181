package websocket

import (
	"context"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// Message is the frame pushed to clients.
type Message struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
}

const messageTypeNotification = "notification"

// Relay drains a notification queue into the connected sockets.
type Relay struct {
	consumer    domain.NotificationConsumer
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewRelay(consumer domain.NotificationConsumer, connManager domain.ConnectionManager, log logger.Logger) *Relay {
	return &Relay{consumer: consumer, connManager: connManager, log: log}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	return r.consumer.Consume(ctx, r.Deliver)
}

// Deliver pushes n to every socket of its recipient. Offline recipients are
// logged and the notification is dropped.
func (r *Relay) Deliver(n *domain.Notification) error {
	msg := Message{Type: messageTypeNotification, Notification: n}

	delivered, err := r.connManager.NotifyRecipient(n.RecipientID, msg)
	if err != nil {
		return err
	}
	if delivered == 0 {
		r.log.Info("Recipient offline, notification dropped",
			"notification_id", n.ID, "kind", n.Kind, "recipient_id", n.RecipientID)
		return nil
	}

	r.log.Debug("Notification delivered",
		"notification_id", n.ID, "kind", n.Kind, "recipient_id", n.RecipientID, "connections", delivered)
	return nil
}
