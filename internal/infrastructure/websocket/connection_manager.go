package websocket

import (
	"fmt"
	"sort"
	"sync"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
)

// ConnectionManager tracks open sockets per notification recipient. A
// recipient may have several tabs or devices connected at once.
type ConnectionManager struct {
	recipients map[string]map[string]domain.WebSocketConnection // recipientID -> connID -> connection
	mutex      sync.RWMutex
	log        logger.Logger
}

var _ domain.ConnectionManager = (*ConnectionManager)(nil)

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		recipients: make(map[string]map[string]domain.WebSocketConnection),
		log:        log,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn domain.WebSocketConnection) error {
	if conn.RecipientID() == "" {
		return fmt.Errorf("register connection %s: recipient id required", conn.ID())
	}

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	conns, ok := cm.recipients[conn.RecipientID()]
	if !ok {
		conns = make(map[string]domain.WebSocketConnection)
		cm.recipients[conn.RecipientID()] = conns
	}
	conns[conn.ID()] = conn

	cm.log.Info("Connection registered", "recipient_id", conn.RecipientID(), "conn_id", conn.ID())
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if conns, ok := cm.recipients[conn.RecipientID()]; ok {
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(cm.recipients, conn.RecipientID())
		}
	}

	cm.log.Info("Connection unregistered", "recipient_id", conn.RecipientID(), "conn_id", conn.ID())
	return nil
}

// GetConnectionsForRecipient returns a snapshot ordered by connection id.
func (cm *ConnectionManager) GetConnectionsForRecipient(recipientID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	conns := cm.recipients[recipientID]
	out := make([]domain.WebSocketConnection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// NotifyRecipient sends message to every connection of the recipient and
// returns how many accepted it. A connection that fails to write is dropped.
func (cm *ConnectionManager) NotifyRecipient(recipientID string, message interface{}) (int, error) {
	delivered := 0
	for _, conn := range cm.GetConnectionsForRecipient(recipientID) {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "recipient_id", recipientID,
				"conn_id", conn.ID(), "error", err)
			cm.UnregisterConnection(conn)
			conn.Close()
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (cm *ConnectionManager) CloseAll() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	var firstErr error
	for recipientID, conns := range cm.recipients {
		for _, conn := range conns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "recipient_id", recipientID,
					"conn_id", conn.ID(), "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	cm.recipients = make(map[string]map[string]domain.WebSocketConnection)

	cm.log.Info("All connections closed")
	return firstErr
}

// Count returns the number of open connections.
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	n := 0
	for _, conns := range cm.recipients {
		n += len(conns)
	}
	return n
}
