package websocket

import (
	"net/http"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{connManager: connManager, log: log}
}

// HandleConnection upgrades /ws/notifications/{recipientID}. The socket is
// push-only; inbound frames other than pings are ignored.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["recipientID"]
	if recipientID == "" {
		http.Error(w, "recipient id required", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, recipientID)
	if err := h.connManager.RegisterConnection(conn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		ws.Close()
		return
	}

	done := make(chan struct{})
	go h.keepAlive(conn, done)
	go h.readLoop(conn, done)
}

func (h *WebSocketHandler) readLoop(conn *Connection, done chan struct{}) {
	defer func() {
		close(done)
		h.connManager.UnregisterConnection(conn)
		conn.conn.Close()
	}()

	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "recipient_id", conn.RecipientID(), "error", err)
			}
			return
		}

		if msgType, _ := msg["type"].(string); msgType == "ping" {
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) keepAlive(conn *Connection, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.mu.Lock()
			err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			conn.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
