package handlers

import (
	"encoding/json"
	"net/http"

	"auction-settlement/internal/api/middleware"
	"auction-settlement/internal/infrastructure/websocket"
	"auction-settlement/pkg/logger"

	"github.com/gorilla/mux"
)

type WebSocketHandlers struct {
	wsHandler   *websocket.WebSocketHandler
	connManager *websocket.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandlers(connManager *websocket.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler:   websocket.NewWebSocketHandler(connManager, log),
		connManager: connManager,
		log:         log,
	}
}

// Router builds the relay's HTTP surface.
func (h *WebSocketHandlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORSWithLogging(h.log))
	r.HandleFunc("/ws/notifications/{recipientID}", h.wsHandler.HandleConnection).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet, http.MethodOptions)
	return r
}

func (h *WebSocketHandlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": h.connManager.Count(),
	})
}
