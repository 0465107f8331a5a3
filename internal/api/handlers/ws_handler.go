package handlers

import (
	"net/http"

	"tradejournal/internal/websocket"
)

// WSHandler подписывает клиента на изменения журнала пользователя
// GET /ws/stream
type WSHandler struct {
	hub *websocket.Hub
}

// NewWSHandler создает новый WSHandler
func NewWSHandler(hub *websocket.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// ServeWS апгрейдит соединение до WebSocket
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, userID(r), w, r)
}
