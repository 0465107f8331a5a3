package handlers

import (
	"net/http"

	"tradejournal/internal/service"
)

// SettlementHandler - недельный расчет позиций
//
// Endpoints:
// - GET /api/v1/settlement - что будет рассчитано и доступен ли расчет
// - POST /api/v1/settlement - провести расчет
type SettlementHandler struct {
	settlement service.SettlementServiceInterface
}

// NewSettlementHandler создает новый SettlementHandler
func NewSettlementHandler(settlement service.SettlementServiceInterface) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

// GetPreview возвращает состояние расчета
// GET /api/v1/settlement
func (h *SettlementHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.settlement.Preview(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, preview)
}

// Settle проводит расчет
// POST /api/v1/settlement
//
// Request body:
//
//	{"date": "2024-01-19", "rates": {"gold": "62500", "silver": "71000"}}
//
// Response:
// - 201 Created: созданные CLOSE/OPEN записи и P&L закрытия
// - 400 Bad Request: нет ставки для открытого инструмента, неверная дата
// - 409 Conflict: окно закрыто, уже рассчитано или нечего рассчитывать
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req service.SettlementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.settlement.Settle(r.Context(), userID(r), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}
