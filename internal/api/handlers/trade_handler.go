package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tradejournal/internal/models"
	"tradejournal/internal/service"
)

// TradeHandler отвечает за журнал сделок
//
// Endpoints:
// - GET /api/v1/trades - список сделок (фильтры instrument, from, to, limit)
// - POST /api/v1/trades - записать сделку
// - GET /api/v1/trades/{id} - одна сделка
// - PATCH /api/v1/trades/{id} - изменить сделку
// - DELETE /api/v1/trades/{id} - удалить сделку
type TradeHandler struct {
	trades service.TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(trades service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// TradeListResponse - ответ списка сделок
type TradeListResponse struct {
	Trades []models.TradeEntry `json:"trades"`
	Count  int                 `json:"count"`
}

// CreateTrade записывает сделку
// POST /api/v1/trades
//
// Request body:
//
//	{
//	  "instrument": "gold",
//	  "buy_rate": "62000",
//	  "quantity": 2,
//	  "occurred_at": "2024-01-15T10:30:00+05:30",
//	  "note": "breakout"
//	}
//
// occurred_at принимает RFC3339, epoch millis или
// {"year":2024,"month":1,"day":15,"hour":10,"minute":30}.
//
// Response:
// - 201 Created: созданная запись
// - 400 Bad Request: невалидная сделка
func (h *TradeHandler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.trades.CreateTrade(r.Context(), userID(r), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

// ListTrades возвращает сделки в порядке времени
// GET /api/v1/trades?instrument=gold&from=2024-01-01&to=2024-01-31&limit=100
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filter := models.TradeFilter{
		Instrument: models.Instrument(strings.ToLower(q.Get("instrument"))),
		FromDate:   q.Get("from"),
		ToDate:     q.Get("to"),
		Limit:      limit,
	}

	trades, err := h.trades.ListTrades(r.Context(), userID(r), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if trades == nil {
		trades = []models.TradeEntry{}
	}

	respondWithJSON(w, http.StatusOK, TradeListResponse{Trades: trades, Count: len(trades)})
}

// GetTrade возвращает сделку
// GET /api/v1/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	entry, err := h.trades.GetTrade(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// UpdateTrade частично обновляет сделку
// PATCH /api/v1/trades/{id}
//
// Response:
// - 200 OK: обновленная запись
// - 404 Not Found
// - 409 Conflict: запись расчета
func (h *TradeHandler) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.trades.UpdateTrade(r.Context(), userID(r), mux.Vars(r)["id"], req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// DeleteTrade удаляет сделку
// DELETE /api/v1/trades/{id}
func (h *TradeHandler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := h.trades.DeleteTrade(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
