package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradejournal/internal/api/middleware"
	"tradejournal/internal/service"
	"tradejournal/pkg/utils"
)

// maxBodyBytes - ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// maxListLimit - верхняя граница limit в списках
const maxListLimit = 1000

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`             // машинный код
	Message string `json:"message"`           // текст для пользователя
	Details string `json:"details,omitempty"` // причина (ошибка сервиса)
}

// errQuery - ошибка разбора query параметров
var errQuery = errors.New("invalid query parameter")

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondWithError отправляет JSON ответ с ошибкой
func respondWithError(w http.ResponseWriter, statusCode int, code, message, details string) {
	respondWithJSON(w, statusCode, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// MethodNotAllowed отвечает 405 с заголовком Allow
func MethodNotAllowed(methods ...string) http.HandlerFunc {
	allow := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		if allow != "" {
			w.Header().Set("Allow", allow)
		}
		respondWithError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	}
}

// NotFound - JSON ответ для неизвестных путей
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, http.StatusNotFound, "not_found", "Not found", "")
}

// decodeJSON читает тело запроса в dst. Неизвестные поля - ошибка.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// userID - пользователь, установленный Auth middleware
func userID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// parseLimit читает limit (0 = без ограничения)
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxListLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", errQuery, maxListLimit)
	}
	return limit, nil
}

// parseDayParam читает дату YYYY-MM-DD (пусто = нулевое время)
func parseDayParam(r *http.Request, name string, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := utils.ParseDay(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errQuery, name, err)
	}
	return day, nil
}

// handleServiceError обрабатывает ошибки от сервисов и возвращает соответствующий HTTP статус
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errQuery):
		respondWithError(w, http.StatusBadRequest, "invalid_query", "Invalid query parameter", err.Error())

	case errors.Is(err, service.ErrTradeNotFound):
		respondWithError(w, http.StatusNotFound, "trade_not_found", "Trade not found", "")

	case errors.Is(err, service.ErrNoteTooLong):
		respondWithError(w, http.StatusBadRequest, "note_too_long", "Note must be at most 500 characters", "")

	case errors.Is(err, service.ErrInvalidTrade):
		respondWithError(w, http.StatusBadRequest, "invalid_trade", "Invalid trade entry", err.Error())

	case errors.Is(err, service.ErrSettlementReadOnly):
		respondWithError(w, http.StatusConflict, "settlement_read_only", "Settlement entries cannot be edited", "")

	case errors.Is(err, service.ErrWeekSettled):
		respondWithError(w, http.StatusConflict, "week_settled", "The week is closed by a settlement", err.Error())

	case errors.Is(err, service.ErrInvalidHistoryFilter):
		respondWithError(w, http.StatusBadRequest, "invalid_filter", "Invalid filter", err.Error())

	case errors.Is(err, service.ErrSettlementWindowClosed):
		respondWithError(w, http.StatusConflict, "settlement_window_closed", "Settlement is only allowed Friday through Sunday", "")

	case errors.Is(err, service.ErrInvalidSettlementDate):
		respondWithError(w, http.StatusBadRequest, "invalid_settlement_date", "Invalid settlement date", err.Error())

	case errors.Is(err, service.ErrAlreadySettled):
		respondWithError(w, http.StatusConflict, "already_settled", "Positions are already settled for this date", "")

	case errors.Is(err, service.ErrNothingToSettle):
		respondWithError(w, http.StatusConflict, "nothing_to_settle", "No open positions to settle", "")

	case errors.Is(err, service.ErrSettlementRateRequired):
		respondWithError(w, http.StatusBadRequest, "settlement_rate_required", "Settlement rate is required for every open instrument", err.Error())

	case errors.Is(err, service.ErrInvalidSettlementRate):
		respondWithError(w, http.StatusBadRequest, "invalid_settlement_rate", "Invalid settlement rate", err.Error())

	case errors.Is(err, service.ErrEmptyUpdate):
		respondWithError(w, http.StatusBadRequest, "empty_update", "Nothing to update", "")

	case errors.Is(err, service.ErrInvalidSettings):
		respondWithError(w, http.StatusBadRequest, "invalid_settings", "Invalid settings", err.Error())

	default:
		utils.L().Error("request failed", utils.Err(err), utils.Component("api"))
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
