package handlers

import (
	"net/http"

	"tradejournal/internal/models"
	"tradejournal/internal/service"
)

// SettingsHandler отвечает за параметры инструментов пользователя
//
// Функции:
// - Получение настроек (GET /api/v1/settings)
// - Частичное обновление (PATCH /api/v1/settings)
// - Сброс к значениям по умолчанию (POST /api/v1/settings/reset)
//
// Настройки - размер лота и комиссия за лот для золота и серебра.
// Изменение пересчитывает все отчеты: P&L не хранится, а считается из сделок.
type SettingsHandler struct {
	settings service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler
func NewSettingsHandler(settings service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings возвращает текущие настройки
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetSettings(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings обновляет настройки
//
// Request body:
//
//	{"gold": {"commission_per_lot": "250"}, "silver": {"lot_size": 30}}
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.SettingsUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.settings.UpdateSettings(r.Context(), userID(r), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// ResetSettings возвращает значения по умолчанию
func (h *SettingsHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.ResetSettings(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}
