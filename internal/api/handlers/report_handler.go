package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"tradejournal/internal/models"
	"tradejournal/internal/service"
	"tradejournal/pkg/utils"
)

// ReportHandler обрабатывает запросы позиций и отчетов P&L.
//
// Endpoints:
// - GET /api/v1/positions - открытые позиции
// - GET /api/v1/reports/dashboard?week=YYYY-MM-DD
// - GET /api/v1/reports/weekly?week=YYYY-MM-DD
// - GET /api/v1/reports/monthly?month=YYYY-MM
// - GET /api/v1/reports/instruments
// - GET /api/v1/reports/win-loss?from=YYYY-MM-DD&to=YYYY-MM-DD
// - GET /api/v1/reports/history?instrument=gold&from=&to=&limit=
//
// Даты интерпретируются в часовом поясе журнала.
// Без week/month берется текущий период.
type ReportHandler struct {
	reports service.ReportServiceInterface
	loc     *time.Location
}

// NewReportHandler создает новый ReportHandler
func NewReportHandler(reports service.ReportServiceInterface, loc *time.Location) *ReportHandler {
	return &ReportHandler{reports: reports, loc: loc}
}

// GetPositions возвращает открытые позиции по инструментам
func (h *ReportHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.reports.OpenPositions(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, positions)
}

// GetDashboard возвращает сводку недели
func (h *ReportHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	week, err := parseDayParam(r, "week", h.loc)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	dashboard, err := h.reports.Dashboard(r.Context(), userID(r), week)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, dashboard)
}

// GetWeeklyReport возвращает отчет за неделю
func (h *ReportHandler) GetWeeklyReport(w http.ResponseWriter, r *http.Request) {
	week, err := parseDayParam(r, "week", h.loc)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	report, err := h.reports.WeeklyReport(r.Context(), userID(r), week)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// GetMonthlyReport возвращает отчет за месяц
func (h *ReportHandler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	var month time.Time
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := utils.ParseMonth(raw, h.loc)
		if err != nil {
			handleServiceError(w, fmt.Errorf("%w: month: %v", errQuery, err))
			return
		}
		month = parsed
	}

	report, err := h.reports.MonthlyReport(r.Context(), userID(r), month)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// GetInstrumentAnalysis возвращает статистику инструментов за все время
func (h *ReportHandler) GetInstrumentAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.reports.InstrumentAnalysis(r.Context(), userID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, analysis)
}

// GetWinLoss возвращает анализ серий. to включительно.
func (h *ReportHandler) GetWinLoss(w http.ResponseWriter, r *http.Request) {
	from, err := parseDayParam(r, "from", h.loc)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	to, err := parseDayParam(r, "to", h.loc)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		handleServiceError(w, fmt.Errorf("%w: to is before from", errQuery))
		return
	}

	stats, err := h.reports.WinLoss(r.Context(), userID(r), from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// GetHistory возвращает реализованные пары, новые первыми
func (h *ReportHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	items, err := h.reports.History(r.Context(), userID(r), service.HistoryFilter{
		Instrument: models.Instrument(strings.ToLower(q.Get("instrument"))),
		FromDate:   q.Get("from"),
		ToDate:     q.Get("to"),
		Limit:      limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if items == nil {
		items = []service.HistoryItem{}
	}
	respondWithJSON(w, http.StatusOK, items)
}
