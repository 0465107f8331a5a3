package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradejournal/internal/api/handlers"
	"tradejournal/internal/api/middleware"
	"tradejournal/internal/service"
	"tradejournal/internal/websocket"
	"tradejournal/pkg/ratelimit"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	TradeService      service.TradeServiceInterface
	ReportService     service.ReportServiceInterface
	SettlementService service.SettlementServiceInterface
	SettingsService   service.SettingsServiceInterface
	Hub               *websocket.Hub

	Location       *time.Location
	Auth           middleware.AuthConfig
	RateLimiter    *ratelimit.KeyedLimiter // nil = без ограничения
	AllowedOrigins []string

	MetricsUsername string
	MetricsPassword string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /trades
//	│   ├── GET / - список сделок
//	│   ├── POST / - записать сделку
//	│   ├── GET /{id} - получить сделку
//	│   ├── PATCH /{id} - изменить сделку
//	│   └── DELETE /{id} - удалить сделку
//	├── GET /positions - открытые позиции
//	├── /reports/
//	│   ├── GET /dashboard?week= - сводка недели
//	│   ├── GET /weekly?week= - недельный отчет
//	│   ├── GET /monthly?month= - месячный отчет
//	│   ├── GET /instruments - анализ по инструментам
//	│   ├── GET /win-loss?from=&to= - серии и распределение
//	│   └── GET /history?instrument= - реализованные пары
//	├── /settlement
//	│   ├── GET / - предпросмотр расчета
//	│   └── POST / - провести расчет
//	└── /settings
//	    ├── GET / - получить настройки
//	    ├── PATCH / - обновить настройки
//	    └── POST /reset - сбросить настройки
//
// /ws/stream - WebSocket лента изменений
// /metrics - prometheus
// /health - liveness
//
// Middleware применяется в следующем порядке:
// 1. Recovery, Logging, CORS - снаружи mux, для любого запроса
// 2. Auth, RateLimit (API и WebSocket)
//
// CORS стоит до маршрутизации: preflight OPTIONS получает 204 на любом
// пути. Для каждого пути регистрируется запасной маршрут без метода,
// он отвечает JSON 405 с заголовком Allow.
func SetupRoutes(deps *Dependencies) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	router.MethodNotAllowedHandler = handlers.MethodNotAllowed()

	protect := func(r *mux.Router) {
		r.Use(middleware.Auth(deps.Auth))
		r.Use(middleware.RateLimit(deps.RateLimiter))
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	protect(api)

	if deps.TradeService != nil {
		h := handlers.NewTradeHandler(deps.TradeService)
		route(api, "/trades", methods{
			http.MethodGet:  http.HandlerFunc(h.ListTrades),
			http.MethodPost: http.HandlerFunc(h.CreateTrade),
		})
		route(api, "/trades/{id}", methods{
			http.MethodGet:    http.HandlerFunc(h.GetTrade),
			http.MethodPatch:  http.HandlerFunc(h.UpdateTrade),
			http.MethodDelete: http.HandlerFunc(h.DeleteTrade),
		})
	}

	if deps.ReportService != nil {
		h := handlers.NewReportHandler(deps.ReportService, deps.Location)
		route(api, "/positions", methods{http.MethodGet: http.HandlerFunc(h.GetPositions)})
		route(api, "/reports/dashboard", methods{http.MethodGet: http.HandlerFunc(h.GetDashboard)})
		route(api, "/reports/weekly", methods{http.MethodGet: http.HandlerFunc(h.GetWeeklyReport)})
		route(api, "/reports/monthly", methods{http.MethodGet: http.HandlerFunc(h.GetMonthlyReport)})
		route(api, "/reports/instruments", methods{http.MethodGet: http.HandlerFunc(h.GetInstrumentAnalysis)})
		route(api, "/reports/win-loss", methods{http.MethodGet: http.HandlerFunc(h.GetWinLoss)})
		route(api, "/reports/history", methods{http.MethodGet: http.HandlerFunc(h.GetHistory)})
	}

	if deps.SettlementService != nil {
		h := handlers.NewSettlementHandler(deps.SettlementService)
		route(api, "/settlement", methods{
			http.MethodGet:  http.HandlerFunc(h.GetPreview),
			http.MethodPost: http.HandlerFunc(h.Settle),
		})
	}

	if deps.SettingsService != nil {
		h := handlers.NewSettingsHandler(deps.SettingsService)
		route(api, "/settings", methods{
			http.MethodGet:   http.HandlerFunc(h.GetSettings),
			http.MethodPatch: http.HandlerFunc(h.UpdateSettings),
		})
		route(api, "/settings/reset", methods{http.MethodPost: http.HandlerFunc(h.ResetSettings)})
	}

	if deps.Hub != nil {
		ws := router.PathPrefix("/ws").Subrouter()
		protect(ws)
		route(ws, "/stream", methods{http.MethodGet: http.HandlerFunc(handlers.NewWSHandler(deps.Hub).ServeWS)})
	}

	route(router, "/metrics", methods{
		http.MethodGet: middleware.BasicAuth(deps.MetricsUsername, deps.MetricsPassword)(promhttp.Handler()),
	})

	route(router, "/health", methods{
		http.MethodGet: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}),
	})

	return middleware.Recovery(middleware.Logging(middleware.CORS(deps.AllowedOrigins)(router)))
}

// methods - обработчики одного пути по HTTP методам
type methods map[string]http.Handler

// route регистрирует обработчики пути и запасной маршрут 405 после них
func route(r *mux.Router, path string, byMethod methods) {
	allowed := make([]string, 0, len(byMethod))
	for method := range byMethod {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)

	for _, method := range allowed {
		r.Handle(path, byMethod[method]).Methods(method)
	}
	r.Handle(path, handlers.MethodNotAllowed(allowed...))
}
