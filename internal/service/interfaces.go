package service

import (
	"context"
	"time"

	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
)

// TradeRepositoryInterface определяет интерфейс хранилища сделок
type TradeRepositoryInterface interface {
	Create(ctx context.Context, entry *models.TradeEntry) error
	CreateBatch(ctx context.Context, entries []models.TradeEntry) error
	GetByID(ctx context.Context, userID, id string) (*models.TradeEntry, error)
	Update(ctx context.Context, entry *models.TradeEntry) error
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, filter models.TradeFilter) ([]models.TradeEntry, error)
	CountByTradeDate(ctx context.Context, userID, from, to string) (int, error)
	SettlementExists(ctx context.Context, userID string, instrument models.Instrument, date string) (bool, error)
}

// SettingsRepositoryInterface определяет интерфейс хранилища настроек
type SettingsRepositoryInterface interface {
	Get(ctx context.Context, userID string) (*models.TradingSettings, error)
	Upsert(ctx context.Context, userID string, instrument models.Instrument, s models.InstrumentSettings) error
	Reset(ctx context.Context, userID string) error
}

// ChangeNotifier - получатель событий об изменениях (WebSocket hub)
type ChangeNotifier interface {
	NotifyTradesChanged(userID string, change models.TradeChange)
	NotifySettingsChanged(userID string, settings models.TradingSettings)
}

// TradeServiceInterface определяет интерфейс сервиса сделок для handlers
type TradeServiceInterface interface {
	CreateTrade(ctx context.Context, userID string, req CreateTradeRequest) (*models.TradeEntry, error)
	GetTrade(ctx context.Context, userID, id string) (*models.TradeEntry, error)
	ListTrades(ctx context.Context, userID string, filter models.TradeFilter) ([]models.TradeEntry, error)
	UpdateTrade(ctx context.Context, userID, id string, req UpdateTradeRequest) (*models.TradeEntry, error)
	DeleteTrade(ctx context.Context, userID, id string) error
}

// ReportServiceInterface определяет интерфейс сервиса отчетов для handlers
type ReportServiceInterface interface {
	OpenPositions(ctx context.Context, userID string) ([]InstrumentPosition, error)
	Dashboard(ctx context.Context, userID string, weekOf time.Time) (*Dashboard, error)
	WeeklyReport(ctx context.Context, userID string, weekOf time.Time) (*WeeklyReport, error)
	MonthlyReport(ctx context.Context, userID string, monthOf time.Time) (*MonthlyReport, error)
	InstrumentAnalysis(ctx context.Context, userID string) ([]InstrumentAnalysis, error)
	WinLoss(ctx context.Context, userID string, from, to time.Time) (*pnl.WinLossStats, error)
	History(ctx context.Context, userID string, filter HistoryFilter) ([]HistoryItem, error)
}

// SettlementServiceInterface определяет интерфейс сервиса расчета для handlers
type SettlementServiceInterface interface {
	Preview(ctx context.Context, userID string) (*SettlementPreview, error)
	Settle(ctx context.Context, userID string, req SettlementRequest) (*SettlementResult, error)
}

// SettingsServiceInterface определяет интерфейс сервиса настроек для handlers
type SettingsServiceInterface interface {
	GetSettings(ctx context.Context, userID string) (*models.TradingSettings, error)
	UpdateSettings(ctx context.Context, userID string, req models.SettingsUpdate) (*models.TradingSettings, error)
	ResetSettings(ctx context.Context, userID string) (*models.TradingSettings, error)
}
