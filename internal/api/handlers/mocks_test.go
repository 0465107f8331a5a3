package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/service"
)

// ErrMockDatabase - имитация сбоя хранилища
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Trade Service ============

// MockTradeService мок для TradeServiceInterface
type MockTradeService struct {
	entries    map[string]*models.TradeEntry
	nextID     int
	lastUser   string
	lastFilter models.TradeFilter
	err        error
	mu         sync.Mutex
}

func NewMockTradeService() *MockTradeService {
	return &MockTradeService{entries: make(map[string]*models.TradeEntry), nextID: 1}
}

func (m *MockTradeService) add(entry models.TradeEntry) *models.TradeEntry {
	entry.ID = fmt.Sprintf("trade-%d", m.nextID)
	m.nextID++
	m.entries[entry.ID] = &entry
	return &entry
}

func (m *MockTradeService) CreateTrade(ctx context.Context, userID string, req service.CreateTradeRequest) (*models.TradeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser = userID
	if m.err != nil {
		return nil, m.err
	}

	entry := models.TradeEntry{UserID: userID, Instrument: req.Instrument, Quantity: 1, Note: req.Note}
	if req.BuyRate != nil {
		entry.BuyRate = *req.BuyRate
	}
	if req.SellRate != nil {
		entry.SellRate = *req.SellRate
	}
	if req.Quantity != nil {
		entry.Quantity = *req.Quantity
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrInvalidTrade, err)
	}
	return m.add(entry), nil
}

func (m *MockTradeService) GetTrade(ctx context.Context, userID, id string) (*models.TradeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	entry, ok := m.entries[id]
	if !ok {
		return nil, service.ErrTradeNotFound
	}
	return entry, nil
}

func (m *MockTradeService) ListTrades(ctx context.Context, userID string, filter models.TradeFilter) ([]models.TradeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser = userID
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	var out []models.TradeEntry
	for _, e := range m.entries {
		if filter.Instrument == "" || e.Instrument == filter.Instrument {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockTradeService) UpdateTrade(ctx context.Context, userID, id string, req service.UpdateTradeRequest) (*models.TradeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	entry, ok := m.entries[id]
	if !ok {
		return nil, service.ErrTradeNotFound
	}
	if entry.IsSettlement {
		return nil, service.ErrSettlementReadOnly
	}
	if req.Quantity != nil {
		entry.Quantity = *req.Quantity
	}
	if req.Note != nil {
		entry.Note = *req.Note
	}
	return entry, nil
}

func (m *MockTradeService) DeleteTrade(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.entries[id]; !ok {
		return service.ErrTradeNotFound
	}
	delete(m.entries, id)
	return nil
}

// ============ Mock Report Service ============

// MockReportService мок для ReportServiceInterface.
// Запоминает аргументы последнего вызова.
type MockReportService struct {
	weekOf  time.Time
	monthOf time.Time
	from    time.Time
	to      time.Time
	filter  service.HistoryFilter
	history []service.HistoryItem
	err     error
}

func NewMockReportService() *MockReportService {
	return &MockReportService{}
}

func (m *MockReportService) OpenPositions(ctx context.Context, userID string) ([]service.InstrumentPosition, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []service.InstrumentPosition{
		{Instrument: models.InstrumentGold, DisplayName: "Gold", Status: service.PositionLong, TotalLong: 2, Net: 2},
		{Instrument: models.InstrumentSilver, DisplayName: "Silver", Status: service.PositionFlat},
	}, nil
}

func (m *MockReportService) Dashboard(ctx context.Context, userID string, weekOf time.Time) (*service.Dashboard, error) {
	m.weekOf = weekOf
	if m.err != nil {
		return nil, m.err
	}
	return &service.Dashboard{WeekStart: "2024-01-15", WeekEnd: "2024-01-21", TradesThisWeek: 6}, nil
}

func (m *MockReportService) WeeklyReport(ctx context.Context, userID string, weekOf time.Time) (*service.WeeklyReport, error) {
	m.weekOf = weekOf
	if m.err != nil {
		return nil, m.err
	}
	return &service.WeeklyReport{WeekStart: "2024-01-15", WeekEnd: "2024-01-21"}, nil
}

func (m *MockReportService) MonthlyReport(ctx context.Context, userID string, monthOf time.Time) (*service.MonthlyReport, error) {
	m.monthOf = monthOf
	if m.err != nil {
		return nil, m.err
	}
	return &service.MonthlyReport{Month: "2024-01"}, nil
}

func (m *MockReportService) InstrumentAnalysis(ctx context.Context, userID string) ([]service.InstrumentAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []service.InstrumentAnalysis{{Instrument: models.InstrumentGold, DisplayName: "Gold"}}, nil
}

func (m *MockReportService) WinLoss(ctx context.Context, userID string, from, to time.Time) (*pnl.WinLossStats, error) {
	m.from, m.to = from, to
	if m.err != nil {
		return nil, m.err
	}
	return &pnl.WinLossStats{}, nil
}

func (m *MockReportService) History(ctx context.Context, userID string, filter service.HistoryFilter) ([]service.HistoryItem, error) {
	m.filter = filter
	if m.err != nil {
		return nil, m.err
	}
	if filter.Instrument != "" && !filter.Instrument.Valid() {
		return nil, service.ErrInvalidHistoryFilter
	}
	return m.history, nil
}

// ============ Mock Settlement Service ============

// MockSettlementService мок для SettlementServiceInterface
type MockSettlementService struct {
	lastReq service.SettlementRequest
	err     error
}

func (m *MockSettlementService) Preview(ctx context.Context, userID string) (*service.SettlementPreview, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.SettlementPreview{SettlementDate: "2024-01-19", WindowOpen: true, CanSettle: true}, nil
}

func (m *MockSettlementService) Settle(ctx context.Context, userID string, req service.SettlementRequest) (*service.SettlementResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &service.SettlementResult{
		SettlementDate: "2024-01-19",
		Instruments:    []models.Instrument{models.InstrumentGold},
		RealizedPnl:    decimal.NewFromInt(10000),
	}, nil
}

// ============ Mock Settings Service ============

// MockSettingsService мок для SettingsServiceInterface
type MockSettingsService struct {
	settings models.TradingSettings
	errs     map[string]error
	mu       sync.Mutex
}

func NewMockSettingsService() *MockSettingsService {
	return &MockSettingsService{settings: models.DefaultTradingSettings(), errs: make(map[string]error)}
}

// SetError задает ошибку для операции: get, update, reset
func (m *MockSettingsService) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

func (m *MockSettingsService) GetSettings(ctx context.Context, userID string) (*models.TradingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	s := m.settings
	return &s, nil
}

func (m *MockSettingsService) UpdateSettings(ctx context.Context, userID string, req models.SettingsUpdate) (*models.TradingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["update"]; err != nil {
		return nil, err
	}
	if req.Gold == nil && req.Silver == nil {
		return nil, service.ErrEmptyUpdate
	}
	apply := func(cur models.InstrumentSettings, u *models.InstrumentSettingsUpdate) (models.InstrumentSettings, error) {
		if u == nil {
			return cur, nil
		}
		if u.LotSize != nil {
			cur.LotSize = *u.LotSize
		}
		if u.CommissionPerLot != nil {
			cur.CommissionPerLot = *u.CommissionPerLot
		}
		if err := cur.Validate(); err != nil {
			return cur, fmt.Errorf("%w: %w", service.ErrInvalidSettings, err)
		}
		return cur, nil
	}
	gold, err := apply(m.settings.Gold, req.Gold)
	if err != nil {
		return nil, err
	}
	silver, err := apply(m.settings.Silver, req.Silver)
	if err != nil {
		return nil, err
	}
	m.settings.Gold, m.settings.Silver = gold, silver
	s := m.settings
	return &s, nil
}

func (m *MockSettingsService) ResetSettings(ctx context.Context, userID string) (*models.TradingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs["reset"]; err != nil {
		return nil, err
	}
	m.settings = models.DefaultTradingSettings()
	s := m.settings
	return &s, nil
}
