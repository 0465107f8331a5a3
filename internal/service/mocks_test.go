package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	mu        sync.Mutex
	entries   []models.TradeEntry
	createErr error
	batchErr  error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
	countErr  error
	existsErr error
	nextID    int
}

func NewMockTradeRepository(entries ...models.TradeEntry) *MockTradeRepository {
	m := &MockTradeRepository{nextID: 1}
	for i := range entries {
		e := entries[i]
		m.assignID(&e)
		m.entries = append(m.entries, e)
	}
	return m
}

func (m *MockTradeRepository) assignID(e *models.TradeEntry) {
	if e.ID == "" {
		e.ID = fmt.Sprintf("trade-%d", m.nextID)
	}
	e.CreatedAt = time.Unix(int64(m.nextID), 0)
	m.nextID++
}

func (m *MockTradeRepository) Create(ctx context.Context, entry *models.TradeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.assignID(entry)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockTradeRepository) CreateBatch(ctx context.Context, entries []models.TradeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchErr != nil {
		return m.batchErr
	}
	for i := range entries {
		if entries[i].IsSettlement && m.settlementExistsLocked(entries[i].Instrument, entries[i].SettlementDate, entries[i].SettlementKind) {
			return repository.ErrSettlementExists
		}
	}
	for i := range entries {
		m.assignID(&entries[i])
		m.entries = append(m.entries, entries[i])
	}
	return nil
}

func (m *MockTradeRepository) GetByID(ctx context.Context, userID, id string) (*models.TradeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			cp := e
			return &cp, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeRepository) Update(ctx context.Context, entry *models.TradeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, e := range m.entries {
		if e.ID == entry.ID && e.UserID == entry.UserID && !e.IsSettlement {
			m.entries[i] = *entry
			return nil
		}
	}
	return repository.ErrTradeNotFound
}

func (m *MockTradeRepository) Delete(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrTradeNotFound
}

func (m *MockTradeRepository) List(ctx context.Context, userID string, filter models.TradeFilter) ([]models.TradeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.TradeEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if filter.Instrument != "" && e.Instrument != filter.Instrument {
			continue
		}
		if filter.FromDate != "" && e.TradeDate < filter.FromDate {
			continue
		}
		if filter.ToDate != "" && e.TradeDate > filter.ToDate {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].OccurredAt.Equal(out[b].OccurredAt) {
			return out[a].OccurredAt.Before(out[b].OccurredAt)
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockTradeRepository) CountByTradeDate(ctx context.Context, userID, from, to string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, e := range m.entries {
		if e.UserID == userID && !e.IsSettlement && e.TradeDate >= from && e.TradeDate <= to {
			count++
		}
	}
	return count, nil
}

func (m *MockTradeRepository) SettlementExists(ctx context.Context, userID string, instrument models.Instrument, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.settlementExistsLocked(instrument, date, models.SettlementClose), nil
}

func (m *MockTradeRepository) settlementExistsLocked(instrument models.Instrument, date string, kind models.SettlementKind) bool {
	for _, e := range m.entries {
		if e.IsSettlement && e.Instrument == instrument && e.SettlementDate == date && e.SettlementKind == kind {
			return true
		}
	}
	return false
}

func (m *MockTradeRepository) all() []models.TradeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TradeEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ============ Mock SettingsRepository ============

type MockSettingsRepository struct {
	defaults  models.TradingSettings
	overrides map[models.Instrument]models.InstrumentSettings
	getErr    error
	upsertErr error
	resetErr  error
	upserts   int
}

func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		defaults:  models.DefaultTradingSettings(),
		overrides: make(map[models.Instrument]models.InstrumentSettings),
	}
}

func (m *MockSettingsRepository) Get(ctx context.Context, userID string) (*models.TradingSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s := m.defaults
	for inst, v := range m.overrides {
		s.Set(inst, v)
	}
	return &s, nil
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, userID string, instrument models.Instrument, s models.InstrumentSettings) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	m.overrides[instrument] = s
	return nil
}

func (m *MockSettingsRepository) Reset(ctx context.Context, userID string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.overrides = make(map[models.Instrument]models.InstrumentSettings)
	return nil
}

// ============ Mock ChangeNotifier ============

type MockNotifier struct {
	mu       sync.Mutex
	trades   []models.TradeChange
	settings []models.TradingSettings
}

func (m *MockNotifier) NotifyTradesChanged(userID string, change models.TradeChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, change)
}

func (m *MockNotifier) NotifySettingsChanged(userID string, settings models.TradingSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = append(m.settings, settings)
}
