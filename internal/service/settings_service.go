package service

import (
	"context"
	"errors"
	"fmt"

	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

// Ошибки сервиса настроек
var (
	ErrInvalidSettings = errors.New("invalid instrument settings")
	ErrEmptyUpdate     = errors.New("no settings to update")
)

// SettingsService предоставляет бизнес-логику для настроек инструментов.
//
// Отвечает за:
// - Получение настроек пользователя поверх значений по умолчанию
// - Частичное обновление лота и комиссии с валидацией
// - Сброс к значениям по умолчанию
//
// Новые настройки применяются ко всей истории при следующем пересчете отчетов.
type SettingsService struct {
	repo     SettingsRepositoryInterface
	notifier ChangeNotifier
}

// NewSettingsService создает новый экземпляр SettingsService.
func NewSettingsService(repo SettingsRepositoryInterface) *SettingsService {
	return &SettingsService{repo: repo}
}

// SetNotifier устанавливает получателя событий
func (s *SettingsService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// GetSettings возвращает текущие настройки пользователя.
func (s *SettingsService) GetSettings(ctx context.Context, userID string) (*models.TradingSettings, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateSettings обновляет настройки.
//
// Принимает только те поля, которые нужно обновить.
// Правила валидации:
// - lot_size: > 0
// - commission_per_lot: >= 0
func (s *SettingsService) UpdateSettings(ctx context.Context, userID string, req models.SettingsUpdate) (*models.TradingSettings, error) {
	if req.Gold == nil && req.Silver == nil {
		return nil, ErrEmptyUpdate
	}

	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[models.Instrument]*models.InstrumentSettingsUpdate{
		models.InstrumentGold:   req.Gold,
		models.InstrumentSilver: req.Silver,
	}

	// сначала валидируем все, чтобы не сохранить половину запроса
	changed := make(map[models.Instrument]models.InstrumentSettings)
	for _, inst := range models.Instruments {
		upd := updates[inst]
		if upd == nil {
			continue
		}
		next := current.For(inst)
		if upd.LotSize != nil {
			next.LotSize = *upd.LotSize
		}
		if upd.CommissionPerLot != nil {
			next.CommissionPerLot = *upd.CommissionPerLot
		}
		if err := next.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSettings, inst, err)
		}
		changed[inst] = next
	}

	for _, inst := range models.Instruments {
		next, ok := changed[inst]
		if !ok {
			continue
		}
		if err := s.repo.Upsert(ctx, userID, inst, next); err != nil {
			return nil, fmt.Errorf("save %s settings: %w", inst, err)
		}
		utils.Info("instrument settings updated",
			utils.UserID(userID),
			utils.Instrument(string(inst)),
			utils.Int("lot_size", next.LotSize),
			utils.String("commission_per_lot", next.CommissionPerLot.String()),
		)
	}

	return s.reload(ctx, userID)
}

// ResetSettings возвращает настройки по умолчанию
func (s *SettingsService) ResetSettings(ctx context.Context, userID string) (*models.TradingSettings, error) {
	if err := s.repo.Reset(ctx, userID); err != nil {
		return nil, err
	}
	return s.reload(ctx, userID)
}

func (s *SettingsService) reload(ctx context.Context, userID string) (*models.TradingSettings, error) {
	settings, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.NotifySettingsChanged(userID, *settings)
	}
	return settings, nil
}
