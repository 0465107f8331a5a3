package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/pkg/utils"
)

// Ошибки сервиса сделок
var (
	ErrTradeNotFound        = errors.New("trade not found")
	ErrInvalidTrade         = errors.New("invalid trade entry")
	ErrSettlementReadOnly   = errors.New("settlement entries cannot be edited")
	ErrNoteTooLong          = errors.New("note must be at most 500 characters")
	ErrInvalidHistoryFilter = errors.New("invalid date filter")
	ErrWeekSettled          = errors.New("trade falls into a week closed by a settlement")
)

// MaxNoteLength - ограничение на заметку к сделке
const MaxNoteLength = 500

// CreateTradeRequest - запрос на запись сделки
//
// Задается ровно одна из ставок. Quantity по умолчанию 1 лот,
// OccurredAt по умолчанию - текущий момент.
type CreateTradeRequest struct {
	Instrument models.Instrument `json:"instrument"`
	BuyRate    *decimal.Decimal  `json:"buy_rate,omitempty"`
	SellRate   *decimal.Decimal  `json:"sell_rate,omitempty"`
	Quantity   *int              `json:"quantity,omitempty"`
	OccurredAt models.Timestamp  `json:"occurred_at"`
	Note       string            `json:"note,omitempty"`
}

// UpdateTradeRequest - частичное обновление сделки
//
// Если передана хотя бы одна ставка, обе ставки заменяются значениями
// запроса (отсутствующая становится 0). Так сделку можно перевернуть
// из покупки в продажу.
type UpdateTradeRequest struct {
	Instrument *models.Instrument `json:"instrument,omitempty"`
	BuyRate    *decimal.Decimal   `json:"buy_rate,omitempty"`
	SellRate   *decimal.Decimal   `json:"sell_rate,omitempty"`
	Quantity   *int               `json:"quantity,omitempty"`
	OccurredAt models.Timestamp   `json:"occurred_at"`
	Note       *string            `json:"note,omitempty"`
}

// TradeService - бизнес-логика журнала сделок
//
// Отвечает за:
// - нормализацию времени сделки в часовом поясе журнала
// - валидацию записи до сохранения
// - защиту записей расчета от редактирования
// - оповещение подписчиков об изменениях
type TradeService struct {
	repo     TradeRepositoryInterface
	notifier ChangeNotifier
	loc      *time.Location
	now      func() time.Time
}

// NewTradeService создает новый сервис сделок
func NewTradeService(repo TradeRepositoryInterface, loc *time.Location) *TradeService {
	if loc == nil {
		loc = time.UTC
	}
	return &TradeService{
		repo: repo,
		loc:  loc,
		now:  time.Now,
	}
}

// SetNotifier устанавливает получателя событий
func (s *TradeService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// SetClock подменяет часы (для тестов)
func (s *TradeService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateTrade записывает новую сделку
func (s *TradeService) CreateTrade(ctx context.Context, userID string, req CreateTradeRequest) (*models.TradeEntry, error) {
	entry := &models.TradeEntry{
		UserID:     userID,
		Instrument: models.Instrument(strings.ToLower(string(req.Instrument))),
		Quantity:   1,
		Note:       strings.TrimSpace(req.Note),
	}
	if req.BuyRate != nil {
		entry.BuyRate = *req.BuyRate
	}
	if req.SellRate != nil {
		entry.SellRate = *req.SellRate
	}
	if req.Quantity != nil {
		entry.Quantity = *req.Quantity
	}

	occurredAt := s.now()
	if !req.OccurredAt.IsZero() {
		t, err := req.OccurredAt.Time(s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTrade, err)
		}
		occurredAt = t
	}
	s.setOccurredAt(entry, occurredAt)

	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	if err := s.checkSettledWeek(ctx, userID, entry.Instrument, entry.OccurredAt); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create trade: %w", err)
	}

	TradesWritten.WithLabelValues(string(models.TradeCreated), string(entry.Instrument)).Inc()
	s.notify(userID, models.TradeCreated, entry)

	utils.Info("trade recorded",
		utils.UserID(userID),
		utils.TradeID(entry.ID),
		utils.Instrument(string(entry.Instrument)),
		utils.Quantity(entry.Quantity),
		utils.Rate(entry.Rate()),
	)

	return entry, nil
}

// GetTrade возвращает сделку пользователя
func (s *TradeService) GetTrade(ctx context.Context, userID, id string) (*models.TradeEntry, error) {
	entry, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, mapTradeError(err)
	}
	return entry, nil
}

// ListTrades возвращает сделки по фильтру в порядке времени
func (s *TradeService) ListTrades(ctx context.Context, userID string, filter models.TradeFilter) ([]models.TradeEntry, error) {
	if filter.Instrument != "" && !filter.Instrument.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrade, models.ErrInvalidInstrument)
	}
	if err := validateDateBounds(filter.FromDate, filter.ToDate, s.loc); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID, filter)
}

// UpdateTrade обновляет сделку
//
// Записи расчета только для чтения: их можно удалить, но не изменить.
func (s *TradeService) UpdateTrade(ctx context.Context, userID, id string, req UpdateTradeRequest) (*models.TradeEntry, error) {
	entry, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, mapTradeError(err)
	}
	if entry.IsSettlement {
		return nil, ErrSettlementReadOnly
	}
	before := *entry

	if req.Instrument != nil {
		entry.Instrument = models.Instrument(strings.ToLower(string(*req.Instrument)))
	}
	if req.BuyRate != nil || req.SellRate != nil {
		entry.BuyRate = decimal.Zero
		entry.SellRate = decimal.Zero
		if req.BuyRate != nil {
			entry.BuyRate = *req.BuyRate
		}
		if req.SellRate != nil {
			entry.SellRate = *req.SellRate
		}
	}
	if req.Quantity != nil {
		entry.Quantity = *req.Quantity
	}
	if req.Note != nil {
		entry.Note = strings.TrimSpace(*req.Note)
	}
	if !req.OccurredAt.IsZero() {
		t, err := req.OccurredAt.Time(s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTrade, err)
		}
		s.setOccurredAt(entry, t)
	}

	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	// заметку можно менять всегда, остальное только вне закрытых недель
	if req.Instrument != nil || req.BuyRate != nil || req.SellRate != nil || req.Quantity != nil || !req.OccurredAt.IsZero() {
		if err := s.checkSettledWeek(ctx, userID, before.Instrument, before.OccurredAt); err != nil {
			return nil, err
		}
		if err := s.checkSettledWeek(ctx, userID, entry.Instrument, entry.OccurredAt); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, mapTradeError(err)
	}

	TradesWritten.WithLabelValues(string(models.TradeUpdated), string(entry.Instrument)).Inc()
	s.notify(userID, models.TradeUpdated, entry)

	return entry, nil
}

// DeleteTrade удаляет сделку (включая записи расчета)
func (s *TradeService) DeleteTrade(ctx context.Context, userID, id string) error {
	entry, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return mapTradeError(err)
	}
	if !entry.IsSettlement {
		if err := s.checkSettledWeek(ctx, userID, entry.Instrument, entry.OccurredAt); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return mapTradeError(err)
	}

	TradesWritten.WithLabelValues(string(models.TradeDeleted), string(entry.Instrument)).Inc()
	s.notify(userID, models.TradeDeleted, entry)

	if entry.IsSettlement {
		utils.Warn("settlement entry deleted",
			utils.UserID(userID),
			utils.TradeID(id),
			utils.String("settlement_date", entry.SettlementDate),
		)
	}
	return nil
}

// checkSettledWeek запрещает менять сделки недели, закрытой расчетом.
//
// CLOSE расчета датирован пятницей 23:59:59, а его объем взят из снимка
// на момент расчета. Сделка до конца пятницы после расчета встала бы
// перед CLOSE и разошлась бы с ним. Субботние и воскресные сделки идут
// после OPEN и разрешены. Чтобы исправить закрытую неделю, сначала
// удаляются записи расчета.
func (s *TradeService) checkSettledWeek(ctx context.Context, userID string, instrument models.Instrument, at time.Time) error {
	friday := utils.WeekStart(at, s.loc).AddDate(0, 0, 4)
	if !at.Before(friday.AddDate(0, 0, 1)) {
		return nil
	}

	date := utils.DayKey(friday, s.loc)
	settled, err := s.repo.SettlementExists(ctx, userID, instrument, date)
	if err != nil {
		return fmt.Errorf("check settlement: %w", err)
	}
	if settled {
		return fmt.Errorf("%w: %s %s", ErrWeekSettled, instrument, date)
	}
	return nil
}

// setOccurredAt фиксирует момент сделки и отчетную дату
func (s *TradeService) setOccurredAt(entry *models.TradeEntry, t time.Time) {
	entry.OccurredAt = t.In(s.loc)
	entry.TradeDate = utils.DayKey(t, s.loc)
}

func (s *TradeService) notify(userID string, action models.TradeChangeAction, entry *models.TradeEntry) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyTradesChanged(userID, models.TradeChange{
		Action:      action,
		TradeIDs:    []string{entry.ID},
		Instruments: []models.Instrument{entry.Instrument},
	})
}

// validateEntry проверяет запись и длину заметки
func validateEntry(entry *models.TradeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrade, err)
	}
	if len([]rune(entry.Note)) > MaxNoteLength {
		return fmt.Errorf("%w: %w", ErrInvalidTrade, ErrNoteTooLong)
	}
	return nil
}

// validateDateBounds проверяет границы фильтра YYYY-MM-DD
func validateDateBounds(from, to string, loc *time.Location) error {
	var fromDay, toDay time.Time
	var err error
	if from != "" {
		if fromDay, err = utils.ParseDay(from, loc); err != nil {
			return fmt.Errorf("%w: from: %v", ErrInvalidHistoryFilter, err)
		}
	}
	if to != "" {
		if toDay, err = utils.ParseDay(to, loc); err != nil {
			return fmt.Errorf("%w: to: %v", ErrInvalidHistoryFilter, err)
		}
	}
	if from != "" && to != "" && toDay.Before(fromDay) {
		return fmt.Errorf("%w: to is before from", ErrInvalidHistoryFilter)
	}
	return nil
}

func mapTradeError(err error) error {
	if errors.Is(err, repository.ErrTradeNotFound) {
		return ErrTradeNotFound
	}
	return err
}
