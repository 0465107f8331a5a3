package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
	"tradejournal/pkg/utils"
)

// Ошибки недельного расчета
var (
	ErrSettlementWindowClosed = errors.New("settlement is only allowed from Friday to Sunday")
	ErrInvalidSettlementDate  = errors.New("settlement date must be the Friday of the current window")
	ErrAlreadySettled         = errors.New("positions are already settled for this date")
	ErrNothingToSettle        = errors.New("no open positions to settle")
	ErrSettlementRateRequired = errors.New("settlement rate is required for every open instrument")
	ErrInvalidSettlementRate  = errors.New("invalid settlement rate")
)

// SettlementRequest - запрос на расчет
//
// Date (YYYY-MM-DD) можно не передавать: берется пятница текущего окна.
// Rates - ставки расчета по инструментам с открытой позицией.
type SettlementRequest struct {
	Date  string                                `json:"date,omitempty"`
	Rates map[models.Instrument]decimal.Decimal `json:"rates"`
}

// SettlementInstrument - состояние инструмента перед расчетом
type SettlementInstrument struct {
	Instrument     models.Instrument `json:"instrument"`
	DisplayName    string            `json:"display_name"`
	TotalLong      int               `json:"total_long"`
	TotalShort     int               `json:"total_short"`
	Net            int               `json:"net"`
	AlreadySettled bool              `json:"already_settled"`
	RateRequired   bool              `json:"rate_required"`
}

// SettlementPreview - что будет рассчитано
type SettlementPreview struct {
	SettlementDate string                 `json:"settlement_date"`
	WindowOpen     bool                   `json:"window_open"`
	CanSettle      bool                   `json:"can_settle"`
	Instruments    []SettlementInstrument `json:"instruments"`
}

// SettlementResult - итог проведенного расчета
type SettlementResult struct {
	SettlementDate string              `json:"settlement_date"`
	Instruments    []models.Instrument `json:"instruments"`
	Entries        []models.TradeEntry `json:"entries"`
	RealizedPnl    decimal.Decimal     `json:"realized_pnl"` // P&L закрытия по ставке расчета
}

// SettlementService - недельный расчет (закрытие и переоткрытие позиций)
//
// Отвечает за:
// - окно расчета пт-вс (отключается конфигурацией)
// - снимок открытых позиций на конец недели расчета
// - защиту от повторного расчета
// - атомарную запись CLOSE/OPEN записей
type SettlementService struct {
	trades        TradeRepositoryInterface
	settings      SettingsRepositoryInterface
	notifier      ChangeNotifier
	loc           *time.Location
	opts          []pnl.Option
	enforceWindow bool
	now           func() time.Time
	log           *utils.Logger
}

// NewSettlementService создает сервис расчета
func NewSettlementService(trades TradeRepositoryInterface, settings SettingsRepositoryInterface, loc *time.Location, enforceWindow bool, opts ...pnl.Option) *SettlementService {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementService{
		trades:        trades,
		settings:      settings,
		loc:           loc,
		opts:          opts,
		enforceWindow: enforceWindow,
		now:           time.Now,
		log:           utils.L().WithComponent("settlement"),
	}
}

// SetNotifier устанавливает получателя событий
func (s *SettlementService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

// SetClock подменяет часы (для тестов)
func (s *SettlementService) SetClock(now func() time.Time) {
	s.now = now
}

// targetFriday определяет пятницу расчета
//
// В окне пт-вс это пятница окна. Вне окна при выключенной проверке
// берется последняя прошедшая пятница.
func (s *SettlementService) targetFriday(now time.Time) (friday time.Time, windowOpen bool) {
	if friday, ok := utils.SettlementFriday(now, s.loc); ok {
		return friday, true
	}
	day := utils.DayStart(now, s.loc)
	back := (int(day.Weekday()) - int(time.Friday) + 7) % 7
	return day.AddDate(0, 0, -back), false
}

// resolveDate проверяет дату запроса относительно окна
func (s *SettlementService) resolveDate(requested string) (time.Time, error) {
	friday, windowOpen := s.targetFriday(s.now())

	if s.enforceWindow && !windowOpen {
		return time.Time{}, ErrSettlementWindowClosed
	}
	if requested == "" {
		return friday, nil
	}

	day, err := utils.ParseDay(requested, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSettlementDate, err)
	}
	if s.enforceWindow && !day.Equal(friday) {
		return time.Time{}, ErrInvalidSettlementDate
	}
	return day, nil
}

// weekSnapshot - записи по воскресенье недели расчета и их FIFO расчет
type weekSnapshot struct {
	entries  []models.TradeEntry
	settings models.TradingSettings
	results  map[models.Instrument]pnl.MatchResult
}

// snapshot - открытые позиции по записям с TradeDate до воскресенья недели расчета
func (s *SettlementService) snapshot(ctx context.Context, userID string, friday time.Time) (*weekSnapshot, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	sunday := utils.DayKey(friday.AddDate(0, 0, 2), s.loc)
	entries, err := s.trades.List(ctx, userID, models.TradeFilter{ToDate: sunday})
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	results, err := matchInstruments(ctx, entries, *settings, s.log.WithUser(userID), s.opts...)
	if err != nil {
		return nil, err
	}
	return &weekSnapshot{entries: entries, settings: *settings, results: results}, nil
}

// Preview показывает позиции, которые будут закрыты расчетом
func (s *SettlementService) Preview(ctx context.Context, userID string) (*SettlementPreview, error) {
	friday, windowOpen := s.targetFriday(s.now())
	date := utils.DayKey(friday, s.loc)

	snap, err := s.snapshot(ctx, userID, friday)
	if err != nil {
		return nil, err
	}

	preview := &SettlementPreview{
		SettlementDate: date,
		WindowOpen:     windowOpen,
		Instruments:    make([]SettlementInstrument, 0, len(models.Instruments)),
	}

	pending, anySettled := false, false
	for _, inst := range models.Instruments {
		open := snap.results[inst].Open
		settled, err := s.trades.SettlementExists(ctx, userID, inst, date)
		if err != nil {
			return nil, fmt.Errorf("check settlement: %w", err)
		}

		item := SettlementInstrument{
			Instrument:     inst,
			DisplayName:    inst.DisplayName(),
			TotalLong:      open.TotalLong(),
			TotalShort:     open.TotalShort(),
			Net:            open.Net(),
			AlreadySettled: settled,
			RateRequired:   !open.IsFlat() && !settled,
		}
		if item.RateRequired {
			pending = true
		}
		if settled {
			anySettled = true
		}
		preview.Instruments = append(preview.Instruments, item)
	}

	preview.CanSettle = pending && !anySettled && (windowOpen || !s.enforceWindow)
	return preview, nil
}

// Settle закрывает открытые позиции по ставкам запроса и переоткрывает
// их в следующем понедельнике
func (s *SettlementService) Settle(ctx context.Context, userID string, req SettlementRequest) (*SettlementResult, error) {
	result, err := s.settle(ctx, userID, req)
	SettlementRuns.WithLabelValues(settlementOutcome(err)).Inc()
	return result, err
}

func (s *SettlementService) settle(ctx context.Context, userID string, req SettlementRequest) (*SettlementResult, error) {
	friday, err := s.resolveDate(req.Date)
	if err != nil {
		return nil, err
	}
	date := utils.DayKey(friday, s.loc)

	// расчет за дату проводится один раз: после CLOSE снимок уже плоский
	for _, inst := range models.Instruments {
		settled, err := s.trades.SettlementExists(ctx, userID, inst, date)
		if err != nil {
			return nil, fmt.Errorf("check settlement: %w", err)
		}
		if settled {
			return nil, ErrAlreadySettled
		}
	}

	snap, err := s.snapshot(ctx, userID, friday)
	if err != nil {
		return nil, err
	}

	open := make(map[models.Instrument]pnl.OpenPositionSet, len(snap.results))
	for _, inst := range models.Instruments {
		set := snap.results[inst].Open
		if set.IsFlat() {
			continue
		}

		rate, ok := req.Rates[inst]
		if !ok || !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrSettlementRateRequired, inst)
		}
		if err := models.ValidateRate(rate); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSettlementRate, inst, err)
		}
		open[inst] = set
	}

	plan, err := pnl.Settle(open, friday, req.Rates, s.loc)
	if err != nil {
		if errors.Is(err, pnl.ErrNothingToSettle) {
			return nil, ErrNothingToSettle
		}
		return nil, err
	}

	entries := plan.Entries()
	for i := range entries {
		entries[i].UserID = userID
	}

	if err := s.trades.CreateBatch(ctx, entries); err != nil {
		if errors.Is(err, repository.ErrSettlementExists) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("save settlement: %w", err)
	}

	realized := s.realizedBySettlement(snap, entries[:len(plan.CloseEntries)])

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if s.notifier != nil {
		s.notifier.NotifyTradesChanged(userID, models.TradeChange{
			Action:      models.TradeSettled,
			TradeIDs:    ids,
			Instruments: plan.Instruments,
			Date:        date,
		})
	}

	s.log.Info("positions settled",
		utils.UserID(userID),
		utils.String("settlement_date", date),
		utils.Count(len(entries)),
		utils.PNL(realized),
	)

	return &SettlementResult{
		SettlementDate: date,
		Instruments:    plan.Instruments,
		Entries:        entries,
		RealizedPnl:    realized,
	}, nil
}

// realizedBySettlement - сумма net пар, закрытых записями CLOSE расчета
func (s *SettlementService) realizedBySettlement(snap *weekSnapshot, closes []models.TradeEntry) decimal.Decimal {
	entries := make([]models.TradeEntry, 0, len(snap.entries)+len(closes))
	entries = append(entries, snap.entries...)
	entries = append(entries, closes...)

	closeIDs := make(map[string]bool, len(closes))
	for _, e := range closes {
		closeIDs[e.ID] = true
	}

	total := decimal.Zero
	for _, p := range pnl.CombinedPairs(pnl.MatchAll(entries, snap.settings, s.opts...)) {
		if closeIDs[p.ClosingEntryID] {
			total = total.Add(p.NetProfit)
		}
	}
	return total
}

func settlementOutcome(err error) string {
	switch {
	case err == nil:
		return "settled"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrNothingToSettle):
		return "nothing_to_settle"
	case errors.Is(err, ErrSettlementWindowClosed), errors.Is(err, ErrInvalidSettlementDate):
		return "rejected"
	case errors.Is(err, ErrSettlementRateRequired):
		return "rate_required"
	default:
		return "error"
	}
}
