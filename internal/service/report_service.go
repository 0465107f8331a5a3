package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/pkg/utils"
)

// PositionStatus - направление открытой позиции
type PositionStatus string

const (
	PositionLong  PositionStatus = "long"
	PositionShort PositionStatus = "short"
	PositionFlat  PositionStatus = "flat"
)

// InstrumentPosition - открытая позиция по инструменту
type InstrumentPosition struct {
	Instrument   models.Instrument `json:"instrument"`
	DisplayName  string            `json:"display_name"`
	Status       PositionStatus    `json:"status"`
	TotalLong    int               `json:"total_long"`
	TotalShort   int               `json:"total_short"`
	Net          int               `json:"net"`
	AvgLongRate  decimal.Decimal   `json:"avg_long_rate"`
	AvgShortRate decimal.Decimal   `json:"avg_short_rate"`
	Longs        []pnl.Position    `json:"longs"`
	Shorts       []pnl.Position    `json:"shorts"`
}

// InstrumentSummary - итоги инструмента за период
type InstrumentSummary struct {
	pnl.DailyStats
	Instrument  models.Instrument `json:"instrument"`
	DisplayName string            `json:"display_name"`
	Commission  decimal.Decimal   `json:"commission"`
	Gross       decimal.Decimal   `json:"gross"` // до комиссии
}

// HistoryItem - реализованная пара для истории
type HistoryItem struct {
	pnl.RealizedPair
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Date        string `json:"date"`
}

// Dashboard - сводка текущей недели
type Dashboard struct {
	WeekStart          string               `json:"week_start"`
	WeekEnd            string               `json:"week_end"`
	Week               pnl.DailyStats       `json:"week"`
	WeeklyCommission   decimal.Decimal      `json:"weekly_commission"`
	TradesThisWeek     int                  `json:"trades_this_week"`
	TotalRealizedPnl   decimal.Decimal      `json:"total_realized_pnl"`
	Instruments        []InstrumentSummary  `json:"instruments"`
	Positions          []InstrumentPosition `json:"positions"`
	UnsettledPositions bool                 `json:"unsettled_positions"`
}

// WeeklyReport - отчет за неделю с разбивкой по дням
type WeeklyReport struct {
	WeekStart   string              `json:"week_start"`
	WeekEnd     string              `json:"week_end"`
	Summary     pnl.PeriodStats     `json:"summary"`
	Instruments []InstrumentSummary `json:"instruments"`
	Pairs       []HistoryItem       `json:"pairs"`
}

// MonthlyReport - отчет за месяц с разбивкой по неделям
type MonthlyReport struct {
	Month       string              `json:"month"`
	Summary     pnl.PeriodStats     `json:"summary"` // Breakdown - по неделям
	Daily       []pnl.DailyStats    `json:"daily"`
	Instruments []InstrumentSummary `json:"instruments"`
}

// InstrumentAnalysis - статистика инструмента за все время
type InstrumentAnalysis struct {
	Instrument  models.Instrument         `json:"instrument"`
	DisplayName string                    `json:"display_name"`
	Settings    models.InstrumentSettings `json:"settings"`
	Stats       pnl.DailyStats            `json:"stats"`
	WinLoss     pnl.WinLossStats          `json:"win_loss"`
	Totals      pnl.Totals                `json:"totals"`
	Position    InstrumentPosition        `json:"position"`
	Skipped     []pnl.SkippedEntry        `json:"skipped,omitempty"`
}

// HistoryFilter - фильтр истории пар (по дате закрытия)
type HistoryFilter struct {
	Instrument models.Instrument
	FromDate   string // включительно
	ToDate     string // включительно
	Limit      int
}

// ReportService - отчеты по реализованному P&L
//
// Каждый отчет пересчитывается по полной истории пользователя:
// открытые позиции зависят от всех записей, поэтому фильтр периода
// применяется к готовым парам по времени закрытия, а не к записям.
type ReportService struct {
	trades   TradeRepositoryInterface
	settings SettingsRepositoryInterface
	loc      *time.Location
	opts     []pnl.Option
	now      func() time.Time
	log      *utils.Logger
}

// NewReportService создает сервис отчетов
func NewReportService(trades TradeRepositoryInterface, settings SettingsRepositoryInterface, loc *time.Location, opts ...pnl.Option) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		trades:   trades,
		settings: settings,
		loc:      loc,
		opts:     opts,
		now:      time.Now,
		log:      utils.L().WithComponent("reports"),
	}
}

// SetClock подменяет часы (для тестов)
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

// ============================================================
// Общий расчет
// ============================================================

// journal - результат FIFO расчета по истории пользователя
type journal struct {
	entries  []models.TradeEntry
	settings models.TradingSettings
	results  map[models.Instrument]pnl.MatchResult
}

func (j *journal) pairs() []pnl.RealizedPair {
	return pnl.CombinedPairs(j.results)
}

func (j *journal) positions() []InstrumentPosition {
	out := make([]InstrumentPosition, 0, len(models.Instruments))
	for _, inst := range models.Instruments {
		out = append(out, buildPosition(inst, j.results[inst].Open))
	}
	return out
}

func (s *ReportService) load(ctx context.Context, userID string) (*journal, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	entries, err := s.trades.List(ctx, userID, models.TradeFilter{})
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	results, err := matchInstruments(ctx, entries, *settings, s.log.WithUser(userID), s.opts...)
	if err != nil {
		return nil, err
	}
	return &journal{entries: entries, settings: *settings, results: results}, nil
}

// matchInstruments считает инструменты параллельно.
// Инструменты независимы, входной срез только читается.
func matchInstruments(ctx context.Context, entries []models.TradeEntry, settings models.TradingSettings, log *utils.Logger, opts ...pnl.Option) (map[models.Instrument]pnl.MatchResult, error) {
	out := make([]pnl.MatchResult, len(models.Instruments))

	g, gctx := errgroup.WithContext(ctx)
	for i, inst := range models.Instruments {
		i, inst := i, inst
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			out[i] = pnl.MatchInstrument(inst, entries, settings.For(inst), opts...)
			MatchDuration.WithLabelValues(string(inst)).Observe(float64(time.Since(start).Microseconds()) / 1000)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make(map[models.Instrument]pnl.MatchResult, len(out))
	for i, inst := range models.Instruments {
		res := out[i]
		results[inst] = res
		for _, sk := range res.Skipped {
			EntriesSkipped.WithLabelValues(string(inst), string(sk.Reason)).Inc()
			log.Warn("entry skipped by matching",
				utils.Instrument(string(inst)),
				utils.TradeID(sk.EntryID),
				utils.Reason(string(sk.Reason)),
			)
		}
	}
	return results, nil
}

// buildPosition переводит очереди в DTO со средними ставками
func buildPosition(inst models.Instrument, set pnl.OpenPositionSet) InstrumentPosition {
	pos := InstrumentPosition{
		Instrument:   inst,
		DisplayName:  inst.DisplayName(),
		TotalLong:    set.TotalLong(),
		TotalShort:   set.TotalShort(),
		Net:          set.Net(),
		AvgLongRate:  averageRate(set.Longs),
		AvgShortRate: averageRate(set.Shorts),
		Longs:        set.Longs,
		Shorts:       set.Shorts,
	}
	if pos.Longs == nil {
		pos.Longs = []pnl.Position{}
	}
	if pos.Shorts == nil {
		pos.Shorts = []pnl.Position{}
	}
	switch {
	case pos.Net > 0:
		pos.Status = PositionLong
	case pos.Net < 0:
		pos.Status = PositionShort
	default:
		pos.Status = PositionFlat
	}
	return pos
}

// averageRate - средневзвешенная по лотам ставка
func averageRate(ps []pnl.Position) decimal.Decimal {
	total := decimal.Zero
	qty := int64(0)
	for _, p := range ps {
		total = total.Add(p.Rate.Mul(decimal.NewFromInt(int64(p.Quantity))))
		qty += int64(p.Quantity)
	}
	if qty == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(qty)).Round(2)
}

// summarizeInstruments - итоги по каждому инструменту
func summarizeInstruments(pairs []pnl.RealizedPair) []InstrumentSummary {
	byInst := make(map[models.Instrument][]pnl.RealizedPair)
	for _, p := range pairs {
		byInst[p.Instrument] = append(byInst[p.Instrument], p)
	}

	out := make([]InstrumentSummary, 0, len(models.Instruments))
	for _, inst := range models.Instruments {
		ps := byInst[inst]
		sum := InstrumentSummary{
			DailyStats:  pnl.ComputeStats(string(inst), ps),
			Instrument:  inst,
			DisplayName: inst.DisplayName(),
		}
		for _, p := range ps {
			sum.Commission = sum.Commission.Add(p.Commission)
			sum.Gross = sum.Gross.Add(p.GrossProfit)
		}
		out = append(out, sum)
	}
	return out
}

// historyItems присваивает парам ID вида gold-0 и дату закрытия
func historyItems(pairs []pnl.RealizedPair, loc *time.Location) []HistoryItem {
	counters := make(map[models.Instrument]int)
	out := make([]HistoryItem, 0, len(pairs))
	for _, p := range pairs {
		n := counters[p.Instrument]
		counters[p.Instrument] = n + 1
		out = append(out, HistoryItem{
			RealizedPair: p,
			ID:           string(p.Instrument) + "-" + strconv.Itoa(n),
			DisplayName:  p.Instrument.DisplayName(),
			Date:         utils.DayKey(p.ClosingTimestamp, loc),
		})
	}
	return out
}

// ============================================================
// Отчеты
// ============================================================

// OpenPositions возвращает открытые позиции по всем инструментам
func (s *ReportService) OpenPositions(ctx context.Context, userID string) ([]InstrumentPosition, error) {
	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	ReportsBuilt.WithLabelValues("positions").Inc()
	return j.positions(), nil
}

// Dashboard - сводка недели, содержащей weekOf (нулевое значение = сейчас)
func (s *ReportService) Dashboard(ctx context.Context, userID string, weekOf time.Time) (*Dashboard, error) {
	if weekOf.IsZero() {
		weekOf = s.now()
	}
	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	week := utils.WeekRange(weekOf, s.loc)
	weekStart := utils.DayKey(week.Start, s.loc)
	weekEnd := utils.DayKey(week.End.AddDate(0, 0, -1), s.loc)

	all := j.pairs()
	weekPairs := pnl.FilterClosedBetween(all, week.Start, week.End)

	tradesThisWeek, err := s.trades.CountByTradeDate(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}

	unsettled, err := s.hasUnsettledPositions(ctx, userID, j, week.Start)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		WeekStart:          weekStart,
		WeekEnd:            weekEnd,
		Week:               pnl.ComputeStats(weekStart, weekPairs),
		TradesThisWeek:     tradesThisWeek,
		Instruments:        summarizeInstruments(weekPairs),
		Positions:          j.positions(),
		UnsettledPositions: unsettled,
	}
	for _, p := range weekPairs {
		d.WeeklyCommission = d.WeeklyCommission.Add(p.Commission)
	}
	for _, res := range j.results {
		d.TotalRealizedPnl = d.TotalRealizedPnl.Add(res.Totals.RealizedPL)
	}

	ReportsBuilt.WithLabelValues("dashboard").Inc()
	return d, nil
}

// hasUnsettledPositions - на конец прошлой недели были открытые лоты,
// а расчет за прошлую пятницу не проводился
func (s *ReportService) hasUnsettledPositions(ctx context.Context, userID string, j *journal, weekStart time.Time) (bool, error) {
	prevFriday := weekStart.AddDate(0, 0, -3)
	prevSunday := utils.DayKey(weekStart.AddDate(0, 0, -1), s.loc)

	snapshot := entriesUpTo(j.entries, prevSunday)
	if len(snapshot) == 0 {
		return false, nil
	}
	open := pnl.MatchAll(snapshot, j.settings, s.opts...)

	fridayKey := utils.DayKey(prevFriday, s.loc)
	for _, inst := range models.Instruments {
		if open[inst].Open.IsFlat() {
			continue
		}
		settled, err := s.trades.SettlementExists(ctx, userID, inst, fridayKey)
		if err != nil {
			return false, fmt.Errorf("check settlement: %w", err)
		}
		if !settled {
			return true, nil
		}
	}
	return false, nil
}

// WeeklyReport - отчет за неделю, содержащую weekOf
func (s *ReportService) WeeklyReport(ctx context.Context, userID string, weekOf time.Time) (*WeeklyReport, error) {
	if weekOf.IsZero() {
		weekOf = s.now()
	}
	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	week := utils.WeekRange(weekOf, s.loc)
	pairs := pnl.FilterClosedBetween(j.pairs(), week.Start, week.End)

	ReportsBuilt.WithLabelValues("weekly").Inc()
	return &WeeklyReport{
		WeekStart:   utils.DayKey(week.Start, s.loc),
		WeekEnd:     utils.DayKey(week.End.AddDate(0, 0, -1), s.loc),
		Summary:     pnl.PeriodStatsFor(pairs, pnl.DayKey(s.loc)),
		Instruments: summarizeInstruments(pairs),
		Pairs:       historyItems(pairs, s.loc),
	}, nil
}

// MonthlyReport - отчет за месяц, содержащий monthOf
func (s *ReportService) MonthlyReport(ctx context.Context, userID string, monthOf time.Time) (*MonthlyReport, error) {
	if monthOf.IsZero() {
		monthOf = s.now()
	}
	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	month := utils.MonthRange(monthOf, s.loc)
	pairs := pnl.FilterClosedBetween(j.pairs(), month.Start, month.End)

	ReportsBuilt.WithLabelValues("monthly").Inc()
	return &MonthlyReport{
		Month:       utils.MonthKey(month.Start, s.loc),
		Summary:     pnl.PeriodStatsFor(pairs, pnl.WeekKey(s.loc)),
		Daily:       pnl.SortedBuckets(pnl.Bucketize(pairs, pnl.DayKey(s.loc))),
		Instruments: summarizeInstruments(pairs),
	}, nil
}

// InstrumentAnalysis - статистика каждого инструмента за все время
func (s *ReportService) InstrumentAnalysis(ctx context.Context, userID string) ([]InstrumentAnalysis, error) {
	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]InstrumentAnalysis, 0, len(models.Instruments))
	for _, inst := range models.Instruments {
		res := j.results[inst]
		out = append(out, InstrumentAnalysis{
			Instrument:  inst,
			DisplayName: inst.DisplayName(),
			Settings:    j.settings.For(inst),
			Stats:       pnl.ComputeStats(string(inst), res.Pairs),
			WinLoss:     pnl.AnalyzeWinLoss(res.Pairs),
			Totals:      res.Totals,
			Position:    buildPosition(inst, res.Open),
			Skipped:     res.Skipped,
		})
	}

	ReportsBuilt.WithLabelValues("instruments").Inc()
	return out, nil
}

// WinLoss - анализ серий за [from, to) по времени закрытия.
// Нулевые границы - без ограничения.
func (s *ReportService) WinLoss(ctx context.Context, userID string, from, to time.Time) (*pnl.WinLossStats, error) {
	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := pnl.AnalyzeWinLoss(pnl.FilterClosedBetween(j.pairs(), from, to))
	ReportsBuilt.WithLabelValues("win_loss").Inc()
	return &stats, nil
}

// History - реализованные пары, новые первыми
func (s *ReportService) History(ctx context.Context, userID string, filter HistoryFilter) ([]HistoryItem, error) {
	if filter.Instrument != "" && !filter.Instrument.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHistoryFilter, models.ErrInvalidInstrument)
	}
	if err := validateDateBounds(filter.FromDate, filter.ToDate, s.loc); err != nil {
		return nil, err
	}

	j, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var from, to time.Time
	if filter.FromDate != "" {
		from, _ = utils.ParseDay(filter.FromDate, s.loc)
	}
	if filter.ToDate != "" {
		toDay, _ := utils.ParseDay(filter.ToDate, s.loc)
		to = toDay.AddDate(0, 0, 1)
	}

	// ID присваиваются по всей истории, чтобы не зависеть от фильтра
	items := historyItems(j.pairs(), s.loc)
	out := make([]HistoryItem, 0, len(items))
	for _, it := range items {
		if filter.Instrument != "" && it.Instrument != filter.Instrument {
			continue
		}
		if !from.IsZero() && it.ClosingTimestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !it.ClosingTimestamp.Before(to) {
			continue
		}
		out = append(out, it)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ClosingTimestamp.After(out[b].ClosingTimestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	ReportsBuilt.WithLabelValues("history").Inc()
	return out, nil
}

// entriesUpTo - записи с TradeDate <= lastDate
func entriesUpTo(entries []models.TradeEntry, lastDate string) []models.TradeEntry {
	out := make([]models.TradeEntry, 0, len(entries))
	for _, e := range entries {
		if e.TradeDate <= lastDate {
			out = append(out, e)
		}
	}
	return out
}
