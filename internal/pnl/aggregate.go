package pnl

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/pkg/utils"
)

var hundred = decimal.NewFromInt(100)

// KeyFunc выводит календарный ключ периода из времени закрытия пары
type KeyFunc func(time.Time) string

// DayKey - ключ дня YYYY-MM-DD в зоне loc
func DayKey(loc *time.Location) KeyFunc {
	return func(t time.Time) string {
		return utils.DayKey(t, loc)
	}
}

// WeekKey - ключ недели: дата понедельника (ISO неделя)
func WeekKey(loc *time.Location) KeyFunc {
	return func(t time.Time) string {
		return utils.WeekKey(t, loc)
	}
}

// MonthKey - ключ месяца YYYY-MM
func MonthKey(loc *time.Location) KeyFunc {
	return func(t time.Time) string {
		return utils.MonthKey(t, loc)
	}
}

// DailyStats - статистика по одному периоду (дню, неделе или месяцу)
type DailyStats struct {
	Key             string          `json:"key"`
	TotalTrades     int             `json:"total_trades"` // все пары, включая нулевые
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	BreakevenTrades int             `json:"breakeven_trades"`
	GrossProfit     decimal.Decimal `json:"gross_profit"` // сумма положительных net
	GrossLoss       decimal.Decimal `json:"gross_loss"`   // сумма отрицательных net (<= 0)
	NetPnl          decimal.Decimal `json:"net_pnl"`
	WinRate         float64         `json:"win_rate"` // 0..100
}

func (s *DailyStats) add(p RealizedPair) {
	s.TotalTrades++
	s.NetPnl = s.NetPnl.Add(p.NetProfit)
	switch p.NetProfit.Sign() {
	case 1:
		s.WinningTrades++
		s.GrossProfit = s.GrossProfit.Add(p.NetProfit)
	case -1:
		s.LosingTrades++
		s.GrossLoss = s.GrossLoss.Add(p.NetProfit)
	default:
		s.BreakevenTrades++
	}
}

func (s *DailyStats) merge(o DailyStats) {
	s.TotalTrades += o.TotalTrades
	s.WinningTrades += o.WinningTrades
	s.LosingTrades += o.LosingTrades
	s.BreakevenTrades += o.BreakevenTrades
	s.GrossProfit = s.GrossProfit.Add(o.GrossProfit)
	s.GrossLoss = s.GrossLoss.Add(o.GrossLoss)
	s.NetPnl = s.NetPnl.Add(o.NetPnl)
}

func (s *DailyStats) computeWinRate() {
	s.WinRate = WinRate(s.WinningTrades, s.LosingTrades)
}

// WinRate = wins / (wins + losses) * 100, 0 при пустом знаменателе
func WinRate(wins, losses int) float64 {
	decided := wins + losses
	if decided == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(wins)).
		Div(decimal.NewFromInt(int64(decided))).
		Mul(hundred).
		Round(2).
		InexactFloat64()
}

// ComputeStats считает статистику набора пар под одним ключом
func ComputeStats(key string, pairs []RealizedPair) DailyStats {
	stats := DailyStats{Key: key}
	for _, p := range pairs {
		stats.add(p)
	}
	stats.computeWinRate()
	return stats
}

// Bucketize группирует пары по ключу периода
func Bucketize(pairs []RealizedPair, keyFn KeyFunc) map[string]DailyStats {
	buckets := make(map[string]DailyStats)
	for _, p := range pairs {
		key := keyFn(p.ClosingTimestamp)
		s := buckets[key]
		s.Key = key
		s.add(p)
		buckets[key] = s
	}
	for key, s := range buckets {
		s.computeWinRate()
		buckets[key] = s
	}
	return buckets
}

// SortedBuckets возвращает корзины по возрастанию ключа
func SortedBuckets(buckets map[string]DailyStats) []DailyStats {
	out := make([]DailyStats, 0, len(buckets))
	for _, s := range buckets {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out
}

// DayPnl - результат одного периода для best/worst
type DayPnl struct {
	Key    string          `json:"key"`
	NetPnl decimal.Decimal `json:"net_pnl"`
}

// PeriodStats - сумма нескольких DailyStats
type PeriodStats struct {
	DailyStats
	BestDay   *DayPnl      `json:"best_day,omitempty"`
	WorstDay  *DayPnl      `json:"worst_day,omitempty"`
	Breakdown []DailyStats `json:"breakdown"`
}

// AggregatePeriod суммирует статистику дней
//
// Дни просматриваются по возрастанию ключа. BestDay/WorstDay - первый
// максимальный/минимальный NetPnl среди дней, где была хотя бы одна пара.
func AggregatePeriod(days []DailyStats) PeriodStats {
	ordered := make([]DailyStats, len(days))
	copy(ordered, days)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Key < ordered[b].Key })

	period := PeriodStats{Breakdown: ordered}
	for _, d := range ordered {
		period.merge(d)
		if d.TotalTrades == 0 {
			continue
		}
		if period.BestDay == nil || d.NetPnl.GreaterThan(period.BestDay.NetPnl) {
			period.BestDay = &DayPnl{Key: d.Key, NetPnl: d.NetPnl}
		}
		if period.WorstDay == nil || d.NetPnl.LessThan(period.WorstDay.NetPnl) {
			period.WorstDay = &DayPnl{Key: d.Key, NetPnl: d.NetPnl}
		}
	}
	period.computeWinRate()
	return period
}

// PeriodStatsFor = AggregatePeriod(Bucketize(pairs, keyFn))
func PeriodStatsFor(pairs []RealizedPair, keyFn KeyFunc) PeriodStats {
	return AggregatePeriod(SortedBuckets(Bucketize(pairs, keyFn)))
}

// WinLossStats - серии и соотношение риск/прибыль
type WinLossStats struct {
	TotalTrades       int             `json:"total_trades"`
	WinningTrades     int             `json:"winning_trades"`
	LosingTrades      int             `json:"losing_trades"`
	WinRate           float64         `json:"win_rate"`
	AvgWin            decimal.Decimal `json:"avg_win"`
	AvgLoss           decimal.Decimal `json:"avg_loss"` // отрицательное
	LargestWin        decimal.Decimal `json:"largest_win"`
	LargestLoss       decimal.Decimal `json:"largest_loss"` // отрицательное
	RiskReward        float64         `json:"risk_reward"`
	MaxWinStreak      int             `json:"max_win_streak"`
	MaxLossStreak     int             `json:"max_loss_streak"`
	CurrentWinStreak  int             `json:"current_win_streak"`
	CurrentLossStreak int             `json:"current_loss_streak"`
}

// AnalyzeWinLoss считает серии побед/поражений и средние
//
// Пары стабильно сортируются по времени закрытия. Пара с нулевым net
// не прерывает и не продолжает серию.
func AnalyzeWinLoss(pairs []RealizedPair) WinLossStats {
	ordered := make([]RealizedPair, len(pairs))
	copy(ordered, pairs)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].ClosingTimestamp.Before(ordered[b].ClosingTimestamp)
	})

	stats := WinLossStats{TotalTrades: len(ordered)}
	sumWin, sumLoss := decimal.Zero, decimal.Zero

	for _, p := range ordered {
		net := p.NetProfit
		switch net.Sign() {
		case 1:
			stats.WinningTrades++
			sumWin = sumWin.Add(net)
			if net.GreaterThan(stats.LargestWin) {
				stats.LargestWin = net
			}
			stats.CurrentWinStreak++
			stats.CurrentLossStreak = 0
			if stats.CurrentWinStreak > stats.MaxWinStreak {
				stats.MaxWinStreak = stats.CurrentWinStreak
			}
		case -1:
			stats.LosingTrades++
			sumLoss = sumLoss.Add(net)
			if net.LessThan(stats.LargestLoss) {
				stats.LargestLoss = net
			}
			stats.CurrentLossStreak++
			stats.CurrentWinStreak = 0
			if stats.CurrentLossStreak > stats.MaxLossStreak {
				stats.MaxLossStreak = stats.CurrentLossStreak
			}
		}
	}

	if stats.WinningTrades > 0 {
		stats.AvgWin = sumWin.Div(decimal.NewFromInt(int64(stats.WinningTrades))).Round(2)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(stats.LosingTrades))).Round(2)
	}
	if !stats.AvgLoss.IsZero() {
		stats.RiskReward = stats.AvgWin.Div(stats.AvgLoss).Abs().Round(2).InexactFloat64()
	}
	stats.WinRate = WinRate(stats.WinningTrades, stats.LosingTrades)
	return stats
}

// FilterClosedBetween оставляет пары, закрытые в [from, to).
// Нулевая граница означает отсутствие ограничения.
func FilterClosedBetween(pairs []RealizedPair, from, to time.Time) []RealizedPair {
	out := make([]RealizedPair, 0, len(pairs))
	for _, p := range pairs {
		if !from.IsZero() && p.ClosingTimestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !p.ClosingTimestamp.Before(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}
