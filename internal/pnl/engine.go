// Package pnl - FIFO сопоставление сделок и расчет реализованного P&L.
//
// Пакет чистый: без I/O, без глобального состояния, входные записи
// не изменяются. Повторный вызов на тех же данных дает тот же результат.
package pnl

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

// SkipReason - причина пропуска записи движком
type SkipReason string

const (
	SkipNonPositiveQuantity SkipReason = "non_positive_quantity"
	SkipAmbiguousSide       SkipReason = "ambiguous_side"
	SkipNonPositiveRate     SkipReason = "non_positive_rate"
)

// SkippedEntry - запись, не участвовавшая в расчете
type SkippedEntry struct {
	EntryID string     `json:"entry_id"`
	Reason  SkipReason `json:"reason"`
}

// RealizedPair - результат одного сопоставления покупки и продажи
type RealizedPair struct {
	Instrument       models.Instrument `json:"instrument"`
	BuyRate          decimal.Decimal   `json:"buy_rate"`
	SellRate         decimal.Decimal   `json:"sell_rate"`
	MatchedQuantity  int               `json:"matched_quantity"`
	GrossProfit      decimal.Decimal   `json:"gross_profit"`
	Commission       decimal.Decimal   `json:"commission"`
	NetProfit        decimal.Decimal   `json:"net_profit"`
	ClosingTimestamp time.Time         `json:"closing_timestamp"`
	ClosedSide       models.Side       `json:"closed_side"`      // buy = закрыт лонг, sell = закрыт шорт
	ClosingEntryID   string            `json:"closing_entry_id"` // запись, завершившая сопоставление
}

// OpenPositionSet - остаточные очереди инструмента
type OpenPositionSet struct {
	Longs  []Position `json:"longs"`
	Shorts []Position `json:"shorts"`
}

// TotalLong - сумма лотов в лонгах
func (s OpenPositionSet) TotalLong() int {
	return sumQuantity(s.Longs)
}

// TotalShort - сумма лотов в шортах
func (s OpenPositionSet) TotalShort() int {
	return sumQuantity(s.Shorts)
}

// Net - чистая позиция (лонг минус шорт)
func (s OpenPositionSet) Net() int {
	return s.TotalLong() - s.TotalShort()
}

// IsFlat - нет открытых лотов
func (s OpenPositionSet) IsFlat() bool {
	return len(s.Longs) == 0 && len(s.Shorts) == 0
}

func sumQuantity(ps []Position) int {
	total := 0
	for _, p := range ps {
		total += p.Quantity
	}
	return total
}

// Totals - накопленные итоги по инструменту
type Totals struct {
	RealizedPL   decimal.Decimal `json:"realized_pl"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	Commission   decimal.Decimal `json:"commission"`
	PairCount    int             `json:"pair_count"`
	SkippedCount int             `json:"skipped_count"`
}

// MatchResult - результат MatchInstrument
type MatchResult struct {
	Instrument models.Instrument `json:"instrument"`
	Pairs      []RealizedPair    `json:"pairs"`
	Open       OpenPositionSet   `json:"open"`
	Totals     Totals            `json:"totals"`
	Skipped    []SkippedEntry    `json:"skipped,omitempty"`
}

// Option - настройка движка
type Option func(*options)

type options struct {
	exemptSettlementLegs bool
}

// WithSettlementLegExemption освобождает от комиссии также пары, в которых
// закрываемый лот был открыт записью расчета. По умолчанию комиссия
// не берется только когда закрывающая запись - запись расчета.
func WithSettlementLegExemption() Option {
	return func(o *options) {
		o.exemptSettlementLegs = true
	}
}

// Multiplier переводит ставку за единицу котировки в деньги за лот:
// золото lotSize/10, серебро lotSize/1.
func Multiplier(instrument models.Instrument, lotSize int) decimal.Decimal {
	return decimal.NewFromInt(int64(lotSize)).Div(decimal.NewFromInt(instrument.PricingUnit()))
}

// MatchInstrument сопоставляет записи одного инструмента по FIFO
//
// Алгоритм:
//  1. Записи других инструментов отбрасываются, оставшиеся стабильно
//     сортируются по OccurredAt (равные сохраняют входной порядок).
//  2. Покупка закрывает шорты от старых к новым, продажа - лонги.
//     Каждое частичное исполнение дает отдельную RealizedPair.
//  3. Несопоставленный остаток открывает лот на стороне записи.
//
// Записи с количеством <= 0, неоднозначной стороной или ставкой <= 0
// пропускаются с причиной в Skipped, расчет не прерывается.
//
// Комиссия пары равна нулю, только если закрывающая запись - запись
// расчета. Пара, где запись расчета лишь открыла лот, освобождается
// от комиссии только с WithSettlementLegExemption.
func MatchInstrument(instrument models.Instrument, entries []models.TradeEntry, settings models.InstrumentSettings, opts ...Option) MatchResult {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ordered := make([]*models.TradeEntry, 0, len(entries))
	for i := range entries {
		if entries[i].Instrument == instrument {
			ordered = append(ordered, &entries[i])
		}
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].OccurredAt.Before(ordered[b].OccurredAt)
	})

	result := MatchResult{
		Instrument: instrument,
		Pairs:      []RealizedPair{},
	}
	multiplier := Multiplier(instrument, settings.LotSize)
	var longs, shorts PositionQueue

	for _, entry := range ordered {
		side, ok := entry.Side()
		switch {
		case entry.Quantity <= 0:
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.ID, Reason: SkipNonPositiveQuantity})
			continue
		case !ok:
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.ID, Reason: SkipAmbiguousSide})
			continue
		case !entry.Rate().IsPositive():
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.ID, Reason: SkipNonPositiveRate})
			continue
		}

		rate := entry.Rate()
		opposite, own := &shorts, &longs
		if side == models.SideSell {
			opposite, own = &longs, &shorts
		}

		remaining := entry.Quantity
		for remaining > 0 && opposite.Len() > 0 {
			resting, matched := opposite.ConsumeFromFirst(remaining)
			remaining -= matched

			pair := RealizedPair{
				Instrument:       instrument,
				MatchedQuantity:  matched,
				ClosingTimestamp: entry.OccurredAt,
				ClosingEntryID:   entry.ID,
			}
			if side == models.SideBuy {
				pair.BuyRate, pair.SellRate = rate, resting.Rate
				pair.ClosedSide = models.SideSell
			} else {
				pair.BuyRate, pair.SellRate = resting.Rate, rate
				pair.ClosedSide = models.SideBuy
			}

			qty := decimal.NewFromInt(int64(matched))
			pair.GrossProfit = pair.SellRate.Sub(pair.BuyRate).Mul(multiplier).Mul(qty)
			pair.Commission = decimal.Zero
			if !entry.IsSettlement && !(o.exemptSettlementLegs && resting.Settlement) {
				pair.Commission = settings.CommissionPerLot.Mul(qty)
			}
			pair.NetProfit = pair.GrossProfit.Sub(pair.Commission)

			result.Pairs = append(result.Pairs, pair)
			result.Totals.RealizedPL = result.Totals.RealizedPL.Add(pair.NetProfit)
			result.Totals.GrossProfit = result.Totals.GrossProfit.Add(pair.GrossProfit)
			result.Totals.Commission = result.Totals.Commission.Add(pair.Commission)
		}

		if remaining > 0 {
			own.Append(Position{Rate: rate, Quantity: remaining, Settlement: entry.IsSettlement})
		}
	}

	result.Open = OpenPositionSet{Longs: longs.Positions(), Shorts: shorts.Positions()}
	result.Totals.PairCount = len(result.Pairs)
	result.Totals.SkippedCount = len(result.Skipped)
	return result
}

// MatchAll запускает MatchInstrument по всем инструментам
func MatchAll(entries []models.TradeEntry, settings models.TradingSettings, opts ...Option) map[models.Instrument]MatchResult {
	out := make(map[models.Instrument]MatchResult, len(models.Instruments))
	for _, inst := range models.Instruments {
		out[inst] = MatchInstrument(inst, entries, settings.For(inst), opts...)
	}
	return out
}

// CombinedPairs объединяет пары нескольких инструментов в порядке закрытия
func CombinedPairs(results map[models.Instrument]MatchResult) []RealizedPair {
	var pairs []RealizedPair
	for _, inst := range models.Instruments {
		pairs = append(pairs, results[inst].Pairs...)
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].ClosingTimestamp.Before(pairs[b].ClosingTimestamp)
	})
	return pairs
}
