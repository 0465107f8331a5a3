package pnl

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

// ErrNothingToSettle - ни по одному инструменту нет открытой позиции с валидной ставкой
var ErrNothingToSettle = errors.New("no open positions to settle")

// reopenOffset - насколько запись OPEN позже записи CLOSE
const reopenOffset = time.Millisecond

// SettlementPlan - записи, которые нужно атомарно записать в хранилище
type SettlementPlan struct {
	Date         time.Time           `json:"date"` // пятница расчета, начало дня
	CloseEntries []models.TradeEntry `json:"close_entries"`
	OpenEntries  []models.TradeEntry `json:"open_entries"`
	Instruments  []models.Instrument `json:"instruments"`
}

// Entries возвращает все записи плана: сначала CLOSE, затем OPEN
func (p SettlementPlan) Entries() []models.TradeEntry {
	out := make([]models.TradeEntry, 0, len(p.CloseEntries)+len(p.OpenEntries))
	out = append(out, p.CloseEntries...)
	return append(out, p.OpenEntries...)
}

// Settle строит записи закрытия и переоткрытия позиций
//
// Для каждого инструмента с открытой позицией и ставкой > 0:
//   - лонги: CLOSE = продажа по ставке на весь объем, OPEN = покупка
//   - шорты: CLOSE = покупка, OPEN = продажа
//
// CLOSE датируется концом дня расчета (23:59:59), OPEN - на 1 мс позже,
// но с TradeDate следующего понедельника, чтобы попасть в отчет
// следующей недели. Все записи помечены IsSettlement и не платят комиссию.
//
// Функция чистая и не проверяет повторный расчет: вызывающий
// обязан убедиться, что CLOSE за эту дату еще не записан.
func Settle(open map[models.Instrument]OpenPositionSet, date time.Time, rates map[models.Instrument]decimal.Decimal, loc *time.Location) (SettlementPlan, error) {
	day := utils.DayStart(date, loc)
	closeAt := utils.DayEnd(day, loc).Truncate(time.Second)
	reopenAt := closeAt.Add(reopenOffset)

	settlementDate := day.Format(models.DateLayout)
	closeDate := settlementDate
	reopenDate := utils.NextMonday(day, loc).Format(models.DateLayout)

	plan := SettlementPlan{Date: day}

	for _, inst := range models.Instruments {
		set, ok := open[inst]
		if !ok || set.IsFlat() {
			continue
		}
		rate, ok := rates[inst]
		if !ok || !rate.IsPositive() {
			continue
		}

		legs := []struct {
			qty       int
			closeSide models.Side
		}{
			{set.TotalLong(), models.SideSell},
			{set.TotalShort(), models.SideBuy},
		}

		settled := false
		for _, leg := range legs {
			if leg.qty <= 0 {
				continue
			}
			reopenSide := models.SideBuy
			if leg.closeSide == models.SideBuy {
				reopenSide = models.SideSell
			}

			plan.CloseEntries = append(plan.CloseEntries,
				settlementEntry(inst, leg.closeSide, rate, leg.qty, closeAt, closeDate, settlementDate, models.SettlementClose))
			plan.OpenEntries = append(plan.OpenEntries,
				settlementEntry(inst, reopenSide, rate, leg.qty, reopenAt, reopenDate, settlementDate, models.SettlementOpen))
			settled = true
		}
		if settled {
			plan.Instruments = append(plan.Instruments, inst)
		}
	}

	if len(plan.Instruments) == 0 {
		return SettlementPlan{}, ErrNothingToSettle
	}
	return plan, nil
}

func settlementEntry(inst models.Instrument, side models.Side, rate decimal.Decimal, qty int, at time.Time, tradeDate, settlementDate string, kind models.SettlementKind) models.TradeEntry {
	e := models.TradeEntry{
		Instrument:     inst,
		Quantity:       qty,
		OccurredAt:     at,
		TradeDate:      tradeDate,
		IsSettlement:   true,
		SettlementKind: kind,
		SettlementDate: settlementDate,
		Note:           "weekly settlement " + string(kind),
	}
	if side == models.SideBuy {
		e.BuyRate = rate
	} else {
		e.SellRate = rate
	}
	return e
}
