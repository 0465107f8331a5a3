package models

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument - торгуемый инструмент (мини-контракт)
type Instrument string

const (
	InstrumentGold   Instrument = "gold"
	InstrumentSilver Instrument = "silver"
)

// Instruments - все поддерживаемые инструменты в порядке отображения
var Instruments = []Instrument{InstrumentGold, InstrumentSilver}

// Valid проверяет что инструмент поддерживается
func (i Instrument) Valid() bool {
	return i == InstrumentGold || i == InstrumentSilver
}

// DisplayName возвращает имя для отчетов
func (i Instrument) DisplayName() string {
	switch i {
	case InstrumentGold:
		return "Gold Mini"
	case InstrumentSilver:
		return "Silver Mini"
	default:
		return string(i)
	}
}

// PricingUnit - сколько единиц массы покрывает котировка.
// Золото котируется за 10 г, серебро за 1 кг.
func (i Instrument) PricingUnit() int64 {
	if i == InstrumentGold {
		return 10
	}
	return 1
}

// Side - направление записи
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SettlementKind - тип служебной записи расчета
type SettlementKind string

const (
	SettlementNone  SettlementKind = ""
	SettlementClose SettlementKind = "close"
	SettlementOpen  SettlementKind = "open"
)

// DateLayout - формат TradeDate и SettlementDate
const DateLayout = "2006-01-02"

// Границы значений по типам колонок: NUMERIC(18,4) и INTEGER
const (
	RateScale   = 4
	MaxQuantity = math.MaxInt32
)

// maxRate - первое значение, не помещающееся в NUMERIC(18,4)
var maxRate = decimal.New(1, 18-RateScale)

// Ошибки валидации записи
var (
	ErrInvalidInstrument = errors.New("instrument must be gold or silver")
	ErrAmbiguousSide     = errors.New("exactly one of buy_rate or sell_rate must be set")
	ErrInvalidRate       = errors.New("rate must be positive and below 10^14")
	ErrRatePrecision     = errors.New("rate must have at most 4 decimal places")
	ErrInvalidQuantity   = errors.New("quantity must be a positive number of lots")
	ErrQuantityTooLarge  = errors.New("quantity exceeds 2147483647 lots")
)

// ValidateRate проверяет ставку сделки или расчета
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() || rate.GreaterThanOrEqual(maxRate) {
		return ErrInvalidRate
	}
	if !rate.Equal(rate.Round(RateScale)) {
		return ErrRatePrecision
	}
	return nil
}

// TradeEntry - одна записанная сделка пользователя
type TradeEntry struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Instrument     Instrument      `json:"instrument" db:"instrument"`
	BuyRate        decimal.Decimal `json:"buy_rate" db:"buy_rate"`   // 0 для продажи
	SellRate       decimal.Decimal `json:"sell_rate" db:"sell_rate"` // 0 для покупки
	Quantity       int             `json:"quantity" db:"quantity"`   // лоты
	OccurredAt     time.Time       `json:"occurred_at" db:"occurred_at"`
	TradeDate      string          `json:"trade_date" db:"trade_date"` // отчетная дата YYYY-MM-DD
	IsSettlement   bool            `json:"is_settlement" db:"is_settlement"`
	SettlementKind SettlementKind  `json:"settlement_kind,omitempty" db:"settlement_kind"`
	SettlementDate string          `json:"settlement_date,omitempty" db:"settlement_date"` // пятница расчета
	Note           string          `json:"note,omitempty" db:"note"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Side определяет направление по ставкам.
// ok=false если заданы обе ставки или ни одной.
func (t *TradeEntry) Side() (side Side, ok bool) {
	hasBuy := !t.BuyRate.IsZero()
	hasSell := !t.SellRate.IsZero()
	switch {
	case hasBuy && !hasSell:
		return SideBuy, true
	case hasSell && !hasBuy:
		return SideSell, true
	default:
		return "", false
	}
}

// Rate возвращает ставку стороны записи
func (t *TradeEntry) Rate() decimal.Decimal {
	if side, ok := t.Side(); ok && side == SideSell {
		return t.SellRate
	}
	return t.BuyRate
}

// Validate проверяет запись перед сохранением
func (t *TradeEntry) Validate() error {
	if !t.Instrument.Valid() {
		return ErrInvalidInstrument
	}
	if _, ok := t.Side(); !ok {
		return ErrAmbiguousSide
	}
	if err := ValidateRate(t.Rate()); err != nil {
		return err
	}
	if t.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if t.Quantity > MaxQuantity {
		return ErrQuantityTooLarge
	}
	return nil
}

// TradeFilter - фильтр выборки записей
type TradeFilter struct {
	Instrument Instrument // пусто = все
	FromDate   string     // TradeDate >= FromDate, пусто = без ограничения
	ToDate     string     // TradeDate <= ToDate
	Limit      int
}
