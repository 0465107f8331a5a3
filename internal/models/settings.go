package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidLotSize    = errors.New("lot size must be between 1 and 2147483647")
	ErrInvalidCommission = errors.New("commission per lot must be non-negative with at most 4 decimal places")
)

// InstrumentSettings - параметры контракта для расчета P&L
type InstrumentSettings struct {
	LotSize          int             `json:"lot_size" yaml:"lot_size"`                     // г для золота, кг для серебра
	CommissionPerLot decimal.Decimal `json:"commission_per_lot" yaml:"commission_per_lot"` // за каждый сматченный лот
}

// Validate проверяет параметры инструмента
func (s InstrumentSettings) Validate() error {
	if s.LotSize <= 0 || s.LotSize > MaxQuantity {
		return ErrInvalidLotSize
	}
	c := s.CommissionPerLot
	if c.IsNegative() || c.GreaterThanOrEqual(maxRate) || !c.Equal(c.Round(RateScale)) {
		return ErrInvalidCommission
	}
	return nil
}

// TradingSettings - настройки пользователя по всем инструментам
type TradingSettings struct {
	Gold      InstrumentSettings `json:"gold"`
	Silver    InstrumentSettings `json:"silver"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// For возвращает настройки инструмента
func (s TradingSettings) For(i Instrument) InstrumentSettings {
	if i == InstrumentSilver {
		return s.Silver
	}
	return s.Gold
}

// Set заменяет настройки инструмента
func (s *TradingSettings) Set(i Instrument, v InstrumentSettings) {
	if i == InstrumentSilver {
		s.Silver = v
		return
	}
	s.Gold = v
}

// DefaultTradingSettings - значения мини-контрактов MCX
func DefaultTradingSettings() TradingSettings {
	return TradingSettings{
		Gold:   InstrumentSettings{LotSize: 100, CommissionPerLot: decimal.NewFromInt(300)},
		Silver: InstrumentSettings{LotSize: 5, CommissionPerLot: decimal.NewFromInt(300)},
	}
}

// InstrumentSettingsUpdate - частичное обновление (PATCH)
type InstrumentSettingsUpdate struct {
	LotSize          *int             `json:"lot_size,omitempty"`
	CommissionPerLot *decimal.Decimal `json:"commission_per_lot,omitempty"`
}

// SettingsUpdate - запрос на изменение настроек
type SettingsUpdate struct {
	Gold   *InstrumentSettingsUpdate `json:"gold,omitempty"`
	Silver *InstrumentSettingsUpdate `json:"silver,omitempty"`
}
