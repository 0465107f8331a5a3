package repository

import (
	"context"
	"database/sql"
	"time"

	"tradejournal/internal/models"
)

// SettingsRepository - работа с таблицей instrument_settings
//
// Строка хранится только для инструментов, которые пользователь
// изменял; для остальных возвращаются значения по умолчанию из конфигурации.
type SettingsRepository struct {
	db       *sql.DB
	defaults models.TradingSettings
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB, defaults models.TradingSettings) *SettingsRepository {
	return &SettingsRepository{db: db, defaults: defaults}
}

// Get возвращает настройки пользователя поверх значений по умолчанию
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*models.TradingSettings, error) {
	query := `
		SELECT instrument, lot_size, commission_per_lot, updated_at
		FROM instrument_settings
		WHERE user_id = $1`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := r.defaults
	for rows.Next() {
		var (
			instrument string
			s          models.InstrumentSettings
			updatedAt  time.Time
		)
		if err := rows.Scan(&instrument, &s.LotSize, &s.CommissionPerLot, &updatedAt); err != nil {
			return nil, err
		}

		inst := models.Instrument(instrument)
		if !inst.Valid() {
			continue
		}
		settings.Set(inst, s)
		if updatedAt.After(settings.UpdatedAt) {
			settings.UpdatedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Upsert сохраняет настройки инструмента
func (r *SettingsRepository) Upsert(ctx context.Context, userID string, instrument models.Instrument, s models.InstrumentSettings) error {
	query := `
		INSERT INTO instrument_settings (user_id, instrument, lot_size, commission_per_lot, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, instrument) DO UPDATE
		SET lot_size = EXCLUDED.lot_size,
			commission_per_lot = EXCLUDED.commission_per_lot,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, userID, string(instrument), s.LotSize, s.CommissionPerLot, time.Now())
	return err
}

// Reset удаляет пользовательские настройки (возврат к значениям по умолчанию)
func (r *SettingsRepository) Reset(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM instrument_settings WHERE user_id = $1`, userID)
	return err
}

// Defaults возвращает значения по умолчанию
func (r *SettingsRepository) Defaults() models.TradingSettings {
	return r.defaults
}
