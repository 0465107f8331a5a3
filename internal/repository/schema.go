package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements - DDL журнала. Идемпотентны (IF NOT EXISTS).
//
// quantity допускает NULL для старых записей без количества,
// такие записи читаются как 1 лот.
// Частичный уникальный индекс по записям расчета не дает записать
// расчет за одну пятницу дважды даже при гонке двух запросов.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trade_entries (
		id              UUID PRIMARY KEY,
		user_id         VARCHAR(128) NOT NULL,
		instrument      VARCHAR(16)  NOT NULL,
		buy_rate        NUMERIC(18,4),
		sell_rate       NUMERIC(18,4),
		quantity        INTEGER,
		occurred_at     TIMESTAMPTZ  NOT NULL,
		trade_date      VARCHAR(10)  NOT NULL,
		is_settlement   BOOLEAN      NOT NULL DEFAULT FALSE,
		settlement_kind VARCHAR(8),
		settlement_date VARCHAR(10),
		note            TEXT         NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_entries_user_date
		ON trade_entries (user_id, trade_date)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_entries_user_occurred
		ON trade_entries (user_id, instrument, occurred_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_trade_entries_settlement
		ON trade_entries (user_id, instrument, settlement_date, settlement_kind)
		WHERE is_settlement`,
	`CREATE TABLE IF NOT EXISTS instrument_settings (
		user_id            VARCHAR(128)  NOT NULL,
		instrument         VARCHAR(16)   NOT NULL,
		lot_size           INTEGER       NOT NULL,
		commission_per_lot NUMERIC(18,4) NOT NULL,
		updated_at         TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, instrument)
	)`,
}

// Migrate создает таблицы журнала
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
