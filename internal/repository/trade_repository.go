package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound    = errors.New("trade entry not found")
	ErrSettlementExists = errors.New("settlement already recorded for this date")
)

// pgUniqueViolation - SQLSTATE нарушения уникального индекса
const pgUniqueViolation = "23505"

const tradeColumns = `id, user_id, instrument, buy_rate, sell_rate, quantity, occurred_at,
		trade_date, is_settlement, settlement_kind, settlement_date, note, created_at`

// TradeRepository - работа с таблицей trade_entries
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// execer - общее у *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Create сохраняет запись и присваивает ей ID
func (r *TradeRepository) Create(ctx context.Context, entry *models.TradeEntry) error {
	if err := insertTrade(ctx, r.db, entry); err != nil {
		if isUniqueViolation(err) {
			return ErrSettlementExists
		}
		return err
	}
	return nil
}

// CreateBatch атомарно сохраняет несколько записей (одна транзакция).
// Используется расчетом: все CLOSE/OPEN записи пишутся вместе или никакие.
func (r *TradeRepository) CreateBatch(ctx context.Context, entries []models.TradeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for i := range entries {
		if err := insertTrade(ctx, tx, &entries[i]); err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return ErrSettlementExists
			}
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrSettlementExists
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertTrade(ctx context.Context, ex execer, entry *models.TradeEntry) error {
	query := `
		INSERT INTO trade_entries (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()

	_, err := ex.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.Instrument),
		nullDecimal(entry.BuyRate),
		nullDecimal(entry.SellRate),
		entry.Quantity,
		entry.OccurredAt,
		entry.TradeDate,
		entry.IsSettlement,
		nullString(string(entry.SettlementKind)),
		nullString(entry.SettlementDate),
		entry.Note,
		entry.CreatedAt,
	)
	return err
}

// GetByID возвращает запись пользователя по ID
func (r *TradeRepository) GetByID(ctx context.Context, userID, id string) (*models.TradeEntry, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_entries WHERE id = $1 AND user_id = $2`

	entry, err := scanTrade(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return entry, nil
}

// Update изменяет обычную запись. Записи расчета не изменяются.
func (r *TradeRepository) Update(ctx context.Context, entry *models.TradeEntry) error {
	query := `
		UPDATE trade_entries
		SET instrument = $1, buy_rate = $2, sell_rate = $3, quantity = $4,
			occurred_at = $5, trade_date = $6, note = $7
		WHERE id = $8 AND user_id = $9 AND NOT is_settlement`

	result, err := r.db.ExecContext(ctx, query,
		string(entry.Instrument),
		nullDecimal(entry.BuyRate),
		nullDecimal(entry.SellRate),
		entry.Quantity,
		entry.OccurredAt,
		entry.TradeDate,
		entry.Note,
		entry.ID,
		entry.UserID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete удаляет запись пользователя
func (r *TradeRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trade_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// List возвращает записи пользователя по фильтру в хронологическом порядке
func (r *TradeRepository) List(ctx context.Context, userID string, filter models.TradeFilter) ([]models.TradeEntry, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Instrument != "" {
		args = append(args, string(filter.Instrument))
		where = append(where, fmt.Sprintf("instrument = $%d", len(args)))
	}
	if filter.FromDate != "" {
		args = append(args, filter.FromDate)
		where = append(where, fmt.Sprintf("trade_date >= $%d", len(args)))
	}
	if filter.ToDate != "" {
		args = append(args, filter.ToDate)
		where = append(where, fmt.Sprintf("trade_date <= $%d", len(args)))
	}

	query := `SELECT ` + tradeColumns + ` FROM trade_entries WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY occurred_at, created_at`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.TradeEntry{}
	for rows.Next() {
		entry, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// CountByTradeDate считает обычные (не расчетные) записи с TradeDate в [from, to]
func (r *TradeRepository) CountByTradeDate(ctx context.Context, userID, from, to string) (int, error) {
	query := `
		SELECT COUNT(*) FROM trade_entries
		WHERE user_id = $1 AND trade_date >= $2 AND trade_date <= $3 AND NOT is_settlement`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SettlementExists проверяет, записан ли CLOSE расчета инструмента за дату
func (r *TradeRepository) SettlementExists(ctx context.Context, userID string, instrument models.Instrument, date string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM trade_entries
			WHERE user_id = $1 AND instrument = $2 AND settlement_date = $3
				AND is_settlement AND settlement_kind = $4
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, string(instrument), date, string(models.SettlementClose)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ============================================================
// Вспомогательные функции
// ============================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.TradeEntry, error) {
	var (
		entry          models.TradeEntry
		instrument     string
		buyRate        decimal.NullDecimal
		sellRate       decimal.NullDecimal
		quantity       sql.NullInt64
		settlementKind sql.NullString
		settlementDate sql.NullString
	)

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&instrument,
		&buyRate,
		&sellRate,
		&quantity,
		&entry.OccurredAt,
		&entry.TradeDate,
		&entry.IsSettlement,
		&settlementKind,
		&settlementDate,
		&entry.Note,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Instrument = models.Instrument(instrument)
	if buyRate.Valid {
		entry.BuyRate = buyRate.Decimal
	}
	if sellRate.Valid {
		entry.SellRate = sellRate.Decimal
	}
	// старые записи без количества считаются одним лотом
	entry.Quantity = 1
	if quantity.Valid {
		entry.Quantity = int(quantity.Int64)
	}
	entry.SettlementKind = models.SettlementKind(settlementKind.String)
	entry.SettlementDate = settlementDate.String

	return &entry, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTradeNotFound
	}
	return nil
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: !d.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
