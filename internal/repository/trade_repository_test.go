package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

var tradeRowColumns = []string{
	"id", "user_id", "instrument", "buy_rate", "sell_rate", "quantity", "occurred_at",
	"trade_date", "is_settlement", "settlement_kind", "settlement_date", "note", "created_at",
}

// ============================================================
// TradeRepository Tests
// ============================================================

func TestNewTradeRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTradeRepository(db)
	if repo == nil {
		t.Fatal("NewTradeRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestTradeRepositoryCreate(t *testing.T) {
	occurred := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO trade_entries`).
					WithArgs(sqlmock.AnyArg(), "user-1", "gold", "50000", nil, 2, occurred, "2024-01-15",
						false, nil, nil, "", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO trade_entries`).
					WillReturnError(errors.New("database error"))
			},
			expectError: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			entry := &models.TradeEntry{
				UserID:     "user-1",
				Instrument: models.InstrumentGold,
				BuyRate:    decimal.NewFromInt(50000),
				Quantity:   2,
				OccurredAt: occurred,
				TradeDate:  "2024-01-15",
			}

			repo := NewTradeRepository(db)
			err = repo.Create(context.Background(), entry)

			if tt.expectError != nil {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if entry.ID == "" {
					t.Error("expected ID to be assigned")
				}
				if entry.CreatedAt.IsZero() {
					t.Error("expected CreatedAt to be set")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryGetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
		check       func(t *testing.T, e *models.TradeEntry)
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(tradeRowColumns).
					AddRow("t-1", "user-1", "silver", nil, "72000.5", 3, now, "2024-01-15", false, nil, nil, "scalp", now)
				mock.ExpectQuery(`SELECT .+ FROM trade_entries WHERE id = \$1 AND user_id = \$2`).
					WithArgs("t-1", "user-1").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, e *models.TradeEntry) {
				if e.Instrument != models.InstrumentSilver {
					t.Errorf("Instrument = %s", e.Instrument)
				}
				if side, ok := e.Side(); !ok || side != models.SideSell {
					t.Errorf("Side() = %s, %v", side, ok)
				}
				if e.SellRate.String() != "72000.5" {
					t.Errorf("SellRate = %s", e.SellRate)
				}
				if e.Quantity != 3 || e.Note != "scalp" {
					t.Errorf("unexpected entry: %+v", e)
				}
			},
		},
		{
			name: "legacy entry without quantity",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(tradeRowColumns).
					AddRow("t-2", "user-1", "gold", "50000", nil, nil, now, "2024-01-15", true, "close", "2024-01-19", "", now)
				mock.ExpectQuery(`SELECT .+ FROM trade_entries`).
					WithArgs("t-2", "user-1").
					WillReturnRows(rows)
			},
			check: func(t *testing.T, e *models.TradeEntry) {
				if e.Quantity != 1 {
					t.Errorf("Quantity = %d, want default 1", e.Quantity)
				}
				if e.SettlementKind != models.SettlementClose || e.SettlementDate != "2024-01-19" {
					t.Errorf("settlement fields = %s/%s", e.SettlementKind, e.SettlementDate)
				}
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM trade_entries`).
					WithArgs("missing", "user-1").
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrTradeNotFound,
		},
	}

	ids := map[string]string{"success": "t-1", "legacy entry without quantity": "t-2", "not found": "missing"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			entry, err := repo.GetByID(context.Background(), "user-1", ids[tt.name])

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				tt.check(t, entry)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(tradeRowColumns).
		AddRow("t-1", "user-1", "gold", "50000", nil, 1, now, "2024-01-15", false, nil, nil, "", now).
		AddRow("t-2", "user-1", "gold", nil, "52000", 1, now.Add(time.Hour), "2024-01-16", false, nil, nil, "", now)

	mock.ExpectQuery(`SELECT .+ FROM trade_entries WHERE user_id = \$1 AND instrument = \$2 AND trade_date >= \$3 AND trade_date <= \$4 ORDER BY occurred_at, created_at LIMIT \$5`).
		WithArgs("user-1", "gold", "2024-01-15", "2024-01-21", 50).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	entries, err := repo.List(context.Background(), "user-1", models.TradeFilter{
		Instrument: models.InstrumentGold,
		FromDate:   "2024-01-15",
		ToDate:     "2024-01-21",
		Limit:      50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].ID != "t-2" {
		t.Errorf("entries[1].ID = %s", entries[1].ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryListNoFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM trade_entries WHERE user_id = \$1 ORDER BY`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(tradeRowColumns))

	repo := NewTradeRepository(db)
	entries, err := repo.List(context.Background(), "user-1", models.TradeFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryUpdate(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		expectError error
	}{
		{"success", 1, nil},
		{"not found or settlement entry", 0, ErrTradeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE trade_entries .+ WHERE id = \$8 AND user_id = \$9 AND NOT is_settlement`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := NewTradeRepository(db)
			err = repo.Update(context.Background(), &models.TradeEntry{
				ID:         "t-1",
				UserID:     "user-1",
				Instrument: models.InstrumentGold,
				BuyRate:    decimal.NewFromInt(50000),
				Quantity:   1,
			})

			if !errors.Is(err, tt.expectError) {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM trade_entries WHERE id = \$1 AND user_id = \$2`).
		WithArgs("t-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM trade_entries`).
		WithArgs("t-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTradeRepository(db)
	if err := repo.Delete(context.Background(), "user-1", "t-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := repo.Delete(context.Background(), "user-1", "t-1"); !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("expected ErrTradeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryCountByTradeDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM trade_entries`).
		WithArgs("user-1", "2024-01-15", "2024-01-21").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	repo := NewTradeRepository(db)
	count, err := repo.CountByTradeDate(context.Background(), "user-1", "2024-01-15", "2024-01-21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositorySettlementExists(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"exists", true},
		{"absent", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs("user-1", "gold", "2024-01-19", "close").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			repo := NewTradeRepository(db)
			got, err := repo.SettlementExists(context.Background(), "user-1", models.InstrumentGold, "2024-01-19")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.exists {
				t.Errorf("SettlementExists() = %v, want %v", got, tt.exists)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryCreateBatch(t *testing.T) {
	entries := func() []models.TradeEntry {
		return []models.TradeEntry{
			{UserID: "user-1", Instrument: models.InstrumentGold, SellRate: decimal.NewFromInt(51000), Quantity: 2,
				IsSettlement: true, SettlementKind: models.SettlementClose, SettlementDate: "2024-01-19", TradeDate: "2024-01-19"},
			{UserID: "user-1", Instrument: models.InstrumentGold, BuyRate: decimal.NewFromInt(51000), Quantity: 2,
				IsSettlement: true, SettlementKind: models.SettlementOpen, SettlementDate: "2024-01-19", TradeDate: "2024-01-22"},
		}
	}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "commits all entries",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO trade_entries`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO trade_entries`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "unique violation rolls back",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO trade_entries`).WillReturnError(&pq.Error{Code: pgUniqueViolation})
				mock.ExpectRollback()
			},
			expectError: ErrSettlementExists,
		},
		{
			name: "second insert fails",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO trade_entries`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO trade_entries`).WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectError: errors.New("insert entry 1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			batch := entries()
			repo := NewTradeRepository(db)
			err = repo.CreateBatch(context.Background(), batch)

			switch {
			case tt.expectError == nil:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				for _, e := range batch {
					if e.ID == "" {
						t.Error("expected ID to be assigned to every entry")
					}
				}
			case errors.Is(tt.expectError, ErrSettlementExists):
				if !errors.Is(err, ErrSettlementExists) {
					t.Errorf("expected ErrSettlementExists, got %v", err)
				}
			default:
				if err == nil {
					t.Error("expected error, got nil")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryCreateBatchEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTradeRepository(db)
	if err := repo.CreateBatch(context.Background(), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	for range schemaStatements {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMigrateFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS trade_entries`).WillReturnError(errors.New("permission denied"))

	if err := Migrate(context.Background(), db); err == nil {
		t.Error("expected error, got nil")
	}
}
