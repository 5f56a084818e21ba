package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
)

// SQLiteStore implements LedgerStore as a key/value table in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the ledger database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.NewPersistenceError("open", dbPath, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewPersistenceError("open", dbPath, fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.NewPersistenceError("open", dbPath, fmt.Errorf("failed to initialize schema: %w", err))
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ledger_kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewPersistenceError("read", key, err)
	}
	return value, true, nil
}

func put(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO ledger_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return apperrors.NewPersistenceError("write", key, err)
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewPersistenceError(op, "tx", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewPersistenceError(op, "tx", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// Balance returns the stored cash balance.
func (s *SQLiteStore) Balance(ctx context.Context) (decimal.Decimal, bool, error) {
	raw, found, err := s.get(ctx, KeyBalance)
	if err != nil || !found {
		return decimal.Zero, false, err
	}
	b, err := decodeBalance(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return b, true, nil
}

// SetBalance writes the cash balance.
func (s *SQLiteStore) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	return put(ctx, s.db, KeyBalance, encodeBalance(balance))
}

// Trades returns all trades.
func (s *SQLiteStore) Trades(ctx context.Context) ([]models.Trade, error) {
	raw, _, err := s.get(ctx, KeyTrades)
	if err != nil {
		return nil, err
	}
	return decodeTrades(raw)
}

// SaveTrades replaces the trade list.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []models.Trade) error {
	raw, err := encodeJSON(KeyTrades, normalizeTrades(trades))
	if err != nil {
		return err
	}
	return put(ctx, s.db, KeyTrades, raw)
}

// Snapshots returns the P&L series.
func (s *SQLiteStore) Snapshots(ctx context.Context) ([]models.PnLSnapshot, error) {
	raw, _, err := s.get(ctx, KeySnapshots)
	if err != nil {
		return nil, err
	}
	return decodeSnapshots(raw)
}

// SaveSnapshots replaces the P&L series.
func (s *SQLiteStore) SaveSnapshots(ctx context.Context, snapshots []models.PnLSnapshot) error {
	raw, err := encodeJSON(KeySnapshots, normalizeSnapshots(snapshots))
	if err != nil {
		return err
	}
	return put(ctx, s.db, KeySnapshots, raw)
}

// SaveLedger writes trades and balance in one transaction.
func (s *SQLiteStore) SaveLedger(ctx context.Context, trades []models.Trade, balance decimal.Decimal) error {
	raw, err := encodeJSON(KeyTrades, normalizeTrades(trades))
	if err != nil {
		return err
	}
	return s.withTx(ctx, "save_ledger", func(tx *sql.Tx) error {
		if err := put(ctx, tx, KeyTrades, raw); err != nil {
			return err
		}
		return put(ctx, tx, KeyBalance, encodeBalance(balance))
	})
}

// Reset clears trades and snapshots and writes balance in one transaction.
func (s *SQLiteStore) Reset(ctx context.Context, balance decimal.Decimal) error {
	return s.withTx(ctx, "reset", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_kv WHERE key IN (?, ?)`, KeyTrades, KeySnapshots); err != nil {
			return apperrors.NewPersistenceError("reset", KeyTrades, err)
		}
		return put(ctx, tx, KeyBalance, encodeBalance(balance))
	})
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ LedgerStore = (*SQLiteStore)(nil)
