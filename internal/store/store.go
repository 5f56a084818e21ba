// Package store provides ledger persistence implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polypaper/internal/config"
	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
)

// Ledger keys. Each is independently readable and writable.
const (
	KeyBalance   = "balance"
	KeyTrades    = "trades"
	KeySnapshots = "pnl_history"
)

// LedgerStore persists the cash balance, the trade list and the P&L snapshot series.
// All failures are reported as *errors.PersistenceError.
type LedgerStore interface {
	// Balance returns the stored cash balance. found is false when no balance was ever written.
	Balance(ctx context.Context) (balance decimal.Decimal, found bool, err error)
	SetBalance(ctx context.Context, balance decimal.Decimal) error

	// Trades returns all trades in creation order.
	Trades(ctx context.Context) ([]models.Trade, error)
	SaveTrades(ctx context.Context, trades []models.Trade) error

	// Snapshots returns the P&L series in ascending date order.
	Snapshots(ctx context.Context) ([]models.PnLSnapshot, error)
	SaveSnapshots(ctx context.Context, snapshots []models.PnLSnapshot) error

	// SaveLedger writes the trade list and the balance together.
	SaveLedger(ctx context.Context, trades []models.Trade, balance decimal.Decimal) error
	// Reset clears trades and snapshots and writes balance, all at once.
	Reset(ctx context.Context, balance decimal.Decimal) error

	Close() error
}

// Open creates the ledger store selected by configuration.
func Open(cfg *config.Config, logger zerolog.Logger) (LedgerStore, error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Ledger.DBPath)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("backend", "sqlite").Str("path", cfg.Ledger.DBPath).Msg("Ledger store opened")
		return s, nil
	case "redis":
		s, err := NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("backend", "redis").Str("addr", cfg.Redis.Addr).Msg("Ledger store opened")
		return s, nil
	case "memory":
		logger.Warn().Msg("Using in-memory ledger store; state is lost on exit")
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: unknown ledger backend %q", apperrors.ErrConfigInvalid, cfg.Ledger.Backend)
}

func encodeBalance(b decimal.Decimal) string {
	return b.String()
}

func decodeBalance(raw string) (decimal.Decimal, error) {
	b, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewPersistenceError("decode", KeyBalance, err)
	}
	return b, nil
}

func encodeJSON(key string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.NewPersistenceError("encode", key, err)
	}
	return string(data), nil
}

func decodeTrades(raw string) ([]models.Trade, error) {
	trades := []models.Trade{}
	if raw == "" {
		return trades, nil
	}
	if err := json.Unmarshal([]byte(raw), &trades); err != nil {
		return nil, apperrors.NewPersistenceError("decode", KeyTrades, err)
	}
	return trades, nil
}

func decodeSnapshots(raw string) ([]models.PnLSnapshot, error) {
	snapshots := []models.PnLSnapshot{}
	if raw == "" {
		return snapshots, nil
	}
	if err := json.Unmarshal([]byte(raw), &snapshots); err != nil {
		return nil, apperrors.NewPersistenceError("decode", KeySnapshots, err)
	}
	return snapshots, nil
}

func normalizeTrades(trades []models.Trade) []models.Trade {
	if trades == nil {
		return []models.Trade{}
	}
	return trades
}

func normalizeSnapshots(snapshots []models.PnLSnapshot) []models.PnLSnapshot {
	if snapshots == nil {
		return []models.PnLSnapshot{}
	}
	return snapshots
}
