package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"polypaper/internal/config"
	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
)

// RedisStore implements LedgerStore with three string keys under a common prefix.
// Multi-key writes go through MULTI/EXEC.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, apperrors.NewPersistenceError("open", cfg.Addr, fmt.Errorf("redis ping: %w", err))
	}
	return NewRedisStoreWithClient(rdb, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) get(ctx context.Context, name string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewPersistenceError("read", name, err)
	}
	return val, true, nil
}

func (s *RedisStore) set(ctx context.Context, name, value string) error {
	if err := s.rdb.Set(ctx, s.key(name), value, 0).Err(); err != nil {
		return apperrors.NewPersistenceError("write", name, err)
	}
	return nil
}

// Balance returns the stored cash balance.
func (s *RedisStore) Balance(ctx context.Context) (decimal.Decimal, bool, error) {
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
func (s *RedisStore) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	return s.set(ctx, KeyBalance, encodeBalance(balance))
}

// Trades returns all trades.
func (s *RedisStore) Trades(ctx context.Context) ([]models.Trade, error) {
	raw, _, err := s.get(ctx, KeyTrades)
	if err != nil {
		return nil, err
	}
	return decodeTrades(raw)
}

// SaveTrades replaces the trade list.
func (s *RedisStore) SaveTrades(ctx context.Context, trades []models.Trade) error {
	raw, err := encodeJSON(KeyTrades, normalizeTrades(trades))
	if err != nil {
		return err
	}
	return s.set(ctx, KeyTrades, raw)
}

// Snapshots returns the P&L series.
func (s *RedisStore) Snapshots(ctx context.Context) ([]models.PnLSnapshot, error) {
	raw, _, err := s.get(ctx, KeySnapshots)
	if err != nil {
		return nil, err
	}
	return decodeSnapshots(raw)
}

// SaveSnapshots replaces the P&L series.
func (s *RedisStore) SaveSnapshots(ctx context.Context, snapshots []models.PnLSnapshot) error {
	raw, err := encodeJSON(KeySnapshots, normalizeSnapshots(snapshots))
	if err != nil {
		return err
	}
	return s.set(ctx, KeySnapshots, raw)
}

// SaveLedger writes trades and balance in one MULTI/EXEC.
func (s *RedisStore) SaveLedger(ctx context.Context, trades []models.Trade, balance decimal.Decimal) error {
	raw, err := encodeJSON(KeyTrades, normalizeTrades(trades))
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyTrades), raw, 0)
		pipe.Set(ctx, s.key(KeyBalance), encodeBalance(balance), 0)
		return nil
	})
	if err != nil {
		return apperrors.NewPersistenceError("save_ledger", KeyTrades, err)
	}
	return nil
}

// Reset clears trades and snapshots and writes balance in one MULTI/EXEC.
func (s *RedisStore) Reset(ctx context.Context, balance decimal.Decimal) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(KeyTrades), s.key(KeySnapshots))
		pipe.Set(ctx, s.key(KeyBalance), encodeBalance(balance), 0)
		return nil
	})
	if err != nil {
		return apperrors.NewPersistenceError("reset", KeyBalance, err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var _ LedgerStore = (*RedisStore)(nil)
