package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
)

// MemoryStore is an in-process LedgerStore. Values are copied on the way in and out so
// callers never share slices with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	balance   *decimal.Decimal
	trades    []models.Trade
	snapshots []models.PnLSnapshot

	failWrites error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailWrites makes subsequent writes fail with err; nil restores normal behaviour.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// Balance returns the stored cash balance.
func (s *MemoryStore) Balance(ctx context.Context) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.balance == nil {
		return decimal.Zero, false, nil
	}
	return *s.balance, true, nil
}

// SetBalance writes the cash balance.
func (s *MemoryStore) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(KeyBalance); err != nil {
		return err
	}
	s.balance = &balance
	return nil
}

// Trades returns all trades.
func (s *MemoryStore) Trades(ctx context.Context) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return normalizeTrades(models.CloneTrades(s.trades)), nil
}

// SaveTrades replaces the trade list.
func (s *MemoryStore) SaveTrades(ctx context.Context, trades []models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(KeyTrades); err != nil {
		return err
	}
	s.trades = models.CloneTrades(trades)
	return nil
}

// Snapshots returns the P&L series.
func (s *MemoryStore) Snapshots(ctx context.Context) ([]models.PnLSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PnLSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out, nil
}

// SaveSnapshots replaces the P&L series.
func (s *MemoryStore) SaveSnapshots(ctx context.Context, snapshots []models.PnLSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(KeySnapshots); err != nil {
		return err
	}
	s.snapshots = make([]models.PnLSnapshot, len(snapshots))
	copy(s.snapshots, snapshots)
	return nil
}

// SaveLedger writes trades and balance together.
func (s *MemoryStore) SaveLedger(ctx context.Context, trades []models.Trade, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(KeyTrades); err != nil {
		return err
	}
	s.trades = models.CloneTrades(trades)
	s.balance = &balance
	return nil
}

// Reset clears trades and snapshots and writes balance.
func (s *MemoryStore) Reset(ctx context.Context, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(KeyBalance); err != nil {
		return err
	}
	s.trades = nil
	s.snapshots = nil
	s.balance = &balance
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) writeErr(key string) error {
	if s.failWrites == nil {
		return nil
	}
	return apperrors.NewPersistenceError("write", key, s.failWrites)
}

var _ LedgerStore = (*MemoryStore)(nil)
