package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
)

// backends returns every store implementation. Redis runs against an in-process miniredis, and also
// against a real server when POLYPAPER_TEST_REDIS points at one.
func backends(t *testing.T) map[string]LedgerStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	mini, _ := newMiniRedisStore(t)

	out := map[string]LedgerStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"redis":  mini,
	}

	if addr := os.Getenv("POLYPAPER_TEST_REDIS"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		prefix := "polypaper-test:" + t.Name() + ":"
		rs := NewRedisStoreWithClient(rdb, prefix)
		t.Cleanup(func() {
			rdb.Del(context.Background(), prefix+KeyBalance, prefix+KeyTrades, prefix+KeySnapshots)
			rs.Close()
		})
		out["redis-live"] = rs
	}
	return out
}

func newMiniRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs := NewRedisStoreWithClient(rdb, "polypaper:")
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func sampleTrade(id string, entry time.Time) models.Trade {
	return models.Trade{
		ID:             id,
		MarketID:       "m-" + id,
		EventTitle:     "Presidential Election",
		MarketQuestion: "Will the incumbent win?",
		Slug:           "presidential-election",
		Side:           models.SideYes,
		Shares:         decimal.NewFromInt(100),
		EntryPrice:     decimal.RequireFromString("0.40"),
		TotalCost:      decimal.RequireFromString("40"),
		EntryDate:      entry,
		Status:         models.StatusOpen,
	}
}

func TestBalanceNotFoundThenSet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, found, err := s.Balance(ctx)
			if err != nil {
				t.Fatalf("Balance: %v", err)
			}
			if found {
				t.Fatal("expected no stored balance")
			}

			if err := s.SetBalance(ctx, decimal.RequireFromString("9960.25")); err != nil {
				t.Fatalf("SetBalance: %v", err)
			}
			b, found, err := s.Balance(ctx)
			if err != nil || !found {
				t.Fatalf("Balance: found=%v err=%v", found, err)
			}
			if !b.Equal(decimal.RequireFromString("9960.25")) {
				t.Errorf("balance = %s", b)
			}
		})
	}
}

func TestEmptyListsAreNotNil(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			trades, err := s.Trades(context.Background())
			if err != nil || trades == nil || len(trades) != 0 {
				t.Fatalf("Trades() = %v, %v", trades, err)
			}
			snaps, err := s.Snapshots(context.Background())
			if err != nil || snaps == nil || len(snaps) != 0 {
				t.Fatalf("Snapshots() = %v, %v", snaps, err)
			}
		})
	}
}

func TestSaveLedgerAndReset(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2026, 5, 4, 10, 30, 0, 123456789, time.UTC)

			trades := []models.Trade{sampleTrade("t1", now), sampleTrade("t2", now.Add(time.Minute))}
			if err := s.SaveLedger(ctx, trades, decimal.NewFromInt(9920)); err != nil {
				t.Fatalf("SaveLedger: %v", err)
			}
			snaps := []models.PnLSnapshot{{Date: "2026-05-04", TotalPnL: decimal.NewFromInt(5), TotalValue: decimal.NewFromInt(10005), Timestamp: now}}
			if err := s.SaveSnapshots(ctx, snaps); err != nil {
				t.Fatalf("SaveSnapshots: %v", err)
			}

			got, err := s.Trades(ctx)
			if err != nil || len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
				t.Fatalf("Trades() = %v, %v", got, err)
			}
			b, _, _ := s.Balance(ctx)
			if !b.Equal(decimal.NewFromInt(9920)) {
				t.Fatalf("balance = %s, want 9920", b)
			}

			if err := s.Reset(ctx, decimal.NewFromInt(10000)); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			got, _ = s.Trades(ctx)
			gotSnaps, _ := s.Snapshots(ctx)
			b, found, _ := s.Balance(ctx)
			if len(got) != 0 || len(gotSnaps) != 0 {
				t.Errorf("reset left %d trades, %d snapshots", len(got), len(gotSnaps))
			}
			if !found || !b.Equal(decimal.NewFromInt(10000)) {
				t.Errorf("balance after reset = %s (found=%v)", b, found)
			}
		})
	}
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	price := decimal.RequireFromString("0.55")

	trades := []models.Trade{sampleTrade("t1", time.Now().UTC())}
	trades[0].CurrentPrice = &price
	if err := s.SaveTrades(ctx, trades); err != nil {
		t.Fatal(err)
	}
	trades[0].Status = models.StatusClosed
	*trades[0].CurrentPrice = decimal.NewFromInt(1)

	got, _ := s.Trades(ctx)
	if got[0].Status != models.StatusOpen {
		t.Error("store shares the caller's slice")
	}
	if !got[0].CurrentPrice.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("store shares the caller's price pointer: got %s", got[0].CurrentPrice)
	}

	got[0].Slug = "mutated"
	again, _ := s.Trades(ctx)
	if again[0].Slug == "mutated" {
		t.Error("store returns its own slice")
	}
}

func TestMemoryStoreWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.FailWrites(errors.New("disk full"))

	err := s.SaveLedger(ctx, nil, decimal.NewFromInt(1))
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if _, found, _ := s.Balance(ctx); found {
		t.Error("failed write must not change state")
	}

	s.FailWrites(nil)
	if err := s.SetBalance(ctx, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("SetBalance after recovery: %v", err)
	}
}

func TestSQLiteCorruptBalanceIsPersistenceError(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := put(ctx, s.db, KeyBalance, "not-a-number"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Balance(ctx); !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestSQLiteStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveLedger(ctx, []models.Trade{sampleTrade("t1", time.Now().UTC())}, decimal.NewFromInt(9960)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	trades, err := s.Trades(ctx)
	if err != nil || len(trades) != 1 {
		t.Fatalf("Trades after reopen = %v, %v", trades, err)
	}
	b, _, _ := s.Balance(ctx)
	if !b.Equal(decimal.NewFromInt(9960)) {
		t.Errorf("balance after reopen = %s", b)
	}
}

func TestRedisStoreKeysAndReset(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniRedisStore(t)

	if _, found, err := s.Balance(ctx); err != nil || found {
		t.Fatalf("missing key should read as absent: found=%v err=%v", found, err)
	}

	trades := []models.Trade{sampleTrade("t1", time.Now().UTC())}
	if err := s.SaveLedger(ctx, trades, decimal.RequireFromString("9960")); err != nil {
		t.Fatal(err)
	}
	if got, err := mr.Get("polypaper:" + KeyBalance); err != nil || got != "9960" {
		t.Errorf("balance key = %q, %v", got, err)
	}
	if !mr.Exists("polypaper:" + KeyTrades) {
		t.Error("trades key not written")
	}
	if err := s.SaveSnapshots(ctx, []models.PnLSnapshot{{Date: "2026-05-04", TotalPnL: decimal.NewFromInt(1)}}); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx, decimal.NewFromInt(10000)); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("polypaper:"+KeyTrades) || mr.Exists("polypaper:"+KeySnapshots) {
		t.Error("reset left trades or snapshots behind")
	}
	if got, _ := mr.Get("polypaper:" + KeyBalance); got != "10000" {
		t.Errorf("balance after reset = %q", got)
	}
}

func TestRedisStoreFailuresArePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniRedisStore(t)

	if err := mr.Set("polypaper:"+KeyTrades, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Trades(ctx); !errors.Is(err, apperrors.ErrPersistence) {
		t.Errorf("corrupt trades: expected persistence error, got %v", err)
	}

	mr.Close()
	if err := s.SaveLedger(ctx, nil, decimal.NewFromInt(1)); !errors.Is(err, apperrors.ErrPersistence) {
		t.Errorf("unreachable server: expected persistence error, got %v", err)
	}
	if _, _, err := s.Balance(ctx); !errors.Is(err, apperrors.ErrPersistence) {
		t.Errorf("unreachable server: expected persistence error, got %v", err)
	}
}
