package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
	"polypaper/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	e := NewEngine(mem, decimal.NewFromInt(10000), zerolog.Nop())
	e.now = func() time.Time { return time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC) }
	return e, mem
}

func openReq(side models.Side, shares, price string) OpenRequest {
	return OpenRequest{
		MarketID:       "market-1",
		EventTitle:     "Fed decision",
		MarketQuestion: "Will the Fed cut rates?",
		Slug:           "fed-decision",
		Side:           side,
		Shares:         dec(shares),
		EntryPrice:     dec(price),
	}
}

func TestBalanceLazilyInitialized(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()

	b, err := e.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !b.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("balance = %s, want 10000", b)
	}
	stored, found, _ := mem.Balance(ctx)
	if !found || !stored.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("starting balance not persisted: %s found=%v", stored, found)
	}
}

func TestOpenThenCloseScenario(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	opened, err := e.OpenPosition(ctx, openReq(models.SideYes, "100", "0.40"))
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	trade := opened.Trade
	if trade.Status != models.StatusOpen || !trade.TotalCost.Equal(dec("40")) {
		t.Fatalf("unexpected trade: %+v", trade)
	}
	if !opened.Balance.Equal(dec("9960")) || opened.Message != MsgOpened {
		t.Fatalf("open result = %s %q, want 9960", opened.Balance, opened.Message)
	}
	if b, _ := e.Balance(ctx); !b.Equal(dec("9960")) {
		t.Fatalf("balance after open = %s, want 9960", b)
	}

	res, err := e.ClosePosition(ctx, trade.ID, dec("0.60"))
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if !res.ExitValue.Equal(dec("60")) || !res.PnL.Equal(dec("20")) {
		t.Fatalf("exit=%s pnl=%s, want 60 and 20", res.ExitValue, res.PnL)
	}
	if res.Message != "Position closed. P&L: $+20.00" {
		t.Errorf("message = %q", res.Message)
	}
	if b, _ := e.Balance(ctx); !b.Equal(dec("10020")) {
		t.Fatalf("balance after close = %s, want 10020", b)
	}
	if res.Trade.Status != models.StatusClosed || res.Trade.ClosePrice == nil || res.Trade.CloseDate == nil {
		t.Fatalf("close not stamped: %+v", res.Trade)
	}

	// A second close is declined and does not credit again.
	_, err = e.ClosePosition(ctx, trade.ID, dec("0.60"))
	if !errors.Is(err, apperrors.ErrAlreadyClosed) {
		t.Fatalf("expected AlreadyClosed, got %v", err)
	}
	if b, _ := e.Balance(ctx); !b.Equal(dec("10020")) {
		t.Fatalf("balance after second close = %s, want 10020", b)
	}
}

func TestInsufficientBalanceLeavesLedgerUntouched(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	if err := mem.SetBalance(ctx, dec("10")); err != nil {
		t.Fatal(err)
	}

	_, err := e.OpenPosition(ctx, openReq(models.SideNo, "50", "0.70"))
	if !errors.Is(err, apperrors.ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if err.Error() != "Insufficient balance. Need $35.00, have $10.00" {
		t.Errorf("message = %q", err.Error())
	}
	if !apperrors.IsDeclined(err) {
		t.Error("insufficient balance should be a declined operation")
	}

	b, _ := e.Balance(ctx)
	trades, _ := e.Trades(ctx)
	if !b.Equal(dec("10")) || len(trades) != 0 {
		t.Fatalf("ledger mutated: balance=%s trades=%d", b, len(trades))
	}
}

func TestOpenExactBalanceSucceeds(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	_ = mem.SetBalance(ctx, dec("35"))

	if _, err := e.OpenPosition(ctx, openReq(models.SideNo, "50", "0.70")); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	if b, _ := e.Balance(ctx); !b.IsZero() {
		t.Fatalf("balance = %s, want 0", b)
	}
}

func TestCloseUnknownTrade(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ClosePosition(context.Background(), "nope", dec("0.5"))
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCloseMessages(t *testing.T) {
	tests := []struct {
		pnl  string
		want string
	}{
		{"20", "Position closed. P&L: $+20.00"},
		{"-5.5", "Position closed. P&L: $-5.50"},
		{"0", "Position closed at break-even"},
	}
	for _, tt := range tests {
		if got := CloseMessage(dec(tt.pnl)); got != tt.want {
			t.Errorf("CloseMessage(%s) = %q, want %q", tt.pnl, got, tt.want)
		}
	}
}

func TestOpenValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	bad := []OpenRequest{
		openReq(models.SideYes, "0", "0.5"),
		openReq(models.SideYes, "-1", "0.5"),
		openReq(models.SideYes, "10", "0"),
		openReq(models.SideYes, "10", "1.01"),
		openReq(models.Side("MAYBE"), "10", "0.5"),
	}
	noMarket := openReq(models.SideYes, "10", "0.5")
	noMarket.MarketID = " "
	bad = append(bad, noMarket)

	for i, req := range bad {
		if _, err := e.OpenPosition(ctx, req); !errors.Is(err, apperrors.ErrInputValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}

	if _, err := e.ClosePosition(ctx, "x", dec("1.5")); !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("expected validation error for close price, got %v", err)
	}
}

func TestPersistenceFailureSurfaces(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Balance(ctx); err != nil {
		t.Fatal(err)
	}

	mem.FailWrites(errors.New("disk full"))
	_, err := e.OpenPosition(ctx, openReq(models.SideYes, "10", "0.5"))
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	mem.FailWrites(nil)

	b, _ := e.Balance(ctx)
	trades, _ := e.Trades(ctx)
	if !b.Equal(decimal.NewFromInt(10000)) || len(trades) != 0 {
		t.Fatalf("failed write changed ledger: balance=%s trades=%d", b, len(trades))
	}
}

func TestResetRestoresStartingState(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()

	t1, _ := e.OpenPosition(ctx, openReq(models.SideYes, "100", "0.40"))
	_, _ = e.OpenPosition(ctx, openReq(models.SideNo, "10", "0.25"))
	_, _ = e.ClosePosition(ctx, t1.Trade.ID, dec("0.10"))
	_ = mem.SaveSnapshots(ctx, []models.PnLSnapshot{{Date: "2026-02-14"}})

	ledger, _ := e.Ledger(ctx)
	epoch := ledger.Epoch

	if err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	b, _ := e.Balance(ctx)
	trades, _ := e.Trades(ctx)
	snaps, _ := mem.Snapshots(ctx)
	if !b.Equal(decimal.NewFromInt(10000)) || len(trades) != 0 || len(snaps) != 0 {
		t.Fatalf("after reset: balance=%s trades=%d snapshots=%d", b, len(trades), len(snaps))
	}

	ran, err := e.WithinEpoch(epoch, func() error { return nil })
	if ran || err != nil {
		t.Fatalf("work from before the reset must not run (ran=%v err=%v)", ran, err)
	}
}

func TestAnnotatePricesOnlyTouchesOpenTrades(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	open, _ := e.OpenPosition(ctx, openReq(models.SideYes, "10", "0.5"))
	closed, _ := e.OpenPosition(ctx, openReq(models.SideYes, "10", "0.5"))
	_, _ = e.ClosePosition(ctx, closed.Trade.ID, dec("0.5"))

	err := e.AnnotatePrices(ctx, map[string]decimal.Decimal{
		open.Trade.ID:   dec("0.61"),
		closed.Trade.ID: dec("0.99"),
		"ghost":   dec("0.1"),
	})
	if err != nil {
		t.Fatalf("AnnotatePrices: %v", err)
	}

	got, _ := e.Trade(ctx, open.Trade.ID)
	if got.CurrentPrice == nil || !got.CurrentPrice.Equal(dec("0.61")) {
		t.Errorf("open trade price = %v", got.CurrentPrice)
	}
	got, _ = e.Trade(ctx, closed.Trade.ID)
	if got.CurrentPrice != nil {
		t.Errorf("closed trade was annotated")
	}
	if b, _ := e.Balance(ctx); !b.Equal(dec("9995")) {
		t.Errorf("annotation changed balance: %s", b)
	}
}

func TestConcurrentOpensDoNotLoseUpdates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	balances := make(chan decimal.Decimal, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := openReq(models.SideYes, "2", "0.5")
			req.MarketID = fmt.Sprintf("m-%d", i)
			res, err := e.OpenPosition(ctx, req)
			if err != nil {
				errs <- err
				return
			}
			balances <- res.Balance
		}(i)
	}
	wg.Wait()
	close(errs)
	close(balances)
	for err := range errs {
		t.Fatalf("OpenPosition: %v", err)
	}

	// Each open reports the balance right after its own debit.
	reported := map[string]bool{}
	for b := range balances {
		if reported[b.String()] {
			t.Fatalf("balance %s reported by two opens", b)
		}
		reported[b.String()] = true
	}
	for n := int64(1); n <= 50; n++ {
		if want := decimal.NewFromInt(10000 - n); !reported[want.String()] {
			t.Errorf("no open reported balance %s", want)
		}
	}

	b, _ := e.Balance(ctx)
	trades, _ := e.Trades(ctx)
	if !b.Equal(dec("9950")) {
		t.Errorf("balance = %s, want 9950", b)
	}
	if len(trades) != 50 {
		t.Errorf("trades = %d, want 50", len(trades))
	}
	seen := map[string]bool{}
	for _, tr := range trades {
		if seen[tr.ID] {
			t.Fatalf("duplicate trade id %s", tr.ID)
		}
		seen[tr.ID] = true
	}
}
