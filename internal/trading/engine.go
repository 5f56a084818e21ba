// Package trading implements the paper trading ledger: opening and closing simulated positions
// against a virtual cash balance.
package trading

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/logging"
	"polypaper/internal/metrics"
	"polypaper/internal/models"
	"polypaper/internal/store"
)

// Messages reported to the user after a successful mutation.
const (
	MsgOpened     = "Position opened successfully"
	MsgBreakEven  = "Position closed at break-even"
	MsgResetDone  = "Portfolio reset to starting balance"
	msgClosedPnLf = "Position closed. P&L: $%s%s"
)

var one = decimal.NewFromInt(1)

// OpenRequest describes a position to open.
type OpenRequest struct {
	MarketID       string          `json:"marketId"`
	EventTitle     string          `json:"eventTitle"`
	MarketQuestion string          `json:"marketQuestion"`
	Slug           string          `json:"slug"`
	Side           models.Side     `json:"side"`
	Shares         decimal.Decimal `json:"shares"`
	EntryPrice     decimal.Decimal `json:"entryPrice"`
}

// Validate checks the request before any ledger access.
func (r OpenRequest) Validate() error {
	if strings.TrimSpace(r.MarketID) == "" {
		return apperrors.NewValidationError("marketId", r.MarketID, "market id is required")
	}
	if strings.TrimSpace(r.Slug) == "" {
		return apperrors.NewValidationError("slug", r.Slug, "event slug is required")
	}
	if !r.Side.Valid() {
		return apperrors.NewValidationError("side", r.Side, "side must be YES or NO")
	}
	if !r.Shares.IsPositive() {
		return apperrors.NewValidationError("shares", r.Shares.String(), "shares must be positive")
	}
	if !r.EntryPrice.IsPositive() || r.EntryPrice.GreaterThan(one) {
		return apperrors.NewValidationError("entryPrice", r.EntryPrice.String(), "price must be greater than 0 and at most 1")
	}
	return nil
}

// OpenResult is the outcome of a successful open. Balance is the cash left after the debit.
type OpenResult struct {
	Trade   models.Trade    `json:"trade"`
	Balance decimal.Decimal `json:"balance"`
	Message string          `json:"message"`
}

// CloseResult is the outcome of closing a position.
type CloseResult struct {
	Trade     models.Trade    `json:"trade"`
	ExitValue decimal.Decimal `json:"exitValue"`
	PnL       decimal.Decimal `json:"pnl"`
	Balance   decimal.Decimal `json:"balance"`
	Message   string          `json:"message"`
}

// Engine owns every mutation of the ledger. A single mutex serializes read-modify-write
// sequences so concurrent opens and closes cannot lose balance updates.
type Engine struct {
	store    store.LedgerStore
	starting decimal.Decimal
	logger   zerolog.Logger
	now      func() time.Time
	newID    func(time.Time) string

	mu    sync.Mutex
	epoch uint64 // incremented by Reset
}

// NewEngine creates a trading engine over the given ledger store.
func NewEngine(ledger store.LedgerStore, startingBalance decimal.Decimal, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    ledger,
		starting: startingBalance,
		logger:   logger.With().Str("component", "trading").Logger(),
		now:      time.Now,
		newID:    newTradeID,
	}
}

// newTradeID returns a millisecond timestamp followed by a random suffix.
func newTradeID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// StartingBalance returns the balance a fresh or reset ledger starts with.
func (e *Engine) StartingBalance() decimal.Decimal {
	return e.starting
}

// Balance returns the cash balance, initializing the ledger on first use.
func (e *Engine) Balance(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceLocked(ctx)
}

func (e *Engine) balanceLocked(ctx context.Context) (decimal.Decimal, error) {
	b, found, err := e.store.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if found {
		return b, nil
	}
	if err := e.store.SetBalance(ctx, e.starting); err != nil {
		return decimal.Zero, err
	}
	e.logger.Info().Str("balance", e.starting.StringFixed(2)).Msg("Ledger initialized")
	return e.starting, nil
}

// Ledger returns the balance and trade list read together.
func (e *Engine) Ledger(ctx context.Context) (models.Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.balanceLocked(ctx)
	if err != nil {
		return models.Ledger{}, err
	}
	trades, err := e.store.Trades(ctx)
	if err != nil {
		return models.Ledger{}, err
	}
	return models.Ledger{Balance: balance, Trades: trades, Epoch: e.epoch}, nil
}

// WithinEpoch runs fn while holding the ledger lock, provided the ledger has not been reset
// since epoch was observed. fn must not call back into the engine.
func (e *Engine) WithinEpoch(epoch uint64, fn func() error) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return false, nil
	}
	return true, fn()
}

// Trades returns every trade in creation order.
func (e *Engine) Trades(ctx context.Context) ([]models.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Trades(ctx)
}

// Trade returns one trade by id.
func (e *Engine) Trade(ctx context.Context, id string) (*models.Trade, error) {
	trades, err := e.Trades(ctx)
	if err != nil {
		return nil, err
	}
	for i := range trades {
		if trades[i].ID == id {
			return &trades[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("trade", id)
}

// OpenPosition buys req.Shares of req.Side at req.EntryPrice and debits the cost from cash.
// The ledger is untouched when the cost exceeds the balance. The returned balance is read
// under the same lock as the debit, so it reflects exactly this open.
func (e *Engine) OpenPosition(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if err := req.Validate(); err != nil {
		metrics.TradesDeclined.WithLabelValues("invalid").Inc()
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.balanceLocked(ctx)
	if err != nil {
		return nil, err
	}

	cost := req.Shares.Mul(req.EntryPrice)
	if cost.GreaterThan(balance) {
		metrics.TradesDeclined.WithLabelValues("insufficient_balance").Inc()
		e.logger.Info().
			Str("need", cost.StringFixed(2)).
			Str("have", balance.StringFixed(2)).
			Str("market_id", req.MarketID).
			Msg("Open declined")
		return nil, apperrors.NewInsufficientBalanceError(cost, balance)
	}

	trades, err := e.store.Trades(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	trade := models.Trade{
		ID:             e.newID(now),
		MarketID:       req.MarketID,
		EventTitle:     req.EventTitle,
		MarketQuestion: req.MarketQuestion,
		Slug:           req.Slug,
		Side:           req.Side,
		Shares:         req.Shares,
		EntryPrice:     req.EntryPrice,
		TotalCost:      cost,
		EntryDate:      now,
		Status:         models.StatusOpen,
	}

	newBalance := balance.Sub(cost)
	if err := e.store.SaveLedger(ctx, append(trades, trade), newBalance); err != nil {
		return nil, err
	}

	metrics.TradesOpened.WithLabelValues(string(trade.Side)).Inc()
	metrics.LedgerBalance.Set(newBalance.InexactFloat64())
	logging.LogTrade(e.logger, "open", trade.ID, string(trade.Side), trade.Shares, trade.EntryPrice, newBalance)

	return &OpenResult{Trade: trade, Balance: newBalance, Message: MsgOpened}, nil
}

// ClosePosition sells an open position at closePrice and credits the proceeds to cash.
func (e *Engine) ClosePosition(ctx context.Context, tradeID string, closePrice decimal.Decimal) (*CloseResult, error) {
	if closePrice.IsNegative() || closePrice.GreaterThan(one) {
		metrics.TradesDeclined.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewValidationError("closePrice", closePrice.String(), "price must be between 0 and 1")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	trades, err := e.store.Trades(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range trades {
		if trades[i].ID == tradeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		metrics.TradesDeclined.WithLabelValues("not_found").Inc()
		return nil, apperrors.NewNotFoundError("trade", tradeID)
	}
	if !trades[idx].IsOpen() {
		metrics.TradesDeclined.WithLabelValues("already_closed").Inc()
		return nil, apperrors.NewAlreadyClosedError(tradeID)
	}

	balance, err := e.balanceLocked(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	price := closePrice
	trade := &trades[idx]
	trade.Status = models.StatusClosed
	trade.ClosePrice = &price
	trade.CloseDate = &now
	trade.CurrentPrice = nil

	exitValue := trade.ExitValue()
	pnl := exitValue.Sub(trade.TotalCost)
	newBalance := balance.Add(exitValue)

	if err := e.store.SaveLedger(ctx, trades, newBalance); err != nil {
		return nil, err
	}

	metrics.TradesClosed.WithLabelValues(string(trade.Side), closeResultLabel(pnl)).Inc()
	metrics.LedgerBalance.Set(newBalance.InexactFloat64())
	logging.LogTrade(logging.WithTradeID(e.logger, trade.ID), "close", trade.ID, string(trade.Side), trade.Shares, price, newBalance)

	return &CloseResult{
		Trade:     trade.Clone(),
		ExitValue: exitValue,
		PnL:       pnl,
		Balance:   newBalance,
		Message:   CloseMessage(pnl),
	}, nil
}

// AnnotatePrices stores the last fetched price on open trades. Prices for unknown or closed
// trades are ignored. The annotation is informational and never affects the balance.
func (e *Engine) AnnotatePrices(ctx context.Context, prices map[string]decimal.Decimal) error {
	if len(prices) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	trades, err := e.store.Trades(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i := range trades {
		p, ok := prices[trades[i].ID]
		if !ok || !trades[i].IsOpen() {
			continue
		}
		price := p
		trades[i].CurrentPrice = &price
		changed = true
	}
	if !changed {
		return nil
	}
	return e.store.SaveTrades(ctx, trades)
}

// Reset wipes every trade and the P&L history and restores the starting balance.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Reset(ctx, e.starting); err != nil {
		return err
	}
	e.epoch++
	metrics.LedgerBalance.Set(e.starting.InexactFloat64())
	e.logger.Warn().Str("balance", e.starting.StringFixed(2)).Msg("Ledger reset")
	return nil
}

// CloseMessage describes a realized P&L the way it is shown to the user.
func CloseMessage(pnl decimal.Decimal) string {
	if pnl.IsZero() {
		return MsgBreakEven
	}
	sign := "+"
	if pnl.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf(msgClosedPnLf, sign, pnl.Abs().StringFixed(2))
}

func closeResultLabel(pnl decimal.Decimal) string {
	switch {
	case pnl.IsPositive():
		return "profit"
	case pnl.IsNegative():
		return "loss"
	}
	return "even"
}
