package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotDateLayout is the calendar-day layout of PnLSnapshot.Date.
const SnapshotDateLayout = "2006-01-02"

// PnLSnapshot is one calendar day's recorded portfolio P&L and value.
type PnLSnapshot struct {
	Date       string          `json:"date"`
	TotalPnL   decimal.Decimal `json:"totalPnL"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Day parses the snapshot date as a UTC midnight.
func (s PnLSnapshot) Day() (time.Time, error) {
	return time.ParseInLocation(SnapshotDateLayout, s.Date, time.UTC)
}

// DayOf returns the snapshot date key for t.
func DayOf(t time.Time) string {
	return t.UTC().Format(SnapshotDateLayout)
}

// Position is an open trade revalued at the current market price.
type Position struct {
	Trade
	CurrentValue  decimal.Decimal `json:"currentValue"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
	PnLPercent    decimal.Decimal `json:"pnlPercent"`
	// Fallback is set when the live price could not be fetched and the entry price was used.
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Portfolio is the consolidated view produced by a valuation pass. It is never persisted.
type Portfolio struct {
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalPnL        decimal.Decimal `json:"totalPnL"`
	Cash            decimal.Decimal `json:"cash"`
	OpenValue       decimal.Decimal `json:"openValue"`
	RealizedPnL     decimal.Decimal `json:"realizedPnL"`
	UnrealizedPnL   decimal.Decimal `json:"unrealizedPnL"`
	ReturnPercent   decimal.Decimal `json:"returnPercent"`
	CashPercent     decimal.Decimal `json:"cashPercent"`
	OpenPositions   []Position      `json:"openPositions"`
	ClosedPositions []Trade         `json:"closedPositions"`
	Fallbacks       int             `json:"fallbacks"`
	AsOf            time.Time       `json:"asOf"`
	Sequence        uint64          `json:"sequence"`
	// Stale is set when a newer valuation pass completed first; a stale pass does not record a snapshot.
	Stale bool `json:"stale,omitempty"`
}

// Ledger is a consistent view of the cash balance and every trade.
type Ledger struct {
	Balance decimal.Decimal `json:"balance"`
	Trades  []Trade         `json:"trades"`
	// Epoch identifies the ledger generation; it changes on every reset.
	Epoch uint64 `json:"-"`
}

// OpenTrades returns the trades that are still open.
func (l Ledger) OpenTrades() []Trade {
	out := make([]Trade, 0, len(l.Trades))
	for _, t := range l.Trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	return out
}

// ClosedTrades returns the trades that have been closed.
func (l Ledger) ClosedTrades() []Trade {
	out := make([]Trade, 0, len(l.Trades))
	for _, t := range l.Trades {
		if !t.IsOpen() {
			out = append(out, t)
		}
	}
	return out
}
