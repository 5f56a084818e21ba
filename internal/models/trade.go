package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents one simulated buy of shares on one side of a market.
// TotalCost is fixed at open time and never recomputed.
type Trade struct {
	ID             string           `json:"id"`
	MarketID       string           `json:"marketId"`
	EventTitle     string           `json:"eventTitle"`
	MarketQuestion string           `json:"marketQuestion"`
	Slug           string           `json:"slug"`
	Side           Side             `json:"side"`
	Shares         decimal.Decimal  `json:"shares"`
	EntryPrice     decimal.Decimal  `json:"entryPrice"`
	TotalCost      decimal.Decimal  `json:"totalCost"`
	EntryDate      time.Time        `json:"entryDate"`
	Status         TradeStatus      `json:"status"`
	CurrentPrice   *decimal.Decimal `json:"currentPrice,omitempty"`
	ClosePrice     *decimal.Decimal `json:"closePrice,omitempty"`
	CloseDate      *time.Time       `json:"closeDate,omitempty"`
}

// IsOpen reports whether the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// ExitValue returns shares x closePrice, or zero for an open trade.
func (t *Trade) ExitValue() decimal.Decimal {
	if t.ClosePrice == nil {
		return decimal.Zero
	}
	return t.Shares.Mul(*t.ClosePrice)
}

// RealizedPnL returns the profit or loss fixed at close time.
func (t *Trade) RealizedPnL() decimal.Decimal {
	if t.Status != StatusClosed || t.ClosePrice == nil {
		return decimal.Zero
	}
	return t.ExitValue().Sub(t.TotalCost)
}

// ValueAt returns the position value at the given price.
func (t *Trade) ValueAt(price decimal.Decimal) decimal.Decimal {
	return t.Shares.Mul(price)
}

// UnrealizedPnL returns the profit or loss of the trade if it were valued at price.
func (t *Trade) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return t.ValueAt(price).Sub(t.TotalCost)
}

// PnLPercent returns pnl relative to the trade's cost, in percent.
func (t *Trade) PnLPercent(pnl decimal.Decimal) decimal.Decimal {
	if t.TotalCost.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(t.TotalCost).Mul(decimal.NewFromInt(100))
}

// Clone returns a deep copy of the trade.
func (t Trade) Clone() Trade {
	if t.CurrentPrice != nil {
		p := *t.CurrentPrice
		t.CurrentPrice = &p
	}
	if t.ClosePrice != nil {
		p := *t.ClosePrice
		t.ClosePrice = &p
	}
	if t.CloseDate != nil {
		d := *t.CloseDate
		t.CloseDate = &d
	}
	return t
}

// CloneTrades deep copies a trade list.
func CloneTrades(trades []Trade) []Trade {
	if trades == nil {
		return nil
	}
	out := make([]Trade, len(trades))
	for i, t := range trades {
		out[i] = t.Clone()
	}
	return out
}
