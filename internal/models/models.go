// Package models provides domain models for the paper trading application.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the outcome a position is bought on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide parses a side case-insensitively.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", fmt.Errorf("invalid side %q (must be YES or NO)", s)
}

// Valid reports whether the side is YES or NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// Period selects a window of the P&L history.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod parses a history period. Short chart labels (1d, 1w, 1m) are accepted.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "1d", "d":
		return PeriodDay, nil
	case "week", "1w", "w":
		return PeriodWeek, nil
	case "month", "1m", "m":
		return PeriodMonth, nil
	case "all", "":
		return PeriodAll, nil
	}
	return "", fmt.Errorf("invalid period %q (must be day, week, month or all)", s)
}

// Window returns the look-back window of the period. PeriodAll has no window.
func (p Period) Window() (time.Duration, bool) {
	switch p {
	case PeriodDay:
		return 24 * time.Hour, true
	case PeriodWeek:
		return 7 * 24 * time.Hour, true
	case PeriodMonth:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// FlexDecimal decodes a decimal sent either as a JSON number or a JSON string.
// The market data provider is inconsistent about which one it uses.
type FlexDecimal struct {
	decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *FlexDecimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			d.Decimal = decimal.Zero
			return nil
		}
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		val, err := decimal.NewFromString(n.String())
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}
