// Package utils provides shared utility functions.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency formats an amount as dollars with thousands separators, e.g. $10,020.00.
func FormatCurrency(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	str := amount.Abs().StringFixed(2)
	parts := strings.SplitN(str, ".", 2)

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}
	return sign + value.StringFixed(2) + "%"
}

// FormatPnL formats P&L with an explicit sign, e.g. +$20.00.
func FormatPnL(pnl decimal.Decimal) string {
	formatted := FormatCurrency(pnl)
	if pnl.IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatPrice formats an outcome price in cents, e.g. 0.42 -> 42.0¢.
func FormatPrice(price decimal.Decimal) string {
	return price.Mul(decimal.NewFromInt(100)).StringFixed(1) + "¢"
}

// FormatShares formats a share count without trailing zeros.
func FormatShares(shares decimal.Decimal) string {
	return shares.String()
}

// FormatCompact formats large amounts in compact form ($1.2K, $3.4M).
func FormatCompact(amount decimal.Decimal) string {
	abs := amount.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1_000_000_000)):
		return "$" + amount.Div(decimal.NewFromInt(1_000_000_000)).StringFixed(1) + "B"
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		return "$" + amount.Div(decimal.NewFromInt(1_000_000)).StringFixed(1) + "M"
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1_000)):
		return "$" + amount.Div(decimal.NewFromInt(1_000)).StringFixed(1) + "K"
	}
	return FormatCurrency(amount)
}
